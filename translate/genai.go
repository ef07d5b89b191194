package translate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// ClientOptions configures the Gemini client.
type ClientOptions struct {
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// Timeout bounds each request; zero means no timeout.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// GenAIClient is a Generator backed by the Gemini API.
type GenAIClient struct {
	client *genai.Client
}

// NewGenAIClient creates a Gemini API client.
func NewGenAIClient(ctx context.Context, opts ClientOptions) (*GenAIClient, error) {
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = opts.BaseURL
	}
	if opts.Timeout > 0 {
		cfg.HTTPOptions.Timeout = genai.Ptr(opts.Timeout)
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GenAIClient{client: client}, nil
}

// Generate implements Generator.
func (c *GenAIClient) Generate(ctx context.Context, req Request) (Response, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		return Response{}, err
	}

	out := Response{Text: resp.Text()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = Usage{
			InputTokens:     int(u.PromptTokenCount),
			OutputTokens:    int(u.CandidatesTokenCount),
			ReasoningTokens: int(u.ThoughtsTokenCount),
		}
	}
	return out, nil
}

// CountTokens implements Generator.
func (c *GenAIClient) CountTokens(ctx context.Context, model, content string) (int, error) {
	resp, err := c.client.Models.CountTokens(ctx, model, genai.Text(content), nil)
	if err != nil {
		return 0, err
	}
	return int(resp.TotalTokens), nil
}
