package translate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/minios-linux/wootrans/langmeta"
	"github.com/minios-linux/wootrans/reconcile"
	"github.com/minios-linux/wootrans/toon"
)

// fakeGenerator replies through a callback and records requests.
type fakeGenerator struct {
	mu       sync.Mutex
	requests []Request
	reply    func(n int, req Request) (Response, error)
	tokens   int
	countErr error
}

func (f *fakeGenerator) Generate(_ context.Context, req Request) (Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	n := len(f.requests)
	f.mu.Unlock()
	return f.reply(n, req)
}

func (f *fakeGenerator) CountTokens(context.Context, string, string) (int, error) {
	return f.tokens, f.countErr
}

// echo returns the encoded prompt back, translating nothing.
func echo(_ int, req Request) (Response, error) {
	return Response{Text: req.Prompt, Usage: Usage{InputTokens: 1000, OutputTokens: 500, ReasoningTokens: 100}}, nil
}

func newTestService(gen Generator, opts Options) (*Service, *[]time.Duration) {
	s := NewService(gen, opts)
	var waits []time.Duration
	var mu sync.Mutex
	s.wait = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		waits = append(waits, d)
		mu.Unlock()
		return ctx.Err()
	}
	return s, &waits
}

func sampleRows(n int) []toon.Row {
	rows := make([]toon.Row, n)
	for i := range rows {
		rows[i] = toon.Row{
			"ID":          fmt.Sprint(i + 1),
			"Name":        fmt.Sprintf("Product %d", i+1),
			"Attribute 1": "Color: Blue",
		}
	}
	return rows
}

var sampleColumns = []string{"ID", "Name", "Attribute 1"}

func TestTranslateRowsLoopsOverAllBatches(t *testing.T) {
	gen := &fakeGenerator{reply: echo}
	s, _ := newTestService(gen, Options{Model: "gemini-2.5-flash", BatchSize: 2})

	var progress [][2]int
	res, err := s.TranslateRows(context.Background(), sampleRows(5), sampleColumns, langmeta.German, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	require.NoError(t, err)

	assert.Len(t, gen.requests, 3)
	assert.Equal(t, 3, res.Batches)
	require.Len(t, res.Rows, 5)
	assert.Equal(t, "Blue", res.Rows[4]["Attribute 1 value(s)"])
	assert.Equal(t, []string{"ID", "Name", "Attribute 1 value(s)"}, res.Columns)
	assert.Equal(t, [][2]int{{2, 5}, {4, 5}, {5, 5}}, progress)

	assert.Equal(t, Usage{InputTokens: 3000, OutputTokens: 1500, ReasoningTokens: 300}, res.Usage)
	// 3 * (1000*0.3 + 500*2.5 + 100*2.5) / 1e6
	assert.InDelta(t, 0.0054, res.Cost, 1e-9)

	req := gen.requests[0]
	assert.Equal(t, "gemini-2.5-flash", req.Model)
	assert.Equal(t, float32(0), req.Temperature)
	assert.Contains(t, req.SystemInstruction, "Target language: German")
	assert.True(t, strings.HasPrefix(req.Prompt, "```toon\n[2]{ID,Name,Attribute 1}:"))
}

func TestTranslateRowsDecodeFailure(t *testing.T) {
	gen := &fakeGenerator{reply: func(n int, req Request) (Response, error) {
		if n == 2 {
			return Response{Text: "```toon\n[2]{ID,Name,Attribute 1}:\n  \"3\",\"broken\n```"}, nil
		}
		return echo(n, req)
	}}
	var logged []string
	s, _ := newTestService(gen, Options{BatchSize: 2, OnError: func(format string, args ...any) {
		logged = append(logged, fmt.Sprintf(format, args...))
	}})

	res, err := s.TranslateRows(context.Background(), sampleRows(4), sampleColumns, langmeta.French, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, toon.ErrDecodeFailed)
	assert.Len(t, res.Rows, 2, "first batch is kept")
	assert.Len(t, gen.requests, 2, "decode failures are not retried")
	assert.Len(t, logged, 1)
}

func TestTranslateRowsRowCountMismatch(t *testing.T) {
	gen := &fakeGenerator{reply: func(int, Request) (Response, error) {
		return Response{Text: "[1]{ID,Name,Attribute 1}:\n  \"1\",\"x\",\"y\""}, nil
	}}
	s, _ := newTestService(gen, Options{BatchSize: 5})
	_, err := s.TranslateRows(context.Background(), sampleRows(2), sampleColumns, langmeta.French, nil)
	assert.ErrorIs(t, err, toon.ErrDecodeFailed)
}

func TestTranslateRowsRejectsDroppedColumns(t *testing.T) {
	gen := &fakeGenerator{reply: func(int, Request) (Response, error) {
		return Response{Text: "[2]{ID,Name}:\n  \"1\",\"x\"\n  \"2\",\"y\""}, nil
	}}
	s, _ := newTestService(gen, Options{BatchSize: 5})
	res, err := s.TranslateRows(context.Background(), sampleRows(2), sampleColumns, langmeta.French, nil)
	assert.ErrorIs(t, err, toon.ErrDecodeFailed)
	assert.Empty(t, res.Rows)
}

func TestTranslateRowsEmpty(t *testing.T) {
	gen := &fakeGenerator{reply: echo}
	s, _ := newTestService(gen, Options{})
	res, err := s.TranslateRows(context.Background(), nil, sampleColumns, langmeta.French, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Empty(t, gen.requests)
}

func TestRetryOnRateLimit(t *testing.T) {
	rateErr := genai.APIError{Code: 429, Details: []map[string]any{
		{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "30s"},
	}}
	gen := &fakeGenerator{reply: func(n int, req Request) (Response, error) {
		if n == 1 {
			return Response{}, rateErr
		}
		if n == 2 {
			return Response{}, genai.APIError{Code: 503}
		}
		return echo(n, req)
	}}
	s, waits := newTestService(gen, Options{BatchSize: 5})

	_, err := s.TranslateRows(context.Background(), sampleRows(1), sampleColumns, langmeta.Czech, nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{35 * time.Second, 2 * time.Second}, *waits)
	assert.False(t, s.rl.isPaused())
}

func TestRetryExhausted(t *testing.T) {
	gen := &fakeGenerator{reply: func(int, Request) (Response, error) {
		return Response{}, genai.APIError{Code: 500, Message: "internal"}
	}}
	s, waits := newTestService(gen, Options{MaxRetries: 2})

	_, err := s.TranslateRows(context.Background(), sampleRows(1), sampleColumns, langmeta.Czech, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExternalService)
	var apiErr genai.APIError
	assert.True(t, errors.As(err, &apiErr))
	assert.Len(t, gen.requests, 3)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestNoRetryOnClientError(t *testing.T) {
	gen := &fakeGenerator{reply: func(int, Request) (Response, error) {
		return Response{}, genai.APIError{Code: 400, Message: "bad request"}
	}}
	s, waits := newTestService(gen, Options{})
	_, err := s.TranslateRows(context.Background(), sampleRows(1), sampleColumns, langmeta.Czech, nil)
	assert.ErrorIs(t, err, ErrExternalService)
	assert.Len(t, gen.requests, 1)
	assert.Empty(t, *waits)
}

func TestRetryDelay(t *testing.T) {
	tests := []struct {
		name    string
		details []map[string]any
		want    time.Duration
	}{
		{"no details", nil, 65 * time.Second},
		{"fractional", []map[string]any{{"@type": "type.googleapis.com/google.rpc.RetryInfo", "retryDelay": "1.5s"}}, 6500 * time.Millisecond},
		{"other detail", []map[string]any{{"@type": "type.googleapis.com/google.rpc.QuotaFailure"}}, 65 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, retryDelay(genai.APIError{Code: 429, Details: tc.details}))
		})
	}
}

func TestTranslateAttributeNames(t *testing.T) {
	gen := &fakeGenerator{reply: func(_ int, req Request) (Response, error) {
		return Response{Text: "```json\n[{\"name\":\"Color\",\"slug\":\"color\",\"translatedName\":\"Barva\"}]\n```"}, nil
	}}
	s, _ := newTestService(gen, Options{})

	got, _, err := s.TranslateAttributeNames(context.Background(), []reconcile.AttributeName{{Name: "Color", Slug: "color"}}, langmeta.Slovenian)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Barva", got[0].Translated())

	req := gen.requests[0]
	assert.Equal(t, AttributeModel, req.Model)
	assert.Contains(t, req.Prompt, "Target language: Slovenian")
	assert.Contains(t, req.Prompt, `"slug": "color"`)
	assert.Contains(t, req.Prompt, `"translatedName": null`)
}

func TestTranslateAttributeNamesEdgeCases(t *testing.T) {
	gen := &fakeGenerator{reply: func(int, Request) (Response, error) {
		return Response{Text: "not json"}, nil
	}}
	s, _ := newTestService(gen, Options{})

	got, _, err := s.TranslateAttributeNames(context.Background(), nil, langmeta.German)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, gen.requests, "empty list makes no call")

	_, _, err = s.TranslateAttributeNames(context.Background(), []reconcile.AttributeName{{Name: "Size", Slug: "size"}}, langmeta.German)
	assert.ErrorIs(t, err, toon.ErrDecodeFailed)
}

func TestEstimate(t *testing.T) {
	gen := &fakeGenerator{tokens: 1000}
	s, _ := newTestService(gen, Options{Model: "gemini-3-flash", BatchSize: 2})

	est, err := s.Estimate(context.Background(), sampleRows(5), sampleColumns, langmeta.Italian)
	require.NoError(t, err)
	assert.Equal(t, 1000, est.TokenCount)
	assert.Equal(t, 3, est.Batches)
	assert.InDelta(t, 0.0005, est.Price.Input, 1e-12)
	assert.InDelta(t, 0.003, est.Price.Output, 1e-12)
	assert.InDelta(t, 0.0035, est.Price.Total, 1e-12)
	assert.InDelta(t, 0.0105, est.ProjectedTotal, 1e-12)
	assert.Equal(t, len(strings.Split(est.SystemPrompt+est.Prompt, " ")), est.WordCount)
	assert.InDelta(t, est.Price.Total*100/float64(est.WordCount), est.Price.PerWordTotal, 1e-12)
	assert.True(t, strings.HasPrefix(est.Encoded, "[2]{"))

	empty, err := s.Estimate(context.Background(), nil, sampleColumns, langmeta.Italian)
	require.NoError(t, err)
	assert.Zero(t, empty.TokenCount)
	assert.Zero(t, empty.Price.Total)
}

func TestRatesFor(t *testing.T) {
	r, known := RatesFor("gemini-2.5-pro", 1000)
	assert.True(t, known)
	assert.Equal(t, Rates{Input: 1.25, Output: 10}, r)

	r, _ = RatesFor("gemini-2.5-pro", 200_001)
	assert.Equal(t, Rates{Input: 2.5, Output: 15}, r)

	r, _ = RatesFor("gemini-2.5-flash", 500_000)
	assert.Equal(t, Rates{Input: 0.3, Output: 2.5}, r, "single tier models ignore context size")

	r, known = RatesFor("gemini-9-ultra", 0)
	assert.False(t, known)
	assert.Equal(t, Pricing[FallbackModel].Base, r)

	_, known = RatesFor("gemini-3-flash-preview", 0)
	assert.True(t, known)
}

func TestEstimateCost(t *testing.T) {
	c := EstimateCost("gemini-3-pro-preview", Usage{InputTokens: 1000, OutputTokens: 400, ReasoningTokens: 100}, 250_000)
	assert.True(t, c.LongContext)
	assert.InDelta(t, 0.004, c.InputCost, 1e-9)
	assert.InDelta(t, 0.009, c.OutputCost, 1e-9)
	assert.InDelta(t, 0.013, c.TotalCost, 1e-9)
	assert.False(t, c.Fallback)
}

func TestPromptsFileOverride(t *testing.T) {
	t.Cleanup(ResetPrompts)
	path := filepath.Join(t.TempDir(), "prompts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"prompts":{"rows":"Translate to {{targetLang}} please"}}`), 0644))
	require.NoError(t, LoadPromptsFromFile(path))

	s := NewService(&fakeGenerator{}, Options{})
	assert.Equal(t, "Translate to Polish please", s.SystemPrompt(langmeta.Polish))

	p, err := s.AttributeNamesPrompt(nil, langmeta.Polish)
	require.NoError(t, err)
	assert.Contains(t, p, "Target language: Polish", "missing keys fall back to built-in prompts")

	s = NewService(&fakeGenerator{}, Options{SystemPrompt: "custom {{targetLang}}"})
	assert.Equal(t, "custom Spanish", s.SystemPrompt(langmeta.Spanish))
}

func TestLoadPromptsFromDefaultLocationsCreatesFile(t *testing.T) {
	t.Cleanup(ResetPrompts)
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	path, err := LoadPromptsFromDefaultLocations()
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rows"`)
	assert.Contains(t, string(data), `"attributes"`)
}

func TestGenAIClientAgainstFakeServer(t *testing.T) {
	var mu sync.Mutex
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, ":countTokens"):
			fmt.Fprint(w, `{"totalTokens": 42}`)
		case strings.HasSuffix(r.URL.Path, ":generateContent"):
			if !strings.Contains(string(body), "systemInstruction") {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":{"code":400,"message":"missing system instruction","status":"INVALID_ARGUMENT"}}`)
				return
			}
			fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"hello"}]}}],`+
				`"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5,"thoughtsTokenCount":2}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client, err := NewGenAIClient(context.Background(), ClientOptions{APIKey: "test-key", BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), Request{Model: "gemini-2.5-flash", SystemInstruction: "sys", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Text)
	assert.Equal(t, Usage{InputTokens: 10, OutputTokens: 5, ReasoningTokens: 2}, resp.Usage)

	n, err := client.CountTokens(context.Background(), "gemini-2.5-flash", "some text")
	require.NoError(t, err)
	assert.Equal(t, 42, n)

	_, err = client.Generate(context.Background(), Request{Model: "gemini-2.5-flash", Prompt: "hi"})
	var apiErr genai.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 400, apiErr.Code)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	assert.Contains(t, paths[0], "models/gemini-2.5-flash:generateContent")
}
