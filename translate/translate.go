// Package translate sends flattened product batches to Gemini and decodes
// the replies. The model is reached through the Generator interface; the
// Service adds retries, a shared rate-limit pause, prompts and pricing on
// top of it.
package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/minios-linux/wootrans/langmeta"
	"github.com/minios-linux/wootrans/reconcile"
	"github.com/minios-linux/wootrans/toon"
)

// ErrExternalService wraps every failure of the generation service.
var ErrExternalService = errors.New("external service error")

const (
	// DefaultModel translates product rows.
	DefaultModel = "gemini-2.5-pro"
	// AttributeModel translates attribute names.
	AttributeModel = "gemini-2.5-flash"
	// DefaultBatchSize is the number of rows per request.
	DefaultBatchSize = 5
)

// ---------------------------------------------------------------------------
// Generation boundary
// ---------------------------------------------------------------------------

// Request is one text generation call.
type Request struct {
	Model             string
	SystemInstruction string
	Prompt            string
	Temperature       float32
}

// Usage is the token accounting of one or more calls.
type Usage struct {
	InputTokens     int
	OutputTokens    int
	ReasoningTokens int
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.ReasoningTokens += other.ReasoningTokens
}

// Response is the reply to a Request.
type Response struct {
	Text  string
	Usage Usage
}

// Generator is the text generation service.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
	CountTokens(ctx context.Context, model, content string) (int, error)
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls the translation behavior.
type Options struct {
	// Model translates product rows.
	Model string
	// AttributeModel translates attribute names (default gemini-2.5-flash).
	AttributeModel string
	// BatchSize is how many rows are sent per request.
	BatchSize int
	// MaxRetries is the number of retries on rate limits, server and network errors. Default: 2.
	MaxRetries int
	// SystemPrompt overrides the row translation prompt. {{targetLang}} is replaced.
	SystemPrompt string
	// AttributePrompt overrides the attribute names prompt. {{targetLang}} and {{attributes}} are replaced.
	AttributePrompt string
	// Logger receives structured diagnostics. Default: no-op.
	Logger *zap.Logger
	// OnProgress is called after each batch is translated.
	OnProgress func(lang langmeta.Code, done, total int)
	// OnLog emits log messages during translation.
	OnLog func(format string, args ...any)
	// OnError emits error messages during translation.
	OnError func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) logError(format string, args ...any) {
	if o.OnError != nil {
		o.OnError(format, args...)
	} else if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) effectiveModel() string {
	if o.Model != "" {
		return o.Model
	}
	return DefaultModel
}

func (o *Options) effectiveAttributeModel() string {
	if o.AttributeModel != "" {
		return o.AttributeModel
	}
	return AttributeModel
}

func (o *Options) effectiveMaxRetries() int {
	if o.MaxRetries > 0 {
		return o.MaxRetries
	}
	return 2
}

func (o *Options) effectiveBatchSize() int {
	if o.BatchSize > 0 {
		return o.BatchSize
	}
	return DefaultBatchSize
}

func (o *Options) logger() *zap.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return zap.NewNop()
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service translates rows and attribute names through a Generator. It is
// safe for concurrent use; concurrent callers share one rate-limit pause.
type Service struct {
	gen  Generator
	opts Options
	rl   *rateLimitState
	log  *zap.Logger
	wait func(ctx context.Context, d time.Duration) error
}

// NewService returns a Service calling gen.
func NewService(gen Generator, opts Options) *Service {
	return &Service{
		gen:  gen,
		opts: opts,
		rl:   &rateLimitState{},
		log:  opts.logger(),
		wait: sleepContext,
	}
}

// Model returns the model used for row translation.
func (s *Service) Model() string {
	return s.opts.effectiveModel()
}

// BatchSize returns the number of rows per request.
func (s *Service) BatchSize() int {
	return s.opts.effectiveBatchSize()
}

// Result is the outcome of translating every batch of one language.
type Result struct {
	Rows    []toon.Row
	Columns []string
	Usage   Usage
	Cost    float64
	Batches int
}

// TranslateRows translates rows batch by batch. onBatch, if set, is called
// after each batch with the number of rows done so far. A failing batch
// stops the language; the result then holds the batches completed before it.
func (s *Service) TranslateRows(ctx context.Context, rows []toon.Row, columns []string, lang langmeta.Code, onBatch func(done, total int)) (Result, error) {
	var res Result
	if len(rows) == 0 {
		return res, nil
	}

	batchSize := s.opts.effectiveBatchSize()
	model := s.opts.effectiveModel()
	rates, _ := RatesFor(model, 0)
	system := s.SystemPrompt(lang)
	batches := splitRows(rows, batchSize)

	for i, batch := range batches {
		encoded, err := toon.Encode(batch, columns, 0)
		if err != nil {
			return res, err
		}

		s.log.Debug("translating batch",
			zap.String("lang", string(lang)),
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Int("rows", len(batch)))

		resp, err := s.generate(ctx, Request{
			Model:             model,
			SystemInstruction: system,
			Prompt:            toon.Prompt(encoded),
		})
		if err != nil {
			return res, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}

		decoded, cols, err := toon.DecodeBatch(resp.Text, batch, columns)
		if err != nil {
			s.opts.logError("Decode failed for %s batch %d: %v", lang, i+1, err)
			return res, fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
		}

		res.Rows = append(res.Rows, decoded...)
		res.Columns = cols
		res.Usage.Add(resp.Usage)
		res.Cost += rates.cost(resp.Usage)
		res.Batches++

		s.log.Debug("batch done",
			zap.String("lang", string(lang)),
			zap.Int("batch", i+1),
			zap.Int("input_tokens", resp.Usage.InputTokens),
			zap.Int("output_tokens", resp.Usage.OutputTokens),
			zap.Int("reasoning_tokens", resp.Usage.ReasoningTokens))

		done := len(res.Rows)
		if onBatch != nil {
			onBatch(done, len(rows))
		}
		if s.opts.OnProgress != nil {
			s.opts.OnProgress(lang, done, len(rows))
		}
	}
	return res, nil
}

// TranslateAttributeNames asks for a translation of every name. An empty
// list makes no call.
func (s *Service) TranslateAttributeNames(ctx context.Context, names []reconcile.AttributeName, lang langmeta.Code) ([]reconcile.AttributeName, Usage, error) {
	if len(names) == 0 {
		return nil, Usage{}, nil
	}

	prompt, err := s.AttributeNamesPrompt(names, lang)
	if err != nil {
		return nil, Usage{}, err
	}
	resp, err := s.generate(ctx, Request{
		Model:  s.opts.effectiveAttributeModel(),
		Prompt: prompt,
	})
	if err != nil {
		return nil, Usage{}, fmt.Errorf("attribute names: %w", err)
	}

	var out []reconcile.AttributeName
	if err := json.Unmarshal([]byte(toon.ExtractCode(resp.Text)), &out); err != nil {
		return nil, resp.Usage, fmt.Errorf("attribute names: %w", &toon.DecodeError{Reason: "invalid JSON: " + err.Error()})
	}
	s.opts.log("Translated %d attribute names into %s", len(out), langmeta.Name(lang))
	return out, resp.Usage, nil
}

// TranslateAttributeNamesCost returns the cost of usage at attribute model rates.
func (s *Service) TranslateAttributeNamesCost(usage Usage) float64 {
	rates, _ := RatesFor(s.opts.effectiveAttributeModel(), 0)
	return rates.cost(usage)
}

func splitRows(rows []toon.Row, size int) [][]toon.Row {
	if size <= 0 || size >= len(rows) {
		return [][]toon.Row{rows}
	}
	var out [][]toon.Row
	for i := 0; i < len(rows); i += size {
		end := i + size
		if end > len(rows) {
			end = len(rows)
		}
		out = append(out, rows[i:end])
	}
	return out
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return strings.TrimSpace(s[:maxLen]) + "..."
}
