package translate

import (
	"context"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/minios-linux/wootrans/langmeta"
	"github.com/minios-linux/wootrans/toon"
)

// Rates are USD prices per million tokens.
type Rates struct {
	Input  float64
	Output float64
}

func (r Rates) cost(u Usage) float64 {
	return (float64(u.InputTokens)*r.Input +
		float64(u.OutputTokens)*r.Output +
		float64(u.ReasoningTokens)*r.Output) / 1_000_000
}

// ModelPricing is the price list of one model.
type ModelPricing struct {
	DisplayName string
	Base        Rates
	// LongContext applies above LongContextThreshold tokens; nil when the
	// model has a single tier.
	LongContext *Rates
}

// LongContextThreshold is the context size above which long-context rates apply.
const LongContextThreshold = 200_000

// FallbackModel prices models missing from Pricing.
const FallbackModel = "gemini-3-flash"

// Pricing lists Gemini API paid tier prices.
var Pricing = map[string]ModelPricing{
	"gemini-2.5-pro": {
		DisplayName: "Gemini 2.5 Pro",
		Base:        Rates{Input: 1.25, Output: 10},
		LongContext: &Rates{Input: 2.5, Output: 15},
	},
	"gemini-2.5-flash": {
		DisplayName: "Gemini 2.5 Flash",
		Base:        Rates{Input: 0.3, Output: 2.5},
	},
	"gemini-3-flash": {
		DisplayName: "Gemini 3.0 Flash",
		Base:        Rates{Input: 0.5, Output: 3.0},
	},
	"gemini-3-pro-preview": {
		DisplayName: "Gemini 3.0 Pro (Preview)",
		Base:        Rates{Input: 2, Output: 12},
		LongContext: &Rates{Input: 4, Output: 18},
	},
	"gemini-2-flash": {
		DisplayName: "Gemini 2.0 Flash",
		Base:        Rates{Input: 0.075, Output: 0.3},
	},
}

// Models returns the priced model IDs, sorted.
func Models() []string {
	out := make([]string, 0, len(Pricing))
	for id := range Pricing {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func lookupPricing(model string) (ModelPricing, bool) {
	model = strings.TrimPrefix(model, "models/")
	if p, ok := Pricing[model]; ok {
		return p, true
	}
	// "gemini-3-flash-preview" is priced as "gemini-3-flash".
	if p, ok := Pricing[strings.TrimSuffix(model, "-preview")]; ok {
		return p, true
	}
	return Pricing[FallbackModel], false
}

// RatesFor returns the rates of model for a request of contextTokens. The
// boolean is false when model is unknown and the fallback rates were used.
func RatesFor(model string, contextTokens int) (Rates, bool) {
	p, known := lookupPricing(model)
	if p.LongContext != nil && contextTokens > LongContextThreshold {
		return *p.LongContext, known
	}
	return p.Base, known
}

// CostEstimate is the priced usage of a model.
type CostEstimate struct {
	Model       string
	InputCost   float64
	OutputCost  float64
	TotalCost   float64
	Rates       Rates
	LongContext bool
	Fallback    bool
}

// EstimateCost prices usage. Reasoning tokens are billed as output.
func EstimateCost(model string, usage Usage, contextSize int) CostEstimate {
	p, known := lookupPricing(model)
	rates, _ := RatesFor(model, contextSize)
	in := float64(usage.InputTokens) * rates.Input / 1_000_000
	out := float64(usage.OutputTokens+usage.ReasoningTokens) * rates.Output / 1_000_000
	return CostEstimate{
		Model:       p.DisplayName,
		InputCost:   round6(in),
		OutputCost:  round6(out),
		TotalCost:   round6(in + out),
		Rates:       rates,
		LongContext: p.LongContext != nil && contextSize > LongContextThreshold,
		Fallback:    !known,
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

// Price is an estimated price breakdown.
type Price struct {
	Total         float64
	Input         float64
	Output        float64
	PerWordTotal  float64
	PerWordInput  float64
	PerWordOutput float64
}

// Estimate is the projected token count and price of one language.
type Estimate struct {
	Language     langmeta.Code
	Rows         int
	WordCount    int
	TokenCount   int
	Price        Price
	Encoded      string
	SystemPrompt string
	Prompt       string
	// Batches is the number of requests needed for every row.
	Batches int
	// ProjectedTotal is Price.Total scaled to every batch.
	ProjectedTotal float64
}

// Estimate counts the tokens of the first batch of rows and prices them.
// Output is assumed to be as long as the input.
func (s *Service) Estimate(ctx context.Context, rows []toon.Row, columns []string, lang langmeta.Code) (Estimate, error) {
	est := Estimate{Language: lang, Rows: len(rows)}
	if len(rows) == 0 {
		return est, nil
	}

	batchSize := s.opts.effectiveBatchSize()
	encoded, err := toon.Encode(rows, columns, batchSize)
	if err != nil {
		return est, err
	}
	system := s.SystemPrompt(lang)
	prompt := toon.Prompt(encoded)
	content := system + prompt
	model := s.opts.effectiveModel()

	tokens, err := s.countTokens(ctx, model, content)
	if err != nil {
		return est, err
	}
	words := len(strings.Split(content, " "))
	rates, _ := RatesFor(model, tokens)

	in := float64(tokens) * rates.Input / 1_000_000
	out := float64(tokens) * rates.Output / 1_000_000
	est.WordCount = words
	est.TokenCount = tokens
	est.Encoded = encoded
	est.SystemPrompt = system
	est.Prompt = prompt
	est.Price = Price{
		Total:         in + out,
		Input:         in,
		Output:        out,
		PerWordInput:  in * 100 / float64(words),
		PerWordOutput: out * 100 / float64(words),
		PerWordTotal:  (in + out) * 100 / float64(words),
	}
	est.Batches = (len(rows) + batchSize - 1) / batchSize
	est.ProjectedTotal = est.Price.Total * float64(est.Batches)

	s.log.Debug("estimate",
		zap.String("lang", string(lang)),
		zap.Int("rows", len(rows)),
		zap.Int("tokens", tokens),
		zap.Int("words", words),
		zap.Int("batches", est.Batches))
	return est, nil
}
