package cost

import "github.com/radius-labs/visibility-cli/internal/config"

// Rates holds per-provider pricing configuration.
type Rates struct {
	Anthropic  map[string]ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     map[string]ModelRate `yaml:"openai" mapstructure:"openai"`
	Gemini     map[string]ModelRate `yaml:"gemini" mapstructure:"gemini"`
	Perplexity PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
	Reader     ReaderRate           `yaml:"reader" mapstructure:"reader"`
}

// ModelRate holds per-model token pricing (per million tokens).
type ModelRate struct {
	Input         float64 `yaml:"input" mapstructure:"input"`
	Output        float64 `yaml:"output" mapstructure:"output"`
	CacheWriteMul float64 `yaml:"cache_write_mul" mapstructure:"cache_write_mul"`
	CacheReadMul  float64 `yaml:"cache_read_mul" mapstructure:"cache_read_mul"`
}

// PerplexityRate holds Perplexity pricing.
type PerplexityRate struct {
	PerQuery float64 `yaml:"per_query" mapstructure:"per_query"`
}

// ReaderRate holds reader-proxy pricing.
type ReaderRate struct {
	PerMTok float64 `yaml:"per_mtok" mapstructure:"per_mtok"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Anthropic computes the cost for an Anthropic API call.
func (c *Calculator) Anthropic(model string, input, output, cacheWrite, cacheRead int) float64 {
	rate, ok := c.rates.Anthropic[model]
	if !ok {
		return 0
	}

	inCost := (float64(input) / 1e6) * rate.Input
	outCost := (float64(output) / 1e6) * rate.Output
	cwCost := (float64(cacheWrite) / 1e6) * rate.Input * rate.CacheWriteMul
	crCost := (float64(cacheRead) / 1e6) * rate.Input * rate.CacheReadMul

	return inCost + outCost + cwCost + crCost
}

// OpenAI computes the cost for an OpenAI chat completion.
func (c *Calculator) OpenAI(model string, prompt, completion int) float64 {
	return tokenCost(c.rates.OpenAI, model, prompt, completion)
}

// Gemini computes the cost for a Gemini content generation.
func (c *Calculator) Gemini(model string, prompt, candidates int) float64 {
	return tokenCost(c.rates.Gemini, model, prompt, candidates)
}

// PerplexityQuery returns the flat cost per Perplexity query.
func (c *Calculator) PerplexityQuery() float64 {
	return c.rates.Perplexity.PerQuery
}

// Reader computes the cost for reader-proxy token usage.
func (c *Calculator) Reader(tokens int) float64 {
	return (float64(tokens) / 1e6) * c.rates.Reader.PerMTok
}

func tokenCost(rates map[string]ModelRate, model string, input, output int) float64 {
	rate, ok := rates[model]
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"claude-haiku-4-5-20251001": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"claude-sonnet-4-5-20250929": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		OpenAI: map[string]ModelRate{
			"gpt-4o-mini": {Input: 0.15, Output: 0.60, CacheReadMul: 0.5},
			"gpt-4o":      {Input: 2.50, Output: 10.00, CacheReadMul: 0.5},
		},
		Gemini: map[string]ModelRate{
			"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
			"gemini-2.5-flash": {Input: 0.30, Output: 2.50},
		},
		Perplexity: PerplexityRate{PerQuery: 0.005},
		Reader:     ReaderRate{PerMTok: 0.02},
	}
}

// FromConfig overlays configured pricing onto the default rates. Models
// absent from the configuration keep their defaults; configured models
// replace them wholesale.
func FromConfig(pc config.PricingConfig) Rates {
	rates := DefaultRates()
	overlayModelRates(rates.Anthropic, pc.Anthropic)
	overlayModelRates(rates.OpenAI, pc.OpenAI)
	overlayModelRates(rates.Gemini, pc.Gemini)
	if pc.Perplexity.PerQuery > 0 {
		rates.Perplexity.PerQuery = pc.Perplexity.PerQuery
	}
	if pc.Reader.PerMTok > 0 {
		rates.Reader.PerMTok = pc.Reader.PerMTok
	}
	return rates
}

func overlayModelRates(dst map[string]ModelRate, src map[string]config.ModelPricing) {
	for name, p := range src {
		dst[name] = ModelRate{
			Input:         p.Input,
			Output:        p.Output,
			CacheWriteMul: p.CacheWriteMul,
			CacheReadMul:  p.CacheReadMul,
		}
	}
}
