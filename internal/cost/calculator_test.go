package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/radius-labs/visibility-cli/internal/config"
)

func testRates() Rates {
	return Rates{
		Anthropic: map[string]ModelRate{
			"haiku": {
				Input: 0.80, Output: 4.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
			"sonnet": {
				Input: 3.00, Output: 15.00,
				CacheWriteMul: 1.25, CacheReadMul: 0.1,
			},
		},
		OpenAI: map[string]ModelRate{
			"mini": {Input: 0.15, Output: 0.60, CacheReadMul: 0.5},
		},
		Gemini: map[string]ModelRate{
			"flash": {Input: 0.10, Output: 0.40},
		},
		Perplexity: PerplexityRate{PerQuery: 0.005},
		Reader:     ReaderRate{PerMTok: 0.02},
	}
}

func TestAnthropic(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name       string
		model      string
		input      int
		output     int
		cacheWrite int
		cacheRead  int
		want       float64
	}{
		{
			name:  "haiku simple",
			model: "haiku",
			input: 1000000, output: 100000,
			want: 0.80 + 0.40, // 0.80 input + 0.40 output
		},
		{
			name:  "haiku with cache",
			model: "haiku",
			input: 500000, output: 50000,
			cacheWrite: 200000, cacheRead: 300000,
			// in: 0.5M/1M * 0.80 = 0.40
			// out: 0.05M/1M * 4.00 = 0.20
			// cw: 0.2M/1M * 0.80 * 1.25 = 0.20
			// cr: 0.3M/1M * 0.80 * 0.1 = 0.024
			want: 0.40 + 0.20 + 0.20 + 0.024,
		},
		{
			name:  "sonnet",
			model: "sonnet",
			input: 1000000, output: 100000,
			want: 3.00 + 1.50, // 3.00 input + 1.50 output
		},
		{
			name:  "unknown model returns 0",
			model: "unknown",
			input: 1000000, output: 1000000,
			want: 0,
		},
		{
			name:  "zero tokens returns 0",
			model: "haiku",
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Anthropic(tt.model, tt.input, tt.output, tt.cacheWrite, tt.cacheRead)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

func TestOpenAI(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	assert.InDelta(t, 0.15+0.06, calc.OpenAI("mini", 1000000, 100000), 0.001)
	assert.InDelta(t, 0, calc.OpenAI("unknown", 1000000, 1000000), 0.001)
	assert.InDelta(t, 0, calc.OpenAI("mini", 0, 0), 0.001)
}

func TestGemini(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	assert.InDelta(t, 0.10+0.04, calc.Gemini("flash", 1000000, 100000), 0.001)
	assert.InDelta(t, 0, calc.Gemini("unknown", 1000000, 1000000), 0.001)
}

func TestPerplexityQuery(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())
	assert.InDelta(t, 0.005, calc.PerplexityQuery(), 0.0001)
}

func TestReader(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		name   string
		tokens int
		want   float64
	}{
		{"1M tokens", 1000000, 0.02},
		{"500K tokens", 500000, 0.01},
		{"zero tokens", 0, 0},
		{"small", 2150, 2150.0 / 1e6 * 0.02},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := calc.Reader(tt.tokens)
			assert.InDelta(t, tt.want, got, 0.0001)
		})
	}
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	rates := DefaultRates()

	assert.Contains(t, rates.Anthropic, "claude-haiku-4-5-20251001")
	assert.Contains(t, rates.Anthropic, "claude-sonnet-4-5-20250929")
	assert.Contains(t, rates.OpenAI, "gpt-4o-mini")
	assert.Contains(t, rates.Gemini, "gemini-2.0-flash")
	assert.InDelta(t, 0.005, rates.Perplexity.PerQuery, 0.001)
	assert.InDelta(t, 0.02, rates.Reader.PerMTok, 0.001)
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	rates := FromConfig(config.PricingConfig{
		Anthropic: map[string]config.ModelPricing{
			"claude-haiku-4-5-20251001": {Input: 1.00, Output: 5.00, CacheWriteMul: 2.0, CacheReadMul: 0.2},
		},
		OpenAI: map[string]config.ModelPricing{
			"gpt-5-mini": {Input: 0.25, Output: 2.00},
		},
		Perplexity: config.PerplexityPricing{PerQuery: 0.008},
	})

	// Configured model replaces the default entry.
	assert.InDelta(t, 1.00, rates.Anthropic["claude-haiku-4-5-20251001"].Input, 0.001)
	assert.InDelta(t, 2.0, rates.Anthropic["claude-haiku-4-5-20251001"].CacheWriteMul, 0.001)

	// Unconfigured models keep defaults.
	assert.InDelta(t, 3.00, rates.Anthropic["claude-sonnet-4-5-20250929"].Input, 0.001)
	assert.InDelta(t, 0.15, rates.OpenAI["gpt-4o-mini"].Input, 0.001)

	// New models are added alongside the defaults.
	assert.InDelta(t, 0.25, rates.OpenAI["gpt-5-mini"].Input, 0.001)

	assert.InDelta(t, 0.008, rates.Perplexity.PerQuery, 0.0001)
	// Zero-valued reader pricing keeps the default.
	assert.InDelta(t, 0.02, rates.Reader.PerMTok, 0.001)
}
