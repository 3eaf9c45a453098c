// Package knowledge synthesizes a brand's knowledge representation from
// crawled site content with one schema-constrained generation call, and
// maintains it afterwards: field-level edits, evidence items, improve-text
// rewrites. Synthesis never fails a run; every failure path degrades to the
// deterministic demo profile with a warning attached.
package knowledge

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/config"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/resilience"
	"github.com/radius-labs/visibility-cli/pkg/anthropic"
)

// minCorpusChars is the least crawled text worth sending to the model.
const minCorpusChars = 200

// Synthesizer builds and rewrites knowledge representations.
type Synthesizer struct {
	client anthropic.Client
	cfg    config.SynthesisConfig
}

// New creates a Synthesizer. A nil client is allowed: every generation then
// degrades to its deterministic fallback.
func New(client anthropic.Client, cfg config.SynthesisConfig) *Synthesizer {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5-20250929"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	return &Synthesizer{client: client, cfg: cfg}
}

// Result is the outcome of one synthesis pass.
type Result struct {
	KR    model.KnowledgeRepresentation
	Usage model.TokenUsage
	// Warning is set when the pass degraded to the demo profile.
	Warning  *model.QualityWarning
	Duration int64
}

// Synthesize runs one schema-constrained generation call over the crawl
// bundle. Pinned fields are user-authored values that override whatever the
// model writes; they also apply to the demo profile. The returned error is
// reserved for context cancellation: missing credentials, a dead API, or
// malformed output all degrade to the demo profile instead.
func (s *Synthesizer) Synthesize(ctx context.Context, bundle *model.CrawlBundle, pinned map[string]string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "knowledge: synthesize cancelled")
	}
	start := time.Now()

	domain := ""
	confidence := model.ConfidenceLow
	if bundle != nil {
		domain = bundle.Domain
		confidence = bundle.ContentConfidence()
	}

	res := &Result{}
	kr, usage, err := s.generate(ctx, bundle, pinned)
	res.Usage = usage
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "knowledge: synthesize cancelled")
		}
		zap.L().Warn("knowledge: synthesis degraded to demo profile",
			zap.String("domain", domain),
			zap.Error(err),
		)
		res.KR = DemoProfile(domain)
		applyPins(&res.KR, pinned)
		res.Warning = &model.QualityWarning{
			Tier:    model.TierLimited,
			Phase:   "synthesize",
			Reason:  "knowledge synthesis unavailable; using demo profile",
			Signals: map[string]any{"cause": rootCause(err)},
		}
		res.Duration = time.Since(start).Milliseconds()
		return res, nil
	}

	kr.Confidence = confidence
	res.KR = *kr
	res.Duration = time.Since(start).Milliseconds()

	zap.L().Info("knowledge: synthesized",
		zap.String("domain", domain),
		zap.String("confidence", string(confidence)),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
	)
	return res, nil
}

func (s *Synthesizer) generate(ctx context.Context, bundle *model.CrawlBundle, pinned map[string]string) (*model.KnowledgeRepresentation, model.TokenUsage, error) {
	var usage model.TokenUsage
	if s.client == nil {
		return nil, usage, eris.New("knowledge: no generation client configured")
	}
	if bundle == nil || bundle.TotalChars < minCorpusChars {
		total := 0
		if bundle != nil {
			total = bundle.TotalChars
		}
		return nil, usage, eris.Errorf("knowledge: corpus too thin to ground synthesis (%d chars)", total)
	}

	temp := s.cfg.Temperature
	req := anthropic.MessageRequest{
		Model:       s.cfg.Model,
		MaxTokens:   int64(s.cfg.MaxTokens),
		Temperature: &temp,
		System:      []anthropic.SystemBlock{{Text: synthesisSystemText}},
		Messages: []anthropic.Message{
			{Role: "user", Content: buildSynthesisPrompt(bundle, pinned)},
		},
	}

	// Retry covers transient network failures only; a rejected or malformed
	// response is not worth a second full generation.
	resp, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Second,
		OnRetry:        resilience.RetryLogger("anthropic", "synthesize"),
	}, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return s.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, usage, eris.Wrap(err, "knowledge: synthesis call")
	}
	usage = toModelUsage(resp.Usage)

	kr, err := parseKR(resp.Text())
	if err != nil {
		return nil, usage, err
	}
	applyPins(kr, pinned)
	kr.Generated = true
	kr.GeneratedAt = time.Now().UTC()

	if err := Validate(kr); err != nil {
		return nil, usage, err
	}
	return kr, usage, nil
}

// applyPins overwrites text fields with user-authored values. A pinned field
// is authoritative, so its confidence is verified by definition.
func applyPins(kr *model.KnowledgeRepresentation, pinned map[string]string) {
	if len(pinned) == 0 {
		return
	}
	if kr.FieldConfidence == nil {
		kr.FieldConfidence = make(map[string]model.FieldConfidence, len(pinned))
	}
	known := kr.TextFields()
	for name, value := range pinned {
		if _, ok := known[name]; !ok {
			continue
		}
		kr.SetTextField(name, value)
		kr.FieldConfidence[name] = model.FieldVerified
	}
}

func toModelUsage(u anthropic.TokenUsage) model.TokenUsage {
	return model.TokenUsage{
		InputTokens:         int(u.InputTokens),
		OutputTokens:        int(u.OutputTokens),
		CacheCreationTokens: int(u.CacheCreationInputTokens),
		CacheReadTokens:     int(u.CacheReadInputTokens),
	}
}

// rootCause trims an error to its innermost message for warning payloads.
func rootCause(err error) string {
	if err == nil {
		return ""
	}
	if cause := eris.Cause(err); cause != nil {
		return cause.Error()
	}
	return err.Error()
}

// cleanJSON strips markdown fences and extracts the JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
