package knowledge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/resilience"
	"github.com/radius-labs/visibility-cli/pkg/anthropic"
)

// ImproveMode selects how a knowledge field gets rewritten.
type ImproveMode string

const (
	// ModeImprove polishes grammar and phrasing while keeping length and facts.
	ModeImprove ImproveMode = "improve"
	// ModeConcise shortens the text to its essentials.
	ModeConcise ImproveMode = "concise"
	// ModeAuthoritative shifts the text to a confident expert register.
	ModeAuthoritative ImproveMode = "authoritative"
	// ModeRegenerate rewrites from scratch with new structure.
	ModeRegenerate ImproveMode = "regenerate"
)

// ParseImproveMode validates a user-supplied mode string.
func ParseImproveMode(s string) (ImproveMode, error) {
	switch m := ImproveMode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeImprove, ModeConcise, ModeAuthoritative, ModeRegenerate:
		return m, nil
	default:
		return "", eris.Errorf("knowledge: unknown improve mode %q", s)
	}
}

var improveInstructions = map[ImproveMode]string{
	ModeImprove:       "Improve the writing: fix grammar, tighten weak phrasing, and make it more compelling. Keep the same facts and roughly the same length.",
	ModeConcise:       "Rewrite the text to be significantly more concise. Keep every fact; cut filler and repetition.",
	ModeAuthoritative: "Rewrite the text in a confident, expert tone. Keep every fact; replace hedging with direct statements.",
	ModeRegenerate:    "Rewrite the text from scratch with a different structure and fresh phrasing. Keep every fact.",
}

const improveSystemText = `You rewrite brand profile text on request.

Rules:
- Preserve every fact in the original text. Never add facts.
- Return ONLY a JSON object: {"text": "<rewritten text>"}`

// Improve rewrites a single knowledge field. Unlike Synthesize it has no
// fallback: a failure here leaves the stored field untouched, so errors
// propagate to the caller.
func (s *Synthesizer) Improve(ctx context.Context, text string, mode ImproveMode) (string, model.TokenUsage, error) {
	var usage model.TokenUsage
	if s.client == nil {
		return "", usage, eris.New("knowledge: no generation client configured")
	}
	instruction, ok := improveInstructions[mode]
	if !ok {
		return "", usage, eris.Errorf("knowledge: unknown improve mode %q", mode)
	}
	if strings.TrimSpace(text) == "" {
		return "", usage, eris.New("knowledge: nothing to improve")
	}

	temp := s.cfg.Temperature
	req := anthropic.MessageRequest{
		Model:       s.cfg.Model,
		MaxTokens:   int64(s.cfg.MaxTokens),
		Temperature: &temp,
		System:      []anthropic.SystemBlock{{Text: improveSystemText}},
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: fmt.Sprintf("%s\n\nTEXT:\n%s", instruction, text),
		}},
	}

	resp, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Second,
		OnRetry:        resilience.RetryLogger("anthropic", "improve"),
	}, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return s.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return "", usage, eris.Wrap(err, "knowledge: improve field")
	}
	usage = toModelUsage(resp.Usage)

	var wire struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &wire); err != nil {
		return "", usage, &model.SchemaViolationError{Stage: "improve", Detail: err.Error()}
	}
	rewritten := strings.TrimSpace(wire.Text)
	if rewritten == "" {
		return "", usage, &model.SchemaViolationError{Stage: "improve", Detail: "empty rewritten text"}
	}
	return rewritten, usage, nil
}
