// Package question turns a knowledge representation into the fixed panel of
// customer questions the assistant platforms are asked. Wording varies between
// runs, but a deterministic repair pass guarantees the panel's shape: every
// platform targeted, every intent category present, and no brand names inside
// discovery questions.
package question

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/radius-labs/visibility-cli/internal/config"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/internal/resilience"
	"github.com/radius-labs/visibility-cli/pkg/anthropic"
)

const questionSystemText = `You design the question panel for an AI visibility analysis.

Generate realistic questions that prospective customers would ask an AI assistant about this market.

Rules:
1. Questions must be specific to this company's business model, never generic.
2. Questions must read like real queries typed into ChatGPT, Claude, Gemini, or Perplexity.
3. Questions must be neutral, never leading.
4. Cover all five intent categories:
   - discovery: finding solutions in the category. NEVER name the company here; the asker does not know it yet.
   - comparison: weighing the company or its category against alternatives.
   - trust: security, reliability, and compliance concerns.
   - use-case: fit for a specific situation or team.
   - decision: the final buying call.
5. Return ONLY valid JSON.`

const questionPromptTmpl = `Generate %d visibility test questions for this company:

COMPANY: %s
DOMAIN: %s

OVERVIEW: %s
OFFERINGS: %s
TARGET CUSTOMERS: %s
POSITIONING: %s

Output JSON:
{
  "questions": [
    {
      "text": "the question a real user would type",
      "category": "discovery|comparison|trust|use-case|decision",
      "user_intent": "what the asker is trying to accomplish",
      "expected_mention": "how the company should ideally appear in the answer",
      "relevance": 0.8
    }
  ]
}

Requirements:
1. Exactly %d questions, mixing all five categories.
2. Discovery questions must not contain "%s".
3. relevance weights the question for visibility scoring, 0.0 to 1.0.`

// Generator produces question panels from a knowledge representation.
type Generator struct {
	client    anthropic.Client
	cfg       config.QuestionConfig
	templates Templates
}

// NewGenerator creates a Generator. A nil client is allowed: every panel then
// comes from the templates. The error is reserved for an unreadable template
// override file.
func NewGenerator(client anthropic.Client, cfg config.QuestionConfig) (*Generator, error) {
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 3000
	}
	templates := DefaultTemplates()
	if cfg.TemplatePath != "" {
		loaded, err := LoadTemplates(cfg.TemplatePath)
		if err != nil {
			return nil, err
		}
		templates = loaded
	}
	return &Generator{client: client, cfg: cfg, templates: templates}, nil
}

// Result is the outcome of one panel generation.
type Result struct {
	Panel model.QuestionPanel
	Usage model.TokenUsage
	// Warning is set when generation degraded to the template panel.
	Warning  *model.QualityWarning
	Duration int64
}

// Generate builds the panel for one run. Generation failure degrades to the
// deterministic template panel; the returned error is reserved for context
// cancellation.
func (g *Generator) Generate(ctx context.Context, domain string, kr *model.KnowledgeRepresentation) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "question: generate cancelled")
	}
	start := time.Now()
	brand := model.BrandLabel(domain)

	res := &Result{}
	questions, usage, err := g.generate(ctx, domain, brand, kr)
	res.Usage = usage
	if err != nil {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "question: generate cancelled")
		}
		zap.L().Warn("question: generation degraded to template panel",
			zap.String("domain", domain),
			zap.Error(err),
		)
		res.Panel = g.fallbackPanel(brand, kr)
		res.Warning = &model.QualityWarning{
			Tier:    model.TierLimited,
			Phase:   "generate_questions",
			Reason:  "question generation unavailable; using template panel",
			Signals: map[string]any{"cause": rootCause(err)},
		}
		res.Duration = time.Since(start).Milliseconds()
		return res, nil
	}

	res.Panel = g.buildPanel(questions, brand, kr)
	res.Duration = time.Since(start).Milliseconds()

	zap.L().Info("question: panel generated",
		zap.String("domain", domain),
		zap.Int("questions", len(res.Panel.Questions)),
		zap.Int("input_tokens", usage.InputTokens),
		zap.Int("output_tokens", usage.OutputTokens),
	)
	return res, nil
}

func (g *Generator) generate(ctx context.Context, domain, brand string, kr *model.KnowledgeRepresentation) ([]model.Question, model.TokenUsage, error) {
	var usage model.TokenUsage
	if g.client == nil {
		return nil, usage, eris.New("question: no generation client configured")
	}
	if kr == nil {
		return nil, usage, eris.New("question: no knowledge representation")
	}

	prompt := fmt.Sprintf(questionPromptTmpl,
		model.PanelSize,
		brand,
		domain,
		kr.Overview,
		kr.ProductsAndServices,
		kr.TargetCustomers,
		kr.Positioning,
		model.PanelSize,
		brand,
	)
	req := anthropic.MessageRequest{
		Model:     g.cfg.Model,
		MaxTokens: int64(g.cfg.MaxTokens),
		System:    []anthropic.SystemBlock{{Text: questionSystemText}},
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	}

	resp, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Second,
		OnRetry:        resilience.RetryLogger("anthropic", "generate_questions"),
	}, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return g.client.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, usage, eris.Wrap(err, "question: generation call")
	}
	usage = toModelUsage(resp.Usage)

	questions, err := parsePanel(resp.Text())
	if err != nil {
		return nil, usage, err
	}
	return questions, usage, nil
}

type panelWire struct {
	Questions []questionWire `json:"questions"`
}

type questionWire struct {
	Text            string   `json:"text"`
	Category        string   `json:"category"`
	UserIntent      string   `json:"user_intent"`
	ExpectedMention string   `json:"expected_mention"`
	Relevance       *float64 `json:"relevance"`
}

// parsePanel decodes the generation response. Categories outside the schema
// are left blank for the repair pass to assign; a panel with no usable
// questions at all is a schema violation.
func parsePanel(text string) ([]model.Question, error) {
	var wire panelWire
	if err := json.Unmarshal([]byte(cleanJSON(text)), &wire); err != nil {
		return nil, &model.SchemaViolationError{Stage: "questions", Detail: err.Error()}
	}

	questions := make([]model.Question, 0, len(wire.Questions))
	for _, w := range wire.Questions {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		cat := model.IntentCategory(strings.ToLower(strings.TrimSpace(w.Category)))
		if !model.ValidIntentCategory(cat) {
			cat = ""
		}
		relevance := 0.5
		if w.Relevance != nil {
			relevance = clamp01(*w.Relevance)
		}
		questions = append(questions, model.Question{
			Text:            text,
			IntentCategory:  cat,
			UserIntent:      strings.TrimSpace(w.UserIntent),
			ExpectedMention: strings.TrimSpace(w.ExpectedMention),
			Relevance:       relevance,
		})
	}
	if len(questions) == 0 {
		return nil, &model.SchemaViolationError{Stage: "questions", Detail: "no usable questions in response"}
	}
	return questions, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
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
