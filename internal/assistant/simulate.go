package assistant

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

const (
	defaultSimulationModel = "claude-haiku-4-5-20251001"

	// simulationMaxTokens covers a full panel of short answers in one call.
	simulationMaxTokens = 4000
	// simAboutBudget caps how much company profile the prompt carries.
	simAboutBudget = 600
)

const simulationSystemText = `You write the answers popular AI assistants would plausibly give to consumer questions.

Rules:
- Match each named assistant's voice: chatgpt is conversational, claude is careful and structured, gemini is concise and factual, perplexity leans on the kinds of sources it would search.
- Answer from general market knowledge. Name the company under test only where a real assistant plausibly would; name well-known alternatives where that is the realistic answer.
- Keep every answer between two and four sentences.
- Return ONLY a valid JSON object. No prose before or after, no markdown fences.`

const simulationPromptTmpl = `COMPANY: %s
DOMAIN: %s
ABOUT: %s

QUESTIONS:
%s
Write the answer each assistant would most plausibly give to its question.

Return a JSON object shaped exactly like:
{"answers": [{"ref": 0, "platform": "chatgpt", "text": "<answer>"}]}

Include exactly one entry per question, with ref and platform copied unchanged.`

// simItem is one question routed to the batched simulation call.
type simItem struct {
	Ref      int
	Platform model.Platform
	Question string
}

// simulate answers every item in one generation call and returns the texts
// keyed by panel ref. Token usage is reported even when the output is
// rejected.
func (q *Querier) simulate(ctx context.Context, domain, brand string, kr *model.KnowledgeRepresentation, items []simItem) (map[int]string, model.TokenUsage, error) {
	var usage model.TokenUsage
	if q.sim == nil {
		return nil, usage, eris.New("assistant: no simulation client configured")
	}

	simModel := q.cfg.SimulationModel
	if simModel == "" {
		simModel = defaultSimulationModel
	}

	req := anthropic.MessageRequest{
		Model:     simModel,
		MaxTokens: simulationMaxTokens,
		System:    []anthropic.SystemBlock{{Text: simulationSystemText}},
		Messages: []anthropic.Message{
			{Role: "user", Content: buildSimulationPrompt(domain, brand, kr, items)},
		},
	}

	resp, err := resilience.DoVal(ctx, resilience.RetryConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Second,
		OnRetry:        resilience.RetryLogger("anthropic", "simulate_answers"),
	}, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return q.sim.CreateMessage(ctx, req)
	})
	if err != nil {
		return nil, usage, eris.Wrap(err, "assistant: simulation call")
	}

	usage = model.TokenUsage{
		InputTokens:         int(resp.Usage.InputTokens),
		OutputTokens:        int(resp.Usage.OutputTokens),
		CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
		CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
	}
	usage.Cost = q.costs.Anthropic(simModel,
		usage.InputTokens, usage.OutputTokens, usage.CacheCreationTokens, usage.CacheReadTokens)

	texts, err := parseSimulation(resp.Text(), items)
	if err != nil {
		return nil, usage, err
	}
	return texts, usage, nil
}

func buildSimulationPrompt(domain, brand string, kr *model.KnowledgeRepresentation, items []simItem) string {
	about := "(no company profile available)"
	if kr != nil && strings.TrimSpace(kr.Overview) != "" {
		about = truncateText(strings.TrimSpace(kr.Overview), simAboutBudget)
	}

	var sb strings.Builder
	for _, it := range items {
		fmt.Fprintf(&sb, "- ref %d [%s]: %s\n", it.Ref, it.Platform, it.Question)
	}

	name := brand
	if name == "" {
		name = domain
	}
	return fmt.Sprintf(simulationPromptTmpl, name, domain, about, sb.String())
}

// parseSimulation keeps only entries whose ref was actually requested and
// whose text is non-empty; refs the model dropped fall back to canned
// answers at assembly.
func parseSimulation(text string, items []simItem) (map[int]string, error) {
	var wire struct {
		Answers []struct {
			Ref      int    `json:"ref"`
			Platform string `json:"platform"`
			Text     string `json:"text"`
		} `json:"answers"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(text)), &wire); err != nil {
		return nil, &model.SchemaViolationError{Stage: "simulation", Detail: err.Error()}
	}

	wanted := make(map[int]bool, len(items))
	for _, it := range items {
		wanted[it.Ref] = true
	}

	out := make(map[int]string, len(items))
	for _, a := range wire.Answers {
		t := strings.TrimSpace(a.Text)
		if t == "" || !wanted[a.Ref] {
			continue
		}
		out[a.Ref] = t
	}
	if len(out) == 0 {
		return nil, &model.SchemaViolationError{Stage: "simulation", Detail: "no usable answers in response"}
	}
	return out, nil
}

// cannedTexts are the last-resort simulated answers, one voice per platform.
// Each names the brand once, mid-answer, in wording free of the sentiment
// and recommendation keywords so canned runs analyze neutrally.
var cannedTexts = map[model.Platform]string{
	model.PlatformChatGPT: "There are a few well-known options in this space, and the right pick depends on your team size and budget. " +
		"%s is one of the providers people evaluate, usually alongside larger established names. " +
		"I'd compare feature sets and pricing pages before deciding.",
	model.PlatformClaude: "A few providers serve this need, each with different strengths. " +
		"%s appears among the options worth reviewing, though established alternatives may fit some teams better. " +
		"Reviewing each vendor's documentation is the most reliable way to compare them.",
	model.PlatformGemini: "Several companies offer products in this category. " +
		"%s is among the vendors in this market, with the usual differences in pricing and integrations. " +
		"Check each vendor's site for current details.",
	model.PlatformPerplexity: "Based on vendor sites and comparison roundups, several providers operate in this category. " +
		"%s shows up in some of those roundups, with final rankings varying by source. " +
		"Most comparisons weigh pricing, integration options, and support quality.",
}

func cannedAnswer(platform model.Platform, brand string) string {
	name := brand
	if name == "" {
		name = "The company"
	}
	tmpl, ok := cannedTexts[platform]
	if !ok {
		tmpl = cannedTexts[model.PlatformChatGPT]
	}
	return fmt.Sprintf(tmpl, name)
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

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
