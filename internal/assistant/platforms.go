package assistant

import (
	"context"

	"github.com/radius-labs/visibility-cli/internal/cost"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/pkg/anthropic"
	"github.com/radius-labs/visibility-cli/pkg/gemini"
	"github.com/radius-labs/visibility-cli/pkg/openai"
	"github.com/radius-labs/visibility-cli/pkg/perplexity"
)

const (
	// answerMaxTokens caps one live answer.
	answerMaxTokens = 1000
	// answerTemperature matches what a consumer chat session runs at.
	answerTemperature = 0.7
)

// answerFraming is the short preamble sent with every live question.
const answerFraming = "You are a helpful AI assistant answering a consumer question. " +
	"Answer naturally and concretely, naming specific companies or products when they are genuinely relevant."

// asker issues one live question against a single platform.
type asker interface {
	Ask(ctx context.Context, question string) (string, model.TokenUsage, error)
}

func (q *Querier) asker(p model.Platform, cred Credential) asker {
	switch p {
	case model.PlatformChatGPT:
		return &chatgptAsker{client: q.newChatGPT(cred), model: cred.Model, costs: q.costs}
	case model.PlatformClaude:
		return &claudeAsker{client: q.newClaude(cred), model: cred.Model, costs: q.costs}
	case model.PlatformGemini:
		return &geminiAsker{client: q.newGemini(cred), model: cred.Model, costs: q.costs}
	case model.PlatformPerplexity:
		return &perplexityAsker{client: q.newPerplexity(cred), model: cred.Model, costs: q.costs}
	}
	return nil
}

type chatgptAsker struct {
	client openai.Client
	model  string
	costs  *cost.Calculator
}

func (a *chatgptAsker) Ask(ctx context.Context, question string) (string, model.TokenUsage, error) {
	temp := float32(answerTemperature)
	resp, err := a.client.ChatCompletion(ctx, openai.ChatRequest{
		Model:       a.model,
		System:      answerFraming,
		Prompt:      question,
		MaxTokens:   answerMaxTokens,
		Temperature: &temp,
	})
	if err != nil {
		return "", model.TokenUsage{}, err
	}

	usage := model.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	usage.Cost = a.costs.OpenAI(a.model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp.Text, usage, nil
}

type claudeAsker struct {
	client anthropic.Client
	model  string
	costs  *cost.Calculator
}

func (a *claudeAsker) Ask(ctx context.Context, question string) (string, model.TokenUsage, error) {
	temp := float64(answerTemperature)
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.model,
		MaxTokens:   answerMaxTokens,
		System:      []anthropic.SystemBlock{{Text: answerFraming}},
		Messages:    []anthropic.Message{{Role: "user", Content: question}},
		Temperature: &temp,
	})
	if err != nil {
		return "", model.TokenUsage{}, err
	}

	usage := model.TokenUsage{
		InputTokens:         int(resp.Usage.InputTokens),
		OutputTokens:        int(resp.Usage.OutputTokens),
		CacheCreationTokens: int(resp.Usage.CacheCreationInputTokens),
		CacheReadTokens:     int(resp.Usage.CacheReadInputTokens),
	}
	usage.Cost = a.costs.Anthropic(a.model,
		usage.InputTokens, usage.OutputTokens, usage.CacheCreationTokens, usage.CacheReadTokens)
	return resp.Text(), usage, nil
}

type geminiAsker struct {
	client gemini.Client
	model  string
	costs  *cost.Calculator
}

func (a *geminiAsker) Ask(ctx context.Context, question string) (string, model.TokenUsage, error) {
	temp := float64(answerTemperature)
	resp, err := a.client.GenerateContent(ctx, gemini.GenerateRequest{
		Contents:          []gemini.Content{{Role: "user", Parts: []gemini.Part{{Text: question}}}},
		SystemInstruction: &gemini.Content{Parts: []gemini.Part{{Text: answerFraming}}},
		GenerationConfig:  &gemini.GenerationConfig{Temperature: &temp, MaxOutputTokens: answerMaxTokens},
	})
	if err != nil {
		return "", model.TokenUsage{}, err
	}

	var usage model.TokenUsage
	if m := resp.UsageMetadata; m != nil {
		usage.InputTokens = m.PromptTokenCount
		usage.OutputTokens = m.CandidatesTokenCount
		usage.Cost = a.costs.Gemini(a.model, m.PromptTokenCount, m.CandidatesTokenCount)
	}
	return resp.Text(), usage, nil
}

type perplexityAsker struct {
	client perplexity.Client
	model  string
	costs  *cost.Calculator
}

func (a *perplexityAsker) Ask(ctx context.Context, question string) (string, model.TokenUsage, error) {
	temp := float64(answerTemperature)
	maxTokens := answerMaxTokens
	resp, err := a.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: a.model,
		Messages: []perplexity.Message{
			{Role: "system", Content: answerFraming},
			{Role: "user", Content: question},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return "", model.TokenUsage{}, err
	}

	usage := model.TokenUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
		Cost:         a.costs.PerplexityQuery(),
	}
	return resp.Text(), usage, nil
}

func defaultChatGPTClient(cred Credential) openai.Client {
	var opts []openai.Option
	if cred.Model != "" {
		opts = append(opts, openai.WithModel(cred.Model))
	}
	if cred.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cred.BaseURL))
	}
	return openai.NewClient(cred.Key, opts...)
}

// defaultClaudeClient ignores cred.BaseURL; the Anthropic client has no
// endpoint override.
func defaultClaudeClient(cred Credential) anthropic.Client {
	return anthropic.NewClient(cred.Key)
}

func defaultGeminiClient(cred Credential) gemini.Client {
	var opts []gemini.Option
	if cred.Model != "" {
		opts = append(opts, gemini.WithModel(cred.Model))
	}
	if cred.BaseURL != "" {
		opts = append(opts, gemini.WithBaseURL(cred.BaseURL))
	}
	return gemini.NewClient(cred.Key, opts...)
}

func defaultPerplexityClient(cred Credential) perplexity.Client {
	var opts []perplexity.Option
	if cred.Model != "" {
		opts = append(opts, perplexity.WithModel(cred.Model))
	}
	if cred.BaseURL != "" {
		opts = append(opts, perplexity.WithBaseURL(cred.BaseURL))
	}
	return perplexity.NewClient(cred.Key, opts...)
}
