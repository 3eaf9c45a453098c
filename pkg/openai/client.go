// Package openai wraps the OpenAI chat completions API behind the small
// surface the platform layer needs.
package openai

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"
)

const defaultModel = "gpt-4o-mini"

// Client performs chat completions against the OpenAI API.
type Client interface {
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is our own request type for a single chat completion.
type ChatRequest struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature *float32
	JSONObject  bool
}

// ChatResponse is our own response type from a chat completion.
type ChatResponse struct {
	ID           string
	Model        string
	Text         string
	FinishReason string
	Usage        Usage
}

// Usage reports token consumption.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Option configures the client.
type Option func(*chatClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *chatClient) {
		c.baseURL = url
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *chatClient) {
		c.model = model
	}
}

type chatClient struct {
	apiKey  string
	baseURL string
	model   string
	client  *openai.Client
}

// NewClient creates an OpenAI API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &chatClient{
		apiKey: apiKey,
		model:  defaultModel,
	}
	for _, o := range opts {
		o(c)
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	c.client = openai.NewClientWithConfig(cfg)
	return c
}

// reasoningModel reports whether the model rejects max_tokens in favor of
// max_completion_tokens.
func reasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1") ||
		strings.HasPrefix(model, "o3") ||
		strings.HasPrefix(model, "o4") ||
		strings.HasPrefix(model, "gpt-5")
}

func (c *chatClient) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	var messages []openai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	sdkReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}
	if req.JSONObject {
		sdkReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if req.Temperature != nil {
		sdkReq.Temperature = *req.Temperature
	}
	if req.MaxTokens > 0 {
		if reasoningModel(model) {
			sdkReq.MaxCompletionTokens = req.MaxTokens
		} else {
			sdkReq.MaxTokens = req.MaxTokens
		}
	}

	resp, err := c.client.CreateChatCompletion(ctx, sdkReq)
	if err != nil {
		return nil, eris.Wrap(err, "openai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("openai: empty choices in response")
	}

	return &ChatResponse{
		ID:           resp.ID,
		Model:        resp.Model,
		Text:         resp.Choices[0].Message.Content,
		FinishReason: string(resp.Choices[0].FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}
