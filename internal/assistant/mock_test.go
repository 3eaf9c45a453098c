package assistant

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/pkg/anthropic"
	"github.com/radius-labs/visibility-cli/pkg/gemini"
	"github.com/radius-labs/visibility-cli/pkg/openai"
	"github.com/radius-labs/visibility-cli/pkg/perplexity"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

var _ anthropic.Client = (*mockAnthropicClient)(nil)

type mockOpenAIClient struct {
	mock.Mock
}

func (m *mockOpenAIClient) ChatCompletion(ctx context.Context, req openai.ChatRequest) (*openai.ChatResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openai.ChatResponse), args.Error(1)
}

var _ openai.Client = (*mockOpenAIClient)(nil)

type mockGeminiClient struct {
	mock.Mock
}

func (m *mockGeminiClient) GenerateContent(ctx context.Context, req gemini.GenerateRequest) (*gemini.GenerateResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gemini.GenerateResponse), args.Error(1)
}

var _ gemini.Client = (*mockGeminiClient)(nil)

type mockPerplexityClient struct {
	mock.Mock
}

func (m *mockPerplexityClient) ChatCompletion(ctx context.Context, req perplexity.ChatCompletionRequest) (*perplexity.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*perplexity.ChatCompletionResponse), args.Error(1)
}

var _ perplexity.Client = (*mockPerplexityClient)(nil)

// staticCreds is a fixed credential table for tests.
type staticCreds map[model.Platform]Credential

func (s staticCreds) Credential(p model.Platform) (Credential, bool) {
	c, ok := s[p]
	return c, ok
}

var _ CredentialProvider = (staticCreds)(nil)
