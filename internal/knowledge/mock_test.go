package knowledge

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/radius-labs/visibility-cli/pkg/anthropic"
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

// compile-time interface check
var _ anthropic.Client = (*mockAnthropicClient)(nil)
