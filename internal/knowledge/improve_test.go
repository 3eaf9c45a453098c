package knowledge

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/radius-labs/visibility-cli/internal/config"
	"github.com/radius-labs/visibility-cli/internal/model"
	"github.com/radius-labs/visibility-cli/pkg/anthropic"
)

func TestImprove(t *testing.T) {
	mc := &mockAnthropicClient{}
	var captured anthropic.MessageRequest
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(1).(anthropic.MessageRequest) }).
		Return(textResponse(`{"text": "Acme turns raw retail data into decisions."}`, 300, 40), nil)

	s := New(mc, config.SynthesisConfig{})
	out, usage, err := s.Improve(context.Background(), "Acme does data stuff for shops.", ModeImprove)
	require.NoError(t, err)

	assert.Equal(t, "Acme turns raw retail data into decisions.", out)
	assert.Equal(t, 300, usage.InputTokens)
	assert.Equal(t, 40, usage.OutputTokens)

	require.Len(t, captured.Messages, 1)
	assert.Contains(t, captured.Messages[0].Content, "Improve the writing")
	assert.Contains(t, captured.Messages[0].Content, "Acme does data stuff for shops.")
}

func TestImprove_ErrorPropagates(t *testing.T) {
	mc := &mockAnthropicClient{}
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, eris.New("api down"))

	s := New(mc, config.SynthesisConfig{})
	_, _, err := s.Improve(context.Background(), "Some field text.", ModeConcise)
	require.Error(t, err)
	assert.ErrorContains(t, err, "improve field")
}

func TestImprove_EmptyRewriteIsSchemaViolation(t *testing.T) {
	mc := &mockAnthropicClient{}
	mc.On("CreateMessage", mock.Anything, mock.Anything).
		Return(textResponse(`{"text": "   "}`, 10, 1), nil)

	s := New(mc, config.SynthesisConfig{})
	_, usage, err := s.Improve(context.Background(), "Some field text.", ModeRegenerate)
	require.Error(t, err)

	var sv *model.SchemaViolationError
	require.ErrorAs(t, err, &sv)
	assert.Equal(t, "improve", sv.Stage)
	// usage still reported for the failed rewrite
	assert.Equal(t, 10, usage.InputTokens)
}

func TestImprove_NoClient(t *testing.T) {
	s := New(nil, config.SynthesisConfig{})
	_, _, err := s.Improve(context.Background(), "Some field text.", ModeImprove)
	assert.ErrorContains(t, err, "no generation client")
}

func TestImprove_NothingToImprove(t *testing.T) {
	s := New(&mockAnthropicClient{}, config.SynthesisConfig{})
	_, _, err := s.Improve(context.Background(), "   ", ModeImprove)
	assert.ErrorContains(t, err, "nothing to improve")
}

func TestParseImproveMode(t *testing.T) {
	for _, valid := range []string{"improve", "concise", "authoritative", "regenerate"} {
		m, err := ParseImproveMode(valid)
		require.NoError(t, err)
		assert.Equal(t, ImproveMode(valid), m)
	}

	m, err := ParseImproveMode("  Authoritative ")
	require.NoError(t, err)
	assert.Equal(t, ModeAuthoritative, m)

	_, err = ParseImproveMode("shorter")
	assert.ErrorContains(t, err, "unknown improve mode")
}
