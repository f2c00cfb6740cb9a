package gemini

import (
	"context"
	"net"
	"testing"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	genai "github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestSplitHistory_SendsPromptOnce(t *testing.T) {
	history := conversation.Conversation{
		conversation.NewUserTurn("hello"),
		conversation.NewAssistantTurn("hi"),
		conversation.NewUserTurn("how are you?"),
	}
	prior, parts, err := splitHistory(history)
	require.NoError(t, err)
	require.Len(t, prior, 2)
	require.Equal(t, "user", prior[0].Role)
	require.Equal(t, "model", prior[1].Role)
	require.Equal(t, genai.Text("hi"), prior[1].Parts[0])
	require.Equal(t, []genai.Part{genai.Text("how are you?")}, parts)
}

func TestSplitHistory_RequiresTrailingUserTurn(t *testing.T) {
	_, _, err := splitHistory(nil)
	require.ErrorIs(t, err, ErrNoUserPrompt)

	_, _, err = splitHistory(conversation.Conversation{
		conversation.NewUserTurn("q"),
		conversation.NewAssistantTurn("a"),
	})
	require.ErrorIs(t, err, ErrNoUserPrompt)
}

func TestTextOfAndFinishReason(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("Hi"), genai.Text(" there")}}},
			{FinishReason: genai.FinishReasonStop},
		},
		UsageMetadata: &genai.UsageMetadata{PromptTokenCount: 3, CandidatesTokenCount: 2},
	}
	require.Equal(t, "Hi there", textOf(resp))
	fr, ok := finishReasonOf(resp)
	require.True(t, ok)
	require.Equal(t, genai.FinishReasonStop, fr)
	require.Equal(t, 3, usageOf(resp).InputTokens)
	require.Equal(t, "", textOf(nil))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyError(t *testing.T) {
	blocked := classifyError(errors.Wrap(&genai.BlockedError{}, "stream"))
	require.Equal(t, engine.ErrorKindBlocked, blocked.Kind)
	require.Equal(t, "gemini", blocked.Provider)

	apiErr := classifyError(&googleapi.Error{Code: 503, Message: "unavailable"})
	require.Equal(t, engine.ErrorKindTransport, apiErr.Kind)

	require.Equal(t, engine.ErrorKindTimeout, classifyError(timeoutErr{}).Kind)
	require.Equal(t, engine.ErrorKindCanceled, classifyError(context.Canceled).Kind)
	require.Equal(t, engine.ErrorKindUnknown, classifyError(errors.New("weird")).Kind)
}

func TestNewGeminiEngineRequiresKey(t *testing.T) {
	s := settings.NewSettings()
	_, err := NewGeminiEngine(s)
	require.Error(t, err)

	s.Gemini.APIKey = "key"
	e, err := NewGeminiEngine(s)
	require.NoError(t, err)
	require.NotNil(t, e)
}

func TestClampInt32(t *testing.T) {
	require.Equal(t, int32(0), clampInt32(-5))
	require.Equal(t, int32(100), clampInt32(100))
}
