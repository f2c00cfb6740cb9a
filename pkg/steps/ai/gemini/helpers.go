package gemini

import (
	"math"
	"net/http"
	"strings"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	genai "github.com/google/generative-ai-go/genai"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

var ErrNoUserPrompt = errors.New("history does not end with a user turn")

func IsGeminiEngine(engine string) bool {
	return strings.HasPrefix(engine, "gemini")
}

// roleFor maps conversation roles onto the role names the Gemini API expects.
func roleFor(r conversation.Role) string {
	if r == conversation.RoleAssistant {
		return roleModel
	}
	return roleUser
}

// splitHistory turns a conversation into the chat history and the parts of
// the message to send. The trailing user turn is the message; everything
// before it is history, so the prompt is sent exactly once.
func splitHistory(history conversation.Conversation) ([]*genai.Content, []genai.Part, error) {
	prior, last, ok := history.SplitLastUser()
	if !ok {
		return nil, nil, ErrNoUserPrompt
	}
	contents := make([]*genai.Content, 0, len(prior))
	for _, t := range prior {
		contents = append(contents, &genai.Content{
			Role:  roleFor(t.Role),
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}
	return contents, []genai.Part{genai.Text(last.Content)}, nil
}

// textOf concatenates the text parts of all candidates of a streamed chunk.
func textOf(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
	}
	return b.String()
}

func finishReasonOf(resp *genai.GenerateContentResponse) (genai.FinishReason, bool) {
	if resp == nil {
		return genai.FinishReasonUnspecified, false
	}
	for _, cand := range resp.Candidates {
		if cand != nil && cand.FinishReason != genai.FinishReasonUnspecified {
			return cand.FinishReason, true
		}
	}
	return genai.FinishReasonUnspecified, false
}

func usageOf(resp *genai.GenerateContentResponse) *events.Usage {
	if resp == nil || resp.UsageMetadata == nil {
		return nil
	}
	u := resp.UsageMetadata
	if u.PromptTokenCount == 0 && u.CandidatesTokenCount == 0 {
		return nil
	}
	return &events.Usage{
		InputTokens:  int(u.PromptTokenCount),
		OutputTokens: int(u.CandidatesTokenCount),
	}
}

// clampInt32 converts a token count for the SDK setters.
func clampInt32(v int) int32 {
	if v < 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v) // #nosec G115
}

// classifyError maps SDK errors onto the engine error taxonomy.
func classifyError(err error) *engine.Error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &engine.Error{Kind: engine.ErrorKindBlocked, Provider: "gemini", Err: err}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		kind := engine.ErrorKindTransport
		if apiErr.Code == http.StatusGatewayTimeout || apiErr.Code == http.StatusRequestTimeout {
			kind = engine.ErrorKindTimeout
		}
		return &engine.Error{Kind: kind, Provider: "gemini", Err: err}
	}
	ret := engine.Classify(err)
	ret.Provider = "gemini"
	return ret
}
