package openai

import (
	"net/http"
	"strings"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"
)

const providerName = "openai"

// MakeClient builds a go-openai client from the settings. The API key is required.
func MakeClient(s *settings.Settings) (*go_openai.Client, error) {
	if s == nil || s.OpenAI == nil {
		return nil, errors.New("no openai settings")
	}
	if s.OpenAI.APIKey == "" {
		return nil, errors.New("missing openai API key")
	}
	config := go_openai.DefaultConfig(s.OpenAI.APIKey)
	if s.OpenAI.BaseURL != "" {
		config.BaseURL = s.OpenAI.BaseURL
	}
	if s.OpenAI.Organization != "" {
		config.OrgID = s.OpenAI.Organization
	}
	config.HTTPClient = s.Client.GetHTTPClient()
	return go_openai.NewClientWithConfig(config), nil
}

func roleFor(r conversation.Role) string {
	if r == conversation.RoleAssistant {
		return go_openai.ChatMessageRoleAssistant
	}
	return go_openai.ChatMessageRoleUser
}

// messagesFromHistory translates the conversation one-to-one, keeping order.
func messagesFromHistory(history conversation.Conversation) []go_openai.ChatCompletionMessage {
	ret := make([]go_openai.ChatCompletionMessage, 0, len(history))
	for _, t := range history {
		ret = append(ret, go_openai.ChatCompletionMessage{
			Role:    roleFor(t.Role),
			Content: t.Content,
		})
	}
	return ret
}

// MakeCompletionRequest builds a streaming chat completion request for history.
func MakeCompletionRequest(s *settings.Settings, history conversation.Conversation) (*go_openai.ChatCompletionRequest, error) {
	if len(history) == 0 {
		return nil, errors.New("empty history")
	}
	req := &go_openai.ChatCompletionRequest{
		Model:    s.OpenAI.Model,
		Messages: messagesFromHistory(history),
		Stream:   true,
		StreamOptions: &go_openai.StreamOptions{
			IncludeUsage: true,
		},
	}
	if chat := s.Chat; chat != nil {
		if chat.Temperature != nil {
			req.Temperature = float32(*chat.Temperature)
		}
		if chat.TopP != nil {
			req.TopP = float32(*chat.TopP)
		}
		if chat.MaxResponseTokens != nil {
			req.MaxCompletionTokens = *chat.MaxResponseTokens
		}
		if len(chat.Stop) > 0 {
			req.Stop = chat.Stop
		}
	}
	return req, nil
}

func usageOf(u *go_openai.Usage) *events.Usage {
	if u == nil || (u.PromptTokens == 0 && u.CompletionTokens == 0) {
		return nil
	}
	return &events.Usage{InputTokens: u.PromptTokens, OutputTokens: u.CompletionTokens}
}

var contentPolicyCodes = []string{"content_filter", "content_policy_violation"}

func isContentPolicyCode(code string) bool {
	for _, c := range contentPolicyCodes {
		if strings.EqualFold(code, c) {
			return true
		}
	}
	return false
}

// classifyError maps go-openai errors onto the engine error taxonomy.
func classifyError(err error) *engine.Error {
	var apiErr *go_openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		if isContentPolicyCode(code) ||
			(apiErr.InnerError != nil && isContentPolicyCode(apiErr.InnerError.Code)) {
			return &engine.Error{Kind: engine.ErrorKindBlocked, Provider: providerName, Err: err}
		}
		kind := engine.ErrorKindTransport
		if apiErr.HTTPStatusCode == http.StatusRequestTimeout || apiErr.HTTPStatusCode == http.StatusGatewayTimeout {
			kind = engine.ErrorKindTimeout
		}
		return &engine.Error{Kind: kind, Provider: providerName, Err: err}
	}
	var reqErr *go_openai.RequestError
	if errors.As(err, &reqErr) {
		return &engine.Error{Kind: engine.ErrorKindTransport, Provider: providerName, Err: err}
	}
	ret := engine.Classify(err)
	ret.Provider = providerName
	return ret
}
