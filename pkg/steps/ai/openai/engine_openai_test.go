package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/go-go-golems/multichat/pkg/helpers"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	go_openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"
)

func chunk(content string, finish string) string {
	c := map[string]interface{}{
		"id":      "chatcmpl-1",
		"object":  "chat.completion.chunk",
		"created": 1,
		"model":   "gpt-test",
		"choices": []map[string]interface{}{{
			"index":         0,
			"delta":         map[string]string{"content": content},
			"finish_reason": nil,
		}},
	}
	if finish != "" {
		c["choices"].([]map[string]interface{})[0]["finish_reason"] = finish
	}
	b, _ := json.Marshal(c)
	return "data: " + string(b) + "\n\n"
}

type request struct {
	Model    string                             `json:"model"`
	Messages []go_openai.ChatCompletionMessage `json:"messages"`
	Stream   bool                               `json:"stream"`
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, req request)) *settings.Settings {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req request
		require.NoError(t, json.Unmarshal(body, &req))
		handler(w, req)
	}))
	t.Cleanup(srv.Close)

	s := settings.NewSettings()
	s.OpenAI.APIKey = "sk-test"
	s.OpenAI.BaseURL = srv.URL + "/v1"
	s.OpenAI.Model = "gpt-test"
	return s
}

func streamChunks(w http.ResponseWriter, chunks ...string) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	for _, c := range chunks {
		_, _ = fmt.Fprint(w, c)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
}

type collectingSink struct {
	events []events.Event
}

func (c *collectingSink) PublishEvent(e events.Event) error {
	c.events = append(c.events, e)
	return nil
}

func TestOpenAIEngine_StreamsDeltasInOrder(t *testing.T) {
	var seen request
	s := newTestServer(t, func(w http.ResponseWriter, req request) {
		seen = req
		streamChunks(w, chunk("Hi", ""), chunk(" there", ""), chunk("!", "stop"))
	})
	sink := &collectingSink{}
	e, err := NewOpenAIEngine(s, engine.WithSink(sink))
	require.NoError(t, err)

	history := conversation.Conversation{
		conversation.NewUserTurn("hello"),
		conversation.NewAssistantTurn("hey"),
		conversation.NewUserTurn("again"),
	}
	var deltas []string
	text, err := e.RunInference(context.Background(), history, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	require.Equal(t, "Hi there!", text)
	require.Equal(t, []string{"Hi", " there", "!"}, deltas)

	require.True(t, seen.Stream)
	require.Equal(t, "gpt-test", seen.Model)
	require.Len(t, seen.Messages, 3)
	require.Equal(t, "user", seen.Messages[0].Role)
	require.Equal(t, "assistant", seen.Messages[1].Role)
	require.Equal(t, "again", seen.Messages[2].Content)

	require.Equal(t, events.EventTypeStart, sink.events[0].Type())
	require.Equal(t, events.EventTypeFinal, sink.events[len(sink.events)-1].Type())
	final := sink.events[len(sink.events)-1].(*events.EventFinal)
	require.Equal(t, "Hi there!", final.Text)
	require.Equal(t, "stop", *final.Metadata().StopReason)
}

func TestOpenAIEngine_ContentFilterIsBlocked(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, req request) {
		streamChunks(w, chunk("Sor", ""), chunk("", "content_filter"))
	})
	e, err := NewOpenAIEngine(s)
	require.NoError(t, err)

	var deltas []string
	_, err = e.RunInference(context.Background(),
		conversation.Conversation{conversation.NewUserTurn("hello")},
		func(d string) { deltas = append(deltas, d) })
	require.Error(t, err)
	require.Equal(t, engine.ErrorKindBlocked, engine.KindOf(err))
	require.Equal(t, []string{"Sor"}, deltas)
}

func TestOpenAIEngine_HTTPErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		code   string
		kind   engine.ErrorKind
	}{
		{"server error", http.StatusInternalServerError, "server_error", engine.ErrorKindTransport},
		{"policy", http.StatusBadRequest, "content_policy_violation", engine.ErrorKindBlocked},
		{"gateway timeout", http.StatusGatewayTimeout, "timeout", engine.ErrorKindTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, func(w http.ResponseWriter, req request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = fmt.Fprintf(w, `{"error":{"message":"nope","type":"invalid_request_error","code":%q}}`, tc.code)
			})
			e, err := NewOpenAIEngine(s)
			require.NoError(t, err)
			_, err = e.RunInference(context.Background(),
				conversation.Conversation{conversation.NewUserTurn("hello")},
				func(string) {})
			require.Equal(t, tc.kind, engine.KindOf(err))
		})
	}
}

func TestNewOpenAIEngineRequiresKey(t *testing.T) {
	_, err := NewOpenAIEngine(settings.NewSettings())
	require.Error(t, err)
}

func TestMakeCompletionRequest(t *testing.T) {
	s := settings.NewSettings()
	s.Chat.Temperature = helpers.ToPointer(0.5)
	s.Chat.MaxResponseTokens = helpers.ToPointer(64)
	req, err := MakeCompletionRequest(s, conversation.Conversation{conversation.NewUserTurn("q")})
	require.NoError(t, err)
	require.Equal(t, float32(0.5), req.Temperature)
	require.Equal(t, 64, req.MaxCompletionTokens)
	require.True(t, req.StreamOptions.IncludeUsage)

	_, err = MakeCompletionRequest(s, nil)
	require.Error(t, err)
}

func TestImageGenerator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/images/generations"))
		var req go_openai.ImageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "a cat", req.Prompt)
		require.Equal(t, "dall-e-3", req.Model)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"created":1700000000,"data":[{"url":"https://img.example/cat.png","revised_prompt":"a fluffy cat"}]}`)
	}))
	defer srv.Close()

	s := settings.NewSettings()
	s.OpenAI.APIKey = "sk-test"
	s.OpenAI.BaseURL = srv.URL + "/v1"
	sink := &collectingSink{}
	g, err := NewImageGenerator(s, engine.WithSink(sink))
	require.NoError(t, err)

	rec, err := g.GenerateImage(context.Background(), "a cat")
	require.NoError(t, err)
	require.Equal(t, "https://img.example/cat.png", rec.Ref)
	require.Equal(t, "a fluffy cat", rec.RevisedPrompt)
	require.Equal(t, int64(1700000000), rec.CreatedAt.Unix())
	require.Len(t, sink.events, 1)
	require.Equal(t, events.EventTypeImageGenerated, sink.events[0].Type())
}
