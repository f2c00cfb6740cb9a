package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-go-golems/multichat/pkg/conversation"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, handler http.HandlerFunc) *OllamaEngine {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	s := settings.NewSettings()
	s.Ollama.Enabled = true
	s.Ollama.BaseURL = srv.URL
	s.Ollama.Model = "llama-test"
	e, err := NewOllamaEngine(s)
	require.NoError(t, err)
	return e
}

func TestOllamaEngine_Streams(t *testing.T) {
	var seen api.ChatRequest
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, c := range []string{"Hi", " there", "!"} {
			_, _ = fmt.Fprintf(w, `{"model":"llama-test","message":{"role":"assistant","content":%q},"done":false}`+"\n", c)
		}
		_, _ = fmt.Fprint(w, `{"model":"llama-test","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":4,"eval_count":3}`+"\n")
	})

	var deltas []string
	text, err := e.RunInference(context.Background(), conversation.Conversation{
		conversation.NewUserTurn("hello"),
		conversation.NewAssistantTurn("hey"),
		conversation.NewUserTurn("again"),
	}, func(d string) { deltas = append(deltas, d) })
	require.NoError(t, err)
	require.Equal(t, "Hi there!", text)
	require.Equal(t, []string{"Hi", " there", "!"}, deltas)

	require.Equal(t, "llama-test", seen.Model)
	require.Len(t, seen.Messages, 3)
	require.Equal(t, "assistant", seen.Messages[1].Role)
	require.True(t, *seen.Stream)
}

func TestOllamaEngine_StatusErrorIsTransport(t *testing.T) {
	e := newTestEngine(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = fmt.Fprint(w, `{"error":"model not found"}`)
	})
	_, err := e.RunInference(context.Background(),
		conversation.Conversation{conversation.NewUserTurn("hello")},
		func(string) {})
	require.Error(t, err)
	require.Equal(t, engine.ErrorKindTransport, engine.KindOf(err))
}

func TestNewOllamaEngineRejectsBadURL(t *testing.T) {
	s := settings.NewSettings()
	s.Ollama.BaseURL = "://nope"
	_, err := NewOllamaEngine(s)
	require.Error(t, err)
}
