package cmds

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-go-golems/multichat/pkg/steps/ai"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	"github.com/go-go-golems/multichat/pkg/steps/ai/types"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func echoSettings() *settings.Settings {
	s := settings.NewSettings()
	s.Provider = types.ProviderEcho
	s.Echo = true
	return s
}

func TestRunAskStreamsAnswer(t *testing.T) {
	var out, errOut bytes.Buffer
	err := RunAsk(context.Background(), echoSettings(), &out, "hello", AskOptions{
		EventsOutput: &errOut,
		Stats:        true,
		PrintEvents:  true,
	})
	require.NoError(t, err)
	require.Equal(t, "You said: hello\n", out.String())

	require.Contains(t, errOut.String(), `"type": "partial"`)
	require.Contains(t, errOut.String(), `"type": "final"`)
	require.True(t, strings.HasSuffix(errOut.String(), "echo echo done\n"))
}

func TestRunAskWithoutRouter(t *testing.T) {
	var out bytes.Buffer
	err := RunAsk(context.Background(), echoSettings(), &out, "hi", AskOptions{})
	require.NoError(t, err)
	require.Equal(t, "You said: hi\n", out.String())
}

func TestRunAskRejectsImageAndMissingCredentials(t *testing.T) {
	var out bytes.Buffer
	s := echoSettings()
	err := RunAsk(context.Background(), s, &out, "hi", AskOptions{Provider: types.ProviderImage})
	require.Error(t, err)

	err = RunAsk(context.Background(), s, &out, "hi", AskOptions{Provider: types.ProviderOpenAI})
	require.ErrorIs(t, err, ai.ErrMissingCredentials)
}

func TestRunImagePrintsReference(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RunImage(context.Background(), echoSettings(), &out, "a cat", ImageOptions{}))
	require.True(t, strings.HasPrefix(out.String(), "data:image/svg+xml;base64,"))

	out.Reset()
	require.NoError(t, RunImage(context.Background(), echoSettings(), &out, "a cat", ImageOptions{PrintRecord: true}))
	require.Contains(t, out.String(), "prompt: a cat")
}

func TestLoadSettingsLayers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: openai\nopenai:\n  model: from-file\n"), 0o600))

	v := viper.New()
	v.Set("openai-model", "from-viper")

	s, err := LoadSettings(v, path)
	require.NoError(t, err)
	require.Equal(t, types.ProviderOpenAI, s.Provider)
	require.Equal(t, "from-viper", s.OpenAI.Model)

	_, err = LoadSettings(v, filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
