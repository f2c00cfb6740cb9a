package settings

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/go-go-golems/multichat/pkg/steps/ai/types"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

func TestNewSettingsDefaults(t *testing.T) {
	s := NewSettings()
	require.Equal(t, types.ProviderGemini, s.Provider)
	require.Equal(t, DefaultTimeout, s.Client.GetTimeout())
	require.Equal(t, DefaultIdleTimeout, s.Client.GetIdleTimeout())
	require.Equal(t, "gemini-1.5-flash", s.Gemini.Model)
	require.False(t, s.Ollama.Enabled)
}

func TestNilClientSettingsFallsBackToDefaults(t *testing.T) {
	var cs *ClientSettings
	require.Equal(t, DefaultTimeout, cs.GetTimeout())
	require.NotNil(t, cs.GetHTTPClient())
}

func TestSettingsFromYAML(t *testing.T) {
	doc := `
provider: openai
client:
  timeout: 30
  idle_timeout: 5s
openai:
  api_key: sk-test
  model: gpt-4o-mini
ollama:
  enabled: true
  num-ctx: 4096
`
	s, err := NewSettingsFromYAML(strings.NewReader(doc))
	require.NoError(t, err)
	require.Equal(t, types.ProviderOpenAI, s.Provider)
	require.Equal(t, 30*time.Second, s.Client.GetTimeout())
	require.Equal(t, 5*time.Second, s.Client.GetIdleTimeout())
	require.Equal(t, "sk-test", s.OpenAI.APIKey)
	require.Equal(t, "gpt-4o-mini", s.OpenAI.Model)
	// untouched sections keep their defaults
	require.Equal(t, "dall-e-3", s.OpenAI.ImageModel)
	require.True(t, s.Ollama.Enabled)
	require.Equal(t, 4096, s.Ollama.Options()["num_ctx"])
}

func TestSettingsFromEmptyYAML(t *testing.T) {
	s, err := NewSettingsFromYAML(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, NewSettings().Gemini.Model, s.Gemini.Model)
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSettings()
	c := s.Clone()
	c.OpenAI.Model = "changed"
	*c.Client.Timeout = time.Second
	require.NotEqual(t, "changed", s.OpenAI.Model)
	require.Equal(t, DefaultTimeout, s.Client.GetTimeout())
}

func TestMaskedAndYAMLOutput(t *testing.T) {
	s := NewSettings()
	s.OpenAI.APIKey = "sk-abcdefghijkl"
	var buf bytes.Buffer
	require.NoError(t, s.Masked().ToYAML(&buf))
	out := buf.String()
	require.NotContains(t, out, "sk-abcdefghijkl")
	require.Contains(t, out, "****ijkl")
	require.Contains(t, out, "timeout: 2m0s")
	require.Equal(t, "sk-abcdefghijkl", s.OpenAI.APIKey)
}

func TestUpdateFromViper(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse([]string{"--provider", "OpenAI", "--idle-timeout", "3s", "--ollama"}))

	v := viper.New()
	require.NoError(t, v.BindPFlags(fs))
	t.Setenv("GEMINI_API_KEY", "gem-key")
	t.Setenv("MULTICHAT_GEMINI_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("MULTICHAT_OPENAI_API_KEY", "")
	require.NoError(t, BindEnv(v, "multichat"))

	s := NewSettings()
	require.NoError(t, s.UpdateFromViper(v))
	require.Equal(t, types.ProviderOpenAI, s.Provider)
	require.Equal(t, 3*time.Second, s.Client.GetIdleTimeout())
	require.Equal(t, DefaultTimeout, s.Client.GetTimeout())
	require.True(t, s.Ollama.Enabled)
	require.Equal(t, "gem-key", s.Gemini.APIKey)
	require.Equal(t, "", s.OpenAI.APIKey)
	require.Nil(t, s.Chat.Temperature)
}

func TestUpdateFromViperRejectsUnknownProvider(t *testing.T) {
	v := viper.New()
	v.Set("provider", "claude")
	require.Error(t, NewSettings().UpdateFromViper(v))
}
