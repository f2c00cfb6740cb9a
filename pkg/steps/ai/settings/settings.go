package settings

import (
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/multichat/pkg/helpers"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings/gemini"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings/ollama"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings/openai"
	"github.com/go-go-golems/multichat/pkg/steps/ai/types"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Settings is everything needed to build the provider set.
type Settings struct {
	// Provider is the provider selected at startup.
	Provider types.ProviderID `yaml:"provider,omitempty"`
	// Echo enables the offline scripted provider.
	Echo   bool             `yaml:"echo,omitempty"`
	Chat   *ChatSettings    `yaml:"chat,omitempty"`
	Client *ClientSettings  `yaml:"client,omitempty"`
	OpenAI *openai.Settings `yaml:"openai,omitempty"`
	Gemini *gemini.Settings `yaml:"gemini,omitempty"`
	Ollama *ollama.Settings `yaml:"ollama,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{
		Provider: types.ProviderGemini,
		Chat:     NewChatSettings(),
		Client:   NewClientSettings(),
		OpenAI:   openai.NewSettings(),
		Gemini:   gemini.NewSettings(),
		Ollama:   ollama.NewSettings(),
	}
}

// NewSettingsFromYAML reads a nested settings document on top of the defaults.
func NewSettingsFromYAML(r io.Reader) (*Settings, error) {
	ret := NewSettings()
	if err := yaml.NewDecoder(r).Decode(ret); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "could not decode settings")
	}
	return ret, nil
}

func NewSettingsFromFile(path string) (*Settings, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open settings file %s", path)
	}
	defer func() {
		_ = f.Close()
	}()
	return NewSettingsFromYAML(f)
}

func (s *Settings) Clone() *Settings {
	ret := clone.Clone(&Settings{
		Provider: s.Provider,
		Echo:     s.Echo,
		Chat:     s.Chat,
		OpenAI:   s.OpenAI,
		Gemini:   s.Gemini,
		Ollama:   s.Ollama,
	}).(*Settings)
	if s.Client != nil {
		ret.Client = s.Client.Clone()
	}
	return ret
}

// Masked returns a copy with API keys replaced by a masked form, for printing.
func (s *Settings) Masked() *Settings {
	ret := s.Clone()
	if ret.OpenAI != nil {
		ret.OpenAI.APIKey = helpers.MaskSecret(ret.OpenAI.APIKey)
	}
	if ret.Gemini != nil {
		ret.Gemini.APIKey = helpers.MaskSecret(ret.Gemini.APIKey)
	}
	return ret
}

func (s *Settings) ToYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return err
	}
	return enc.Close()
}

// GetMetadata returns the non-secret settings as a flat map, for logging.
func (s *Settings) GetMetadata() map[string]interface{} {
	metadata := map[string]interface{}{
		"provider": s.Provider.String(),
	}
	if s.Chat != nil {
		if s.Chat.MaxResponseTokens != nil {
			metadata["max-response-tokens"] = *s.Chat.MaxResponseTokens
		}
		if s.Chat.Temperature != nil {
			metadata["temperature"] = *s.Chat.Temperature
		}
		if s.Chat.TopP != nil && *s.Chat.TopP != 1 {
			metadata["top-p"] = *s.Chat.TopP
		}
	}
	if s.Client != nil {
		metadata["timeout"] = s.Client.GetTimeout().String()
		metadata["idle-timeout"] = s.Client.GetIdleTimeout().String()
	}
	if s.OpenAI != nil {
		metadata["openai-model"] = s.OpenAI.Model
		metadata["openai-image-model"] = s.OpenAI.ImageModel
	}
	if s.Gemini != nil {
		metadata["gemini-model"] = s.Gemini.Model
	}
	if s.Ollama != nil && s.Ollama.Enabled {
		metadata["ollama-model"] = s.Ollama.Model
	}
	return metadata
}

// AddFlags registers the flags that UpdateFromViper understands.
func AddFlags(fs *pflag.FlagSet) {
	d := NewSettings()
	fs.String("provider", d.Provider.String(), "Provider selected at startup (gemini, openai, ollama, echo, image)")
	fs.Bool("echo", false, "Enable the offline echo provider")
	fs.String("gemini-api-key", "", "Gemini API key (GEMINI_API_KEY)")
	fs.String("gemini-model", d.Gemini.Model, "Gemini model")
	fs.String("gemini-base-url", "", "Gemini API endpoint")
	fs.String("openai-api-key", "", "OpenAI API key (OPENAI_API_KEY)")
	fs.String("openai-base-url", "", "OpenAI API base URL")
	fs.String("openai-model", d.OpenAI.Model, "OpenAI chat model")
	fs.String("openai-image-model", d.OpenAI.ImageModel, "OpenAI image model")
	fs.String("openai-image-size", d.OpenAI.ImageSize, "Generated image size")
	fs.Bool("ollama", false, "Enable the local ollama provider")
	fs.String("ollama-base-url", d.Ollama.BaseURL, "Ollama server URL")
	fs.String("ollama-model", d.Ollama.Model, "Ollama model")
	fs.Duration("timeout", DefaultTimeout, "Maximum duration of a request")
	fs.Duration("idle-timeout", DefaultIdleTimeout, "Maximum gap between two streamed chunks")
	fs.Float64("temperature", 0, "Sampling temperature (0 keeps the provider default)")
	fs.Int("max-response-tokens", 0, "Maximum tokens in an answer (0 keeps the provider default)")
	fs.Bool("rollback-on-error", false, "Drop the question of a failed request from the history")
}

// BindEnv binds the unprefixed credential variables next to the prefixed ones.
func BindEnv(v *viper.Viper, prefix string) error {
	prefix = strings.ToUpper(prefix)
	for key, env := range map[string]string{
		"gemini-api-key": "GEMINI_API_KEY",
		"openai-api-key": "OPENAI_API_KEY",
	} {
		prefixed := prefix + "_" + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return errors.Wrapf(err, "could not bind %s", key)
		}
	}
	return nil
}

// UpdateFromViper overlays values that were set through flags, environment
// or the config file.
func (s *Settings) UpdateFromViper(v *viper.Viper) error {
	if v.IsSet("provider") {
		p, err := types.ParseProviderID(v.GetString("provider"))
		if err != nil {
			return err
		}
		s.Provider = p
	}
	if v.IsSet("echo") {
		s.Echo = v.GetBool("echo")
	}
	setString(v, "gemini-api-key", &s.Gemini.APIKey)
	setString(v, "gemini-model", &s.Gemini.Model)
	setString(v, "gemini-base-url", &s.Gemini.BaseURL)
	setString(v, "openai-api-key", &s.OpenAI.APIKey)
	setString(v, "openai-base-url", &s.OpenAI.BaseURL)
	setString(v, "openai-model", &s.OpenAI.Model)
	setString(v, "openai-image-model", &s.OpenAI.ImageModel)
	setString(v, "openai-image-size", &s.OpenAI.ImageSize)
	if v.IsSet("ollama") {
		s.Ollama.Enabled = v.GetBool("ollama")
	}
	setString(v, "ollama-base-url", &s.Ollama.BaseURL)
	setString(v, "ollama-model", &s.Ollama.Model)

	if v.IsSet("timeout") {
		d := v.GetDuration("timeout")
		s.Client.Timeout = &d
	}
	if v.IsSet("idle-timeout") {
		d := v.GetDuration("idle-timeout")
		s.Client.IdleTimeout = &d
	}
	if t := v.GetFloat64("temperature"); v.IsSet("temperature") && t > 0 {
		s.Chat.Temperature = &t
	}
	if n := v.GetInt("max-response-tokens"); v.IsSet("max-response-tokens") && n > 0 {
		s.Chat.MaxResponseTokens = &n
	}
	if v.IsSet("rollback-on-error") {
		s.Chat.RollbackOnError = v.GetBool("rollback-on-error")
	}
	return nil
}

func setString(v *viper.Viper, key string, target *string) {
	if v.IsSet(key) {
		if s := v.GetString(key); s != "" {
			*target = s
		}
	}
}
