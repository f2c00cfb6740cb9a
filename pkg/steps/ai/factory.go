package ai

import (
	"github.com/go-go-golems/multichat/pkg/display"
	"github.com/go-go-golems/multichat/pkg/inference/engine"
	"github.com/go-go-golems/multichat/pkg/inference/session"
	"github.com/go-go-golems/multichat/pkg/steps/ai/echo"
	"github.com/go-go-golems/multichat/pkg/steps/ai/gemini"
	"github.com/go-go-golems/multichat/pkg/steps/ai/ollama"
	"github.com/go-go-golems/multichat/pkg/steps/ai/openai"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	"github.com/go-go-golems/multichat/pkg/steps/ai/types"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissingCredentials = errors.New("missing credentials")
	ErrProviderDisabled   = errors.New("provider is disabled")
	ErrNoProviders        = errors.New("no provider is configured")
)

// StandardEngineFactory builds engines for the closed set of providers.
type StandardEngineFactory struct {
	Settings *settings.Settings
	// EngineOptions are passed to every engine, typically event sinks.
	EngineOptions []engine.Option
}

func NewStandardEngineFactory(s *settings.Settings, options ...engine.Option) *StandardEngineFactory {
	return &StandardEngineFactory{Settings: s, EngineOptions: options}
}

func (f *StandardEngineFactory) NewEngine(id types.ProviderID) (engine.Engine, error) {
	settings_ := f.Settings.Clone()

	switch id {
	case types.ProviderGemini:
		if settings_.Gemini.APIKey == "" {
			return nil, errors.Wrap(ErrMissingCredentials, "GEMINI_API_KEY")
		}
		return gemini.NewGeminiEngine(settings_, f.EngineOptions...)

	case types.ProviderOpenAI:
		if settings_.OpenAI.APIKey == "" {
			return nil, errors.Wrap(ErrMissingCredentials, "OPENAI_API_KEY")
		}
		return openai.NewOpenAIEngine(settings_, f.EngineOptions...)

	case types.ProviderOllama:
		if !settings_.Ollama.Enabled {
			return nil, errors.Wrap(ErrProviderDisabled, "ollama")
		}
		return ollama.NewOllamaEngine(settings_, f.EngineOptions...)

	case types.ProviderEcho:
		if !settings_.Echo {
			return nil, errors.Wrap(ErrProviderDisabled, "echo")
		}
		return echo.NewEchoEngine(echo.WithEngineOptions(f.EngineOptions...)), nil

	case types.ProviderImage:
		return nil, errors.New("image is not a text provider, use NewImageGenerator")
	}

	return nil, errors.Errorf("unknown provider %q", id)
}

// NewImageGenerator uses the OpenAI images API when a key is configured and
// falls back to the echo generator when echo is enabled.
func (f *StandardEngineFactory) NewImageGenerator() (engine.ImageGenerator, error) {
	settings_ := f.Settings.Clone()
	switch {
	case settings_.OpenAI.APIKey != "":
		return openai.NewImageGenerator(settings_, f.EngineOptions...)
	case settings_.Echo:
		return echo.NewImageGenerator(f.EngineOptions...)
	}
	return nil, errors.Wrap(ErrMissingCredentials, "OPENAI_API_KEY")
}

// NewChat builds the session for one provider.
func (f *StandardEngineFactory) NewChat(id types.ProviderID, options ...session.Option) (session.Chat, error) {
	defaults := []session.Option{
		session.WithTimeout(f.Settings.Client.GetTimeout()),
		session.WithIdleTimeout(f.Settings.Client.GetIdleTimeout()),
	}
	if f.Settings.Chat != nil && f.Settings.Chat.RollbackOnError {
		defaults = append(defaults, session.WithFailurePolicy(session.FailurePolicyRollback))
	}
	options = append(defaults, options...)

	if id == types.ProviderImage {
		g, err := f.NewImageGenerator()
		if err != nil {
			return nil, err
		}
		return session.NewImageSession(g, options...), nil
	}
	e, err := f.NewEngine(id)
	if err != nil {
		return nil, err
	}
	return session.NewSession(id, e, options...), nil
}

// NewRegistry builds one session per usable provider. Providers without
// credentials are skipped with a warning; the configured provider is made
// active when it is available.
func (f *StandardEngineFactory) NewRegistry(d display.Sink, options ...session.Option) (*session.Registry, error) {
	var chats []session.Chat
	for _, id := range types.AllProviders {
		c, err := f.NewChat(id, options...)
		if err != nil {
			if errors.Is(err, ErrProviderDisabled) {
				log.Debug().Str("provider", id.String()).Msg("provider disabled")
				continue
			}
			if errors.Is(err, ErrMissingCredentials) {
				log.Warn().Str("provider", id.String()).Err(err).Msg("provider unavailable")
				continue
			}
			return nil, errors.Wrapf(err, "could not create %s session", id)
		}
		chats = append(chats, c)
	}
	if len(chats) == 0 {
		return nil, ErrNoProviders
	}

	r, err := session.NewRegistry(d, chats...)
	if err != nil {
		return nil, err
	}
	if _, ok := r.Get(f.Settings.Provider); ok {
		if err := r.SwitchActive(f.Settings.Provider); err != nil {
			return nil, err
		}
	} else if f.Settings.Provider != "" {
		log.Warn().
			Str("provider", f.Settings.Provider.String()).
			Str("active", r.ActiveID().String()).
			Msg("configured provider is unavailable")
	}
	return r, nil
}
