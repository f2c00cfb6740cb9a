package ai

import (
	"context"
	"testing"

	"github.com/go-go-golems/multichat/pkg/display"
	"github.com/go-go-golems/multichat/pkg/steps/ai/echo"
	"github.com/go-go-golems/multichat/pkg/steps/ai/gemini"
	"github.com/go-go-golems/multichat/pkg/steps/ai/openai"
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	"github.com/go-go-golems/multichat/pkg/steps/ai/types"
	"github.com/stretchr/testify/require"
)

func TestNewEngine_ClosedSet(t *testing.T) {
	s := settings.NewSettings()
	s.Gemini.APIKey = "g"
	s.OpenAI.APIKey = "o"
	s.Echo = true
	f := NewStandardEngineFactory(s)

	e, err := f.NewEngine(types.ProviderGemini)
	require.NoError(t, err)
	require.IsType(t, &gemini.GeminiEngine{}, e)

	e, err = f.NewEngine(types.ProviderOpenAI)
	require.NoError(t, err)
	require.IsType(t, &openai.OpenAIEngine{}, e)

	e, err = f.NewEngine(types.ProviderEcho)
	require.NoError(t, err)
	require.IsType(t, &echo.EchoEngine{}, e)

	_, err = f.NewEngine(types.ProviderOllama)
	require.ErrorIs(t, err, ErrProviderDisabled)

	_, err = f.NewEngine(types.ProviderImage)
	require.Error(t, err)

	_, err = f.NewEngine("claude")
	require.Error(t, err)

	g, err := f.NewImageGenerator()
	require.NoError(t, err)
	require.IsType(t, &openai.ImageGenerator{}, g)
}

func TestNewEngine_MissingKey(t *testing.T) {
	f := NewStandardEngineFactory(settings.NewSettings())
	_, err := f.NewEngine(types.ProviderGemini)
	require.ErrorIs(t, err, ErrMissingCredentials)
	_, err = f.NewImageGenerator()
	require.ErrorIs(t, err, ErrMissingCredentials)
}

func TestNewRegistry_DropsUnavailableProviders(t *testing.T) {
	s := settings.NewSettings()
	s.Echo = true
	s.Provider = types.ProviderOpenAI
	f := NewStandardEngineFactory(s)

	r, err := f.NewRegistry(display.NewRecorder())
	require.NoError(t, err)
	require.Equal(t, []types.ProviderID{types.ProviderEcho, types.ProviderImage}, r.Providers())
	require.Equal(t, types.ProviderEcho, r.ActiveID())
}

func TestNewRegistry_SelectsConfiguredProvider(t *testing.T) {
	s := settings.NewSettings()
	s.Gemini.APIKey = "g"
	s.OpenAI.APIKey = "o"
	s.Provider = types.ProviderOpenAI
	r, err := NewStandardEngineFactory(s).NewRegistry(nil)
	require.NoError(t, err)
	require.Equal(t, []types.ProviderID{types.ProviderGemini, types.ProviderOpenAI, types.ProviderImage}, r.Providers())
	require.Equal(t, types.ProviderOpenAI, r.ActiveID())
}

func TestNewRegistry_NoProviders(t *testing.T) {
	_, err := NewStandardEngineFactory(settings.NewSettings()).NewRegistry(nil)
	require.ErrorIs(t, err, ErrNoProviders)
}

func TestNewChat_FailurePolicyFromSettings(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, rollback := range []bool{false, true} {
		s := settings.NewSettings()
		s.Echo = true
		s.Chat.RollbackOnError = rollback

		c, err := NewStandardEngineFactory(s).NewChat(types.ProviderEcho)
		require.NoError(t, err)
		h, err := c.SubmitPrompt(ctx, "hello")
		require.NoError(t, err)
		_, err = h.Wait()
		require.Error(t, err)

		if rollback {
			require.Empty(t, c.Replay())
		} else {
			require.Len(t, c.Replay(), 1)
		}
	}
}
