package cmds

import (
	"github.com/go-go-golems/multichat/pkg/steps/ai/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// LoadSettings builds the settings in layers: defaults, then the nested
// settings file when one is given, then whatever viper knows from the config
// file, the environment and the command line.
func LoadSettings(v *viper.Viper, settingsFile string) (*settings.Settings, error) {
	s := settings.NewSettings()
	if settingsFile != "" {
		var err error
		s, err = settings.NewSettingsFromFile(settingsFile)
		if err != nil {
			return nil, err
		}
	}

	if err := s.UpdateFromViper(v); err != nil {
		return nil, errors.Wrap(err, "could not apply configuration")
	}

	log.Debug().
		Str("settings_file", settingsFile).
		Str("config", v.ConfigFileUsed()).
		Fields(s.GetMetadata()).
		Msg("loaded settings")

	return s, nil
}
