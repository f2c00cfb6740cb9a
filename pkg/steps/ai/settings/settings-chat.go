package settings

import (
	"github.com/huandu/go-clone"
)

// ChatSettings are sampling parameters shared by all text providers. Nil
// values leave the provider default in place.
type ChatSettings struct {
	MaxResponseTokens *int     `yaml:"max_response_tokens,omitempty"`
	TopP              *float64 `yaml:"top_p,omitempty"`
	Temperature       *float64 `yaml:"temperature,omitempty"`
	Stop              []string `yaml:"stop,omitempty"`
	// RollbackOnError removes the user turn of a failed request from the
	// history. By default it stays, without an answer.
	RollbackOnError bool `yaml:"rollback_on_error,omitempty"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		Stop: []string{},
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}
