package gemini

import (
	"github.com/huandu/go-clone"
)

const DefaultModel = "gemini-1.5-flash"

type Settings struct {
	APIKey string `yaml:"api_key,omitempty"`
	Model  string `yaml:"model,omitempty"`
	// BaseURL overrides the API endpoint, e.g. for a proxy.
	BaseURL string `yaml:"base_url,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{Model: DefaultModel}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}
