package openai

import (
	"github.com/huandu/go-clone"
)

const (
	DefaultModel      = "gpt-5-nano"
	DefaultImageModel = "dall-e-3"
	DefaultImageSize  = "1024x1024"
)

type Settings struct {
	APIKey string `yaml:"api_key,omitempty"`
	// BaseURL overrides the API endpoint, e.g. for an OpenAI compatible proxy.
	BaseURL    string `yaml:"base_url,omitempty"`
	Model      string `yaml:"model,omitempty"`
	ImageModel string `yaml:"image_model,omitempty"`
	ImageSize  string `yaml:"image_size,omitempty"`
	// Organization is sent as the OpenAI-Organization header when set.
	Organization string `yaml:"organization,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{
		Model:      DefaultModel,
		ImageModel: DefaultImageModel,
		ImageSize:  DefaultImageSize,
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}
