package ollama

import (
	"github.com/huandu/go-clone"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
)

type Settings struct {
	// Enabled is false by default since a local server is not always running.
	Enabled     bool     `yaml:"enabled"`
	BaseURL     string   `yaml:"base_url,omitempty"`
	Model       string   `yaml:"model,omitempty"`
	NumCtx      *int     `yaml:"num-ctx,omitempty"`
	Seed        *int     `yaml:"seed,omitempty"`
	TopK        *int     `yaml:"top-k,omitempty"`
	RepeatLastN *int     `yaml:"repeat-last-n,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
}

func NewSettings() *Settings {
	return &Settings{
		BaseURL: DefaultBaseURL,
		Model:   DefaultModel,
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// Options converts the sampling settings into the options map understood by
// the ollama chat API.
func (s *Settings) Options() map[string]interface{} {
	ret := map[string]interface{}{}
	if s.NumCtx != nil {
		ret["num_ctx"] = *s.NumCtx
	}
	if s.Seed != nil {
		ret["seed"] = *s.Seed
	}
	if s.TopK != nil {
		ret["top_k"] = *s.TopK
	}
	if s.RepeatLastN != nil {
		ret["repeat_last_n"] = *s.RepeatLastN
	}
	if s.Temperature != nil {
		ret["temperature"] = *s.Temperature
	}
	return ret
}
