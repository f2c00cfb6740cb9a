package types

import (
	"strings"

	"github.com/pkg/errors"
)

type ApiType string

const (
	ApiTypeOpenAI ApiType = "openai"
	ApiTypeGemini ApiType = "gemini"
	ApiTypeOllama ApiType = "ollama"
	ApiTypeEcho   ApiType = "echo"
)

// ProviderID selects one of the conversations offered to the operator. The set
// is closed: every value has exactly one engine wiring in the factory.
type ProviderID string

const (
	ProviderGemini ProviderID = "gemini"
	ProviderOpenAI ProviderID = "openai"
	ProviderOllama ProviderID = "ollama"
	ProviderEcho   ProviderID = "echo"
	// ProviderImage is the request/response image generation log. It has no
	// role-tagged history.
	ProviderImage ProviderID = "image"
)

// AllProviders lists providers in selection order.
var AllProviders = []ProviderID{
	ProviderGemini,
	ProviderOpenAI,
	ProviderOllama,
	ProviderEcho,
	ProviderImage,
}

var providerLabels = map[ProviderID]string{
	ProviderGemini: "Gemini",
	ProviderOpenAI: "OpenAI",
	ProviderOllama: "Ollama",
	ProviderEcho:   "Echo",
	ProviderImage:  "Image Generation",
}

func (p ProviderID) String() string {
	return string(p)
}

// Label is the human readable name shown in selectors.
func (p ProviderID) Label() string {
	if l, ok := providerLabels[p]; ok {
		return l
	}
	return string(p)
}

// IsConversational is false for providers that keep a request/response log
// instead of a turn history.
func (p ProviderID) IsConversational() bool {
	return p != ProviderImage
}

// ParseProviderID accepts either the identifier or the label, case-insensitively.
func ParseProviderID(s string) (ProviderID, error) {
	s = strings.TrimSpace(s)
	for _, p := range AllProviders {
		if strings.EqualFold(s, string(p)) || strings.EqualFold(s, p.Label()) {
			return p, nil
		}
	}
	return "", errors.Errorf("unknown provider %q", s)
}
