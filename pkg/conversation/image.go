package conversation

import (
	"fmt"
	"strings"
	"time"
)

// ImageRecord is one entry in an image generation log: the prompt that was
// sent and a reference to the generated image.
type ImageRecord struct {
	Prompt string `json:"prompt" yaml:"prompt"`
	// Ref is a URL, or a data URI when the provider only returned base64.
	Ref           string    `json:"ref" yaml:"ref"`
	RevisedPrompt string    `json:"revised_prompt,omitempty" yaml:"revised_prompt,omitempty"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
}

// Markdown renders the record as a markdown image reference.
func (r ImageRecord) Markdown() string {
	alt := strings.TrimSpace(r.RevisedPrompt)
	if alt == "" {
		alt = strings.TrimSpace(r.Prompt)
	}
	alt = strings.NewReplacer(`\`, `\\`, "]", `\]`).Replace(alt)
	return fmt.Sprintf("![%s](%s)", alt, r.Ref)
}

// AsTurns maps an image log onto user/assistant turns so that the same display
// sinks can render text and image sessions.
func AsTurns(records []ImageRecord) Conversation {
	ret := make(Conversation, 0, 2*len(records))
	for _, r := range records {
		ret = append(ret,
			NewUserTurn(r.Prompt, WithTime(r.CreatedAt)),
			NewAssistantTurn(r.Markdown(), WithTime(r.CreatedAt)),
		)
	}
	return ret
}
