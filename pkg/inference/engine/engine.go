package engine

import (
	"context"

	"github.com/go-go-golems/multichat/pkg/conversation"
)

// DeltaFunc receives streamed text fragments in the order the provider emits them.
type DeltaFunc func(delta string)

// Engine wraps one hosted text completion backend.
type Engine interface {
	// RunInference streams a completion for history (which ends with the
	// user turn being answered). Every text fragment is passed to onDelta in
	// emission order; the returned text is the concatenation of those
	// fragments. Failures are returned as *Error so callers can tell safety
	// refusals apart from transport problems.
	RunInference(ctx context.Context, history conversation.Conversation, onDelta DeltaFunc) (string, error)
}

// ImageGenerator is the single-shot image capability. It has no history and
// no streaming.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (*conversation.ImageRecord, error)
}
