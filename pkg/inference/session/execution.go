package session

import (
	"context"
	"errors"
	"sync"

	"github.com/go-go-golems/multichat/pkg/conversation"
)

var ErrExecutionHandleNil = errors.New("execution handle is nil")

// ExecutionHandle represents a single in-flight request.
//
// It is cancelable and waitable. The underlying request is always driven by context cancellation.
type ExecutionHandle struct {
	SessionID   string
	InferenceID string
	// Prompt is the user text that started the request.
	Prompt string

	done chan struct{}

	mu     sync.Mutex
	cancel context.CancelCauseFunc
	out    *conversation.Turn
	err    error
}

func newExecutionHandle(sessionID, inferenceID, prompt string, cancel context.CancelCauseFunc) *ExecutionHandle {
	return &ExecutionHandle{
		SessionID:   sessionID,
		InferenceID: inferenceID,
		Prompt:      prompt,
		done:        make(chan struct{}),
		cancel:      cancel,
	}
}

func (h *ExecutionHandle) setResult(out *conversation.Turn, err error) {
	h.mu.Lock()
	h.out = out
	h.err = err
	close(h.done)
	h.cancel = nil
	h.mu.Unlock()
}

// Cancel cancels the in-flight request. It is safe to call multiple times.
func (h *ExecutionHandle) Cancel() {
	if h == nil {
		return
	}
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel(context.Canceled)
	}
}

// Wait blocks until the request completes and returns the committed assistant
// turn, or the *engine.Error the request failed with.
func (h *ExecutionHandle) Wait() (*conversation.Turn, error) {
	if h == nil {
		return nil, ErrExecutionHandleNil
	}
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out, h.err
}

// Done is closed when the request has completed.
func (h *ExecutionHandle) Done() <-chan struct{} {
	return h.done
}

// IsRunning reports whether the request appears to still be running.
func (h *ExecutionHandle) IsRunning() bool {
	if h == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}
