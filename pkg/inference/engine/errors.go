package engine

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// ErrorKind is the failure taxonomy surfaced to displays.
type ErrorKind string

const (
	// ErrorKindBlocked means the provider refused the request on content policy grounds.
	ErrorKindBlocked ErrorKind = "blocked"
	// ErrorKindTransport covers network failures, non-2xx responses and malformed streams.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindTimeout means no terminal event arrived within the configured bound.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindCanceled means the request was cancelled by the caller.
	ErrorKindCanceled ErrorKind = "canceled"
	ErrorKindUnknown  ErrorKind = "unknown"
)

// ErrTimeout is used as a context cancellation cause by timeout guards.
var ErrTimeout = errors.New("no response within the configured timeout")

// Error is the typed failure returned by engines and surfaced by sessions.
type Error struct {
	Kind ErrorKind
	// Provider is the provider that produced the failure, if known.
	Provider string
	Err      error
}

func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s error: %s", e.Provider, e.Kind, e.Err.Error())
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Message is the short text shown to users in place of the missing answer.
func (e *Error) Message() string {
	switch e.Kind {
	case ErrorKindBlocked:
		return "The provider declined to answer this prompt (content policy)."
	case ErrorKindTimeout:
		return "The provider did not answer in time."
	case ErrorKindCanceled:
		return "The request was cancelled."
	case ErrorKindTransport:
		return "Could not reach the provider: " + e.causeString()
	case ErrorKindUnknown:
		return "Unexpected error: " + e.causeString()
	}
	return e.Error()
}

func (e *Error) causeString() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

// KindOf returns the kind of err, or ErrorKindUnknown when err carries none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrorKindUnknown
}

// Classify converts any error into an *Error. Errors that already carry a
// kind are returned unchanged; context and network errors are mapped
// generically. Provider specific mapping happens in the engine packages
// before errors reach this point.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return NewError(ErrorKindTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return NewError(ErrorKindCanceled, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewError(ErrorKindTimeout, err)
		}
		return NewError(ErrorKindTransport, err)
	}
	return NewError(ErrorKindUnknown, err)
}

// ClassifyContext prefers the cancellation cause of ctx when ctx is done, so
// that a timeout guard that cancelled the request is reported as a timeout
// rather than as whatever error the provider client produced.
func ClassifyContext(ctx context.Context, err error) *Error {
	if err == nil {
		return nil
	}
	if ctx != nil && ctx.Err() != nil {
		cause := context.Cause(ctx)
		if errors.Is(cause, ErrTimeout) || errors.Is(cause, context.DeadlineExceeded) {
			return NewError(ErrorKindTimeout, cause)
		}
		if errors.Is(cause, context.Canceled) {
			return NewError(ErrorKindCanceled, cause)
		}
	}
	return Classify(err)
}
