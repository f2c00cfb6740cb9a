package engine

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeNetError struct {
	timeout bool
}

func (f fakeNetError) Error() string   { return "net failure" }
func (f fakeNetError) Timeout() bool   { return f.timeout }
func (f fakeNetError) Temporary() bool { return false }

var _ net.Error = fakeNetError{}

func TestClassify(t *testing.T) {
	require.Nil(t, Classify(nil))

	blocked := NewError(ErrorKindBlocked, errors.New("safety"))
	require.Same(t, blocked, Classify(errors.Wrap(blocked, "gemini")))

	require.Equal(t, ErrorKindTimeout, Classify(context.DeadlineExceeded).Kind)
	require.Equal(t, ErrorKindTimeout, Classify(errors.Wrap(ErrTimeout, "idle")).Kind)
	require.Equal(t, ErrorKindCanceled, Classify(context.Canceled).Kind)
	require.Equal(t, ErrorKindTransport, Classify(fakeNetError{}).Kind)
	require.Equal(t, ErrorKindTimeout, Classify(fakeNetError{timeout: true}).Kind)
	require.Equal(t, ErrorKindUnknown, Classify(errors.New("weird")).Kind)
}

func TestClassifyContextPrefersCause(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(ErrTimeout)
	e := ClassifyContext(ctx, NewError(ErrorKindTransport, errors.New("stream closed")))
	require.Equal(t, ErrorKindTimeout, e.Kind)

	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel2()
	<-ctx2.Done()
	require.Equal(t, ErrorKindTimeout, ClassifyContext(ctx2, errors.New("read failed")).Kind)

	ctx3, cancel3 := context.WithCancel(context.Background())
	cancel3()
	require.Equal(t, ErrorKindCanceled, ClassifyContext(ctx3, errors.New("read failed")).Kind)

	require.Equal(t, ErrorKindUnknown, ClassifyContext(context.Background(), errors.New("x")).Kind)
}

func TestKindOfAndMessage(t *testing.T) {
	require.Equal(t, ErrorKindUnknown, KindOf(errors.New("plain")))
	e := &Error{Kind: ErrorKindBlocked, Provider: "gemini", Err: errors.New("SAFETY")}
	require.Equal(t, ErrorKindBlocked, KindOf(errors.Wrap(e, "wrapped")))
	require.Equal(t, "gemini: blocked error: SAFETY", e.Error())
	require.Contains(t, e.Message(), "content policy")
	require.Contains(t, NewError(ErrorKindTransport, errors.New("dial tcp")).Message(), "dial tcp")
}
