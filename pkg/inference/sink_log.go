package inference

import (
	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/rs/zerolog"
)

// LogSink writes events to a zerolog logger. Partial completions are logged
// at trace level, everything else at debug.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (l *LogSink) PublishEvent(event events.Event) error {
	ev := l.logger.Debug()
	if event.Type() == events.EventTypePartialCompletion {
		ev = l.logger.Trace()
	}
	if m, ok := event.(zerolog.LogObjectMarshaler); ok {
		ev = ev.EmbedObject(m)
	} else {
		ev = ev.Str("type", string(event.Type()))
	}
	ev.Msg("inference event")
	return nil
}

var _ events.EventSink = (*LogSink)(nil)
