package engine

import (
	"context"

	"github.com/go-go-golems/multichat/pkg/events"
	"github.com/rs/zerolog/log"
)

// Option is a functional option for configuring engines.
type Option func(*Config) error

// Config holds configuration shared by all engines.
type Config struct {
	// EventSinks holds all registered event sinks for publishing inference events.
	// Events are published to all sinks in the order they were added.
	EventSinks []events.EventSink
}

// NewConfig creates a new configuration with default values.
func NewConfig() *Config {
	return &Config{
		EventSinks: make([]events.EventSink, 0),
	}
}

// WithSink adds an EventSink to the configuration.
func WithSink(sink events.EventSink) Option {
	return func(c *Config) error {
		c.EventSinks = append(c.EventSinks, sink)
		return nil
	}
}

// ApplyOptions applies a set of options to a configuration.
func ApplyOptions(config *Config, options ...Option) error {
	for _, option := range options {
		if err := option(config); err != nil {
			return err
		}
	}
	return nil
}

// PublishEvent publishes an event to all configured sinks and any sinks carried in context.
func (c *Config) PublishEvent(ctx context.Context, event events.Event) {
	if c != nil {
		for _, sink := range c.EventSinks {
			if err := sink.PublishEvent(event); err != nil {
				log.Warn().Err(err).Str("event_type", string(event.Type())).Msg("Failed to publish event to sink")
			}
		}
	}
	events.PublishEventToContext(ctx, event)
}
