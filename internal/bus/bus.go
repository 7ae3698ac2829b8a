// Package bus provides the in-process publish/subscribe mechanism that
// decouples the orchestrator from logging and telemetry consumers.
//
// This is a same-process notification mechanism, not a durable message
// queue: no retry, no queueing, no persistence. Handlers run synchronously
// in subscription order and a failing handler never prevents the rest from
// running.
package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/greenroom/pkg/logger"
	"github.com/okian/greenroom/pkg/metrics"
)

// Kind is the closed set of event kinds published by the service.
type Kind string

const (
	SessionStarted            Kind = "session-started"
	SessionEnded              Kind = "session-ended"
	SessionReset              Kind = "session-reset"
	UserMessageReceived       Kind = "user-message-received"
	AssistantResponseProduced Kind = "assistant-response-produced"
	ErrorRaised               Kind = "error-raised"
)

// Event is a transient typed notification. Events are dispatched, never
// stored.
type Event struct {
	Kind    Kind
	Source  string
	Payload map[string]any
}

// Handler consumes one event.
type Handler func(ctx context.Context, e Event)

// Bus dispatches events to subscribed handlers.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	logger   logger.Logger
}

// Option applies a configuration option to the Bus.
type Option func(*Bus)

// WithLogger sets a custom logger for the bus.
func WithLogger(l logger.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates an empty bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[Kind][]Handler),
		logger:   logger.Get().Named("bus"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for a kind. Handlers for a kind are invoked
// in subscription order.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], h)
}

// Publish synchronously invokes every handler registered for the event's
// kind. A panicking handler is recovered and logged; remaining handlers
// still run.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	hs := b.handlers[e.Kind]
	b.mu.RUnlock()

	metrics.RecordEventPublished(string(e.Kind))

	for _, h := range hs {
		b.invoke(ctx, e, h)
	}
}

func (b *Bus) invoke(ctx context.Context, e Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordHandlerPanic()
			b.logger.Error(ctx, "event handler panicked",
				logger.String("kind", string(e.Kind)),
				logger.String("source", e.Source),
				logger.Error(fmt.Errorf("%v", r)),
			)
		}
	}()
	h(ctx, e)
}
