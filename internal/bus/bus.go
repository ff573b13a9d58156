// Package bus is a best-effort, in-process signaling mechanism decoupling
// event producers from subscribers. No persistence, no replay, no ordering
// guarantee across different event kinds.
package bus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/covassure/claimflow/internal/model"
)

// Handler reacts to a published domain event
type Handler func(ctx context.Context, event model.DomainEvent) error

// Bus dispatches domain events to subscribed handlers. Safe for concurrent
// publication from multiple claim workflows.
type Bus struct {
	mu       sync.RWMutex
	handlers map[model.EventKind][]Handler
	logger   *zap.Logger
}

// New creates an empty bus
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		handlers: make(map[model.EventKind][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event kind. Handlers run in
// registration order.
func (b *Bus) Subscribe(kind model.EventKind, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// Publish invokes every handler registered for the event's kind, in
// registration order, synchronously with respect to the caller. A handler
// failure (error or panic) is logged and collected but never blocks the
// remaining handlers.
func (b *Bus) Publish(ctx context.Context, event model.DomainEvent) []error {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Kind]...)
	b.mu.RUnlock()

	var failures []error
	for i, handler := range handlers {
		if err := b.invoke(ctx, handler, event); err != nil {
			b.logger.Warn("event handler failed",
				zap.String("event_kind", string(event.Kind)),
				zap.String("event_id", event.ID),
				zap.String("claim_id", event.ClaimID),
				zap.Int("handler_index", i),
				zap.Error(err),
			)
			failures = append(failures, err)
		}
	}
	return failures
}

// invoke runs one handler, converting a panic into an error
func (b *Bus) invoke(ctx context.Context, handler Handler, event model.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic on %s: %v", event.Kind, r)
		}
	}()
	return handler(ctx, event)
}
