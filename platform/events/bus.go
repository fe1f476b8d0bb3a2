package events

import (
	"context"
	"sync"

	"salesops_backend/platform/logger"
)

// InMemoryBus is a simple in-process event bus. Publish dispatches to
// handlers on separate goroutines; a handler error is logged, never
// propagated back to the publisher.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
	wg       sync.WaitGroup
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously.
// Handlers run detached from the caller's context cancellation.
func (b *InMemoryBus) Publish(_ context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.EventName()]
	b.mu.RUnlock()

	for _, h := range handlers {
		h := h
		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			if err := h.Handle(context.Background(), event); err != nil {
				b.log.Error("event_handler_failed",
					"event", event.EventName(),
					"error", err.Error(),
				)
			}
		}()
	}
}

// PublishSync dispatches the event and waits for all handlers.
// Returns the first handler error encountered.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := b.handlers[event.EventName()]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			b.log.Error("event_handler_failed",
				"event", event.EventName(),
				"error", err.Error(),
			)
			return err
		}
	}
	return nil
}

// Wait blocks until all in-flight async handlers finish. Used on shutdown.
func (b *InMemoryBus) Wait() {
	b.wg.Wait()
}
