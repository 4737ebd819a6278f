package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"whatsapp_sdr_backend/platform/logger"
)

// InMemoryBus is a process-local Bus. Async handlers run on their own goroutine
// with a context detached from the publisher's cancellation.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
	log      *logger.Logger
}

var _ Bus = (*InMemoryBus)(nil)

// NewInMemoryBus creates an empty bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for a specific event type.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

func (b *InMemoryBus) snapshot(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := b.handlers[eventName]
	out := make([]Handler, len(handlers))
	copy(out, handlers)
	return out
}

// Publish dispatches the event to each handler on its own goroutine and returns immediately.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	detached := context.WithoutCancel(ctx)
	for _, handler := range b.snapshot(event.EventName()) {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			if err := b.invoke(detached, h, event); err != nil && b.log != nil {
				b.log.WithContext(detached).Error("event handler failed",
					"event", event.EventName(), "error", err)
			}
		}(handler)
	}
}

// PublishSync runs every handler in registration order and joins their errors.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, handler := range b.snapshot(event.EventName()) {
		if err := b.invoke(ctx, handler, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until every asynchronously dispatched handler has returned.
func (b *InMemoryBus) Wait() {
	b.wg.Wait()
}

func (b *InMemoryBus) invoke(ctx context.Context, handler Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler for %s panicked: %v", event.EventName(), r)
		}
	}()
	return handler.Handle(ctx, event)
}
