// Package bus provides an in-process session channel for contexts sharing
// one process, and for tests. Semantics match the cross-process transports:
// fire and forget, no ordering guarantee.
package bus

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/arklim/social-platform-authz/internal/core/domain"
	"github.com/arklim/social-platform-authz/internal/core/port"
)

// Bus fans session events out to every subscriber. Handlers run on the
// publisher's goroutine, but a panicking handler never reaches the
// publisher.
type Bus struct {
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[int]func(domain.SessionEvent)
	nextID   int
}

// New constructs an empty Bus.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		logger:   logger,
		handlers: make(map[int]func(domain.SessionEvent)),
	}
}

// Publish delivers the event to all current subscribers.
func (b *Bus) Publish(_ context.Context, event domain.SessionEvent) error {
	b.mu.RLock()
	handlers := make([]func(domain.SessionEvent), 0, len(b.handlers))
	for _, handler := range b.handlers {
		handlers = append(handlers, handler)
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.deliver(handler, event)
	}
	return nil
}

// Subscribe registers the handler until ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, handler func(domain.SessionEvent)) error {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}()

	return nil
}

func (b *Bus) deliver(handler func(domain.SessionEvent), event domain.SessionEvent) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("session event handler panicked", zap.Any("panic", r))
		}
	}()
	handler(event)
}

var _ port.Broadcaster = (*Bus)(nil)
