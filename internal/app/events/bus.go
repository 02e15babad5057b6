// Package events delivers domain events once the transaction that produced
// them has committed.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
)

// Hook observes committed events in-process.
type Hook func(ctx context.Context, event interfaces.Event)

// Bus runs hooks in registration order, then hands each event to the
// publisher. Publish failures are logged and never reach the caller.
type Bus struct {
	mu        sync.RWMutex
	hooks     []Hook
	publisher interfaces.EventPublisher
	logger    logger.Logger
}

// NewBus creates a bus. publisher may be nil.
func NewBus(publisher interfaces.EventPublisher, lgr logger.Logger) *Bus {
	return &Bus{publisher: publisher, logger: lgr}
}

func (b *Bus) Subscribe(h Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hooks = append(b.hooks, h)
}

func (b *Bus) Publish(ctx context.Context, evs ...interfaces.Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	hooks := append([]Hook(nil), b.hooks...)
	b.mu.RUnlock()

	for _, ev := range evs {
		for _, h := range hooks {
			h(ctx, ev)
		}
		if b.publisher == nil {
			continue
		}
		if err := b.publisher.PublishEvent(ctx, ev); err != nil {
			b.logger.Error("event_publish_failed", "Failed to publish event", ev.RequestID, map[string]interface{}{
				"type": ev.Type,
			}, err)
		}
	}
}

func New(eventType, requestID string, data map[string]interface{}) interfaces.Event {
	return interfaces.Event{
		Type:       eventType,
		RequestID:  requestID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}
