package events

import (
	"context"
	"errors"
	"testing"

	"github.com/YelzhanWeb/waiter/internal/adapter/logger"
	"github.com/YelzhanWeb/waiter/internal/interfaces"
	"github.com/stretchr/testify/assert"
)

type recordingPublisher struct {
	types []string
	err   error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, ev interfaces.Event) error {
	p.types = append(p.types, ev.Type)
	return p.err
}

func TestPublishRunsHooksInOrderThenPublisher(t *testing.T) {
	pub := &recordingPublisher{}
	bus := NewBus(pub, logger.NewNop())

	var seen []string
	bus.Subscribe(func(_ context.Context, ev interfaces.Event) { seen = append(seen, "first:"+ev.Type) })
	bus.Subscribe(func(_ context.Context, ev interfaces.Event) { seen = append(seen, "second:"+ev.Type) })

	bus.Publish(context.Background(),
		New(interfaces.EventOrderLineAdded, "r1", nil),
		New(interfaces.EventMenuAvailabilityChanged, "r1", nil),
	)

	assert.Equal(t, []string{
		"first:order_line.added", "second:order_line.added",
		"first:menu_item.availability_changed", "second:menu_item.availability_changed",
	}, seen)
	assert.Equal(t, []string{interfaces.EventOrderLineAdded, interfaces.EventMenuAvailabilityChanged}, pub.types)
}

func TestPublishSwallowsPublisherErrors(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("channel closed")}
	bus := NewBus(pub, logger.NewNop())

	assert.NotPanics(t, func() {
		bus.Publish(context.Background(), New(interfaces.EventPrintJobsCancelled, "r2", map[string]interface{}{"count": 3}))
	})
	assert.Len(t, pub.types, 1)
}

func TestNilBusAndPublisher(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(context.Background(), New("x", "", nil)) })
	assert.NotPanics(t, func() { NewBus(nil, logger.NewNop()).Publish(context.Background(), New("x", "", nil)) })
}
