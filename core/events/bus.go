package events

import (
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"

	"nftmarket/core/types"
)

// TopicAll receives every event published through a BusEmitter in addition
// to the per-type topic.
const TopicAll = "marketplace.*"

// Handler is the callback shape expected by BusEmitter subscribers.
type Handler func(Event, *types.Event)

// BusEmitter publishes events on an EventBus, one topic per event type plus
// TopicAll. Each published record carries a sequence number that increases
// across all topics.
type BusEmitter struct {
	bus evbus.Bus
	seq atomic.Uint64
}

// NewBusEmitter wraps bus. A nil bus creates a fresh one.
func NewBusEmitter(bus evbus.Bus) *BusEmitter {
	if bus == nil {
		bus = evbus.New()
	}
	return &BusEmitter{bus: bus}
}

// WaitAsync blocks until every asynchronous handler has processed the events
// published so far.
func (b *BusEmitter) WaitAsync() { b.bus.WaitAsync() }

// Subscribe registers handler for topic, which is an event type or TopicAll.
func (b *BusEmitter) Subscribe(topic string, handler Handler) error {
	return b.bus.Subscribe(topic, handler)
}

// SubscribeAsync registers handler to run on its own goroutine. Transactional
// handlers process events one at a time in publish order.
func (b *BusEmitter) SubscribeAsync(topic string, handler Handler, transactional bool) error {
	return b.bus.SubscribeAsync(topic, handler, transactional)
}

// Emit implements the Emitter interface.
func (b *BusEmitter) Emit(evt Event) {
	if evt == nil {
		return
	}
	base := evt.Event()
	if base == nil {
		return
	}
	record := &types.Event{
		Type:       base.Type,
		Sequence:   b.seq.Add(1),
		Attributes: make(map[string]string, len(base.Attributes)),
	}
	for k, v := range base.Attributes {
		record.Attributes[k] = v
	}
	b.bus.Publish(record.Type, evt, record)
	b.bus.Publish(TopicAll, evt, record)
}

// Sequence returns the sequence number of the last published event.
func (b *BusEmitter) Sequence() uint64 { return b.seq.Load() }
