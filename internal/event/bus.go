package event

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/opencode-ai/agentcore/internal/logging"
)

// RelayTopic is the watermill topic carrying JSON-encoded events for remote listeners.
const RelayTopic = "agentcore.events"

// EventType represents the type of event.
type EventType string

const (
	SessionListUpdated   EventType = "session.list-updated"
	SessionActivated     EventType = "session.activated"
	SessionDeactivated   EventType = "session.deactivated"
	SessionStatusChanged EventType = "session.status-changed"

	StreamResponse EventType = "stream.response"
	StreamEnd      EventType = "stream.end"
	StreamError    EventType = "stream.error"
)

// Event represents an event to be published.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Publisher is the fire-and-forget side of the bus consumed by agents and the orchestrator.
type Publisher interface {
	Publish(event Event)
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus delivers events to direct subscribers on the publishing goroutine, in publish
// order, and forwards a JSON copy to RelayTopic on a watermill gochannel.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[EventType][]subscriberEntry
	global      []subscriberEntry

	nextID uint64
	closed bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 256,
				Persistent:          false,
				// Relay listeners must see stream events in publish order.
				BlockPublishUntilSubscriberAck: true,
			},
			watermill.NopLogger{},
		),
		subscribers: make(map[EventType][]subscriberEntry),
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers a subscriber for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribe(eventType, id)
	}
}

// SubscribeAll registers a subscriber for all events.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})

	return func() {
		b.unsubscribeGlobal(id)
	}
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == id {
			b.global = append(b.global[:i:i], b.global[i+1:]...)
			break
		}
	}
}

// Publish delivers the event to every subscriber synchronously, then to the relay topic.
// Failures are logged, never returned.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}

	subs := make([]Subscriber, 0, len(b.subscribers[event.Type])+len(b.global))
	for _, entry := range b.subscribers[event.Type] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	b.mu.RUnlock()

	for _, sub := range subs {
		b.dispatch(sub, event)
	}

	b.relay(event)
}

func (b *Bus) dispatch(sub Subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Interface("panic", r).Str("type", string(event.Type)).Msg("event subscriber panicked")
		}
	}()
	sub(event)
}

func (b *Bus) relay(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logging.Warn().Err(err).Str("type", string(event.Type)).Msg("failed to encode relay event")
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("type", string(event.Type))
	if err := b.pubsub.Publish(RelayTopic, msg); err != nil {
		logging.Debug().Err(err).Str("type", string(event.Type)).Msg("relay publish dropped")
	}
}

// SubscribeRelay returns the JSON event stream for a remote listener. Each message
// must be acked; the channel closes when ctx is done or the bus is closed.
func (b *Bus) SubscribeRelay(ctx context.Context) (<-chan *message.Message, error) {
	return b.pubsub.Subscribe(ctx, RelayTopic)
}

// Close closes the bus and all its subscribers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subscribers = make(map[EventType][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}

// PubSub returns the underlying watermill GoChannel.
func (b *Bus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}

// DecodeRelay parses a relay payload back into its type and raw data.
func DecodeRelay(payload []byte) (EventType, json.RawMessage, error) {
	var raw struct {
		Type EventType       `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return "", nil, err
	}
	return raw.Type, raw.Data, nil
}
