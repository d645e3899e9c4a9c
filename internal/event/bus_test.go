package event

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/pkg/types"
)

func TestBus_SubscribeDeliversInOrder(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var got []int64
	unsub := bus.Subscribe(StreamResponse, func(e Event) {
		got = append(got, e.Data.(StreamResponseData).EventID)
	})
	defer unsub()

	for i := int64(1); i <= 50; i++ {
		bus.Publish(Event{Type: StreamResponse, Data: StreamResponseData{CorrelationID: "s1", EventID: i}})
	}

	// delivery is synchronous
	require.Len(t, got, 50)
	for i, id := range got {
		assert.Equal(t, int64(i+1), id)
	}
}

func TestBus_SubscribeFiltersByType(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var ends, all int
	bus.Subscribe(StreamEnd, func(Event) { ends++ })
	bus.SubscribeAll(func(Event) { all++ })

	bus.Publish(Event{Type: StreamEnd, Data: StreamEndData{CorrelationID: "s1"}})
	bus.Publish(Event{Type: StreamError, Data: StreamErrorData{CorrelationID: "s1", Error: "x"}})
	bus.Publish(Event{Type: SessionListUpdated, Data: SessionListUpdatedData{}})

	assert.Equal(t, 1, ends)
	assert.Equal(t, 3, all)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count int
	unsub := bus.Subscribe(SessionActivated, func(Event) { count++ })
	unsubAll := bus.SubscribeAll(func(Event) { count++ })

	bus.Publish(Event{Type: SessionActivated})
	unsub()
	unsubAll()
	bus.Publish(Event{Type: SessionActivated})

	assert.Equal(t, 2, count)
}

func TestBus_SubscriberPanicIsContained(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var reached bool
	bus.Subscribe(StreamEnd, func(Event) { panic("boom") })
	bus.Subscribe(StreamEnd, func(Event) { reached = true })

	assert.NotPanics(t, func() { bus.Publish(Event{Type: StreamEnd}) })
	assert.True(t, reached)
}

func TestBus_Closed(t *testing.T) {
	bus := NewBus()
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	var called bool
	unsub := bus.Subscribe(StreamEnd, func(Event) { called = true })
	unsub()
	bus.Publish(Event{Type: StreamEnd})
	assert.False(t, called)
}

func TestBus_Relay(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgs, err := bus.SubscribeRelay(ctx)
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		received []EventType
		eventIDs []int64
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgs {
			typ, data, err := DecodeRelay(msg.Payload)
			msg.Ack()
			if err != nil {
				continue
			}
			mu.Lock()
			received = append(received, typ)
			if typ == StreamResponse {
				var resp StreamResponseData
				if json.Unmarshal(data, &resp) == nil {
					eventIDs = append(eventIDs, resp.EventID)
				}
			}
			n := len(received)
			mu.Unlock()
			if n == 6 {
				return
			}
		}
	}()

	for i := int64(1); i <= 5; i++ {
		bus.Publish(Event{Type: StreamResponse, Data: StreamResponseData{
			CorrelationID: "s1",
			EventID:       i,
			Delta:         StreamDelta{MessageID: "m1", Blocks: []types.AssistantBlock{}},
		}})
	}
	bus.Publish(Event{Type: StreamEnd, Data: StreamEndData{CorrelationID: "s1", MessageID: "m1"}})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relay")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, eventIDs)
	assert.Equal(t, StreamEnd, received[5])
}

func TestBus_RelayWithoutListeners(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	finished := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: SessionListUpdated, Data: SessionListUpdatedData{}})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("publish blocked without relay listeners")
	}
}
