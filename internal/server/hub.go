package server

import (
	"encoding/json"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/logging"
)

// listenerBuffer is how many events a slow listener may lag behind before drops.
const listenerBuffer = 256

// SDKEvent is the wire shape of a relayed event.
type SDKEvent struct {
	Type       event.EventType `json:"type"`
	Properties json.RawMessage `json:"properties"`
}

type listener struct {
	id        string
	sessionID string
	ch        chan SDKEvent
}

// hub fans relay messages out to SSE and websocket listeners. Messages are acked
// as soon as they are queued so a slow listener never holds up the publisher.
type hub struct {
	mu        sync.Mutex
	listeners map[string]*listener
	closed    bool
	log       zerolog.Logger
}

func newHub() *hub {
	return &hub{
		listeners: make(map[string]*listener),
		log:       logging.Component("relay"),
	}
}

func (h *hub) run(msgs <-chan *message.Message) {
	for msg := range msgs {
		h.dispatch(msg.Payload)
		msg.Ack()
	}
	h.closeAll()
}

// add registers a listener. An empty sessionID receives every event.
func (h *hub) add(sessionID string) *listener {
	l := &listener{
		id:        uuid.NewString(),
		sessionID: sessionID,
		ch:        make(chan SDKEvent, listenerBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(l.ch)
		return l
	}
	h.listeners[l.id] = l
	h.log.Debug().Str("listenerID", l.id).Str("sessionID", sessionID).Msg("listener connected")
	return l
}

func (h *hub) remove(l *listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.listeners[l.id]; ok {
		delete(h.listeners, l.id)
		close(l.ch)
		h.log.Debug().Str("listenerID", l.id).Msg("listener disconnected")
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func (h *hub) dispatch(payload []byte) {
	typ, data, err := event.DecodeRelay(payload)
	if err != nil {
		h.log.Warn().Err(err).Msg("undecodable relay message")
		return
	}
	sessionID := eventSessionID(data)
	ev := SDKEvent{Type: typ, Properties: data}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, l := range h.listeners {
		if l.sessionID != "" && sessionID != "" && l.sessionID != sessionID {
			continue
		}
		select {
		case l.ch <- ev:
		default:
			h.log.Warn().Str("listenerID", l.id).Str("eventType", string(typ)).Msg("listener behind, event dropped")
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, l := range h.listeners {
		close(l.ch)
		delete(h.listeners, id)
	}
}

// eventSessionID returns the session an event payload is about, if any.
func eventSessionID(data json.RawMessage) string {
	var ids struct {
		SessionID     string `json:"sessionId"`
		CorrelationID string `json:"correlationId"`
	}
	if err := json.Unmarshal(data, &ids); err != nil {
		return ""
	}
	if ids.SessionID != "" {
		return ids.SessionID
	}
	return ids.CorrelationID
}
