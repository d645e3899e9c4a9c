package event

import "github.com/opencode-ai/agentcore/pkg/types"

// SessionListUpdatedData is the data for session.list-updated events.
type SessionListUpdatedData struct{}

// SessionActivatedData is the data for session.activated events.
type SessionActivatedData struct {
	WindowID  string `json:"windowId"`
	SessionID string `json:"sessionId"`
}

// SessionDeactivatedData is the data for session.deactivated events.
type SessionDeactivatedData struct {
	WindowID string `json:"windowId"`
}

// SessionStatusChangedData is the data for session.status-changed events.
type SessionStatusChangedData struct {
	SessionID string              `json:"sessionId"`
	Status    types.RuntimeStatus `json:"status"`
}

// StreamResponseData is the data for stream.response events. EventID increases by one
// per renderer flush of a generation.
type StreamResponseData struct {
	CorrelationID string      `json:"correlationId"`
	EventID       int64       `json:"eventId"`
	Delta         StreamDelta `json:"delta"`
}

// StreamDelta carries the text accumulated since the previous flush plus the full block snapshot.
type StreamDelta struct {
	MessageID        string                 `json:"messageId"`
	Content          string                 `json:"content,omitempty"`
	ReasoningContent string                 `json:"reasoningContent,omitempty"`
	Blocks           []types.AssistantBlock `json:"blocks"`
	Final            bool                   `json:"final,omitempty"`
}

// StreamEndData is the data for stream.end events.
type StreamEndData struct {
	CorrelationID string `json:"correlationId"`
	MessageID     string `json:"messageId"`
}

// StreamErrorData is the data for stream.error events.
type StreamErrorData struct {
	CorrelationID string `json:"correlationId"`
	MessageID     string `json:"messageId,omitempty"`
	Error         string `json:"error"`
}
