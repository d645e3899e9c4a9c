package agent

import (
	"context"
	"errors"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// ErrUnknownAgent is returned when an agent id has no registered implementation.
var ErrUnknownAgent = errors.New("unknown agent")

// Kind identifies an agent implementation.
type Kind string

const (
	KindDeepChat Kind = "deepchat"
)

// Agent is the capability set every agent implementation satisfies. Agents own
// their sessions' configuration, runtime state and messages.
type Agent interface {
	// InitSession records the session's provider and model and marks it idle.
	InitSession(ctx context.Context, sessionID string, cfg types.SessionConfig) error

	// DestroySession cancels any generation and removes the session's data.
	DestroySession(ctx context.Context, sessionID string) error

	// GetSessionState returns the runtime state, or nil for an unknown session.
	GetSessionState(ctx context.Context, sessionID string) (*types.SessionState, error)

	// ProcessMessage starts a generation for text and returns without waiting for it.
	// A session that is already generating is rejected.
	ProcessMessage(ctx context.Context, sessionID, text string) error

	// CancelGeneration stops the session's in-flight generation, if any.
	CancelGeneration(ctx context.Context, sessionID string) error

	GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error)
	GetMessageIDs(ctx context.Context, sessionID string) ([]string, error)

	// GetMessage returns the message, or nil when this agent does not own it.
	GetMessage(ctx context.Context, messageID string) (*types.Message, error)
}

// Recoverer is implemented by agents that repair interrupted generations at startup.
type Recoverer interface {
	RecoverPendingMessages(ctx context.Context) (int64, error)
}
