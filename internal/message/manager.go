// Package message routes message reads to the agent that owns a session.
package message

import (
	"context"

	"github.com/opencode-ai/agentcore/internal/agent"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// SessionLookup resolves a session row.
type SessionLookup interface {
	Get(ctx context.Context, id string) (*types.Session, error)
}

// Manager is a stateless routing proxy over the registered agents.
type Manager struct {
	sessions SessionLookup
	agents   *agent.Registry
}

// NewManager creates a message manager.
func NewManager(sessions SessionLookup, agents *agent.Registry) *Manager {
	return &Manager{sessions: sessions, agents: agents}
}

// owner resolves the agent that owns sessionID.
func (m *Manager) owner(ctx context.Context, sessionID string) (agent.Agent, error) {
	sess, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return m.agents.Resolve(sess.AgentID)
}

// GetMessages returns the session's messages in order.
func (m *Manager) GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	a, err := m.owner(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return a.GetMessages(ctx, sessionID)
}

// GetMessageIDs returns the session's message ids in order.
func (m *Manager) GetMessageIDs(ctx context.Context, sessionID string) ([]string, error) {
	a, err := m.owner(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return a.GetMessageIDs(ctx, sessionID)
}

// GetMessage finds a message by id alone. With no session to route by, every
// agent is asked in registration order; the first match wins.
// TODO: keep a message-to-agent index once more than a handful of agents register.
func (m *Manager) GetMessage(ctx context.Context, messageID string) (*types.Message, error) {
	for _, a := range m.agents.Agents() {
		msg, err := a.GetMessage(ctx, messageID)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
	}
	return nil, nil
}
