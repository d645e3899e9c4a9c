// Package types provides the core data types shared by the agent core packages.
package types

// Session represents one conversation thread owned by an agent implementation.
type Session struct {
	ID         string `json:"id"`
	AgentID    string `json:"agentId"`
	Title      string `json:"title"`
	ProjectDir string `json:"projectDir,omitempty"`
	IsPinned   bool   `json:"isPinned"`
	CreatedAt  int64  `json:"createdAt"` // unix ms
	UpdatedAt  int64  `json:"updatedAt"` // unix ms
}

// SessionFilter narrows a session listing. Empty fields do not filter.
type SessionFilter struct {
	AgentID    string `json:"agentId,omitempty"`
	ProjectDir string `json:"projectDir,omitempty"`
}

// CreateSessionInput is the request accepted by the orchestrator when creating a session.
type CreateSessionInput struct {
	AgentID    string `json:"agentId,omitempty"`
	Title      string `json:"title,omitempty"`
	ProjectDir string `json:"projectDir,omitempty"`
	ProviderID string `json:"providerId,omitempty"`
	ModelID    string `json:"modelId,omitempty"`

	// Message, when set, is submitted as the first user turn right after creation.
	Message string `json:"message,omitempty"`
}

// RuntimeStatus is the in-memory generation status of a session.
type RuntimeStatus string

const (
	RuntimeIdle       RuntimeStatus = "idle"
	RuntimeGenerating RuntimeStatus = "generating"
	RuntimeError      RuntimeStatus = "error"
)

// SessionState is the runtime (non-persisted) state an agent keeps per session.
type SessionState struct {
	Status     RuntimeStatus `json:"status"`
	ProviderID string        `json:"providerId"`
	ModelID    string        `json:"modelId"`
}

// SessionConfig is the agent-specific configuration of a session.
type SessionConfig struct {
	ProviderID string `json:"providerId"`
	ModelID    string `json:"modelId"`
}

// SessionView pairs a session row with its runtime state.
type SessionView struct {
	Session
	State *SessionState `json:"state,omitempty"`
}

// AgentInfo is the display metadata of a registered agent.
type AgentInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
