package agent

import (
	"fmt"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// Entry associates an agent kind with its display metadata and implementation.
type Entry struct {
	Kind        Kind
	Name        string
	Description string
	Agent       Agent
}

// Registry is a static table of agent implementations. It is built once and never mutated.
type Registry struct {
	entries map[Kind]Entry
	order   []Kind
}

// NewRegistry builds a registry. Later entries with a duplicate kind are rejected.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[Kind]Entry, len(entries))}
	for _, e := range entries {
		if e.Kind == "" || e.Agent == nil {
			return nil, fmt.Errorf("agent entry %q is incomplete", e.Kind)
		}
		if _, ok := r.entries[e.Kind]; ok {
			return nil, fmt.Errorf("agent %q registered twice", e.Kind)
		}
		r.entries[e.Kind] = e
		r.order = append(r.order, e.Kind)
	}
	return r, nil
}

// Resolve returns the implementation of the agent id.
func (r *Registry) Resolve(id string) (Agent, error) {
	e, ok := r.entries[Kind(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	return e.Agent, nil
}

// Exists checks if an agent id is registered.
func (r *Registry) Exists(id string) bool {
	_, ok := r.entries[Kind(id)]
	return ok
}

// GetAll returns display metadata in registration order.
func (r *Registry) GetAll() []types.AgentInfo {
	infos := make([]types.AgentInfo, 0, len(r.order))
	for _, kind := range r.order {
		e := r.entries[kind]
		infos = append(infos, types.AgentInfo{ID: string(kind), Name: e.Name, Description: e.Description})
	}
	return infos
}

// Agents returns the implementations in registration order.
func (r *Registry) Agents() []Agent {
	agents := make([]Agent, 0, len(r.order))
	for _, kind := range r.order {
		agents = append(agents, r.entries[kind].Agent)
	}
	return agents
}

// Default returns the first registered kind.
func (r *Registry) Default() (Kind, bool) {
	if len(r.order) == 0 {
		return "", false
	}
	return r.order[0], true
}
