// Package agent defines the contract shared by agent implementations and the
// static registry that maps an agent id to its implementation.
//
// An agent owns a family of sessions: their provider/model configuration, their
// in-memory runtime status and their messages. Callers never look agents up by
// duck typing; they Resolve a registered Kind and receive ErrUnknownAgent otherwise.
//
//	registry, err := agent.NewRegistry(agent.Entry{
//		Kind:        agent.KindDeepChat,
//		Name:        "DeepChat",
//		Description: "Single-turn chat over a token provider",
//		Agent:       deepchatAgent,
//	})
//	impl, err := registry.Resolve("deepchat")
//
// GetAll exposes display metadata only, never implementation handles.
package agent
