package deepchat

import (
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// ContextInput is everything the context builder needs for one generation.
type ContextInput struct {
	History      []*types.Message
	UserText     string
	SystemPrompt string

	// TokenBudget is the model's context length. Zero disables truncation.
	TokenBudget int
	// ReserveForOutput is held back for the reply, normally the model's max output tokens.
	ReserveForOutput int
}

// BuildContext returns the messages sent to the token provider: the system prompt when
// non-empty, the newest sent history that fits the budget in original order, then the
// new user message. History is dropped whole messages at a time, oldest first.
func BuildContext(in ContextInput) []*schema.Message {
	history := make([]*schema.Message, 0, len(in.History))
	for _, m := range in.History {
		if m.Status != types.StatusSent {
			continue
		}
		role := schema.User
		if m.Role == types.RoleAssistant {
			role = schema.Assistant
		}
		history = append(history, &schema.Message{Role: role, Content: m.Text()})
	}

	if in.TokenBudget > 0 {
		available := in.TokenBudget - estimateTokens(in.SystemPrompt) - estimateTokens(in.UserText) - in.ReserveForOutput
		history = fitNewest(history, available)
	}

	out := make([]*schema.Message, 0, len(history)+2)
	if in.SystemPrompt != "" {
		out = append(out, schema.SystemMessage(in.SystemPrompt))
	}
	out = append(out, history...)
	out = append(out, schema.UserMessage(in.UserText))
	return out
}

// fitNewest keeps the longest suffix of msgs whose estimated size fits available.
func fitNewest(msgs []*schema.Message, available int) []*schema.Message {
	used := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := estimateTokens(msgs[i].Content)
		if used+cost > available {
			break
		}
		used += cost
		start = i
	}
	return msgs[start:]
}

// estimateTokens provides a rough estimate of token count: ~4 bytes per token, rounded up.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
