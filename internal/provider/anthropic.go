package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/claude"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// AnthropicConfig holds configuration for Anthropic provider.
type AnthropicConfig struct {
	// ID defaults to "anthropic".
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int

	// Thinking enables extended thinking, surfaced as reasoning deltas.
	Thinking *claude.Thinking
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(ctx context.Context, config *AnthropicConfig) (Provider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	modelID := config.Model
	if modelID == "" {
		modelID = "claude-sonnet-4-20250514"
	}
	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	cfg := &claude.Config{
		APIKey:    apiKey,
		Model:     modelID,
		MaxTokens: maxTokens,
		Thinking:  config.Thinking,
	}
	if config.BaseURL != "" {
		cfg.BaseURL = &config.BaseURL
	}

	chatModel, err := claude.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Claude model: %w", err)
	}

	id := config.ID
	if id == "" {
		id = "anthropic"
	}
	return &chatProvider{
		id:        id,
		name:      "Anthropic",
		chatModel: chatModel,
		models:    anthropicModels(id),
	}, nil
}

func anthropicModels(providerID string) []types.Model {
	return []types.Model{
		{ID: "claude-sonnet-4-20250514", Name: "Claude Sonnet 4", ProviderID: providerID, ContextLength: 200000, MaxOutputTokens: 64000, SupportsTools: true},
		{ID: "claude-opus-4-20250514", Name: "Claude Opus 4", ProviderID: providerID, ContextLength: 200000, MaxOutputTokens: 32000, SupportsTools: true, SupportsReasoning: true},
		{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", ProviderID: providerID, ContextLength: 200000, MaxOutputTokens: 8192, SupportsTools: true},
		{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", ProviderID: providerID, ContextLength: 200000, MaxOutputTokens: 8192, SupportsTools: true},
		{ID: "claude-haiku-4-5-20251001", Name: "Claude 4.5 Haiku", ProviderID: providerID, ContextLength: 200000, MaxOutputTokens: 8192, SupportsTools: true},
	}
}
