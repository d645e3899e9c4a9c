package provider

import (
	"context"
	"fmt"
	"os"

	"github.com/cloudwego/eino-ext/components/model/openai"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// OpenAIConfig holds configuration for OpenAI provider.
type OpenAIConfig struct {
	// ID is the provider identifier (e.g., "openai", "qwen", "ollama").
	// If empty, defaults to "openai".
	ID        string
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(ctx context.Context, config *OpenAIConfig) (Provider, error) {
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}

	maxTokens := config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	modelID := config.Model
	if modelID == "" {
		modelID = "gpt-4o"
	}

	cfg := &openai.ChatModelConfig{
		APIKey:              apiKey,
		Model:               modelID,
		MaxCompletionTokens: &maxTokens,
	}
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAI model: %w", err)
	}

	id := config.ID
	if id == "" {
		id = "openai"
	}
	models := openAIModels(id)
	if config.Model != "" && !hasModel(models, config.Model) {
		// OpenAI-compatible endpoints serve models outside the builtin list.
		models = append([]types.Model{{ID: config.Model, Name: config.Model, ProviderID: id, ContextLength: 128000, MaxOutputTokens: maxTokens}}, models...)
	}
	return &chatProvider{
		id:        id,
		name:      "OpenAI",
		chatModel: chatModel,
		models:    models,
	}, nil
}

func openAIModels(providerID string) []types.Model {
	return []types.Model{
		{ID: "gpt-5", Name: "GPT-5", ProviderID: providerID, ContextLength: 272000, MaxOutputTokens: 128000, SupportsTools: true, SupportsReasoning: true},
		{ID: "gpt-5-mini", Name: "GPT-5 Mini", ProviderID: providerID, ContextLength: 272000, MaxOutputTokens: 128000, SupportsTools: true, SupportsReasoning: true},
		{ID: "gpt-4o", Name: "GPT-4o", ProviderID: providerID, ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true},
		{ID: "gpt-4o-mini", Name: "GPT-4o Mini", ProviderID: providerID, ContextLength: 128000, MaxOutputTokens: 16384, SupportsTools: true},
		{ID: "o1", Name: "o1", ProviderID: providerID, ContextLength: 200000, MaxOutputTokens: 100000, SupportsReasoning: true},
	}
}

func hasModel(models []types.Model, id string) bool {
	for _, m := range models {
		if m.ID == id {
			return true
		}
	}
	return false
}
