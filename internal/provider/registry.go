package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/opencode-ai/agentcore/internal/logging"
	"github.com/opencode-ai/agentcore/pkg/types"
)

const (
	// MaxRetries is the maximum number of retries when opening a stream.
	MaxRetries = 3
	// RetryInitialInterval is the initial interval for exponential backoff.
	RetryInitialInterval = time.Second
	// RetryMaxInterval is the maximum interval for exponential backoff.
	RetryMaxInterval = 30 * time.Second
)

// ErrProviderNotFound is returned for an unregistered provider id.
var ErrProviderNotFound = errors.New("provider not found")

// Registry manages all available providers.
type Registry struct {
	mu            sync.RWMutex
	providers     map[string]Provider
	config        *types.Config
	retryInterval time.Duration
}

// NewRegistry creates a new provider registry.
func NewRegistry(config *types.Config) *Registry {
	return &Registry{
		providers:     make(map[string]Provider),
		config:        config,
		retryInterval: RetryInitialInterval,
	}
}

// SetRetryInterval changes the initial backoff interval used by Stream.
func (r *Registry) SetRetryInterval(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryInterval = d
}

// Register adds a provider to the registry.
func (r *Registry) Register(provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.ID()] = provider
}

// Get retrieves a provider by ID.
func (r *Registry) Get(providerID string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, ok := r.providers[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerID)
	}
	return provider, nil
}

// List returns all available providers sorted by id.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID() < providers[j].ID() })
	return providers
}

// GetModel retrieves a specific model from a provider.
func (r *Registry) GetModel(providerID, modelID string) (*types.Model, error) {
	provider, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	for _, model := range provider.Models() {
		if model.ID == modelID {
			return &model, nil
		}
	}

	return nil, fmt.Errorf("model not found: %s/%s", providerID, modelID)
}

// AllModels returns all models from all providers, best first.
func (r *Registry) AllModels() []types.Model {
	var models []types.Model
	for _, p := range r.List() {
		models = append(models, p.Models()...)
	}

	sort.SliceStable(models, func(i, j int) bool {
		return modelPriority(models[i].ID) > modelPriority(models[j].ID)
	})

	return models
}

// DefaultModel returns the configured model, else the best available one.
func (r *Registry) DefaultModel() (*types.Model, error) {
	if r.config != nil && r.config.Model != "" {
		providerID, modelID := ParseModelString(r.config.Model)
		return r.GetModel(providerID, modelID)
	}

	if model, err := r.GetModel("anthropic", "claude-sonnet-4-20250514"); err == nil {
		return model, nil
	}

	models := r.AllModels()
	if len(models) == 0 {
		return nil, fmt.Errorf("no models available")
	}
	return &models[0], nil
}

// FallbackModel adapts DefaultModel to the fallback resolver of config.Defaults.
func (r *Registry) FallbackModel() (types.ModelRef, bool) {
	models := r.AllModels()
	if len(models) == 0 {
		return types.ModelRef{}, false
	}
	return types.ModelRef{ProviderID: models[0].ProviderID, ModelID: models[0].ID}, true
}

// ModelConfig returns the limits of a model, or zero limits for an unknown one.
func (r *Registry) ModelConfig(providerID, modelID string) types.ModelConfig {
	model, err := r.GetModel(providerID, modelID)
	if err != nil {
		return types.ModelConfig{}
	}
	return model.Config()
}

// Stream opens a completion on the provider and wraps it as a typed event stream.
// Opening is retried with exponential backoff; an unknown provider fails immediately.
func (r *Registry) Stream(ctx context.Context, providerID string, req *StreamRequest) (*EventStream, error) {
	prov, err := r.Get(providerID)
	if err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = req.ModelConfig.MaxTokens
	}
	completion := &CompletionRequest{
		Model:       req.ModelID,
		Messages:    req.Messages,
		Tools:       req.Tools,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}

	var stream *CompletionStream
	open := func() error {
		s, err := prov.CreateCompletion(ctx, completion)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		stream = s
		return nil
	}
	notify := func(err error, next time.Duration) {
		logging.Warn().Err(err).
			Str("providerID", providerID).
			Str("modelID", req.ModelID).
			Dur("retryIn", next).
			Msg("stream open failed, retrying")
	}

	if err := backoff.RetryNotify(open, r.newRetryBackoff(ctx), notify); err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return NewEventStream(stream), nil
}

// newRetryBackoff creates an exponential backoff with jitter for stream opens.
func (r *Registry) newRetryBackoff(ctx context.Context) backoff.BackOff {
	r.mu.RLock()
	initial := r.retryInterval
	r.mu.RUnlock()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = RetryMaxInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}

// ParseModelString parses "provider/model" format.
func ParseModelString(s string) (providerID, modelID string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", s
}

func modelPriority(modelID string) int {
	switch {
	case strings.Contains(modelID, "gpt-5"):
		return 100
	case strings.Contains(modelID, "claude-sonnet-4"):
		return 90
	case strings.Contains(modelID, "claude-opus"):
		return 85
	case strings.Contains(modelID, "gpt-4o"):
		return 80
	case strings.Contains(modelID, "claude-3-5"):
		return 75
	default:
		return 50
	}
}

// InitializeProviders creates and registers every provider that has credentials.
func InitializeProviders(ctx context.Context, config *types.Config) (*Registry, error) {
	registry := NewRegistry(config)
	log := logging.Component("provider")

	if cfg, ok := config.Provider["anthropic"]; ok && cfg.APIKey != "" && !cfg.Disable {
		provider, err := NewAnthropicProvider(ctx, &AnthropicConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			log.Warn().Err(err).Msg("anthropic provider unavailable")
		} else {
			registry.Register(provider)
		}
	}

	if cfg, ok := config.Provider["openai"]; ok && cfg.APIKey != "" && !cfg.Disable {
		provider, err := NewOpenAIProvider(ctx, &OpenAIConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			log.Warn().Err(err).Msg("openai provider unavailable")
		} else {
			registry.Register(provider)
		}
	}

	if cfg, ok := config.Provider["ark"]; ok && cfg.APIKey != "" && !cfg.Disable {
		provider, err := NewArkProvider(ctx, &ArkConfig{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		})
		if err != nil {
			log.Warn().Err(err).Msg("ark provider unavailable")
		} else {
			registry.Register(provider)
		}
	}

	log.Info().Int("count", len(registry.List())).Msg("providers initialized")
	return registry, nil
}
