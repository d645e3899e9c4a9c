// Package deepchat is the single-turn chat agent: it stores messages in its own
// tables, builds the model context from history and streams replies from a token
// provider with batched flushing.
package deepchat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/agentcore/internal/agent"
	"github.com/opencode-ai/agentcore/internal/config"
	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/logging"
	"github.com/opencode-ai/agentcore/internal/provider"
	"github.com/opencode-ai/agentcore/internal/storage"
	"github.com/opencode-ai/agentcore/internal/telemetry"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// TokenProvider opens generations and reports model limits.
type TokenProvider interface {
	Stream(ctx context.Context, providerID string, req *provider.StreamRequest) (*provider.EventStream, error)
	ModelConfig(providerID, modelID string) types.ModelConfig
}

// DefaultSource supplies the system prompt and sampling temperature.
type DefaultSource interface {
	DefaultSystemPrompt() string
	Temperature() float64
}

// Options configures an Agent.
type Options struct {
	Store     *storage.Store
	Providers TokenProvider
	Defaults  DefaultSource
	Publisher event.Publisher
	Metrics   *telemetry.Metrics

	// ID is the agent id and the prefix of its tables. Defaults to "deepchat".
	ID string

	RendererInterval time.Duration
	StorageInterval  time.Duration
}

// runtime is the in-memory state of one session.
type runtime struct {
	state  types.SessionState
	cancel context.CancelFunc
	done   chan struct{}
}

// Agent implements agent.Agent.
type Agent struct {
	id        string
	messages  *storage.MessageTable
	configs   *storage.SessionConfigTable
	providers TokenProvider
	defaults  DefaultSource
	publisher event.Publisher
	metrics   *telemetry.Metrics
	log       zerolog.Logger

	rendererInterval time.Duration
	storageInterval  time.Duration

	mu       sync.Mutex
	sessions map[string]*runtime
}

var _ agent.Agent = (*Agent)(nil)
var _ agent.Recoverer = (*Agent)(nil)

// New creates the agent's tables and repairs messages left pending by a previous
// process before any new generation can start.
func New(ctx context.Context, opts Options) (*Agent, error) {
	if opts.Store == nil || opts.Providers == nil || opts.Publisher == nil {
		return nil, fmt.Errorf("deepchat: store, providers and publisher are required")
	}
	id := opts.ID
	if id == "" {
		id = string(agent.KindDeepChat)
	}

	messages, err := opts.Store.MessageTable(ctx, MessageTableName(id))
	if err != nil {
		return nil, err
	}
	configs, err := opts.Store.SessionConfigTable(ctx, id+"_sessions")
	if err != nil {
		return nil, err
	}

	a := &Agent{
		id:               id,
		messages:         messages,
		configs:          configs,
		providers:        opts.Providers,
		defaults:         opts.Defaults,
		publisher:        opts.Publisher,
		metrics:          opts.Metrics,
		log:              logging.Component("deepchat").With().Str("agentID", id).Logger(),
		rendererInterval: opts.RendererInterval,
		storageInterval:  opts.StorageInterval,
		sessions:         make(map[string]*runtime),
	}
	if a.rendererInterval <= 0 {
		a.rendererInterval = config.DefaultRendererIntervalMs * time.Millisecond
	}
	if a.storageInterval <= 0 {
		a.storageInterval = config.DefaultStorageIntervalMs * time.Millisecond
	}

	if _, err := a.RecoverPendingMessages(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// MessageTableName is the message table of the agent with the given id.
func MessageTableName(id string) string {
	return id + "_messages"
}

// ID returns the agent id.
func (a *Agent) ID() string {
	return a.id
}

// RecoverPendingMessages marks every pending message as error. Running it again is a no-op.
func (a *Agent) RecoverPendingMessages(ctx context.Context) (int64, error) {
	n, err := a.messages.RecoverPendingMessages(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		a.log.Info().Int64("count", n).Msg("recovered interrupted messages")
	}
	a.metrics.Recovered(ctx, a.id, n)
	return n, nil
}

// InitSession stores the session's provider/model and registers it as idle.
func (a *Agent) InitSession(ctx context.Context, sessionID string, cfg types.SessionConfig) error {
	if err := a.configs.Put(ctx, sessionID, cfg); err != nil {
		return err
	}

	a.mu.Lock()
	if rt, ok := a.sessions[sessionID]; ok {
		rt.state.ProviderID = cfg.ProviderID
		rt.state.ModelID = cfg.ModelID
	} else {
		a.sessions[sessionID] = &runtime{state: types.SessionState{
			Status:     types.RuntimeIdle,
			ProviderID: cfg.ProviderID,
			ModelID:    cfg.ModelID,
		}}
	}
	a.mu.Unlock()

	a.log.Debug().Str("sessionID", sessionID).Str("providerID", cfg.ProviderID).Str("modelID", cfg.ModelID).Msg("session initialized")
	return nil
}

// DestroySession cancels any generation and removes the session's messages and config.
func (a *Agent) DestroySession(ctx context.Context, sessionID string) error {
	if err := a.CancelGeneration(ctx, sessionID); err != nil {
		return err
	}
	if err := a.messages.DeleteBySession(ctx, sessionID); err != nil {
		return err
	}
	if err := a.configs.Delete(ctx, sessionID); err != nil {
		return err
	}

	a.mu.Lock()
	delete(a.sessions, sessionID)
	a.mu.Unlock()
	return nil
}

// GetSessionState returns a copy of the runtime state, or nil for an unknown session.
func (a *Agent) GetSessionState(ctx context.Context, sessionID string) (*types.SessionState, error) {
	rt, err := a.runtime(ctx, sessionID)
	if errors.Is(err, ErrSessionNotInitialized) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	state := rt.state
	return &state, nil
}

// runtime returns the session's runtime, rebuilding it as idle from the persisted
// config when the process has restarted since the session was created.
func (a *Agent) runtime(ctx context.Context, sessionID string) (*runtime, error) {
	a.mu.Lock()
	rt, ok := a.sessions[sessionID]
	a.mu.Unlock()
	if ok {
		return rt, nil
	}

	cfg, err := a.configs.Get(ctx, sessionID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotInitialized, sessionID)
	}
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if rt, ok := a.sessions[sessionID]; ok {
		return rt, nil
	}
	rt = &runtime{state: types.SessionState{
		Status:     types.RuntimeIdle,
		ProviderID: cfg.ProviderID,
		ModelID:    cfg.ModelID,
	}}
	a.sessions[sessionID] = rt
	return rt, nil
}

// ProcessMessage stores the user message and a pending assistant message, then
// streams the reply in the background. It fails fast with ErrGenerationInProgress
// while the session is generating.
func (a *Agent) ProcessMessage(ctx context.Context, sessionID, text string) error {
	rt, err := a.runtime(ctx, sessionID)
	if err != nil {
		return err
	}

	a.mu.Lock()
	if rt.state.Status == types.RuntimeGenerating {
		a.mu.Unlock()
		return ErrGenerationInProgress
	}
	prev := rt.state.Status
	cfg := types.SessionConfig{ProviderID: rt.state.ProviderID, ModelID: rt.state.ModelID}
	genCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	rt.state.Status = types.RuntimeGenerating
	rt.cancel = cancel
	rt.done = done
	a.mu.Unlock()

	log := a.log.With().Str("sessionID", sessionID).Logger()

	abort := func(err error) error {
		cancel()
		a.mu.Lock()
		rt.state.Status = prev
		rt.cancel = nil
		rt.done = nil
		a.mu.Unlock()
		close(done)
		log.Error().Err(err).Msg("failed to start generation")
		return err
	}

	history, err := a.messages.ListBySession(ctx, sessionID)
	if err != nil {
		return abort(err)
	}
	if _, err := a.messages.CreateUserMessage(ctx, sessionID, types.NewUserContent(text)); err != nil {
		return abort(err)
	}
	assistant, err := a.messages.CreateAssistantMessage(ctx, sessionID, types.MessageMetadata{
		ProviderID: cfg.ProviderID,
		ModelID:    cfg.ModelID,
	})
	if err != nil {
		return abort(err)
	}

	a.publishStatus(sessionID, types.RuntimeGenerating)

	modelCfg := a.providers.ModelConfig(cfg.ProviderID, cfg.ModelID)
	req := &provider.StreamRequest{
		Messages: BuildContext(ContextInput{
			History:          history,
			UserText:         text,
			SystemPrompt:     a.systemPrompt(),
			TokenBudget:      modelCfg.ContextLength,
			ReserveForOutput: modelCfg.MaxTokens,
		}),
		ModelID:     cfg.ModelID,
		ModelConfig: modelCfg,
		Temperature: a.temperature(),
		MaxTokens:   modelCfg.MaxTokens,
	}

	h := &streamHandler{
		sessionID:        sessionID,
		messageID:        assistant.ID,
		store:            a.messages,
		publisher:        a.publisher,
		metrics:          a.metrics,
		log:              log.With().Str("messageID", assistant.ID).Logger(),
		rendererInterval: a.rendererInterval,
		storageInterval:  a.storageInterval,
		meta:             types.MessageMetadata{ProviderID: cfg.ProviderID, ModelID: cfg.ModelID},
		settle: func(how terminal) {
			a.settle(sessionID, rt, how)
		},
	}

	go a.generate(genCtx, cancel, done, cfg.ProviderID, req, h)
	return nil
}

// generate runs one generation to completion. Its only effects are the persisted
// rows and the published events.
func (a *Agent) generate(ctx context.Context, cancel context.CancelFunc, done chan struct{}, providerID string, req *provider.StreamRequest, h *streamHandler) {
	defer close(done)
	defer cancel()

	h.start = time.Now()
	var how terminal

	stream, err := a.providers.Stream(ctx, providerID, req)
	switch {
	case err != nil && ctx.Err() != nil:
		how = h.finish(ctx, terminalCancelled, ErrCancelled)
	case err != nil:
		how = h.finish(ctx, terminalError, err)
	default:
		how = h.run(ctx, stream)
	}

	a.metrics.Generation(context.Background(), a.id, how.outcome(), time.Since(h.start))
}

// settle records the end of a generation in the runtime map.
func (a *Agent) settle(sessionID string, rt *runtime, how terminal) {
	status := types.RuntimeIdle
	if how == terminalError {
		status = types.RuntimeError
	}

	a.mu.Lock()
	rt.state.Status = status
	rt.cancel = nil
	a.mu.Unlock()

	a.publishStatus(sessionID, status)
}

// CancelGeneration stops the in-flight generation and waits until its final
// content is stored. It is a no-op when the session is not generating.
func (a *Agent) CancelGeneration(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	rt, ok := a.sessions[sessionID]
	if !ok || rt.done == nil {
		a.mu.Unlock()
		return nil
	}
	cancel, done := rt.cancel, rt.done
	a.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetMessages returns the session's messages in order.
func (a *Agent) GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	return a.messages.ListBySession(ctx, sessionID)
}

// GetMessageIDs returns the session's message ids in order.
func (a *Agent) GetMessageIDs(ctx context.Context, sessionID string) ([]string, error) {
	return a.messages.ListIDsBySession(ctx, sessionID)
}

// GetMessage returns the message with messageID, or nil when this agent does not own it.
func (a *Agent) GetMessage(ctx context.Context, messageID string) (*types.Message, error) {
	msg, err := a.messages.Get(ctx, messageID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return msg, err
}

func (a *Agent) publishStatus(sessionID string, status types.RuntimeStatus) {
	a.publisher.Publish(event.Event{
		Type: event.SessionStatusChanged,
		Data: event.SessionStatusChangedData{SessionID: sessionID, Status: status},
	})
}

func (a *Agent) systemPrompt() string {
	if a.defaults == nil {
		return ""
	}
	return a.defaults.DefaultSystemPrompt()
}

func (a *Agent) temperature() float64 {
	if a.defaults == nil {
		return config.DefaultTemperature
	}
	return a.defaults.Temperature()
}
