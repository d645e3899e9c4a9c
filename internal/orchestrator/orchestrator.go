// Package orchestrator is the single entry point of the agent core. It wires the
// session manager, message manager and agent registry together and publishes
// session lifecycle events. It never touches message content.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/agentcore/internal/agent"
	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/logging"
	"github.com/opencode-ai/agentcore/internal/message"
	"github.com/opencode-ai/agentcore/internal/session"
	"github.com/opencode-ai/agentcore/pkg/types"
)

var (
	// ErrInvalidInput marks a request rejected before any work is done.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmptyMessage is returned when a message has no text.
	ErrEmptyMessage = fmt.Errorf("%w: message text is empty", ErrInvalidInput)
)

// DefaultModelSource resolves the provider/model of new sessions.
type DefaultModelSource interface {
	DefaultModel() (types.ModelRef, error)
}

// Orchestrator implements the external surface of the agent core.
type Orchestrator struct {
	sessions  *session.Manager
	messages  *message.Manager
	agents    *agent.Registry
	defaults  DefaultModelSource
	publisher event.Publisher
	log       zerolog.Logger
}

// New creates an orchestrator.
func New(sessions *session.Manager, agents *agent.Registry, defaults DefaultModelSource, publisher event.Publisher) *Orchestrator {
	return &Orchestrator{
		sessions:  sessions,
		messages:  message.NewManager(sessions, agents),
		agents:    agents,
		defaults:  defaults,
		publisher: publisher,
		log:       logging.Component("orchestrator"),
	}
}

// CreateSession creates a session owned by in.AgentID (the first registered agent
// when empty), initializes it on the agent and binds it to windowID when one is
// given. The returned view carries the state right after initialization; an
// initial message is submitted afterwards.
//
// A missing default model fails before anything is persisted.
func (o *Orchestrator) CreateSession(ctx context.Context, in types.CreateSessionInput, windowID string) (*types.SessionView, error) {
	agentID := in.AgentID
	if agentID == "" {
		kind, ok := o.agents.Default()
		if !ok {
			return nil, fmt.Errorf("%w: none registered", agent.ErrUnknownAgent)
		}
		agentID = string(kind)
	}
	impl, err := o.agents.Resolve(agentID)
	if err != nil {
		return nil, err
	}

	cfg := types.SessionConfig{ProviderID: in.ProviderID, ModelID: in.ModelID}
	if cfg.ProviderID == "" || cfg.ModelID == "" {
		ref, err := o.defaults.DefaultModel()
		if err != nil {
			return nil, err
		}
		cfg = types.SessionConfig{ProviderID: ref.ProviderID, ModelID: ref.ModelID}
	}

	title := in.Title
	if title == "" {
		title = session.TitleFrom(in.Message)
	}
	sess, err := o.sessions.Create(ctx, session.CreateInput{
		AgentID:    agentID,
		Title:      title,
		ProjectDir: in.ProjectDir,
	})
	if err != nil {
		return nil, err
	}
	log := o.log.With().Str("sessionID", sess.ID).Str("agentID", agentID).Logger()

	if err := impl.InitSession(ctx, sess.ID, cfg); err != nil {
		if _, derr := o.sessions.Delete(ctx, sess.ID); derr != nil {
			log.Warn().Err(derr).Msg("failed to roll back session row")
		}
		return nil, fmt.Errorf("init session: %w", err)
	}
	log.Info().Str("providerID", cfg.ProviderID).Str("modelID", cfg.ModelID).Msg("session created")

	state, err := impl.GetSessionState(ctx, sess.ID)
	if err != nil {
		return nil, err
	}

	o.publish(event.SessionListUpdated, event.SessionListUpdatedData{})
	if windowID != "" {
		o.bind(windowID, sess.ID)
	}

	view := &types.SessionView{Session: *sess, State: state}
	if strings.TrimSpace(in.Message) != "" {
		if err := o.SendMessage(ctx, sess.ID, in.Message); err != nil {
			return view, err
		}
	}
	return view, nil
}

// SendMessage submits text to the session's agent. It returns once the generation
// has started; its progress is only observable through events and stored rows.
func (o *Orchestrator) SendMessage(ctx context.Context, sessionID, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	sess, impl, err := o.resolve(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := impl.ProcessMessage(ctx, sess.ID, text); err != nil {
		return err
	}
	if err := o.sessions.Touch(ctx, sess.ID); err != nil {
		o.log.Warn().Err(err).Str("sessionID", sess.ID).Msg("failed to bump session")
		return nil
	}
	o.publish(event.SessionListUpdated, event.SessionListUpdatedData{})
	return nil
}

// GetSessionList lists sessions with their runtime state.
func (o *Orchestrator) GetSessionList(ctx context.Context, filter types.SessionFilter) ([]*types.SessionView, error) {
	list, err := o.sessions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	views := make([]*types.SessionView, 0, len(list))
	for _, sess := range list {
		views = append(views, o.view(ctx, sess))
	}
	return views, nil
}

func (o *Orchestrator) GetSession(ctx context.Context, sessionID string) (*types.SessionView, error) {
	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return o.view(ctx, sess), nil
}

// view attaches runtime state. A session whose agent is gone is listed without state.
func (o *Orchestrator) view(ctx context.Context, sess *types.Session) *types.SessionView {
	v := &types.SessionView{Session: *sess}
	impl, err := o.agents.Resolve(sess.AgentID)
	if err != nil {
		return v
	}
	state, err := impl.GetSessionState(ctx, sess.ID)
	if err != nil {
		o.log.Warn().Err(err).Str("sessionID", sess.ID).Msg("failed to read session state")
		return v
	}
	v.State = state
	return v
}

func (o *Orchestrator) GetMessages(ctx context.Context, sessionID string) ([]*types.Message, error) {
	return o.messages.GetMessages(ctx, sessionID)
}

func (o *Orchestrator) GetMessageIDs(ctx context.Context, sessionID string) ([]string, error) {
	return o.messages.GetMessageIDs(ctx, sessionID)
}

// GetMessage returns the message with id, or nil when no agent owns it.
func (o *Orchestrator) GetMessage(ctx context.Context, messageID string) (*types.Message, error) {
	return o.messages.GetMessage(ctx, messageID)
}

// ActivateSession binds sessionID to windowID, replacing any previous binding.
func (o *Orchestrator) ActivateSession(ctx context.Context, windowID, sessionID string) error {
	if _, err := o.sessions.Get(ctx, sessionID); err != nil {
		return err
	}
	o.bind(windowID, sessionID)
	return nil
}

// DeactivateSession clears the window's binding. It is a no-op for an unbound window.
func (o *Orchestrator) DeactivateSession(windowID string) {
	if o.sessions.Unbind(windowID) {
		o.publish(event.SessionDeactivated, event.SessionDeactivatedData{WindowID: windowID})
	}
}

// GetActiveSession returns the session bound to windowID, or nil.
func (o *Orchestrator) GetActiveSession(ctx context.Context, windowID string) (*types.SessionView, error) {
	id, ok := o.sessions.Active(windowID)
	if !ok {
		return nil, nil
	}
	sess, err := o.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrSessionNotFound) {
		o.sessions.Unbind(windowID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return o.view(ctx, sess), nil
}

func (o *Orchestrator) GetAgents() []types.AgentInfo {
	return o.agents.GetAll()
}

// DeleteSession stops any generation, unbinds the session from every window and
// removes it together with the agent's rows.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) error {
	sess, impl, err := o.resolve(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := impl.CancelGeneration(ctx, sess.ID); err != nil {
		return err
	}
	if err := impl.DestroySession(ctx, sess.ID); err != nil {
		return err
	}
	windows, err := o.sessions.Delete(ctx, sess.ID)
	if err != nil {
		return err
	}
	for _, w := range windows {
		o.publish(event.SessionDeactivated, event.SessionDeactivatedData{WindowID: w})
	}
	o.log.Info().Str("sessionID", sess.ID).Msg("session deleted")
	o.publish(event.SessionListUpdated, event.SessionListUpdatedData{})
	return nil
}

func (o *Orchestrator) CancelGeneration(ctx context.Context, sessionID string) error {
	sess, impl, err := o.resolve(ctx, sessionID)
	if err != nil {
		return err
	}
	return impl.CancelGeneration(ctx, sess.ID)
}

func (o *Orchestrator) RenameSession(ctx context.Context, sessionID, title string) (*types.Session, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is empty", ErrInvalidInput)
	}
	sess, err := o.sessions.Rename(ctx, sessionID, title)
	if err != nil {
		return nil, err
	}
	o.publish(event.SessionListUpdated, event.SessionListUpdatedData{})
	return sess, nil
}

func (o *Orchestrator) SetPinned(ctx context.Context, sessionID string, pinned bool) (*types.Session, error) {
	sess, err := o.sessions.SetPinned(ctx, sessionID, pinned)
	if err != nil {
		return nil, err
	}
	o.publish(event.SessionListUpdated, event.SessionListUpdatedData{})
	return sess, nil
}

// RecoverPendingMessages runs the crash-recovery pass of every agent that has one
// and returns the total number of repaired messages.
func (o *Orchestrator) RecoverPendingMessages(ctx context.Context) (int64, error) {
	var total int64
	for _, a := range o.agents.Agents() {
		r, ok := a.(agent.Recoverer)
		if !ok {
			continue
		}
		n, err := r.RecoverPendingMessages(ctx)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (o *Orchestrator) resolve(ctx context.Context, sessionID string) (*types.Session, agent.Agent, error) {
	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	impl, err := o.agents.Resolve(sess.AgentID)
	if err != nil {
		return nil, nil, err
	}
	return sess, impl, nil
}

func (o *Orchestrator) bind(windowID, sessionID string) {
	o.sessions.Bind(windowID, sessionID)
	o.publish(event.SessionActivated, event.SessionActivatedData{WindowID: windowID, SessionID: sessionID})
}

func (o *Orchestrator) publish(t event.EventType, data any) {
	o.publisher.Publish(event.Event{Type: t, Data: data})
}
