package orchestrator_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/agentcore/internal/agent"
	"github.com/opencode-ai/agentcore/internal/agent/deepchat"
	"github.com/opencode-ai/agentcore/internal/config"
	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/orchestrator"
	"github.com/opencode-ai/agentcore/internal/provider"
	"github.com/opencode-ai/agentcore/internal/session"
	"github.com/opencode-ai/agentcore/internal/storage"
	"github.com/opencode-ai/agentcore/pkg/types"
)

type script func(ctx context.Context, w *schema.StreamWriter[*schema.Message])

// scriptedProvider plays one queued script per completion.
type scriptedProvider struct {
	mu       sync.Mutex
	scripts  []script
	requests []*provider.CompletionRequest
}

func (p *scriptedProvider) ID() string                            { return "scripted" }
func (p *scriptedProvider) Name() string                          { return "Scripted" }
func (p *scriptedProvider) ChatModel() model.ToolCallingChatModel { return nil }

func (p *scriptedProvider) Models() []types.Model {
	return []types.Model{
		{ID: "tiny", ProviderID: "scripted", ContextLength: 4096, MaxOutputTokens: 256},
		{ID: "small", ProviderID: "scripted", ContextLength: 133, MaxOutputTokens: 100},
	}
}

func (p *scriptedProvider) push(s ...script) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts = append(p.scripts, s...)
}

func (p *scriptedProvider) lastRequest() *provider.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	return p.requests[len(p.requests)-1]
}

func (p *scriptedProvider) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	if len(p.scripts) == 0 {
		p.mu.Unlock()
		return nil, errors.New("no script queued")
	}
	s := p.scripts[0]
	p.scripts = p.scripts[1:]
	p.mu.Unlock()

	r, w := schema.Pipe[*schema.Message](16)
	go func() {
		defer w.Close()
		s(ctx, w)
	}()
	return provider.NewCompletionStream(r), nil
}

func text(s string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, Content: s}
}

func reply(msgs ...*schema.Message) script {
	return func(ctx context.Context, w *schema.StreamWriter[*schema.Message]) {
		for _, m := range msgs {
			if w.Send(m, nil) {
				return
			}
		}
	}
}

// holdAfter sends msgs, then waits for release or cancellation.
func holdAfter(release <-chan struct{}, msgs ...*schema.Message) script {
	return func(ctx context.Context, w *schema.StreamWriter[*schema.Message]) {
		for _, m := range msgs {
			if w.Send(m, nil) {
				return
			}
		}
		select {
		case <-release:
		case <-ctx.Done():
		}
	}
}

// recorder keeps every event published on the bus.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) record(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) all() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

func (r *recorder) ofType(t event.EventType) []event.Event {
	var out []event.Event
	for _, e := range r.all() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// terminals returns the stream.end and stream.error events of a session.
func (r *recorder) terminals(sessionID string) []event.Event {
	var out []event.Event
	for _, e := range r.all() {
		switch d := e.Data.(type) {
		case event.StreamEndData:
			if d.CorrelationID == sessionID {
				out = append(out, e)
			}
		case event.StreamErrorData:
			if d.CorrelationID == sessionID {
				out = append(out, e)
			}
		}
	}
	return out
}

// streamed concatenates the text deltas published for a session.
func (r *recorder) streamed(sessionID string) string {
	var s string
	for _, e := range r.ofType(event.StreamResponse) {
		d := e.Data.(event.StreamResponseData)
		if d.CorrelationID == sessionID {
			s += d.Delta.Content
		}
	}
	return s
}

type harness struct {
	dir      string
	store    *storage.Store
	bus      *event.Bus
	provider *scriptedProvider
	defaults *config.Defaults
	agent    *deepchat.Agent
	orch     *orchestrator.Orchestrator
	events   *recorder

	storageInterval time.Duration
}

type harnessOption func(*harness)

func withStorageInterval(d time.Duration) harnessOption {
	return func(h *harness) { h.storageInterval = d }
}

func withConfig(cfg *types.Config) harnessOption {
	return func(h *harness) { h.defaults = config.NewDefaults(cfg) }
}

// newHarness wires a complete core over a fresh database in dir. cleanup registers
// teardown with the calling test framework.
func newHarness(dir string, cleanup func(func()), opts ...harnessOption) (*harness, error) {
	h := &harness{
		dir:             dir,
		provider:        &scriptedProvider{},
		defaults:        config.NewDefaults(&types.Config{Model: "scripted/tiny", SystemPrompt: "sys!"}),
		storageInterval: time.Hour,
	}
	for _, o := range opts {
		o(h)
	}

	store, err := storage.Open(filepath.Join(dir, "agentcore.db"))
	if err != nil {
		return nil, err
	}
	cleanup(func() { store.Close() })
	h.store = store

	return h, h.start(cleanup)
}

// start builds the bus, agents and orchestrator, as a process start does.
func (h *harness) start(cleanup func(func())) error {
	h.bus = event.NewBus()
	cleanup(func() { h.bus.Close() })
	h.events = &recorder{}
	h.bus.SubscribeAll(h.events.record)

	providers := provider.NewRegistry(&types.Config{})
	providers.SetRetryInterval(time.Millisecond)
	providers.Register(h.provider)

	a, err := deepchat.New(context.Background(), deepchat.Options{
		Store:            h.store,
		Providers:        providers,
		Defaults:         h.defaults,
		Publisher:        h.bus,
		RendererInterval: 5 * time.Millisecond,
		StorageInterval:  h.storageInterval,
	})
	if err != nil {
		return err
	}
	h.agent = a

	agents, err := agent.NewRegistry(agent.Entry{
		Kind:        agent.KindDeepChat,
		Name:        "DeepChat",
		Description: "single-turn chat",
		Agent:       a,
	})
	if err != nil {
		return err
	}
	h.orch = orchestrator.New(session.NewManager(h.store), agents, h.defaults, h.bus)
	return nil
}

// restart simulates a new process over the same database.
func (h *harness) restart(cleanup func(func())) error {
	return h.start(cleanup)
}

func (h *harness) assistant(sessionID string) (*types.Message, error) {
	msgs, err := h.orch.GetMessages(context.Background(), sessionID)
	if err != nil {
		return nil, err
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleAssistant {
			return msgs[i], nil
		}
	}
	return nil, errors.New("no assistant message")
}

func (h *harness) status(sessionID string) types.RuntimeStatus {
	view, err := h.orch.GetSession(context.Background(), sessionID)
	if err != nil || view.State == nil {
		return ""
	}
	return view.State.Status
}
