package deepchat

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/provider"
	"github.com/opencode-ai/agentcore/internal/storage"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// script drives one completion; it returns when the stream should end.
type script func(ctx context.Context, w *schema.StreamWriter[*schema.Message])

// scriptedProvider serves queued scripts, one per completion.
type scriptedProvider struct {
	mu       sync.Mutex
	scripts  []script
	requests []*provider.CompletionRequest
}

func (p *scriptedProvider) ID() string   { return "scripted" }
func (p *scriptedProvider) Name() string { return "Scripted" }
func (p *scriptedProvider) Models() []types.Model {
	return []types.Model{{ID: "tiny", ProviderID: "scripted", ContextLength: 4096, MaxOutputTokens: 256}}
}
func (p *scriptedProvider) ChatModel() model.ToolCallingChatModel { return nil }

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

func reasoning(s string) *schema.Message {
	return &schema.Message{Role: schema.Assistant, ReasoningContent: s}
}

// chunks sends the messages and ends the stream normally.
func chunks(msgs ...*schema.Message) script {
	return func(ctx context.Context, w *schema.StreamWriter[*schema.Message]) {
		for _, m := range msgs {
			if w.Send(m, nil) {
				return
			}
		}
	}
}

// hold sends the messages, then blocks until release is closed or the generation is cancelled.
func hold(release <-chan struct{}, msgs ...*schema.Message) script {
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

// failWith sends the messages, then a stream error.
func failWith(err error, msgs ...*schema.Message) script {
	return func(ctx context.Context, w *schema.StreamWriter[*schema.Message]) {
		for _, m := range msgs {
			if w.Send(m, nil) {
				return
			}
		}
		w.Send(nil, err)
	}
}

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t event.EventType) []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []event.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) terminals() []event.Event {
	return append(r.ofType(event.StreamEnd), r.ofType(event.StreamError)...)
}

func (r *recorder) streamedText() string {
	var s string
	for _, e := range r.ofType(event.StreamResponse) {
		s += e.Data.(event.StreamResponseData).Delta.Content
	}
	return s
}

type staticDefaults struct{ prompt string }

func (d staticDefaults) DefaultSystemPrompt() string { return d.prompt }
func (d staticDefaults) Temperature() float64        { return 0.2 }

type fixture struct {
	store    *storage.Store
	provider *scriptedProvider
	registry *provider.Registry
	events   *recorder
	agent    *Agent
}

func newFixture(t *testing.T, opts ...func(*Options)) *fixture {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "agent.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := &fixture{store: store, provider: &scriptedProvider{}, events: &recorder{}}
	f.registry = provider.NewRegistry(&types.Config{})
	f.registry.SetRetryInterval(time.Millisecond)
	f.registry.Register(f.provider)
	f.agent = f.newAgent(t, opts...)
	return f
}

func (f *fixture) newAgent(t *testing.T, opts ...func(*Options)) *Agent {
	t.Helper()
	o := Options{
		Store:            f.store,
		Providers:        f.registry,
		Defaults:         staticDefaults{prompt: "You are helpful."},
		Publisher:        f.events,
		RendererInterval: 5 * time.Millisecond,
		StorageInterval:  time.Hour,
	}
	for _, fn := range opts {
		fn(&o)
	}
	a, err := New(context.Background(), o)
	require.NoError(t, err)
	return a
}

func (f *fixture) init(t *testing.T, sessionID string) {
	t.Helper()
	require.NoError(t, f.agent.InitSession(context.Background(), sessionID, types.SessionConfig{ProviderID: "scripted", ModelID: "tiny"}))
}

func (f *fixture) status(t *testing.T, sessionID string) types.RuntimeStatus {
	t.Helper()
	state, err := f.agent.GetSessionState(context.Background(), sessionID)
	require.NoError(t, err)
	require.NotNil(t, state)
	return state.Status
}

// waitDone waits until n generations have published their terminal event.
func (f *fixture) waitDone(t *testing.T, sessionID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(f.events.terminals()) >= n && f.status(t, sessionID) != types.RuntimeGenerating
	}, 2*time.Second, 5*time.Millisecond)
}

func (f *fixture) assistant(t *testing.T, sessionID string) *types.Message {
	t.Helper()
	msgs, err := f.agent.GetMessages(context.Background(), sessionID)
	require.NoError(t, err)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleAssistant {
			return msgs[i]
		}
	}
	t.Fatal("no assistant message")
	return nil
}
