package provider

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// scriptedProvider replays fixed chunks and can fail the first opens.
type scriptedProvider struct {
	id       string
	chunks   []*schema.Message
	failOpen int
	opens    int
	lastReq  *CompletionRequest
}

func (p *scriptedProvider) ID() string   { return p.id }
func (p *scriptedProvider) Name() string { return p.id }
func (p *scriptedProvider) Models() []types.Model {
	return []types.Model{{ID: "m1", ProviderID: p.id, ContextLength: 1000, MaxOutputTokens: 100}}
}
func (p *scriptedProvider) ChatModel() model.ToolCallingChatModel { return nil }

func (p *scriptedProvider) CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error) {
	p.opens++
	p.lastReq = req
	if p.opens <= p.failOpen {
		return nil, errors.New("503 overloaded")
	}
	return NewCompletionStream(schema.StreamReaderFromArray(p.chunks)), nil
}

func drain(t *testing.T, s *EventStream) []StreamEvent {
	t.Helper()
	var events []StreamEvent
	for {
		ev, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestEventStream_ConvertsChunks(t *testing.T) {
	reader := schema.StreamReaderFromArray([]*schema.Message{
		{Role: schema.Assistant, ReasoningContent: "think"},
		{Role: schema.Assistant, Content: "Hel"},
		{Role: schema.Assistant, Content: "lo"},
		{Role: schema.Assistant, ResponseMeta: &schema.ResponseMeta{
			FinishReason: "end_turn",
			Usage:        &schema.TokenUsage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
		}},
	})

	events := drain(t, NewEventStreamFromReader(reader))

	require.Len(t, events, 5)
	assert.Equal(t, StreamEvent{Type: EventReasoning, Content: "think"}, events[0])
	assert.Equal(t, StreamEvent{Type: EventText, Content: "Hel"}, events[1])
	assert.Equal(t, StreamEvent{Type: EventText, Content: "lo"}, events[2])
	assert.Equal(t, EventUsage, events[3].Type)
	assert.Equal(t, &Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5}, events[3].Usage)
	assert.Equal(t, StreamEvent{Type: EventStop, FinishReason: "end_turn"}, events[4])
}

func TestEventStream_DefaultFinishReason(t *testing.T) {
	events := drain(t, NewEventStreamFromReader(schema.StreamReaderFromArray([]*schema.Message{
		{Role: schema.Assistant, Content: "Hi"},
	})))

	require.Len(t, events, 2)
	assert.Equal(t, "stop", events[1].FinishReason)
}

func TestEventStream_Error(t *testing.T) {
	reader, writer := schema.Pipe[*schema.Message](4)
	go func() {
		writer.Send(&schema.Message{Role: schema.Assistant, Content: "par"}, nil)
		writer.Send(nil, errors.New("connection reset"))
		writer.Close()
	}()

	s := NewEventStreamFromReader(reader)
	defer s.Close()

	ev, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, EventText, ev.Type)

	ev, err = s.Recv()
	require.NoError(t, err)
	assert.Equal(t, EventError, ev.Type)
	assert.EqualError(t, ev.Err, "connection reset")

	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestEventStream_EarlyClose(t *testing.T) {
	reader, writer := schema.Pipe[*schema.Message](1)
	go func() {
		for i := 0; i < 100; i++ {
			if closed := writer.Send(&schema.Message{Content: "x"}, nil); closed {
				return
			}
		}
		writer.Close()
	}()

	s := NewEventStreamFromReader(reader)
	_, err := s.Recv()
	require.NoError(t, err)

	assert.NotPanics(t, s.Close)
	_, err = s.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestRegistry_StreamRetriesOpen(t *testing.T) {
	p := &scriptedProvider{id: "fake", failOpen: 2, chunks: []*schema.Message{{Content: "ok"}}}
	r := NewRegistry(&types.Config{})
	r.SetRetryInterval(time.Millisecond)
	r.Register(p)

	s, err := r.Stream(context.Background(), "fake", &StreamRequest{
		ModelID:     "m1",
		ModelConfig: types.ModelConfig{ContextLength: 1000, MaxTokens: 100},
		Temperature: 0.5,
	})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 3, p.opens)
	assert.Equal(t, "m1", p.lastReq.Model)
	assert.Equal(t, 100, p.lastReq.MaxTokens)

	events := drain(t, s)
	require.Len(t, events, 2)
	assert.Equal(t, "ok", events[0].Content)
}

func TestRegistry_StreamGivesUp(t *testing.T) {
	p := &scriptedProvider{id: "fake", failOpen: 10}
	r := NewRegistry(&types.Config{})
	r.SetRetryInterval(time.Millisecond)
	r.Register(p)

	_, err := r.Stream(context.Background(), "fake", &StreamRequest{ModelID: "m1"})
	require.Error(t, err)
	assert.Equal(t, MaxRetries+1, p.opens)
}

func TestRegistry_StreamUnknownProvider(t *testing.T) {
	r := NewRegistry(&types.Config{})
	_, err := r.Stream(context.Background(), "nope", &StreamRequest{})
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestRegistry_Models(t *testing.T) {
	r := NewRegistry(&types.Config{})
	r.Register(&scriptedProvider{id: "b"})
	r.Register(&scriptedProvider{id: "a"})

	providers := r.List()
	require.Len(t, providers, 2)
	assert.Equal(t, "a", providers[0].ID())

	ref, ok := r.FallbackModel()
	require.True(t, ok)
	assert.Equal(t, types.ModelRef{ProviderID: "a", ModelID: "m1"}, ref)

	assert.Equal(t, types.ModelConfig{ContextLength: 1000, MaxTokens: 100}, r.ModelConfig("a", "m1"))
	assert.Equal(t, types.ModelConfig{}, r.ModelConfig("a", "missing"))

	_, ok = NewRegistry(nil).FallbackModel()
	assert.False(t, ok)
}

func TestRegistry_DefaultModel(t *testing.T) {
	r := NewRegistry(&types.Config{Model: "a/m1"})
	r.Register(&scriptedProvider{id: "a"})

	m, err := r.DefaultModel()
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)

	_, err = NewRegistry(&types.Config{}).DefaultModel()
	assert.Error(t, err)
}

func TestParseModelString(t *testing.T) {
	p, m := ParseModelString("anthropic/claude-sonnet-4")
	assert.Equal(t, "anthropic", p)
	assert.Equal(t, "claude-sonnet-4", m)

	p, m = ParseModelString("gpt-4o")
	assert.Equal(t, "", p)
	assert.Equal(t, "gpt-4o", m)
}

func TestConvertToEinoTools(t *testing.T) {
	tools := ConvertToEinoTools([]ToolInfo{{
		Name:        "lookup",
		Description: "look something up",
		Parameters:  []byte(`{"type":"object","properties":{"q":{"type":"string"},"n":{"type":"integer"}},"required":["q"]}`),
	}})

	require.Len(t, tools, 1)
	assert.Equal(t, "lookup", tools[0].Name)
	assert.NotNil(t, tools[0].ParamsOneOf)
}

func TestInitializeProviders_NoCredentials(t *testing.T) {
	r, err := InitializeProviders(context.Background(), &types.Config{})
	require.NoError(t, err)
	assert.Empty(t, r.List())
}
