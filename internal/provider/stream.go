package provider

import (
	"errors"
	"io"

	"github.com/cloudwego/eino/schema"

	"github.com/opencode-ai/agentcore/pkg/types"
)

// EventType is the kind of a token stream event.
type EventType string

const (
	EventText      EventType = "text"
	EventReasoning EventType = "reasoning"
	EventUsage     EventType = "usage"
	EventStop      EventType = "stop"
	EventError     EventType = "error"
)

// Usage reports token counts for a generation.
type Usage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
	TotalTokens  int `json:"totalTokens"`
}

// StreamEvent is one typed event of a token stream.
type StreamEvent struct {
	Type         EventType
	Content      string
	Usage        *Usage
	FinishReason string
	Err          error
}

// StreamRequest is what an agent hands to the registry to start a generation.
type StreamRequest struct {
	Messages    []*schema.Message
	ModelID     string
	ModelConfig types.ModelConfig
	Temperature float64
	MaxTokens   int
	Tools       []*schema.ToolInfo
}

// EventStream converts eino message chunks into typed events. It yields zero or more
// text, reasoning and usage events followed by exactly one stop or error event, then io.EOF.
type EventStream struct {
	stream  *CompletionStream
	pending []StreamEvent
	finish  string
	done    bool
}

// NewEventStream wraps a completion stream.
func NewEventStream(stream *CompletionStream) *EventStream {
	return &EventStream{stream: stream}
}

// NewEventStreamFromReader wraps a raw eino stream reader.
func NewEventStreamFromReader(reader *schema.StreamReader[*schema.Message]) *EventStream {
	return NewEventStream(NewCompletionStream(reader))
}

// Recv returns the next event. It is not safe for concurrent use.
func (s *EventStream) Recv() (StreamEvent, error) {
	for {
		if len(s.pending) > 0 {
			ev := s.pending[0]
			s.pending = s.pending[1:]
			return ev, nil
		}
		if s.done {
			return StreamEvent{}, io.EOF
		}

		chunk, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			reason := s.finish
			if reason == "" {
				reason = "stop"
			}
			return StreamEvent{Type: EventStop, FinishReason: reason}, nil
		}
		if err != nil {
			s.done = true
			return StreamEvent{Type: EventError, Err: err}, nil
		}
		s.convert(chunk)
	}
}

func (s *EventStream) convert(chunk *schema.Message) {
	if chunk == nil {
		return
	}
	if chunk.ReasoningContent != "" {
		s.pending = append(s.pending, StreamEvent{Type: EventReasoning, Content: chunk.ReasoningContent})
	}
	if chunk.Content != "" {
		s.pending = append(s.pending, StreamEvent{Type: EventText, Content: chunk.Content})
	}
	if meta := chunk.ResponseMeta; meta != nil {
		if meta.FinishReason != "" {
			s.finish = meta.FinishReason
		}
		if u := meta.Usage; u != nil {
			s.pending = append(s.pending, StreamEvent{Type: EventUsage, Usage: &Usage{
				InputTokens:  u.PromptTokens,
				OutputTokens: u.CompletionTokens,
				TotalTokens:  u.TotalTokens,
			}})
		}
	}
}

// Close releases the underlying reader. Closing before the end is not an error.
// Like Recv, it must be called from the goroutine that reads the stream.
func (s *EventStream) Close() {
	s.done = true
	s.stream.Close()
}
