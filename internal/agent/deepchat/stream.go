package deepchat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/provider"
	"github.com/opencode-ai/agentcore/internal/telemetry"
	"github.com/opencode-ai/agentcore/pkg/types"
)

// eventSource is the consumed side of a token stream.
type eventSource interface {
	Recv() (provider.StreamEvent, error)
	Close()
}

// messageWriter is the part of the message table a generation writes through.
type messageWriter interface {
	UpdateAssistantContent(ctx context.Context, id string, blocks []types.AssistantBlock, meta types.MessageMetadata) error
	FinalizeAssistantMessage(ctx context.Context, id string, blocks []types.AssistantBlock, meta types.MessageMetadata) error
	SetMessageError(ctx context.Context, id string, blocks []types.AssistantBlock, meta types.MessageMetadata, errText string) error
}

type terminal int

const (
	terminalSuccess terminal = iota
	terminalError
	terminalCancelled
)

func (t terminal) outcome() string {
	switch t {
	case terminalSuccess:
		return telemetry.OutcomeSuccess
	case terminalCancelled:
		return telemetry.OutcomeCancelled
	default:
		return telemetry.OutcomeError
	}
}

// streamHandler accumulates one generation's blocks and flushes them to the event
// relay and to storage on two independent tickers. It is used once and discarded.
type streamHandler struct {
	sessionID string
	messageID string

	store     messageWriter
	publisher event.Publisher
	metrics   *telemetry.Metrics
	log       zerolog.Logger

	rendererInterval time.Duration
	storageInterval  time.Duration

	// settle is called after the terminal storage write and before the terminal event.
	settle func(terminal)

	mu               sync.Mutex
	blocks           []types.AssistantBlock
	meta             types.MessageMetadata
	pendingText      strings.Builder
	pendingReasoning strings.Builder
	dirty            bool
	eventID          int64

	flushing atomic.Bool
	flushWG  sync.WaitGroup

	start      time.Time
	firstToken time.Time
}

// run consumes the stream until a terminal event or until ctx is cancelled, then
// performs the terminal flushes. It returns how the generation ended.
//
// The reader goroutine owns stream: it is the only caller of Recv and closes the
// stream once it stops reading. A reader blocked in Recv exits as soon as the
// provider observes the cancellation of ctx.
func (h *streamHandler) run(ctx context.Context, stream eventSource) terminal {
	events := make(chan provider.StreamEvent)
	done := make(chan struct{})
	defer close(done)

	go func() {
		defer close(events)
		defer stream.Close()
		for {
			if ctx.Err() != nil {
				return
			}
			ev, err := stream.Recv()
			if err != nil {
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			case <-ctx.Done():
				return
			}
			if ev.Type == provider.EventStop || ev.Type == provider.EventError {
				return
			}
		}
	}()

	renderer := time.NewTicker(h.rendererInterval)
	storage := time.NewTicker(h.storageInterval)
	stopTimers := func() {
		renderer.Stop()
		storage.Stop()
	}

	for {
		if ctx.Err() != nil {
			stopTimers()
			return h.finish(ctx, terminalCancelled, ErrCancelled)
		}

		select {
		case <-ctx.Done():
			stopTimers()
			return h.finish(ctx, terminalCancelled, ErrCancelled)

		case ev, ok := <-events:
			if !ok {
				stopTimers()
				if ctx.Err() != nil {
					return h.finish(ctx, terminalCancelled, ErrCancelled)
				}
				return h.finish(ctx, terminalError, errStreamEnded)
			}
			switch ev.Type {
			case provider.EventText, provider.EventReasoning, provider.EventUsage:
				h.apply(ev)
			case provider.EventStop:
				stopTimers()
				h.mu.Lock()
				h.meta.FinishReason = ev.FinishReason
				h.mu.Unlock()
				return h.finish(ctx, terminalSuccess, nil)
			case provider.EventError:
				stopTimers()
				if ctx.Err() != nil {
					return h.finish(ctx, terminalCancelled, ErrCancelled)
				}
				return h.finish(ctx, terminalError, ev.Err)
			}

		case <-renderer.C:
			h.flushRenderer(false)

		case <-storage.C:
			h.flushStorage(ctx)
		}
	}
}

// apply folds one delta into the accumulated blocks.
func (h *streamHandler) apply(ev provider.StreamEvent) {
	now := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()

	switch ev.Type {
	case provider.EventText:
		h.markFirstToken(now)
		b := h.trailing(types.BlockContent, now)
		b.Content += ev.Content
		h.pendingText.WriteString(ev.Content)
		h.dirty = true

	case provider.EventReasoning:
		h.markFirstToken(now)
		b := h.trailing(types.BlockReasoning, now)
		b.Content += ev.Content
		b.ReasoningTime.End = now.UnixMilli()
		h.pendingReasoning.WriteString(ev.Content)
		h.dirty = true

	case provider.EventUsage:
		if ev.Usage != nil {
			h.meta.InputTokens = ev.Usage.InputTokens
			h.meta.OutputTokens = ev.Usage.OutputTokens
			h.meta.TotalTokens = ev.Usage.TotalTokens
		}
	}
}

func (h *streamHandler) markFirstToken(now time.Time) {
	if h.firstToken.IsZero() {
		h.firstToken = now
	}
}

// trailing returns the last block when it has type t, else opens a new one.
// Opening a block closes the previous loading block.
func (h *streamHandler) trailing(t types.BlockType, now time.Time) *types.AssistantBlock {
	if n := len(h.blocks); n > 0 {
		last := &h.blocks[n-1]
		if last.Type == t && last.Status == types.BlockLoading {
			return last
		}
		if last.Status == types.BlockLoading {
			last.Status = types.BlockSuccess
		}
	}
	b := types.AssistantBlock{
		Type:      t,
		Status:    types.BlockLoading,
		Timestamp: now.UnixMilli(),
	}
	if t == types.BlockReasoning {
		b.ReasoningTime = &types.ReasoningTime{Start: now.UnixMilli(), End: now.UnixMilli()}
	}
	h.blocks = append(h.blocks, b)
	return &h.blocks[len(h.blocks)-1]
}

// snapshot copies the blocks so they can be encoded outside the lock.
func (h *streamHandler) snapshot() []types.AssistantBlock {
	out := make([]types.AssistantBlock, len(h.blocks))
	copy(out, h.blocks)
	for i := range out {
		if rt := out[i].ReasoningTime; rt != nil {
			c := *rt
			out[i].ReasoningTime = &c
		}
	}
	return out
}

// flushRenderer publishes the text accumulated since the previous flush. Periodic
// flushes are skipped when nothing changed; the final flush always publishes.
func (h *streamHandler) flushRenderer(final bool) {
	h.mu.Lock()
	if !h.dirty && !final {
		h.mu.Unlock()
		return
	}
	h.eventID++
	data := event.StreamResponseData{
		CorrelationID: h.sessionID,
		EventID:       h.eventID,
		Delta: event.StreamDelta{
			MessageID:        h.messageID,
			Content:          h.pendingText.String(),
			ReasoningContent: h.pendingReasoning.String(),
			Blocks:           h.snapshot(),
			Final:            final,
		},
	}
	h.pendingText.Reset()
	h.pendingReasoning.Reset()
	h.dirty = false
	h.mu.Unlock()

	h.publisher.Publish(event.Event{Type: event.StreamResponse, Data: data})
	h.metrics.RendererFlush(context.Background())
}

// flushStorage writes the current blocks and metadata without blocking event consumption.
// A tick that arrives while the previous write is still running is skipped.
func (h *streamHandler) flushStorage(ctx context.Context) {
	if !h.flushing.CompareAndSwap(false, true) {
		h.log.Warn().Msg("storage flush still running, skipping tick")
		h.metrics.StorageFlush(ctx, telemetry.FlushSkipped)
		return
	}

	h.mu.Lock()
	blocks := h.snapshot()
	meta := h.meta
	h.mu.Unlock()

	writeCtx := context.WithoutCancel(ctx)
	h.flushWG.Add(1)
	go func() {
		defer h.flushWG.Done()
		defer h.flushing.Store(false)

		if err := h.store.UpdateAssistantContent(writeCtx, h.messageID, blocks, meta); err != nil {
			h.log.Warn().Err(err).Msg("storage flush failed")
			h.metrics.StorageFlush(writeCtx, telemetry.FlushFailed)
			return
		}
		h.log.Debug().Int("blocks", len(blocks)).Msg("storage flush")
		h.metrics.StorageFlush(writeCtx, telemetry.FlushWritten)
	}()
}

// finish performs the terminal storage write, then the final renderer flush, then
// publishes exactly one stream.end or stream.error.
func (h *streamHandler) finish(ctx context.Context, how terminal, cause error) terminal {
	h.flushWG.Wait()

	writeCtx := context.WithoutCancel(ctx)
	now := time.Now()

	h.mu.Lock()
	status := types.BlockSuccess
	switch how {
	case terminalError:
		status = types.BlockFailed
	case terminalCancelled:
		status = types.BlockCancel
	}
	for i := range h.blocks {
		if h.blocks[i].Status == types.BlockLoading {
			h.blocks[i].Status = status
		}
	}
	h.fillTiming(now)
	blocks := h.snapshot()
	meta := h.meta
	h.mu.Unlock()

	var err error
	switch how {
	case terminalSuccess:
		err = h.store.FinalizeAssistantMessage(writeCtx, h.messageID, blocks, meta)
	case terminalError:
		err = h.store.SetMessageError(writeCtx, h.messageID, blocks, meta, errorText(cause))
	case terminalCancelled:
		err = h.store.SetMessageError(writeCtx, h.messageID, blocks, meta, "")
	}
	if err != nil {
		h.log.Error().Err(err).Msg("terminal storage write failed")
		if how == terminalSuccess {
			how, cause = terminalError, err
		}
	}

	switch how {
	case terminalSuccess:
		h.log.Debug().Str("finishReason", meta.FinishReason).Msg("generation finished")
	case terminalCancelled:
		h.log.Info().Msg("generation cancelled")
	default:
		h.log.Error().Err(cause).Msg("generation failed")
	}

	if h.settle != nil {
		h.settle(how)
	}

	h.flushRenderer(true)

	if how == terminalSuccess {
		h.publisher.Publish(event.Event{Type: event.StreamEnd, Data: event.StreamEndData{
			CorrelationID: h.sessionID,
			MessageID:     h.messageID,
		}})
	} else {
		h.publisher.Publish(event.Event{Type: event.StreamError, Data: event.StreamErrorData{
			CorrelationID: h.sessionID,
			MessageID:     h.messageID,
			Error:         errorText(cause),
		}})
	}
	return how
}

func (h *streamHandler) fillTiming(now time.Time) {
	if h.start.IsZero() {
		return
	}
	elapsed := now.Sub(h.start)
	h.meta.GenerationTimeMs = elapsed.Milliseconds()
	if !h.firstToken.IsZero() {
		h.meta.FirstTokenTimeMs = h.firstToken.Sub(h.start).Milliseconds()
	}
	tokens := h.meta.OutputTokens
	if tokens == 0 {
		for _, b := range h.blocks {
			if b.Type == types.BlockContent || b.Type == types.BlockReasoning {
				tokens += estimateTokens(b.Content)
			}
		}
	}
	if secs := elapsed.Seconds(); secs > 0 && tokens > 0 {
		h.meta.TokensPerSecond = float64(tokens) / secs
	}
}

func errorText(err error) string {
	if err == nil {
		return "unknown error"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "generation timed out"
	}
	return err.Error()
}
