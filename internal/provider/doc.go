// Package provider is the token provider consumed by agents.
//
// Each Provider wraps an eino ToolCallingChatModel (Anthropic Claude, OpenAI or an
// OpenAI-compatible endpoint, Volcengine ARK). The Registry looks providers up by id
// and opens generations:
//
//	stream, err := registry.Stream(ctx, "anthropic", &provider.StreamRequest{
//		Messages:    msgs,
//		ModelID:     "claude-sonnet-4-20250514",
//		ModelConfig: types.ModelConfig{ContextLength: 200000, MaxTokens: 8192},
//		Temperature: 0.7,
//	})
//	defer stream.Close()
//	for {
//		ev, err := stream.Recv()
//		if err == io.EOF {
//			break
//		}
//		switch ev.Type {
//		case provider.EventText, provider.EventReasoning:
//			...
//		}
//	}
//
// Opening a stream is retried with exponential backoff. Once open, a stream yields
// text, reasoning and usage events, then exactly one stop or error event, then io.EOF.
// Closing a stream early is always safe.
package provider
