package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentcore/internal/event"
	"github.com/opencode-ai/agentcore/internal/provider"
	"github.com/opencode-ai/agentcore/pkg/types"
)

var (
	chatSession   string
	chatAgent     string
	chatModel     string
	chatTitle     string
	chatReasoning bool
)

var chatCmd = &cobra.Command{
	Use:   "chat [message...]",
	Short: "Send one message and stream the reply",
	Long: `Send a message to a new session, or to an existing one with --session,
and print the reply as it streams. Ctrl+C cancels the generation.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "Continue an existing session")
	chatCmd.Flags().StringVar(&chatAgent, "agent", "", "Agent for a new session")
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model for a new session (provider/model)")
	chatCmd.Flags().StringVar(&chatTitle, "title", "", "Title for a new session")
	chatCmd.Flags().BoolVar(&chatReasoning, "reasoning", false, "Print reasoning content")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()

	text := strings.Join(args, " ")
	sessionID := chatSession
	if sessionID == "" {
		in := types.CreateSessionInput{
			AgentID:    chatAgent,
			Title:      chatTitle,
			ProjectDir: a.project,
		}
		if in.Title == "" {
			in.Title = text
		}
		if chatModel != "" {
			in.ProviderID, in.ModelID = provider.ParseModelString(chatModel)
		}
		view, err := a.orch.CreateSession(ctx, in, "")
		if err != nil {
			return err
		}
		sessionID = view.ID
		fmt.Fprintf(os.Stderr, "session %s\n", sessionID)
	}

	done := make(chan error, 1)
	unsubscribe := subscribeStream(a.bus, sessionID, os.Stdout, done)
	defer unsubscribe()

	if err := a.orch.SendMessage(ctx, sessionID, text); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = a.orch.CancelGeneration(context.Background(), sessionID)
		return <-done
	}
}

// subscribeStream prints the deltas of sessionID's generation and reports its outcome on done.
func subscribeStream(bus *event.Bus, sessionID string, out io.Writer, done chan<- error) func() {
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	unsubs := []func(){
		bus.Subscribe(event.StreamResponse, func(e event.Event) {
			data, ok := e.Data.(event.StreamResponseData)
			if !ok || data.CorrelationID != sessionID {
				return
			}
			if chatReasoning && data.Delta.ReasoningContent != "" {
				fmt.Fprint(out, data.Delta.ReasoningContent)
			}
			fmt.Fprint(out, data.Delta.Content)
		}),
		bus.Subscribe(event.StreamEnd, func(e event.Event) {
			data, ok := e.Data.(event.StreamEndData)
			if !ok || data.CorrelationID != sessionID {
				return
			}
			fmt.Fprintln(out)
			finish(nil)
		}),
		bus.Subscribe(event.StreamError, func(e event.Event) {
			data, ok := e.Data.(event.StreamErrorData)
			if !ok || data.CorrelationID != sessionID {
				return
			}
			fmt.Fprintln(out)
			finish(fmt.Errorf("generation failed: %s", data.Error))
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}
