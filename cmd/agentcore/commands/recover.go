package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentcore/internal/agent"
	"github.com/opencode-ai/agentcore/internal/agent/deepchat"
	"github.com/opencode-ai/agentcore/internal/config"
	"github.com/opencode-ai/agentcore/internal/storage"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Mark interrupted generations as failed",
	Long: `Mark every assistant message still pending from an interrupted run as
failed. The server does this on startup; this command only touches the
database, so no provider credentials are needed.`,
	RunE: runRecover,
}

func runRecover(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dir, err := GetWorkDir()
	if err != nil {
		return err
	}
	if err := config.GetPaths().EnsurePaths(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	store, err := storage.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	messages, err := store.MessageTable(ctx, deepchat.MessageTableName(string(agent.KindDeepChat)))
	if err != nil {
		return err
	}
	n, err := messages.RecoverPendingMessages(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recovered %d message(s)\n", n)
	return nil
}
