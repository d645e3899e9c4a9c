// Package commands provides the CLI commands for agentcore.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentcore/internal/logging"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
	logFile   string
	workDir   string
)

var rootCmd = &cobra.Command{
	Use:   "agentcore",
	Short: "agentcore - chat sessions over streaming language models",
	Long: `agentcore creates chat sessions, streams replies from a configured model
provider and keeps every turn in a local SQLite database.

Run 'agentcore serve' to expose the HTTP API, or 'agentcore chat' for a
one-shot conversation in the terminal.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write JSON logs to this rotated file")
	rootCmd.PersistentFlags().StringVar(&workDir, "dir", "", "Project directory (defaults to the current directory)")

	rootCmd.SetVersionTemplate(fmt.Sprintf("agentcore %s (%s)\n", Version, BuildTime))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(modelsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func setupLogging(cmd *cobra.Command, args []string) error {
	logging.Init(currentLogConfig())
	return nil
}

func currentLogConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(logLevel)
	cfg.Pretty = true
	cfg.File = logFile
	if !printLogs {
		cfg.Output = io.Discard
	}
	return cfg
}

// GetWorkDir returns the working directory from the --dir flag or the current directory.
func GetWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return os.Getwd()
}
