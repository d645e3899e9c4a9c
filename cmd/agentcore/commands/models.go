package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentcore/internal/config"
	"github.com/opencode-ai/agentcore/internal/provider"
)

var modelsCmd = &cobra.Command{
	Use:   "models [provider]",
	Short: "List available models",
	Long: `List the models of every configured provider.

Examples:
  agentcore models              # List all models
  agentcore models anthropic    # List only Anthropic models`,
	RunE: runModels,
}

func runModels(cmd *cobra.Command, args []string) error {
	dir, err := GetWorkDir()
	if err != nil {
		return err
	}
	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}

	ctx := context.Background()
	registry, err := provider.InitializeProviders(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize providers: %w", err)
	}

	var providerFilter string
	if len(args) > 0 {
		providerFilter = args[0]
	}

	defaults := config.NewDefaults(cfg)
	defaults.SetFallback(registry.FallbackModel)
	def, defErr := defaults.DefaultModel()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tCONTEXT\tMAX OUTPUT\tFEATURES\t")
	for _, m := range registry.AllModels() {
		if providerFilter != "" && m.ProviderID != providerFilter {
			continue
		}
		var features []string
		if m.SupportsTools {
			features = append(features, "tools")
		}
		if m.SupportsReasoning {
			features = append(features, "reasoning")
		}
		if defErr == nil && def.ProviderID == m.ProviderID && def.ModelID == m.ID {
			features = append(features, "default")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t\n",
			m.ProviderID, m.ID, m.ContextLength, m.MaxOutputTokens, strings.Join(features, ","))
	}
	return w.Flush()
}
