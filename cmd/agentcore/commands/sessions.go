package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-ai/agentcore/pkg/types"
)

var (
	sessionsAgent   string
	sessionsProject string
	sessionsAll     bool
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List sessions",
	Long: `List sessions, pinned first and then most recently updated.

By default only sessions of the current project directory are shown.`,
	RunE: runSessions,
}

func init() {
	sessionsCmd.Flags().StringVar(&sessionsAgent, "agent", "", "Only sessions owned by this agent")
	sessionsCmd.Flags().StringVar(&sessionsProject, "project", "", "Only sessions of this project directory")
	sessionsCmd.Flags().BoolVarP(&sessionsAll, "all", "a", false, "Sessions of every project")
}

func runSessions(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	filter := types.SessionFilter{AgentID: sessionsAgent, ProjectDir: sessionsProject}
	if filter.ProjectDir == "" && !sessionsAll {
		filter.ProjectDir = a.project
	}

	views, err := a.orch.GetSessionList(ctx, filter)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAGENT\tMODEL\tSTATUS\tUPDATED\t")
	for _, v := range views {
		model, status := "-", "-"
		if v.State != nil {
			model = v.State.ProviderID + "/" + v.State.ModelID
			status = string(v.State.Status)
		}
		title := v.Title
		if v.IsPinned {
			title = "* " + title
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			v.ID, title, v.AgentID, model, status,
			time.UnixMilli(v.UpdatedAt).Format(time.DateTime))
	}
	return w.Flush()
}
