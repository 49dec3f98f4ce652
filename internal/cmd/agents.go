package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List tracked agents",
	Long: `List the agents agentwatch tracks: those in the config file and, when
discovery is enabled, matching tmux sessions.`,
	RunE: runAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if d := a.discoverer(); d != nil {
		if _, err := d.Discover(cmd.Context(), a.registry); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "discovery failed: %v\n", err)
		}
	}

	agents := a.registry.List()
	if len(agents) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No agents tracked.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tTYPE\tSTRATEGY\tTARGET\tALIVE")
	for _, agent := range agents {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n",
			agent.ID,
			agent.Adapter.DisplayName(),
			agent.Adapter.DetectionStrategy(),
			agent.Target,
			a.backend.SessionAlive(cmd.Context(), agent.Target))
	}
	return tw.Flush()
}
