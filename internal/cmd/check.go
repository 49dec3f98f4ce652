package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/agentwatch/internal/errors"
	"github.com/Iron-Ham/agentwatch/internal/event"
	"github.com/Iron-Ham/agentwatch/internal/strategy"
	"github.com/Iron-Ham/agentwatch/internal/watcher"
)

var checkCmd = &cobra.Command{
	Use:   "check [agent-id...]",
	Short: "Run one tick and print the outcome",
	Long: `Run the decision pipeline once and print what happened to each agent.

With no arguments every tracked agent is checked. Decisions are recorded in
the shared lock store exactly as the daemon would record them.`,
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	w, err := a.newWatcher(strategy.NewHookTracker(), event.NewBusDispatcher(a.bus))
	if err != nil {
		return err
	}

	var reports []watcher.Report
	if len(args) == 0 {
		reports = w.Tick(cmd.Context())
	} else {
		for _, id := range args {
			agent, ok := a.registry.Get(id)
			if !ok {
				return errors.NewAgentError("unknown agent", errors.ErrAgentNotFound).WithAgentID(id)
			}
			reports = append(reports, w.ProcessAgent(cmd.Context(), agent))
		}
	}

	if len(reports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No agents tracked. Add agents to the config or enable discovery.")
		return nil
	}
	for _, r := range reports {
		printReport(cmd.OutOrStdout(), r)
	}
	return nil
}

func printReport(w io.Writer, r watcher.Report) {
	line := fmt.Sprintf("%s: %s", r.AgentID, r.Result)
	if r.Status != "" {
		line += fmt.Sprintf(" (status %s, confidence %.2f)", r.Status, r.Confidence)
	}
	if r.Decision != nil {
		line += fmt.Sprintf(" [%s: %s]", r.Decision.Action, r.Decision.Reason)
	}
	fmt.Fprintln(w, line)

	if r.Err != nil {
		fmt.Fprintf(w, "  error: %v\n", r.Err)
	}
	if n := r.Notification; n != nil {
		fmt.Fprintf(w, "  %s %s:\n", n.Outcome, n.Kind)
		for _, l := range strings.Split(n.Text, "\n") {
			fmt.Fprintf(w, "    %s\n", l)
		}
		for _, opt := range n.Options {
			fmt.Fprintf(w, "    - %s\n", opt)
		}
	}
}
