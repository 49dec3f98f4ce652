package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/agentwatch/internal/event"
	"github.com/Iron-Ham/agentwatch/internal/watcher"
)

var clearCmd = &cobra.Command{
	Use:   "clear <agent-id>",
	Short: "Clear an agent's notification lock",
	Long: `Remove the notification lock of an agent, so its next question is
notified immediately and the maximum-duration clock starts over.

Agent hooks do this automatically on resume and exit.`,
	Args: cobra.ExactArgs(1),
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
}

func runClear(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	agentID := args[0]
	existed, err := a.locks.ClearLock(agentID)
	if err != nil {
		return err
	}
	if !existed {
		fmt.Fprintf(cmd.OutOrStdout(), "No lock for %s\n", agentID)
		return nil
	}
	a.bus.Publish(event.NewLockClearedEvent(agentID, watcher.ClearManual))
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared lock for %s\n", agentID)
	return nil
}
