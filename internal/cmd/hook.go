package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/agentwatch/internal/config"
	"github.com/Iron-Ham/agentwatch/internal/hooks"
	"github.com/Iron-Ham/agentwatch/internal/logging"
)

var hookCmd = &cobra.Command{
	Use:   "hook <agent-id>",
	Short: "Queue a hook payload for the watcher",
	Long: `Read an agent hook payload (JSON) from stdin and drop it into the hook
spool, where a running 'agentwatch watch' picks it up.

Wire this into the agent's hook configuration, e.g. for Claude Code:

  "hooks": {
    "Notification": [{"hooks": [{"type": "command", "command": "agentwatch hook cam-1"}]}]
  }`,
	Args: cobra.ExactArgs(1),
	RunE: runHook,
}

func init() {
	rootCmd.AddCommand(hookCmd)
}

func runHook(cmd *cobra.Command, args []string) error {
	// Hooks run inside the agent; keep this path light and skip the full app.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	payload, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), hooks.MaxPayloadBytes+1))
	if err != nil {
		return fmt.Errorf("read hook payload: %w", err)
	}
	if len(payload) > hooks.MaxPayloadBytes {
		return fmt.Errorf("hook payload exceeds %d bytes", hooks.MaxPayloadBytes)
	}

	spool := hooks.NewSpool(cfg.Hooks.ResolveSpoolDir(), logging.NopLogger())
	if _, err := spool.Write(args[0], payload); err != nil {
		return err
	}
	return nil
}
