package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/agentwatch/internal/dedup"
)

var locksCmd = &cobra.Command{
	Use:   "locks",
	Short: "List notification locks",
	Long: `List the notification locks in the shared lock store.

Each lock records when the agent was first notified about its current
question, when the lock window started, the question's fingerprint and
whether the reminder went out.`,
	RunE: runLocks,
}

var locksOutput string

func init() {
	rootCmd.AddCommand(locksCmd)
	locksCmd.Flags().StringVarP(&locksOutput, "output", "o", "table", "Output format: table, json or yaml")
}

func runLocks(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	locks, err := a.locks.Locks()
	if err != nil {
		return err
	}
	return renderLocks(cmd.OutOrStdout(), locks, locksOutput, a.locks.Windows(), time.Now())
}

func renderLocks(w io.Writer, locks map[string]dedup.Record, format string, win dedup.Windows, now time.Time) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"locks": locks})
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(map[string]any{"locks": locks}); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		return renderLockTable(w, locks, win, now)
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func renderLockTable(w io.Writer, locks map[string]dedup.Record, win dedup.Windows, now time.Time) error {
	if len(locks) == 0 {
		_, err := fmt.Fprintln(w, "No notification locks.")
		return err
	}

	ids := make([]string, 0, len(locks))
	for id := range locks {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AGENT\tFIRST NOTIFIED\tLOCKED\tREMINDER\tSTATE\tFINGERPRINT")
	for _, id := range ids {
		rec := locks[id]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\t%016x\n",
			id,
			formatAge(now, rec.FirstNotifiedAt),
			formatAge(now, rec.LockedAt),
			rec.ReminderSent,
			lockState(rec, win, now),
			rec.ContentFingerprint)
	}
	return tw.Flush()
}

// lockState names where a lock is in its lifecycle.
func lockState(rec dedup.Record, win dedup.Windows, now time.Time) string {
	if now.Sub(time.Unix(rec.FirstNotifiedAt, 0)) >= win.MaxDuration {
		return "expired"
	}
	elapsed := now.Sub(time.Unix(rec.LockedAt, 0))
	switch {
	case elapsed < win.Lock:
		return "locked"
	case rec.ReminderSent:
		return "reminded"
	case elapsed < win.Lock+win.ReminderDelay:
		return "waiting"
	default:
		return "reminder due"
	}
}

func formatAge(now time.Time, unix int64) string {
	age := now.Sub(time.Unix(unix, 0)).Truncate(time.Second)
	if age < 0 {
		age = 0
	}
	return age.String() + " ago"
}
