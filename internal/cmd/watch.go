package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/agentwatch/internal/event"
	"github.com/Iron-Ham/agentwatch/internal/hooks"
	"github.com/Iron-Ham/agentwatch/internal/strategy"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the watcher daemon",
	Long: `Run the watcher loop until interrupted.

Every tick each tracked agent is captured, classified and, when it waits
for a human, its question is extracted and deduplicated. Notifications are
written to stdout as JSON lines.

Hook events are read from the spool directory (see 'agentwatch hook') and,
when hooks.listen_addr is set, from a local HTTP receiver.`,
	RunE: runWatch,
}

var watchListen string

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchListen, "listen", "", "HTTP hook receiver address (overrides hooks.listen_addr)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := loadApp()
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	a.bus.SubscribeAll(func(e event.Event) {
		a.logger.Debug("event", "event_type", e.EventType())
	})

	tracker := strategy.NewHookTracker()
	dispatcher := event.MultiDispatcher{
		event.NewBusDispatcher(a.bus),
		event.NewWriterDispatcher(cmd.OutOrStdout()),
	}
	w, err := a.newWatcher(tracker, dispatcher)
	if err != nil {
		return err
	}
	intake := a.newIntake(tracker, w)
	spool := hooks.NewSpool(a.cfg.Hooks.ResolveSpoolDir(), a.logger)

	listen := a.cfg.Hooks.ListenAddr
	if watchListen != "" {
		listen = watchListen
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Info("agentwatch starting",
		"agents", a.registry.Len(),
		"spool_dir", spool.Dir(),
		"listen_addr", listen,
		"store_path", a.cfg.Dedup.ResolveStorePath())
	fmt.Fprintf(cmd.ErrOrStderr(), "watching %d agent(s), spool %s\n", a.registry.Len(), spool.Dir())

	p := pool.New().WithContext(ctx).WithCancelOnError()
	p.Go(func(ctx context.Context) error {
		return spool.Watch(ctx, intake)
	})
	if listen != "" {
		server := hooks.NewServer(intake, a.logger)
		p.Go(func(ctx context.Context) error {
			return server.ListenAndServe(ctx, listen)
		})
	}
	p.Go(w.Run)
	return p.Wait()
}
