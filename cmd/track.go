package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/xvierd/notetime/internal/adapters/events"
	"github.com/xvierd/notetime/internal/adapters/hostlink"
	"github.com/xvierd/notetime/internal/adapters/notification"
	"github.com/xvierd/notetime/internal/adapters/tui"
	"github.com/xvierd/notetime/internal/adapters/vault"
	"github.com/xvierd/notetime/internal/domain"
	"github.com/xvierd/notetime/internal/ports"
	"github.com/xvierd/notetime/internal/services"
)

var (
	vaultFlag     string
	eventsFlag    bool
	hostlinkFlag  bool
	dashboardFlag bool
	noStartFlag   bool
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Run the tracker",
	Long: `Run the tracker until interrupted. Activity comes from any combination of:

  --vault DIR   watch a vault directory for edits
  --events      read JSON activity events from stdin, one per line
  --hostlink    accept a host plugin over a local WebSocket

Use --dashboard for a live view of the current session and today's totals.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dashboardFlag && eventsFlag {
			return errors.New("--dashboard cannot be combined with --events")
		}

		var sources []ports.EventSource
		if eventsFlag {
			sources = append(sources, events.NewJSONLines(os.Stdin, app.logger))
		}
		if hostlinkFlag {
			sources = append(sources, newHostLink())
		}
		if app.config.Tracking.Vault != "" {
			sources = append(sources, newVaultWatcher())
		}
		if len(sources) == 0 {
			return errors.New("no activity source: use --vault, --events or --hostlink")
		}

		var foreground func(context.Context) error
		if dashboardFlag {
			foreground = runDashboard
		} else {
			fmt.Fprintln(cmd.ErrOrStderr(), "Tracking. Press Ctrl+C to stop.")
		}

		ctx, stop := setupSignalHandler(cmd.Context())
		defer stop()
		return runEngine(ctx, sources, foreground, !noStartFlag)
	},
}

func init() {
	trackCmd.Flags().StringVar(&vaultFlag, "vault", "", "Vault directory to watch (default from config)")
	trackCmd.Flags().BoolVar(&eventsFlag, "events", false, "Read JSON activity events from stdin")
	trackCmd.Flags().BoolVar(&hostlinkFlag, "hostlink", false, "Accept a host plugin connection over WebSocket")
	trackCmd.Flags().BoolVar(&dashboardFlag, "dashboard", false, "Show the live dashboard")
	trackCmd.Flags().BoolVar(&noStartFlag, "no-start", false, "Wait for a start command instead of tracking at once")
	rootCmd.AddCommand(trackCmd)
}

func newHostLink() *hostlink.Server {
	srv := hostlink.New(app.config.HostLink.Port, app.logger)
	app.tracking.Bus().Subscribe(srv.Send)
	return srv
}

func newVaultWatcher() *vault.Watcher {
	tr := app.config.Tracking
	filter := func(rel string) bool {
		return services.Trackable(rel, tr.Extensions, tr.Ignore)
	}
	return vault.NewWatcher(tr.Vault, filter, app.logger)
}

// runEngine drives the tracking service on its loop until ctx is cancelled
// or a source or the foreground function returns. Events from every source
// are posted to the loop and all of them are handled before it returns.
func runEngine(ctx context.Context, sources []ports.EventSource, foreground func(context.Context) error, start bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc := app.tracking
	svc.SetLoop(app.loop)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go app.loop.Run(loopCtx)

	unsubscribeNotify := services.NotifyOnIdle(svc.Bus(), notification.New(&app.config.Notifications), app.logger)
	defer unsubscribeNotify()
	unsubscribeLog := svc.Bus().Subscribe(func(ev domain.TrackerEvent) {
		if ev.Kind == domain.SessionEnded && ev.Entry != nil {
			app.logger.Info("session ended", "file", ev.Entry.FilePath, "duration_ms", ev.Entry.Duration)
			return
		}
		app.logger.Debug("tracker event", "kind", ev.Kind)
	})
	defer unsubscribeLog()

	if start {
		if err := svc.StartTracking(ctx); err != nil {
			stopLoop()
			<-app.loop.Done()
			return err
		}
	}

	emit := func(ev domain.ActivityEvent) {
		app.loop.Post(func() { svc.HandleEvent(ev) })
	}

	runners := make([]func(context.Context) error, 0, len(sources)+1)
	for _, src := range sources {
		runners = append(runners, func(ctx context.Context) error { return src.Run(ctx, emit) })
	}
	if foreground != nil {
		runners = append(runners, foreground)
	}

	errCh := make(chan error, len(runners))
	var wg sync.WaitGroup
	for _, run := range runners {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer cancel()
			errCh <- run(ctx)
		}()
	}
	wg.Wait()
	// Tasks run in order, so this returns once every posted event is handled.
	if err := app.loop.Do(context.Background(), func() {}); err != nil {
		app.logger.Warn("draining event loop", "error", err)
	}
	stopLoop()
	<-app.loop.Done()
	close(errCh)

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

// runDashboard shows the live dashboard backed by the running service.
func runDashboard(ctx context.Context) error {
	svc := app.tracking
	return tui.Run(ctx, tui.Options{
		Fetch: func() (tui.Snapshot, error) {
			return snapshot(ctx, svc, 5)
		},
		OnCommand: func(c tui.Command) error {
			switch c {
			case tui.CommandStart:
				return svc.StartTracking(ctx)
			case tui.CommandStop:
				return svc.StopTracking(ctx)
			case tui.CommandPause:
				return svc.PauseTracking(ctx)
			case tui.CommandResume:
				return svc.ResumeTracking(ctx)
			}
			return fmt.Errorf("unknown command %q", c)
		},
		DailyGoal: time.Duration(app.config.Dashboard.DailyGoal),
	})
}

// snapshot gathers what the dashboard and status output render.
func snapshot(ctx context.Context, svc ports.MCPStateProvider, timeline int) (tui.Snapshot, error) {
	now := app.clock.Now()
	st, err := svc.TrackingState(ctx)
	if err != nil {
		return tui.Snapshot{}, err
	}
	today, err := svc.TodayStats(ctx, now)
	if err != nil {
		return tui.Snapshot{}, err
	}
	recent, err := svc.Timeline(ctx, timeline)
	if err != nil {
		return tui.Snapshot{}, err
	}
	return tui.Snapshot{State: st, Today: today, Timeline: recent, Now: now}, nil
}
