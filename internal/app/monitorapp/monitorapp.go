// Package monitorapp wires the monitor binary's subsystems together
// through the shared lifecycle manager: instance lock, scheduler, and
// an optional operator console.
package monitorapp

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"telegram-userbot/internal/domain/monitor"
	"telegram-userbot/internal/infra/console"
	"telegram-userbot/internal/infra/lifecycle"
	"telegram-userbot/internal/infra/logger"
	"telegram-userbot/internal/infra/pr"
)

// Options gathers everything main needs to decide before wiring.
type Options struct {
	DataDir     string
	IndexURL    string
	Period      time.Duration
	HTTPClient  *http.Client
	Interactive bool
}

// App is the running monitor process, ready for Run through its
// embedded lifecycle manager.
type App struct {
	manager   *lifecycle.Manager
	scheduler *monitor.Scheduler
	cancel    atomic.Pointer[context.CancelFunc]
}

// New builds the App's node graph but does not start anything yet.
func New(opts Options) *App {
	manager := lifecycle.New(context.Background())
	lock := monitor.NewInstanceLock(opts.DataDir)
	orchestrator := monitor.NewOrchestrator(opts.DataDir, opts.IndexURL, opts.HTTPClient)
	scheduler := monitor.NewScheduler(opts.Period, orchestrator.Tick)

	app := &App{manager: manager, scheduler: scheduler}

	_ = manager.Register("lock", "", nil,
		func(ctx context.Context) (context.Context, error) {
			if err := lock.Acquire(); err != nil {
				return nil, fmt.Errorf("monitorapp: acquire instance lock: %w", err)
			}
			return nil, nil
		},
		func(ctx context.Context) error {
			return lock.Release()
		},
	)

	_ = manager.Register("scheduler", "", []string{"lock"},
		func(ctx context.Context) (context.Context, error) {
			go func() {
				if err := scheduler.Run(ctx); err != nil {
					logger.Errorf("monitorapp: scheduler exited with error: %v", err)
				}
			}()
			return nil, nil
		},
		func(ctx context.Context) error { return nil },
	)

	if opts.Interactive {
		svc := console.NewService("monitor", app.requestShutdown, []console.Command{
			{Name: "status", Description: "Show the scheduler's current state", Run: func() {
				pr.Printf("state: %s\n", scheduler.State())
				for name, state := range manager.Status() {
					pr.Printf("  %s: %s\n", name, state)
				}
			}},
			{Name: "version", Description: "Print the monitor version", Run: func() {
				pr.Println("crazyones-monitor")
			}},
		})

		_ = manager.Register("console", "", []string{"scheduler"},
			func(ctx context.Context) (context.Context, error) {
				svc.Start(ctx)
				return nil, nil
			},
			func(ctx context.Context) error {
				svc.Stop()
				return nil
			},
		)
	}

	return app
}

// requestShutdown cancels the context Run is blocked on, if Run has
// been called. Wired to the console's "exit" command.
func (a *App) requestShutdown() {
	if cancel := a.cancel.Load(); cancel != nil {
		(*cancel)()
	}
}

// Run starts every node, blocks until ctx is cancelled (by the caller,
// e.g. on SIGINT/SIGTERM, or by the console's "exit" command), then
// shuts down in reverse start order.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel.Store(&cancel)
	defer cancel()

	if err := a.manager.StartAll(); err != nil {
		return fmt.Errorf("monitorapp: start: %w", err)
	}

	<-runCtx.Done()
	return a.manager.Shutdown()
}
