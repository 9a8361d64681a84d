package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360studio/hotreload/config"
	"github.com/c360studio/hotreload/internal/applier"
	"github.com/c360studio/hotreload/internal/browserrefresh"
	"github.com/c360studio/hotreload/internal/compiler"
	"github.com/c360studio/hotreload/internal/compiler/extprocess"
	"github.com/c360studio/hotreload/internal/compiler/fakecompiler"
	"github.com/c360studio/hotreload/internal/diagnostics"
	"github.com/c360studio/hotreload/internal/errs"
	"github.com/c360studio/hotreload/internal/eventbus"
	"github.com/c360studio/hotreload/internal/fsproject"
	"github.com/c360studio/hotreload/internal/metrics"
	"github.com/c360studio/hotreload/internal/orchestrator"
	"github.com/c360studio/hotreload/internal/runctx"
	"github.com/c360studio/hotreload/internal/watcher"
)

// App wires every internal package into a runnable daemon for one watched
// project. It owns the process-lifetime resources (NATS connection,
// metrics registry, browser-refresh HTTP server) that outlive any single
// orchestrator iteration.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	natsConn *nats.Conn
	events   *eventbus.Publisher

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	hub        *browserrefresh.Hub
	refreshSrv *http.Server

	router *diagnostics.Router
	watch  *watcher.Watcher
	orch   *orchestrator.Orchestrator
}

// NewApp constructs an App from cfg without starting anything yet.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}
}

// Start brings up every ambient collaborator (event bus, metrics, browser
// refresh hub), constructs the orchestrator for iteration 0, and starts the
// file watcher. It returns once the first iteration's workspace load has
// been kicked off; callers drive the daemon to completion with Run.
func (a *App) Start(ctx context.Context) error {
	a.startEventBus()
	a.startMetrics()

	if a.cfg.Refresh.Enabled {
		if err := a.startBrowserRefresh(ctx); err != nil {
			return fmt.Errorf("start browser refresh: %w", err)
		}
	}

	a.router = diagnostics.NewRouter(a.logger, a.refreshChannel(), a.events)

	svc := a.buildCompilerService()

	a.orch = orchestrator.New(orchestrator.Options{
		Opener: fsproject.Opener{
			Extensions:           a.cfg.Project.SourceExtensions,
			AdditionalExtensions: a.cfg.Project.AdditionalExtensions,
		},
		Service:              svc,
		Router:               a.router,
		Metrics:              a.metrics,
		Events:               a.events,
		PipeName:             a.cfg.Pipe.Name,
		SourceExtensions:     a.cfg.Project.SourceExtensions,
		AdditionalExtensions: a.cfg.Project.AdditionalExtensions,
		Logger:               a.logger,
	})

	processSpec := runctx.ProcessSpec{}.WithForceEditContinuation()
	if err := a.orch.NewIteration(ctx, a.cfg.Project.Path, processSpec); err != nil {
		return fmt.Errorf("start iteration 0: %w", err)
	}

	app := a.buildApplier()
	a.orch.AttachApplier(app)
	if pipeApp, ok := app.(*applier.PipeApplier); ok {
		go a.acceptAgent(ctx, pipeApp)
	}

	watchExtensions := append(append([]string{}, a.cfg.Project.SourceExtensions...), a.cfg.Project.AdditionalExtensions...)
	w, err := watcher.New(a.cfg.Project.Path, watchExtensions, a.cfg.Project.DebounceDelay, a.logger)
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	a.watch = w
	if err := a.watch.Start(ctx); err != nil {
		return fmt.Errorf("watch %s: %w", a.cfg.Project.Path, err)
	}

	return nil
}

// Run drives the watch loop until ctx is cancelled, handing every changed
// path to the orchestrator as it arrives.
func (a *App) Run(ctx context.Context) error {
	dropPoll := time.NewTicker(5 * time.Second)
	defer dropPoll.Stop()
	var lastDropped int64

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-dropPoll.C:
			if a.metrics == nil {
				continue
			}
			dropped := a.watch.DroppedEvents()
			if delta := dropped - lastDropped; delta > 0 {
				a.metrics.ObserveDroppedWatcherEvents(delta)
			}
			lastDropped = dropped
		case path, ok := <-a.watch.Events():
			if !ok {
				return nil
			}
			if _, err := a.orch.HandleFileChange(ctx, path); err != nil {
				a.logger.Warn("daemon: file change not applied", "path", path, "error", err)
				if errs.IsWorkspace(err) {
					return fmt.Errorf("workspace degraded, restart required: %w", err)
				}
			}
		}
	}
}

// Shutdown releases every resource Start acquired. It is safe to call even
// if Start failed partway through.
func (a *App) Shutdown(ctx context.Context) {
	if a.watch != nil {
		_ = a.watch.Stop()
	}
	if a.orch != nil {
		if pipe := a.orch.Pipe(); pipe != nil {
			_ = pipe.Close()
		}
	}
	if a.refreshSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.refreshSrv.Shutdown(shutdownCtx)
	}
	if a.hub != nil {
		a.hub.Wait()
	}
	if a.natsConn != nil {
		a.natsConn.Drain()
	}
}

func (a *App) startEventBus() {
	if a.cfg.NATS.URL == "" {
		a.events = eventbus.NewPublisher(nil, a.logger)
		return
	}
	conn, err := nats.Connect(a.cfg.NATS.URL)
	if err != nil {
		a.logger.Warn("daemon: failed to connect to NATS, lifecycle events disabled", "url", a.cfg.NATS.URL, "error", err)
		a.events = eventbus.NewPublisher(nil, a.logger)
		return
	}
	a.natsConn = conn
	a.events = eventbus.NewPublisher(conn, a.logger)
}

func (a *App) startMetrics() {
	if !a.cfg.Metrics.Enabled {
		return
	}
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
}

// MetricsHandler exposes the daemon's registry over the standard
// promhttp.Handler() pattern, or nil when metrics are disabled.
func (a *App) MetricsHandler() http.Handler {
	if a.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

func (a *App) startBrowserRefresh(ctx context.Context) error {
	a.hub = browserrefresh.NewHub()
	go a.hub.Run(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/hotreload/ws", browserrefresh.Handler(ctx, a.hub))

	ln, err := net.Listen("tcp", a.cfg.Refresh.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Refresh.ListenAddr, err)
	}

	a.refreshSrv = &http.Server{Handler: mux}
	go func() {
		if err := a.refreshSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			a.logger.Warn("daemon: browser refresh server stopped", "error", err)
		}
	}()

	a.logger.Info("browser refresh listening", "addr", ln.Addr().String())
	return nil
}

// acceptAgent waits for the in-process agent to dial the named pipe and
// attaches it to app. A failed or cancelled accept just logs: the pipe
// applier degrades to a no-op until the next iteration re-listens.
func (a *App) acceptAgent(ctx context.Context, app *applier.PipeApplier) {
	pipe := a.orch.Pipe()
	if pipe == nil {
		return
	}
	conn, err := pipe.Accept(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("daemon: agent did not connect", "error", err)
		}
		return
	}
	app.Initialize(ctx, conn)
	a.logger.Info("daemon: agent attached")
}

func (a *App) refreshChannel() browserrefresh.RefreshChannel {
	if a.hub == nil {
		return nil
	}
	return a.hub
}

func (a *App) buildCompilerService() compiler.EditContinuationService {
	if a.cfg.Compiler.Command == "" {
		a.logger.Info("daemon: no compiler.command configured, running against the in-memory fake compiler")
		return &fakecompiler.Service{}
	}
	return &extprocess.Service{
		Command: a.cfg.Compiler.Command,
		Args:    a.cfg.Compiler.Args,
		Timeout: a.cfg.Compiler.Timeout,
	}
}

func (a *App) buildApplier() applier.Applier {
	if a.cfg.Refresh.Enabled {
		return applier.NewBrowserApplier(a.hub, a.logger)
	}
	return applier.NewPipeApplier(a.cfg.Pipe.AckTimeout, a.metrics, a.logger)
}
