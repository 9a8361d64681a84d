// Package main implements hotreloadd, a thin cobra daemon entrypoint that
// wires the hot-reload delta pipeline together for manual and end-to-end
// testing outside of an embedding host.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/c360studio/hotreload/config"
)

// Build information (set via ldflags).
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath string
		projectDir string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:     "hotreloadd",
		Short:   "Hot-reload delta pipeline daemon",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Long: `hotreloadd watches a project for source changes, drives the
compilation orchestrator's edit sessions, and transports the resulting
module deltas to a running target process (or browser refresh clients)
over the named local pipe / WebSocket channel.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), configPath, projectDir, verbose)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.Flags().StringVar(&projectDir, "project", "", "Project root to watch (overrides config)")
	rootCmd.Flags().BoolVar(&verbose, "verbose", false, "Enable debug logging")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

func runDaemon(ctx context.Context, configPath, projectDir string, verbose bool) error {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(configPath, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if projectDir != "" {
		cfg.Project.Path = projectDir
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	app := NewApp(cfg, logger)
	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}
	defer app.Shutdown(ctx)

	if handler := app.MetricsHandler(); handler != nil {
		go serveMetrics(logger, handler)
	}

	logger.Info("hotreloadd watching", "project", cfg.Project.Path, "pipe", cfg.Pipe.Name)
	return app.Run(ctx)
}

func loadConfig(configPath string, logger *slog.Logger) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromFile(configPath)
	}
	return config.NewLoader(logger).Load()
}

func serveMetrics(logger *slog.Logger, handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	if err := http.ListenAndServe("127.0.0.1:9090", mux); err != nil && err != http.ErrServerClosed {
		logger.Warn("daemon: metrics server stopped", "error", err)
	}
}
