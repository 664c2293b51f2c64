// Command chromenv runs the browser environment daemon and its local control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmylchreest/chromenv/internal/browser"
	"github.com/jmylchreest/chromenv/internal/config"
	"github.com/jmylchreest/chromenv/internal/database"
	"github.com/jmylchreest/chromenv/internal/health"
	"github.com/jmylchreest/chromenv/internal/http/handlers"
	"github.com/jmylchreest/chromenv/internal/http/routes"
	"github.com/jmylchreest/chromenv/internal/logging"
	"github.com/jmylchreest/chromenv/internal/orchestrator"
	"github.com/jmylchreest/chromenv/internal/portalloc"
	"github.com/jmylchreest/chromenv/internal/prober"
	"github.com/jmylchreest/chromenv/internal/repository"
	"github.com/jmylchreest/chromenv/internal/version"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get().String())
		return
	}

	logger := logging.SetDefault()

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg := config.Load()

	if n, err := logging.LoadFiltersFile(cfg.LogFiltersPath); err != nil {
		logger.Warn("log filters not applied", "path", cfg.LogFiltersPath, "error", err)
	} else if n > 0 {
		logger.Info("log filters applied", "path", cfg.LogFiltersPath, "count", n)
	}

	logger.Info("starting chromenv",
		"version", version.Get().Version,
		"commit", version.Get().Commit,
		"data_dir", cfg.DataDir,
	)

	settings, err := config.NewSettingsStore(cfg.SettingsPath, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DBPath, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	resolver := browser.NewResolver()
	configured := cfg.ChromePath
	if configured == "" {
		configured = settings.Get().ChromePath
	}
	if bin, err := resolver.Resolve(configured); err == nil {
		logger.Info("browser executable", "path", bin)
	} else {
		logger.Warn("no browser executable found; launches will fail until one is configured", "error", err)
	}
	procs := prober.New(logger, prober.WithGrace(cfg.ProcessTimeout/2))

	monitor := health.New(health.Config{
		ConnectDelay:      cfg.ProtocolConnectDelay,
		ProtocolTimeout:   cfg.ProtocolTimeout,
		ReconnectAttempts: cfg.ReconnectAttempts,
		ReconnectDelay:    cfg.ReconnectDelay,
		PollInterval:      cfg.PollInterval,
		PollTimeout:       cfg.ProcessTimeout,
	}, health.NewHTTPDiscoverer(cfg.ProtocolTimeout), health.CDPDialer{Timeout: cfg.ProtocolTimeout}, procs, logger)

	broadcaster := orchestrator.NewBroadcaster()
	metrics := orchestrator.NewMetrics("chromenv")

	orch := orchestrator.New(orchestrator.Config{
		PortStart:      cfg.DebugPortStart,
		PortAttempts:   cfg.DebugPortAttempts,
		Retention:      cfg.TrashRetention,
		ChromePath:     cfg.ChromePath,
		ProcessTimeout: cfg.ProcessTimeout,
	}, orchestrator.Deps{
		Store:    repository.NewSQLiteEnvironmentRepository(db.DB),
		Settings: settings,
		Monitor:  monitor,
		Launcher: browser.NewLauncher(logger),
		Resolver: resolver,
		Ports:    portalloc.New(),
		Prober:   procs,
		Notifier: broadcaster,
		Metrics:  metrics,
		Logger:   logger,
	})
	orch.Start()

	// Expired trash is purged once per start; there is no background timer.
	if n, err := orch.PurgeExpired(ctx); err != nil {
		logger.Warn("trash purge incomplete", "purged", n, "error", err)
	}
	if _, err := orch.ReconcileOrphans(ctx); err != nil {
		logger.Warn("orphan reconciliation failed", "error", err)
	}

	router := routes.NewRouter(routes.Options{
		ControlToken: cfg.ControlToken,
		CORSOrigins:  cfg.CORSOrigins,
		Metrics:      metrics.Registry(),
		Logger:       logger,
	}, &routes.Handlers{
		Environments: handlers.NewEnvironmentHandler(orch),
		Settings:     handlers.NewSettingsHandler(settings),
		Events:       handlers.NewEventsHandler(broadcaster),
	})

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("control API listening", "addr", cfg.ListenAddr, "token_required", cfg.ControlToken != "")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		orch.Shutdown()
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	// Browsers keep running; the next start reconciles them as orphans.
	orch.Shutdown()
	logger.Info("stopped")
	return nil
}
