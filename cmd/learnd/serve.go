package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/learnd/internal/config"
	"github.com/fyrsmithlabs/learnd/internal/engine"
	"github.com/fyrsmithlabs/learnd/internal/events"
	httpserver "github.com/fyrsmithlabs/learnd/internal/http"
	"github.com/fyrsmithlabs/learnd/internal/logging"
	"github.com/fyrsmithlabs/learnd/internal/memorystore"
	"github.com/fyrsmithlabs/learnd/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the learning daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadWithFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg)
	},
}

// run starts the daemon and blocks until ctx is cancelled.
//
// Startup order:
//  1. Logger and telemetry
//  2. Memory store
//  3. Event publisher (when enabled)
//  4. Engine, restored from the memory store
//  5. Maintenance scheduler (when enabled)
//  6. HTTP server
//
// On shutdown the HTTP server drains first, then the engine state is saved.
func run(ctx context.Context, cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg, err := logging.FromObservability(cfg.Observability)
	if err != nil {
		return fmt.Errorf("invalid logging configuration: %w", err)
	}
	// Telemetry reports startup problems through a stdout-only logger; the
	// main logger also ships to the OTLP log provider once it exists.
	bootLogger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromObservability(cfg.Observability, version),
		telemetry.WithLogger(bootLogger.Underlying()))
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	logger, err := logging.NewLogger(logCfg, tel.LoggerProvider())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()
	zl := logger.Underlying()

	logger.Info(ctx, "starting learnd",
		zap.String("version", version),
		zap.Int("port", cfg.Server.Port),
		zap.String("memory_store", cfg.MemoryStore.Driver),
		zap.Bool("otel_logs", tel.LoggerProvider() != nil),
	)

	deps, err := initDependencies(cfg, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	eng, err := engine.New(cfg, deps.store,
		engine.WithLogger(zl),
		engine.WithPublisher(deps.publisher),
		engine.WithTelemetry(tel),
	)
	if err != nil {
		return fmt.Errorf("failed to create engine: %w", err)
	}
	if !eng.LoadFromMemory(ctx) {
		logger.Warn(ctx, "starting with empty state: could not load from memory store")
	}

	var scheduler *engine.MaintenanceScheduler
	if cfg.Maintenance.Enabled {
		scheduler, err = engine.NewMaintenanceScheduler(eng, cfg.Maintenance.Interval.Duration(), zl)
		if err != nil {
			return fmt.Errorf("failed to create maintenance scheduler: %w", err)
		}
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start maintenance scheduler: %w", err)
		}
	}

	srv, err := httpserver.NewServer(eng, zl, &httpserver.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		TrustedProxies: cfg.Server.TrustedProxies,
		Meter:          tel.Meter("github.com/fyrsmithlabs/learnd/internal/http"),
	})
	if err != nil {
		return fmt.Errorf("failed to create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if errors.Is(serveErr, http.ErrServerClosed) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http server shutdown failed", zap.Error(err))
	}
	if scheduler != nil {
		if err := scheduler.Stop(); err != nil {
			logger.Warn(shutdownCtx, "maintenance scheduler stop failed", zap.Error(err))
		}
	}
	if !eng.SaveToMemory(shutdownCtx) {
		logger.Error(shutdownCtx, "failed to save engine state on shutdown")
	}
	if err := tel.Shutdown(shutdownCtx); err != nil {
		logger.Warn(shutdownCtx, "telemetry shutdown failed", zap.Error(err))
	}

	logger.Info(shutdownCtx, "learnd shutdown complete")
	return serveErr
}

// dependencies holds the infrastructure the engine runs on.
type dependencies struct {
	store      memorystore.Store
	closeStore func() error
	publisher  events.Publisher
	closePub   func() error
	logger     *zap.Logger
}

// Close releases all infrastructure resources.
func (d *dependencies) Close() {
	if d.closePub != nil {
		if err := d.closePub(); err != nil {
			d.logger.Warn("event publisher close failed", zap.Error(err))
		}
	}
	if d.closeStore != nil {
		if err := d.closeStore(); err != nil {
			d.logger.Warn("memory store close failed", zap.Error(err))
		}
	}
}

// initDependencies opens the memory store and, when enabled, connects the
// NATS event publisher. A NATS failure degrades to discarding events.
func initDependencies(cfg *config.Config, logger *zap.Logger) (*dependencies, error) {
	store, closeStore, err := memorystore.Open(cfg.MemoryStore, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	deps := &dependencies{
		store:      store,
		closeStore: closeStore,
		publisher:  events.Nop{},
		logger:     logger,
	}

	if !cfg.Events.Enabled {
		return deps, nil
	}
	nc, err := events.Connect(cfg.Events.URL)
	if err != nil {
		logger.Warn("event publishing disabled", zap.Error(err))
		return deps, nil
	}
	pub := events.NewNATSPublisher(nc, cfg.Events.SubjectPrefix, logger)
	deps.publisher = pub
	deps.closePub = pub.Close
	logger.Info("connected to NATS", zap.String("url", cfg.Events.URL))
	return deps, nil
}
