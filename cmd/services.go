package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xvierd/notetime/internal/adapters/clock"
	"github.com/xvierd/notetime/internal/adapters/storage"
	"github.com/xvierd/notetime/internal/adapters/vault"
	"github.com/xvierd/notetime/internal/config"
	"github.com/xvierd/notetime/internal/logging"
	"github.com/xvierd/notetime/internal/ports"
	"github.com/xvierd/notetime/internal/services"
)

// appDeps groups all service-layer dependencies initialized at startup.
type appDeps struct {
	config   *config.Config
	logger   logging.Logger
	closeLog func() error
	storage  ports.Storage
	tracking *services.TrackingService
	loop     *services.Loop
	clock    ports.Clock
}

// app holds all initialized service dependencies.
// Populated by initializeServices() and accessible to all commands.
var app appDeps

// loadConfig reads the config file and applies the global flags.
func loadConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dataDirFlag != "" {
		dir, err := config.ExpandHome(dataDirFlag)
		if err != nil {
			return err
		}
		cfg.Storage.DataDir = dir
	}
	if vaultFlag != "" {
		dir, err := config.ExpandHome(vaultFlag)
		if err != nil {
			return err
		}
		cfg.Tracking.Vault = dir
	}
	if backendFlag != "" {
		cfg.Storage.Backend = backendFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	app.config = cfg
	app.clock = clock.Real{}
	return nil
}

// initializeServices sets up all the required services and adapters. The
// tracking service is wired to a loop that the commands start when they
// need timers; one-shot commands use it without one.
func initializeServices(ctx context.Context) error {
	if err := loadConfig(); err != nil {
		return err
	}
	cfg := app.config

	// Ensure directory exists
	if err := os.MkdirAll(cfg.Storage.DataDir, 0750); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	logger, closeLog, err := logging.Open(cfg.Storage.DataDir, cfg.Log.Level, false)
	if err != nil {
		return err
	}
	app.logger = logger
	app.closeLog = closeLog

	app.storage, err = openStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	app.loop = services.NewLoop(256)
	sched := clock.NewScheduler(func(f func()) { app.loop.Post(f) })
	app.tracking = services.NewTrackingService(app.storage, app.clock, sched, trackingOptions(cfg, logger))
	if err := app.tracking.Load(ctx); err != nil {
		return err
	}
	logger.Debug("services initialized", "backend", cfg.Storage.Backend, "data_dir", cfg.Storage.DataDir)
	return nil
}

// openStorage opens the configured storage backend.
func openStorage(cfg *config.Config) (ports.Storage, error) {
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		return storage.New(config.GetDBPath(cfg))
	default:
		return storage.NewFile(cfg.Storage.DataDir)
	}
}

func trackingOptions(cfg *config.Config, logger logging.Logger) services.TrackingOptions {
	opts := services.DefaultTrackingOptions()
	opts.Tracker = services.TrackerConfig{
		IdleThreshold:     time.Duration(cfg.Tracking.IdleThreshold),
		TrackInactiveTime: cfg.Tracking.TrackInactiveTime,
		InputDebounce:     time.Duration(cfg.Tracking.InputDebounce),
		Extensions:        cfg.Tracking.Extensions,
		Ignore:            cfg.Tracking.Ignore,
	}
	if d := time.Duration(cfg.Storage.SaveDebounce); d > 0 {
		opts.SaveDebounce = d
	}
	if d := time.Duration(cfg.Storage.SaveInterval); d > 0 {
		opts.SaveInterval = d
	}
	opts.RetentionDays = cfg.Storage.RetentionDays
	if cfg.Tracking.Vault != "" {
		opts.Tags = &vault.FrontmatterTags{Root: cfg.Tracking.Vault}
	}
	opts.Logger = logger
	return opts
}

// cleanupServices flushes pending data and closes all resources.
func cleanupServices() error {
	var firstErr error
	if app.tracking != nil {
		if err := app.tracking.Shutdown(context.Background()); err != nil {
			firstErr = err
		}
		app.tracking = nil
	}
	if app.storage != nil {
		if err := app.storage.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		app.storage = nil
	}
	if app.closeLog != nil {
		_ = app.closeLog()
		app.closeLog = nil
	}
	return firstErr
}

// setupSignalHandler sets up a context that cancels on interrupt signals.
func setupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
