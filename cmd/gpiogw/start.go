package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mattjoyce/gpiogw/internal/actionconfig"
	"github.com/mattjoyce/gpiogw/internal/api"
	"github.com/mattjoyce/gpiogw/internal/auth"
	"github.com/mattjoyce/gpiogw/internal/config"
	"github.com/mattjoyce/gpiogw/internal/dispatch"
	"github.com/mattjoyce/gpiogw/internal/events"
	"github.com/mattjoyce/gpiogw/internal/handlers"
	"github.com/mattjoyce/gpiogw/internal/hardware"
	"github.com/mattjoyce/gpiogw/internal/lock"
	"github.com/mattjoyce/gpiogw/internal/log"
	"github.com/mattjoyce/gpiogw/internal/mqtt"
	"github.com/mattjoyce/gpiogw/internal/plugin"
	"github.com/mattjoyce/gpiogw/internal/storage"
	"github.com/mattjoyce/gpiogw/internal/telemetry"
)

const eventBufferSize = 256

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to configuration file or directory")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse flags: %v\n", err)
		return 1
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	log.Setup(cfg.Service.LogLevel, cfg.Service.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("gpiogw starting", "version", version, "config", cfg.SourcePath, "simulate", cfg.Service.Simulate)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gw, err := newGateway(ctx, cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer gw.close()

	logger.Info("gpiogw running (press Ctrl+C to stop)")
	if err := gw.run(ctx); err != nil {
		logger.Error("component failed", "error", err)
		return 1
	}
	logger.Info("gpiogw stopped")
	return 0
}

// loadConfig loads an explicit or discovered config file. With no flag and
// nothing discovered it falls back to defaults plus environment.
func loadConfig(path string) (*config.Config, error) {
	discovered, err := config.DiscoverConfigPath(path)
	switch {
	case errors.Is(err, config.ErrNoConfig):
		fmt.Fprintln(os.Stderr, "No config file found, using defaults")
		return config.LoadDefaults()
	case err != nil:
		return nil, err
	}
	return config.Load(discovered)
}

// gateway holds every long-lived component of a running instance.
type gateway struct {
	cfg    *config.Config
	logger *slog.Logger

	pidLock  *lock.PIDLock
	db       *sql.DB
	history  *storage.History
	driver   hardware.Driver
	sink     telemetry.Sink
	registry *plugin.Registry
	store    *actionconfig.Store
	hub      *events.Hub
	manager  *dispatch.Manager
	api      *api.Server
	mqtt     *mqtt.Client
}

// newGateway opens resources in dependency order. On error everything opened
// so far is closed again.
func newGateway(ctx context.Context, cfg *config.Config, logger *slog.Logger) (gw *gateway, err error) {
	gw = &gateway{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			gw.close()
			gw = nil
		}
	}()

	pidLockPath := lock.PathFor(cfg.State.Path)
	gw.pidLock, err = lock.Acquire(pidLockPath)
	if err != nil {
		return gw, fmt.Errorf("pid lock %s: %w", pidLockPath, err)
	}
	logger.Info("acquired PID lock", "path", pidLockPath)

	gw.db, err = storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return gw, fmt.Errorf("open database: %w", err)
	}
	gw.history = storage.NewHistory(gw.db)
	logger.Info("database opened", "path", cfg.State.Path)

	gw.driver, err = hardware.Open(cfg.Hardware.Driver, cfg.Hardware.I2CBus)
	if err != nil {
		return gw, fmt.Errorf("open hardware: %w", err)
	}
	logger.Info("hardware driver ready", "driver", cfg.Hardware.Driver)

	gw.sink = openTelemetry(ctx, cfg.InfluxDB, logger)

	catalog := handlers.Catalog(handlers.Deps{Driver: gw.driver, Telemetry: gw.sink})
	gw.registry, err = plugin.Discover(cfg.Paths.PluginsDir, catalog, levelLogger(log.WithComponent("plugin")))
	if err != nil {
		return gw, fmt.Errorf("plugin discovery: %w", err)
	}
	logger.Info("plugin discovery complete", "handlers", gw.registry.Len(), "kinds", gw.registry.Kinds())

	gw.store = actionconfig.NewStore(cfg.Paths.ConfigDir)
	gw.hub = events.NewHub(eventBufferSize)
	gw.manager = dispatch.New(dispatch.Options{
		AllowThreading: cfg.Service.AllowThreading,
		Simulate:       cfg.Service.Simulate,
		StopWait:       time.Duration(cfg.Service.StopWaitMS) * time.Millisecond,
		StartupDir:     cfg.Paths.StartupDir,
	}, gw.store, gw.registry,
		dispatch.WithEvents(gw.hub),
		dispatch.WithRecorder(gw.history),
	)

	if cfg.API.Enabled {
		tokens := make([]auth.TokenConfig, 0, len(cfg.API.Auth.Tokens))
		for _, t := range cfg.API.Auth.Tokens {
			tokens = append(tokens, auth.TokenConfig{
				Token:  t.Token,
				Scopes: t.Scopes,
			})
		}
		apiConfig := api.Config{
			Listen: cfg.API.Listen,
			APIKey: cfg.API.Auth.APIKey,
			Tokens: tokens,
		}
		gw.api = api.New(apiConfig, gw.manager, gw.registry, gw.store, gw.history, gw.hub, log.WithComponent("api"))
	}

	if cfg.MQTT.Enabled {
		gw.mqtt, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			// events stay available over SSE
			logger.Warn("mqtt forwarder disabled", "error", err)
			gw.mqtt, err = nil, nil
		}
	}
	return gw, nil
}

func openTelemetry(ctx context.Context, cfg config.InfluxDBConfig, logger *slog.Logger) telemetry.Sink {
	if !cfg.Enabled {
		return telemetry.NopSink{}
	}
	sink, err := telemetry.Connect(ctx, telemetry.Options{
		Enabled:       true,
		URL:           cfg.URL,
		Token:         cfg.Token,
		Org:           cfg.Org,
		Bucket:        cfg.Bucket,
		BatchSize:     cfg.BatchSize,
		FlushInterval: time.Duration(cfg.FlushIntervalMS) * time.Millisecond,
	})
	if err != nil {
		logger.Warn("influxdb telemetry disabled", "url", cfg.URL, "error", err)
		return telemetry.NopSink{}
	}
	logger.Info("influxdb telemetry enabled", "url", cfg.URL, "bucket", cfg.Bucket)
	return sink
}

// run starts the manager and the outer surfaces, then blocks until ctx is
// done or a surface fails. The API stops first, then the manager drains.
func (gw *gateway) run(ctx context.Context) error {
	if err := gw.manager.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if gw.api != nil {
		g.Go(func() error {
			if err := gw.api.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("api: %w", err)
			}
			return nil
		})
		gw.logger.Info("API server enabled", "listen", gw.cfg.API.Listen)
	}
	if gw.mqtt != nil {
		fwd := mqtt.NewForwarder(gw.mqtt, gw.mqtt.Topics(), gw.mqtt.QoS())
		g.Go(func() error {
			fwd.Run(gctx, gw.hub)
			return nil
		})
		gw.logger.Info("MQTT forwarder enabled", "prefix", gw.cfg.MQTT.TopicPrefix)
	}

	<-gctx.Done()
	if ctx.Err() != nil {
		gw.logger.Info("received shutdown signal")
	}
	err := g.Wait()
	gw.manager.Stop()
	return err
}

// close releases resources in reverse order. Safe on a partly built gateway.
func (gw *gateway) close() {
	if gw.mqtt != nil {
		if err := gw.mqtt.Close(); err != nil {
			gw.logger.Warn("mqtt close failed", "error", err)
		}
	}
	if gw.sink != nil {
		if err := gw.sink.Close(); err != nil {
			gw.logger.Warn("telemetry close failed", "error", err)
		}
	}
	if gw.driver != nil {
		if err := gw.driver.Close(); err != nil {
			gw.logger.Warn("hardware close failed", "error", err)
		}
	}
	if gw.db != nil {
		_ = gw.db.Close()
	}
	if gw.pidLock != nil {
		_ = gw.pidLock.Release()
	}
}

// levelLogger adapts a slog.Logger to the plugin discovery callback.
func levelLogger(logger *slog.Logger) func(level, msg string, args ...any) {
	return func(level, msg string, args ...any) {
		switch level {
		case "debug":
			logger.Debug(msg, args...)
		case "info":
			logger.Info(msg, args...)
		case "warn":
			logger.Warn(msg, args...)
		case "error":
			logger.Error(msg, args...)
		}
	}
}
