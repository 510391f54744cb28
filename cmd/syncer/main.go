package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/storefront/ledgersync/internal/infrastructure/config"
	"github.com/storefront/ledgersync/internal/infrastructure/logger"
	"github.com/storefront/ledgersync/internal/infrastructure/scheduler"
	"github.com/storefront/ledgersync/internal/infrastructure/telemetry"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (default: ./config.toml or /etc/ledgersync/config.toml)")
	once := flag.Bool("once", false, "Run a single scan, wait for it to drain and exit")
	flag.Parse()

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logCfg := logger.ForEnvironment(cfg.App.Env, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	logCfg.Service = cfg.App.Name
	logCfg.Version = cfg.App.Version
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting ledger sync",
		zap.String("env", cfg.App.Env),
		zap.Bool("once", *once),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    cfg.App.Version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	app, err := newApp(ctx, cfg, log, meterProvider)
	if err != nil {
		log.Fatal("Failed to initialize ledger sync", zap.Error(err))
	}

	exitCode := 0
	if *once {
		if err := app.runOnce(ctx); err != nil {
			log.Error("Scan failed", zap.Error(err))
			exitCode = 1
		}
	} else {
		app.serve(ctx)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	app.shutdown(shutdownCtx)
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
	cancel()

	log.Info("Ledger sync exited")
	if exitCode != 0 {
		_ = log.Sync()
		os.Exit(exitCode)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// serve runs the periodic trigger and the admin server until ctx is cancelled
func (a *app) serve(ctx context.Context) {
	if a.cfg.Worker.Enabled {
		if err := a.trigger.Start(ctx); err != nil {
			a.log.Fatal("Failed to start ledger sync trigger", zap.Error(err))
		}
	} else {
		a.log.Info("Periodic scanning disabled, only manual synchronization is served")
	}

	if a.cfg.HTTP.Enabled {
		a.server = &http.Server{
			Addr:           ":" + a.cfg.HTTP.Port,
			Handler:        a.engine,
			ReadTimeout:    a.cfg.HTTP.ReadTimeout,
			WriteTimeout:   a.cfg.HTTP.WriteTimeout,
			IdleTimeout:    a.cfg.HTTP.IdleTimeout,
			MaxHeaderBytes: a.cfg.HTTP.MaxHeaderBytes,
		}
		go func() {
			a.log.Info("Admin server listening", zap.String("addr", a.server.Addr))
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Fatal("Failed to start admin server", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	a.log.Info("Shutting down ledger sync...")
}

// runOnce performs a single scan. The scan returns after the queued orders drained.
func (a *app) runOnce(ctx context.Context) error {
	started := time.Now()
	result, err := a.trigger.Scan(ctx)
	if err != nil {
		return err
	}

	failed := 0
	if result.Queued > 0 {
		for _, job := range a.worker.History(result.Queued) {
			if job.Status == scheduler.JobStatusFailed {
				failed++
			}
		}
	}
	a.log.Info("Scan finished",
		zap.Int("listed", result.Listed),
		zap.Int("queued", result.Queued),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(started)),
	)
	return nil
}
