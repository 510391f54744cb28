package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/storefront/ledgersync/internal/application/ledgersync"
	"github.com/storefront/ledgersync/internal/domain/ledger"
	"github.com/storefront/ledgersync/internal/infrastructure/cache"
	"github.com/storefront/ledgersync/internal/infrastructure/config"
	"github.com/storefront/ledgersync/internal/infrastructure/ledgerapi"
	"github.com/storefront/ledgersync/internal/infrastructure/persistence"
	"github.com/storefront/ledgersync/internal/infrastructure/scheduler"
	"github.com/storefront/ledgersync/internal/infrastructure/telemetry"
	"github.com/storefront/ledgersync/internal/interfaces/http/handler"
	"github.com/storefront/ledgersync/internal/interfaces/http/router"
)

// truncatedSQLLength bounds logged statements unless full SQL logging is enabled
const truncatedSQLLength = 1024

// app holds the wired components of one syncer process
type app struct {
	cfg         *config.Config
	log         *zap.Logger
	db          *persistence.Database
	redis       *redis.Client
	submissions ledger.SubmissionStore
	worker      *scheduler.LedgerSyncWorker
	trigger     *scheduler.LedgerSyncTrigger
	engine      *gin.Engine
	server      *http.Server
}

func newApp(ctx context.Context, cfg *config.Config, log *zap.Logger, meters *telemetry.MeterProvider) (*app, error) {
	a := &app{cfg: cfg, log: log}

	metrics, err := telemetry.NewSyncMetrics(meters.Meter("ledgersync"), log)
	if err != nil {
		return nil, fmt.Errorf("sync metrics: %w", err)
	}

	// Database
	var tracing *telemetry.DBTracingPlugin
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		tracing = telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBSystem:        "postgresql",
		}, log)
	}
	maxSQL := 0
	if !cfg.Telemetry.DBLogFullSQL {
		maxSQL = truncatedSQLLength
	}
	a.db, err = persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:        log,
		LogLevel:      cfg.Log.Level,
		SlowThreshold: cfg.Telemetry.DBSlowQueryThresh,
		MaxSQLLength:  maxSQL,
		Tracing:       tracing,
	})
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	log.Info("Database connected",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)
	orders := persistence.NewGormOrderRepository(a.db.DB)
	records := persistence.NewGormSyncRecordRepository(a.db.DB)

	rules, err := cfg.Catalog.Rules()
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("catalog rules: %w", err)
	}

	client, err := ledgerapi.NewClient(&ledgerapi.Config{
		BaseURL:           cfg.Ledger.BaseURL,
		APIKey:            cfg.Ledger.APIKey,
		ChannelID:         cfg.Ledger.ChannelID,
		TimeoutSeconds:    cfg.Ledger.TimeoutSeconds,
		MaxAttempts:       cfg.Ledger.MaxAttempts,
		TokenLifetime:     cfg.Ledger.TokenLifetime,
		TokenSafetyMargin: cfg.Ledger.TokenSafetyMargin,
		PageLimit:         cfg.Ledger.PageLimit,
	}, log, ledgerapi.WithRefreshObserver(metrics.RecordTokenRefresh))
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("ledger client: %w", err)
	}

	// Submission memory and the batch lock live in Redis when it is configured
	var locker cache.BatchLocker
	if cfg.Redis.Addr() != "" {
		a.redis, err = cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			a.closeStores()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.submissions = cache.NewRedisSubmissionStore(a.redis, cfg.Redis.KeyPrefix, cache.DefaultSubmissionTTL)
		locker = cache.NewRedisBatchLocker(a.redis, cfg.Redis.KeyPrefix)
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	} else {
		a.submissions = cache.NewInMemorySubmissionStore(cache.DefaultSubmissionTTL)
		locker = cache.NewLocalBatchLocker()
		log.Info("Redis not configured, submissions and scan lock are kept in process")
	}

	service := ledgersync.NewSyncService(orders, client, records, a.submissions, rules, ledgersync.Options{
		Customer: ledgersync.CustomerDefaults{
			NationalID:     cfg.Catalog.NationalID,
			Country:        cfg.Catalog.Country,
			Classification: cfg.Catalog.CustomerClassification,
		},
		Product: ledgersync.ProductDefaults{
			Type:           cfg.Catalog.ProductType,
			Classification: cfg.Catalog.ProductClassification,
		},
		Metrics: metrics,
	}, log)

	// Worker and trigger
	a.worker, err = scheduler.NewLedgerSyncWorker(scheduler.WorkerConfig{
		Workers:         cfg.Worker.Workers,
		QueueSize:       cfg.Worker.QueueSize,
		HistorySize:     cfg.Worker.HistorySize,
		OrdersPerMinute: cfg.Worker.OrdersPerMinute,
		Burst:           cfg.Worker.Burst,
		OrderTimeout:    cfg.Worker.OrderTimeout,
	}, service, log)
	if err != nil {
		a.closeStores()
		return nil, fmt.Errorf("ledger sync worker: %w", err)
	}
	// Running orders outlive the signal; Stop decides when they are cancelled
	if err := a.worker.Start(context.WithoutCancel(ctx)); err != nil {
		a.closeStores()
		return nil, fmt.Errorf("ledger sync worker: %w", err)
	}
	a.trigger, err = scheduler.NewLedgerSyncTrigger(scheduler.TriggerConfig{
		PollInterval: cfg.Worker.PollInterval,
		BatchSize:    cfg.Worker.BatchSize,
		LockTTL:      cfg.Worker.LockTTL,
	}, service, a.worker, locker, log)
	if err != nil {
		a.shutdown(context.Background())
		return nil, fmt.Errorf("ledger sync trigger: %w", err)
	}

	// Admin HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	a.engine = router.NewEngine(router.EngineOptions{
		ServiceName: cfg.Telemetry.ServiceName,
		Logger:      log,
		Tracing:     cfg.Telemetry.Enabled,
	})
	health := handler.NewHealthHandler(a.db, a.worker, cfg.App.Name, cfg.App.Version)
	a.engine.GET("/healthz", health.Health)

	// A trigger that is not polling would accept kicks nobody reads
	var scans handler.ScanTrigger
	if cfg.Worker.Enabled {
		scans = a.trigger
	}
	router.NewRouter(a.engine, router.WithAPIVersion("v1")).
		Register(handler.NewLedgerSyncHandler(service, records, a.worker, scans).Routes()).
		Setup()

	return a, nil
}

// shutdown stops intake first, then lets running orders finish
func (a *app) shutdown(ctx context.Context) {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Warn("Admin server forced to shutdown", zap.Error(err))
		}
	}
	if a.trigger != nil {
		if err := a.trigger.Stop(ctx); err != nil {
			a.log.Warn("Ledger sync trigger stop failed", zap.Error(err))
		}
	}
	if a.worker != nil {
		if err := a.worker.Stop(ctx); err != nil {
			a.log.Warn("Ledger sync worker stop failed", zap.Error(err))
		}
	}
	a.closeStores()
}

func (a *app) closeStores() {
	if closer, ok := a.submissions.(io.Closer); ok {
		_ = closer.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Redis close failed", zap.Error(err))
		}
		a.redis = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Database close failed", zap.Error(err))
		}
		a.db = nil
	}
}
