package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/ledgersync/internal/infrastructure/cache"
)

// ScanLockKey is the batch lock shared by every syncer instance
const ScanLockKey = "scan"

// PendingOrderSource lists orders that still need to be synchronized
type PendingOrderSource interface {
	PendingOrders(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// ---------------------------------------------------------------------------
// TriggerConfig
// ---------------------------------------------------------------------------

// TriggerConfig holds configuration for the ledger sync trigger
type TriggerConfig struct {
	// PollInterval is how often to scan for unsynchronized orders
	PollInterval time.Duration
	// BatchSize is the maximum number of orders queued per scan
	BatchSize int
	// LockTTL bounds how long one scan may hold the batch lock
	LockTTL time.Duration
}

// DefaultTriggerConfig returns default configuration
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{
		PollInterval: 5 * time.Minute,
		BatchSize:    50,
		LockTTL:      10 * time.Minute,
	}
}

// Validate validates the configuration
func (c *TriggerConfig) Validate() error {
	if c.PollInterval <= 0 || c.BatchSize <= 0 || c.LockTTL <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ScanResult summarizes one scan
type ScanResult struct {
	Listed  int `json:"listed"`
	Queued  int `json:"queued"`
	Skipped int `json:"skipped"`
}

// ---------------------------------------------------------------------------
// LedgerSyncTrigger
// ---------------------------------------------------------------------------

// LedgerSyncTrigger periodically queues unsynchronized paid orders.
// A scan holds the batch lock until the worker has drained, so two instances
// never synchronize the same order at the same time.
type LedgerSyncTrigger struct {
	config TriggerConfig
	source PendingOrderSource
	worker *LedgerSyncWorker
	locker cache.BatchLocker
	logger *zap.Logger

	kick      chan struct{}
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastScan  time.Time
	lastRes   ScanResult
}

// NewLedgerSyncTrigger creates a new trigger
func NewLedgerSyncTrigger(
	config TriggerConfig,
	source PendingOrderSource,
	worker *LedgerSyncWorker,
	locker cache.BatchLocker,
	logger *zap.Logger,
) (*LedgerSyncTrigger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if locker == nil {
		locker = cache.NewLocalBatchLocker()
	}
	return &LedgerSyncTrigger{
		config: config,
		source: source,
		worker: worker,
		locker: locker,
		logger: logger.Named("ledger_sync_trigger"),
		kick:   make(chan struct{}, 1),
	}, nil
}

// Start starts the trigger loop
func (t *LedgerSyncTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Ledger sync trigger started",
		zap.Duration("poll_interval", t.config.PollInterval),
		zap.Int("batch_size", t.config.BatchSize),
	)
	return nil
}

// Stop stops the trigger loop
func (t *LedgerSyncTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	cancel := t.cancel
	t.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Ledger sync trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TriggerNow asks the running loop to scan immediately.
// It returns false when a scan request is already pending.
func (t *LedgerSyncTrigger) TriggerNow() bool {
	select {
	case t.kick <- struct{}{}:
		return true
	default:
		return false
	}
}

// LastScan returns the time and result of the last completed scan
func (t *LedgerSyncTrigger) LastScan() (time.Time, ScanResult) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastScan, t.lastRes
}

// runLoop scans on start, on every tick and on every TriggerNow
func (t *LedgerSyncTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.PollInterval)
	defer ticker.Stop()

	t.scanAndLog(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.scanAndLog(ctx)
		case <-t.kick:
			t.scanAndLog(ctx)
		}
	}
}

func (t *LedgerSyncTrigger) scanAndLog(ctx context.Context) {
	if _, err := t.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, ErrScanInProgress) {
			t.logger.Debug("Scan skipped, batch lock held elsewhere")
			return
		}
		t.logger.Error("Ledger sync scan failed", zap.Error(err))
	}
}

// Scan obtains the batch lock, queues up to BatchSize unsynchronized orders
// and waits for the worker to drain before releasing the lock.
func (t *LedgerSyncTrigger) Scan(ctx context.Context) (ScanResult, error) {
	var result ScanResult

	release, err := t.locker.TryLock(ctx, ScanLockKey, t.config.LockTTL)
	if errors.Is(err, cache.ErrLockHeld) {
		return result, ErrScanInProgress
	}
	if err != nil {
		return result, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			t.logger.Warn("Failed to release batch lock", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, t.config.LockTTL)
	defer cancel()

	orderIDs, err := t.source.PendingOrders(ctx, t.config.BatchSize)
	if err != nil {
		return result, err
	}
	result.Listed = len(orderIDs)

submit:
	for i, orderID := range orderIDs {
		_, err := t.worker.Submit(orderID, JobSourceScan)
		switch {
		case err == nil:
			result.Queued++
		case errors.Is(err, ErrAlreadyQueued):
			result.Skipped++
		case errors.Is(err, ErrQueueFull):
			deferred := len(orderIDs) - i
			result.Skipped += deferred
			t.logger.Warn("Ledger sync queue full, deferring the rest of the batch",
				zap.Int("queued", result.Queued),
				zap.Int("deferred", deferred),
			)
			break submit
		default:
			return result, err
		}
	}

	if result.Listed > 0 {
		t.logger.Info("Ledger sync scan queued orders",
			zap.Int("listed", result.Listed),
			zap.Int("queued", result.Queued),
			zap.Int("skipped", result.Skipped),
		)
	}

	t.mu.Lock()
	t.lastScan = time.Now()
	t.lastRes = result
	t.mu.Unlock()

	if err := t.worker.Drain(ctx); err != nil {
		return result, err
	}
	return result, nil
}
