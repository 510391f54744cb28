package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/storefront/ledgersync/internal/domain/ledger"
	"github.com/storefront/ledgersync/internal/infrastructure/logger"
)

// OrderSyncer synchronizes a single order
type OrderSyncer interface {
	SyncOrder(ctx context.Context, orderID uuid.UUID) (*ledger.SyncOutcome, error)
}

// ---------------------------------------------------------------------------
// WorkerConfig
// ---------------------------------------------------------------------------

// WorkerConfig holds configuration for the ledger sync worker
type WorkerConfig struct {
	// Workers is the number of orders synchronized concurrently
	Workers int
	// QueueSize bounds the number of queued orders
	QueueSize int
	// HistorySize is how many finished jobs are kept for monitoring
	HistorySize int
	// OrdersPerMinute limits the rate of orders sent to the ledger, 0 means unlimited
	OrdersPerMinute int
	// Burst is the token bucket size of the limiter
	Burst int
	// OrderTimeout is the maximum time a single order may take
	OrderTimeout time.Duration
}

// DefaultWorkerConfig returns default configuration
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Workers:         1,
		QueueSize:       500,
		HistorySize:     200,
		OrdersPerMinute: 30,
		Burst:           1,
		OrderTimeout:    2 * time.Minute,
	}
}

// Validate validates the configuration
func (c *WorkerConfig) Validate() error {
	if c.Workers <= 0 || c.QueueSize <= 0 || c.HistorySize < 0 {
		return ErrInvalidConfig
	}
	if c.OrdersPerMinute < 0 || c.Burst < 0 {
		return ErrInvalidConfig
	}
	if c.OrderTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

func (c *WorkerConfig) limiter() *rate.Limiter {
	if c.OrdersPerMinute == 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := c.Burst
	if burst == 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(c.OrdersPerMinute)/60), burst)
}

// ---------------------------------------------------------------------------
// LedgerSyncWorker
// ---------------------------------------------------------------------------

// LedgerSyncWorker drains a bounded queue of orders through an OrderSyncer.
// An order is never queued twice while it is pending or running.
type LedgerSyncWorker struct {
	config  WorkerConfig
	syncer  OrderSyncer
	limiter *rate.Limiter
	logger  *zap.Logger

	jobs      chan *LedgerSyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	stopping  bool
	queued    map[uuid.UUID]struct{}
	idle      chan struct{}

	historyMu sync.RWMutex
	history   []LedgerSyncJob
}

// NewLedgerSyncWorker creates a new worker
func NewLedgerSyncWorker(config WorkerConfig, syncer OrderSyncer, logger *zap.Logger) (*LedgerSyncWorker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	idle := make(chan struct{})
	close(idle)
	return &LedgerSyncWorker{
		config:  config,
		syncer:  syncer,
		limiter: config.limiter(),
		logger:  logger.Named("ledger_sync_worker"),
		queued:  make(map[uuid.UUID]struct{}),
		idle:    idle,
		history: make([]LedgerSyncJob, 0, config.HistorySize),
	}, nil
}

// Start starts the worker pool
func (w *LedgerSyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.isRunning {
		return nil
	}
	w.isRunning = true
	w.stopping = false
	w.jobs = make(chan *LedgerSyncJob, w.config.QueueSize)

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	for i := 0; i < w.config.Workers; i++ {
		w.wg.Add(1)
		go w.worker(ctx, i, w.jobs)
	}

	w.logger.Info("Ledger sync worker started",
		zap.Int("workers", w.config.Workers),
		zap.Int("queue_size", w.config.QueueSize),
		zap.Int("orders_per_minute", w.config.OrdersPerMinute),
		zap.Duration("order_timeout", w.config.OrderTimeout),
	)
	return nil
}

// Stop stops accepting jobs and lets running orders finish. Queued jobs that
// have not started are cancelled. If ctx expires first, running orders are
// cancelled too.
func (w *LedgerSyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.stopping = true
	close(w.jobs)
	cancel := w.cancel
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		cancel()
		w.logger.Info("Ledger sync worker stopped gracefully")
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		w.logger.Warn("Ledger sync worker stop timed out, running orders cancelled")
		return ctx.Err()
	}
}

// Submit queues an order for synchronization
func (w *LedgerSyncWorker) Submit(orderID uuid.UUID, source JobSource) (LedgerSyncJob, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.isRunning {
		return LedgerSyncJob{}, ErrWorkerNotRunning
	}
	if _, ok := w.queued[orderID]; ok {
		return LedgerSyncJob{}, ErrAlreadyQueued
	}

	job := NewLedgerSyncJob(orderID, source)
	// Once sent, the job belongs to the worker goroutine
	queued := job.Snapshot()
	select {
	case w.jobs <- job:
	default:
		return LedgerSyncJob{}, ErrQueueFull
	}

	if len(w.queued) == 0 {
		w.idle = make(chan struct{})
	}
	w.queued[orderID] = struct{}{}

	w.logger.Debug("Ledger sync job submitted",
		zap.String("job_id", queued.ID.String()),
		zap.String("order_id", orderID.String()),
		zap.String("source", string(source)),
	)
	return queued, nil
}

// Drain blocks until no order is queued or running
func (w *LedgerSyncWorker) Drain(ctx context.Context) error {
	w.mu.Lock()
	idle := w.idle
	w.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending returns the number of queued or running orders
func (w *LedgerSyncWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queued)
}

// IsRunning reports whether the worker accepts jobs
func (w *LedgerSyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.isRunning
}

// History returns recently finished jobs, newest first
func (w *LedgerSyncWorker) History(limit int) []LedgerSyncJob {
	w.historyMu.RLock()
	defer w.historyMu.RUnlock()

	if limit <= 0 || limit > len(w.history) {
		limit = len(w.history)
	}
	result := make([]LedgerSyncJob, limit)
	copy(result, w.history[:limit])
	return result
}

// HistoryByOrder returns finished jobs of one order, newest first
func (w *LedgerSyncWorker) HistoryByOrder(orderID uuid.UUID, limit int) []LedgerSyncJob {
	w.historyMu.RLock()
	defer w.historyMu.RUnlock()

	result := make([]LedgerSyncJob, 0)
	for _, job := range w.history {
		if job.OrderID != orderID {
			continue
		}
		result = append(result, job)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result
}

// worker processes jobs from the queue until it is closed
func (w *LedgerSyncWorker) worker(ctx context.Context, workerID int, jobs <-chan *LedgerSyncJob) {
	defer w.wg.Done()

	w.logger.Debug("Ledger sync worker goroutine started", zap.Int("worker_id", workerID))

	for job := range jobs {
		if w.isStopping() || ctx.Err() != nil {
			job.Cancel("worker stopped")
			w.finish(job)
			continue
		}
		w.processJob(ctx, job, workerID)
	}

	w.logger.Debug("Ledger sync job channel closed", zap.Int("worker_id", workerID))
}

// processJob synchronizes a single order
func (w *LedgerSyncWorker) processJob(ctx context.Context, job *LedgerSyncJob, workerID int) {
	defer w.finish(job)

	ctx, log := logger.WithJobID(ctx, w.logger, job.ID.String())
	ctx, log = logger.WithOrderID(ctx, log, job.OrderID.String())

	if err := w.limiter.Wait(ctx); err != nil {
		job.Cancel("rate limiter: " + err.Error())
		log.Debug("Ledger sync job cancelled while waiting for rate limiter", zap.Error(err))
		return
	}

	job.Start()
	log.Debug("Processing ledger sync job",
		zap.Int("worker_id", workerID),
		zap.String("source", string(job.Source)),
	)

	orderCtx, cancel := context.WithTimeout(ctx, w.config.OrderTimeout)
	defer cancel()

	outcome, err := w.syncer.SyncOrder(orderCtx, job.OrderID)
	if errors.Is(err, context.DeadlineExceeded) && orderCtx.Err() != nil {
		log.Warn("Ledger sync job timed out", zap.Duration("timeout", w.config.OrderTimeout))
	}
	job.Complete(outcome, err)

	log.Info("Ledger sync job completed",
		zap.Int("worker_id", workerID),
		zap.String("status", string(job.Status)),
		zap.String("state", job.SyncState.String()),
		zap.String("remote_id", job.RemoteOrderID),
	)
}

// finish records a job in history and releases its order
func (w *LedgerSyncWorker) finish(job *LedgerSyncJob) {
	w.addToHistory(job.Snapshot())

	w.mu.Lock()
	delete(w.queued, job.OrderID)
	if len(w.queued) == 0 {
		close(w.idle)
	}
	w.mu.Unlock()
}

func (w *LedgerSyncWorker) isStopping() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stopping
}

// addToHistory adds a finished job to history
func (w *LedgerSyncWorker) addToHistory(job LedgerSyncJob) {
	if w.config.HistorySize == 0 {
		return
	}

	w.historyMu.Lock()
	defer w.historyMu.Unlock()

	w.history = append([]LedgerSyncJob{job}, w.history...)
	if len(w.history) > w.config.HistorySize {
		w.history = w.history[:w.config.HistorySize]
	}
}
