package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/ledgersync/internal/infrastructure/cache"
)

// fakePendingSource returns a fixed list of order ids
type fakePendingSource struct {
	mu     sync.Mutex
	ids    []uuid.UUID
	err    error
	limits []int
	calls  atomic.Int32
}

func (f *fakePendingSource) PendingOrders(_ context.Context, limit int) ([]uuid.UUID, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.ids) > limit {
		return f.ids[:limit], nil
	}
	return f.ids, nil
}

func testTriggerConfig() TriggerConfig {
	return TriggerConfig{PollInterval: time.Hour, BatchSize: 10, LockTTL: 5 * time.Second}
}

func newTestTrigger(t *testing.T, source PendingOrderSource, worker *LedgerSyncWorker, locker cache.BatchLocker) *LedgerSyncTrigger {
	t.Helper()
	trigger, err := NewLedgerSyncTrigger(testTriggerConfig(), source, worker, locker, zap.NewNop())
	require.NoError(t, err)
	return trigger
}

func TestTriggerConfig_Validate(t *testing.T) {
	cfg := DefaultTriggerConfig()
	require.NoError(t, cfg.Validate())

	for _, bad := range []TriggerConfig{
		{BatchSize: 1, LockTTL: time.Minute},
		{PollInterval: time.Minute, LockTTL: time.Minute},
		{PollInterval: time.Minute, BatchSize: 1},
	} {
		assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
	}
}

func TestLedgerSyncTrigger_ScanQueuesAndDrains(t *testing.T) {
	syncer := &fakeSyncer{}
	worker := startWorker(t, testWorkerConfig(), syncer)
	source := &fakePendingSource{ids: []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}}
	trigger := newTestTrigger(t, source, worker, nil)

	result, err := trigger.Scan(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ScanResult{Listed: 3, Queued: 3}, result)
	assert.ElementsMatch(t, source.ids, syncer.Calls())
	assert.Equal(t, []int{10}, source.limits)
	assert.Equal(t, 0, worker.Pending())

	at, last := trigger.LastScan()
	assert.False(t, at.IsZero())
	assert.Equal(t, result, last)
}

func TestLedgerSyncTrigger_ScanSkipsQueuedOrders(t *testing.T) {
	syncer := &fakeSyncer{gate: make(chan struct{}), started: make(chan uuid.UUID, 4)}
	worker := startWorker(t, testWorkerConfig(), syncer)
	busy, fresh := uuid.New(), uuid.New()
	source := &fakePendingSource{ids: []uuid.UUID{busy, fresh}}
	trigger := newTestTrigger(t, source, worker, nil)

	_, err := worker.Submit(busy, JobSourceManual)
	require.NoError(t, err)
	<-syncer.started

	type scanReturn struct {
		result ScanResult
		err    error
	}
	done := make(chan scanReturn, 1)
	go func() {
		result, err := trigger.Scan(context.Background())
		done <- scanReturn{result, err}
	}()

	assert.Eventually(t, func() bool { return worker.Pending() == 2 }, time.Second, 5*time.Millisecond)
	close(syncer.gate)

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, ScanResult{Listed: 2, Queued: 1, Skipped: 1}, got.result)
}

func TestLedgerSyncTrigger_ScanDefersWhenQueueFull(t *testing.T) {
	cfg := testWorkerConfig()
	cfg.QueueSize = 1
	syncer := &fakeSyncer{gate: make(chan struct{}), started: make(chan uuid.UUID, 4)}
	worker := startWorker(t, cfg, syncer)
	_, err := worker.Submit(uuid.New(), JobSourceManual)
	require.NoError(t, err)
	<-syncer.started

	source := &fakePendingSource{ids: []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}}
	trigger := newTestTrigger(t, source, worker, nil)

	done := make(chan ScanResult, 1)
	go func() {
		result, _ := trigger.Scan(context.Background())
		done <- result
	}()
	assert.Eventually(t, func() bool { return worker.Pending() == 2 }, time.Second, 5*time.Millisecond)
	close(syncer.gate)

	assert.Equal(t, ScanResult{Listed: 3, Queued: 1, Skipped: 2}, <-done)
}

func TestLedgerSyncTrigger_ScanLockHeld(t *testing.T) {
	locker := cache.NewLocalBatchLocker()
	release, err := locker.TryLock(context.Background(), ScanLockKey, time.Minute)
	require.NoError(t, err)
	defer release(context.Background())

	source := &fakePendingSource{ids: []uuid.UUID{uuid.New()}}
	trigger := newTestTrigger(t, source, startWorker(t, testWorkerConfig(), &fakeSyncer{}), locker)

	_, err = trigger.Scan(context.Background())

	assert.ErrorIs(t, err, ErrScanInProgress)
	assert.Equal(t, int32(0), source.calls.Load())
}

func TestLedgerSyncTrigger_ScanSharesRedisLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	other := cache.NewRedisBatchLocker(client, "test:")
	release, err := other.TryLock(context.Background(), ScanLockKey, time.Minute)
	require.NoError(t, err)

	source := &fakePendingSource{ids: []uuid.UUID{uuid.New()}}
	worker := startWorker(t, testWorkerConfig(), &fakeSyncer{})
	trigger := newTestTrigger(t, source, worker, cache.NewRedisBatchLocker(client, "test:"))

	_, err = trigger.Scan(context.Background())
	assert.ErrorIs(t, err, ErrScanInProgress)

	require.NoError(t, release(context.Background()))
	result, err := trigger.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Queued)
	assert.False(t, mr.Exists("test:lock:"+ScanLockKey), "lock is released after the scan")
}

func TestLedgerSyncTrigger_ScanSourceError(t *testing.T) {
	source := &fakePendingSource{err: errors.New("db down")}
	trigger := newTestTrigger(t, source, startWorker(t, testWorkerConfig(), &fakeSyncer{}), nil)

	_, err := trigger.Scan(context.Background())

	assert.EqualError(t, err, "db down")

	_, err = trigger.Scan(context.Background())
	assert.EqualError(t, err, "db down", "lock was released after the failed scan")
}

func TestLedgerSyncTrigger_StartScansAndTriggerNow(t *testing.T) {
	syncer := &fakeSyncer{}
	worker := startWorker(t, testWorkerConfig(), syncer)
	source := &fakePendingSource{}
	trigger := newTestTrigger(t, source, worker, nil)

	require.NoError(t, trigger.Start(context.Background()))
	require.NoError(t, trigger.Start(context.Background()))
	assert.Eventually(t, func() bool { return source.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	assert.True(t, trigger.TriggerNow())
	assert.Eventually(t, func() bool { return source.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, trigger.Stop(context.Background()))
	require.NoError(t, trigger.Stop(context.Background()))
}
