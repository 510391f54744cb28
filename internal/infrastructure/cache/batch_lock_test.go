package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAtoi(t *testing.T, s string) int {
	t.Helper()
	n, err := strconv.Atoi(s)
	require.NoError(t, err)
	return n
}

func exerciseBatchLocker(t *testing.T, locker BatchLocker) {
	ctx := context.Background()

	release, err := locker.TryLock(ctx, "scan", time.Minute)
	require.NoError(t, err)

	_, err = locker.TryLock(ctx, "scan", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := locker.TryLock(ctx, "other", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "releasing twice is not an error")

	again, err := locker.TryLock(ctx, "scan", time.Minute)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestLocalBatchLocker(t *testing.T) {
	exerciseBatchLocker(t, NewLocalBatchLocker())
}

func TestRedisBatchLocker(t *testing.T) {
	_, client := newMiniredisClient(t)
	exerciseBatchLocker(t, NewRedisBatchLocker(client, "test:"))
}

func TestRedisBatchLocker_ExpiresAfterTTL(t *testing.T) {
	mr, client := newMiniredisClient(t)
	locker := NewRedisBatchLocker(client, "")
	ctx := context.Background()

	_, err := locker.TryLock(ctx, "scan", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("ledgersync:lock:scan"))

	mr.FastForward(2 * time.Minute)

	release, err := locker.TryLock(ctx, "scan", time.Minute)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRedisBatchLocker_SharedAcrossInstances(t *testing.T) {
	_, client := newMiniredisClient(t)
	first := NewRedisBatchLocker(client, "test:")
	second := NewRedisBatchLocker(client, "test:")
	ctx := context.Background()

	release, err := first.TryLock(ctx, "scan", time.Minute)
	require.NoError(t, err)
	defer release(ctx)

	_, err = second.TryLock(ctx, "scan", time.Minute)
	assert.ErrorIs(t, err, ErrLockHeld)
}
