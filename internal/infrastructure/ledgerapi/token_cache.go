package ledgerapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

const refreshKey = "access_token"

// TokenFetcher requests a fresh credential from the ledger's token authority.
// A zero lifetime means the authority did not report one.
type TokenFetcher interface {
	FetchToken(ctx context.Context) (token string, lifetime time.Duration, err error)
}

// TokenProvider hands out bearer credentials
type TokenProvider interface {
	Get(ctx context.Context, forceRefresh bool) (string, error)
}

// TokenCacheOption configures a TokenCache
type TokenCacheOption func(*TokenCache)

// WithClock overrides the time source
func WithClock(now func() time.Time) TokenCacheOption {
	return func(c *TokenCache) {
		c.now = now
	}
}

// WithRefreshObserver registers a callback invoked after every refresh attempt
func WithRefreshObserver(fn func(ctx context.Context, success bool)) TokenCacheOption {
	return func(c *TokenCache) {
		c.onRefresh = fn
	}
}

// TokenCache owns a single cached bearer credential with expiry tracking.
// Concurrent refreshes are collapsed into one request.
type TokenCache struct {
	fetcher         TokenFetcher
	logger          *zap.Logger
	defaultLifetime time.Duration
	safetyMargin    time.Duration
	now             func() time.Time
	onRefresh       func(ctx context.Context, success bool)

	mu     sync.RWMutex
	record ledger.TokenRecord
	group  singleflight.Group
}

// NewTokenCache creates a new TokenCache
func NewTokenCache(fetcher TokenFetcher, defaultLifetime, safetyMargin time.Duration, logger *zap.Logger, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		fetcher:         fetcher,
		logger:          logger.Named("token_cache"),
		defaultLifetime: defaultLifetime,
		safetyMargin:    safetyMargin,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ TokenProvider = (*TokenCache)(nil)

// Get returns the cached credential while it is valid, otherwise refreshes it.
// forceRefresh bypasses the cache.
func (c *TokenCache) Get(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		if token, ok := c.cached(); ok {
			return token, nil
		}
	}

	// The refresh outlives the caller that started it so other waiters are not
	// failed by one cancellation.
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Snapshot returns the currently cached record
func (c *TokenCache) Snapshot() ledger.TokenRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.record
}

// Invalidate drops the cached credential
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.record = ledger.TokenRecord{}
	c.mu.Unlock()
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.record.ValidAt(c.now()) {
		return c.record.AccessToken, true
	}
	return "", false
}

func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	token, lifetime, err := c.fetcher.FetchToken(ctx)
	if c.onRefresh != nil {
		c.onRefresh(ctx, err == nil)
	}
	if err != nil {
		c.mu.RLock()
		stale := c.record
		c.mu.RUnlock()

		if stale.AccessToken != "" {
			c.logger.Warn("Token refresh failed, falling back to previous token",
				zap.Time("expires_at", stale.ExpiresAt),
				zap.Error(err),
			)
			return stale.AccessToken, nil
		}
		return "", fmt.Errorf("%w: %w", ledger.ErrTokenUnavailable, err)
	}

	if lifetime <= 0 {
		lifetime = c.defaultLifetime
	}
	record := ledger.TokenRecord{
		AccessToken: token,
		ExpiresAt:   c.now().Add(lifetime - c.safetyMargin),
	}

	c.mu.Lock()
	c.record = record
	c.mu.Unlock()

	c.logger.Debug("Access token refreshed", zap.Time("expires_at", record.ExpiresAt))
	return token, nil
}
