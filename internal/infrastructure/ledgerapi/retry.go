package ledgerapi

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

// Operation is a remote call made with a bearer credential.
// attempt starts at 1.
type Operation[T any] func(ctx context.Context, token string, attempt int) (T, error)

// RetryingCaller re-runs operations rejected for a stale credential.
// It only recovers from authentication failures; every other error is returned as is.
type RetryingCaller struct {
	tokens      TokenProvider
	maxAttempts int
	logger      *zap.Logger
}

// NewRetryingCaller creates a new RetryingCaller
func NewRetryingCaller(tokens TokenProvider, maxAttempts int, logger *zap.Logger) *RetryingCaller {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &RetryingCaller{
		tokens:      tokens,
		maxAttempts: maxAttempts,
		logger:      logger.Named("retrying_caller"),
	}
}

// MaxAttempts returns the attempt bound
func (c *RetryingCaller) MaxAttempts() int {
	return c.maxAttempts
}

// Invoke runs op with the cached credential. On ErrAuthFailed it forces a token
// refresh and retries, up to the caller's attempt bound.
func Invoke[T any](ctx context.Context, c *RetryingCaller, op Operation[T]) (T, error) {
	var zero T
	forceRefresh := false

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		token, err := c.tokens.Get(ctx, forceRefresh)
		if err != nil {
			return zero, err
		}

		result, err := op(ctx, token, attempt)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ledger.ErrAuthFailed) {
			return zero, err
		}
		if attempt >= c.maxAttempts {
			return zero, fmt.Errorf("%w after %d attempts: %w", ledger.ErrRetriesExhausted, attempt, err)
		}

		c.logger.Warn("Ledger rejected credential, refreshing token",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.maxAttempts),
		)
		forceRefresh = true
	}
}
