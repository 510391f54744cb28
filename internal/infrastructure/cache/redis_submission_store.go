package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/storefront/ledgersync/internal/domain/ledger"
	"github.com/storefront/ledgersync/internal/infrastructure/config"
)

const submissionKeySegment = "submission:"

// RedisSubmissionStore implements ledger.SubmissionStore using Redis.
// This is suitable for distributed deployments where several syncer instances
// share the same storefront database
type RedisSubmissionStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisClient creates a Redis client from configuration and verifies the connection
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisSubmissionStore creates a store with an existing Redis client
func NewRedisSubmissionStore(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisSubmissionStore {
	if keyPrefix == "" {
		keyPrefix = "ledgersync:"
	}
	if ttl <= 0 {
		ttl = DefaultSubmissionTTL
	}
	return &RedisSubmissionStore{
		client:    client,
		keyPrefix: keyPrefix + submissionKeySegment,
		ttl:       ttl,
	}
}

var _ ledger.SubmissionStore = (*RedisSubmissionStore)(nil)

// Remember records the remote order created for orderID
func (s *RedisSubmissionStore) Remember(ctx context.Context, orderID uuid.UUID, remoteOrderID string) error {
	if err := s.client.Set(ctx, s.key(orderID), remoteOrderID, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to remember submission: %w", err)
	}
	return nil
}

// Lookup returns the remembered remote order id, if any
func (s *RedisSubmissionStore) Lookup(ctx context.Context, orderID uuid.UUID) (string, bool, error) {
	remoteOrderID, err := s.client.Get(ctx, s.key(orderID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up submission: %w", err)
	}
	return remoteOrderID, true, nil
}

// Forget drops the remembered submission for orderID
func (s *RedisSubmissionStore) Forget(ctx context.Context, orderID uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(orderID)).Err(); err != nil {
		return fmt.Errorf("failed to forget submission: %w", err)
	}
	return nil
}

func (s *RedisSubmissionStore) key(orderID uuid.UUID) string {
	return s.keyPrefix + orderID.String()
}
