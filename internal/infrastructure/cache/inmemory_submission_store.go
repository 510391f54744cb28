package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

// DefaultSubmissionTTL is how long a remote order id is remembered
const DefaultSubmissionTTL = 7 * 24 * time.Hour

// submission represents a remembered remote order id with expiration
type submission struct {
	remoteOrderID string
	expiresAt     time.Time
}

// InMemorySubmissionStore implements ledger.SubmissionStore using an in-memory map.
// This is suitable for single-instance deployments and testing
type InMemorySubmissionStore struct {
	mu        sync.RWMutex
	entries   map[uuid.UUID]submission
	ttl       time.Duration
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemorySubmissionStore creates a new in-memory submission store.
// It starts a background goroutine to clean up expired entries
func NewInMemorySubmissionStore(ttl time.Duration) *InMemorySubmissionStore {
	if ttl <= 0 {
		ttl = DefaultSubmissionTTL
	}
	store := &InMemorySubmissionStore{
		entries:  make(map[uuid.UUID]submission),
		ttl:      ttl,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

var _ ledger.SubmissionStore = (*InMemorySubmissionStore)(nil)

// Remember records the remote order created for orderID
func (s *InMemorySubmissionStore) Remember(_ context.Context, orderID uuid.UUID, remoteOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[orderID] = submission{
		remoteOrderID: remoteOrderID,
		expiresAt:     s.now().Add(s.ttl),
	}
	return nil
}

// Lookup returns the remembered remote order id, if any
func (s *InMemorySubmissionStore) Lookup(_ context.Context, orderID uuid.UUID) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[orderID]
	if !exists || !s.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.remoteOrderID, true, nil
}

// Forget drops the remembered submission for orderID
func (s *InMemorySubmissionStore) Forget(_ context.Context, orderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, orderID)
	return nil
}

// Size returns the number of entries, including expired ones not yet swept
func (s *InMemorySubmissionStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Close stops the cleanup goroutine
func (s *InMemorySubmissionStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	return nil
}

// cleanupLoop periodically removes expired entries
func (s *InMemorySubmissionStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

// cleanup removes all expired entries
func (s *InMemorySubmissionStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, id)
		}
	}
}
