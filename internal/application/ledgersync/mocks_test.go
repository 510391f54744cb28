package ledgersync

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

// MockGateway is a mock implementation of ledger.Gateway
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCustomer(ctx context.Context, draft ledger.CustomerDraft) (*ledger.RemoteCustomer, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RemoteCustomer), args.Error(1)
}

func (m *MockGateway) ListCustomers(ctx context.Context) ([]ledger.RemoteCustomer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.RemoteCustomer), args.Error(1)
}

func (m *MockGateway) CreateProduct(ctx context.Context, draft ledger.ProductDraft) (*ledger.RemoteProduct, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RemoteProduct), args.Error(1)
}

func (m *MockGateway) ListProducts(ctx context.Context) ([]ledger.RemoteProduct, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.RemoteProduct), args.Error(1)
}

func (m *MockGateway) CreateOrder(ctx context.Context, draft ledger.OrderDraft) (*ledger.RemoteOrder, error) {
	args := m.Called(ctx, draft)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.RemoteOrder), args.Error(1)
}

// MockOrderSource is a mock implementation of ledger.OrderSource
type MockOrderSource struct {
	mock.Mock
}

func (m *MockOrderSource) GetOrderForSync(ctx context.Context, orderID uuid.UUID) (*ledger.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Order), args.Error(1)
}

func (m *MockOrderSource) MarkSynced(ctx context.Context, orderID uuid.UUID) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrderSource) ListUnsyncedOrderIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// recordStore keeps saved sync records in memory
type recordStore struct {
	mu      sync.Mutex
	records []ledger.SyncRecord
}

func (r *recordStore) Save(_ context.Context, record *ledger.SyncRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, *record)
	return nil
}

func (r *recordStore) FindByOrderID(_ context.Context, orderID uuid.UUID, limit int) ([]ledger.SyncRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ledger.SyncRecord
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		if r.records[i].OrderID == orderID {
			out = append(out, r.records[i])
		}
	}
	return out, nil
}

func (r *recordStore) last() ledger.SyncRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.records[len(r.records)-1]
}

// submissionMap is an in-memory ledger.SubmissionStore
type submissionMap struct {
	mu      sync.Mutex
	entries map[uuid.UUID]string
}

func newSubmissionMap() *submissionMap {
	return &submissionMap{entries: make(map[uuid.UUID]string)}
}

func (s *submissionMap) Remember(_ context.Context, orderID uuid.UUID, remoteOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[orderID] = remoteOrderID
	return nil
}

func (s *submissionMap) Lookup(_ context.Context, orderID uuid.UUID) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.entries[orderID]
	return id, ok, nil
}

func (s *submissionMap) Forget(_ context.Context, orderID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, orderID)
	return nil
}
