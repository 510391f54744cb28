package handler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/storefront/ledgersync/internal/domain/ledger"
	"github.com/storefront/ledgersync/internal/infrastructure/persistence"
	"github.com/storefront/ledgersync/internal/infrastructure/scheduler"
)

type MockSyncHistory struct {
	mock.Mock
}

func (m *MockSyncHistory) History(ctx context.Context, orderID uuid.UUID, limit int) ([]ledger.SyncRecord, error) {
	args := m.Called(ctx, orderID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.SyncRecord), args.Error(1)
}

type MockRecentRecords struct {
	mock.Mock
}

func (m *MockRecentRecords) FindRecent(ctx context.Context, state ledger.SyncState, limit int) ([]ledger.SyncRecord, error) {
	args := m.Called(ctx, state, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.SyncRecord), args.Error(1)
}

type MockJobQueue struct {
	mock.Mock
}

func (m *MockJobQueue) Submit(orderID uuid.UUID, source scheduler.JobSource) (scheduler.LedgerSyncJob, error) {
	args := m.Called(orderID, source)
	return args.Get(0).(scheduler.LedgerSyncJob), args.Error(1)
}

func (m *MockJobQueue) History(limit int) []scheduler.LedgerSyncJob {
	args := m.Called(limit)
	return args.Get(0).([]scheduler.LedgerSyncJob)
}

func (m *MockJobQueue) HistoryByOrder(orderID uuid.UUID, limit int) []scheduler.LedgerSyncJob {
	args := m.Called(orderID, limit)
	return args.Get(0).([]scheduler.LedgerSyncJob)
}

func (m *MockJobQueue) Pending() int {
	return m.Called().Int(0)
}

func (m *MockJobQueue) IsRunning() bool {
	return m.Called().Bool(0)
}

type MockScanTrigger struct {
	mock.Mock
}

func (m *MockScanTrigger) TriggerNow() bool {
	return m.Called().Bool(0)
}

func (m *MockScanTrigger) LastScan() (time.Time, scheduler.ScanResult) {
	args := m.Called()
	return args.Get(0).(time.Time), args.Get(1).(scheduler.ScanResult)
}

type MockDatabaseProbe struct {
	mock.Mock
}

func (m *MockDatabaseProbe) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDatabaseProbe) Stats() (persistence.ConnectionStats, error) {
	args := m.Called()
	return args.Get(0).(persistence.ConnectionStats), args.Error(1)
}
