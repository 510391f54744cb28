package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront/ledgersync/internal/domain/ledger"
	"github.com/storefront/ledgersync/internal/infrastructure/persistence/models"
)

// GormSyncRecordRepository implements ledger.SyncRecordRepository using GORM
type GormSyncRecordRepository struct {
	db *gorm.DB
}

// NewGormSyncRecordRepository creates a new GormSyncRecordRepository
func NewGormSyncRecordRepository(db *gorm.DB) *GormSyncRecordRepository {
	return &GormSyncRecordRepository{db: db}
}

var _ ledger.SyncRecordRepository = (*GormSyncRecordRepository)(nil)

// Save inserts or updates a sync record. A record without an ID gets a new one.
func (r *GormSyncRecordRepository) Save(ctx context.Context, record *ledger.SyncRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	model := models.SyncRecordModelFromDomain(record)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return fmt.Errorf("failed to save sync record for order %s: %w", record.OrderID, err)
	}
	return nil
}

// FindByOrderID returns the most recent attempts for an order, newest first
func (r *GormSyncRecordRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID, limit int) ([]ledger.SyncRecord, error) {
	query := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("started_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var recordModels []models.SyncRecordModel
	if err := query.Find(&recordModels).Error; err != nil {
		return nil, fmt.Errorf("failed to find sync records: %w", err)
	}

	records := make([]ledger.SyncRecord, len(recordModels))
	for i := range recordModels {
		records[i] = *recordModels[i].ToDomain()
	}
	return records, nil
}

// FindRecent returns the latest attempts across all orders, optionally filtered by state
func (r *GormSyncRecordRepository) FindRecent(ctx context.Context, state ledger.SyncState, limit int) ([]ledger.SyncRecord, error) {
	query := r.db.WithContext(ctx).Order("finished_at DESC")
	if state != "" {
		query = query.Where("state = ?", state)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var recordModels []models.SyncRecordModel
	if err := query.Find(&recordModels).Error; err != nil {
		return nil, fmt.Errorf("failed to find sync records: %w", err)
	}

	records := make([]ledger.SyncRecord, len(recordModels))
	for i := range recordModels {
		records[i] = *recordModels[i].ToDomain()
	}
	return records, nil
}
