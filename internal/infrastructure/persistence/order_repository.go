package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/storefront/ledgersync/internal/domain/ledger"
	"github.com/storefront/ledgersync/internal/infrastructure/persistence/models"
)

// GormOrderRepository implements ledger.OrderSource over the storefront database
type GormOrderRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db, now: time.Now}
}

var _ ledger.OrderSource = (*GormOrderRepository)(nil)

// GetOrderForSync loads an order with its lines, products, categories and bundle contents
func (r *GormOrderRepository) GetOrderForSync(ctx context.Context, orderID uuid.UUID) (*ledger.Order, error) {
	var model models.OrderModel
	err := r.db.WithContext(ctx).
		Preload("Lines", byPosition).
		Preload("Lines.Product.Categories").
		Preload("Lines.BundleItems", byPosition).
		Preload("Lines.BundleItems.Product.Categories").
		First(&model, "id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}
	return model.ToDomain(), nil
}

// MarkSynced sets the ledger_synced flag. It is idempotent and leaves the
// storefront's own columns, updated_at included, untouched.
func (r *GormOrderRepository) MarkSynced(ctx context.Context, orderID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("id = ?", orderID).
		UpdateColumns(map[string]any{
			"ledger_synced":    true,
			"ledger_synced_at": r.now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark order %s synced: %w", orderID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrOrderNotFound
	}
	return nil
}

// ListUnsyncedOrderIDs returns paid, unsynchronized orders, oldest payment first
func (r *GormOrderRepository) ListUnsyncedOrderIDs(ctx context.Context, limit int) ([]uuid.UUID, error) {
	if limit <= 0 {
		limit = DefaultUnsyncedBatch
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.OrderModel{}).
		Where("paid_at IS NOT NULL AND ledger_synced = ?", false).
		Order("paid_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced orders: %w", err)
	}
	return ids, nil
}

// DefaultUnsyncedBatch bounds ListUnsyncedOrderIDs when no limit is given
const DefaultUnsyncedBatch = 100

func byPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
