package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

// SyncRecordModel is the persistence model for a synchronization attempt
type SyncRecordModel struct {
	ID               uuid.UUID        `gorm:"type:uuid;primary_key"`
	OrderID          uuid.UUID        `gorm:"type:uuid;not null;index:idx_ledger_sync_records_order,priority:1"`
	OrderNumber      string           `gorm:"type:varchar(64);not null;default:''"`
	State            ledger.SyncState `gorm:"type:varchar(32);not null"`
	RemoteCustomerID string           `gorm:"type:varchar(64);not null;default:''"`
	RemoteOrderID    string           `gorm:"type:varchar(64);not null;default:''"`
	LineCount        int              `gorm:"not null;default:0"`
	Redistributed    bool             `gorm:"not null;default:false"`
	ResidualDeficit  decimal.Decimal  `gorm:"type:decimal(18,2);not null;default:0"`
	ErrorMessage     string           `gorm:"type:text;not null;default:''"`
	StartedAt        time.Time        `gorm:"not null;index:idx_ledger_sync_records_order,priority:2"`
	FinishedAt       time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SyncRecordModel) TableName() string {
	return "ledger_sync_records"
}

// ToDomain converts the persistence model to a ledger SyncRecord
func (m *SyncRecordModel) ToDomain() *ledger.SyncRecord {
	return &ledger.SyncRecord{
		ID:               m.ID,
		OrderID:          m.OrderID,
		OrderNumber:      m.OrderNumber,
		State:            m.State,
		RemoteCustomerID: m.RemoteCustomerID,
		RemoteOrderID:    m.RemoteOrderID,
		LineCount:        m.LineCount,
		Redistributed:    m.Redistributed,
		ResidualDeficit:  m.ResidualDeficit,
		ErrorMessage:     m.ErrorMessage,
		StartedAt:        m.StartedAt,
		FinishedAt:       m.FinishedAt,
	}
}

// FromDomain populates the persistence model from a ledger SyncRecord
func (m *SyncRecordModel) FromDomain(r *ledger.SyncRecord) {
	m.ID = r.ID
	m.OrderID = r.OrderID
	m.OrderNumber = r.OrderNumber
	m.State = r.State
	m.RemoteCustomerID = r.RemoteCustomerID
	m.RemoteOrderID = r.RemoteOrderID
	m.LineCount = r.LineCount
	m.Redistributed = r.Redistributed
	m.ResidualDeficit = r.ResidualDeficit
	m.ErrorMessage = r.ErrorMessage
	m.StartedAt = r.StartedAt
	m.FinishedAt = r.FinishedAt
}

// SyncRecordModelFromDomain creates a new persistence model from a ledger SyncRecord
func SyncRecordModelFromDomain(r *ledger.SyncRecord) *SyncRecordModel {
	m := &SyncRecordModel{}
	m.FromDomain(r)
	return m
}
