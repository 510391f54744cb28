package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyncState is the state of a single order synchronization attempt
type SyncState string

const (
	SyncStateUnsynced          SyncState = "UNSYNCED"
	SyncStateResolvingCustomer SyncState = "RESOLVING_CUSTOMER"
	SyncStateResolvingProducts SyncState = "RESOLVING_PRODUCTS"
	SyncStateSubmitting        SyncState = "SUBMITTING"
	SyncStateSynced            SyncState = "SYNCED"
	// SyncStateFailed is retry-eligible: the order stays unsynchronized
	SyncStateFailed SyncState = "FAILED"
	// SyncStateSkipped means the order was already synchronized
	SyncStateSkipped SyncState = "SKIPPED"
)

// IsValid returns true if the state is valid
func (s SyncState) IsValid() bool {
	switch s {
	case SyncStateUnsynced, SyncStateResolvingCustomer, SyncStateResolvingProducts,
		SyncStateSubmitting, SyncStateSynced, SyncStateFailed, SyncStateSkipped:
		return true
	default:
		return false
	}
}

// IsTerminal returns true if no further transition is possible
func (s SyncState) IsTerminal() bool {
	return s == SyncStateSynced || s == SyncStateFailed || s == SyncStateSkipped
}

// CanTransitionTo reports whether moving to next is a legal state change
func (s SyncState) CanTransitionTo(next SyncState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == SyncStateFailed {
		return true
	}
	switch s {
	case SyncStateUnsynced:
		// Synced directly when an earlier attempt already created the remote order
		return next == SyncStateResolvingCustomer || next == SyncStateSkipped || next == SyncStateSynced
	case SyncStateResolvingCustomer:
		return next == SyncStateResolvingProducts
	case SyncStateResolvingProducts:
		return next == SyncStateSubmitting
	case SyncStateSubmitting:
		return next == SyncStateSynced
	default:
		return false
	}
}

// String returns the string representation of SyncState
func (s SyncState) String() string {
	return string(s)
}

// SyncRecord is the audit entry written for every synchronization attempt
type SyncRecord struct {
	ID               uuid.UUID
	OrderID          uuid.UUID
	OrderNumber      string
	State            SyncState
	RemoteCustomerID string
	RemoteOrderID    string
	LineCount        int
	Redistributed    bool
	ResidualDeficit  decimal.Decimal
	ErrorMessage     string
	StartedAt        time.Time
	FinishedAt       time.Time
}

// Duration returns how long the attempt took
func (r *SyncRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SyncOutcome is returned to the batch driver for each processed order
type SyncOutcome struct {
	OrderID       uuid.UUID
	State         SyncState
	RemoteOrderID string
	// Reason explains a FAILED or SKIPPED outcome
	Reason string
}
