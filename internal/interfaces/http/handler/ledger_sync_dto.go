package handler

import (
	"time"

	"github.com/storefront/ledgersync/internal/domain/ledger"
	"github.com/storefront/ledgersync/internal/infrastructure/scheduler"
)

// SyncRecordResponse is one audited synchronization attempt
type SyncRecordResponse struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"order_id"`
	OrderNumber      string    `json:"order_number,omitempty"`
	State            string    `json:"state"`
	RemoteCustomerID string    `json:"remote_customer_id,omitempty"`
	RemoteOrderID    string    `json:"remote_order_id,omitempty"`
	LineCount        int       `json:"line_count"`
	Redistributed    bool      `json:"redistributed"`
	ResidualDeficit  string    `json:"residual_deficit"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	DurationMillis   int64     `json:"duration_ms"`
}

// ToSyncRecordResponse converts a domain sync record
func ToSyncRecordResponse(r ledger.SyncRecord) SyncRecordResponse {
	return SyncRecordResponse{
		ID:               r.ID.String(),
		OrderID:          r.OrderID.String(),
		OrderNumber:      r.OrderNumber,
		State:            r.State.String(),
		RemoteCustomerID: r.RemoteCustomerID,
		RemoteOrderID:    r.RemoteOrderID,
		LineCount:        r.LineCount,
		Redistributed:    r.Redistributed,
		ResidualDeficit:  r.ResidualDeficit.StringFixed(2),
		ErrorMessage:     r.ErrorMessage,
		StartedAt:        r.StartedAt,
		FinishedAt:       r.FinishedAt,
		DurationMillis:   r.Duration().Milliseconds(),
	}
}

// ToSyncRecordResponses converts a slice of sync records
func ToSyncRecordResponses(records []ledger.SyncRecord) []SyncRecordResponse {
	out := make([]SyncRecordResponse, len(records))
	for i, r := range records {
		out[i] = ToSyncRecordResponse(r)
	}
	return out
}

// JobListResponse lists recent worker jobs
type JobListResponse struct {
	Running bool                      `json:"running"`
	Pending int                       `json:"pending"`
	Jobs    []scheduler.LedgerSyncJob `json:"jobs"`
}

// ScanResponse reports whether a scan was requested
type ScanResponse struct {
	Requested bool                 `json:"requested"`
	LastScan  *time.Time           `json:"last_scan,omitempty"`
	LastStats scheduler.ScanResult `json:"last_result"`
}
