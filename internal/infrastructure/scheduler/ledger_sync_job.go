package scheduler

import (
	"time"

	"github.com/google/uuid"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

// ---------------------------------------------------------------------------
// Ledger Sync Job Types
// ---------------------------------------------------------------------------

// JobStatus represents the status of a ledger sync job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSuccess   JobStatus = "SUCCESS"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// JobSource tells where a job came from
type JobSource string

const (
	JobSourceScan   JobSource = "scan"
	JobSourceManual JobSource = "manual"
)

// LedgerSyncJob is one queued synchronization of a single order
type LedgerSyncJob struct {
	ID            uuid.UUID        `json:"id"`
	OrderID       uuid.UUID        `json:"order_id"`
	Source        JobSource        `json:"source"`
	Status        JobStatus        `json:"status"`
	SyncState     ledger.SyncState `json:"sync_state,omitempty"`
	RemoteOrderID string           `json:"remote_order_id,omitempty"`
	Error         string           `json:"error,omitempty"`
	QueuedAt      time.Time        `json:"queued_at"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
}

// NewLedgerSyncJob creates a new pending job
func NewLedgerSyncJob(orderID uuid.UUID, source JobSource) *LedgerSyncJob {
	return &LedgerSyncJob{
		ID:       uuid.New(),
		OrderID:  orderID,
		Source:   source,
		Status:   JobStatusPending,
		QueuedAt: time.Now(),
	}
}

// Start marks the job as running
func (j *LedgerSyncJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete records the sync outcome. A FAILED outcome fails the job even
// when the orchestrator returned no error.
func (j *LedgerSyncJob) Complete(outcome *ledger.SyncOutcome, err error) {
	now := time.Now()
	j.CompletedAt = &now

	if outcome != nil {
		j.SyncState = outcome.State
		j.RemoteOrderID = outcome.RemoteOrderID
	}

	switch {
	case err != nil:
		j.Status = JobStatusFailed
		j.Error = err.Error()
	case outcome != nil && outcome.State == ledger.SyncStateFailed:
		j.Status = JobStatusFailed
		j.Error = outcome.Reason
	default:
		j.Status = JobStatusSuccess
	}
}

// Cancel marks a job that never ran
func (j *LedgerSyncJob) Cancel(reason string) {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
	j.Error = reason
}

// Snapshot returns a copy of the job. Only the goroutine that owns the job
// may call it; others read the copies returned by Submit and History.
func (j *LedgerSyncJob) Snapshot() LedgerSyncJob {
	return *j
}
