package ledger

import (
	"context"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Inbound: storefront order storage
// ---------------------------------------------------------------------------

// OrderSource is the storefront's contract with the sync engine
type OrderSource interface {
	// GetOrderForSync returns the order with cart lines, products and bundle contents populated.
	// Returns ErrOrderNotFound if the order does not exist.
	GetOrderForSync(ctx context.Context, orderID uuid.UUID) (*Order, error)

	// MarkSynced flags the order as replicated to the remote ledger
	MarkSynced(ctx context.Context, orderID uuid.UUID) error

	// ListUnsyncedOrderIDs returns paid orders that have not been synchronized yet, oldest first
	ListUnsyncedOrderIDs(ctx context.Context, limit int) ([]uuid.UUID, error)
}

// ---------------------------------------------------------------------------
// Outbound: remote ledger API
// ---------------------------------------------------------------------------

// Gateway is the remote ledger API. Implementations attach credentials and recover
// from stale tokens themselves.
type Gateway interface {
	// CreateCustomer returns ErrAlreadyExists on a natural key conflict and
	// ErrLocationMismatch when the district/city pairing is rejected
	CreateCustomer(ctx context.Context, draft CustomerDraft) (*RemoteCustomer, error)
	// ListCustomers returns the full remote associate collection
	ListCustomers(ctx context.Context) ([]RemoteCustomer, error)
	// CreateProduct returns ErrAlreadyExists on a code conflict
	CreateProduct(ctx context.Context, draft ProductDraft) (*RemoteProduct, error)
	// ListProducts returns the full remote goods collection
	ListProducts(ctx context.Context) ([]RemoteProduct, error)
	CreateOrder(ctx context.Context, draft OrderDraft) (*RemoteOrder, error)
}

// ---------------------------------------------------------------------------
// Sync bookkeeping
// ---------------------------------------------------------------------------

// SyncRecordRepository persists the audit trail of synchronization attempts
type SyncRecordRepository interface {
	Save(ctx context.Context, record *SyncRecord) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID, limit int) ([]SyncRecord, error)
}

// SubmissionStore remembers remote orders that were created for a local order,
// so a failed MarkSynced never leads to a duplicate remote order on the next run.
type SubmissionStore interface {
	Remember(ctx context.Context, orderID uuid.UUID, remoteOrderID string) error
	Lookup(ctx context.Context, orderID uuid.UUID) (remoteOrderID string, found bool, err error)
	Forget(ctx context.Context, orderID uuid.UUID) error
}
