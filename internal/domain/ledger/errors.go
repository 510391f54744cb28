package ledger

import "errors"

// ---------------------------------------------------------------------------
// Ledger Sync Errors
// ---------------------------------------------------------------------------

var (
	// Remote ledger errors
	ErrAuthFailed          = errors.New("ledger: authentication failed")
	ErrRetriesExhausted    = errors.New("ledger: retries exhausted")
	ErrAlreadyExists       = errors.New("ledger: model already exists")
	ErrLocationMismatch    = errors.New("ledger: location mismatch")
	ErrRemoteRequestFailed = errors.New("ledger: remote request failed")
	ErrRemoteUnavailable   = errors.New("ledger: remote temporarily unavailable")
	ErrInvalidResponse     = errors.New("ledger: invalid remote response")
	ErrRemoteNotFound      = errors.New("ledger: remote entity not found")
	ErrTokenUnavailable    = errors.New("ledger: access token unavailable")

	// Local order errors
	ErrOrderNotFound   = errors.New("ledger: order not found")
	ErrOrderNotPaid    = errors.New("ledger: order has not been paid")
	ErrInvalidOrder    = errors.New("ledger: invalid order for sync")
	ErrEmptyCart       = errors.New("ledger: order cart is empty")
	ErrInvalidQuantity = errors.New("ledger: cart line quantity must be positive")
	ErrMissingAddress  = errors.New("ledger: remote customer has no address")
	ErrInvalidCustomer = errors.New("ledger: customer details incomplete")
)
