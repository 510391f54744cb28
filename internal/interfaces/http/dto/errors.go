package dto

import (
	"context"
	"errors"
	"net/http"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

// Error code constants
// Format: ERR_<CATEGORY>_<DESCRIPTION>
const (
	ErrCodeInternal      = "ERR_INTERNAL"
	ErrCodeBadRequest    = "ERR_BAD_REQUEST"
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeConflict      = "ERR_CONFLICT"
	ErrCodeRateLimited   = "ERR_RATE_LIMITED"
	ErrCodeUnavailable   = "ERR_SERVICE_UNAVAILABLE"
	ErrCodeTimeout       = "ERR_TIMEOUT"
	ErrCodeRequestTooBig = "ERR_REQUEST_TOO_LARGE"
)

// Ledger sync error codes
const (
	// ErrCodeInvalidOrder is used when a local order cannot be synchronized as is
	ErrCodeInvalidOrder = "ERR_LEDGER_INVALID_ORDER"
	// ErrCodeLocationMismatch is used when the ledger rejects the customer's district
	ErrCodeLocationMismatch = "ERR_LEDGER_LOCATION_MISMATCH"
	// ErrCodeLedgerAuth is used when the ledger keeps rejecting credentials
	ErrCodeLedgerAuth = "ERR_LEDGER_AUTH"
	// ErrCodeLedgerUnavailable is used when the ledger cannot be reached
	ErrCodeLedgerUnavailable = "ERR_LEDGER_UNAVAILABLE"
	// ErrCodeLedgerRejected is used when the ledger refuses a request
	ErrCodeLedgerRejected = "ERR_LEDGER_REJECTED"
)

var errorCodeToHTTPStatus = map[string]int{
	ErrCodeInternal:          http.StatusInternalServerError,
	ErrCodeBadRequest:        http.StatusBadRequest,
	ErrCodeNotFound:          http.StatusNotFound,
	ErrCodeConflict:          http.StatusConflict,
	ErrCodeRateLimited:       http.StatusTooManyRequests,
	ErrCodeUnavailable:       http.StatusServiceUnavailable,
	ErrCodeTimeout:           http.StatusGatewayTimeout,
	ErrCodeRequestTooBig:     http.StatusRequestEntityTooLarge,
	ErrCodeInvalidOrder:      http.StatusUnprocessableEntity,
	ErrCodeLocationMismatch:  http.StatusUnprocessableEntity,
	ErrCodeLedgerAuth:        http.StatusBadGateway,
	ErrCodeLedgerUnavailable: http.StatusBadGateway,
	ErrCodeLedgerRejected:    http.StatusBadGateway,
}

// GetHTTPStatus returns the HTTP status for an error code
func GetHTTPStatus(code string) int {
	if status, ok := errorCodeToHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ErrorCodeFor maps a sync error to an API error code
func ErrorCodeFor(err error) string {
	switch {
	case errors.Is(err, ledger.ErrOrderNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ledger.ErrInvalidOrder),
		errors.Is(err, ledger.ErrOrderNotPaid),
		errors.Is(err, ledger.ErrEmptyCart),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidCustomer):
		return ErrCodeInvalidOrder
	case errors.Is(err, ledger.ErrLocationMismatch):
		return ErrCodeLocationMismatch
	case errors.Is(err, ledger.ErrAuthFailed), errors.Is(err, ledger.ErrRetriesExhausted):
		return ErrCodeLedgerAuth
	case errors.Is(err, ledger.ErrRemoteUnavailable), errors.Is(err, ledger.ErrTokenUnavailable):
		return ErrCodeLedgerUnavailable
	case errors.Is(err, ledger.ErrRemoteRequestFailed),
		errors.Is(err, ledger.ErrInvalidResponse),
		errors.Is(err, ledger.ErrRemoteNotFound),
		errors.Is(err, ledger.ErrMissingAddress):
		return ErrCodeLedgerRejected
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	default:
		return ErrCodeInternal
	}
}
