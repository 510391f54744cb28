package ledgerapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

// locationFields are validation keys the ledger uses when it rejects a district/city pairing
var locationFields = []string{"district", "city", "address.district", "address.city"}

// APIError is a non-2xx response from the ledger API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	// Fields holds per-field validation messages
	Fields map[string][]string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ledgerapi: HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("ledgerapi: HTTP %d: %s", e.StatusCode, e.Message)
}

// Is maps the response onto the ledger domain error taxonomy
func (e *APIError) Is(target error) bool {
	switch target {
	case ledger.ErrAuthFailed:
		return e.StatusCode == http.StatusUnauthorized
	case ledger.ErrAlreadyExists:
		return e.isConflict()
	case ledger.ErrLocationMismatch:
		return e.isLocationMismatch()
	case ledger.ErrRemoteUnavailable:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
	case ledger.ErrRemoteRequestFailed:
		return true
	}
	return false
}

func (e *APIError) isConflict() bool {
	if e.StatusCode == http.StatusConflict {
		return true
	}
	if e.StatusCode != http.StatusUnprocessableEntity {
		return false
	}
	if strings.EqualFold(e.Code, "conflict") {
		return true
	}
	return strings.Contains(strings.ToLower(e.Message), "already exists")
}

func (e *APIError) isLocationMismatch() bool {
	if e.StatusCode != http.StatusUnprocessableEntity || e.isConflict() {
		return false
	}
	for _, field := range locationFields {
		if len(e.Fields[field]) > 0 {
			return true
		}
	}
	return false
}

// newAPIError builds an APIError from a response body, tolerating non-JSON payloads
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var payload errorResponse
	if err := unmarshal(body, &payload); err == nil {
		apiErr.Code = payload.Code
		apiErr.Message = payload.Message
		apiErr.Fields = payload.Errors
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}

// IsAPIError reports whether err carries an APIError and returns it
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
