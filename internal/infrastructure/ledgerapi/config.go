package ledgerapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	// DefaultTimeoutSeconds bounds every request to the ledger API
	DefaultTimeoutSeconds = 20
	// DefaultMaxAttempts is how many times a call is tried when the token is rejected
	DefaultMaxAttempts = 4
	// DefaultTokenLifetime is assumed when the token endpoint does not report one
	DefaultTokenLifetime = 50 * time.Minute
	// DefaultTokenSafetyMargin is subtracted from the reported token lifetime
	DefaultTokenSafetyMargin = 60 * time.Second
	// DefaultPageLimit caps how many pages a collection listing follows
	DefaultPageLimit = 500
)

// Errors for ledger API configuration
var (
	ErrConfigInvalid = errors.New("ledgerapi: invalid configuration")
)

// Config holds configuration for the remote ledger API
type Config struct {
	// BaseURL is the API root, e.g. https://api.ledger.example/v1
	BaseURL string `validate:"required,url"`
	// APIKey is exchanged for a short-lived bearer token
	APIKey string `validate:"required"`
	// ChannelID identifies this storefront as the sales channel of created orders
	ChannelID string `validate:"required"`
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int `validate:"gte=0"`
	// MaxAttempts bounds auth-failure retries per call
	MaxAttempts int `validate:"gte=0"`
	// TokenLifetime is used when the token response omits expires_in
	TokenLifetime time.Duration `validate:"gte=0"`
	// TokenSafetyMargin is subtracted from the token lifetime before caching
	TokenSafetyMargin time.Duration `validate:"gte=0"`
	// PageLimit caps pagination when listing remote collections
	PageLimit int `validate:"gte=0"`
}

// Validate validates the configuration and fills defaults for zero values
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	if c.TimeoutSeconds == 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.TokenLifetime == 0 {
		c.TokenLifetime = DefaultTokenLifetime
	}
	if c.TokenSafetyMargin == 0 {
		c.TokenSafetyMargin = DefaultTokenSafetyMargin
	}
	if c.PageLimit == 0 {
		c.PageLimit = DefaultPageLimit
	}
	return nil
}

// Timeout returns the request timeout as a duration
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
