package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Remote Ledger Entities
// ---------------------------------------------------------------------------

// RemoteAddress is an address sub-record of a remote associate
type RemoteAddress struct {
	ID       string
	Address  string
	City     string
	District string
}

// RemoteCustomer is a customer record ("associate") on the remote ledger.
// Addresses are append-only remotely, so the newest address is the last element.
type RemoteCustomer struct {
	ID        string
	Name      string
	Surname   string
	Email     string
	Phone     string
	Addresses []RemoteAddress
}

// LatestAddress returns the most recently added address
func (c *RemoteCustomer) LatestAddress() (RemoteAddress, bool) {
	if len(c.Addresses) == 0 {
		return RemoteAddress{}, false
	}
	return c.Addresses[len(c.Addresses)-1], true
}

// RemoteProduct is a product record ("good") on the remote ledger
type RemoteProduct struct {
	ID      string
	Code    string
	Name    string
	TaxRate decimal.Decimal
	Price   decimal.Decimal
}

// RemoteOrder is the invoice-grade order record created on the remote ledger
type RemoteOrder struct {
	ID     string
	Number string
}

// ---------------------------------------------------------------------------
// Creation Drafts
// ---------------------------------------------------------------------------

// CustomerDraft is the payload used to create a remote associate
type CustomerDraft struct {
	Name           string `validate:"required"`
	Surname        string `validate:"required"`
	Email          string `validate:"required,email"`
	Phone          string `validate:"required"`
	NationalID     string `validate:"required"`
	Address        string `validate:"required"`
	City           string `validate:"required"`
	District       string `validate:"required"`
	Country        string `validate:"required"`
	Classification string
}

// ProductDraft is the payload used to create a remote good
type ProductDraft struct {
	Code           string `validate:"required"`
	Name           string `validate:"required"`
	TaxRate        decimal.Decimal
	Price          decimal.Decimal
	Type           string `validate:"required"`
	Classification string
}

// OrderItem is one indexed line of a remote order
type OrderItem struct {
	ProductID string
	Quantity  int
	// UnitPrice is tax exclusive
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
}

// OrderDraft is the payload used to create a remote order
type OrderDraft struct {
	CustomerID  string
	AddressID   string
	Date        time.Time
	OrderNumber string
	ChannelID   string
	Items       []OrderItem
}

// ---------------------------------------------------------------------------
// Access Token
// ---------------------------------------------------------------------------

// TokenRecord is a cached bearer credential for the remote ledger API.
// It is process-local and never persisted.
type TokenRecord struct {
	AccessToken string
	ExpiresAt   time.Time
}

// ValidAt reports whether the credential may still be handed out at the given instant
func (t TokenRecord) ValidAt(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}
