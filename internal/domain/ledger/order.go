package ledger

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductKind distinguishes sellable products that are composed of other products
type ProductKind string

const (
	ProductKindSimple ProductKind = "simple"
	ProductKindBundle ProductKind = "bundle"
)

// IsValid returns true if the kind is valid
func (k ProductKind) IsValid() bool {
	switch k {
	case ProductKindSimple, ProductKindBundle:
		return true
	default:
		return false
	}
}

// String returns the string representation of ProductKind
func (k ProductKind) String() string {
	return string(k)
}

// Product is the storefront catalog entry referenced by a cart line
type Product struct {
	ID            uuid.UUID
	Slug          string
	Name          string
	Kind          ProductKind
	CategorySlugs []string
}

// IsBundle returns true if the product is sold as a bundle of other products
func (p Product) IsBundle() bool {
	return p.Kind == ProductKindBundle
}

// InCategory reports whether the product belongs to the category with the given slug
func (p Product) InCategory(slug string) bool {
	return slices.Contains(p.CategorySlugs, slug)
}

// BundledProduct is one constituent of a bundle cart line.
// Quantity is kept for completeness but reconciliation uses the parent line quantity.
type BundledProduct struct {
	Product         Product
	Quantity        int
	Price           decimal.Decimal
	DiscountedPrice *decimal.Decimal
}

// EffectivePrice returns the discounted price if present, otherwise the list price
func (b BundledProduct) EffectivePrice() decimal.Decimal {
	if b.DiscountedPrice != nil {
		return *b.DiscountedPrice
	}
	return b.Price
}

// CartLine is an immutable line of a placed order
type CartLine struct {
	Product         Product
	Quantity        int
	Price           decimal.Decimal
	DiscountedPrice *decimal.Decimal
	BundledProducts []BundledProduct
}

// EffectivePrice returns the discounted price if present, otherwise the list price
func (l CartLine) EffectivePrice() decimal.Decimal {
	if l.DiscountedPrice != nil {
		return *l.DiscountedPrice
	}
	return l.Price
}

// CustomerContact holds the buyer details captured at checkout
type CustomerContact struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Address   string
	City      string
	District  string
}

// Order is a paid storefront order as seen by the ledger sync engine
type Order struct {
	ID     uuid.UUID
	Number string
	// PaymentAmount is the amount actually collected, in minor currency units
	PaymentAmount int64
	FreeShipping  bool
	// ShippingCost is the shipping charge recorded on the order, in minor currency units.
	// Nil when the storefront did not record one.
	ShippingCost *int64
	Customer     CustomerContact
	Lines        []CartLine
	Synchronized bool
	PaidAt       time.Time
}

// PaymentTotal returns the collected payment in major currency units
func (o *Order) PaymentTotal() decimal.Decimal {
	return decimal.New(o.PaymentAmount, -2)
}

// RecordedShippingCost returns the order's own shipping charge in major units, if any
func (o *Order) RecordedShippingCost() (decimal.Decimal, bool) {
	if o.ShippingCost == nil {
		return decimal.Zero, false
	}
	return decimal.New(*o.ShippingCost, -2), true
}

// HasBundle reports whether any cart line is a bundle
func (o *Order) HasBundle() bool {
	for _, line := range o.Lines {
		if line.Product.IsBundle() {
			return true
		}
	}
	return false
}

// Validate checks that the order can be reconciled and submitted
func (o *Order) Validate() error {
	if o.ID == uuid.Nil {
		return fmt.Errorf("%w: missing order id", ErrInvalidOrder)
	}
	if o.PaidAt.IsZero() {
		return ErrOrderNotPaid
	}
	if len(o.Lines) == 0 {
		return ErrEmptyCart
	}
	if o.PaymentAmount < 0 {
		return fmt.Errorf("%w: negative payment amount", ErrInvalidOrder)
	}
	for i, line := range o.Lines {
		if line.Quantity <= 0 {
			return fmt.Errorf("%w: line %d", ErrInvalidQuantity, i)
		}
		if line.Product.IsBundle() && len(line.BundledProducts) == 0 {
			return fmt.Errorf("%w: bundle %q has no constituents", ErrInvalidOrder, line.Product.Slug)
		}
	}
	return nil
}
