package ledgersync

import (
	"fmt"
	"time"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

// PayloadInput holds everything resolved for one order before submission
type PayloadInput struct {
	Order          *ledger.Order
	Reconciliation *ledger.Reconciliation
	CustomerID     string
	AddressID      string
	// ShippingProductID is required when shipping was charged
	ShippingProductID string
	// ProductIDs holds the remote product id of each reconciled line, in line order
	ProductIDs []string
}

// PayloadBuilder assembles the indexed line items of a remote order
type PayloadBuilder struct {
	rules *ledger.CatalogRules
	now   func() time.Time
}

// NewPayloadBuilder creates a new PayloadBuilder
func NewPayloadBuilder(rules *ledger.CatalogRules, now func() time.Time) *PayloadBuilder {
	if now == nil {
		now = time.Now
	}
	return &PayloadBuilder{rules: rules, now: now}
}

// Build returns the order draft. A charged shipping line always comes first.
func (b *PayloadBuilder) Build(in PayloadInput) (ledger.OrderDraft, error) {
	rec := in.Reconciliation
	if len(in.ProductIDs) != len(rec.Lines) {
		return ledger.OrderDraft{}, fmt.Errorf("%w: %d product ids for %d lines",
			ledger.ErrInvalidOrder, len(in.ProductIDs), len(rec.Lines))
	}

	items := make([]ledger.OrderItem, 0, len(rec.Lines)+1)
	if rec.ShippingCharged {
		if in.ShippingProductID == "" {
			return ledger.OrderDraft{}, fmt.Errorf("%w: shipping charged without a shipping product", ledger.ErrInvalidOrder)
		}
		rate := b.rules.ShippingTaxRate()
		items = append(items, ledger.OrderItem{
			ProductID: in.ShippingProductID,
			Quantity:  1,
			UnitPrice: ledger.NetPrice(rec.ShippingCost, rate),
			TaxRate:   rate,
		})
	}
	for i, line := range rec.Lines {
		items = append(items, ledger.OrderItem{
			ProductID: in.ProductIDs[i],
			Quantity:  line.Quantity,
			UnitPrice: line.NetUnitPrice,
			TaxRate:   line.TaxRate,
		})
	}

	date := in.Order.PaidAt
	if date.IsZero() {
		date = b.now()
	}

	return ledger.OrderDraft{
		CustomerID:  in.CustomerID,
		AddressID:   in.AddressID,
		Date:        date,
		OrderNumber: in.Order.Number,
		Items:       items,
	}, nil
}
