package ledger

import (
	"github.com/shopspring/decimal"
)

// floorRatio is the share of the original price a reconciled line may never drop below
var floorRatio = decimal.NewFromFloat(0.1)

// ReconciledLine is a flat, priced and tax-classified line derived from the cart.
// It only lives for the duration of one synchronization attempt.
type ReconciledLine struct {
	Product  Product
	Quantity int
	// OriginalPrice is the effective catalog price before redistribution
	OriginalPrice decimal.Decimal
	// UnitPrice is the final tax-inclusive unit price
	UnitPrice decimal.Decimal
	TaxRate   decimal.Decimal
	// NetUnitPrice is UnitPrice with TaxRate stripped out, rounded to 2 decimals
	NetUnitPrice decimal.Decimal
	// FromBundle is true when the line was produced by unbundling
	FromBundle bool
}

// Total returns UnitPrice * Quantity
func (l ReconciledLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Reconciliation is the result of reconciling an order's cart against its collected payment
type Reconciliation struct {
	Lines []ReconciledLine
	// ListedTotal is the sum of effective catalog prices times quantity
	ListedTotal decimal.Decimal
	// TargetTotal is the collected payment minus the charged shipping
	TargetTotal decimal.Decimal
	// ShippingCharged is true when the order pays for shipping
	ShippingCharged bool
	// ShippingCost is the tax-inclusive shipping charge used for this order
	ShippingCost decimal.Decimal
	// Redistributed is true when line prices were rewritten to match TargetTotal
	Redistributed bool
	// Residual is the deficit left after every line hit its floor
	Residual decimal.Decimal
}

// ReconciledTotal returns the sum of reconciled line totals
func (r *Reconciliation) ReconciledTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range r.Lines {
		total = total.Add(line.Total())
	}
	return total
}

// Reconciler turns a cart into ledger lines whose totals match the collected payment
type Reconciler struct {
	rules *CatalogRules
}

// NewReconciler creates a new Reconciler
func NewReconciler(rules *CatalogRules) *Reconciler {
	return &Reconciler{rules: rules}
}

// Reconcile unbundles the cart, applies slug substitutions and, when the listed total
// exceeds the collected payment or the cart holds a bundle, shrinks line prices
// left to right down to a floor of 10% of their original price.
func (r *Reconciler) Reconcile(order *Order) *Reconciliation {
	result := &Reconciliation{
		ShippingCharged: !order.FreeShipping,
	}
	if result.ShippingCharged {
		result.ShippingCost = r.shippingCost(order)
	}

	lines := r.flatten(order.Lines)

	listed := decimal.Zero
	for _, line := range lines {
		listed = listed.Add(line.Total())
	}
	target := order.PaymentTotal()
	if result.ShippingCharged {
		target = target.Sub(result.ShippingCost)
	}
	result.ListedTotal = listed
	result.TargetTotal = target

	if listed.GreaterThan(target) || order.HasBundle() {
		result.Residual = redistribute(lines, decimal.Max(listed.Sub(target), decimal.Zero))
		result.Redistributed = true
	}

	for i := range lines {
		lines[i].TaxRate = r.rules.TaxRate(lines[i].Product)
		lines[i].NetUnitPrice = NetPrice(lines[i].UnitPrice, lines[i].TaxRate)
	}
	result.Lines = lines
	return result
}

// shippingCost prefers the order's own recorded charge over the configured default
func (r *Reconciler) shippingCost(order *Order) decimal.Decimal {
	if cost, ok := order.RecordedShippingCost(); ok {
		return cost
	}
	return r.rules.ShippingCost
}

// flatten expands bundles into their constituents and applies substitutions.
// Constituents carry the parent line quantity.
func (r *Reconciler) flatten(cart []CartLine) []ReconciledLine {
	lines := make([]ReconciledLine, 0, len(cart))
	for _, cl := range cart {
		if !cl.Product.IsBundle() {
			lines = append(lines, r.newLine(cl.Product, cl.Quantity, cl.EffectivePrice(), false))
			continue
		}
		for _, bp := range cl.BundledProducts {
			lines = append(lines, r.newLine(bp.Product, cl.Quantity, bp.EffectivePrice(), true))
		}
	}
	return lines
}

func (r *Reconciler) newLine(p Product, qty int, price decimal.Decimal, fromBundle bool) ReconciledLine {
	product, _ := r.rules.Substitute(p)
	return ReconciledLine{
		Product:       product,
		Quantity:      qty,
		OriginalPrice: price,
		UnitPrice:     price,
		FromBundle:    fromBundle,
	}
}

// redistribute runs the greedy waterfall in place and returns the unabsorbed deficit.
// Unit prices are whole cents: floors round up, and the line that absorbs the
// remaining deficit rounds half up, so the total lands within half a cent per
// unit of that line.
func redistribute(lines []ReconciledLine, deficit decimal.Decimal) decimal.Decimal {
	for i := range lines {
		price := lines[i].OriginalPrice
		qty := decimal.NewFromInt(int64(lines[i].Quantity))
		floor := price.Mul(floorRatio).RoundCeil(2)

		if price.Sub(floor).Mul(qty).GreaterThan(deficit) {
			lines[i].UnitPrice = decimal.Max(price.Sub(deficit.Div(qty)).Round(2), floor)
			deficit = decimal.Zero
			continue
		}
		lines[i].UnitPrice = floor
		deficit = deficit.Sub(price.Sub(floor).Mul(qty))
	}
	return deficit
}
