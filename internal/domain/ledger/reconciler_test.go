package ledger

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func testRules() *CatalogRules {
	return &CatalogRules{
		DefaultTaxRate:        dec("20"),
		OverrideTaxRate:       dec("10"),
		ReducedRateSlugs:      []string{"kargo", "hediye-paketi", "el-yapimi-kart"},
		ReducedRateCategories: []string{"hazir-pelus"},
		Shipping:              ProductIdentity{Slug: "kargo", Name: "Kargo"},
		ShippingCost:          dec("30"),
		Substitutions: map[string]ProductIdentity{
			"susleme-paketi": {Slug: "hediye-paketi", Name: "Hediye Paketi"},
		},
		CodeSuffix:           "-std",
		CategoryCodeSuffixes: map[string]string{"hazir-pelus": "-hp"},
		CategoryNameSuffixes: map[string]string{"hazir-pelus": " (Hazır Peluş)"},
	}
}

func simpleProduct(slug string, categories ...string) Product {
	return Product{ID: uuid.New(), Slug: slug, Name: slug, Kind: ProductKindSimple, CategorySlugs: categories}
}

func bundleLine(qty int, parts ...BundledProduct) CartLine {
	return CartLine{
		Product:         Product{ID: uuid.New(), Slug: "bundle", Name: "Bundle", Kind: ProductKindBundle},
		Quantity:        qty,
		Price:           dec("0"),
		BundledProducts: parts,
	}
}

func part(slug, price string) BundledProduct {
	return BundledProduct{Product: simpleProduct(slug), Quantity: 1, Price: dec(price)}
}

func unitPrices(r *Reconciliation) []string {
	out := make([]string, len(r.Lines))
	for i, l := range r.Lines {
		out[i] = l.UnitPrice.String()
	}
	return out
}

// ---------------------------------------------------------------------------
// Worked examples
// ---------------------------------------------------------------------------

func TestReconcile_BundleDeficitAbsorbedByFirstLine(t *testing.T) {
	order := &Order{
		ID:            uuid.New(),
		PaymentAmount: 12000,
		FreeShipping:  true,
		Lines:         []CartLine{bundleLine(1, part("p1", "100"), part("p2", "50"))},
	}

	result := NewReconciler(testRules()).Reconcile(order)

	require.Len(t, result.Lines, 2)
	assert.True(t, result.Redistributed)
	assert.Equal(t, []string{"70", "50"}, unitPrices(result))
	assert.True(t, result.ReconciledTotal().Equal(dec("120")))
	assert.True(t, result.Residual.IsZero())
}

func TestReconcile_BundleDeficitSpillsPastFloor(t *testing.T) {
	order := &Order{
		ID:            uuid.New(),
		PaymentAmount: 3000,
		FreeShipping:  true,
		Lines:         []CartLine{bundleLine(1, part("p1", "100"), part("p2", "50"))},
	}

	result := NewReconciler(testRules()).Reconcile(order)

	assert.Equal(t, []string{"10", "20"}, unitPrices(result))
	assert.True(t, result.ReconciledTotal().Equal(dec("30")))
}

// ---------------------------------------------------------------------------
// Unbundling and substitution
// ---------------------------------------------------------------------------

func TestReconcile_BundleUsesParentQuantity(t *testing.T) {
	parts := []BundledProduct{part("a", "10"), part("b", "20"), part("c", "30")}
	for i := range parts {
		parts[i].Quantity = 5
	}
	order := &Order{
		ID:            uuid.New(),
		PaymentAmount: 12000,
		FreeShipping:  true,
		Lines:         []CartLine{bundleLine(2, parts...)},
	}

	result := NewReconciler(testRules()).Reconcile(order)

	require.Len(t, result.Lines, 3)
	for _, line := range result.Lines {
		assert.Equal(t, 2, line.Quantity)
		assert.True(t, line.FromBundle)
	}
	assert.True(t, result.ListedTotal.Equal(dec("120")))
}

func TestReconcile_SubstitutesConfiguredSlug(t *testing.T) {
	order := &Order{
		ID:            uuid.New(),
		PaymentAmount: 1500,
		FreeShipping:  true,
		Lines: []CartLine{
			{Product: simpleProduct("susleme-paketi"), Quantity: 1, Price: dec("15")},
		},
	}

	result := NewReconciler(testRules()).Reconcile(order)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, "hediye-paketi", result.Lines[0].Product.Slug)
	assert.Equal(t, "15", result.Lines[0].UnitPrice.String())
	assert.True(t, result.Lines[0].TaxRate.Equal(dec("10")))
}

// ---------------------------------------------------------------------------
// Redistribution trigger
// ---------------------------------------------------------------------------

func TestReconcile_NoRedistributionWhenPaymentCoversCart(t *testing.T) {
	order := &Order{
		ID:            uuid.New(),
		PaymentAmount: 20000,
		FreeShipping:  true,
		Lines: []CartLine{
			{Product: simpleProduct("p1"), Quantity: 2, Price: dec("60"), DiscountedPrice: decPtr("50")},
			{Product: simpleProduct("p2"), Quantity: 1, Price: dec("80")},
		},
	}

	result := NewReconciler(testRules()).Reconcile(order)

	assert.False(t, result.Redistributed)
	assert.Equal(t, []string{"50", "80"}, unitPrices(result))
}

func TestReconcile_BundleWithSurplusPaymentKeepsPrices(t *testing.T) {
	order := &Order{
		ID:            uuid.New(),
		PaymentAmount: 50000,
		FreeShipping:  true,
		Lines:         []CartLine{bundleLine(1, part("p1", "100"), part("p2", "50"))},
	}

	result := NewReconciler(testRules()).Reconcile(order)

	assert.True(t, result.Redistributed)
	assert.Equal(t, []string{"100", "50"}, unitPrices(result))
}

func TestReconcile_SubtractsShippingWhenCharged(t *testing.T) {
	tests := []struct {
		name         string
		shippingCost *int64
		wantTarget   string
		wantPrice    string
	}{
		{name: "configured shipping cost", shippingCost: nil, wantTarget: "90", wantPrice: "90"},
		{name: "recorded shipping cost", shippingCost: int64Ptr(2000), wantTarget: "100", wantPrice: "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &Order{
				ID:            uuid.New(),
				PaymentAmount: 12000,
				ShippingCost:  tt.shippingCost,
				Lines: []CartLine{
					{Product: simpleProduct("p1"), Quantity: 1, Price: dec("110")},
				},
			}

			result := NewReconciler(testRules()).Reconcile(order)

			assert.True(t, result.ShippingCharged)
			assert.True(t, result.TargetTotal.Equal(dec(tt.wantTarget)))
			assert.Equal(t, tt.wantPrice, result.Lines[0].UnitPrice.String())
		})
	}
}

func TestReconcile_ResidualWhenDeficitExceedsFloor(t *testing.T) {
	order := &Order{
		ID:            uuid.New(),
		PaymentAmount: 500,
		FreeShipping:  true,
		Lines: []CartLine{
			{Product: simpleProduct("p1"), Quantity: 1, Price: dec("100")},
		},
	}

	result := NewReconciler(testRules()).Reconcile(order)

	assert.Equal(t, "10", result.Lines[0].UnitPrice.String())
	assert.True(t, result.Residual.Equal(dec("5")))
}

// ---------------------------------------------------------------------------
// Invariants
// ---------------------------------------------------------------------------

func TestReconcile_FloorAndTotalInvariants(t *testing.T) {
	carts := [][]CartLine{
		{
			{Product: simpleProduct("a"), Quantity: 3, Price: dec("19.90")},
			{Product: simpleProduct("b"), Quantity: 1, Price: dec("250"), DiscountedPrice: decPtr("199.99")},
			{Product: simpleProduct("c"), Quantity: 7, Price: dec("4.75")},
		},
		{
			bundleLine(2, part("x", "45"), part("y", "12.5"), part("z", "80")),
			{Product: simpleProduct("d"), Quantity: 1, Price: dec("33.30")},
		},
	}
	payments := []int64{0, 100, 2599, 12345, 30000, 45000, 99999}

	for ci, cart := range carts {
		for _, payment := range payments {
			order := &Order{ID: uuid.New(), PaymentAmount: payment, FreeShipping: true, Lines: cart}
			result := NewReconciler(testRules()).Reconcile(order)

			// Half a cent per unit of the line that absorbed the last of the deficit
			tolerance := decimal.Zero
			for _, line := range result.Lines {
				floor := line.OriginalPrice.Mul(dec("0.1"))
				assert.True(t, line.UnitPrice.GreaterThanOrEqual(floor),
					"cart %d payment %d: %s below floor %s", ci, payment, line.UnitPrice, floor)
				assert.True(t, line.UnitPrice.Equal(line.UnitPrice.Round(2)),
					"cart %d payment %d: %s is not whole cents", ci, payment, line.UnitPrice)
				tolerance = decimal.Max(tolerance, dec("0.005").Mul(decimal.NewFromInt(int64(line.Quantity))))
			}

			deficit := result.ListedTotal.Sub(result.TargetTotal)
			if deficit.IsPositive() && deficit.LessThanOrEqual(result.ListedTotal.Mul(dec("0.9"))) {
				require.True(t, result.Residual.IsZero(), "cart %d payment %d: residual %s", ci, payment, result.Residual)
				diff := result.ReconciledTotal().Sub(result.TargetTotal).Abs()
				assert.True(t, diff.LessThanOrEqual(tolerance),
					"cart %d payment %d: reconciled %s target %s", ci, payment, result.ReconciledTotal(), result.TargetTotal)
			}
		}
	}
}

func TestReconcile_UnitPricesAreWholeCents(t *testing.T) {
	order := &Order{
		ID:            uuid.New(),
		PaymentAmount: 5000,
		FreeShipping:  true,
		Lines: []CartLine{
			{Product: simpleProduct("p1"), Quantity: 3, Price: dec("20")},
			{Product: simpleProduct("p2"), Quantity: 1, Price: dec("4.75")},
		},
	}

	result := NewReconciler(testRules()).Reconcile(order)

	// 20 - 14.75/3 = 15.0833... rounds to 15.08, one cent over the target
	assert.Equal(t, []string{"15.08", "4.75"}, unitPrices(result))
	assert.True(t, result.ReconciledTotal().Equal(dec("49.99")))
	assert.True(t, result.Residual.IsZero())

	t.Run("floor rounds up to the next cent", func(t *testing.T) {
		order := &Order{
			ID:            uuid.New(),
			PaymentAmount: 1,
			FreeShipping:  true,
			Lines: []CartLine{
				{Product: simpleProduct("p2"), Quantity: 2, Price: dec("4.75")},
			},
		}

		result := NewReconciler(testRules()).Reconcile(order)

		assert.Equal(t, []string{"0.48"}, unitPrices(result))
		assert.True(t, result.Residual.Equal(dec("0.95")))
	})
}

func TestReconcile_NetUnitPrice(t *testing.T) {
	order := &Order{
		ID:            uuid.New(),
		PaymentAmount: 22000,
		FreeShipping:  true,
		Lines: []CartLine{
			{Product: simpleProduct("p1"), Quantity: 1, Price: dec("120")},
			{Product: simpleProduct("teddy", "hazir-pelus"), Quantity: 1, Price: dec("100")},
		},
	}

	result := NewReconciler(testRules()).Reconcile(order)

	assert.Equal(t, "100", result.Lines[0].NetUnitPrice.String())
	assert.Equal(t, "90.91", result.Lines[1].NetUnitPrice.String())
}

func int64Ptr(v int64) *int64 {
	return &v
}
