package ledger

import (
	"slices"

	"github.com/shopspring/decimal"
)

// ProductIdentity is the slug and display name a substituted product is replaced with
type ProductIdentity struct {
	Slug string
	Name string
}

// CatalogRules is the lookup table for slug and category based exceptions.
// All special cases that affect tax, product codes and names live here as data.
type CatalogRules struct {
	// DefaultTaxRate applies to every product without an override, as a percentage
	DefaultTaxRate decimal.Decimal
	// OverrideTaxRate applies to the shipping line, ReducedRateSlugs and ReducedRateCategories
	OverrideTaxRate decimal.Decimal
	// ReducedRateSlugs always use OverrideTaxRate (gift-wrap, complimentary add-ons)
	ReducedRateSlugs []string
	// ReducedRateCategories are category slugs whose products use OverrideTaxRate
	ReducedRateCategories []string

	// Shipping is the synthetic product used for the shipping line
	Shipping ProductIdentity
	// ShippingCost is the configured shipping charge in major units
	ShippingCost decimal.Decimal

	// Substitutions maps a product slug to the identity it is replaced with.
	// Price and quantity of the substituted line are kept.
	Substitutions map[string]ProductIdentity

	// CodeSuffix is appended to the slug to derive the remote product code
	CodeSuffix string
	// CategoryCodeSuffixes overrides CodeSuffix for products in a category
	CategoryCodeSuffixes map[string]string
	// CategoryNameSuffixes is appended to the display name for products in a category
	CategoryNameSuffixes map[string]string
}

// TaxRate returns the tax percentage that applies to the product
func (r *CatalogRules) TaxRate(p Product) decimal.Decimal {
	if p.Slug == r.Shipping.Slug || slices.Contains(r.ReducedRateSlugs, p.Slug) {
		return r.OverrideTaxRate
	}
	for _, category := range r.ReducedRateCategories {
		if p.InCategory(category) {
			return r.OverrideTaxRate
		}
	}
	return r.DefaultTaxRate
}

// ShippingTaxRate returns the tax percentage of the synthetic shipping line,
// which is always the override rate
func (r *CatalogRules) ShippingTaxRate() decimal.Decimal {
	return r.OverrideTaxRate
}

// ShippingProduct returns the synthetic product used for the shipping line
func (r *CatalogRules) ShippingProduct() Product {
	return Product{Slug: r.Shipping.Slug, Name: r.Shipping.Name, Kind: ProductKindSimple}
}

// Code derives the natural key used to match the product on the remote ledger
func (r *CatalogRules) Code(p Product) string {
	for _, category := range p.CategorySlugs {
		if suffix, ok := r.CategoryCodeSuffixes[category]; ok {
			return p.Slug + suffix
		}
	}
	return p.Slug + r.CodeSuffix
}

// Name derives the display name sent to the remote ledger
func (r *CatalogRules) Name(p Product) string {
	for _, category := range p.CategorySlugs {
		if suffix, ok := r.CategoryNameSuffixes[category]; ok {
			return p.Name + suffix
		}
	}
	return p.Name
}

// Substitute replaces the product identity when its slug has a configured substitution.
// The second return value reports whether a substitution happened.
func (r *CatalogRules) Substitute(p Product) (Product, bool) {
	replacement, ok := r.Substitutions[p.Slug]
	if !ok {
		return p, false
	}
	return Product{
		ID:   p.ID,
		Slug: replacement.Slug,
		Name: replacement.Name,
		Kind: ProductKindSimple,
	}, true
}

// NetPrice strips the tax percentage out of a tax-inclusive price, rounded to 2 decimals
func NetPrice(gross, rate decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return gross.Mul(hundred).Div(hundred.Add(rate)).Round(2)
}
