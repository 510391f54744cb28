package ledgersync

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testRules() *ledger.CatalogRules {
	return &ledger.CatalogRules{
		DefaultTaxRate:        dec("20"),
		OverrideTaxRate:       dec("10"),
		ReducedRateSlugs:      []string{"kargo", "hediye-paketi"},
		ReducedRateCategories: []string{"hazir-pelus"},
		Shipping:              ledger.ProductIdentity{Slug: "kargo", Name: "Kargo"},
		ShippingCost:          dec("30"),
		CodeSuffix:            "-std",
		CategoryCodeSuffixes:  map[string]string{"hazir-pelus": "-hp"},
		CategoryNameSuffixes:  map[string]string{"hazir-pelus": " (Hazır Peluş)"},
	}
}

var (
	testCustomerDefaults = CustomerDefaults{NationalID: "11111111111", Country: "Türkiye", Classification: "storefront"}
	testProductDefaults  = ProductDefaults{Type: "physical", Classification: "storefront"}
)

func newTestResolver(gw ledger.Gateway) *Resolver {
	return NewResolver(gw, testRules(), testCustomerDefaults, testProductDefaults, nil, zap.NewNop())
}

func testContact() ledger.CustomerContact {
	return ledger.CustomerContact{
		FirstName: "  Ada ",
		LastName:  "Lovelace",
		Email:     " Ada.Lovelace@Example.com ",
		Phone:     "+90 555 000 00 00",
		Address:   "Moda Cd. 1",
		City:      "İstanbul",
		District:  "Kadıköy",
	}
}

func product(slug string, categories ...string) ledger.Product {
	return ledger.Product{ID: uuid.New(), Slug: slug, Name: slug, Kind: ledger.ProductKindSimple, CategorySlugs: categories}
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

func TestResolver_CustomerDraft(t *testing.T) {
	draft := newTestResolver(new(MockGateway)).CustomerDraft(testContact())

	assert.Equal(t, "Ada", draft.Name)
	assert.Equal(t, "Ada.Lovelace@Example.com", draft.Email)
	assert.Equal(t, "11111111111", draft.NationalID)
	assert.Equal(t, "Türkiye", draft.Country)
	assert.Equal(t, "storefront", draft.Classification)
	assert.Equal(t, "Kadıköy", draft.District)
}

func TestResolver_ResolveCustomer_Created(t *testing.T) {
	gw := new(MockGateway)
	created := &ledger.RemoteCustomer{ID: "42", Email: "Ada.Lovelace@Example.com"}
	gw.On("CreateCustomer", mock.Anything, mock.AnythingOfType("ledger.CustomerDraft")).Return(created, nil)

	customer, err := newTestResolver(gw).ResolveCustomer(context.Background(), testContact())

	require.NoError(t, err)
	assert.Equal(t, "42", customer.ID)
	gw.AssertNotCalled(t, "ListCustomers", mock.Anything)
}

func TestResolver_ResolveCustomer_ConflictMatchesFoldedEmail(t *testing.T) {
	gw := new(MockGateway)
	gw.On("CreateCustomer", mock.Anything, mock.Anything).Return(nil, ledger.ErrAlreadyExists)
	gw.On("ListCustomers", mock.Anything).Return([]ledger.RemoteCustomer{
		{ID: "7", Email: "someone@example.com"},
		{ID: "9", Email: "ada.lovelace@example.com  "},
	}, nil)

	customer, err := newTestResolver(gw).ResolveCustomer(context.Background(), testContact())

	require.NoError(t, err)
	assert.Equal(t, "9", customer.ID)
	gw.AssertExpectations(t)
}

func TestResolver_ResolveCustomer_ConflictWithoutMatch(t *testing.T) {
	gw := new(MockGateway)
	gw.On("CreateCustomer", mock.Anything, mock.Anything).Return(nil, ledger.ErrAlreadyExists)
	gw.On("ListCustomers", mock.Anything).Return([]ledger.RemoteCustomer{{ID: "7", Email: "someone@example.com"}}, nil)

	_, err := newTestResolver(gw).ResolveCustomer(context.Background(), testContact())

	assert.ErrorIs(t, err, ledger.ErrRemoteNotFound)
}

func TestResolver_ResolveCustomer_Failures(t *testing.T) {
	listFailure := errors.New("listing broke")
	tests := []struct {
		name      string
		createErr error
		listErr   error
		wantErr   error
	}{
		{"location mismatch", ledger.ErrLocationMismatch, nil, ledger.ErrLocationMismatch},
		{"remote unavailable", ledger.ErrRemoteUnavailable, nil, ledger.ErrRemoteUnavailable},
		{"retries exhausted", ledger.ErrRetriesExhausted, nil, ledger.ErrRetriesExhausted},
		{"lookup after conflict fails", ledger.ErrAlreadyExists, listFailure, listFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(MockGateway)
			gw.On("CreateCustomer", mock.Anything, mock.Anything).Return(nil, tt.createErr)
			gw.On("ListCustomers", mock.Anything).Return(nil, tt.listErr).Maybe()

			_, err := newTestResolver(gw).ResolveCustomer(context.Background(), testContact())

			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestResolver_ResolveCustomer_InvalidContact(t *testing.T) {
	gw := new(MockGateway)
	contact := testContact()
	contact.Email = "not-an-email"

	_, err := newTestResolver(gw).ResolveCustomer(context.Background(), contact)

	assert.ErrorIs(t, err, ledger.ErrInvalidCustomer)
	gw.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		a, b string
	}{
		{"Ada@Example.com", "ada@example.com"},
		{"  ada@example.com\t", "ADA@EXAMPLE.COM"},
		{"STRASSE@example.com", "strasse@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.a, func(t *testing.T) {
			assert.Equal(t, normalizeEmail(tt.a), normalizeEmail(tt.b))
		})
	}
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

func TestResolver_ProductDraft(t *testing.T) {
	r := newTestResolver(new(MockGateway))

	plush := r.ProductDraft(product("ayicik", "hazir-pelus"), dec("250"))
	mug := r.ProductDraft(product("kupa"), dec("80"))

	assert.Equal(t, "ayicik-hp", plush.Code)
	assert.Equal(t, "ayicik (Hazır Peluş)", plush.Name)
	assert.True(t, plush.TaxRate.Equal(dec("10")))
	assert.Equal(t, "kupa-std", mug.Code)
	assert.True(t, mug.TaxRate.Equal(dec("20")))
	assert.True(t, mug.Price.Equal(dec("80")))
	assert.Equal(t, "physical", mug.Type)
}

func TestResolver_ResolveProduct_ConflictMatchesCode(t *testing.T) {
	gw := new(MockGateway)
	gw.On("CreateProduct", mock.Anything, mock.Anything).Return(nil, ledger.ErrAlreadyExists)
	gw.On("ListProducts", mock.Anything).Return([]ledger.RemoteProduct{
		{ID: "p-1", Code: "kupa"},
		{ID: "p-2", Code: "kupa-std"},
	}, nil)

	remote, err := newTestResolver(gw).ResolveProduct(context.Background(), product("kupa"), dec("80"), nil)

	require.NoError(t, err)
	assert.Equal(t, "p-2", remote.ID)
}

func TestResolver_ResolveProduct_MemoizesByCode(t *testing.T) {
	gw := new(MockGateway)
	gw.On("CreateProduct", mock.Anything, mock.MatchedBy(func(d ledger.ProductDraft) bool {
		return d.Code == "kupa-std"
	})).Return(&ledger.RemoteProduct{ID: "p-1", Code: "kupa-std"}, nil).Once()
	r := newTestResolver(gw)
	seen := ProductCache{}

	first, err := r.ResolveProduct(context.Background(), product("kupa"), dec("80"), seen)
	require.NoError(t, err)
	second, err := r.ResolveProduct(context.Background(), product("kupa"), dec("80"), seen)
	require.NoError(t, err)

	assert.Same(t, first, second)
	gw.AssertNumberOfCalls(t, "CreateProduct", 1)
}

func TestResolver_ResolveProduct_ErrorNamesCode(t *testing.T) {
	gw := new(MockGateway)
	gw.On("CreateProduct", mock.Anything, mock.Anything).Return(nil, ledger.ErrRemoteRequestFailed)

	_, err := newTestResolver(gw).ResolveProduct(context.Background(), product("kupa"), dec("80"), ProductCache{})

	assert.ErrorIs(t, err, ledger.ErrRemoteRequestFailed)
	assert.Contains(t, err.Error(), "kupa-std")
}
