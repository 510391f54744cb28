package ledgersync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/storefront/ledgersync/internal/domain/ledger"
	"github.com/storefront/ledgersync/internal/infrastructure/telemetry"
)

// Resolution describes how a remote entity was obtained
type Resolution string

const (
	ResolutionCreated   Resolution = "created"
	ResolutionRecovered Resolution = "recovered"
	ResolutionReused    Resolution = "reused"
)

// CustomerDefaults are the fixed values the ledger requires on every associate
type CustomerDefaults struct {
	// NationalID is a placeholder; the storefront does not collect one for retail buyers
	NationalID     string
	Country        string
	Classification string
}

// ProductDefaults are the fixed values sent with every good
type ProductDefaults struct {
	Type           string
	Classification string
}

// Resolver creates remote customers and products, or finds the existing record
// by natural key when the ledger reports a conflict.
type Resolver struct {
	gateway  ledger.Gateway
	rules    *ledger.CatalogRules
	customer CustomerDefaults
	product  ProductDefaults
	validate *validator.Validate
	metrics  *telemetry.SyncMetrics
	logger   *zap.Logger
}

// NewResolver creates a new Resolver
func NewResolver(
	gateway ledger.Gateway,
	rules *ledger.CatalogRules,
	customer CustomerDefaults,
	product ProductDefaults,
	metrics *telemetry.SyncMetrics,
	logger *zap.Logger,
) *Resolver {
	return &Resolver{
		gateway:  gateway,
		rules:    rules,
		customer: customer,
		product:  product,
		validate: validator.New(),
		metrics:  metrics,
		logger:   logger.Named("resolver"),
	}
}

// resolveOrCreate runs create and, on ErrAlreadyExists, scans the full remote
// collection for the entry matching the natural key.
func resolveOrCreate[T any](
	ctx context.Context,
	create func(context.Context) (*T, error),
	list func(context.Context) ([]T, error),
	match func(T) bool,
) (*T, Resolution, error) {
	created, err := create(ctx)
	if err == nil {
		return created, ResolutionCreated, nil
	}
	if !errors.Is(err, ledger.ErrAlreadyExists) {
		return nil, "", err
	}

	existing, listErr := list(ctx)
	if listErr != nil {
		return nil, "", fmt.Errorf("lookup after conflict: %w", listErr)
	}
	for i := range existing {
		if match(existing[i]) {
			return &existing[i], ResolutionRecovered, nil
		}
	}
	return nil, "", fmt.Errorf("%w: conflict reported but no entry matched", ledger.ErrRemoteNotFound)
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

// ResolveCustomer returns the remote associate for the buyer, creating it when needed.
// A rejected district/city pairing is logged and returned as ErrLocationMismatch.
func (r *Resolver) ResolveCustomer(ctx context.Context, contact ledger.CustomerContact) (*ledger.RemoteCustomer, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger_sync", "resolve_customer")
	defer span.End()

	draft := r.CustomerDraft(contact)
	if err := r.validate.Struct(draft); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: %v", ledger.ErrInvalidCustomer, err)
	}

	email := normalizeEmail(draft.Email)
	customer, resolution, err := resolveOrCreate(ctx,
		func(ctx context.Context) (*ledger.RemoteCustomer, error) {
			return r.gateway.CreateCustomer(ctx, draft)
		},
		r.gateway.ListCustomers,
		func(c ledger.RemoteCustomer) bool {
			return normalizeEmail(c.Email) == email
		},
	)
	if err != nil {
		if errors.Is(err, ledger.ErrLocationMismatch) {
			r.logger.Warn("Ledger rejected customer location",
				zap.String("city", draft.City),
				zap.String("district", draft.District),
				zap.Error(err),
			)
		}
		telemetry.RecordError(span, err)
		return nil, err
	}

	r.metrics.RecordEntityResolution(ctx, "customer", string(resolution))
	telemetry.SetAttributes(span,
		telemetry.SpanAttrRemoteCustomerID, customer.ID,
		"resolution", string(resolution),
	)
	r.logger.Debug("Customer resolved",
		zap.String("remote_id", customer.ID),
		zap.String("resolution", string(resolution)),
	)
	return customer, nil
}

// CustomerDraft builds the associate payload from the buyer's contact details
func (r *Resolver) CustomerDraft(contact ledger.CustomerContact) ledger.CustomerDraft {
	return ledger.CustomerDraft{
		Name:           strings.TrimSpace(contact.FirstName),
		Surname:        strings.TrimSpace(contact.LastName),
		Email:          strings.TrimSpace(contact.Email),
		Phone:          strings.TrimSpace(contact.Phone),
		NationalID:     r.customer.NationalID,
		Address:        strings.TrimSpace(contact.Address),
		City:           strings.TrimSpace(contact.City),
		District:       strings.TrimSpace(contact.District),
		Country:        r.customer.Country,
		Classification: r.customer.Classification,
	}
}

// normalizeEmail trims and case-folds an email for natural key comparison
func normalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// ---------------------------------------------------------------------------
// Products
// ---------------------------------------------------------------------------

// ProductCache memoizes remote products by code within a single order sync
type ProductCache map[string]*ledger.RemoteProduct

// ResolveProduct returns the remote good for p, creating it when needed.
// price is the product's effective catalog price.
func (r *Resolver) ResolveProduct(ctx context.Context, p ledger.Product, price decimal.Decimal, seen ProductCache) (*ledger.RemoteProduct, error) {
	draft := r.ProductDraft(p, price)
	if cached, ok := seen[draft.Code]; ok {
		r.metrics.RecordEntityResolution(ctx, "product", string(ResolutionReused))
		return cached, nil
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "ledger_sync", "resolve_product",
		telemetry.WithAttribute(telemetry.SpanAttrProductCode, draft.Code),
	)
	defer span.End()

	if err := r.validate.Struct(draft); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("%w: product %q: %v", ledger.ErrInvalidOrder, p.Slug, err)
	}

	product, resolution, err := resolveOrCreate(ctx,
		func(ctx context.Context) (*ledger.RemoteProduct, error) {
			return r.gateway.CreateProduct(ctx, draft)
		},
		r.gateway.ListProducts,
		func(rp ledger.RemoteProduct) bool {
			return rp.Code == draft.Code
		},
	)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("product %q: %w", draft.Code, err)
	}

	if seen != nil {
		seen[draft.Code] = product
	}
	r.metrics.RecordEntityResolution(ctx, "product", string(resolution))
	r.logger.Debug("Product resolved",
		zap.String("code", draft.Code),
		zap.String("remote_id", product.ID),
		zap.String("resolution", string(resolution)),
	)
	return product, nil
}

// ProductDraft builds the good payload with the derived code, name and tax rate
func (r *Resolver) ProductDraft(p ledger.Product, price decimal.Decimal) ledger.ProductDraft {
	return ledger.ProductDraft{
		Code:           r.rules.Code(p),
		Name:           r.rules.Name(p),
		TaxRate:        r.rules.TaxRate(p),
		Price:          price,
		Type:           r.product.Type,
		Classification: r.product.Classification,
	}
}
