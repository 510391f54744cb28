package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/storefront/ledgersync/internal/domain/ledger"
)

// OrderModel is the persistence model for a storefront order.
// The storefront owns the table; only the ledger_synced columns are written here.
type OrderModel struct {
	ID                uuid.UUID        `gorm:"type:uuid;primary_key"`
	Number            string           `gorm:"type:varchar(64);not null;uniqueIndex"`
	PaymentAmount     int64            `gorm:"not null;default:0"`
	FreeShipping      bool             `gorm:"not null;default:false"`
	ShippingCost      *int64           `gorm:"type:bigint"`
	CustomerFirstName string           `gorm:"type:varchar(100)"`
	CustomerLastName  string           `gorm:"type:varchar(100)"`
	CustomerEmail     string           `gorm:"type:varchar(255)"`
	CustomerPhone     string           `gorm:"type:varchar(50)"`
	CustomerAddress   string           `gorm:"type:text"`
	CustomerCity      string           `gorm:"type:varchar(100)"`
	CustomerDistrict  string           `gorm:"type:varchar(100)"`
	PaidAt            *time.Time       `gorm:"index"`
	LedgerSynced      bool             `gorm:"not null;default:false"`
	LedgerSyncedAt    *time.Time       `gorm:"index"`
	Lines             []OrderLineModel `gorm:"foreignKey:OrderID;references:ID"`
	CreatedAt         time.Time        `gorm:"not null"`
	UpdatedAt         time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the persistence model to a ledger Order.
// Lines must be preloaded together with their products.
func (m *OrderModel) ToDomain() *ledger.Order {
	order := &ledger.Order{
		ID:            m.ID,
		Number:        m.Number,
		PaymentAmount: m.PaymentAmount,
		FreeShipping:  m.FreeShipping,
		ShippingCost:  m.ShippingCost,
		Customer: ledger.CustomerContact{
			FirstName: m.CustomerFirstName,
			LastName:  m.CustomerLastName,
			Email:     m.CustomerEmail,
			Phone:     m.CustomerPhone,
			Address:   m.CustomerAddress,
			City:      m.CustomerCity,
			District:  m.CustomerDistrict,
		},
		Synchronized: m.LedgerSynced,
		Lines:        make([]ledger.CartLine, len(m.Lines)),
	}
	if m.PaidAt != nil {
		order.PaidAt = *m.PaidAt
	}
	for i := range m.Lines {
		order.Lines[i] = m.Lines[i].ToDomain()
	}
	return order
}

// FromDomain populates the persistence model from a ledger Order
func (m *OrderModel) FromDomain(o *ledger.Order) {
	m.ID = o.ID
	m.Number = o.Number
	m.PaymentAmount = o.PaymentAmount
	m.FreeShipping = o.FreeShipping
	m.ShippingCost = o.ShippingCost
	m.CustomerFirstName = o.Customer.FirstName
	m.CustomerLastName = o.Customer.LastName
	m.CustomerEmail = o.Customer.Email
	m.CustomerPhone = o.Customer.Phone
	m.CustomerAddress = o.Customer.Address
	m.CustomerCity = o.Customer.City
	m.CustomerDistrict = o.Customer.District
	m.LedgerSynced = o.Synchronized
	m.PaidAt = nil
	if !o.PaidAt.IsZero() {
		paidAt := o.PaidAt
		m.PaidAt = &paidAt
	}
	m.Lines = make([]OrderLineModel, len(o.Lines))
	for i, line := range o.Lines {
		m.Lines[i] = *OrderLineModelFromDomain(o.ID, i, line)
	}
}

// OrderModelFromDomain creates a new persistence model from a ledger Order
func OrderModelFromDomain(o *ledger.Order) *OrderModel {
	m := &OrderModel{}
	m.FromDomain(o)
	return m
}

// OrderLineModel is the persistence model for a cart line
type OrderLineModel struct {
	ID              uuid.UUID           `gorm:"type:uuid;primary_key"`
	OrderID         uuid.UUID           `gorm:"type:uuid;not null;index:idx_order_line_order,priority:1"`
	Position        int                 `gorm:"not null;default:0;index:idx_order_line_order,priority:2"`
	ProductID       uuid.UUID           `gorm:"type:uuid;not null"`
	Product         ProductModel        `gorm:"foreignKey:ProductID;references:ID"`
	Quantity        int                 `gorm:"not null"`
	Price           decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	DiscountedPrice decimal.NullDecimal `gorm:"type:decimal(18,2)"`
	BundleItems     []BundleItemModel   `gorm:"foreignKey:OrderLineID;references:ID"`
}

// TableName returns the table name for GORM
func (OrderLineModel) TableName() string {
	return "order_lines"
}

// ToDomain converts the persistence model to a ledger CartLine
func (m *OrderLineModel) ToDomain() ledger.CartLine {
	line := ledger.CartLine{
		Product:         m.Product.ToDomain(),
		Quantity:        m.Quantity,
		Price:           m.Price,
		DiscountedPrice: fromNullDecimal(m.DiscountedPrice),
	}
	if len(m.BundleItems) > 0 {
		line.BundledProducts = make([]ledger.BundledProduct, len(m.BundleItems))
		for i := range m.BundleItems {
			line.BundledProducts[i] = m.BundleItems[i].ToDomain()
		}
	}
	return line
}

// OrderLineModelFromDomain creates a new persistence model for the cart line at position
func OrderLineModelFromDomain(orderID uuid.UUID, position int, l ledger.CartLine) *OrderLineModel {
	m := &OrderLineModel{
		ID:              uuid.New(),
		OrderID:         orderID,
		Position:        position,
		ProductID:       l.Product.ID,
		Product:         *ProductModelFromDomain(l.Product),
		Quantity:        l.Quantity,
		Price:           l.Price,
		DiscountedPrice: toNullDecimal(l.DiscountedPrice),
		BundleItems:     make([]BundleItemModel, len(l.BundledProducts)),
	}
	for i, b := range l.BundledProducts {
		m.BundleItems[i] = BundleItemModel{
			ID:              uuid.New(),
			OrderLineID:     m.ID,
			Position:        i,
			ProductID:       b.Product.ID,
			Product:         *ProductModelFromDomain(b.Product),
			Quantity:        b.Quantity,
			Price:           b.Price,
			DiscountedPrice: toNullDecimal(b.DiscountedPrice),
		}
	}
	return m
}

// BundleItemModel is the persistence model for a constituent of a bundle cart line,
// priced as it was when the order was placed
type BundleItemModel struct {
	ID              uuid.UUID           `gorm:"type:uuid;primary_key"`
	OrderLineID     uuid.UUID           `gorm:"type:uuid;not null;index:idx_bundle_item_line,priority:1"`
	Position        int                 `gorm:"not null;default:0;index:idx_bundle_item_line,priority:2"`
	ProductID       uuid.UUID           `gorm:"type:uuid;not null"`
	Product         ProductModel        `gorm:"foreignKey:ProductID;references:ID"`
	Quantity        int                 `gorm:"not null;default:1"`
	Price           decimal.Decimal     `gorm:"type:decimal(18,2);not null"`
	DiscountedPrice decimal.NullDecimal `gorm:"type:decimal(18,2)"`
}

// TableName returns the table name for GORM
func (BundleItemModel) TableName() string {
	return "order_line_bundle_items"
}

// ToDomain converts the persistence model to a ledger BundledProduct
func (m *BundleItemModel) ToDomain() ledger.BundledProduct {
	return ledger.BundledProduct{
		Product:         m.Product.ToDomain(),
		Quantity:        m.Quantity,
		Price:           m.Price,
		DiscountedPrice: fromNullDecimal(m.DiscountedPrice),
	}
}

// ProductModel is the persistence model for a storefront catalog product
type ProductModel struct {
	ID         uuid.UUID              `gorm:"type:uuid;primary_key"`
	Slug       string                 `gorm:"type:varchar(150);not null;uniqueIndex"`
	Name       string                 `gorm:"type:varchar(255);not null"`
	Kind       ledger.ProductKind     `gorm:"type:varchar(20);not null;default:'simple'"`
	Categories []ProductCategoryModel `gorm:"foreignKey:ProductID;references:ID"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a ledger Product
func (m *ProductModel) ToDomain() ledger.Product {
	product := ledger.Product{
		ID:   m.ID,
		Slug: m.Slug,
		Name: m.Name,
		Kind: m.Kind,
	}
	if !product.Kind.IsValid() {
		product.Kind = ledger.ProductKindSimple
	}
	if len(m.Categories) > 0 {
		product.CategorySlugs = make([]string, len(m.Categories))
		for i, c := range m.Categories {
			product.CategorySlugs[i] = c.CategorySlug
		}
	}
	return product
}

// ProductModelFromDomain creates a new persistence model from a ledger Product
func ProductModelFromDomain(p ledger.Product) *ProductModel {
	m := &ProductModel{
		ID:         p.ID,
		Slug:       p.Slug,
		Name:       p.Name,
		Kind:       p.Kind,
		Categories: make([]ProductCategoryModel, len(p.CategorySlugs)),
	}
	for i, slug := range p.CategorySlugs {
		m.Categories[i] = ProductCategoryModel{ProductID: p.ID, CategorySlug: slug}
	}
	return m
}

// ProductCategoryModel links a product to a category slug
type ProductCategoryModel struct {
	ProductID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	CategorySlug string    `gorm:"type:varchar(100);primaryKey"`
}

// TableName returns the table name for GORM
func (ProductCategoryModel) TableName() string {
	return "product_categories"
}

func fromNullDecimal(d decimal.NullDecimal) *decimal.Decimal {
	if !d.Valid {
		return nil
	}
	v := d.Decimal
	return &v
}

func toNullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}
