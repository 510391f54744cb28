package persistence

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/storefront/ledgersync/internal/domain/ledger"
	"github.com/storefront/ledgersync/internal/infrastructure/persistence/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func simpleProduct(slug string, categories ...string) ledger.Product {
	return ledger.Product{
		ID:            uuid.New(),
		Slug:          slug,
		Name:          slug + " name",
		Kind:          ledger.ProductKindSimple,
		CategorySlugs: categories,
	}
}

func seedOrder(t *testing.T, db *gorm.DB, order *ledger.Order) {
	t.Helper()
	require.NoError(t, db.Create(models.OrderModelFromDomain(order)).Error)
}

func bundleOrder(paidAt time.Time) *ledger.Order {
	shipping := int64(3000)
	mug := simpleProduct("mug")
	bear := simpleProduct("teddy", "hazir-pelus")
	return &ledger.Order{
		ID:            uuid.New(),
		Number:        "SF-" + uuid.NewString()[:8],
		PaymentAmount: 15000,
		ShippingCost:  &shipping,
		Customer: ledger.CustomerContact{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			City:      "Istanbul",
			District:  "Kadikoy",
		},
		PaidAt: paidAt,
		Lines: []ledger.CartLine{
			{
				Product:  ledger.Product{ID: uuid.New(), Slug: "gift-set", Name: "Gift Set", Kind: ledger.ProductKindBundle},
				Quantity: 1,
				Price:    dec("150"),
				BundledProducts: []ledger.BundledProduct{
					{Product: mug, Quantity: 1, Price: dec("70")},
					{Product: bear, Quantity: 1, Price: dec("100"), DiscountedPrice: decPtr("80")},
				},
			},
			{
				Product:         simpleProduct("card"),
				Quantity:        2,
				Price:           dec("10"),
				DiscountedPrice: decPtr("7.50"),
			},
		},
	}
}

func TestGormOrderRepository_GetOrderForSync(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	paidAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	want := bundleOrder(paidAt)
	seedOrder(t, db, want)

	t.Run("loads lines, bundle contents and categories in order", func(t *testing.T) {
		got, err := repo.GetOrderForSync(ctx, want.ID)
		require.NoError(t, err)

		assert.Equal(t, want.Number, got.Number)
		assert.Equal(t, int64(15000), got.PaymentAmount)
		require.NotNil(t, got.ShippingCost)
		assert.Equal(t, int64(3000), *got.ShippingCost)
		assert.Equal(t, want.Customer, got.Customer)
		assert.True(t, paidAt.Equal(got.PaidAt))
		assert.False(t, got.Synchronized)
		require.NoError(t, got.Validate())

		require.Len(t, got.Lines, 2)
		bundle := got.Lines[0]
		assert.True(t, bundle.Product.IsBundle())
		assert.Equal(t, "gift-set", bundle.Product.Slug)
		require.Len(t, bundle.BundledProducts, 2)
		assert.Equal(t, "mug", bundle.BundledProducts[0].Product.Slug)
		assert.Nil(t, bundle.BundledProducts[0].DiscountedPrice)
		assert.Equal(t, "teddy", bundle.BundledProducts[1].Product.Slug)
		assert.True(t, bundle.BundledProducts[1].Product.InCategory("hazir-pelus"))
		assert.True(t, dec("80").Equal(bundle.BundledProducts[1].EffectivePrice()))

		card := got.Lines[1]
		assert.Equal(t, 2, card.Quantity)
		assert.Empty(t, card.BundledProducts)
		require.NotNil(t, card.DiscountedPrice)
		assert.True(t, dec("7.50").Equal(*card.DiscountedPrice))
		assert.True(t, dec("10").Equal(card.Price))
	})

	t.Run("returns ErrOrderNotFound for unknown id", func(t *testing.T) {
		_, err := repo.GetOrderForSync(ctx, uuid.New())
		assert.ErrorIs(t, err, ledger.ErrOrderNotFound)
	})
}

func TestGormOrderRepository_MarkSynced(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormOrderRepository(db)
	syncedAt := time.Date(2024, 6, 2, 8, 30, 0, 0, time.UTC)
	repo.now = func() time.Time { return syncedAt }
	ctx := context.Background()

	order := bundleOrder(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	seedOrder(t, db, order)

	require.NoError(t, repo.MarkSynced(ctx, order.ID))
	// idempotent
	require.NoError(t, repo.MarkSynced(ctx, order.ID))

	got, err := repo.GetOrderForSync(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.Synchronized)

	var model models.OrderModel
	require.NoError(t, db.First(&model, "id = ?", order.ID).Error)
	require.NotNil(t, model.LedgerSyncedAt)
	assert.True(t, syncedAt.Equal(*model.LedgerSyncedAt))

	assert.ErrorIs(t, repo.MarkSynced(ctx, uuid.New()), ledger.ErrOrderNotFound)
}

func TestGormOrderRepository_ListUnsyncedOrderIDs(t *testing.T) {
	db := setupLedgerTestDB(t)
	repo := NewGormOrderRepository(db)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := bundleOrder(base.Add(2 * time.Hour))
	older := bundleOrder(base.Add(time.Hour))
	unpaid := bundleOrder(time.Time{})
	synced := bundleOrder(base)
	synced.Synchronized = true
	for _, o := range []*ledger.Order{newer, older, unpaid, synced} {
		seedOrder(t, db, o)
	}

	t.Run("oldest payment first, skipping unpaid and synced", func(t *testing.T) {
		ids, err := repo.ListUnsyncedOrderIDs(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{older.ID, newer.ID}, ids)
	})

	t.Run("respects limit", func(t *testing.T) {
		ids, err := repo.ListUnsyncedOrderIDs(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{older.ID}, ids)
	})

	t.Run("marked orders drop out", func(t *testing.T) {
		require.NoError(t, repo.MarkSynced(ctx, older.ID))
		ids, err := repo.ListUnsyncedOrderIDs(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, []uuid.UUID{newer.ID}, ids)
	})
}

func TestGormOrderRepository_MarkSyncedSQL(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	repo := NewGormOrderRepository(gormDB)
	orderID := uuid.New()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders" SET "ledger_synced"=$1,"ledger_synced_at"=$2 WHERE id = $3`)).
		WithArgs(true, sqlmock.AnyArg(), orderID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkSynced(context.Background(), orderID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_ListUnsyncedSQL(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	repo := NewGormOrderRepository(gormDB)
	first, second := uuid.New(), uuid.New()

	rows := sqlmock.NewRows([]string{"id"}).
		AddRow(first.String()).
		AddRow(second.String())
	mock.ExpectQuery(`SELECT "id" FROM "orders" WHERE paid_at IS NOT NULL AND ledger_synced = \$1 ORDER BY paid_at ASC LIMIT .*`).
		WithArgs(false, 25).
		WillReturnRows(rows)

	ids, err := repo.ListUnsyncedOrderIDs(context.Background(), 25)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first, second}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormOrderRepository_DatabaseError(t *testing.T) {
	gormDB, mock, mockDB := newMockDB(t)
	defer mockDB.Close()

	repo := NewGormOrderRepository(gormDB)
	mock.ExpectQuery(`SELECT \* FROM "orders"`).WillReturnError(assert.AnError)

	_, err := repo.GetOrderForSync(context.Background(), uuid.New())

	assert.ErrorIs(t, err, assert.AnError)
	assert.NotErrorIs(t, err, ledger.ErrOrderNotFound)
}
