package service

import (
	"context"
	"sync"
	"testing"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"
	"go-inventory-ledger/pkg/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: ":memory:",
		LogLevel:   logger.Silent,
	})
	require.NoError(t, err)
	require.NoError(t, repository.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

type recordingObserver struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingObserver) Observe(_ context.Context, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingObserver) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func (r *recordingObserver) count(outcome Outcome) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Outcome == outcome {
			n++
		}
	}
	return n
}

type testEnv struct {
	db       *gorm.DB
	products repository.ProductRepository
	skus     repository.SubVariantRepository
	ledger   repository.TransactionRepository
	catalog  CatalogService
	stock    StockService
	query    QueryService
	rec      Reconciler
	obs      *recordingObserver
	actor    Actor
}

func newTestEnv(t *testing.T, opts CatalogOptions) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	user := &model.User{Email: uuid.NewString() + "@example.com", FullName: "Stock Keeper", Password: "x", IsActive: true}
	require.NoError(t, db.Create(user).Error)

	txm := repository.NewTxManager(db)
	products := repository.NewProductRepo(db)
	obs := &recordingObserver{}

	return &testEnv{
		db:       db,
		products: products,
		skus:     repository.NewSubVariantRepo(db),
		ledger:   repository.NewTransactionRepo(db),
		catalog:  NewCatalogService(txm, products, obs, opts),
		stock:    NewStockService(txm, obs),
		query:    NewQueryService(products, repository.NewTransactionRepo(db), nil),
		rec:      NewReconciler(txm, products, obs),
		obs:      obs,
		actor:    Actor{ID: user.ID, Name: user.FullName},
	}
}

func qty(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func qtyPtr(s string) *decimal.Decimal {
	d := qty(s)
	return &d
}

// createSimple creates a product with one "Size" variant whose options
// hold the given opening stocks.
func (e *testEnv) createSimple(t *testing.T, name string, stocks ...string) (*model.Product, []model.SubVariant) {
	t.Helper()
	var opts []OptionInput
	for i, s := range stocks {
		opts = append(opts, OptionInput{Value: string(rune('A' + i)), Stock: qtyPtr(s)})
	}
	p, err := e.catalog.CreateProduct(context.Background(), CreateProductInput{
		Name:     name,
		Variants: []VariantInput{{Name: "Size", Options: opts}},
	}, e.actor)
	require.NoError(t, err)
	return p, p.Variants[0].Options
}

// requireConsistent checks that the product total equals the sum of its
// SKUs and that every SKU equals its ledger balance.
func (e *testEnv) requireConsistent(t *testing.T, productID uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	p, err := e.products.FindWithVariants(ctx, productID)
	require.NoError(t, err)

	sum := decimal.Zero
	for _, v := range p.Variants {
		for _, sv := range v.Options {
			sum = sum.Add(sv.Stock)
			audit, err := e.rec.AuditSubVariant(ctx, sv.ID)
			require.NoError(t, err)
			require.True(t, audit.Consistent, "sku %s: stock %s, drift %s", sv.SKU, sv.Stock, audit.Drift)
		}
	}
	require.True(t, p.TotalStock.Equal(sum), "total %s != sum %s", p.TotalStock, sum)
}
