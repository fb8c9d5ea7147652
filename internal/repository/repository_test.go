package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go-inventory-ledger/internal/model"
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
	require.NoError(t, Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB) *model.User {
	t.Helper()
	user := &model.User{Email: uuid.NewString() + "@example.com", FullName: "Tester", Password: "x", IsActive: true}
	require.NoError(t, db.Create(user).Error)
	return user
}

// seedProduct writes one product with one variant per entry in options,
// each option holding the given stock.
func seedProduct(t *testing.T, db *gorm.DB, owner uuid.UUID, number int64, createdAt time.Time, stocks ...int64) (*model.Product, []model.SubVariant) {
	t.Helper()
	ctx := context.Background()

	total := decimal.Zero
	for _, s := range stocks {
		total = total.Add(decimal.NewFromInt(s))
	}

	p := &model.Product{
		BaseModel:     model.BaseModel{CreatedAt: createdAt},
		ProductNumber: number,
		ProductCode:   fmt.Sprintf("PROD-%d", number),
		Name:          fmt.Sprintf("Product %d", number),
		Active:        true,
		TotalStock:    total,
		CreatedUserID: owner,
	}
	require.NoError(t, NewProductRepo(db).Create(ctx, p))

	v := &model.Variant{ProductID: p.ID, Name: "Size"}
	require.NoError(t, NewVariantRepo(db).Create(ctx, v))

	var svs []model.SubVariant
	for i, s := range stocks {
		sv := model.SubVariant{
			VariantID: v.ID,
			Value:     fmt.Sprintf("opt-%d", i),
			SKU:       "SKU-" + uuid.NewString()[:8],
			Stock:     decimal.NewFromInt(s),
		}
		require.NoError(t, NewSubVariantRepo(db).Create(ctx, &sv))
		svs = append(svs, sv)
	}
	return p, svs
}
