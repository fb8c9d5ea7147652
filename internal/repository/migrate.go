package repository

import (
	"go-inventory-ledger/internal/model"

	"gorm.io/gorm"
)

// Migrate creates or updates the ledger schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.User{},
		&model.Product{},
		&model.Variant{},
		&model.SubVariant{},
		&model.StockTransaction{},
	)
}
