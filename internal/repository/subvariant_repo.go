package repository

import (
	"context"

	"go-inventory-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SubVariantRepository interface {
	Create(ctx context.Context, sv *model.SubVariant) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.SubVariant, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.SubVariant, error)
	ExistingSKUs(ctx context.Context, skus []string) ([]string, error)
	CompareAndSetStock(ctx context.Context, id uuid.UUID, expected, next decimal.Decimal) (bool, error)
	SumStockByProduct(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
	ProductIDOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

type subVariantRepo struct {
	db *gorm.DB
}

func NewSubVariantRepo(db *gorm.DB) SubVariantRepository {
	return &subVariantRepo{db}
}

func (r *subVariantRepo) Create(ctx context.Context, sv *model.SubVariant) error {
	return wrap("create sub variant", r.db.WithContext(ctx).Omit(clause.Associations).Create(sv).Error)
}

func (r *subVariantRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.SubVariant, error) {
	var sv model.SubVariant
	if err := r.db.WithContext(ctx).First(&sv, "id = ?", id).Error; err != nil {
		return nil, wrap("find sub variant", err)
	}
	return &sv, nil
}

// FindForUpdate reads the SKU row under SELECT ... FOR UPDATE. A second
// movement on the same SKU blocks here until the first one ends.
func (r *subVariantRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.SubVariant, error) {
	var sv model.SubVariant
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&sv, "id = ?", id).Error
	if err != nil {
		return nil, wrap("lock sub variant", err)
	}
	return &sv, nil
}

// ExistingSKUs returns the subset of skus already stored.
func (r *subVariantRepo) ExistingSKUs(ctx context.Context, skus []string) ([]string, error) {
	if len(skus) == 0 {
		return nil, nil
	}
	var found []string
	err := r.db.WithContext(ctx).Model(&model.SubVariant{}).Where("sku IN ?", skus).Pluck("sku", &found).Error
	return found, wrap("check skus", err)
}

// CompareAndSetStock writes next only while the row still holds expected.
// Negative values are never written. False means the row changed or is gone.
func (r *subVariantRepo) CompareAndSetStock(ctx context.Context, id uuid.UUID, expected, next decimal.Decimal) (bool, error) {
	if next.IsNegative() {
		return false, nil
	}
	res := r.db.WithContext(ctx).Model(&model.SubVariant{}).
		Where("id = ? AND stock = ?", id, expected).
		Update("stock", next)
	if res.Error != nil {
		return false, wrap("set stock", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *subVariantRepo) SumStockByProduct(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	var stocks []decimal.Decimal
	err := r.db.WithContext(ctx).Model(&model.SubVariant{}).
		Joins("JOIN variants ON variants.id = sub_variants.variant_id").
		Where("variants.product_id = ?", productID).
		Pluck("sub_variants.stock", &stocks).Error
	if err != nil {
		return decimal.Zero, wrap("sum stock", err)
	}
	return sumDecimals(stocks), nil
}

func (r *subVariantRepo) ProductIDOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var productIDs []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Variant{}).
		Joins("JOIN sub_variants ON sub_variants.variant_id = variants.id").
		Where("sub_variants.id = ?", id).
		Limit(1).
		Pluck("variants.product_id", &productIDs).Error
	if err != nil {
		return uuid.Nil, wrap("find product of sub variant", err)
	}
	if len(productIDs) == 0 {
		return uuid.Nil, wrap("find product of sub variant", ErrNotFound)
	}
	return productIDs[0], nil
}
