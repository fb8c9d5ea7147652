package repository

import (
	"context"
	"time"

	"go-inventory-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProductKey is the keyset position of a product listing:
// created_at DESC, product_number ASC.
type ProductKey struct {
	CreatedAt     time.Time
	ProductNumber int64
}

// CatalogStats summarises the active catalog.
type CatalogStats struct {
	ActiveProducts int64           `json:"active_products"`
	LowStockSKUs   int64           `json:"low_stock_skus"`
	TotalUnits     decimal.Decimal `json:"total_units"`
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindWithVariants(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ExistsCode(ctx context.Context, code string) (bool, error)
	ExistsNumber(ctx context.Context, number int64) (bool, error)
	MaxProductNumber(ctx context.Context) (int64, error)
	ListActive(ctx context.Context, after *ProductKey, limit int) ([]model.Product, error)
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
	CompareAndSetTotalStock(ctx context.Context, id uuid.UUID, expected, next decimal.Decimal, at time.Time) (bool, error)
	SetTotalStock(ctx context.Context, id uuid.UUID, total decimal.Decimal) error
	SetActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error
	Stats(ctx context.Context, lowStock decimal.Decimal) (CatalogStats, error)
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

// Create inserts the product row only; variants are written separately.
func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	return wrap("create product", r.db.WithContext(ctx).Omit(clause.Associations).Create(product).Error)
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, wrap("find product", err)
	}
	return &product, nil
}

func (r *productRepo) FindWithVariants(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Preload("Variants", orderByCreated).
		Preload("Variants.Options", orderByCreated).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, wrap("find product", err)
	}
	return &product, nil
}

// FindForUpdate reads the product row and holds its lock until the
// surrounding transaction ends.
func (r *productRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	err := r.db.WithContext(ctx).
		Omit("image").
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, wrap("lock product", err)
	}
	return &product, nil
}

func (r *productRepo) ExistsCode(ctx context.Context, code string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Where("product_code = ?", code).Count(&n).Error
	return n > 0, wrap("check product code", err)
}

func (r *productRepo) ExistsNumber(ctx context.Context, number int64) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).Where("product_number = ?", number).Count(&n).Error
	return n > 0, wrap("check product number", err)
}

// MaxProductNumber returns 0 on an empty catalog.
func (r *productRepo) MaxProductNumber(ctx context.Context) (int64, error) {
	var max int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Select("COALESCE(MAX(product_number), 0)").
		Row().Scan(&max)
	return max, wrap("max product number", err)
}

func (r *productRepo) ListActive(ctx context.Context, after *ProductKey, limit int) ([]model.Product, error) {
	var products []model.Product
	q := r.db.WithContext(ctx).
		Omit("image").
		Preload("Variants", orderByCreated).
		Preload("Variants.Options", orderByCreated).
		Where("active = ?", true)
	if after != nil {
		q = q.Where("(created_at < ? OR (created_at = ? AND product_number > ?))",
			after.CreatedAt, after.CreatedAt, after.ProductNumber)
	}
	err := q.Order("created_at DESC").Order("product_number ASC").Limit(limit).Find(&products).Error
	return products, wrap("list products", err)
}

func (r *productRepo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&model.Product{}).Order("product_number ASC").Pluck("id", &ids).Error
	return ids, wrap("list product ids", err)
}

// CompareAndSetTotalStock writes next only while the aggregate still holds
// expected. False means the row changed or is gone.
func (r *productRepo) CompareAndSetTotalStock(ctx context.Context, id uuid.UUID, expected, next decimal.Decimal, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ? AND total_stock = ?", id, expected).
		Updates(map[string]interface{}{
			"total_stock": next,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, wrap("set total stock", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *productRepo) SetTotalStock(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).Where("id = ?", id).Update("total_stock", total)
	if res.Error != nil {
		return wrap("set total stock", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("set total stock", ErrNotFound)
	}
	return nil
}

func (r *productRepo) SetActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"active": active, "updated_at": at})
	if res.Error != nil {
		return wrap("set product active", res.Error)
	}
	if res.RowsAffected == 0 {
		return wrap("set product active", ErrNotFound)
	}
	return nil
}

// Stats counts active products, their SKUs holding less than lowStock,
// and the units across them.
func (r *productRepo) Stats(ctx context.Context, lowStock decimal.Decimal) (CatalogStats, error) {
	var stats CatalogStats
	db := r.db.WithContext(ctx)

	if err := db.Model(&model.Product{}).Where("active = ?", true).Count(&stats.ActiveProducts).Error; err != nil {
		return stats, wrap("count active products", err)
	}

	err := db.Model(&model.SubVariant{}).
		Joins("JOIN variants v ON v.id = sub_variants.variant_id").
		Joins("JOIN products p ON p.id = v.product_id").
		Where("p.active = ? AND sub_variants.stock < ?", true, lowStock).
		Count(&stats.LowStockSKUs).Error
	if err != nil {
		return stats, wrap("count low stock", err)
	}

	var totals []decimal.Decimal
	if err := db.Model(&model.Product{}).Where("active = ?", true).Pluck("total_stock", &totals).Error; err != nil {
		return stats, wrap("sum total stock", err)
	}
	stats.TotalUnits = sumDecimals(totals)
	return stats, nil
}

func orderByCreated(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC")
}
