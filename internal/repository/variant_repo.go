package repository

import (
	"context"

	"go-inventory-ledger/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VariantRepository interface {
	Create(ctx context.Context, variant *model.Variant) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Variant, error)
}

type variantRepo struct {
	db *gorm.DB
}

func NewVariantRepo(db *gorm.DB) VariantRepository {
	return &variantRepo{db}
}

func (r *variantRepo) Create(ctx context.Context, variant *model.Variant) error {
	return wrap("create variant", r.db.WithContext(ctx).Omit(clause.Associations).Create(variant).Error)
}

func (r *variantRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Variant, error) {
	var variant model.Variant
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", id).Error; err != nil {
		return nil, wrap("find variant", err)
	}
	return &variant, nil
}
