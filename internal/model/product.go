package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog entry. TotalStock is the running sum of the stock
// of every SubVariant below it and is only moved by stock movements.
type Product struct {
	BaseModel
	ProductNumber    int64           `gorm:"uniqueIndex;not null" json:"product_number"`
	ProductCode      string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"product_code"`
	Name             string          `gorm:"type:varchar(255);not null" json:"name"`
	HSNCode          *string         `gorm:"type:varchar(255)" json:"hsn_code,omitempty"`
	IsFavourite      bool            `gorm:"default:false" json:"is_favourite"`
	Active           bool            `gorm:"default:true;index" json:"active"`
	TotalStock       decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"total_stock"`
	Image            []byte          `json:"-"`
	ImageContentType string          `gorm:"type:varchar(50)" json:"image_content_type,omitempty"`
	UpdatedAt        *time.Time      `gorm:"autoUpdateTime:false" json:"updated_at,omitempty"`

	// Owner
	CreatedUserID uuid.UUID `gorm:"type:uuid;not null;index" json:"created_user_id"`
	CreatedUser   *User     `gorm:"foreignKey:CreatedUserID;references:ID;constraint:OnDelete:CASCADE" json:"-"`

	// Relasi
	Variants []Variant `gorm:"constraint:OnDelete:CASCADE" json:"variants,omitempty"`
}

// HasImage reports whether an image blob is attached.
func (p *Product) HasImage() bool {
	return len(p.Image) > 0
}

// Variant groups the options of one product dimension, e.g. "Size".
type Variant struct {
	BaseModel
	ProductID uuid.UUID    `gorm:"type:uuid;not null;index:idx_variant_product_name,priority:1" json:"product_id"`
	Name      string       `gorm:"type:varchar(100);not null;index:idx_variant_product_name,priority:2" json:"name"`
	Options   []SubVariant `gorm:"constraint:OnDelete:CASCADE" json:"options,omitempty"`
}

// SubVariant is the SKU, the smallest unit stock is tracked on.
type SubVariant struct {
	BaseModel
	VariantID uuid.UUID       `gorm:"type:uuid;not null;index:idx_subvariant_variant_value,priority:1" json:"variant_id"`
	Value     string          `gorm:"type:varchar(100);not null;index:idx_subvariant_variant_value,priority:2" json:"value"`
	SKU       string          `gorm:"type:varchar(255);uniqueIndex;not null" json:"sku"`
	Stock     decimal.Decimal `gorm:"type:decimal(20,8);not null;default:0" json:"stock"`

	Transactions []StockTransaction `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
