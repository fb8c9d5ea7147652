package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxIn  TransactionType = "IN"
	TxOut TransactionType = "OUT"
)

// Valid reports whether t is one of the known directions.
func (t TransactionType) Valid() bool {
	return t == TxIn || t == TxOut
}

// Signed returns qty with the sign of the direction: IN adds, OUT subtracts.
func (t TransactionType) Signed(qty decimal.Decimal) decimal.Decimal {
	if t == TxOut {
		return qty.Neg()
	}
	return qty
}

// StockTransaction is one append-only ledger row. Rows are never updated or
// deleted once written.
type StockTransaction struct {
	BaseModel
	SubVariantID uuid.UUID       `gorm:"type:uuid;not null;index" json:"sub_variant_id"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"quantity"` // always > 0
	Type         TransactionType `gorm:"type:varchar(10);not null" json:"type"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"balance_after"` // SKU stock right after this row

	// Acting user. Nulled, never cascaded, when the user goes away.
	CreatedByID *uuid.UUID `gorm:"type:uuid;index" json:"created_by_id,omitempty"`
	CreatedBy   *User      `gorm:"foreignKey:CreatedByID;references:ID;constraint:OnDelete:SET NULL" json:"-"`
}
