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

// TransactionFilter bounds created_at to [From, Until). Nil means open.
type TransactionFilter struct {
	From  *time.Time
	Until *time.Time
}

// TransactionKey is the keyset position of a ledger listing:
// created_at DESC, id DESC.
type TransactionKey struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// TransactionView is a ledger row joined with the names of what it moved.
// The names are read at query time and never stored on the row.
type TransactionView struct {
	model.StockTransaction
	SKU         string    `json:"sku"`
	OptionValue string    `json:"option_value"`
	VariantName string    `json:"variant_name"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
}

// LedgerTotals are the IN and OUT sums of one SKU's transactions.
type LedgerTotals struct {
	In  decimal.Decimal
	Out decimal.Decimal
}

// Balance is In - Out.
func (t LedgerTotals) Balance() decimal.Decimal {
	return t.In.Sub(t.Out)
}

// MovementPoint is the part of a ledger row that totals and daily movement
// charts need.
type MovementPoint struct {
	CreatedAt time.Time
	Type      model.TransactionType
	Quantity  decimal.Decimal
}

// TransactionRepository only appends and reads; there is no update or
// delete on the ledger.
type TransactionRepository interface {
	Create(ctx context.Context, tx *model.StockTransaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*TransactionView, error)
	List(ctx context.Context, f TransactionFilter, after *TransactionKey, limit int) ([]TransactionView, error)
	Totals(ctx context.Context, subVariantID uuid.UUID) (LedgerTotals, error)
	CountBySubVariant(ctx context.Context, subVariantID uuid.UUID) (int64, error)
	Movements(ctx context.Context, from, until time.Time) ([]MovementPoint, error)
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) Create(ctx context.Context, tx *model.StockTransaction) error {
	return wrap("create stock transaction", r.db.WithContext(ctx).Omit(clause.Associations).Create(tx).Error)
}

func (r *transactionRepo) joined(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("stock_transactions AS st").
		Select(`st.*,
			sv.sku AS sku,
			sv.value AS option_value,
			v.name AS variant_name,
			p.id AS product_id,
			p.name AS product_name`).
		Joins("JOIN sub_variants sv ON sv.id = st.sub_variant_id").
		Joins("JOIN variants v ON v.id = sv.variant_id").
		Joins("JOIN products p ON p.id = v.product_id")
}

func (r *transactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*TransactionView, error) {
	var rows []TransactionView
	if err := r.joined(ctx).Where("st.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, wrap("find stock transaction", err)
	}
	if len(rows) == 0 {
		return nil, wrap("find stock transaction", ErrNotFound)
	}
	return &rows[0], nil
}

func (r *transactionRepo) List(ctx context.Context, f TransactionFilter, after *TransactionKey, limit int) ([]TransactionView, error) {
	q := r.joined(ctx)
	if f.From != nil {
		q = q.Where("st.created_at >= ?", *f.From)
	}
	if f.Until != nil {
		q = q.Where("st.created_at < ?", *f.Until)
	}
	if after != nil {
		q = q.Where("(st.created_at < ? OR (st.created_at = ? AND st.id < ?))",
			after.CreatedAt, after.CreatedAt, after.ID)
	}

	rows := []TransactionView{}
	err := q.Order("st.created_at DESC").Order("st.id DESC").Limit(limit).Scan(&rows).Error
	return rows, wrap("list stock transactions", err)
}

// Totals adds the rows in Go so the result is exact on every backend.
func (r *transactionRepo) Totals(ctx context.Context, subVariantID uuid.UUID) (LedgerTotals, error) {
	var points []MovementPoint
	err := r.db.WithContext(ctx).Model(&model.StockTransaction{}).
		Select("type, quantity").
		Where("sub_variant_id = ?", subVariantID).
		Scan(&points).Error
	if err != nil {
		return LedgerTotals{}, wrap("ledger totals", err)
	}

	totals := LedgerTotals{In: decimal.Zero, Out: decimal.Zero}
	for _, p := range points {
		switch p.Type {
		case model.TxIn:
			totals.In = totals.In.Add(p.Quantity)
		case model.TxOut:
			totals.Out = totals.Out.Add(p.Quantity)
		}
	}
	return totals, nil
}

func (r *transactionRepo) CountBySubVariant(ctx context.Context, subVariantID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.StockTransaction{}).Where("sub_variant_id = ?", subVariantID).Count(&n).Error
	return n, wrap("count stock transactions", err)
}

// Movements returns the rows created in [from, until), oldest first.
func (r *transactionRepo) Movements(ctx context.Context, from, until time.Time) ([]MovementPoint, error) {
	points := []MovementPoint{}
	err := r.db.WithContext(ctx).Model(&model.StockTransaction{}).
		Select("created_at, type, quantity").
		Where("created_at >= ? AND created_at < ?", from, until).
		Order("created_at ASC").
		Scan(&points).Error
	return points, wrap("stock movements", err)
}
