package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxRepos are the repositories available inside one transaction. All of
// them share the transaction handle.
type TxRepos interface {
	Products() ProductRepository
	Variants() VariantRepository
	SubVariants() SubVariantRepository
	Transactions() TransactionRepository
}

// TxManager is the store's atomic boundary: every write made through the
// TxRepos commits together or not at all.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}

type txRepos struct {
	products     ProductRepository
	variants     VariantRepository
	subVariants  SubVariantRepository
	transactions TransactionRepository
}

func (r *txRepos) Products() ProductRepository         { return r.products }
func (r *txRepos) Variants() VariantRepository         { return r.variants }
func (r *txRepos) SubVariants() SubVariantRepository   { return r.subVariants }
func (r *txRepos) Transactions() TransactionRepository { return r.transactions }

type txManager struct {
	db *gorm.DB
}

func NewTxManager(db *gorm.DB) TxManager {
	return &txManager{db: db}
}

// WithinTx runs fn in a gorm transaction. An error or panic from fn rolls
// back; the error is returned unchanged.
func (m *txManager) WithinTx(ctx context.Context, fn func(r TxRepos) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := &txRepos{
			products:     NewProductRepo(tx),
			variants:     NewVariantRepo(tx),
			subVariants:  NewSubVariantRepo(tx),
			transactions: NewTransactionRepo(tx),
		}
		return fn(r)
	})
}
