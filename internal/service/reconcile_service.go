package service

import (
	"context"
	"time"

	"go-inventory-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Reconciliation compares a product's stored total with the sum of its
// SKUs. Drift is stored minus computed.
type Reconciliation struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Stored      decimal.Decimal `json:"stored_total"`
	Computed    decimal.Decimal `json:"computed_total"`
	Drift       decimal.Decimal `json:"drift"`
	Repaired    bool            `json:"repaired"`
}

// SKUAudit compares one SKU's stock with the balance of its ledger.
type SKUAudit struct {
	SubVariantID uuid.UUID       `json:"sub_variant_id"`
	SKU          string          `json:"sku"`
	Stock        decimal.Decimal `json:"stock"`
	LedgerIn     decimal.Decimal `json:"ledger_in"`
	LedgerOut    decimal.Decimal `json:"ledger_out"`
	Drift        decimal.Decimal `json:"drift"`
	Consistent   bool            `json:"consistent"`
}

type Reconciler interface {
	Reconcile(ctx context.Context, productID uuid.UUID, repair bool) (*Reconciliation, error)
	ReconcileAll(ctx context.Context, repair bool) ([]Reconciliation, error)
	AuditSubVariant(ctx context.Context, id uuid.UUID) (*SKUAudit, error)
}

type reconciler struct {
	txm      repository.TxManager
	products repository.ProductRepository
	observer Observer
	tracer   trace.Tracer
}

func NewReconciler(txm repository.TxManager, products repository.ProductRepository, obs Observer) Reconciler {
	if obs == nil {
		obs = NopObserver{}
	}
	return &reconciler{txm: txm, products: products, observer: obs, tracer: otel.Tracer(tracerName)}
}

// Reconcile locks the product, so no movement on it interleaves with the
// sum. The total is only written when repair is set and drift is non-zero.
func (s *reconciler) Reconcile(ctx context.Context, productID uuid.UUID, repair bool) (*Reconciliation, error) {
	ctx, span := s.tracer.Start(ctx, "Reconciler.Reconcile", trace.WithAttributes(
		attribute.String("product.id", productID.String()),
		attribute.Bool("repair", repair),
	))
	defer span.End()

	var rec Reconciliation
	err := s.txm.WithinTx(ctx, func(r repository.TxRepos) error {
		product, err := r.Products().FindForUpdate(ctx, productID)
		if err != nil {
			return notFoundAs(err, "product", productID)
		}

		computed, err := r.SubVariants().SumStockByProduct(ctx, productID)
		if err != nil {
			return err
		}

		rec = Reconciliation{
			ProductID:   product.ID,
			ProductCode: product.ProductCode,
			ProductName: product.Name,
			Stored:      product.TotalStock,
			Computed:    computed,
			Drift:       product.TotalStock.Sub(computed),
		}
		if !repair || rec.Drift.IsZero() {
			return nil
		}
		if err := r.Products().SetTotalStock(ctx, productID, computed); err != nil {
			return err
		}
		rec.Repaired = true
		return nil
	})
	if err != nil {
		err = classify("reconcile product", err)
		recordSpanError(span, err)
		return nil, err
	}

	if rec.Repaired {
		s.observer.Observe(ctx, Event{
			Stage:       StageReconcile,
			Outcome:     OutcomeCommitted,
			ProductID:   rec.ProductID,
			ProductName: rec.ProductName,
			TotalAfter:  rec.Computed,
			Reason:      "total drifted by " + rec.Drift.String(),
			At:          time.Now().UTC(),
		})
	}
	span.SetAttributes(attribute.String("drift", rec.Drift.String()))
	return &rec, nil
}

// ReconcileAll reconciles every product, each in its own transaction.
func (s *reconciler) ReconcileAll(ctx context.Context, repair bool) ([]Reconciliation, error) {
	ids, err := s.products.ListIDs(ctx)
	if err != nil {
		return nil, classify("list products", err)
	}

	out := make([]Reconciliation, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Reconcile(ctx, id, repair)
		if err != nil {
			return out, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *reconciler) AuditSubVariant(ctx context.Context, id uuid.UUID) (*SKUAudit, error) {
	ctx, span := s.tracer.Start(ctx, "Reconciler.AuditSubVariant",
		trace.WithAttributes(attribute.String("sub_variant.id", id.String())))
	defer span.End()

	var audit SKUAudit
	err := s.txm.WithinTx(ctx, func(r repository.TxRepos) error {
		sv, err := r.SubVariants().FindByID(ctx, id)
		if err != nil {
			return notFoundAs(err, "sub variant", id)
		}
		totals, err := r.Transactions().Totals(ctx, id)
		if err != nil {
			return err
		}
		audit = SKUAudit{
			SubVariantID: sv.ID,
			SKU:          sv.SKU,
			Stock:        sv.Stock,
			LedgerIn:     totals.In,
			LedgerOut:    totals.Out,
			Drift:        sv.Stock.Sub(totals.Balance()),
		}
		audit.Consistent = audit.Drift.IsZero()
		return nil
	})
	if err != nil {
		err = classify("audit sub variant", err)
		recordSpanError(span, err)
		return nil, err
	}
	return &audit, nil
}
