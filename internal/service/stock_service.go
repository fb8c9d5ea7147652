package service

import (
	"context"
	"fmt"
	"time"

	"go-inventory-ledger/internal/model"
	"go-inventory-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Movement is one IN or OUT against a single SKU.
type Movement struct {
	SubVariantID uuid.UUID
	Quantity     decimal.Decimal
	Direction    model.TransactionType
}

type StockService interface {
	ApplyMovement(ctx context.Context, m Movement, actor Actor) (*model.StockTransaction, error)
	ApplyIn(ctx context.Context, subVariantID uuid.UUID, qty decimal.Decimal, actor Actor) (*model.StockTransaction, error)
	ApplyOut(ctx context.Context, subVariantID uuid.UUID, qty decimal.Decimal, actor Actor) (*model.StockTransaction, error)
}

type stockService struct {
	txm      repository.TxManager
	observer Observer
	now      func() time.Time
	tracer   trace.Tracer
}

func NewStockService(txm repository.TxManager, obs Observer) StockService {
	if obs == nil {
		obs = NopObserver{}
	}
	return &stockService{
		txm:      txm,
		observer: obs,
		now:      func() time.Time { return time.Now().UTC() },
		tracer:   otel.Tracer(tracerName),
	}
}

func (s *stockService) ApplyIn(ctx context.Context, subVariantID uuid.UUID, qty decimal.Decimal, actor Actor) (*model.StockTransaction, error) {
	return s.ApplyMovement(ctx, Movement{SubVariantID: subVariantID, Quantity: qty, Direction: model.TxIn}, actor)
}

func (s *stockService) ApplyOut(ctx context.Context, subVariantID uuid.UUID, qty decimal.Decimal, actor Actor) (*model.StockTransaction, error) {
	return s.ApplyMovement(ctx, Movement{SubVariantID: subVariantID, Quantity: qty, Direction: model.TxOut}, actor)
}

// movementResult is what the committed transaction leaves behind, kept for
// the observer.
type movementResult struct {
	row     *model.StockTransaction
	sku     string
	product *model.Product
}

// ApplyMovement runs validate, lock and read, compute, persist as one
// database transaction. Any error leaves SKU stock, product total and the
// ledger exactly as they were.
func (s *stockService) ApplyMovement(ctx context.Context, m Movement, actor Actor) (*model.StockTransaction, error) {
	ctx, span := s.tracer.Start(ctx, "StockService.ApplyMovement", trace.WithAttributes(
		attribute.String("sub_variant.id", m.SubVariantID.String()),
		attribute.String("movement.direction", string(m.Direction)),
		attribute.String("movement.quantity", m.Quantity.String()),
	))
	defer span.End()

	res, err := s.apply(ctx, m, actor)

	event := Event{
		Stage:        stageOf(m.Direction),
		ActorID:      actor.ID,
		ActorName:    actor.Name,
		SubVariantID: m.SubVariantID,
		Quantity:     m.Quantity,
		At:           s.now(),
	}
	if err != nil {
		event.Outcome, event.Reason = outcomeOf(err), err.Error()
		s.observer.Observe(ctx, event)
		recordSpanError(span, err)
		return nil, err
	}

	event.Outcome = OutcomeCommitted
	event.TransactionID = res.row.ID
	event.SKU = res.sku
	event.StockAfter = res.row.BalanceAfter
	event.ProductID = res.product.ID
	event.ProductName = res.product.Name
	event.TotalAfter = res.product.TotalStock
	s.observer.Observe(ctx, event)

	span.SetAttributes(attribute.String("transaction.id", res.row.ID.String()))
	return res.row, nil
}

func (s *stockService) apply(ctx context.Context, m Movement, actor Actor) (*movementResult, error) {
	if err := validateMovement(m); err != nil {
		return nil, err
	}
	delta := m.Direction.Signed(m.Quantity)

	var res movementResult
	err := s.txm.WithinTx(ctx, func(r repository.TxRepos) error {
		sv, err := r.SubVariants().FindForUpdate(ctx, m.SubVariantID)
		if err != nil {
			return notFoundAs(err, "sub variant", m.SubVariantID)
		}

		stock := sv.Stock.Add(delta)
		if stock.IsNegative() {
			return &InsufficientStockError{SubVariantID: sv.ID, Available: sv.Stock, Requested: m.Quantity}
		}
		if stock.GreaterThanOrEqual(maxQuantity) {
			return &ValidationError{Field: "quantity", Message: fmt.Sprintf("stock would reach %s", maxQuantity)}
		}

		productID, err := r.SubVariants().ProductIDOf(ctx, sv.ID)
		if err != nil {
			return err
		}
		product, err := r.Products().FindForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		total := product.TotalStock.Add(delta)
		if total.GreaterThanOrEqual(maxQuantity) {
			return &ValidationError{Field: "quantity", Message: fmt.Sprintf("product total would reach %s", maxQuantity)}
		}

		// Both rows are locked; a failed compare means someone wrote
		// without taking the lock.
		ok, err := r.SubVariants().CompareAndSetStock(ctx, sv.ID, sv.Stock, stock)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("sub variant %s: %w", sv.ID, repository.ErrStale)
		}
		now := s.now()
		ok, err = r.Products().CompareAndSetTotalStock(ctx, productID, product.TotalStock, total, now)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("product %s: %w", productID, repository.ErrStale)
		}
		product.TotalStock, product.UpdatedAt = total, &now

		row := &model.StockTransaction{
			SubVariantID: sv.ID,
			Quantity:     m.Quantity,
			Type:         m.Direction,
			BalanceAfter: stock,
			CreatedByID:  actorRef(actor),
		}
		if err := r.Transactions().Create(ctx, row); err != nil {
			return err
		}

		res = movementResult{row: row, sku: sv.SKU, product: product}
		return nil
	})
	if err != nil {
		return nil, classify("apply movement", err)
	}
	return &res, nil
}

func validateMovement(m Movement) error {
	if !m.Direction.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown direction %q", m.Direction)}
	}
	if m.SubVariantID == uuid.Nil {
		return &ValidationError{Field: "sub_variant_id", Message: "is required"}
	}
	if !m.Quantity.IsPositive() {
		return &ValidationError{Field: "quantity", Message: "must be greater than zero"}
	}
	if !m.Quantity.Equal(m.Quantity.Truncate(quantityScale)) {
		return &ValidationError{Field: "quantity", Message: fmt.Sprintf("at most %d decimal places", quantityScale)}
	}
	if m.Quantity.GreaterThanOrEqual(maxQuantity) {
		return &ValidationError{Field: "quantity", Message: fmt.Sprintf("must be less than %s", maxQuantity)}
	}
	return nil
}

func stageOf(d model.TransactionType) string {
	if d == model.TxOut {
		return StageStockOut
	}
	return StageStockIn
}
