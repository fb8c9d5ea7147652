package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Stages of the ledger that observers hear about.
const (
	StageCatalogCreate = "catalog.create"
	StageStockIn       = "stock.in"
	StageStockOut      = "stock.out"
	StageReconcile     = "ledger.reconcile"
)

type Outcome string

const (
	OutcomeCommitted Outcome = "committed"
	OutcomeRejected  Outcome = "rejected"
	OutcomeFailed    Outcome = "failed"
)

// Event describes one finished core operation. Committed events are only
// delivered after the database transaction has committed.
type Event struct {
	Stage         string          `json:"stage"`
	Outcome       Outcome         `json:"outcome"`
	ActorID       uuid.UUID       `json:"actor_id"`
	ActorName     string          `json:"actor_name,omitempty"`
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name,omitempty"`
	SubVariantID  uuid.UUID       `json:"sub_variant_id"`
	SKU           string          `json:"sku,omitempty"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	StockAfter    decimal.Decimal `json:"stock_after"`
	TotalAfter    decimal.Decimal `json:"total_after"`
	Reason        string          `json:"reason,omitempty"`
	At            time.Time       `json:"at"`
}

// Message is a one-line human summary of the event.
func (e Event) Message() string {
	who := e.ActorName
	if who == "" {
		who = e.ActorID.String()
	}
	switch {
	case e.Outcome != OutcomeCommitted:
		return fmt.Sprintf("%s %s by %s: %s", e.Stage, e.Outcome, who, e.Reason)
	case e.Stage == StageCatalogCreate:
		return fmt.Sprintf("%s created product '%s' with %s units", who, e.ProductName, e.TotalAfter)
	case e.Stage == StageStockIn:
		return fmt.Sprintf("%s added %s units of %s, stock now %s", who, e.Quantity, e.SKU, e.StockAfter)
	case e.Stage == StageStockOut:
		return fmt.Sprintf("%s removed %s units of %s, stock now %s", who, e.Quantity, e.SKU, e.StockAfter)
	}
	return fmt.Sprintf("%s %s by %s", e.Stage, e.Outcome, who)
}

// Observer receives ledger events. Observe must not block the caller for
// long and must not fail the operation it reports on.
type Observer interface {
	Observe(ctx context.Context, e Event)
}

// Observers fans one event out to every member in order.
type Observers []Observer

func (o Observers) Observe(ctx context.Context, e Event) {
	for _, obs := range o {
		obs.Observe(ctx, e)
	}
}

type NopObserver struct{}

func (NopObserver) Observe(context.Context, Event) {}

// LogObserver writes events to zap, at warn level for rejections and
// error level for failures.
type LogObserver struct {
	Log *zap.Logger
}

func (l LogObserver) Observe(_ context.Context, e Event) {
	fields := []zap.Field{
		zap.String("stage", e.Stage),
		zap.String("outcome", string(e.Outcome)),
		zap.Stringer("actor_id", e.ActorID),
	}
	if e.SubVariantID != uuid.Nil {
		fields = append(fields,
			zap.Stringer("sub_variant_id", e.SubVariantID),
			zap.String("quantity", e.Quantity.String()),
			zap.String("stock_after", e.StockAfter.String()),
		)
	}
	if e.ProductID != uuid.Nil {
		fields = append(fields,
			zap.Stringer("product_id", e.ProductID),
			zap.String("total_after", e.TotalAfter.String()),
		)
	}
	if e.Reason != "" {
		fields = append(fields, zap.String("reason", e.Reason))
	}

	switch e.Outcome {
	case OutcomeRejected:
		l.Log.Warn(e.Message(), fields...)
	case OutcomeFailed:
		l.Log.Error(e.Message(), fields...)
	default:
		l.Log.Info(e.Message(), fields...)
	}
}

// Actor is the authenticated user a mutation is attributed to.
type Actor struct {
	ID   uuid.UUID
	Name string
}
