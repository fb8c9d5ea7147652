package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go-inventory-ledger/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStock_InAndOutKeepBalances(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{LogOpeningStock: true})
	ctx := context.Background()

	p, svs := env.createSimple(t, "Notebook", "5", "2")

	row, err := env.stock.ApplyIn(ctx, svs[0].ID, qty("3"), env.actor)
	require.NoError(t, err)
	assert.Equal(t, model.TxIn, row.Type)
	assert.True(t, row.BalanceAfter.Equal(qty("8")))
	require.NotNil(t, row.CreatedByID)
	assert.Equal(t, env.actor.ID, *row.CreatedByID)
	env.requireConsistent(t, p.ID)

	row, err = env.stock.ApplyOut(ctx, svs[1].ID, qty("1.5"), env.actor)
	require.NoError(t, err)
	assert.Equal(t, model.TxOut, row.Type)
	assert.True(t, row.Quantity.Equal(qty("1.5")), "quantity is stored unsigned")
	assert.True(t, row.BalanceAfter.Equal(qty("0.5")))
	env.requireConsistent(t, p.ID)

	stored, err := env.products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalStock.Equal(qty("8.5")), stored.TotalStock.String())
	require.NotNil(t, stored.UpdatedAt)

	last := env.obs.last()
	assert.Equal(t, StageStockOut, last.Stage)
	assert.Equal(t, OutcomeCommitted, last.Outcome)
	assert.Equal(t, svs[1].SKU, last.SKU)
	assert.True(t, last.StockAfter.Equal(qty("0.5")))
	assert.True(t, last.TotalAfter.Equal(qty("8.5")))
	assert.Equal(t, row.ID, last.TransactionID)
}

func TestStock_LedgerSumProperty(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{LogOpeningStock: true})
	ctx := context.Background()

	p, svs := env.createSimple(t, "Pen", "0", "10")

	steps := []struct {
		sku   int
		dir   model.TransactionType
		qty   string
		isErr bool
	}{
		{0, model.TxIn, "4", false},
		{0, model.TxOut, "5", true},
		{1, model.TxOut, "2.5", false},
		{0, model.TxOut, "4", false},
		{0, model.TxOut, "0.5", true},
		{1, model.TxIn, "0.5", false},
		{1, model.TxOut, "8", false},
		{1, model.TxOut, "0.5", true},
	}
	for i, st := range steps {
		_, err := env.stock.ApplyMovement(ctx, Movement{SubVariantID: svs[st.sku].ID, Quantity: qty(st.qty), Direction: st.dir}, env.actor)
		if st.isErr {
			var ise *InsufficientStockError
			require.ErrorAs(t, err, &ise, "step %d", i)
		} else {
			require.NoError(t, err, "step %d", i)
		}
		env.requireConsistent(t, p.ID)
	}

	for i, want := range []string{"0", "0"} {
		sv, err := env.skus.FindByID(ctx, svs[i].ID)
		require.NoError(t, err)
		assert.True(t, sv.Stock.Equal(qty(want)), "sku %d: %s", i, sv.Stock)
	}
	assert.Equal(t, 3, env.obs.count(OutcomeRejected))
}

func TestStock_RejectionChangesNothing(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{LogOpeningStock: true})
	ctx := context.Background()

	p, svs := env.createSimple(t, "Chair", "3")
	before, err := env.products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	rowsBefore, err := env.ledger.CountBySubVariant(ctx, svs[0].ID)
	require.NoError(t, err)

	_, err = env.stock.ApplyOut(ctx, svs[0].ID, qty("3.5"), env.actor)
	var ise *InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.True(t, ise.Available.Equal(qty("3")))
	assert.True(t, ise.Requested.Equal(qty("3.5")))
	assert.Equal(t, svs[0].ID, ise.SubVariantID)

	after, err := env.products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, after.TotalStock.Equal(before.TotalStock))
	assert.Equal(t, before.UpdatedAt, after.UpdatedAt)

	sv, err := env.skus.FindByID(ctx, svs[0].ID)
	require.NoError(t, err)
	assert.True(t, sv.Stock.Equal(qty("3")))

	rowsAfter, err := env.ledger.CountBySubVariant(ctx, svs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, rowsBefore, rowsAfter)

	last := env.obs.last()
	assert.Equal(t, OutcomeRejected, last.Outcome)
	assert.Contains(t, last.Reason, "insufficient stock")
}

func TestStock_ValidationAndNotFound(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{})
	ctx := context.Background()

	_, svs := env.createSimple(t, "Desk", "1")

	for name, q := range map[string]string{"zero": "0", "negative": "-2", "too precise": "0.000000001"} {
		t.Run(name, func(t *testing.T) {
			_, err := env.stock.ApplyIn(ctx, svs[0].ID, qty(q), env.actor)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "quantity", ve.Field)
		})
	}

	t.Run("unknown direction", func(t *testing.T) {
		_, err := env.stock.ApplyMovement(ctx, Movement{SubVariantID: svs[0].ID, Quantity: qty("1"), Direction: "SIDEWAYS"}, env.actor)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
	})

	t.Run("unknown sku", func(t *testing.T) {
		_, err := env.stock.ApplyOut(ctx, uuid.New(), qty("1"), env.actor)
		var nf *NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "sub variant", nf.Entity)
	})
}

func TestStock_FractionalSteps(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{LogOpeningStock: true})
	ctx := context.Background()

	p, svs := env.createSimple(t, "Thread", "0")
	id := svs[0].ID

	_, err := env.stock.ApplyIn(ctx, id, qty("0.3"), env.actor)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		row, err := env.stock.ApplyOut(ctx, id, qty("0.1"), env.actor)
		require.NoError(t, err, "out %d", i)
		env.requireConsistent(t, p.ID)
		if i == 2 {
			assert.Equal(t, "0", row.BalanceAfter.String())
		}
	}

	sv, err := env.skus.FindByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, sv.Stock.IsZero(), sv.Stock.String())

	for i := 0; i < 7; i++ {
		_, err := env.stock.ApplyIn(ctx, id, qty("0.1"), env.actor)
		require.NoError(t, err)
	}
	_, err = env.stock.ApplyOut(ctx, id, qty("0.7"), env.actor)
	require.NoError(t, err, "seven steps of 0.1 must cover 0.7")
	env.requireConsistent(t, p.ID)

	stored, err := env.products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalStock.IsZero(), stored.TotalStock.String())

	audit, err := env.rec.AuditSubVariant(ctx, id)
	require.NoError(t, err)
	assert.True(t, audit.Consistent)
	assert.Equal(t, "1", audit.LedgerIn.String())
	assert.Equal(t, "1", audit.LedgerOut.String())
	assert.True(t, audit.Drift.IsZero(), audit.Drift.String())
}

func TestStock_QuantityBound(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{LogOpeningStock: true})
	ctx := context.Background()

	p, svs := env.createSimple(t, "Grain", "999999999999")

	_, err := env.stock.ApplyIn(ctx, svs[0].ID, qty("1000000000000"), env.actor)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "quantity", ve.Field)

	_, err = env.stock.ApplyIn(ctx, svs[0].ID, qty("1"), env.actor)
	require.ErrorAs(t, err, &ve, "stock would no longer fit the column")
	assert.Equal(t, "quantity", ve.Field)

	_, err = env.stock.ApplyIn(ctx, svs[0].ID, qty("0.5"), env.actor)
	require.NoError(t, err)
	env.requireConsistent(t, p.ID)

	sv, err := env.skus.FindByID(ctx, svs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "999999999999.5", sv.Stock.String())
}

func TestStock_ConcurrentOutOnlyOneWins(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{LogOpeningStock: true})
	ctx := context.Background()

	p, svs := env.createSimple(t, "Ticket", "5")

	const workers = 2
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = env.stock.ApplyOut(ctx, svs[0].ID, qty("5"), env.actor)
		}(i)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		var ise *InsufficientStockError
		switch {
		case err == nil:
			ok++
		case errors.As(err, &ise):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)

	sv, err := env.skus.FindByID(ctx, svs[0].ID)
	require.NoError(t, err)
	assert.True(t, sv.Stock.IsZero())
	env.requireConsistent(t, p.ID)
}

func TestStock_CanceledContextHasNoEffect(t *testing.T) {
	env := newTestEnv(t, CatalogOptions{LogOpeningStock: true})

	p, svs := env.createSimple(t, "Bag", "2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := env.stock.ApplyIn(ctx, svs[0].ID, qty("1"), env.actor)
	require.Error(t, err)

	var pe *PersistenceError
	assert.ErrorAs(t, err, &pe)
	assert.Equal(t, OutcomeFailed, env.obs.last().Outcome)

	sv, err := env.skus.FindByID(context.Background(), svs[0].ID)
	require.NoError(t, err)
	assert.True(t, sv.Stock.Equal(qty("2")))
	env.requireConsistent(t, p.ID)
}
