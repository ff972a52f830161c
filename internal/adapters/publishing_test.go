package adapters

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"shopledger/internal/amqp"
	"shopledger/internal/core"
	"shopledger/internal/inventory"
	"shopledger/internal/ledger"
	"shopledger/internal/store/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, ev *amqp.LedgerEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recordingPublisher) kinds() []amqp.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]amqp.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

type recordingObserver struct{ ops []string }

func (r *recordingObserver) ObserveLedgerWrite(op string, err error) {
	if err != nil {
		op += ":" + core.Kind(err)
	}
	r.ops = append(r.ops, op)
}

func TestPublishingTransactionsPublishesCommittedWrites(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	obs := &recordingObserver{}
	table := NewPublishingTransactions(memory.New(), pub, obs)
	led := ledger.New(table, nil, nil)
	require.NoError(t, led.Load(ctx))

	saved, err := led.AddMany(ctx, []core.Draft{
		{Type: core.TypeIncome, Category: "photocopy", Amount: core.Money{Cents: 100}},
		{Type: core.TypeIncome, Category: "printing", Amount: core.Money{Cents: 200}},
	})
	require.NoError(t, err)
	desc := "fixed"
	_, err = led.Update(ctx, saved[0].ID, core.TransactionPatch{Description: &desc})
	require.NoError(t, err)
	require.NoError(t, led.Delete(ctx, saved[1].ID, ledger.Approve))
	require.ErrorIs(t, led.Delete(ctx, saved[1].ID, ledger.Approve), core.ErrNotFound)

	require.Equal(t, []amqp.EventKind{
		amqp.EventTransactionAdded,
		amqp.EventTransactionAdded,
		amqp.EventTransactionUpdated,
		amqp.EventTransactionDeleted,
	}, pub.kinds())
	require.Equal(t, []string{"insert", "update", "delete", "delete:not_found_error"}, obs.ops)
	require.Equal(t, saved[1].ID, pub.events[3].TransactionID)
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{err: errors.New("circuit breaker is open")}
	led := ledger.New(NewPublishingTransactions(memory.New(), pub, nil), nil, nil)

	saved, err := led.AddMany(ctx, []core.Draft{{Type: core.TypeExpense, Category: "rent", Amount: core.Money{Cents: 100}}})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	require.Len(t, pub.kinds(), 1)
}

func TestStockEventsHook(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	backend := memory.New()
	led := ledger.New(backend, nil, nil)
	inv := inventory.New(backend, backend, led, inventory.WithOutcomeHook(StockEvents(pub)))

	p, err := backend.UpsertProduct(ctx, core.Product{Name: "Pen", Category: "stationery_sale", CurrentStock: 5})
	require.NoError(t, err)

	_, err = inv.AdjustStock(ctx, p.ID, core.StockOut, 2, core.Money{Cents: 1000}, "")
	require.NoError(t, err)
	_, err = inv.AdjustStock(ctx, p.ID, core.StockOut, 0, core.Money{Cents: 1000}, "")
	require.ErrorIs(t, err, core.ErrValidation)

	require.Equal(t, []amqp.EventKind{amqp.EventStockAdjusted}, pub.kinds())
	stock := pub.events[0].Stock
	require.Equal(t, int64(3), stock.NewStock)
	require.Equal(t, inventory.ResultCommitted, stock.Result)
}
