package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"shopledger/internal/amqp"
	"shopledger/internal/core"
	"shopledger/internal/sheets"
)

type fakeExporter struct {
	appended []core.Transaction
	updated  map[string]core.TransactionPatch
	deleted  []string
	stock    []sheets.StockRow
	err      error
}

func newFakeExporter() *fakeExporter {
	return &fakeExporter{updated: map[string]core.TransactionPatch{}}
}

func (f *fakeExporter) AppendTransaction(_ context.Context, tx core.Transaction) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for _, a := range f.appended {
		if a.ID == tx.ID {
			return "existing", nil
		}
	}
	f.appended = append(f.appended, tx)
	return fmt.Sprintf("Ledger!A%d", len(f.appended)+1), nil
}

func (f *fakeExporter) UpdateTransaction(_ context.Context, id string, p core.TransactionPatch) error {
	if f.err != nil {
		return f.err
	}
	f.updated[id] = p
	return nil
}

func (f *fakeExporter) MarkDeleted(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeExporter) AppendStock(_ context.Context, r sheets.StockRow) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.stock = append(f.stock, r)
	return "Stock!A1", nil
}

type countingObserver struct {
	calls map[string][]error
}

func (o *countingObserver) ObserveExport(event string, err error) {
	if o.calls == nil {
		o.calls = map[string][]error{}
	}
	o.calls[event] = append(o.calls[event], err)
}

type fakeSource struct {
	rows []core.Transaction
	got  core.TransactionFilter
}

func (s *fakeSource) SelectTransactions(_ context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	s.got = f
	return s.rows, nil
}

func tx(id string) core.Transaction {
	return core.Transaction{
		ID:        id,
		Type:      core.TypeExpense,
		Category:  "rent",
		Amount:    core.Money{Cents: 5000},
		Timestamp: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestHandleEvent_Dispatch(t *testing.T) {
	exp := newFakeExporter()
	obs := &countingObserver{}
	w := NewExportWorker(exp, obs, 0)
	ctx := context.Background()

	amount := core.Money{Cents: 700}
	events := []*amqp.LedgerEvent{
		amqp.NewTransactionEvent(amqp.EventTransactionAdded, tx("t1")),
		amqp.NewUpdateEvent("t1", core.TransactionPatch{Amount: &amount}),
		amqp.NewDeleteEvent("t1"),
		amqp.NewStockEvent(amqp.StockAdjustment{ProductID: "p1", Direction: core.StockIn, Quantity: 4, NewStock: 14, Result: "committed"}),
	}
	for _, ev := range events {
		if err := w.HandleEvent(ctx, ev); err != nil {
			t.Fatalf("handle %s: %v", ev.Kind, err)
		}
	}

	if len(exp.appended) != 1 || exp.appended[0].ID != "t1" {
		t.Errorf("unexpected appended rows %v", exp.appended)
	}
	if p, ok := exp.updated["t1"]; !ok || p.Amount.Cents != 700 {
		t.Errorf("update not forwarded: %v", exp.updated)
	}
	if len(exp.deleted) != 1 || exp.deleted[0] != "t1" {
		t.Errorf("unexpected deletes %v", exp.deleted)
	}
	if len(exp.stock) != 1 || exp.stock[0].NewStock != 14 || exp.stock[0].At.IsZero() {
		t.Errorf("unexpected stock rows %v", exp.stock)
	}
	if len(obs.calls) != 4 {
		t.Errorf("expected 4 observed kinds, got %v", obs.calls)
	}
}

func TestHandleEvent_TransientErrorRequeues(t *testing.T) {
	exp := newFakeExporter()
	exp.err = core.Remote("append", errors.New("503 backend error"))
	obs := &countingObserver{}
	w := NewExportWorker(exp, obs, 0)

	err := w.HandleEvent(context.Background(), amqp.NewTransactionEvent(amqp.EventTransactionAdded, tx("t1")))
	if err == nil {
		t.Fatal("expected error so the delivery is requeued")
	}
	if !errors.Is(err, core.ErrRemote) {
		t.Errorf("expected remote error, got %v", err)
	}
	if got := obs.calls[string(amqp.EventTransactionAdded)]; len(got) != 1 || got[0] == nil {
		t.Errorf("failure not observed: %v", got)
	}
}

func TestHandleEvent_PermanentErrorDropped(t *testing.T) {
	exp := newFakeExporter()
	exp.err = fmt.Errorf("row: %w", core.ErrNotFound)
	w := NewExportWorker(exp, nil, 0)

	if err := w.HandleEvent(context.Background(), amqp.NewDeleteEvent("gone")); err != nil {
		t.Fatalf("expected permanent error to be dropped, got %v", err)
	}

	unknown := &amqp.LedgerEvent{ID: "x", Kind: "stock.counted"}
	if err := w.HandleEvent(context.Background(), unknown); err != nil {
		t.Fatalf("expected unknown kind to be dropped, got %v", err)
	}
}

func TestBackfill_OldestFirstAndIdempotent(t *testing.T) {
	exp := newFakeExporter()
	w := NewExportWorker(exp, nil, 50)
	src := &fakeSource{rows: []core.Transaction{tx("t3"), tx("t2"), tx("t1")}}
	ctx := context.Background()

	if err := w.Backfill(ctx, src); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if src.got.Limit != 50 {
		t.Errorf("limit = %d, want 50", src.got.Limit)
	}
	if len(exp.appended) != 3 || exp.appended[0].ID != "t1" || exp.appended[2].ID != "t3" {
		t.Fatalf("unexpected export order %v", exp.appended)
	}

	if err := w.Backfill(ctx, src); err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	if len(exp.appended) != 3 {
		t.Errorf("backfill duplicated rows: %d", len(exp.appended))
	}
}

func TestBackfill_Empty(t *testing.T) {
	w := NewExportWorker(newFakeExporter(), nil, 0)
	if err := w.Backfill(context.Background(), &fakeSource{}); err != nil {
		t.Fatalf("backfill: %v", err)
	}
}
