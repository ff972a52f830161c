// Package adapters decorates backend ports with side effects that the core
// stores do not know about: event publication and write metrics.
package adapters

import (
	"context"
	"log/slog"

	"shopledger/internal/amqp"
	"shopledger/internal/core"
	"shopledger/internal/inventory"
	"shopledger/internal/store"
)

// Publisher sends ledger events to the message broker.
type Publisher interface {
	Publish(ctx context.Context, ev *amqp.LedgerEvent) error
}

type WriteObserver interface {
	ObserveLedgerWrite(op string, err error)
}

// PublishingTransactions wraps a TransactionTable. Committed writes are
// published as ledger events; a failed publish is logged and never fails
// the write.
type PublishingTransactions struct {
	store.TransactionTable
	pub Publisher
	obs WriteObserver
}

func NewPublishingTransactions(next store.TransactionTable, pub Publisher, obs WriteObserver) *PublishingTransactions {
	return &PublishingTransactions{TransactionTable: next, pub: pub, obs: obs}
}

func (p *PublishingTransactions) InsertTransactions(ctx context.Context, rows []core.Transaction) ([]core.Transaction, error) {
	saved, err := p.TransactionTable.InsertTransactions(ctx, rows)
	p.observe("insert", err)
	if err != nil {
		return nil, err
	}
	for _, tx := range saved {
		p.publish(ctx, amqp.NewTransactionEvent(amqp.EventTransactionAdded, tx))
	}
	return saved, nil
}

func (p *PublishingTransactions) UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) error {
	err := p.TransactionTable.UpdateTransaction(ctx, id, patch)
	p.observe("update", err)
	if err != nil {
		return err
	}
	p.publish(ctx, amqp.NewUpdateEvent(id, patch))
	return nil
}

func (p *PublishingTransactions) DeleteTransaction(ctx context.Context, id string) error {
	err := p.TransactionTable.DeleteTransaction(ctx, id)
	p.observe("delete", err)
	if err != nil {
		return err
	}
	p.publish(ctx, amqp.NewDeleteEvent(id))
	return nil
}

func (p *PublishingTransactions) observe(op string, err error) {
	if p.obs != nil {
		p.obs.ObserveLedgerWrite(op, err)
	}
}

func (p *PublishingTransactions) publish(ctx context.Context, ev *amqp.LedgerEvent) {
	publish(ctx, p.pub, ev)
}

// StockEvents returns an inventory outcome hook that publishes every stock
// adjustment, including compensated and partial ones.
func StockEvents(pub Publisher) func(context.Context, inventory.Outcome) {
	return func(ctx context.Context, out inventory.Outcome) {
		publish(ctx, pub, amqp.NewStockEvent(amqp.StockAdjustment{
			ProductID: out.ProductID,
			Direction: out.Direction,
			Quantity:  out.Quantity,
			NewStock:  out.NewStock,
			Result:    out.Result(),
		}))
	}
}

func publish(ctx context.Context, pub Publisher, ev *amqp.LedgerEvent) {
	if pub == nil {
		return
	}
	if err := pub.Publish(context.WithoutCancel(ctx), ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"event_id", ev.ID,
			"kind", ev.Kind,
			"error", err)
	}
}
