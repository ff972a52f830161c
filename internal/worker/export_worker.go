package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"shopledger/internal/amqp"
	"shopledger/internal/core"
	"shopledger/internal/sheets"
)

// ExportObserver receives the outcome of every exported event.
type ExportObserver interface {
	ObserveExport(event string, err error)
}

// ExportWorker writes ledger events to the report sheet.
type ExportWorker struct {
	exporter  sheets.LedgerExporter
	observer  ExportObserver
	batchSize int
}

func NewExportWorker(exporter sheets.LedgerExporter, observer ExportObserver, batchSize int) *ExportWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ExportWorker{
		exporter:  exporter,
		observer:  observer,
		batchSize: batchSize,
	}
}

// HandleEvent processes a single ledger event from AMQP. Events that can never
// succeed are logged and dropped; anything else is returned so the delivery is
// requeued.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.LedgerEvent) error {
	slog.InfoContext(ctx, "Processing ledger event",
		"id", ev.ID,
		"kind", ev.Kind)

	err := w.export(ctx, ev)
	if w.observer != nil {
		w.observer.ObserveExport(string(ev.Kind), err)
	}
	if err == nil {
		return nil
	}
	if permanent(err) {
		slog.WarnContext(ctx, "Dropping ledger event",
			"id", ev.ID,
			"kind", ev.Kind,
			"error", err)
		return nil
	}
	return fmt.Errorf("export %s: %w", ev.Kind, err)
}

func (w *ExportWorker) export(ctx context.Context, ev *amqp.LedgerEvent) error {
	switch ev.Kind {
	case amqp.EventTransactionAdded:
		ref, err := w.exporter.AppendTransaction(ctx, *ev.Transaction)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "Exported transaction",
			"id", ev.Transaction.ID,
			"sheets_ref", ref,
			"amount_cents", ev.Transaction.Amount.Cents)
		return nil
	case amqp.EventTransactionUpdated:
		return w.exporter.UpdateTransaction(ctx, ev.TransactionID, *ev.Patch)
	case amqp.EventTransactionDeleted:
		return w.exporter.MarkDeleted(ctx, ev.TransactionID)
	case amqp.EventStockAdjusted:
		s := ev.Stock
		_, err := w.exporter.AppendStock(ctx, sheets.StockRow{
			ProductID: s.ProductID,
			Direction: s.Direction,
			Quantity:  s.Quantity,
			NewStock:  s.NewStock,
			Result:    s.Result,
			At:        ev.OccurredAt,
		})
		return err
	default:
		return core.Validation(fmt.Errorf("unknown event kind %q", ev.Kind))
	}
}

// Backfill exports the newest stored transactions that are missing from the
// sheet. It recovers from events lost while the worker was down; rows that are
// already exported are skipped by the exporter.
func (w *ExportWorker) Backfill(ctx context.Context, table TransactionSource) error {
	rows, err := table.SelectTransactions(ctx, core.TransactionFilter{Limit: w.batchSize})
	if err != nil {
		return fmt.Errorf("select transactions for backfill: %w", err)
	}
	if len(rows) == 0 {
		slog.InfoContext(ctx, "No transactions to backfill")
		return nil
	}

	successCount, errorCount := 0, 0
	// Oldest first so the sheet keeps chronological order.
	for i := len(rows) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := w.exporter.AppendTransaction(ctx, rows[i]); err != nil {
			slog.ErrorContext(ctx, "Failed to backfill transaction", "id", rows[i].ID, "error", err)
			errorCount++
			continue
		}
		successCount++
	}

	slog.InfoContext(ctx, "Backfill completed",
		"total", len(rows),
		"exported", successCount,
		"errors", errorCount)
	return nil
}

// TransactionSource is the read side of the transaction table.
type TransactionSource interface {
	SelectTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
}

func permanent(err error) bool {
	return errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrNotFound)
}
