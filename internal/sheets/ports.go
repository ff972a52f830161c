package sheets

import (
	"context"
	"time"

	"shopledger/internal/core"
)

// StockRow is one stock movement as written to the report.
type StockRow struct {
	ProductID string
	Direction core.Direction
	Quantity  int64
	NewStock  int64
	Result    string
	At        time.Time
}

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		AppendTransaction(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}

	// LedgerAnnotator rewrites or flags rows already exported.
	LedgerAnnotator interface {
		UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) error
		MarkDeleted(ctx context.Context, id string) error
	}

	StockWriter interface {
		AppendStock(ctx context.Context, row StockRow) (rowRef string, err error)
	}

	// LedgerExporter is everything the export worker needs.
	LedgerExporter interface {
		LedgerWriter
		LedgerAnnotator
		StockWriter
	}
)
