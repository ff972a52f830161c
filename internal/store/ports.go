package store

import (
	"context"

	"shopledger/internal/core"
)

// Ports for the persistence backend. Every call is a remote round trip from the
// point of view of the in-memory stores; implementations return core.ErrNotFound,
// core.ErrConflict or core.ErrValidation where they can classify a failure.
type (
	CategoryTable interface {
		// SelectCategories returns all categories ordered by sort order.
		SelectCategories(ctx context.Context) ([]core.Category, error)
		InsertCategory(ctx context.Context, c core.Category) (core.Category, error)
		UpdateCategory(ctx context.Context, id string, p core.CategoryPatch) error
		// DeleteCategory fails with core.ErrCategoryInUse while transactions reference it.
		DeleteCategory(ctx context.Context, id string) error
	}

	TransactionTable interface {
		// SelectTransactions returns matching rows, newest first.
		SelectTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error)
		// InsertTransactions stores every row in one batch and returns them with ids.
		InsertTransactions(ctx context.Context, rows []core.Transaction) ([]core.Transaction, error)
		UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) error
		DeleteTransaction(ctx context.Context, id string) error
	}

	ProductTable interface {
		SelectProducts(ctx context.Context) ([]core.Product, error)
		GetProduct(ctx context.Context, id string) (core.Product, error)
		// UpsertProduct inserts when p.ID is empty, otherwise replaces the row.
		UpsertProduct(ctx context.Context, p core.Product) (core.Product, error)
		UpdateStock(ctx context.Context, id string, stock int64) error
		DeleteProduct(ctx context.Context, id string) error
	}

	InventoryLogTable interface {
		InsertInventoryLog(ctx context.Context, l core.InventoryLog) (core.InventoryLog, error)
		// SelectInventoryLogs returns the newest logs for a product; limit <= 0 means all.
		SelectInventoryLogs(ctx context.Context, productID string, limit int) ([]core.InventoryLog, error)
	}

	// FlagStore is the persistent key-value flag area (e.g. the local admin bypass).
	FlagStore interface {
		Flag(ctx context.Context, key string) (bool, error)
		SetFlag(ctx context.Context, key string, value bool) error
	}
)
