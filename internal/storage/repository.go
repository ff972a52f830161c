package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"shopledger/internal/core"
	"shopledger/internal/store"

	_ "modernc.org/sqlite"
)

// Fixed width so that lexical order in SQLite matches chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

var (
	_ store.CategoryTable     = (*SQLiteRepository)(nil)
	_ store.TransactionTable  = (*SQLiteRepository)(nil)
	_ store.ProductTable      = (*SQLiteRepository)(nil)
	_ store.InventoryLogTable = (*SQLiteRepository)(nil)
	_ store.FlagStore         = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db)}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) SelectCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, len(rows))
	for i, c := range rows {
		out[i] = categoryFromRow(c)
	}
	return out, nil
}

func (r *SQLiteRepository) InsertCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.ID = uuid.NewString()
	if err := r.queries.CreateCategory(ctx, categoryToRow(c)); err != nil {
		return core.Category{}, fmt.Errorf("create category %q: %w", c.Name, classify(err))
	}
	slog.InfoContext(ctx, "Category saved to SQLite", "id", c.ID, "name", c.Name, "type", c.Type)
	return c, nil
}

func (r *SQLiteRepository) UpdateCategory(ctx context.Context, id string, p core.CategoryPatch) error {
	row, err := r.queries.GetCategory(ctx, id)
	if err != nil {
		return fmt.Errorf("get category %s: %w", id, classify(err))
	}
	c := categoryFromRow(row)
	p.Apply(&c)
	if err := c.Validate(); err != nil {
		return err
	}
	if _, err := r.queries.UpdateCategory(ctx, categoryToRow(c)); err != nil {
		return fmt.Errorf("update category %s: %w", id, classify(err))
	}
	return nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	n, err := r.queries.DeleteCategory(ctx, id)
	if err != nil {
		if isForeignKey(err) {
			return core.ErrCategoryInUse
		}
		return fmt.Errorf("delete category %s: %w", id, classify(err))
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) SelectTransactions(ctx context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	arg := ListTransactionsParams{
		Category: f.Category,
		Type:     string(f.Type),
		Limit:    int64(f.Limit),
	}
	if !f.From.IsZero() {
		arg.From = formatTime(f.From)
	}
	if !f.To.IsZero() {
		arg.To = formatTime(f.To)
	}
	rows, err := r.queries.ListTransactions(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// InsertTransactions writes the batch in a single SQL transaction: either
// every row is stored or none is.
func (r *SQLiteRepository) InsertTransactions(ctx context.Context, rows []core.Transaction) ([]core.Transaction, error) {
	sqlTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	q := r.queries.WithTx(sqlTx)
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		row.ID = uuid.NewString()
		if row.Timestamp.IsZero() {
			row.Timestamp = time.Now().UTC()
		}
		if err := q.CreateTransaction(ctx, transactionToRow(row)); err != nil {
			return nil, fmt.Errorf("create transaction: %w", classify(err))
		}
		out[i] = row
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transactions: %w", err)
	}

	slog.InfoContext(ctx, "Transactions saved to SQLite", "count", len(out))
	return out, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, id string, p core.TransactionPatch) error {
	row, err := r.queries.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", id, classify(err))
	}
	tx, err := transactionFromRow(row)
	if err != nil {
		return err
	}
	p.Apply(&tx)
	if _, err := r.queries.UpdateTransaction(ctx, transactionToRow(tx)); err != nil {
		return fmt.Errorf("update transaction %s: %w", id, classify(err))
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	n, err := r.queries.DeleteTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	slog.InfoContext(ctx, "Transaction deleted from SQLite", "id", id)
	return nil
}

func (r *SQLiteRepository) SelectProducts(ctx context.Context) ([]core.Product, error) {
	rows, err := r.queries.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]core.Product, len(rows))
	for i, p := range rows {
		out[i] = productFromRow(p)
	}
	return out, nil
}

func (r *SQLiteRepository) GetProduct(ctx context.Context, id string) (core.Product, error) {
	row, err := r.queries.GetProduct(ctx, id)
	if err != nil {
		return core.Product{}, fmt.Errorf("get product %s: %w", id, classify(err))
	}
	return productFromRow(row), nil
}

func (r *SQLiteRepository) UpsertProduct(ctx context.Context, p core.Product) (core.Product, error) {
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if err := r.queries.UpsertProduct(ctx, productToRow(p)); err != nil {
		return core.Product{}, fmt.Errorf("upsert product %s: %w", p.ID, classify(err))
	}
	return p, nil
}

func (r *SQLiteRepository) UpdateStock(ctx context.Context, id string, stock int64) error {
	n, err := r.queries.UpdateProductStock(ctx, id, stock)
	if err != nil {
		return fmt.Errorf("update stock %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("product %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) DeleteProduct(ctx context.Context, id string) error {
	n, err := r.queries.DeleteProduct(ctx, id)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("product %s: %w", id, core.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) InsertInventoryLog(ctx context.Context, l core.InventoryLog) (core.InventoryLog, error) {
	l.ID = uuid.NewString()
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now().UTC()
	}
	err := r.queries.CreateInventoryLog(ctx, InventoryLog{
		ID:             l.ID,
		ProductID:      l.ProductID,
		Type:           string(l.Type),
		Quantity:       l.Quantity,
		UnitPriceCents: l.UnitPrice.Cents,
		TotalCents:     l.TotalPrice.Cents,
		OccurredAt:     formatTime(l.Timestamp),
	})
	if err != nil {
		if isForeignKey(err) {
			return core.InventoryLog{}, fmt.Errorf("product %s: %w", l.ProductID, core.ErrNotFound)
		}
		return core.InventoryLog{}, fmt.Errorf("create inventory log: %w", classify(err))
	}
	return l, nil
}

func (r *SQLiteRepository) SelectInventoryLogs(ctx context.Context, productID string, limit int) ([]core.InventoryLog, error) {
	rows, err := r.queries.ListInventoryLogs(ctx, productID, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list inventory logs: %w", err)
	}
	out := make([]core.InventoryLog, 0, len(rows))
	for _, row := range rows {
		ts, err := parseTime(row.OccurredAt)
		if err != nil {
			return nil, err
		}
		out = append(out, core.InventoryLog{
			ID:         row.ID,
			ProductID:  row.ProductID,
			Type:       core.Direction(row.Type),
			Quantity:   row.Quantity,
			UnitPrice:  core.Money{Cents: row.UnitPriceCents},
			TotalPrice: core.Money{Cents: row.TotalCents},
			Timestamp:  ts,
		})
	}
	return out, nil
}

func (r *SQLiteRepository) Flag(ctx context.Context, key string) (bool, error) {
	v, err := r.queries.GetSetting(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v != 0, nil
}

func (r *SQLiteRepository) SetFlag(ctx context.Context, key string, value bool) error {
	var v int64
	if value {
		v = 1
	}
	if err := r.queries.PutSetting(ctx, key, v); err != nil {
		return fmt.Errorf("put setting %s: %w", key, err)
	}
	return nil
}

func categoryFromRow(c Category) core.Category {
	return core.Category{
		ID:        c.ID,
		Name:      c.Name,
		Label:     c.Label,
		Type:      core.TxType(c.Type),
		Icon:      c.Icon,
		SortOrder: int(c.SortOrder),
	}
}

func categoryToRow(c core.Category) Category {
	return Category{
		ID:        c.ID,
		Name:      c.Name,
		Label:     c.Label,
		Type:      string(c.Type),
		Icon:      c.Icon,
		SortOrder: int64(c.SortOrder),
	}
}

func transactionFromRow(row Transaction) (core.Transaction, error) {
	ts, err := parseTime(row.OccurredAt)
	if err != nil {
		return core.Transaction{}, err
	}
	tx := core.Transaction{
		ID:          row.ID,
		Type:        core.TxType(row.Type),
		Category:    row.Category,
		Amount:      core.Money{Cents: row.AmountCents},
		Description: row.Description,
		Timestamp:   ts,
	}
	if row.CreatedBy.Valid {
		by := row.CreatedBy.String
		tx.CreatedBy = &by
	}
	return tx, nil
}

func transactionToRow(tx core.Transaction) Transaction {
	row := Transaction{
		ID:          tx.ID,
		Type:        string(tx.Type),
		Category:    tx.Category,
		AmountCents: tx.Amount.Cents,
		Description: tx.Description,
		OccurredAt:  formatTime(tx.Timestamp),
	}
	if tx.CreatedBy != nil {
		row.CreatedBy = sql.NullString{String: *tx.CreatedBy, Valid: true}
	}
	return row
}

func productFromRow(p Product) core.Product {
	return core.Product{
		ID:            p.ID,
		Name:          p.Name,
		NameBn:        p.NameBn,
		Category:      p.Category,
		PurchasePrice: core.Money{Cents: p.PurchasePriceCents},
		SalePriceMin:  core.Money{Cents: p.SalePriceMinCents},
		SalePriceMax:  core.Money{Cents: p.SalePriceMaxCents},
		CurrentStock:  p.CurrentStock,
		MinStock:      p.MinStock,
	}
}

func productToRow(p core.Product) Product {
	return Product{
		ID:                 p.ID,
		Name:               p.Name,
		NameBn:             p.NameBn,
		Category:           p.Category,
		PurchasePriceCents: p.PurchasePrice.Cents,
		SalePriceMinCents:  p.SalePriceMin.Cents,
		SalePriceMaxCents:  p.SalePriceMax.Cents,
		CurrentStock:       p.CurrentStock,
		MinStock:           p.MinStock,
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func isForeignKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// classify maps driver errors onto the core error classes.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return core.ErrNotFound
	case isForeignKey(err):
		return fmt.Errorf("%w: %v", core.ErrConflict, err)
	case strings.Contains(err.Error(), "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", core.ErrConflict, err)
	case strings.Contains(err.Error(), "CHECK constraint failed"):
		return fmt.Errorf("%w: %v", core.ErrValidation, err)
	}
	return err
}
