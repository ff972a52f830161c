package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

const listCategories = `SELECT id, name, label, type, icon, sort_order FROM categories ORDER BY sort_order, name`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.QueryContext(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Category
	for rows.Next() {
		var i Category
		if err := rows.Scan(&i.ID, &i.Name, &i.Label, &i.Type, &i.Icon, &i.SortOrder); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getCategory = `SELECT id, name, label, type, icon, sort_order FROM categories WHERE id = ?`

func (q *Queries) GetCategory(ctx context.Context, id string) (Category, error) {
	var i Category
	err := q.db.QueryRowContext(ctx, getCategory, id).Scan(&i.ID, &i.Name, &i.Label, &i.Type, &i.Icon, &i.SortOrder)
	return i, err
}

const createCategory = `INSERT INTO categories (id, name, label, type, icon, sort_order) VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateCategory(ctx context.Context, arg Category) error {
	_, err := q.db.ExecContext(ctx, createCategory, arg.ID, arg.Name, arg.Label, arg.Type, arg.Icon, arg.SortOrder)
	return err
}

const updateCategory = `UPDATE categories SET name = ?, label = ?, type = ?, icon = ?, sort_order = ? WHERE id = ?`

func (q *Queries) UpdateCategory(ctx context.Context, arg Category) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateCategory, arg.Name, arg.Label, arg.Type, arg.Icon, arg.SortOrder, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteCategory = `DELETE FROM categories WHERE id = ?`

func (q *Queries) DeleteCategory(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteCategory, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createTransaction = `INSERT INTO transactions (id, type, category, amount_cents, description, occurred_at, created_by)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, arg Transaction) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID, arg.Type, arg.Category, arg.AmountCents, arg.Description, arg.OccurredAt, arg.CreatedBy)
	return err
}

const getTransaction = `SELECT id, type, category, amount_cents, description, occurred_at, created_by
FROM transactions WHERE id = ?`

func (q *Queries) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	var i Transaction
	err := q.db.QueryRowContext(ctx, getTransaction, id).Scan(
		&i.ID, &i.Type, &i.Category, &i.AmountCents, &i.Description, &i.OccurredAt, &i.CreatedBy)
	return i, err
}

const updateTransaction = `UPDATE transactions
SET type = ?, category = ?, amount_cents = ?, description = ?, occurred_at = ?
WHERE id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, arg Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		arg.Type, arg.Category, arg.AmountCents, arg.Description, arg.OccurredAt, arg.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteTransaction = `DELETE FROM transactions WHERE id = ?`

func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteTransaction, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListTransactionsParams uses empty strings for "no bound".
type ListTransactionsParams struct {
	From     string
	To       string
	Category string
	Type     string
	Limit    int64
}

const listTransactions = `SELECT id, type, category, amount_cents, description, occurred_at, created_by
FROM transactions
WHERE (?1 = '' OR occurred_at >= ?1)
  AND (?2 = '' OR occurred_at < ?2)
  AND (?3 = '' OR category = ?3)
  AND (?4 = '' OR type = ?4)
ORDER BY occurred_at DESC, rowid DESC
LIMIT CASE WHEN ?5 > 0 THEN ?5 ELSE -1 END`

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions, arg.From, arg.To, arg.Category, arg.Type, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(&i.ID, &i.Type, &i.Category, &i.AmountCents, &i.Description, &i.OccurredAt, &i.CreatedBy); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const productColumns = `id, name, name_bn, category, purchase_price_cents, sale_price_min_cents, sale_price_max_cents, current_stock, min_stock`

func scanProduct(s interface{ Scan(...interface{}) error }) (Product, error) {
	var i Product
	err := s.Scan(&i.ID, &i.Name, &i.NameBn, &i.Category, &i.PurchasePriceCents,
		&i.SalePriceMinCents, &i.SalePriceMaxCents, &i.CurrentStock, &i.MinStock)
	return i, err
}

const listProducts = `SELECT ` + productColumns + ` FROM products ORDER BY name`

func (q *Queries) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.QueryContext(ctx, listProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Product
	for rows.Next() {
		i, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getProduct = `SELECT ` + productColumns + ` FROM products WHERE id = ?`

func (q *Queries) GetProduct(ctx context.Context, id string) (Product, error) {
	return scanProduct(q.db.QueryRowContext(ctx, getProduct, id))
}

const upsertProduct = `INSERT INTO products (` + productColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    name = excluded.name,
    name_bn = excluded.name_bn,
    category = excluded.category,
    purchase_price_cents = excluded.purchase_price_cents,
    sale_price_min_cents = excluded.sale_price_min_cents,
    sale_price_max_cents = excluded.sale_price_max_cents,
    current_stock = excluded.current_stock,
    min_stock = excluded.min_stock`

func (q *Queries) UpsertProduct(ctx context.Context, arg Product) error {
	_, err := q.db.ExecContext(ctx, upsertProduct,
		arg.ID, arg.Name, arg.NameBn, arg.Category, arg.PurchasePriceCents,
		arg.SalePriceMinCents, arg.SalePriceMaxCents, arg.CurrentStock, arg.MinStock)
	return err
}

const updateProductStock = `UPDATE products SET current_stock = ? WHERE id = ?`

func (q *Queries) UpdateProductStock(ctx context.Context, id string, stock int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateProductStock, stock, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const deleteProduct = `DELETE FROM products WHERE id = ?`

func (q *Queries) DeleteProduct(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteProduct, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const createInventoryLog = `INSERT INTO inventory_logs (id, product_id, type, quantity, unit_price_cents, total_cents, occurred_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateInventoryLog(ctx context.Context, arg InventoryLog) error {
	_, err := q.db.ExecContext(ctx, createInventoryLog,
		arg.ID, arg.ProductID, arg.Type, arg.Quantity, arg.UnitPriceCents, arg.TotalCents, arg.OccurredAt)
	return err
}

const listInventoryLogs = `SELECT id, product_id, type, quantity, unit_price_cents, total_cents, occurred_at
FROM inventory_logs
WHERE product_id = ?1
ORDER BY occurred_at DESC, rowid DESC
LIMIT CASE WHEN ?2 > 0 THEN ?2 ELSE -1 END`

func (q *Queries) ListInventoryLogs(ctx context.Context, productID string, limit int64) ([]InventoryLog, error) {
	rows, err := q.db.QueryContext(ctx, listInventoryLogs, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InventoryLog
	for rows.Next() {
		var i InventoryLog
		if err := rows.Scan(&i.ID, &i.ProductID, &i.Type, &i.Quantity, &i.UnitPriceCents, &i.TotalCents, &i.OccurredAt); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getSetting = `SELECT value FROM settings WHERE key = ?`

func (q *Queries) GetSetting(ctx context.Context, key string) (int64, error) {
	var v int64
	err := q.db.QueryRowContext(ctx, getSetting, key).Scan(&v)
	return v, err
}

const putSetting = `INSERT INTO settings (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value`

func (q *Queries) PutSetting(ctx context.Context, key string, value int64) error {
	_, err := q.db.ExecContext(ctx, putSetting, key, value)
	return err
}
