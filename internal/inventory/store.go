// Package inventory manages products and their stock levels.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/juju/clock"
	"golang.org/x/sync/errgroup"

	"shopledger/internal/core"
	"shopledger/internal/store"
)

// Ledger is the part of the ledger store a stock adjustment writes to.
type Ledger interface {
	AddMany(ctx context.Context, drafts []core.Draft) ([]core.Transaction, error)
}

// SagaObserver is told how each stock adjustment ended.
type SagaObserver interface {
	ObserveStockAdjustment(direction core.Direction, result string)
}

type Store struct {
	products store.ProductTable
	logs     store.InventoryLogTable
	ledger   Ledger
	clock    clock.Clock
	observer SagaObserver
	hook     func(context.Context, Outcome)
}

type Option func(*Store)

func WithClock(c clock.Clock) Option { return func(s *Store) { s.clock = c } }

func WithObserver(o SagaObserver) Option { return func(s *Store) { s.observer = o } }

// WithOutcomeHook runs fn after every adjustment that wrote stock.
func WithOutcomeHook(fn func(context.Context, Outcome)) Option {
	return func(s *Store) { s.hook = fn }
}

func New(products store.ProductTable, logs store.InventoryLogTable, ledger Ledger, opts ...Option) *Store {
	s := &Store{products: products, logs: logs, ledger: ledger, clock: clock.WallClock}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Products(ctx context.Context) ([]core.Product, error) {
	out, err := s.products.SelectProducts(ctx)
	if err != nil {
		return nil, core.Remote("list products", err)
	}
	return out, nil
}

func (s *Store) Product(ctx context.Context, id string) (core.Product, error) {
	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return core.Product{}, core.Remote("get product", err)
	}
	return p, nil
}

// UpsertProduct creates p when it has no id. For an existing product the
// stored stock level is kept: stock only moves through AdjustStock.
func (s *Store) UpsertProduct(ctx context.Context, p core.Product) (core.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	if p.ID != "" {
		existing, err := s.products.GetProduct(ctx, p.ID)
		if err != nil {
			return core.Product{}, core.Remote("get product", err)
		}
		p.CurrentStock = existing.CurrentStock
	}
	saved, err := s.products.UpsertProduct(ctx, p)
	if err != nil {
		return core.Product{}, core.Remote("upsert product", err)
	}
	slog.InfoContext(ctx, "Product saved", "id", saved.ID, "name", saved.Name, "stock", saved.CurrentStock)
	return saved, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return core.Remote("delete product", err)
	}
	slog.InfoContext(ctx, "Product deleted", "id", id)
	return nil
}

// RecordLog writes a stock history row. It is independent of AdjustStock and
// has no link to the ledger transaction an adjustment produces.
func (s *Store) RecordLog(ctx context.Context, productID string, dir core.Direction, quantity int64, unitPrice core.Money) (core.InventoryLog, error) {
	if !dir.Valid() {
		return core.InventoryLog{}, core.Validation(core.ErrInvalidDirection)
	}
	if quantity <= 0 {
		return core.InventoryLog{}, core.Validation(core.ErrInvalidQuantity)
	}
	if err := unitPrice.Validate(); err != nil {
		return core.InventoryLog{}, core.Validation(err)
	}
	l, err := s.logs.InsertInventoryLog(ctx, core.InventoryLog{
		ProductID:  productID,
		Type:       dir,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
		TotalPrice: unitPrice.Mul(quantity),
		Timestamp:  s.clock.Now().UTC(),
	})
	if err != nil {
		return core.InventoryLog{}, core.Remote("record inventory log", err)
	}
	return l, nil
}

func (s *Store) Logs(ctx context.Context, productID string, limit int) ([]core.InventoryLog, error) {
	out, err := s.logs.SelectInventoryLogs(ctx, productID, limit)
	if err != nil {
		return nil, core.Remote("list inventory logs", err)
	}
	return out, nil
}

// LowStockItem is a product at or below its reorder threshold.
type LowStockItem struct {
	Product     core.Product `json:"product"`
	Shortfall   int64        `json:"shortfall"`
	LastRestock *time.Time   `json:"last_restock,omitempty"`
}

// LowStock lists products whose stock is at or below min_stock, with the
// time of their latest stock-in, most urgent first.
func (s *Store) LowStock(ctx context.Context) ([]LowStockItem, error) {
	products, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	var items []LowStockItem
	for _, p := range products {
		if p.LowStock() {
			items = append(items, LowStockItem{Product: p, Shortfall: p.MinStock - p.CurrentStock})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range items {
		i := i
		g.Go(func() error {
			logs, err := s.logs.SelectInventoryLogs(gctx, items[i].Product.ID, 0)
			if err != nil {
				return core.Remote("list inventory logs", err)
			}
			for _, l := range logs {
				if l.Type == core.StockIn {
					ts := l.Timestamp
					items[i].LastRestock = &ts
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Shortfall > items[j].Shortfall })
	return items, nil
}

func describe(dir core.Direction, name, given string) string {
	if d := strings.TrimSpace(given); d != "" {
		return d
	}
	if dir == core.StockIn {
		return fmt.Sprintf("purchase: %s", name)
	}
	return fmt.Sprintf("sale: %s", name)
}
