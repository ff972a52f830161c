package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"shopledger/internal/core"
)

// Saga results reported to the observer.
const (
	ResultCommitted   = "committed"
	ResultCompensated = "compensated"
	ResultPartial     = "partial"
	ResultFailed      = "failed"
)

// Outcome records what each step of a stock adjustment did.
type Outcome struct {
	ProductID     string            `json:"product_id"`
	Direction     core.Direction    `json:"direction"`
	Quantity      int64             `json:"quantity"`
	PreviousStock int64             `json:"previous_stock"`
	NewStock      int64             `json:"new_stock"`
	StockApplied  bool              `json:"stock_applied"`
	LedgerApplied bool              `json:"ledger_applied"`
	Compensated   bool              `json:"compensated"`
	Transaction   *core.Transaction `json:"transaction,omitempty"`
	LedgerErr     error             `json:"-"`
	RevertErr     error             `json:"-"`
}

// Result names how the adjustment ended.
func (o Outcome) Result() string {
	switch {
	case o.StockApplied && o.LedgerApplied:
		return ResultCommitted
	case o.Compensated:
		return ResultCompensated
	case o.StockApplied:
		return ResultPartial
	}
	return ResultFailed
}

// AdjustStock moves a product's stock and records the matching ledger
// transaction: expense for stock in, income for stock out, amount quantity
// times unit price. The two writes run in order. When the ledger write fails
// the stock write is reverted; if the revert also fails the returned error
// wraps core.ErrPartialFailure and the outcome shows the applied stock.
//
// Stock is not floored at zero.
func (s *Store) AdjustStock(ctx context.Context, productID string, dir core.Direction, quantity int64, unitPrice core.Money, description string) (Outcome, error) {
	out, err := s.adjust(ctx, productID, dir, quantity, unitPrice, description)
	if s.hook != nil && (out.StockApplied || out.Compensated) {
		s.hook(ctx, out)
	}
	return out, err
}

func (s *Store) adjust(ctx context.Context, productID string, dir core.Direction, quantity int64, unitPrice core.Money, description string) (Outcome, error) {
	out := Outcome{ProductID: productID, Direction: dir, Quantity: quantity}
	if !dir.Valid() {
		return out, core.Validation(core.ErrInvalidDirection)
	}
	if quantity <= 0 {
		return out, core.Validation(core.ErrInvalidQuantity)
	}
	if err := unitPrice.Validate(); err != nil {
		return out, core.Validation(err)
	}
	if utf8.RuneCountInString(strings.TrimSpace(description)) > core.MaxDescriptionLen {
		return out, core.Validation(core.ErrDescriptionTooLong)
	}

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return out, core.Remote("read product", err)
	}
	draft := core.Draft{
		Type:        dir.LedgerType(),
		Category:    p.Category,
		Amount:      unitPrice.Mul(quantity),
		Description: describe(dir, p.Name, description),
	}
	// A draft the ledger would refuse must not move stock first.
	if err := draft.Validate(); err != nil {
		return out, err
	}
	out.PreviousStock = p.CurrentStock
	out.NewStock = dir.Apply(p.CurrentStock, quantity)

	if err := s.products.UpdateStock(ctx, productID, out.NewStock); err != nil {
		s.observe(dir, ResultFailed)
		return out, core.Remote("update stock", err)
	}
	out.StockApplied = true
	if out.NewStock < 0 {
		slog.WarnContext(ctx, "Stock level below zero",
			"product_id", productID,
			"stock", out.NewStock)
	}

	saved, err := s.ledger.AddMany(ctx, []core.Draft{draft})
	if err == nil && len(saved) == 1 {
		out.LedgerApplied = true
		out.Transaction = &saved[0]
		s.observe(dir, ResultCommitted)
		slog.InfoContext(ctx, "Stock adjusted",
			"product_id", productID,
			"direction", dir,
			"quantity", quantity,
			"stock", out.NewStock,
			"transaction_id", saved[0].ID)
		return out, nil
	}
	if err == nil {
		err = fmt.Errorf("ledger returned %d records for one draft", len(saved))
	}
	out.LedgerErr = err

	// The request may already be cancelled; the revert must still run.
	revertCtx := context.WithoutCancel(ctx)
	if rerr := s.products.UpdateStock(revertCtx, productID, out.PreviousStock); rerr != nil {
		out.RevertErr = rerr
		s.observe(dir, ResultPartial)
		slog.ErrorContext(ctx, "Stock revert failed after ledger write failure",
			"product_id", productID,
			"stock", out.NewStock,
			"ledger_error", err,
			"revert_error", rerr)
		return out, fmt.Errorf("%w: stock for product %s left at %d without a ledger entry: %w",
			core.ErrPartialFailure, productID, out.NewStock, errors.Join(err, rerr))
	}

	out.StockApplied = false
	out.Compensated = true
	out.NewStock = out.PreviousStock
	s.observe(dir, ResultCompensated)
	slog.WarnContext(ctx, "Stock adjustment compensated",
		"product_id", productID,
		"stock", out.PreviousStock,
		"error", err)
	return out, core.Remote("record stock transaction", err)
}

func (s *Store) observe(dir core.Direction, result string) {
	if s.observer != nil {
		s.observer.ObserveStockAdjustment(dir, result)
	}
}
