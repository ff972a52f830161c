// Package ledger keeps the operator's view of income and expense transactions.
// The list is loaded once per session and then updated in place by every
// local write; it is never polled.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/juju/clock"

	"shopledger/internal/core"
	"shopledger/internal/store"
)

// Identity supplies the created_by value for new transactions.
type Identity interface {
	CreatedBy() *string
}

// Confirmer asks the operator a yes/no question before a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

var (
	Approve ConfirmFunc = func(context.Context, string) bool { return true }
	Decline ConfirmFunc = func(context.Context, string) bool { return false }
)

type ChangeKind string

const (
	ChangeLoaded  ChangeKind = "loaded"
	ChangeAdded   ChangeKind = "added"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// Change describes one committed mutation of the list.
type Change struct {
	Kind         ChangeKind
	Transactions []core.Transaction
}

type Store struct {
	table store.TransactionTable
	ident Identity
	clock clock.Clock

	mu     sync.RWMutex
	items  []core.Transaction
	loaded bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Change)
}

func New(table store.TransactionTable, ident Identity, clk clock.Clock) *Store {
	if clk == nil {
		clk = clock.WallClock
	}
	return &Store{table: table, ident: ident, clock: clk, subs: map[int]func(Change){}}
}

// Load fetches every transaction once. Later calls are no-ops until Reset.
func (s *Store) Load(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	rows, err := s.table.SelectTransactions(ctx, core.TransactionFilter{})
	if err != nil {
		return core.Remote("load transactions", err)
	}
	sortNewestFirst(rows)

	s.mu.Lock()
	s.items = rows
	s.loaded = true
	s.mu.Unlock()

	slog.InfoContext(ctx, "Ledger loaded", "count", len(rows))
	s.notify(Change{Kind: ChangeLoaded})
	return nil
}

// Reset forgets the loaded list, typically on a session change.
func (s *Store) Reset() {
	s.mu.Lock()
	s.items = nil
	s.loaded = false
	s.mu.Unlock()
}

func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

// List returns a copy of the transactions, newest first.
func (s *Store) List() []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Transaction(nil), s.items...)
}

// Filter returns the loaded transactions matching f, newest first.
func (s *Store) Filter(f core.TransactionFilter) []core.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Transaction
	for _, tx := range s.items {
		if !f.Match(tx) {
			continue
		}
		out = append(out, tx)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

func (s *Store) Get(id string) (core.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.items {
		if tx.ID == id {
			return tx, nil
		}
	}
	return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

// AddMany stores drafts in one batch and puts the stored records at the head
// of the list. Nothing changes locally when the batch fails.
func (s *Store) AddMany(ctx context.Context, drafts []core.Draft) ([]core.Transaction, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	var createdBy *string
	if s.ident != nil {
		createdBy = s.ident.CreatedBy()
	}
	now := s.clock.Now().UTC()
	rows := make([]core.Transaction, len(drafts))
	for i, d := range drafts {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if d.Timestamp.IsZero() {
			d.Timestamp = now
		}
		rows[i] = d.Transaction(createdBy)
	}

	saved, err := s.table.InsertTransactions(ctx, rows)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to add transactions", "count", len(rows), "error", err)
		return nil, core.Remote("add transactions", err)
	}
	head := append([]core.Transaction(nil), saved...)
	sortNewestFirst(head)

	s.mu.Lock()
	s.items = append(head, s.items...)
	s.mu.Unlock()

	for _, tx := range saved {
		slog.InfoContext(ctx, "Transaction added",
			"id", tx.ID,
			"type", tx.Type,
			"category", tx.Category,
			"amount_cents", tx.Amount.Cents)
	}
	s.notify(Change{Kind: ChangeAdded, Transactions: append([]core.Transaction(nil), saved...)})
	return saved, nil
}

// Update applies a partial edit remotely and mirrors it onto the local record.
func (s *Store) Update(ctx context.Context, id string, p core.TransactionPatch) (core.Transaction, error) {
	if err := p.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.table.UpdateTransaction(ctx, id, p); err != nil {
		return core.Transaction{}, core.Remote("update transaction", err)
	}

	s.mu.Lock()
	var updated core.Transaction
	found := false
	for i := range s.items {
		if s.items[i].ID == id {
			p.Apply(&s.items[i])
			updated = s.items[i]
			found = true
			break
		}
	}
	if found && p.Timestamp != nil {
		sortNewestFirst(s.items)
	}
	s.mu.Unlock()

	if !found {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	s.notify(Change{Kind: ChangeUpdated, Transactions: []core.Transaction{updated}})
	return updated, nil
}

// Delete removes a transaction after the confirmer approves. The backend
// delete is a hard delete; restoring means adding a new record.
func (s *Store) Delete(ctx context.Context, id string, confirm Confirmer) error {
	if confirm == nil || !confirm.Confirm(ctx, fmt.Sprintf("Delete transaction %s?", id)) {
		return core.ErrNotConfirmed
	}
	if err := s.table.DeleteTransaction(ctx, id); err != nil {
		return core.Remote("delete transaction", err)
	}

	var removed []core.Transaction
	s.mu.Lock()
	for i, tx := range s.items {
		if tx.ID == id {
			removed = append(removed, tx)
			s.items = append(s.items[:i], s.items[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	slog.InfoContext(ctx, "Transaction deleted", "id", id)
	if len(removed) == 0 {
		removed = []core.Transaction{{ID: id}}
	}
	s.notify(Change{Kind: ChangeDeleted, Transactions: removed})
	return nil
}

// Subscribe registers fn for every committed change.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	subs := make([]func(Change), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(c)
	}
}

func sortNewestFirst(rows []core.Transaction) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Timestamp.After(rows[j].Timestamp) })
}
