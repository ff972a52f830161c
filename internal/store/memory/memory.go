package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shopledger/internal/core"
	"shopledger/internal/store"
)

// Store is an in-process backend. It keeps the same contract as the SQLite
// backend, including the referential guard on category deletes.
type Store struct {
	mu       sync.Mutex
	cats     []core.Category
	txs      []core.Transaction
	products map[string]core.Product
	logs     []core.InventoryLog
	flags    map[string]bool
	now      func() time.Time
}

var (
	_ store.CategoryTable     = (*Store)(nil)
	_ store.TransactionTable  = (*Store)(nil)
	_ store.ProductTable      = (*Store)(nil)
	_ store.InventoryLogTable = (*Store)(nil)
	_ store.FlagStore         = (*Store)(nil)
)

func New(cats ...core.Category) *Store {
	s := &Store{
		products: map[string]core.Product{},
		flags:    map[string]bool{},
		now:      time.Now,
	}
	for _, c := range dedupe(cats) {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		s.cats = append(s.cats, c)
	}
	return s
}

// NewFromFiles seeds categories from base/seed_categories.txt, one
// "name|label|type|icon" per line. A missing file yields an empty store.
func NewFromFiles(base string) *Store {
	var cats []core.Category
	for i, line := range readLines(filepath.Join(base, "seed_categories.txt")) {
		parts := strings.Split(line, "|")
		if len(parts) < 3 {
			continue
		}
		c := core.Category{
			Name:      strings.TrimSpace(parts[0]),
			Label:     strings.TrimSpace(parts[1]),
			Type:      core.TxType(strings.TrimSpace(parts[2])),
			SortOrder: i,
		}
		if len(parts) > 3 {
			c.Icon = strings.TrimSpace(parts[3])
		}
		if c.Validate() != nil {
			continue
		}
		cats = append(cats, c)
	}
	return New(cats...)
}

func (s *Store) SelectCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]core.Category(nil), s.cats...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].SortOrder < out[j].SortOrder })
	return out, nil
}

func (s *Store) InsertCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cats {
		if existing.Name == c.Name {
			return core.Category{}, fmt.Errorf("%w: category name %q already exists", core.ErrConflict, c.Name)
		}
	}
	c.ID = uuid.NewString()
	s.cats = append(s.cats, c)
	return c, nil
}

func (s *Store) UpdateCategory(_ context.Context, id string, p core.CategoryPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.cats {
		if s.cats[i].ID != id {
			continue
		}
		if p.Name != nil {
			for _, other := range s.cats {
				if other.ID != id && other.Name == *p.Name {
					return fmt.Errorf("%w: category name %q already exists", core.ErrConflict, *p.Name)
				}
			}
		}
		p.Apply(&s.cats[i])
		return nil
	}
	return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
}

func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cats {
		if c.ID != id {
			continue
		}
		for _, tx := range s.txs {
			if tx.Category == c.Name {
				return core.ErrCategoryInUse
			}
		}
		s.cats = append(s.cats[:i], s.cats[i+1:]...)
		return nil
	}
	return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
}

func (s *Store) SelectTransactions(_ context.Context, f core.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.txs {
		if f.Match(tx) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *Store) InsertTransactions(_ context.Context, rows []core.Transaction) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(rows))
	for i, row := range rows {
		if !row.Type.Valid() {
			return nil, core.Validation(core.ErrInvalidType)
		}
		row.ID = uuid.NewString()
		if row.Timestamp.IsZero() {
			row.Timestamp = s.now().UTC()
		}
		out[i] = row
	}
	s.txs = append(s.txs, out...)
	return append([]core.Transaction(nil), out...), nil
}

func (s *Store) UpdateTransaction(_ context.Context, id string, p core.TransactionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.txs {
		if s.txs[i].ID == id {
			p.Apply(&s.txs[i])
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.txs {
		if tx.ID == id {
			s.txs = append(s.txs[:i], s.txs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
}

func (s *Store) SelectProducts(_ context.Context) ([]core.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (core.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return core.Product{}, fmt.Errorf("product %s: %w", id, core.ErrNotFound)
	}
	return p, nil
}

func (s *Store) UpsertProduct(_ context.Context, p core.Product) (core.Product, error) {
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) UpdateStock(_ context.Context, id string, stock int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, core.ErrNotFound)
	}
	p.CurrentStock = stock
	s.products[id] = p
	return nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("product %s: %w", id, core.ErrNotFound)
	}
	delete(s.products, id)
	return nil
}

func (s *Store) InsertInventoryLog(_ context.Context, l core.InventoryLog) (core.InventoryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[l.ProductID]; !ok {
		return core.InventoryLog{}, fmt.Errorf("product %s: %w", l.ProductID, core.ErrNotFound)
	}
	l.ID = uuid.NewString()
	if l.Timestamp.IsZero() {
		l.Timestamp = s.now().UTC()
	}
	s.logs = append(s.logs, l)
	return l, nil
}

func (s *Store) SelectInventoryLogs(_ context.Context, productID string, limit int) ([]core.InventoryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.InventoryLog
	for i := len(s.logs) - 1; i >= 0; i-- {
		if s.logs[i].ProductID != productID {
			continue
		}
		out = append(out, s.logs[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) Flag(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags[key], nil
}

func (s *Store) SetFlag(_ context.Context, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags[key] = value
	return nil
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// dedupe drops categories whose name was already seen, preserving input order.
func dedupe(in []core.Category) []core.Category {
	seen := map[string]struct{}{}
	out := make([]core.Category, 0, len(in))
	for _, c := range in {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, c)
	}
	return out
}
