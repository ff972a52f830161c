// Package categories owns the in-memory category list shown to operators.
package categories

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"shopledger/internal/core"
	"shopledger/internal/store"
)

type Registry struct {
	table store.CategoryTable
	recon *Reconciler

	mu     sync.Mutex
	items  []core.Category
	loaded bool
}

func NewRegistry(table store.CategoryTable, recon *Reconciler) *Registry {
	r := &Registry{table: table, recon: recon}
	if recon != nil {
		recon.onInsert = r.assignID
		recon.resolve = r.idFor
	}
	return r
}

// List returns the categories ordered by sort order. The backing table is read
// once; an empty table yields the built-in default set, which stays unsaved
// (empty ids) until the first category write or reorder stores it.
func (r *Registry) List(ctx context.Context) ([]core.Category, error) {
	r.mu.Lock()
	if r.loaded {
		out := append([]core.Category(nil), r.items...)
		r.mu.Unlock()
		return out, nil
	}
	r.mu.Unlock()

	rows, err := r.table.SelectCategories(ctx)
	if err != nil {
		return nil, core.Remote("list categories", err)
	}
	if len(rows) == 0 {
		rows = core.DefaultCategories()
		slog.InfoContext(ctx, "No categories stored, serving defaults", "count", len(rows))
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].SortOrder < rows[j].SortOrder })

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.loaded {
		r.items = rows
		r.loaded = true
	}
	return append([]core.Category(nil), r.items...), nil
}

// Invalidate drops the cached list so the next List reads the table again.
// Queued order writes land first.
func (r *Registry) Invalidate() {
	if r.recon != nil {
		r.recon.Wait()
	}
	r.mu.Lock()
	r.items = nil
	r.loaded = false
	r.mu.Unlock()
}

// Find looks a category up by its machine name.
func (r *Registry) Find(ctx context.Context, name string) (core.Category, error) {
	items, err := r.List(ctx)
	if err != nil {
		return core.Category{}, err
	}
	for _, c := range items {
		if c.Name == name {
			return c, nil
		}
	}
	return core.Category{}, fmt.Errorf("category %q: %w", name, core.ErrNotFound)
}

// Upsert updates the category with the given id, or inserts c when id is empty.
func (r *Registry) Upsert(ctx context.Context, c core.Category, id string) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Label = strings.TrimSpace(c.Label)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if _, err := r.List(ctx); err != nil {
		return core.Category{}, err
	}
	if err := r.materialize(ctx, c.Name); err != nil {
		return core.Category{}, err
	}

	if id == "" {
		saved, err := r.table.InsertCategory(ctx, c)
		if err != nil {
			return core.Category{}, core.Remote("insert category", err)
		}
		r.mu.Lock()
		r.replaceByName(saved)
		r.mu.Unlock()
		slog.InfoContext(ctx, "Category created", "id", saved.ID, "name", saved.Name)
		return saved, nil
	}

	patch := core.CategoryPatch{Name: &c.Name, Label: &c.Label, Type: &c.Type, SortOrder: &c.SortOrder}
	if c.Icon != "" {
		patch.Icon = &c.Icon
	}
	if err := r.table.UpdateCategory(ctx, id, patch); err != nil {
		return core.Category{}, core.Remote("update category", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == id {
			patch.Apply(&r.items[i])
			r.sortLocked()
			return r.items[i], nil
		}
	}
	c.ID = id
	r.items = append(r.items, c)
	r.sortLocked()
	return c, nil
}

// Reorder applies the new order locally and hands the sort order patches to
// the reconciliation queue. Remote failures never reach the caller.
func (r *Registry) Reorder(ctx context.Context, ordered []core.Category) {
	r.mu.Lock()
	next := make([]core.Category, len(ordered))
	for i, c := range ordered {
		c.SortOrder = i
		if c.ID == "" {
			c.ID = r.idForLocked(c.Name)
		}
		next[i] = c
	}
	r.items = append([]core.Category(nil), next...)
	r.loaded = true
	r.mu.Unlock()

	if r.recon != nil {
		r.recon.Enqueue(ctx, next)
	}
}

func (r *Registry) Delete(ctx context.Context, id string) error {
	if id == "" {
		return core.Validation(errors.New("unsaved categories cannot be deleted"))
	}
	if err := r.table.DeleteCategory(ctx, id); err != nil {
		if errors.Is(err, core.ErrConflict) {
			slog.WarnContext(ctx, "Category delete refused", "id", id, "error", err)
			return core.ErrCategoryInUse
		}
		return core.Remote("delete category", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.items {
		if c.ID == id {
			r.items = append(r.items[:i], r.items[i+1:]...)
			break
		}
	}
	return nil
}

// materialize stores the unsaved defaults so they survive the first write.
// skip names a category the caller is about to insert in place of a default.
func (r *Registry) materialize(ctx context.Context, skip string) error {
	if r.recon != nil {
		r.recon.Wait()
	}

	r.mu.Lock()
	var pending []core.Category
	for _, c := range r.items {
		if c.ID == "" && c.Name != skip {
			pending = append(pending, c)
		}
	}
	r.mu.Unlock()
	if len(pending) == 0 {
		return nil
	}

	for _, c := range pending {
		saved, err := r.table.InsertCategory(ctx, c)
		if err != nil {
			return core.Remote("store default categories", err)
		}
		r.assignID(saved)
	}
	slog.InfoContext(ctx, "Default categories stored", "count", len(pending))
	return nil
}

func (r *Registry) idFor(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idForLocked(name)
}

func (r *Registry) idForLocked(name string) string {
	for _, c := range r.items {
		if c.Name == name {
			return c.ID
		}
	}
	return ""
}

// assignID records the id the backend gave to a category the reconciler inserted.
func (r *Registry) assignID(saved core.Category) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.items {
		if r.items[i].ID == "" && r.items[i].Name == saved.Name {
			r.items[i].ID = saved.ID
			return
		}
	}
}

func (r *Registry) replaceByName(c core.Category) {
	for i := range r.items {
		if r.items[i].Name == c.Name {
			r.items[i] = c
			r.sortLocked()
			return
		}
	}
	r.items = append(r.items, c)
	r.sortLocked()
}

func (r *Registry) sortLocked() {
	sort.SliceStable(r.items, func(i, j int) bool { return r.items[i].SortOrder < r.items[j].SortOrder })
}
