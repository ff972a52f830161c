package categories

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"shopledger/internal/core"
	"shopledger/internal/store"
)

// Failure is a remote patch the reconciler could not apply.
type Failure struct {
	Category core.Category
	Err      error
	At       time.Time
}

// Reconciler pushes optimistic local category changes to the backend.
// Batches run one at a time in the order they were enqueued; items within a
// batch are patched concurrently. Failures are logged and retained in Failed
// so a later pass can retry or roll back without changing callers.
type Reconciler struct {
	table       store.CategoryTable
	concurrency int
	onInsert    func(core.Category)
	// resolve returns the id currently known for a category name, so a batch
	// queued before an earlier insert landed updates instead of inserting twice.
	resolve func(name string) string

	queue chan batch
	start sync.Once
	wg    sync.WaitGroup

	mu     sync.Mutex
	failed []Failure
}

type batch struct {
	ctx   context.Context
	items []core.Category
}

func NewReconciler(table store.CategoryTable, concurrency int) *Reconciler {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Reconciler{table: table, concurrency: concurrency, queue: make(chan batch, 32)}
}

// Enqueue schedules one sort order patch per category. Categories without an
// id are inserted instead.
func (q *Reconciler) Enqueue(ctx context.Context, items []core.Category) {
	q.start.Do(func() { go q.run() })
	q.wg.Add(1)
	q.queue <- batch{
		ctx:   context.WithoutCancel(ctx),
		items: append([]core.Category(nil), items...),
	}
}

func (q *Reconciler) run() {
	for b := range q.queue {
		q.applyBatch(b)
		q.wg.Done()
	}
}

func (q *Reconciler) applyBatch(b batch) {
	g, gctx := errgroup.WithContext(b.ctx)
	g.SetLimit(q.concurrency)
	for _, c := range b.items {
		c := c
		g.Go(func() error {
			if err := q.apply(gctx, c); err != nil {
				q.recordFailure(gctx, c, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (q *Reconciler) apply(ctx context.Context, c core.Category) error {
	if c.ID == "" && q.resolve != nil {
		c.ID = q.resolve(c.Name)
	}
	if c.ID == "" {
		saved, err := q.table.InsertCategory(ctx, c)
		if err != nil {
			return err
		}
		if q.onInsert != nil {
			q.onInsert(saved)
		}
		return nil
	}
	order := c.SortOrder
	return q.table.UpdateCategory(ctx, c.ID, core.CategoryPatch{SortOrder: &order})
}

func (q *Reconciler) recordFailure(ctx context.Context, c core.Category, err error) {
	slog.ErrorContext(ctx, "Category reorder patch failed",
		"id", c.ID,
		"name", c.Name,
		"sort_order", c.SortOrder,
		"error", err)
	q.mu.Lock()
	q.failed = append(q.failed, Failure{Category: c, Err: err, At: time.Now()})
	q.mu.Unlock()
}

// Wait blocks until every enqueued batch has finished.
func (q *Reconciler) Wait() {
	q.wg.Wait()
}

func (q *Reconciler) Failed() []Failure {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Failure(nil), q.failed...)
}
