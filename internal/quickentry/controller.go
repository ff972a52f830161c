// Package quickentry implements one-tap transaction entry with a single
// level of undo and redo.
package quickentry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/juju/clock"

	"shopledger/internal/core"
	"shopledger/internal/ledger"
)

// DefaultBannerTTL is how long a banner stays visible unless replaced.
const DefaultBannerTTL = 6 * time.Second

const entryDescription = "quick entry"

type Ledger interface {
	AddMany(ctx context.Context, drafts []core.Draft) ([]core.Transaction, error)
	Delete(ctx context.Context, id string, confirm ledger.Confirmer) error
}

// Haptics is a best-effort feedback trigger.
type Haptics interface {
	Pulse(kind BannerKind)
}

type noHaptics struct{}

func (noHaptics) Pulse(BannerKind) {}

type BannerKind string

const (
	BannerSuccess BannerKind = "success"
	BannerError   BannerKind = "error"
	BannerUndo    BannerKind = "undo"
)

type Action string

const (
	ActionNone Action = ""
	ActionUndo Action = "undo"
	ActionRedo Action = "redo"
)

type Banner struct {
	Kind      BannerKind `json:"kind"`
	Message   string     `json:"message"`
	Action    Action     `json:"action,omitempty"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// Status is what an operator's screen shows right now.
type Status struct {
	Submitting bool    `json:"submitting"`
	Slot       string  `json:"slot"`
	Banner     *Banner `json:"banner"`
}

type Controller struct {
	ledger  Ledger
	clock   clock.Clock
	ttl     time.Duration
	haptics Haptics

	mu         sync.Mutex
	submitting bool
	slot       Slot
	banner     *Banner
}

type Option func(*Controller)

func WithClock(c clock.Clock) Option { return func(q *Controller) { q.clock = c } }

func WithBannerTTL(d time.Duration) Option {
	return func(q *Controller) {
		if d > 0 {
			q.ttl = d
		}
	}
}

func WithHaptics(h Haptics) Option { return func(q *Controller) { q.haptics = h } }

func New(l Ledger, opts ...Option) *Controller {
	c := &Controller{
		ledger:  l,
		clock:   clock.WallClock,
		ttl:     DefaultBannerTTL,
		haptics: noHaptics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InstantEntry records amount against category in one step. It returns
// core.ErrBusy while another submission is running and a validation error
// for amounts that are not finite and positive; neither case writes anything.
// A successful entry replaces any pending undo or redo.
func (c *Controller) InstantEntry(ctx context.Context, category core.Category, amount float64) (core.Transaction, error) {
	money, err := core.MoneyFromFloat(amount)
	if err != nil {
		return core.Transaction{}, core.Validation(fmt.Errorf("amount %v: %w", amount, err))
	}
	draft := core.Draft{
		Type:        category.Type,
		Category:    category.Name,
		Amount:      money,
		Description: entryDescription,
	}
	if err := draft.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if err := c.begin(); err != nil {
		return core.Transaction{}, err
	}
	c.mu.Lock()
	c.banner = nil
	c.mu.Unlock()

	tx, err := c.add(ctx, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		c.show(BannerError, fmt.Sprintf("Could not save entry: %v", err), ActionNone)
		return core.Transaction{}, err
	}
	c.slot = undoable(draft, tx.ID)
	c.show(BannerSuccess, fmt.Sprintf("Saved %s %s", category.Label, money), ActionUndo)
	return tx, nil
}

// Undo deletes the record of the last entry. Confirmation is implied by the
// operator choosing the undo affordance.
func (c *Controller) Undo(ctx context.Context) error {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return core.ErrBusy
	}
	if c.slot.Kind != SlotUndoable {
		c.mu.Unlock()
		return core.ErrNothingToUndo
	}
	slot := c.slot
	c.submitting = true
	c.mu.Unlock()

	err := c.ledger.Delete(ctx, slot.ID, ledger.Approve)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		slog.ErrorContext(ctx, "Quick entry undo failed", "id", slot.ID, "error", err)
		c.show(BannerError, fmt.Sprintf("Could not undo: %v", err), ActionNone)
		return err
	}
	c.slot = redoable(slot.Draft)
	c.show(BannerUndo, "Entry removed", ActionRedo)
	return nil
}

// Redo submits the undone draft again. The new record has a fresh id and
// timestamp.
func (c *Controller) Redo(ctx context.Context) (core.Transaction, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return core.Transaction{}, core.ErrBusy
	}
	if c.slot.Kind != SlotRedoable {
		c.mu.Unlock()
		return core.Transaction{}, core.ErrNothingToRedo
	}
	slot := c.slot
	c.submitting = true
	c.mu.Unlock()

	tx, err := c.add(ctx, slot.Draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		c.show(BannerError, fmt.Sprintf("Could not redo: %v", err), ActionNone)
		return core.Transaction{}, err
	}
	c.slot = undoable(slot.Draft, tx.ID)
	c.show(BannerSuccess, fmt.Sprintf("Restored %s", slot.Draft.Amount), ActionUndo)
	return tx, nil
}

// Status returns the current state. Banners older than the TTL are dropped.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.banner != nil && !c.clock.Now().Before(c.banner.ExpiresAt) {
		c.banner = nil
	}
	st := Status{Submitting: c.submitting, Slot: c.slot.Kind.String()}
	if c.banner != nil {
		b := *c.banner
		st.Banner = &b
	}
	return st
}

func (c *Controller) Slot() Slot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot
}

func (c *Controller) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting {
		return core.ErrBusy
	}
	c.submitting = true
	return nil
}

func (c *Controller) add(ctx context.Context, d core.Draft) (core.Transaction, error) {
	d.Timestamp = c.clock.Now().UTC()
	saved, err := c.ledger.AddMany(ctx, []core.Draft{d})
	if err != nil {
		return core.Transaction{}, err
	}
	if len(saved) != 1 {
		return core.Transaction{}, fmt.Errorf("%w: expected one record, got %d", core.ErrRemote, len(saved))
	}
	return saved[0], nil
}

// show replaces the banner. Callers hold c.mu.
func (c *Controller) show(kind BannerKind, msg string, action Action) {
	c.banner = &Banner{
		Kind:      kind,
		Message:   msg,
		Action:    action,
		ExpiresAt: c.clock.Now().Add(c.ttl),
	}
	c.haptics.Pulse(kind)
}
