package quickentry

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"

	"shopledger/internal/core"
	"shopledger/internal/ledger"
	"shopledger/internal/store/memory"
)

var (
	photocopy = core.Category{Name: "photocopy", Label: "Photocopy", Type: core.TypeIncome}
	t0        = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
)

func newController(t *testing.T) (*Controller, *ledger.Store, *testclock.Clock) {
	t.Helper()
	clk := testclock.NewClock(t0)
	led := ledger.New(memory.New(), nil, clk)
	require.NoError(t, led.Load(context.Background()))
	return New(led, WithClock(clk)), led, clk
}

// blockingLedger holds AddMany until release is closed.
type blockingLedger struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingLedger) AddMany(ctx context.Context, drafts []core.Draft) ([]core.Transaction, error) {
	close(b.entered)
	<-b.release
	return []core.Transaction{{ID: "tx-1", Type: drafts[0].Type, Category: drafts[0].Category, Amount: drafts[0].Amount}}, nil
}

func (b *blockingLedger) Delete(context.Context, string, ledger.Confirmer) error { return nil }

type failingLedger struct{}

func (failingLedger) AddMany(context.Context, []core.Draft) ([]core.Transaction, error) {
	return nil, core.Remote("add transactions", errors.New("503 service unavailable"))
}

func (failingLedger) Delete(context.Context, string, ledger.Confirmer) error { return nil }

type countingHaptics struct{ kinds []BannerKind }

func (h *countingHaptics) Pulse(k BannerKind) { h.kinds = append(h.kinds, k) }

func TestInstantEntryHeadsLedger(t *testing.T) {
	for _, amount := range []float64{0.01, 10, 125.5} {
		c, led, _ := newController(t)
		tx, err := c.InstantEntry(context.Background(), photocopy, amount)
		require.NoError(t, err)

		list := led.List()
		require.Len(t, list, 1)
		require.Equal(t, tx.ID, list[0].ID)
		require.Equal(t, core.TypeIncome, list[0].Type)
		require.Equal(t, "photocopy", list[0].Category)
		require.Equal(t, "quick entry", list[0].Description)

		want, err := core.MoneyFromFloat(amount)
		require.NoError(t, err)
		require.Equal(t, want, list[0].Amount)
	}
}

func TestInstantEntryRejectsNonPositiveAmounts(t *testing.T) {
	c, led, _ := newController(t)
	for _, amount := range []float64{0, -5, math.NaN(), math.Inf(1)} {
		_, err := c.InstantEntry(context.Background(), photocopy, amount)
		require.ErrorIs(t, err, core.ErrValidation)
	}
	require.Empty(t, led.List())
	require.False(t, c.Status().Submitting)

	// the guard is free again
	_, err := c.InstantEntry(context.Background(), photocopy, 5)
	require.NoError(t, err)
}

func TestUndoRedoRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, led, _ := newController(t)

	first, err := c.InstantEntry(ctx, photocopy, 40)
	require.NoError(t, err)
	require.Equal(t, SlotUndoable, c.Slot().Kind)

	require.NoError(t, c.Undo(ctx))
	require.Empty(t, led.List())
	require.Equal(t, SlotRedoable, c.Slot().Kind)
	st := c.Status()
	require.Equal(t, BannerUndo, st.Banner.Kind)
	require.Equal(t, ActionRedo, st.Banner.Action)

	second, err := c.Redo(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
	require.Equal(t, first.Category, second.Category)
	require.Equal(t, first.Amount, second.Amount)
	require.Equal(t, first.Type, second.Type)

	list := led.List()
	require.Len(t, list, 1)
	require.Equal(t, second.ID, list[0].ID)
	require.Equal(t, Slot{Kind: SlotUndoable, Draft: c.Slot().Draft, ID: second.ID}, c.Slot())
}

func TestUndoRedoOnlyFromMatchingSlot(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newController(t)

	require.ErrorIs(t, c.Undo(ctx), core.ErrNothingToUndo)
	_, err := c.Redo(ctx)
	require.ErrorIs(t, err, core.ErrNothingToRedo)

	_, err = c.InstantEntry(ctx, photocopy, 10)
	require.NoError(t, err)
	_, err = c.Redo(ctx)
	require.ErrorIs(t, err, core.ErrNothingToRedo)
}

func TestNewEntryDiscardsPendingRedo(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newController(t)

	_, err := c.InstantEntry(ctx, photocopy, 10)
	require.NoError(t, err)
	require.NoError(t, c.Undo(ctx))

	tx, err := c.InstantEntry(ctx, photocopy, 20)
	require.NoError(t, err)
	slot := c.Slot()
	require.Equal(t, SlotUndoable, slot.Kind)
	require.Equal(t, tx.ID, slot.ID)
	require.Equal(t, int64(2000), slot.Draft.Amount.Cents)
}

func TestBannerExpires(t *testing.T) {
	ctx := context.Background()
	c, _, clk := newController(t)

	_, err := c.InstantEntry(ctx, photocopy, 10)
	require.NoError(t, err)
	st := c.Status()
	require.NotNil(t, st.Banner)
	require.Equal(t, BannerSuccess, st.Banner.Kind)
	require.Equal(t, ActionUndo, st.Banner.Action)

	clk.Advance(5 * time.Second)
	require.NotNil(t, c.Status().Banner)

	clk.Advance(time.Second)
	require.Nil(t, c.Status().Banner)

	// the undo slot outlives the banner
	require.Equal(t, "undoable", c.Status().Slot)
}

func TestFailureShowsErrorAndKeepsSlot(t *testing.T) {
	ctx := context.Background()
	h := &countingHaptics{}
	c := New(failingLedger{}, WithClock(testclock.NewClock(t0)), WithHaptics(h))

	_, err := c.InstantEntry(ctx, photocopy, 10)
	require.ErrorIs(t, err, core.ErrRemote)
	st := c.Status()
	require.Equal(t, BannerError, st.Banner.Kind)
	require.Contains(t, st.Banner.Message, "503")
	require.Equal(t, SlotNone, c.Slot().Kind)
	require.False(t, st.Submitting)
	require.Equal(t, []BannerKind{BannerError}, h.kinds)
}

func TestConcurrentEntryIsBusy(t *testing.T) {
	ctx := context.Background()
	bl := &blockingLedger{entered: make(chan struct{}), release: make(chan struct{})}
	c := New(bl, WithClock(testclock.NewClock(t0)))

	done := make(chan error, 1)
	go func() {
		_, err := c.InstantEntry(ctx, photocopy, 10)
		done <- err
	}()
	<-bl.entered

	_, err := c.InstantEntry(ctx, photocopy, 10)
	require.ErrorIs(t, err, core.ErrBusy)
	require.ErrorIs(t, c.Undo(ctx), core.ErrBusy)
	require.True(t, c.Status().Submitting)

	close(bl.release)
	require.NoError(t, <-done)
	require.False(t, c.Status().Submitting)
}
