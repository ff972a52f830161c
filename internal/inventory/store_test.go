package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"

	"shopledger/internal/core"
	"shopledger/internal/ledger"
	"shopledger/internal/store/memory"
)

func TestUpsertProductKeepsStock(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	inv := New(backend, backend, ledger.New(backend, nil, nil))

	p, err := inv.UpsertProduct(ctx, core.Product{Name: " Pen ", Category: "stationery_sale", CurrentStock: 40, MinStock: 10})
	require.NoError(t, err)
	require.Equal(t, "Pen", p.Name)

	p.CurrentStock = 9999
	p.SalePriceMin = core.Money{Cents: 1000}
	updated, err := inv.UpsertProduct(ctx, p)
	require.NoError(t, err)
	require.Equal(t, int64(40), updated.CurrentStock)

	_, err = inv.UpsertProduct(ctx, core.Product{Name: "No category"})
	require.ErrorIs(t, err, core.ErrValidation)

	require.NoError(t, inv.DeleteProduct(ctx, p.ID))
	require.ErrorIs(t, inv.DeleteProduct(ctx, p.ID), core.ErrNotFound)
}

func TestRecordLogIsIndependent(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	clk := testclock.NewClock(time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC))
	led := ledger.New(backend, nil, clk)
	require.NoError(t, led.Load(ctx))
	inv := New(backend, backend, led, WithClock(clk))
	p := seedProduct(t, backend, 10)

	l, err := inv.RecordLog(ctx, p.ID, core.StockIn, 4, core.Money{Cents: 250})
	require.NoError(t, err)
	require.Equal(t, int64(1000), l.TotalPrice.Cents)
	require.Equal(t, clk.Now().UTC(), l.Timestamp)

	// a log entry touches neither stock nor ledger
	got, _ := inv.Product(ctx, p.ID)
	require.Equal(t, int64(10), got.CurrentStock)
	require.Empty(t, led.List())

	_, err = inv.RecordLog(ctx, p.ID, core.StockIn, 0, core.Money{Cents: 250})
	require.ErrorIs(t, err, core.ErrValidation)
	_, err = inv.RecordLog(ctx, p.ID, core.StockIn, 4, core.Money{})
	require.ErrorIs(t, err, core.ErrValidation)
	_, err = inv.RecordLog(ctx, p.ID, core.StockOut, 4, core.Money{Cents: -100})
	require.ErrorIs(t, err, core.ErrValidation)

	logs, err := inv.Logs(ctx, p.ID, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
}

func TestLowStock(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()
	clk := testclock.NewClock(time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC))
	inv := New(backend, backend, ledger.New(backend, nil, clk), WithClock(clk))

	low, err := inv.UpsertProduct(ctx, core.Product{Name: "Toner", Category: "toner_ink", CurrentStock: 1, MinStock: 3})
	require.NoError(t, err)
	_, err = inv.UpsertProduct(ctx, core.Product{Name: "Stapler", Category: "stationery_sale", CurrentStock: 5, MinStock: 5})
	require.NoError(t, err)
	_, err = inv.UpsertProduct(ctx, core.Product{Name: "Folder", Category: "stationery_sale", CurrentStock: 50, MinStock: 5})
	require.NoError(t, err)

	_, err = inv.RecordLog(ctx, low.ID, core.StockIn, 2, core.Money{Cents: 100})
	require.NoError(t, err)

	items, err := inv.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Toner", items[0].Product.Name)
	require.Equal(t, int64(2), items[0].Shortfall)
	require.NotNil(t, items[0].LastRestock)
	require.Nil(t, items[1].LastRestock)
}
