package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"shopledger/internal/core"
	ports "shopledger/internal/sheets"
)

// fakeValues keeps a single sheet's cells in memory, keyed by sheet name.
type fakeValues struct {
	sheets  map[string][][]any
	gets    int
	failGet error
}

func newFakeValues() *fakeValues {
	return &fakeValues{sheets: map[string][][]any{}}
}

var cellRange = regexp.MustCompile(`^([A-Z])(\d+)?(?::([A-Z])(\d+)?)?$`)

func splitRange(rng string) (string, int, int) {
	sheet, cells, _ := strings.Cut(rng, "!")
	m := cellRange.FindStringSubmatch(cells)
	if m == nil || m[2] == "" {
		return sheet, 0, 0
	}
	from, _ := strconv.Atoi(m[2])
	to := from
	if m[4] != "" {
		to, _ = strconv.Atoi(m[4])
	}
	return sheet, from, to
}

func colIndex(rng string) int {
	_, cells, _ := strings.Cut(rng, "!")
	return int(cells[0] - 'A')
}

func (f *fakeValues) Get(_ context.Context, rng string) ([][]any, error) {
	f.gets++
	if f.failGet != nil {
		return nil, f.failGet
	}
	sheet, from, to := splitRange(rng)
	rows := f.sheets[sheet]
	if from == 0 {
		out := make([][]any, len(rows))
		copy(out, rows)
		return out, nil
	}
	var out [][]any
	for r := from; r <= to && r <= len(rows); r++ {
		if len(rows[r-1]) > 0 {
			out = append(out, rows[r-1])
		}
	}
	return out, nil
}

func (f *fakeValues) Update(_ context.Context, rng string, data [][]any) error {
	sheet, from, _ := splitRange(rng)
	col := colIndex(rng)
	rows := f.sheets[sheet]
	for len(rows) < from {
		rows = append(rows, nil)
	}
	row := rows[from-1]
	for len(row) < col+len(data[0]) {
		row = append(row, "")
	}
	copy(row[col:], data[0])
	rows[from-1] = row
	f.sheets[sheet] = rows
	return nil
}

func (f *fakeValues) Append(_ context.Context, rng string, data [][]any) (string, error) {
	sheet, _, _ := strings.Cut(rng, "!")
	f.sheets[sheet] = append(f.sheets[sheet], data...)
	n := len(f.sheets[sheet])
	return fmt.Sprintf("%s!A%d", sheet, n), nil
}

func sampleTx(id string) core.Transaction {
	by := "owner@example.com"
	return core.Transaction{
		ID:          id,
		Type:        core.TypeIncome,
		Category:    "sales",
		Amount:      core.Money{Cents: 1250},
		Description: "counter sale",
		Timestamp:   time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC),
		CreatedBy:   &by,
	}
}

func TestNewFromEnv_MissingSpreadsheetID(t *testing.T) {
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")

	_, err := NewFromEnv(context.Background())
	if err == nil {
		t.Fatal("expected error for missing GOOGLE_SPREADSHEET_ID")
	}
	if err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestServiceAccountCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	if _, err := serviceAccountCredentials(context.Background()); err == nil {
		t.Fatal("expected error without credentials")
	}

	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"type":"service_account"}`)
	b, err := serviceAccountCredentials(context.Background())
	if err != nil {
		t.Fatalf("inline credentials: %v", err)
	}
	if string(b) != `{"type":"service_account"}` {
		t.Errorf("unexpected credentials %q", b)
	}

	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	path := t.TempDir() + "/sa.json"
	if err := os.WriteFile(path, []byte(`{"from":"file"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	b, err = serviceAccountCredentials(context.Background())
	if err != nil {
		t.Fatalf("file credentials: %v", err)
	}
	if string(b) != `{"from":"file"}` {
		t.Errorf("unexpected credentials %q", b)
	}
}

func TestAppendTransaction_WritesHeaderAndRow(t *testing.T) {
	fv := newFakeValues()
	c := New(fv, "", "", time.UTC, nil)

	ref, err := c.AppendTransaction(context.Background(), sampleTx("t1"))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if ref != "Ledger!A2" {
		t.Errorf("ref = %q, want Ledger!A2", ref)
	}
	rows := fv.sheets["Ledger"]
	if len(rows) != 2 {
		t.Fatalf("expected header + 1 row, got %d", len(rows))
	}
	want := []any{"t1", "2026-03-04 10:30:00", "income", "sales", "12.50", "counter sale", "owner@example.com", "active"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Errorf("col %d = %v, want %v", i, rows[1][i], v)
		}
	}
}

func TestAppendTransaction_IdempotentOnRedelivery(t *testing.T) {
	fv := newFakeValues()
	c := New(fv, "", "", time.UTC, nil)
	ctx := context.Background()

	if _, err := c.AppendTransaction(ctx, sampleTx("t1")); err != nil {
		t.Fatal(err)
	}
	ref, err := c.AppendTransaction(ctx, sampleTx("t1"))
	if err != nil {
		t.Fatal(err)
	}
	if ref != "Ledger!A2:H2" {
		t.Errorf("ref = %q", ref)
	}
	if n := len(fv.sheets["Ledger"]); n != 2 {
		t.Errorf("expected no duplicate row, have %d rows", n)
	}
}

func TestAppendTransaction_RequiresID(t *testing.T) {
	c := New(newFakeValues(), "", "", time.UTC, nil)
	_, err := c.AppendTransaction(context.Background(), core.Transaction{})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateTransaction_AppliesPatch(t *testing.T) {
	fv := newFakeValues()
	c := New(fv, "", "", time.UTC, nil)
	ctx := context.Background()
	if _, err := c.AppendTransaction(ctx, sampleTx("t1")); err != nil {
		t.Fatal(err)
	}

	amount := core.Money{Cents: 900}
	cat := "services"
	if err := c.UpdateTransaction(ctx, "t1", core.TransactionPatch{Amount: &amount, Category: &cat}); err != nil {
		t.Fatalf("update: %v", err)
	}
	row := fv.sheets["Ledger"][1]
	if row[3] != "services" || row[4] != "9.00" || row[7] != statusEdited {
		t.Errorf("unexpected row after update: %v", row)
	}
	if row[5] != "counter sale" {
		t.Errorf("description should be kept, got %v", row[5])
	}
}

func TestUpdateTransaction_Unknown(t *testing.T) {
	c := New(newFakeValues(), "", "", time.UTC, nil)
	err := c.UpdateTransaction(context.Background(), "missing", core.TransactionPatch{})
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkDeleted(t *testing.T) {
	fv := newFakeValues()
	c := New(fv, "", "", time.UTC, nil)
	ctx := context.Background()
	if _, err := c.AppendTransaction(ctx, sampleTx("t1")); err != nil {
		t.Fatal(err)
	}
	if err := c.MarkDeleted(ctx, "t1"); err != nil {
		t.Fatalf("mark deleted: %v", err)
	}
	if got := fv.sheets["Ledger"][1][7]; got != statusDeleted {
		t.Errorf("status = %v, want %s", got, statusDeleted)
	}

	// Never-exported rows are not an error.
	if err := c.MarkDeleted(ctx, "ghost"); err != nil {
		t.Errorf("unexpected error for unknown id: %v", err)
	}
}

func TestRowIndexCacheExpiry(t *testing.T) {
	fv := newFakeValues()
	clk := testclock.NewClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c := New(fv, "", "", time.UTC, clk)
	ctx := context.Background()

	fv.sheets["Ledger"] = [][]any{ledgerHeader, {"a"}, {"b"}}
	if _, err := c.index(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := c.index(ctx); err != nil {
		t.Fatal(err)
	}
	if fv.gets != 1 {
		t.Errorf("expected cached index, got %d reads", fv.gets)
	}

	clk.Advance(c.cacheValidDuration + time.Second)
	idx, err := c.index(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fv.gets != 2 {
		t.Errorf("expected reload after expiry, got %d reads", fv.gets)
	}
	if idx["b"] != 3 {
		t.Errorf("row of b = %d, want 3", idx["b"])
	}
}

func TestIndexReadFailure(t *testing.T) {
	fv := newFakeValues()
	fv.failGet = errors.New("quota exceeded")
	c := New(fv, "", "", time.UTC, nil)
	if _, err := c.AppendTransaction(context.Background(), sampleTx("t1")); err == nil {
		t.Fatal("expected read failure to surface")
	}
}

func TestAppendStock(t *testing.T) {
	fv := newFakeValues()
	c := New(fv, "", "Movements", time.UTC, nil)
	at := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)

	_, err := c.AppendStock(context.Background(), ports.StockRow{
		ProductID: "p1", Direction: core.StockOut, Quantity: 3, NewStock: 7, Result: "committed", At: at,
	})
	if err != nil {
		t.Fatalf("append stock: %v", err)
	}
	rows := fv.sheets["Movements"]
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if rows[0][0] != "2026-03-04 08:00:00" || rows[0][2] != "out" || rows[0][4] != int64(7) {
		t.Errorf("unexpected stock row %v", rows[0])
	}
}
