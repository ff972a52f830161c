package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"shopledger/internal/core"
	ports "shopledger/internal/sheets"
)

const (
	defaultLedgerSheet = "Ledger"
	defaultStockSheet  = "Stock"

	statusActive  = "active"
	statusEdited  = "edited"
	statusDeleted = "deleted"

	timestampLayout = "2006-01-02 15:04:05"
)

// Ledger columns: A id, B timestamp, C type, D category, E amount,
// F description, G created by, H status.
var ledgerHeader = []any{"ID", "Timestamp", "Type", "Category", "Amount", "Description", "Created By", "Status"}

// values is the slice of the Sheets values API the client uses.
type values interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, rows [][]any) error
	Append(ctx context.Context, rng string, rows [][]any) (string, error)
}

type Client struct {
	values      values
	ledgerSheet string
	stockSheet  string
	loc         *time.Location
	clk         clock.Clock

	mu                 sync.Mutex
	rowIndex           map[string]int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// Ensure interface conformance
var _ ports.LedgerExporter = (*Client)(nil)

// NewFromEnv creates a Sheets client using environment variables and service account credentials.
// Required: GOOGLE_SPREADSHEET_ID
// Optional sheet names: GOOGLE_SHEET_NAME (default "Ledger"), GOOGLE_STOCK_SHEET_NAME (default "Stock").
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return New(&serviceValues{svc: svc, spreadsheetID: spreadsheetID},
		os.Getenv("GOOGLE_SHEET_NAME"), os.Getenv("GOOGLE_STOCK_SHEET_NAME"), time.Local, nil), nil
}

// New builds a client over an existing values API. Empty sheet names fall
// back to "Ledger" and "Stock"; a nil clock uses the wall clock.
func New(v values, ledgerSheet, stockSheet string, loc *time.Location, clk clock.Clock) *Client {
	ledgerSheet = strings.TrimSpace(ledgerSheet)
	if ledgerSheet == "" {
		ledgerSheet = defaultLedgerSheet
	}
	stockSheet = strings.TrimSpace(stockSheet)
	if stockSheet == "" {
		stockSheet = defaultStockSheet
	}
	if loc == nil {
		loc = time.Local
	}
	if clk == nil {
		clk = clock.WallClock
	}
	return &Client{
		values:             v,
		ledgerSheet:        ledgerSheet,
		stockSheet:         stockSheet,
		loc:                loc,
		clk:                clk,
		cacheValidDuration: 5 * time.Minute,
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Uses GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	credentialsJSON, err := serviceAccountCredentials(ctx)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	service, err := gsheet.NewService(ctx,
		goption.WithHTTPClient(newHTTPClientWithPooling()),
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

func serviceAccountCredentials(ctx context.Context) ([]byte, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case serviceAccountJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(serviceAccountJSON), nil
	case serviceAccountFile != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// newHTTPClientWithPooling creates an HTTP client for the Sheets API with
// connection pooling and bounded timeouts.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// AppendTransaction writes tx as a new ledger row. A transaction that is
// already on the sheet is left alone so redelivered events stay idempotent.
func (c *Client) AppendTransaction(ctx context.Context, tx core.Transaction) (string, error) {
	if tx.ID == "" {
		return "", core.Validation(errors.New("transaction without id"))
	}
	if c.values == nil {
		return "", errors.New("sheets service not initialized")
	}

	idx, err := c.index(ctx)
	if err != nil {
		return "", err
	}
	if row, ok := idx[tx.ID]; ok {
		slog.InfoContext(ctx, "Transaction already exported", "id", tx.ID, "row", row)
		return fmt.Sprintf("%s!A%d:H%d", c.ledgerSheet, row, row), nil
	}
	if len(idx) == 0 {
		if err := c.ensureHeader(ctx); err != nil {
			return "", err
		}
	}

	ref, err := c.values.Append(ctx, fmt.Sprintf("%s!A:H", c.ledgerSheet), [][]any{c.ledgerRow(tx, statusActive)})
	if err != nil {
		return "", fmt.Errorf("failed to append to sheet %s: %w", c.ledgerSheet, err)
	}
	c.invalidateRowCache()
	return ref, nil
}

// UpdateTransaction rewrites the exported row of id with the patch applied.
func (c *Client) UpdateTransaction(ctx context.Context, id string, patch core.TransactionPatch) error {
	row, cols, err := c.find(ctx, id)
	if err != nil {
		return err
	}
	tx, err := c.parseLedgerRow(cols)
	if err != nil {
		return fmt.Errorf("parse row %d of %s: %w", row, c.ledgerSheet, err)
	}
	patch.Apply(&tx)

	rng := fmt.Sprintf("%s!A%d:H%d", c.ledgerSheet, row, row)
	if err := c.values.Update(ctx, rng, [][]any{c.ledgerRow(tx, statusEdited)}); err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

// MarkDeleted flags the exported row of id as deleted. Rows are kept so the
// sheet doubles as an audit trail.
func (c *Client) MarkDeleted(ctx context.Context, id string) error {
	row, _, err := c.find(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			slog.WarnContext(ctx, "Deleted transaction was never exported", "id", id)
			return nil
		}
		return err
	}
	rng := fmt.Sprintf("%s!H%d", c.ledgerSheet, row)
	if err := c.values.Update(ctx, rng, [][]any{{statusDeleted}}); err != nil {
		return fmt.Errorf("failed to update %s: %w", rng, err)
	}
	return nil
}

// AppendStock writes one stock movement to the stock sheet.
func (c *Client) AppendStock(ctx context.Context, r ports.StockRow) (string, error) {
	if c.values == nil {
		return "", errors.New("sheets service not initialized")
	}
	at := r.At
	if at.IsZero() {
		at = c.clk.Now()
	}
	row := []any{at.In(c.loc).Format(timestampLayout), r.ProductID, string(r.Direction), r.Quantity, r.NewStock, r.Result}
	ref, err := c.values.Append(ctx, fmt.Sprintf("%s!A:F", c.stockSheet), [][]any{row})
	if err != nil {
		return "", fmt.Errorf("failed to append to sheet %s: %w", c.stockSheet, err)
	}
	return ref, nil
}

func (c *Client) ensureHeader(ctx context.Context) error {
	rng := fmt.Sprintf("%s!A1:H1", c.ledgerSheet)
	rows, err := c.values.Get(ctx, rng)
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		return nil
	}
	if err := c.values.Update(ctx, rng, [][]any{ledgerHeader}); err != nil {
		return fmt.Errorf("write header %s: %w", rng, err)
	}
	return nil
}

func (c *Client) ledgerRow(tx core.Transaction, status string) []any {
	createdBy := ""
	if tx.CreatedBy != nil {
		createdBy = *tx.CreatedBy
	}
	return []any{
		tx.ID,
		tx.Timestamp.In(c.loc).Format(timestampLayout),
		string(tx.Type),
		tx.Category,
		tx.Amount.String(),
		tx.Description,
		createdBy,
		status,
	}
}

func (c *Client) parseLedgerRow(cols []string) (core.Transaction, error) {
	if len(cols) < 5 {
		return core.Transaction{}, fmt.Errorf("expected at least 5 columns, got %d", len(cols))
	}
	ts, err := time.ParseInLocation(timestampLayout, cols[1], c.loc)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("timestamp: %w", err)
	}
	amount, err := core.NewMoney(strings.ReplaceAll(cols[4], ",", "."))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("amount: %w", err)
	}
	tx := core.Transaction{
		ID:          cols[0],
		Timestamp:   ts,
		Type:        core.TxType(cols[2]),
		Category:    cols[3],
		Amount:      amount,
		Description: safeGet(cols, 5),
	}
	if by := safeGet(cols, 6); by != "" {
		tx.CreatedBy = &by
	}
	return tx, nil
}

// find locates the row of id and returns its current cells.
func (c *Client) find(ctx context.Context, id string) (int, []string, error) {
	if c.values == nil {
		return 0, nil, errors.New("sheets service not initialized")
	}
	idx, err := c.index(ctx)
	if err != nil {
		return 0, nil, err
	}
	row, ok := idx[id]
	if !ok {
		return 0, nil, fmt.Errorf("transaction %s on sheet %s: %w", id, c.ledgerSheet, core.ErrNotFound)
	}
	rng := fmt.Sprintf("%s!A%d:H%d", c.ledgerSheet, row, row)
	rows, err := c.values.Get(ctx, rng)
	if err != nil {
		return 0, nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(rows) == 0 {
		c.invalidateRowCache()
		return 0, nil, fmt.Errorf("row %d of %s is empty: %w", row, c.ledgerSheet, core.ErrNotFound)
	}
	return row, toStrings(rows[0]), nil
}

// index maps transaction ids to their 1-based sheet rows. The map is cached
// for cacheValidDuration and dropped on every append.
func (c *Client) index(ctx context.Context) (map[string]int, error) {
	c.mu.Lock()
	if c.rowIndex != nil && c.clk.Now().Before(c.cacheExpiresAt) {
		idx := c.rowIndex
		c.mu.Unlock()
		return idx, nil
	}
	c.mu.Unlock()

	rng := fmt.Sprintf("%s!A:A", c.ledgerSheet)
	rows, err := c.values.Get(ctx, rng)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	idx := make(map[string]int, len(rows))
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		id := strings.TrimSpace(fmt.Sprint(row[0]))
		if id == "" || (i == 0 && strings.EqualFold(id, "id")) {
			continue
		}
		idx[id] = i + 1
	}

	c.mu.Lock()
	c.rowIndex = idx
	c.cacheExpiresAt = c.clk.Now().Add(c.cacheValidDuration)
	c.mu.Unlock()
	return idx, nil
}

func (c *Client) invalidateRowCache() {
	c.mu.Lock()
	c.rowIndex = nil
	c.cacheExpiresAt = time.Time{}
	c.mu.Unlock()
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// serviceValues adapts the generated Sheets client.
type serviceValues struct {
	svc           *gsheet.Service
	spreadsheetID string
}

func (s *serviceValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s *serviceValues) Update(ctx context.Context, rng string, rows [][]any) error {
	vr := &gsheet.ValueRange{Values: rows}
	_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (s *serviceValues) Append(ctx context.Context, rng string, rows [][]any) (string, error) {
	vr := &gsheet.ValueRange{Values: rows}
	resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}
