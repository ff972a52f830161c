package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"shopledger/internal/core"
)

func TestCountersByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveLedgerWrite("insert", nil)
	m.ObserveLedgerWrite("insert", errors.New("boom"))
	m.ObserveLedgerWrite("delete", core.ErrCategoryInUse)
	m.ObserveStockAdjustment(core.StockOut, "compensated")

	if got := testutil.ToFloat64(m.ledgerWrites.WithLabelValues("insert", "ok")); got != 1 {
		t.Fatalf("expected insert ok=1, got %v", got)
	}
	if got := testutil.ToFloat64(m.ledgerWrites.WithLabelValues("insert", "internal_error")); got != 1 {
		t.Fatalf("expected insert internal_error=1, got %v", got)
	}
	if got := testutil.ToFloat64(m.ledgerWrites.WithLabelValues("delete", "conflict_error")); got != 1 {
		t.Fatalf("expected delete conflict=1, got %v", got)
	}
	if got := testutil.ToFloat64(m.stockAdjustments.WithLabelValues("out", "compensated")); got != 1 {
		t.Fatalf("expected compensated=1, got %v", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveLedgerWrite("insert", nil)
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	New(nil).ObserveExport("added", nil)
}

func TestHandlerExposesHTTPMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveHTTP(http.MethodPost, "/api/quick-entry", 201, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `shopledger_http_requests_total{method="POST",route="/api/quick-entry",status="201"} 1`) {
		t.Fatalf("missing request counter in:\n%s", body)
	}
}
