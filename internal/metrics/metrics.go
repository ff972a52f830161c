// Package metrics exposes the service's Prometheus instruments. A Metrics
// built from a nil registerer, and a nil *Metrics, record nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopledger/internal/core"
)

const namespace = "shopledger"

type Metrics struct {
	ledgerWrites     *prometheus.CounterVec
	stockAdjustments *prometheus.CounterVec
	exports          *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	m := &Metrics{
		ledgerWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_writes_total",
			Help:      "Ledger backend writes by operation and result.",
		}, []string{"op", "result"}),
		stockAdjustments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_adjustments_total",
			Help:      "Stock adjustments by direction and saga result.",
		}, []string{"direction", "result"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheet_exports_total",
			Help:      "Ledger events exported to the report spreadsheet.",
		}, []string{"event", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	reg.MustRegister(m.ledgerWrites, m.stockAdjustments, m.exports, m.httpRequests, m.httpDuration)
	return m
}

// ObserveLedgerWrite counts a backend write; err classifies the result.
func (m *Metrics) ObserveLedgerWrite(op string, err error) {
	if m == nil || m.ledgerWrites == nil {
		return
	}
	m.ledgerWrites.WithLabelValues(normalize(op), result(err)).Inc()
}

func (m *Metrics) ObserveStockAdjustment(dir core.Direction, res string) {
	if m == nil || m.stockAdjustments == nil {
		return
	}
	m.stockAdjustments.WithLabelValues(normalize(string(dir)), normalize(res)).Inc()
}

func (m *Metrics) ObserveExport(event string, err error) {
	if m == nil || m.exports == nil {
		return
	}
	m.exports.WithLabelValues(normalize(event), result(err)).Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil || m.httpRequests == nil {
		return
	}
	route = normalize(route)
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the gathered metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err == nil {
		return "ok"
	}
	return core.Kind(err)
}

func normalize(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
