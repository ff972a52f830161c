package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type sample struct {
	method, route string
	status        int
}

type recordingObserver struct{ samples []sample }

func (o *recordingObserver) ObserveHTTP(method, route string, status int, _ time.Duration) {
	o.samples = append(o.samples, sample{method, route, status})
}

func TestMiddleware_RequestIDAndRoute(t *testing.T) {
	obs := &recordingObserver{}
	m := NewMiddleware(func(r *http.Request) string { return r.RemoteAddr }, obs, nil)

	var seen string
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/products/abc", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Errorf("response header %q does not match %q", rec.Header().Get(RequestIDHeader), seen)
	}
	if len(obs.samples) != 1 {
		t.Fatalf("expected one sample, got %d", len(obs.samples))
	}
	got := obs.samples[0]
	if got.route != "/api/products/{id}" || got.status != http.StatusNotFound || got.method != http.MethodGet {
		t.Errorf("unexpected sample %+v", got)
	}
	if m.TotalRequests() != 1 {
		t.Errorf("TotalRequests = %d", m.TotalRequests())
	}
}

func TestMiddleware_KeepsIncomingRequestID(t *testing.T) {
	m := NewMiddleware(nil, nil, nil)
	var seen string
	h := m.Middleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "upstream-42")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if seen != "upstream-42" {
		t.Errorf("request id = %q, want upstream-42", seen)
	}
}
