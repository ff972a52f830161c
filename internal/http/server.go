// Package http exposes the shop core as a JSON API. Handlers are thin: they
// decode and validate the request, call one component operation and render
// its result or error.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/juju/clock"
	"github.com/prometheus/client_golang/prometheus"

	"shopledger/internal/cache"
	"shopledger/internal/categories"
	"shopledger/internal/inventory"
	"shopledger/internal/ledger"
	applog "shopledger/internal/log"
	"shopledger/internal/metrics"
	"shopledger/internal/middleware/ratelimit"
	"shopledger/internal/middleware/security"
	"shopledger/internal/middleware/trace"
	"shopledger/internal/quickentry"
	"shopledger/internal/reports"
	"shopledger/internal/session"
)

// Deps are the components the API serves. Ping, Metrics, Gatherer, Caches
// and Logger are optional.
type Deps struct {
	Session     *session.State
	Broadcaster *session.Broadcaster
	Categories  *categories.Registry
	Ledger      *ledger.Store
	Inventory   *inventory.Store
	Reports     *reports.Service

	Ping     func(context.Context) error
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Caches   *cache.Manager
	Logger   *applog.Logger

	Clock              clock.Clock
	Location           *time.Location
	BannerTTL          time.Duration
	RateLimitPerMinute int
	TrustedProxies     []string
}

type Server struct {
	http.Server

	deps     Deps
	clock    clock.Clock
	loc      *time.Location
	started  time.Time
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	entriesMu sync.Mutex
	entries   map[string]*quickentry.Controller
}

// NewServer builds the router and its middleware chain.
func NewServer(addr string, deps Deps) *Server {
	if deps.Clock == nil {
		deps.Clock = clock.WallClock
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}

	s := &Server{
		deps:    deps,
		clock:   deps.Clock,
		loc:     deps.Location,
		started: deps.Clock.Now(),
		entries: map[string]*quickentry.Controller{},
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: deps.RateLimitPerMinute,
			Clock:             deps.Clock,
		}),
		detector: security.NewDetector(),
	}

	for _, cidr := range deps.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil && deps.Logger != nil {
			deps.Logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}

	var observer trace.Observer
	if deps.Metrics != nil {
		observer = deps.Metrics
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, observer, deps.Logger)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	r := chi.NewRouter()
	r.Use(s.tracer.Middleware)
	r.Use(recoverer)
	r.Use(headers.Middleware)
	r.Use(s.detector.Middleware)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	if s.deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(s.deps.Gatherer))
	}

	r.Route("/session", func(r chi.Router) {
		r.Use(applog.ComponentMiddleware(applog.ComponentSession))

		r.Get("/", s.handleGetSession)
		r.Post("/", s.handleSignIn)
		r.Delete("/", s.handleSignOut)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, errRateLimited)
		}))
		r.Use(s.requireSession)

		r.Route("/categories", func(r chi.Router) {
			r.Use(applog.ComponentMiddleware(applog.ComponentCategories))

			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
			r.Post("/reorder", s.handleReorderCategories)
			r.Put("/{id}", s.handleUpdateCategory)
			r.Delete("/{id}", s.handleDeleteCategory)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Use(applog.ComponentMiddleware(applog.ComponentLedger))

			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransactions)
			r.Patch("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		r.Route("/quick-entry", func(r chi.Router) {
			r.Use(applog.ComponentMiddleware(applog.ComponentQuickEntry))

			r.Post("/", s.handleQuickEntry)
			r.Post("/undo", s.handleQuickUndo)
			r.Post("/redo", s.handleQuickRedo)
			r.Get("/status", s.handleQuickStatus)
		})

		r.Route("/products", func(r chi.Router) {
			r.Use(applog.ComponentMiddleware(applog.ComponentInventory))

			r.Get("/", s.handleListProducts)
			r.Post("/", s.handleUpsertProduct)
			r.Get("/low-stock", s.handleLowStock)
			r.Get("/{id}", s.handleGetProduct)
			r.Delete("/{id}", s.handleDeleteProduct)
			r.Post("/{id}/adjust", s.handleAdjustStock)
			r.Get("/{id}/logs", s.handleListLogs)
			r.Post("/{id}/logs", s.handleRecordLog)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Use(applog.ComponentMiddleware(applog.ComponentReports))

			r.Get("/daily", s.handleDailyReport)
			r.Get("/period", s.handlePeriodReport)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, notFound("route %s", r.URL.Path))
	})
	return r
}

// Shutdown stops background work and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	if s.deps.Caches != nil {
		s.deps.Caches.Stop()
	}
	if s.deps.Reports != nil {
		s.deps.Reports.Close()
	}
	return s.Server.Shutdown(ctx)
}

// requireSession rejects API calls while nobody is signed in.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.deps.Session.Require(); err != nil {
			writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				applog.FromContext(r.Context()).ErrorContext(r.Context(), "Panic recovered",
					"path", r.URL.Path,
					"panic", rec)
				writeError(w, r, fmt.Errorf("panic: %v", rec))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
