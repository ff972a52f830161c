package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"shopledger/internal/core"
)

func notFound(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, core.ErrNotFound)...)
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339),
		"uptime":    s.clock.Now().Sub(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the backend and reports the state of the in-process helpers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if s.deps.Ping == nil {
		checks["backend"] = "not_configured"
	} else if err := s.deps.Ping(ctx); err != nil {
		checks["backend"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
	}

	checks["session"] = s.deps.Session.Current().Phase.String()
	checks["ledger_loaded"] = s.deps.Ledger.Loaded()
	checks["rate_limiter"] = s.limiter.GetMetrics()
	checks["security"] = s.detector.GetMetrics()
	checks["requests_total"] = s.tracer.TotalRequests()

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.clock.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
