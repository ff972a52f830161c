package http

import (
	"errors"
	"net/http"

	"shopledger/internal/core"
)

// handleDailyReport summarises one day, today when date is omitted.
func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	day, ok, err := queryDate(r, "date", s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		day = s.clock.Now().In(s.loc)
	}
	if err := s.loadLedger(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, s.deps.Reports.Daily(day))
}

// handlePeriodReport summarises from..to, both dates inclusive.
func (s *Server) handlePeriodReport(w http.ResponseWriter, r *http.Request) {
	from, okFrom, err := queryDate(r, "from", s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, okTo, err := queryDate(r, "to", s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !okFrom || !okTo {
		writeError(w, r, withDetails(core.Validation(errors.New("from and to are required")),
			map[string]string{"from": "is required", "to": "is required"}))
		return
	}
	if err := s.loadLedger(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.deps.Reports.Period(from, to.AddDate(0, 0, 1))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, sum)
}
