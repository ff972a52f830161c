package http

import (
	"net/http"

	"shopledger/internal/core"
	"shopledger/internal/quickentry"
	"shopledger/internal/session"
)

const localOperatorKey = "local"

type quickEntryRequest struct {
	Category string   `json:"category" validate:"required,max=64"`
	Amount   *float64 `json:"amount" validate:"required"`
}

type quickEntryResponse struct {
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Status      quickentry.Status `json:"status"`
}

// controller returns the quick-entry controller of the signed-in operator.
// Each operator has an independent undo slot.
func (s *Server) controller() (*quickentry.Controller, error) {
	snap, err := s.deps.Session.Require()
	if err != nil {
		return nil, err
	}
	key := snap.Operator.ID
	if snap.Phase == session.LocalAdmin || key == "" {
		key = localOperatorKey
	}

	s.entriesMu.Lock()
	defer s.entriesMu.Unlock()
	c, ok := s.entries[key]
	if !ok {
		c = quickentry.New(s.deps.Ledger,
			quickentry.WithClock(s.clock),
			quickentry.WithBannerTTL(s.deps.BannerTTL))
		s.entries[key] = c
	}
	return c, nil
}

func (s *Server) handleQuickEntry(w http.ResponseWriter, r *http.Request) {
	var req quickEntryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	c, err := s.controller()
	if err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := s.deps.Categories.Find(r.Context(), req.Category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.loadLedger(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}

	tx, err := c.InstantEntry(r.Context(), cat, *req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logCreated(r, tx)
	writeData(w, http.StatusCreated, quickEntryResponse{Transaction: &tx, Status: c.Status()})
}

func (s *Server) handleQuickUndo(w http.ResponseWriter, r *http.Request) {
	c, err := s.controller()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := c.Undo(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, quickEntryResponse{Status: c.Status()})
}

func (s *Server) handleQuickRedo(w http.ResponseWriter, r *http.Request) {
	c, err := s.controller()
	if err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := c.Redo(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.logCreated(r, tx)
	writeData(w, http.StatusCreated, quickEntryResponse{Transaction: &tx, Status: c.Status()})
}

func (s *Server) handleQuickStatus(w http.ResponseWriter, r *http.Request) {
	c, err := s.controller()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, quickEntryResponse{Status: c.Status()})
}
