package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"shopledger/internal/core"
	"shopledger/internal/ledger"
	applog "shopledger/internal/log"
)

type transactionRequest struct {
	Type        string     `json:"type" validate:"required,oneof=income expense"`
	Category    string     `json:"category" validate:"required,max=64"`
	Amount      core.Money `json:"amount"`
	Description string     `json:"description" validate:"max=200"`
	Timestamp   *time.Time `json:"timestamp"`
}

func (t transactionRequest) draft() core.Draft {
	d := core.Draft{
		Type:        core.TxType(t.Type),
		Category:    strings.TrimSpace(t.Category),
		Amount:      t.Amount,
		Description: strings.TrimSpace(t.Description),
	}
	if t.Timestamp != nil {
		d.Timestamp = *t.Timestamp
	}
	return d
}

type createTransactionsRequest struct {
	Transactions []transactionRequest `json:"transactions" validate:"required,min=1,max=100,dive"`
}

// loadLedger makes sure the session's list is in memory before it is read.
func (s *Server) loadLedger(ctx context.Context) error {
	return s.deps.Ledger.Load(ctx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	if err := s.loadLedger(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}

	var f core.TransactionFilter
	from, ok, err := queryDate(r, "from", s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ok {
		f.From = from
	}
	to, ok, err := queryDate(r, "to", s.loc)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if ok {
		f.To = to.AddDate(0, 0, 1)
	}
	if typ := r.URL.Query().Get("type"); typ != "" {
		f.Type = core.TxType(typ)
		if !f.Type.Valid() {
			writeError(w, r, withDetails(core.Validation(core.ErrInvalidType), map[string]string{"type": "must be one of: income expense"}))
			return
		}
	}
	f.Category = r.URL.Query().Get("category")
	if f.Limit, err = queryInt(r, "limit", 100, 1, 1000); err != nil {
		writeError(w, r, err)
		return
	}

	items := s.deps.Ledger.Filter(f)
	if items == nil {
		items = []core.Transaction{}
	}
	writeData(w, http.StatusOK, items)
}

func (s *Server) handleCreateTransactions(w http.ResponseWriter, r *http.Request) {
	var req createTransactionsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.loadLedger(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	drafts := make([]core.Draft, len(req.Transactions))
	for i, t := range req.Transactions {
		drafts[i] = t.draft()
	}
	saved, err := s.deps.Ledger.AddMany(r.Context(), drafts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for _, tx := range saved {
		s.logCreated(r, tx)
	}
	writeData(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var patch core.TransactionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.loadLedger(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	tx, err := s.deps.Ledger.Update(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, tx)
}

// handleDeleteTransaction needs confirm=yes; without it the ledger's confirmation
// step declines and the answer is 428.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.loadLedger(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	confirm := ledger.Decline
	if strings.EqualFold(r.URL.Query().Get("confirm"), "yes") {
		confirm = ledger.Approve
	}
	if err := s.deps.Ledger.Delete(r.Context(), chi.URLParam(r, "id"), confirm); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) logCreated(r *http.Request, tx core.Transaction) {
	operator := ""
	if tx.CreatedBy != nil {
		operator = *tx.CreatedBy
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogTransactionCreated(r.Context(), operator, tx.ID, string(tx.Type), tx.Category, tx.Amount.Cents)
}
