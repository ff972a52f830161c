package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"shopledger/internal/core"
	"shopledger/internal/inventory"
	applog "shopledger/internal/log"
)

type productRequest struct {
	ID            string     `json:"id" validate:"max=64"`
	Name          string     `json:"name" validate:"required,max=128"`
	NameBn        string     `json:"name_bn" validate:"max=128"`
	Category      string     `json:"category" validate:"required,max=64"`
	PurchasePrice core.Money `json:"purchase_price"`
	SalePriceMin  core.Money `json:"sale_price_min"`
	SalePriceMax  core.Money `json:"sale_price_max"`
	CurrentStock  int64      `json:"current_stock"`
	MinStock      int64      `json:"min_stock" validate:"min=0"`
}

func (p productRequest) product() core.Product {
	return core.Product{
		ID:            p.ID,
		Name:          p.Name,
		NameBn:        p.NameBn,
		Category:      p.Category,
		PurchasePrice: p.PurchasePrice,
		SalePriceMin:  p.SalePriceMin,
		SalePriceMax:  p.SalePriceMax,
		CurrentStock:  p.CurrentStock,
		MinStock:      p.MinStock,
	}
}

type stockRequest struct {
	Direction   string     `json:"direction" validate:"required,oneof=in out"`
	Quantity    int64      `json:"quantity" validate:"required,gt=0"`
	UnitPrice   core.Money `json:"unit_price"`
	Description string     `json:"description" validate:"max=200"`
}

type adjustResponse struct {
	inventory.Outcome
	Result string `json:"result"`
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Inventory.Products(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.Product{}
	}
	writeData(w, http.StatusOK, items)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Inventory.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

// handleUpsertProduct creates a product, or replaces the one named by id. The
// stock level of an existing product is not taken from the request.
func (s *Server) handleUpsertProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusCreated
	if req.ID != "" {
		status = http.StatusOK
	}
	saved, err := s.deps.Inventory.UpsertProduct(r.Context(), req.product())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, status, saved)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Inventory.DeleteProduct(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAdjustStock runs the stock-and-ledger saga. Failed adjustments carry
// the outcome in the error details so the caller can see whether the stock
// change was reverted.
func (s *Server) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.loadLedger(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := s.deps.Inventory.AdjustStock(r.Context(), chi.URLParam(r, "id"),
		core.Direction(req.Direction), req.Quantity, req.UnitPrice, req.Description)
	resp := adjustResponse{Outcome: out, Result: out.Result()}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).
		LogStockAdjusted(r.Context(), chi.URLParam(r, "id"), req.Direction, req.Quantity, resp.Result)
	if err != nil {
		if out.StockApplied || out.Compensated {
			err = withDetails(err, resp)
		}
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, resp)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50, 1, 500)
	if err != nil {
		writeError(w, r, err)
		return
	}
	logs, err := s.deps.Inventory.Logs(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if logs == nil {
		logs = []core.InventoryLog{}
	}
	writeData(w, http.StatusOK, logs)
}

// handleRecordLog writes a stock history row only. It neither moves stock
// nor touches the ledger.
func (s *Server) handleRecordLog(w http.ResponseWriter, r *http.Request) {
	var req stockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	l, err := s.deps.Inventory.RecordLog(r.Context(), chi.URLParam(r, "id"),
		core.Direction(req.Direction), req.Quantity, req.UnitPrice)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, l)
}

func (s *Server) handleLowStock(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Inventory.LowStock(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []inventory.LowStockItem{}
	}
	writeData(w, http.StatusOK, items)
}
