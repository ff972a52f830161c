package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shopledger/internal/core"
)

type categoryRequest struct {
	Name      string `json:"name" validate:"required,max=64"`
	Label     string `json:"label" validate:"required,max=128"`
	Type      string `json:"type" validate:"required,oneof=income expense"`
	Icon      string `json:"icon" validate:"max=64"`
	SortOrder int    `json:"sort_order" validate:"min=0"`
}

func (c categoryRequest) category() core.Category {
	return core.Category{
		Name:      c.Name,
		Label:     c.Label,
		Type:      core.TxType(c.Type),
		Icon:      c.Icon,
		SortOrder: c.SortOrder,
	}
}

// reorderRequest names categories in their new order. Names rather than ids,
// because unsaved defaults have no id yet.
type reorderRequest struct {
	Names []string `json:"names" validate:"required,min=1,dive,required"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	items, err := s.deps.Categories.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Categories.Upsert(r.Context(), req.category(), "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	saved, err := s.deps.Categories.Upsert(r.Context(), req.category(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Categories.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReorderCategories applies the order at once and answers 202: the
// backend catches up through the reconciliation queue.
func (s *Server) handleReorderCategories(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	current, err := s.deps.Categories.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Names) != len(current) {
		writeError(w, r, core.Validation(fmt.Errorf("reorder must name all %d categories, got %d", len(current), len(req.Names))))
		return
	}

	byName := make(map[string]core.Category, len(current))
	for _, c := range current {
		byName[c.Name] = c
	}
	ordered := make([]core.Category, 0, len(req.Names))
	seen := map[string]bool{}
	for _, name := range req.Names {
		c, ok := byName[name]
		if !ok {
			writeError(w, r, core.Validation(fmt.Errorf("unknown category %q", name)))
			return
		}
		if seen[name] {
			writeError(w, r, core.Validation(errors.New("duplicate category "+name)))
			return
		}
		seen[name] = true
		ordered = append(ordered, c)
	}

	s.deps.Categories.Reorder(r.Context(), ordered)
	items, err := s.deps.Categories.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusAccepted, items)
}
