package handler

import (
	"errors"
	"net/http"

	"github.com/mmeshcher/smm-dashboard/internal/order"
	"github.com/mmeshcher/smm-dashboard/internal/search"
)

type queryRequest struct {
	Query string `json:"query" validate:"max=200"`
}

// SetSearchQuery принимает новое значение поисковой строки.
func (h *Handler) SetSearchQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !h.decode(w, r, &req) {
		return
	}

	engine := currentSession(r).Search
	engine.Input(req.Query)
	h.writeJSON(w, http.StatusAccepted, engine.Snapshot())
}

// GetSearch возвращает текущее состояние поиска.
func (h *Handler) GetSearch(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, currentSession(r).Search.Snapshot())
}

// FocusSearch сообщает о фокусе на поисковой строке.
func (h *Handler) FocusSearch(w http.ResponseWriter, r *http.Request) {
	engine := currentSession(r).Search
	engine.Focus()
	h.writeJSON(w, http.StatusOK, engine.Snapshot())
}

// BlurSearch сообщает о потере фокуса поисковой строкой.
func (h *Handler) BlurSearch(w http.ResponseWriter, r *http.Request) {
	engine := currentSession(r).Search
	engine.Blur()
	h.writeJSON(w, http.StatusOK, engine.Snapshot())
}

type selectResultRequest struct {
	ServiceID int64 `json:"service_id" validate:"required,gt=0"`
}

type selectResultResponse struct {
	Selection *search.Selection `json:"selection"`
	Order     order.View        `json:"order"`
}

// SelectSearchResult переносит выбранный результат поиска в форму заказа.
func (h *Handler) SelectSearchResult(w http.ResponseWriter, r *http.Request) {
	var req selectResultRequest
	if !h.decode(w, r, &req) {
		return
	}

	s := currentSession(r)
	sel, err := s.Search.Select(r.Context(), req.ServiceID)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrUnknownResult):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, search.ErrCategoryNotFound), errors.Is(err, search.ErrServiceNotFound):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			h.backendError(w, "select search result error", err)
		}
		return
	}

	s.Order.ApplySelection(sel)
	h.writeJSON(w, http.StatusOK, selectResultResponse{Selection: sel, Order: s.Order.View()})
}
