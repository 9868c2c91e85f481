package handler

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/mmeshcher/smm-dashboard/internal/model"
	"github.com/mmeshcher/smm-dashboard/internal/order"
)

const defaultRecentOrders = 20

// GetCategories возвращает отсортированные категории.
func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	s := currentSession(r)

	cats := s.Catalog.Categories()
	if len(cats) == 0 {
		var err error
		cats, err = s.Catalog.LoadCategories(r.Context())
		if err != nil {
			h.backendError(w, "get categories error", err)
			return
		}
	}

	h.writeJSON(w, http.StatusOK, cats)
}

// GetServices возвращает услуги категории из параметра category.
func (h *Handler) GetServices(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("category"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	services, err := currentSession(r).Catalog.LoadServices(r.Context(), id)
	if err != nil {
		h.backendError(w, "get services error", err)
		return
	}

	if services == nil {
		services = []model.Service{}
	}
	h.writeJSON(w, http.StatusOK, services)
}

// GetOrder возвращает состояние формы заказа.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, currentSession(r).Order.View())
}

type idRequest struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

// SelectCategory выбирает категорию заказа.
func (h *Handler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !h.decode(w, r, &req) {
		return
	}

	composer := currentSession(r).Order
	if err := composer.SelectCategory(r.Context(), req.ID); err != nil {
		if errors.Is(err, order.ErrUnknownCategory) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.backendError(w, "select category error", err)
		return
	}

	h.writeJSON(w, http.StatusOK, composer.View())
}

// SelectService выбирает услугу заказа.
func (h *Handler) SelectService(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if !h.decode(w, r, &req) {
		return
	}

	composer := currentSession(r).Order
	if err := composer.SelectService(req.ID); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, composer.View())
}

type quantityRequest struct {
	Quantity int64 `json:"quantity" validate:"gte=0"`
}

// SetQuantity задаёт количество.
func (h *Handler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !h.decode(w, r, &req) {
		return
	}

	composer := currentSession(r).Order
	composer.SetQuantity(req.Quantity)
	h.writeJSON(w, http.StatusOK, composer.View())
}

type linkRequest struct {
	Link string `json:"link" validate:"max=2048"`
}

// SetLink задаёт ссылку.
func (h *Handler) SetLink(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if !h.decode(w, r, &req) {
		return
	}

	composer := currentSession(r).Order
	composer.SetLink(req.Link)
	h.writeJSON(w, http.StatusOK, composer.View())
}

// SubmitOrder оформляет заказ. В теле ответа возвращается статус оформления.
func (h *Handler) SubmitOrder(w http.ResponseWriter, r *http.Request) {
	s := currentSession(r)

	st, err := s.Order.Submit(r.Context())
	if err != nil {
		if errors.Is(err, order.ErrSubmitInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Error("submit order error", zap.Error(err), zap.String("session", s.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if st.Success {
		h.writeJSON(w, http.StatusCreated, st)
		return
	}
	h.writeJSON(w, statusCode(st.Category), st)
}

// DismissOrderStatus скрывает результат последнего оформления.
func (h *Handler) DismissOrderStatus(w http.ResponseWriter, r *http.Request) {
	currentSession(r).Order.DismissStatus()
	w.WriteHeader(http.StatusNoContent)
}

// GetRecentOrders возвращает заказы, оформленные в текущей сессии.
func (h *Handler) GetRecentOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentOrders
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		limit = n
	}

	s := currentSession(r)
	orders, err := s.RecentOrders(r.Context(), limit)
	if err != nil {
		h.logger.Error("get recent orders error", zap.Error(err), zap.String("session", s.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, orders)
}
