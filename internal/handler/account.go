package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/smm-dashboard/internal/currency"
	"github.com/mmeshcher/smm-dashboard/internal/middleware"
	"github.com/mmeshcher/smm-dashboard/internal/model"
	"github.com/mmeshcher/smm-dashboard/internal/session"
)

type openSessionRequest struct {
	Token string `json:"token" validate:"required"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Currency  string `json:"currency"`
	Balance   string `json:"balance"`
}

// OpenSession проверяет токен панели и открывает сессию.
func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, err := h.sessions.Open(r.Context(), req.Token)
	if err != nil {
		if errors.Is(err, session.ErrUnauthorized) {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		h.backendError(w, "open session error", err)
		return
	}

	h.authMiddleware.SetSessionCookie(w, s.ID)

	resp := sessionResponse{SessionID: s.ID}
	if cur := s.Book.Selected(); cur != nil {
		resp.Currency = cur.Code
	}
	balance, _ := s.Wallet.Get()
	resp.Balance = s.Book.FormatSelected(balance)

	h.writeJSON(w, http.StatusOK, resp)
}

// CloseSession закрывает текущую сессию.
func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetSessionIDFromContext(r.Context())
	if !ok {
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	}

	if err := h.sessions.Close(r.Context(), id); err != nil {
		h.logger.Error("close session error", zap.Error(err), zap.String("session", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.authMiddleware.ClearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type currenciesResponse struct {
	Currencies []model.Currency `json:"currencies"`
	Selected   string           `json:"selected"`
}

// GetCurrencies возвращает список валют и выбранную валюту.
func (h *Handler) GetCurrencies(w http.ResponseWriter, r *http.Request) {
	s := currentSession(r)

	if len(s.Book.List()) == 0 {
		if err := s.RefreshCurrencies(r.Context()); err != nil {
			h.backendError(w, "get currencies error", err)
			return
		}
	}

	resp := currenciesResponse{Currencies: s.Book.List()}
	if cur := s.Book.Selected(); cur != nil {
		resp.Selected = cur.Code
	}
	h.writeJSON(w, http.StatusOK, resp)
}

type selectCurrencyRequest struct {
	Code string `json:"code" validate:"required"`
}

// SelectCurrency меняет валюту отображения.
func (h *Handler) SelectCurrency(w http.ResponseWriter, r *http.Request) {
	var req selectCurrencyRequest
	if !h.decode(w, r, &req) {
		return
	}

	s := currentSession(r)
	if err := s.SelectCurrency(r.Context(), req.Code); err != nil {
		if errors.Is(err, currency.ErrUnknownCurrency) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.logger.Error("select currency error", zap.Error(err), zap.String("session", s.ID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, currenciesResponse{Currencies: s.Book.List(), Selected: req.Code})
}

type balanceResponse struct {
	Balance   float64 `json:"balance"`
	Converted float64 `json:"converted"`
	Formatted string  `json:"formatted"`
	Currency  string  `json:"currency"`
}

// GetBalance перечитывает баланс пользователя и возвращает его в выбранной валюте.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	s := currentSession(r)

	balance, err := s.RefreshBalance(r.Context())
	if err != nil {
		h.backendError(w, "get balance error", err)
		return
	}

	resp := balanceResponse{
		Balance:   balance,
		Converted: s.Book.ToSelected(balance),
		Formatted: s.Book.FormatSelected(balance),
	}
	if cur := s.Book.Selected(); cur != nil {
		resp.Currency = cur.Code
	}
	h.writeJSON(w, http.StatusOK, resp)
}
