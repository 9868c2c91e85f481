// Package handler содержит HTTP-обработчики API дашборда.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mmeshcher/smm-dashboard/internal/errclass"
	"github.com/mmeshcher/smm-dashboard/internal/metrics"
	"github.com/mmeshcher/smm-dashboard/internal/middleware"
	"github.com/mmeshcher/smm-dashboard/internal/panel"
	"github.com/mmeshcher/smm-dashboard/internal/session"
)

// Sessions определяет контракт хранилища сессий, используемого HTTP-обработчиками.
type Sessions interface {
	Open(ctx context.Context, token string) (*session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
	Close(ctx context.Context, id string) error
}

type ctxKey struct{}

// Handler реализует HTTP-обработчики API дашборда.
type Handler struct {
	sessions       Sessions
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	metrics        *metrics.Registry
	validate       *validator.Validate
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Sessions, logger *zap.Logger, auth *middleware.AuthMiddleware, m *metrics.Registry) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sessions:       s,
		logger:         logger,
		authMiddleware: auth,
		metrics:        m,
		validate:       validator.New(),
	}
}

// withSession загружает сессию из cookie и кладёт её в контекст запроса.
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := middleware.GetSessionIDFromContext(r.Context())
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		s, err := h.sessions.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrUnauthorized) {
				h.authMiddleware.ClearSessionCookie(w)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			h.backendError(w, "restore session error", err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, s)))
	})
}

func currentSession(r *http.Request) *session.Session {
	s, _ := r.Context().Value(ctxKey{}).(*session.Session)
	return s
}

// decode читает JSON-тело запроса и проверяет его теги validate.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

// backendError отвечает на ошибку обращения к бэкенду панели.
func (h *Handler) backendError(w http.ResponseWriter, msg string, err error) {
	var apiErr *panel.APIError
	switch {
	case errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden):
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
		return
	case errors.As(err, &apiErr) && apiErr.NotFound():
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	h.logger.Error(msg, zap.Error(err))

	var trErr *panel.TransportError
	if errors.As(err, &trErr) && trErr.Timeout() {
		http.Error(w, http.StatusText(http.StatusGatewayTimeout), http.StatusGatewayTimeout)
		return
	}
	http.Error(w, http.StatusText(http.StatusBadGateway), http.StatusBadGateway)
}

// statusCode подбирает HTTP-статус для результата оформления заказа.
func statusCode(category string) int {
	switch errclass.Category(category) {
	case errclass.Validation, errclass.ServiceUnavailable:
		return http.StatusUnprocessableEntity
	case errclass.InsufficientBalance:
		return http.StatusPaymentRequired
	case errclass.DuplicateOrder:
		return http.StatusConflict
	case errclass.Timeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
