package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/smm-dashboard/internal/model"
	"github.com/mmeshcher/smm-dashboard/internal/notification"
)

type notificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
	Unread        int                  `json:"unread"`
}

func notificationsOf(c *notification.Center) notificationsResponse {
	list := c.List()
	if list == nil {
		list = []model.Notification{}
	}
	return notificationsResponse{Notifications: list, Unread: c.UnreadCount()}
}

// GetNotifications перечитывает уведомления пользователя.
func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	center := currentSession(r).Notifications
	if _, err := center.Load(r.Context()); err != nil {
		h.backendError(w, "get notifications error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, notificationsOf(center))
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, ok := notificationID(w, r)
	if !ok {
		return
	}

	center := currentSession(r).Notifications
	h.notificationResult(w, center, center.MarkRead(r.Context(), id))
}

// MarkAllNotificationsRead отмечает прочитанными все уведомления.
func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	center := currentSession(r).Notifications
	h.notificationResult(w, center, center.MarkAllRead(r.Context()))
}

// DeleteNotification удаляет уведомление.
func (h *Handler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	id, ok := notificationID(w, r)
	if !ok {
		return
	}

	center := currentSession(r).Notifications
	h.notificationResult(w, center, center.Delete(r.Context(), id))
}

// ClearNotifications удаляет все уведомления.
func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	center := currentSession(r).Notifications
	h.notificationResult(w, center, center.Clear(r.Context()))
}

// notificationResult отвечает локальным списком; ошибка бэкенда его не откатывает.
func (h *Handler) notificationResult(w http.ResponseWriter, center *notification.Center, err error) {
	if errors.Is(err, notification.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.backendError(w, "update notifications error", err)
		return
	}
	h.writeJSON(w, http.StatusOK, notificationsOf(center))
}

func notificationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
