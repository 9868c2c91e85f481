// Package notification хранит уведомления пользователя.
package notification

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mmeshcher/smm-dashboard/internal/model"
)

// ErrNotFound возвращается, если уведомления нет в локальном списке.
var ErrNotFound = errors.New("notification not found")

// Backend описывает эндпоинты уведомлений панели.
type Backend interface {
	Notifications(ctx context.Context) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id int64) error
	ClearNotifications(ctx context.Context) error
}

// Center хранит список уведомлений. Локальный список меняется до запроса к бэкенду
// и не откатывается, если запрос не удался.
type Center struct {
	backend Backend
	logger  *zap.Logger

	mu    sync.RWMutex
	items []model.Notification
}

// NewCenter создаёт Center.
func NewCenter(backend Backend, logger *zap.Logger) *Center {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Center{backend: backend, logger: logger}
}

// Load перечитывает уведомления из бэкенда. При ошибке список остаётся прежним.
func (c *Center) Load(ctx context.Context) ([]model.Notification, error) {
	list, err := c.backend.Notifications(ctx)
	if err != nil {
		c.logger.Warn("load notifications", zap.Error(err))
		return nil, err
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})

	c.mu.Lock()
	c.items = list
	c.mu.Unlock()

	return c.List(), nil
}

// List возвращает копию локального списка, новые уведомления первыми.
func (c *Center) List() []model.Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Notification(nil), c.items...)
}

// UnreadCount возвращает число непрочитанных уведомлений.
func (c *Center) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.items {
		if !it.IsRead {
			n++
		}
	}
	return n
}

// MarkRead отмечает уведомление прочитанным.
func (c *Center) MarkRead(ctx context.Context, id int64) error {
	c.mu.Lock()
	idx := c.index(id)
	if idx < 0 {
		c.mu.Unlock()
		return ErrNotFound
	}
	c.items[idx].IsRead = true
	c.mu.Unlock()

	return c.call("mark notification read", id, c.backend.MarkNotificationRead(ctx, id))
}

// MarkAllRead отмечает прочитанными все уведомления.
func (c *Center) MarkAllRead(ctx context.Context) error {
	c.mu.Lock()
	for i := range c.items {
		c.items[i].IsRead = true
	}
	c.mu.Unlock()

	return c.call("mark all notifications read", 0, c.backend.MarkAllNotificationsRead(ctx))
}

// Delete удаляет уведомление.
func (c *Center) Delete(ctx context.Context, id int64) error {
	c.mu.Lock()
	idx := c.index(id)
	if idx < 0 {
		c.mu.Unlock()
		return ErrNotFound
	}
	c.items = append(c.items[:idx:idx], c.items[idx+1:]...)
	c.mu.Unlock()

	return c.call("delete notification", id, c.backend.DeleteNotification(ctx, id))
}

// Clear удаляет все уведомления.
func (c *Center) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()

	return c.call("clear notifications", 0, c.backend.ClearNotifications(ctx))
}

func (c *Center) call(op string, id int64, err error) error {
	if err != nil {
		c.logger.Warn(op, zap.Int64("notificationID", id), zap.Error(err))
	}
	return err
}

func (c *Center) index(id int64) int {
	for i, it := range c.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
