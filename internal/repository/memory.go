package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mmeshcher/smm-dashboard/internal/model"
)

// MemoryStore хранит сессии и журнал заказов в памяти процесса.
// Используется, когда адрес БД не задан.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.SessionRecord
	orders   map[string]model.PlacedOrder
}

// NewMemoryStore создаёт пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]model.SessionRecord),
		orders:   make(map[string]model.PlacedOrder),
	}
}

// SaveSession сохраняет сессию.
func (m *MemoryStore) SaveSession(ctx context.Context, rec model.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[rec.ID] = rec
	return nil
}

// GetSession возвращает сессию по идентификатору.
func (m *MemoryStore) GetSession(ctx context.Context, id string) (*model.SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &rec, nil
}

// UpdateSessionCurrency сохраняет выбранную валюту сессии.
func (m *MemoryStore) UpdateSessionCurrency(ctx context.Context, id, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	rec.CurrencyCode = code
	m.sessions[id] = rec
	return nil
}

// DeleteSession удаляет сессию вместе с её журналом заказов.
func (m *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	for key, o := range m.orders {
		if o.SessionID == id {
			delete(m.orders, key)
		}
	}
	return nil
}

// RecordOrder добавляет заказ в журнал.
func (m *MemoryStore) RecordOrder(ctx context.Context, o model.PlacedOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[o.OrderID]; ok {
		return fmt.Errorf("%w: %s", ErrOrderExists, o.OrderID)
	}
	m.orders[o.OrderID] = o
	return nil
}

// RecentOrders возвращает последние заказы сессии, новые первыми.
func (m *MemoryStore) RecentOrders(ctx context.Context, sessionID string, limit int) ([]model.PlacedOrder, error) {
	m.mu.RLock()
	var res []model.PlacedOrder
	for _, o := range m.orders {
		if o.SessionID == sessionID {
			res = append(res, o)
		}
	}
	m.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
