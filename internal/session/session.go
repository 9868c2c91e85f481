// Package session связывает компоненты дашборда одного пользователя.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/smm-dashboard/internal/catalog"
	"github.com/mmeshcher/smm-dashboard/internal/currency"
	"github.com/mmeshcher/smm-dashboard/internal/metrics"
	"github.com/mmeshcher/smm-dashboard/internal/model"
	"github.com/mmeshcher/smm-dashboard/internal/notification"
	"github.com/mmeshcher/smm-dashboard/internal/order"
	"github.com/mmeshcher/smm-dashboard/internal/panel"
	"github.com/mmeshcher/smm-dashboard/internal/repository"
	"github.com/mmeshcher/smm-dashboard/internal/search"
)

var (
	// ErrNotFound возвращается для неизвестной или закрытой сессии.
	ErrNotFound = errors.New("session not found")
	// ErrUnauthorized возвращается, если бэкенд панели отверг токен.
	ErrUnauthorized = errors.New("api token rejected")
)

// Store сохраняет сессии и журнал оформленных заказов.
// GetSession возвращает repository.ErrSessionNotFound, если сессии нет.
type Store interface {
	SaveSession(ctx context.Context, rec model.SessionRecord) error
	GetSession(ctx context.Context, id string) (*model.SessionRecord, error)
	UpdateSessionCurrency(ctx context.Context, id, code string) error
	DeleteSession(ctx context.Context, id string) error
	RecordOrder(ctx context.Context, o model.PlacedOrder) error
	RecentOrders(ctx context.Context, sessionID string, limit int) ([]model.PlacedOrder, error)
}

// Config содержит параметры компонентов сессии.
type Config struct {
	Pricing            order.PricingUnit
	Search             search.Config
	FallbackCategories int
}

// Session хранит набор компонентов дашборда одного пользователя.
type Session struct {
	ID            string
	Book          *currency.Book
	Wallet        *currency.Wallet
	Catalog       *catalog.Loader
	Search        *search.Engine
	Order         *order.Composer
	Notifications *notification.Center

	client *panel.Client
	store  Store
	logger *zap.Logger
}

// SelectCurrency меняет валюту отображения и сохраняет выбор.
func (s *Session) SelectCurrency(ctx context.Context, code string) error {
	if err := s.Book.Select(code); err != nil {
		return err
	}
	if err := s.store.UpdateSessionCurrency(ctx, s.ID, code); err != nil {
		return fmt.Errorf("save currency: %w", err)
	}
	return nil
}

// RefreshCurrencies перечитывает список валют.
func (s *Session) RefreshCurrencies(ctx context.Context) error {
	list, err := s.client.Currencies(ctx)
	if err != nil {
		return err
	}
	s.Book.Set(list)
	return nil
}

// RefreshBalance перечитывает баланс пользователя.
func (s *Session) RefreshBalance(ctx context.Context) (float64, error) {
	balance, err := s.client.Balance(ctx)
	if err != nil {
		return 0, err
	}
	s.Wallet.Set(balance)
	return balance, nil
}

// RecentOrders возвращает заказы, оформленные в этой сессии.
func (s *Session) RecentOrders(ctx context.Context, limit int) ([]model.PlacedOrder, error) {
	return s.store.RecentOrders(ctx, s.ID, limit)
}

func (s *Session) close() {
	s.Search.Close()
}

// Manager открывает сессии и хранит живые.
type Manager struct {
	client  *panel.Client
	store   Store
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Registry

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager создаёт Manager. client должен быть клиентом панели без токена.
func NewManager(client *panel.Client, store Store, cfg Config, logger *zap.Logger, m *metrics.Registry) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		client:   client,
		store:    store,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*Session),
	}
}

// Open проверяет токен, создаёт сессию и сохраняет её.
func (m *Manager) Open(ctx context.Context, token string) (*Session, error) {
	rec := model.SessionRecord{
		ID:        uuid.NewString(),
		APIToken:  token,
		CreatedAt: time.Now().UTC(),
	}

	s, err := m.start(ctx, rec)
	if err != nil {
		return nil, err
	}

	if cur := s.Book.Selected(); cur != nil {
		rec.CurrencyCode = cur.Code
	}
	if err := m.store.SaveSession(ctx, rec); err != nil {
		s.close()
		return nil, fmt.Errorf("save session: %w", err)
	}

	m.mu.Lock()
	m.sessions[rec.ID] = s
	m.mu.Unlock()

	m.logger.Info("session opened", zap.String("session", rec.ID))
	return s, nil
}

// Get возвращает живую сессию или восстанавливает её из хранилища.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		return s, nil
	}

	rec, err := m.store.GetSession(ctx, id)
	if errors.Is(err, repository.ErrSessionNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	s, err = m.start(ctx, *rec)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if live, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		s.close()
		return live, nil
	}
	m.sessions[id] = s
	m.mu.Unlock()

	m.logger.Info("session restored", zap.String("session", id))
	return s, nil
}

// Close останавливает сессию и удаляет её из хранилища.
func (m *Manager) Close(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.close()
	}
	if err := m.store.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Shutdown останавливает все живые сессии, оставляя их в хранилище.
func (m *Manager) Shutdown() {
	m.cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.close()
		delete(m.sessions, id)
	}
}

func (m *Manager) start(ctx context.Context, rec model.SessionRecord) (*Session, error) {
	client := m.client.WithToken(rec.APIToken)
	logger := m.logger.With(zap.String("session", rec.ID))

	s := &Session{
		ID:            rec.ID,
		Book:          currency.NewBook(),
		Wallet:        &currency.Wallet{},
		Catalog:       catalog.NewLoader(client, m.cfg.FallbackCategories, logger),
		Notifications: notification.NewCenter(client, logger),
		client:        client,
		store:         m.store,
		logger:        logger,
	}

	if _, err := s.RefreshBalance(ctx); err != nil {
		var apiErr *panel.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("load balance: %w", err)
	}

	if err := s.RefreshCurrencies(ctx); err != nil {
		logger.Warn("load currencies", zap.Error(err))
	}
	if rec.CurrencyCode != "" {
		if err := s.Book.Select(rec.CurrencyCode); err != nil {
			logger.Warn("restore currency", zap.String("code", rec.CurrencyCode), zap.Error(err))
		}
	}

	s.Search = search.NewEngine(m.ctx, client, s.Catalog, m.cfg.Search, logger, m.metrics)
	s.Order = order.NewComposer(order.Deps{
		SessionID: rec.ID,
		Backend:   client,
		Catalog:   s.Catalog,
		Book:      s.Book,
		Wallet:    s.Wallet,
		Journal:   m.store,
		Pricing:   m.cfg.Pricing,
		Logger:    logger,
		Metrics:   m.metrics,
	})

	if err := s.Order.Init(ctx); err != nil {
		logger.Warn("load categories", zap.Error(err))
	}
	// ошибку пишет в лог сам Center
	_, _ = s.Notifications.Load(ctx)

	return s, nil
}
