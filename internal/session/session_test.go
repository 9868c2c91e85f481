package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/smm-dashboard/internal/model"
	"github.com/mmeshcher/smm-dashboard/internal/order"
	"github.com/mmeshcher/smm-dashboard/internal/panel"
	"github.com/mmeshcher/smm-dashboard/internal/panel/paneltest"
	"github.com/mmeshcher/smm-dashboard/internal/repository"
	"github.com/mmeshcher/smm-dashboard/internal/search"
)

func newBackend(t *testing.T) *paneltest.Backend {
	t.Helper()

	b := paneltest.New(t)
	b.Token = "good-token"
	b.Balance = 5000
	b.Currencies = []model.Currency{
		{Code: "USD", Symbol: "$", Rate: 0.0025},
		{Code: "NGN", Symbol: "₦", Rate: 1},
	}
	b.Categories = []model.Category{
		{ID: 2, CategoryTitle: "Instagram"},
		{ID: 1, CategoryTitle: "TikTok"},
	}
	b.Services[1] = []model.Service{{ID: 11, ServiceTitle: "TikTok Views", Price: 2, MinAmount: 100, MaxAmount: 10000}}
	b.Services[2] = []model.Service{{ID: 21, ServiceTitle: "Instagram Likes", Price: 3, MinAmount: 10, MaxAmount: 1000}}
	b.Notifications = []model.Notification{{ID: 1, Title: "Hi", CreatedAt: time.Now()}}
	return b
}

func newManager(t *testing.T, b *paneltest.Backend, store Store) *Manager {
	t.Helper()

	client := panel.NewClient(b.URL(), panel.Options{Timeout: time.Second})
	m := NewManager(client, store, Config{
		Pricing:            order.PerUnit,
		Search:             search.DefaultConfig(),
		FallbackCategories: 10,
	}, nil, nil)
	t.Cleanup(m.Shutdown)
	return m
}

func TestOpen(t *testing.T) {
	b := newBackend(t)
	store := repository.NewMemoryStore()
	m := newManager(t, b, store)
	ctx := context.Background()

	s, err := m.Open(ctx, "good-token")
	require.NoError(t, err)
	require.NotEmpty(t, s.ID)

	balance, known := s.Wallet.Get()
	assert.True(t, known)
	assert.Equal(t, 5000.0, balance)

	require.NotNil(t, s.Book.Selected())
	assert.Equal(t, "NGN", s.Book.Selected().Code)

	d := s.Order.Draft()
	require.NotNil(t, d.Category)
	assert.Equal(t, "TikTok", d.Category.CategoryTitle)
	assert.Len(t, s.Notifications.List(), 1)

	rec, err := store.GetSession(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "good-token", rec.APIToken)
	assert.Equal(t, "NGN", rec.CurrencyCode)

	same, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Same(t, s, same)
}

func TestOpen_RejectedToken(t *testing.T) {
	b := newBackend(t)
	m := newManager(t, b, repository.NewMemoryStore())

	_, err := m.Open(context.Background(), "bad-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestOpen_CatalogFailureIsNotFatal(t *testing.T) {
	b := newBackend(t)
	b.FailCategories = true
	b.FailNotifications = true
	m := newManager(t, b, repository.NewMemoryStore())

	s, err := m.Open(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Nil(t, s.Order.Draft().Category)
	assert.Empty(t, s.Notifications.List())
}

func TestSelectCurrency_RestoredFromStore(t *testing.T) {
	b := newBackend(t)
	store := repository.NewMemoryStore()
	ctx := context.Background()

	first := newManager(t, b, store)
	s, err := first.Open(ctx, "good-token")
	require.NoError(t, err)

	require.NoError(t, s.SelectCurrency(ctx, "USD"))
	assert.Error(t, s.SelectCurrency(ctx, "EUR"))

	second := newManager(t, b, store)
	restored, err := second.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.NotSame(t, s, restored)
	assert.Equal(t, "USD", restored.Book.Selected().Code)
}

func TestClose(t *testing.T) {
	b := newBackend(t)
	store := repository.NewMemoryStore()
	m := newManager(t, b, store)
	ctx := context.Background()

	s, err := m.Open(ctx, "good-token")
	require.NoError(t, err)

	require.NoError(t, m.Close(ctx, s.ID))

	_, err = m.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecentOrders(t *testing.T) {
	b := newBackend(t)
	m := newManager(t, b, repository.NewMemoryStore())
	ctx := context.Background()

	s, err := m.Open(ctx, "good-token")
	require.NoError(t, err)

	s.Order.SetQuantity(500)
	s.Order.SetLink("https://tiktok.com/@me")
	st, err := s.Order.Submit(ctx)
	require.NoError(t, err)
	require.True(t, st.Success, st.Message)

	list, err := s.RecentOrders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, st.OrderID, list[0].OrderID)
	assert.Equal(t, 1000.0, list[0].Cost)
	assert.Len(t, b.PlacedOrders(), 1)
}
