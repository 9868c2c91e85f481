package order

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mmeshcher/smm-dashboard/internal/catalog"
	"github.com/mmeshcher/smm-dashboard/internal/currency"
	"github.com/mmeshcher/smm-dashboard/internal/errclass"
	"github.com/mmeshcher/smm-dashboard/internal/model"
	"github.com/mmeshcher/smm-dashboard/internal/order/mocks"
	"github.com/mmeshcher/smm-dashboard/internal/panel"
	"github.com/mmeshcher/smm-dashboard/internal/search"
)

type stubCatalogBackend struct {
	categories []model.Category
	services   map[int64][]model.Service
	delays     map[int64]time.Duration
	failures   map[int64]error
}

func (s *stubCatalogBackend) Categories(ctx context.Context) ([]model.Category, error) {
	return append([]model.Category(nil), s.categories...), nil
}

func (s *stubCatalogBackend) Services(ctx context.Context, categoryID int64) ([]model.Service, error) {
	if d := s.delays[categoryID]; d > 0 {
		time.Sleep(d)
	}
	if err := s.failures[categoryID]; err != nil {
		return nil, err
	}
	return append([]model.Service(nil), s.services[categoryID]...), nil
}

type stubJournal struct {
	mu     sync.Mutex
	orders []model.PlacedOrder
}

func (s *stubJournal) RecordOrder(ctx context.Context, o model.PlacedOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders = append(s.orders, o)
	return nil
}

var (
	tiktokViews = model.Service{ID: 101, ServiceTitle: "TikTok Views", Price: 2.0, MinAmount: 100, MaxAmount: 10000, CategoryID: 1}
	tiktokLikes = model.Service{ID: 102, ServiceTitle: "TikTok Likes", Price: 5.0, MinAmount: 50, MaxAmount: 5000, CategoryID: 1}
	instaLikes  = model.Service{ID: 201, ServiceTitle: "Instagram Likes", Price: 3.0, MinAmount: 10, MaxAmount: 1000, CategoryID: 2}
)

func newCatalogBackend() *stubCatalogBackend {
	return &stubCatalogBackend{
		categories: []model.Category{
			{ID: 3, CategoryTitle: "Zalo"},
			{ID: 2, CategoryTitle: "Instagram"},
			{ID: 1, CategoryTitle: "TikTok"},
		},
		services: map[int64][]model.Service{
			1: {tiktokViews, tiktokLikes},
			2: {instaLikes},
		},
	}
}

type fixture struct {
	composer *Composer
	backend  *mocks.MockBackend
	book     *currency.Book
	wallet   *currency.Wallet
	journal  *stubJournal
}

func newFixture(t *testing.T, cb *stubCatalogBackend, pricing PricingUnit) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	backend := mocks.NewMockBackend(ctrl)

	book := currency.NewBook()
	book.Set([]model.Currency{
		{Code: "NGN", Symbol: "₦", Rate: 1},
		{Code: "USD", Symbol: "$", Rate: 0.0025},
	})
	wallet := &currency.Wallet{}
	journal := &stubJournal{}

	c := NewComposer(Deps{
		SessionID: "s1",
		Backend:   backend,
		Catalog:   catalog.NewLoader(cb, 10, nil),
		Book:      book,
		Wallet:    wallet,
		Journal:   journal,
		Pricing:   pricing,
	})
	require.NoError(t, c.Init(context.Background()))

	return &fixture{composer: c, backend: backend, book: book, wallet: wallet, journal: journal}
}

func TestInit_SelectsFirstCategoryAndService(t *testing.T) {
	f := newFixture(t, newCatalogBackend(), PerUnit)

	d := f.composer.Draft()
	require.NotNil(t, d.Category)
	assert.Equal(t, "TikTok", d.Category.CategoryTitle)
	require.NotNil(t, d.Service)
	assert.Equal(t, tiktokViews.ID, d.Service.ID)
	assert.Equal(t, tiktokViews.MinAmount, d.Quantity)
}

func TestTotalCost_BaseCurrency(t *testing.T) {
	f := newFixture(t, newCatalogBackend(), PerUnit)

	require.NoError(t, f.composer.SelectCategory(context.Background(), 1))
	require.NoError(t, f.composer.SelectService(tiktokViews.ID))
	f.composer.SetQuantity(500)

	assert.Equal(t, 1000.0, f.composer.BaseCost())
	assert.Equal(t, 1000.0, f.composer.TotalCost())

	require.NoError(t, f.book.Select("USD"))
	assert.InDelta(t, 2.5, f.composer.TotalCost(), 1e-9)
	assert.Equal(t, "$ 2.50", f.composer.View().TotalFormatted)
}

func TestTotalCost_PerThousand(t *testing.T) {
	f := newFixture(t, newCatalogBackend(), PerThousand)

	f.composer.SetQuantity(500)
	assert.Equal(t, 1.0, f.composer.BaseCost())
}

func TestSelectCategory(t *testing.T) {
	cb := newCatalogBackend()
	cb.categories = append(cb.categories, model.Category{ID: 4, CategoryTitle: "Empty"})
	f := newFixture(t, cb, PerUnit)
	ctx := context.Background()

	require.NoError(t, f.composer.SelectService(tiktokLikes.ID))
	f.composer.SetQuantity(700)

	require.NoError(t, f.composer.SelectCategory(ctx, 1))
	d := f.composer.Draft()
	assert.Equal(t, tiktokLikes.ID, d.Service.ID, "service of the same category is kept")
	assert.Equal(t, int64(700), d.Quantity)

	require.NoError(t, f.composer.SelectCategory(ctx, 2))
	d = f.composer.Draft()
	assert.Equal(t, instaLikes.ID, d.Service.ID)
	assert.Equal(t, instaLikes.MinAmount, d.Quantity)

	require.NoError(t, f.composer.SelectCategory(ctx, 4))
	d = f.composer.Draft()
	assert.Nil(t, d.Service)
	assert.Zero(t, d.Quantity)

	assert.ErrorIs(t, f.composer.SelectCategory(ctx, 99), ErrUnknownCategory)
	assert.ErrorIs(t, f.composer.SelectService(tiktokViews.ID), ErrUnknownService)
}

func TestSelectCategory_StaleResponseDiscarded(t *testing.T) {
	cb := newCatalogBackend()
	f := newFixture(t, cb, PerUnit)
	cb.delays = map[int64]time.Duration{1: 200 * time.Millisecond}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = f.composer.SelectCategory(context.Background(), 1)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, f.composer.SelectCategory(context.Background(), 2))
	wg.Wait()

	v := f.composer.View()
	assert.Equal(t, int64(2), v.Draft.Category.ID)
	require.Len(t, v.Services, 1)
	assert.Equal(t, instaLikes.ID, v.Services[0].ID)
}

func TestSelectCategory_FailedServicesClearSelection(t *testing.T) {
	cb := newCatalogBackend()
	f := newFixture(t, cb, PerUnit)
	f.composer.SetLink("https://tiktok.com/@me")

	cb.failures = map[int64]error{2: errors.New("connection refused")}
	require.Error(t, f.composer.SelectCategory(context.Background(), 2))

	d := f.composer.Draft()
	require.NotNil(t, d.Category)
	assert.Equal(t, int64(2), d.Category.ID)
	assert.Nil(t, d.Service)
	assert.Zero(t, d.Quantity)

	// CreateOrder не ожидается: форма с неполным заказом не уходит в бэкенд
	st, err := f.composer.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Success)
	assert.Equal(t, string(errclass.Validation), st.Category)
}

func TestSubmit_ServiceFromOtherCategoryRejected(t *testing.T) {
	f := newFixture(t, newCatalogBackend(), PerUnit)
	f.composer.SetLink("https://instagram.com/p/1")

	f.composer.ApplySelection(&search.Selection{
		Category: model.Category{ID: 1, CategoryTitle: "TikTok"},
		Service:  instaLikes,
	})
	f.composer.SetQuantity(100)

	st, err := f.composer.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Success)
	assert.Equal(t, "Please select a service from this category", st.Message)
}

func TestSubmit_QuantityOutOfBoundsNeverReachesBackend(t *testing.T) {
	f := newFixture(t, newCatalogBackend(), PerUnit)
	f.composer.SetLink("https://tiktok.com/@me")

	for _, q := range []int64{99, 10001} {
		f.composer.SetQuantity(q)

		st, err := f.composer.Submit(context.Background())
		require.NoError(t, err)
		assert.False(t, st.Success)
		assert.Equal(t, string(errclass.Validation), st.Category)
		assert.Equal(t, "Quantity must be between 100 and 10000", st.Message)
	}
}

func TestSubmit_MissingFields(t *testing.T) {
	f := newFixture(t, newCatalogBackend(), PerUnit)

	st, err := f.composer.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Please enter a link", st.Message)

	f.composer.SetLink("https://tiktok.com/@me")
	f.composer.SetQuantity(0)
	st, err = f.composer.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Please enter a quantity", st.Message)
}

func TestSubmit_Success(t *testing.T) {
	f := newFixture(t, newCatalogBackend(), PerUnit)
	f.composer.SetQuantity(500)
	f.composer.SetLink("  https://tiktok.com/@me  ")

	balance := 4000.0
	f.backend.EXPECT().
		CreateOrder(gomock.Any(), model.OrderRequest{
			Category: 1,
			Service:  tiktokViews.ID,
			Link:     "https://tiktok.com/@me",
			Quantity: 500,
			Check:    true,
		}).
		Return(&model.OrderResult{OrderID: "9001", Balance: &balance}, nil)

	st, err := f.composer.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Success)
	assert.Equal(t, "9001", st.OrderID)

	got, known := f.wallet.Get()
	assert.True(t, known)
	assert.Equal(t, 4000.0, got)

	d := f.composer.Draft()
	require.NotNil(t, d.Category)
	assert.Nil(t, d.Service)
	assert.Empty(t, d.Link)
	assert.Zero(t, d.Quantity)

	require.Len(t, f.journal.orders, 1)
	assert.Equal(t, "9001", f.journal.orders[0].OrderID)
	assert.Equal(t, 1000.0, f.journal.orders[0].Cost)

	f.composer.DismissStatus()
	assert.Nil(t, f.composer.Status())
}

func TestSubmit_SuccessWithoutBalanceKeepsWallet(t *testing.T) {
	f := newFixture(t, newCatalogBackend(), PerUnit)
	f.wallet.Set(10)
	f.composer.SetLink("https://tiktok.com/@me")

	f.backend.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(&model.OrderResult{OrderID: "1"}, nil)

	st, err := f.composer.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Success)

	got, _ := f.wallet.Get()
	assert.Equal(t, 10.0, got)
}

func TestSubmit_SuccessWithoutOrderIDNotJournaled(t *testing.T) {
	f := newFixture(t, newCatalogBackend(), PerUnit)
	f.composer.SetLink("https://tiktok.com/@me")

	f.backend.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(&model.OrderResult{}, nil)

	st, err := f.composer.Submit(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Success)
	assert.Empty(t, f.journal.orders)
}

func TestSubmit_BackendFailurePreservesForm(t *testing.T) {
	f := newFixture(t, newCatalogBackend(), PerUnit)
	f.wallet.Set(100)
	f.composer.SetQuantity(500)
	f.composer.SetLink("https://tiktok.com/@me")

	f.backend.EXPECT().
		CreateOrder(gomock.Any(), gomock.Any()).
		Return(nil, &panel.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "Insufficient balance, shortfall 900"})

	st, err := f.composer.Submit(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Success)
	assert.Equal(t, string(errclass.InsufficientBalance), st.Category)
	assert.Contains(t, st.Message, "900")
	require.NotNil(t, st.Details)
	assert.Equal(t, 900.0, st.Details.Shortfall)

	d := f.composer.Draft()
	require.NotNil(t, d.Service)
	assert.Equal(t, int64(500), d.Quantity)
	assert.Equal(t, "https://tiktok.com/@me", d.Link)

	got, _ := f.wallet.Get()
	assert.Equal(t, 100.0, got)
	assert.Empty(t, f.journal.orders)
}

func TestApplySelection(t *testing.T) {
	f := newFixture(t, newCatalogBackend(), PerUnit)

	f.composer.ApplySelection(&search.Selection{
		Category:   model.Category{ID: 2, CategoryTitle: "Instagram"},
		Service:    instaLikes,
		Services:   []model.Service{instaLikes},
		Confidence: search.MatchByID,
	})

	d := f.composer.Draft()
	assert.Equal(t, int64(2), d.Category.ID)
	assert.Equal(t, instaLikes.ID, d.Service.ID)
	assert.Equal(t, instaLikes.MinAmount, d.Quantity)
	require.NoError(t, f.composer.SelectService(instaLikes.ID))
}

func TestView_BalanceWarning(t *testing.T) {
	f := newFixture(t, newCatalogBackend(), PerUnit)
	f.composer.SetQuantity(500)

	assert.False(t, f.composer.View().BalanceWarning, "unknown balance gives no warning")

	f.wallet.Set(999)
	v := f.composer.View()
	assert.True(t, v.BalanceWarning)
	assert.Equal(t, "₦ 999.00", v.Balance)

	f.wallet.Set(1000)
	assert.False(t, f.composer.View().BalanceWarning)
}

func TestParsePricingUnit(t *testing.T) {
	u, err := ParsePricingUnit("")
	require.NoError(t, err)
	assert.Equal(t, PerUnit, u)

	u, err = ParsePricingUnit("thousand")
	require.NoError(t, err)
	assert.Equal(t, PerThousand, u)

	_, err = ParsePricingUnit("dozen")
	assert.Error(t, err)
}
