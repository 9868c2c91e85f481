package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/smm-dashboard/internal/model"
)

type stubBackend struct {
	categories    []model.Category
	categoriesErr error

	services    map[int64][]model.Service
	servicesErr error
	delay       time.Duration

	servicesCalls atomic.Int32
}

func (s *stubBackend) Categories(ctx context.Context) ([]model.Category, error) {
	if s.categoriesErr != nil {
		return nil, s.categoriesErr
	}
	return append([]model.Category(nil), s.categories...), nil
}

func (s *stubBackend) Services(ctx context.Context, categoryID int64) ([]model.Service, error) {
	s.servicesCalls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.servicesErr != nil {
		return nil, s.servicesErr
	}
	return append([]model.Service(nil), s.services[categoryID]...), nil
}

func titles(list []model.Category) []string {
	res := make([]string, 0, len(list))
	for _, c := range list {
		res = append(res, c.CategoryTitle)
	}
	return res
}

func TestSortCategories(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "priority platforms first",
			in:   []string{"#Facebook", "Instagram", "TikTok", "Zalo"},
			want: []string{"TikTok", "#Facebook", "Instagram", "Zalo"},
		},
		{
			name: "rest alphabetical ignoring leading symbols",
			in:   []string{"Youtube", "🔥 Spotify", "★ Audiomack", "twitter"},
			want: []string{"★ Audiomack", "🔥 Spotify", "twitter", "Youtube"},
		},
		{
			name: "platform matched inside longer title",
			in:   []string{"Telegram", "Instagram Followers", "TikTok Likes", "Facebook Page"},
			want: []string{"TikTok Likes", "Facebook Page", "Instagram Followers", "Telegram"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := make([]model.Category, 0, len(tt.in))
			for i, title := range tt.in {
				list = append(list, model.Category{ID: int64(i + 1), CategoryTitle: title})
			}
			SortCategories(list)
			assert.Equal(t, tt.want, titles(list))
		})
	}
}

func TestLoadCategories(t *testing.T) {
	backend := &stubBackend{
		categories: []model.Category{
			{ID: 1, CategoryTitle: "Zalo"},
			{ID: 2, CategoryTitle: "TikTok"},
		},
	}
	l := NewLoader(backend, 10, nil)

	list, err := l.LoadCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"TikTok", "Zalo"}, titles(list))
	assert.Equal(t, []string{"TikTok", "Zalo"}, titles(l.Categories()))

	c, ok := l.Category(1)
	require.True(t, ok)
	assert.Equal(t, "Zalo", c.CategoryTitle)

	assert.False(t, l.State().LoadingCategories)
}

func TestLoadCategories_ErrorKeepsListEmpty(t *testing.T) {
	backend := &stubBackend{categoriesErr: errors.New("boom")}
	l := NewLoader(backend, 10, nil)

	_, err := l.LoadCategories(context.Background())
	require.Error(t, err)
	assert.Empty(t, l.Categories())
	assert.False(t, l.State().LoadingCategories)
}

func TestLoadServices_FlagReleasedOnError(t *testing.T) {
	backend := &stubBackend{servicesErr: errors.New("boom")}
	l := NewLoader(backend, 10, nil)

	_, err := l.LoadServices(context.Background(), 1)
	require.Error(t, err)
	assert.False(t, l.State().LoadingServices)
}

func TestLoadServices_FlagSetDuringRequest(t *testing.T) {
	backend := &stubBackend{
		services: map[int64][]model.Service{1: {{ID: 10, CategoryID: 1}}},
		delay:    100 * time.Millisecond,
	}
	l := NewLoader(backend, 10, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = l.LoadServices(context.Background(), 1)
	}()

	assert.Eventually(t, func() bool { return l.State().LoadingServices }, time.Second, 5*time.Millisecond)
	wg.Wait()
	assert.False(t, l.State().LoadingServices)
	assert.Len(t, l.Services(1), 1)
}

func TestAllServices_FilledOnceFromFirstCategories(t *testing.T) {
	backend := &stubBackend{
		categories: []model.Category{
			{ID: 1, CategoryTitle: "TikTok"},
			{ID: 2, CategoryTitle: "Facebook"},
			{ID: 3, CategoryTitle: "Zalo"},
		},
		services: map[int64][]model.Service{
			1: {{ID: 10, ServiceTitle: "TikTok Views"}},
			2: {{ID: 20, ServiceTitle: "Facebook Likes", CategoryID: 2}},
			3: {{ID: 30, ServiceTitle: "Zalo Friends"}},
		},
		delay: 20 * time.Millisecond,
	}
	l := NewLoader(backend, 2, nil)
	_, err := l.LoadCategories(context.Background())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = l.AllServices(context.Background())
		}()
	}
	wg.Wait()

	all, err := l.AllServices(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int32(2), backend.servicesCalls.Load())
	assert.True(t, l.State().AllServicesLoaded)

	for _, s := range all {
		require.NotNil(t, s.Category)
		assert.Equal(t, s.CategoryID, s.Category.ID)
	}
}

func TestAllServices_RetriesAfterFailure(t *testing.T) {
	backend := &stubBackend{
		categories:  []model.Category{{ID: 1, CategoryTitle: "TikTok"}},
		servicesErr: errors.New("boom"),
	}
	l := NewLoader(backend, 10, nil)

	_, err := l.AllServices(context.Background())
	require.Error(t, err)
	assert.False(t, l.State().AllServicesLoaded)

	backend.servicesErr = nil
	backend.services = map[int64][]model.Service{1: {{ID: 10}}}

	all, err := l.AllServices(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
