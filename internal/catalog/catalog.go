// Package catalog загружает категории и услуги панели и хранит их для сессии.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mmeshcher/smm-dashboard/internal/model"
)

// priorityPlatforms показываются первыми, в этом порядке.
var priorityPlatforms = []string{"tiktok", "facebook", "instagram"}

const allServicesParallelism = 4

// Backend описывает источник каталога.
type Backend interface {
	Categories(ctx context.Context) ([]model.Category, error)
	Services(ctx context.Context, categoryID int64) ([]model.Service, error)
}

// State отражает флаги загрузки для отрисовки заглушек.
type State struct {
	LoadingCategories bool `json:"loading_categories"`
	LoadingServices   bool `json:"loading_services"`
	AllServicesLoaded bool `json:"all_services_loaded"`
}

// Loader загружает каталог и кеширует его на время сессии.
type Loader struct {
	backend            Backend
	logger             *zap.Logger
	fallbackCategories int

	mu                sync.RWMutex
	categories        []model.Category
	services          map[int64][]model.Service
	loadingCategories bool
	loadingServices   int
	all               []model.Service
	allLoaded         bool

	group singleflight.Group
}

// NewLoader создаёт загрузчик каталога. fallbackCategories задаёт число первых категорий,
// услуги которых попадают в общий кеш для локального поиска.
func NewLoader(backend Backend, fallbackCategories int, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		backend:            backend,
		logger:             logger,
		fallbackCategories: fallbackCategories,
		services:           make(map[int64][]model.Service),
	}
}

// LoadCategories загружает и сортирует категории. При ошибке список остаётся прежним.
func (l *Loader) LoadCategories(ctx context.Context) ([]model.Category, error) {
	l.setLoadingCategories(true)
	defer l.setLoadingCategories(false)

	list, err := l.backend.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}

	SortCategories(list)

	l.mu.Lock()
	l.categories = list
	l.mu.Unlock()

	return Clone(list), nil
}

// Categories возвращает загруженные категории.
func (l *Loader) Categories() []model.Category {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Clone(l.categories)
}

// Category ищет загруженную категорию по идентификатору.
func (l *Loader) Category(id int64) (model.Category, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, c := range l.categories {
		if c.ID == id {
			return c, true
		}
	}
	return model.Category{}, false
}

// LoadServices загружает услуги категории и обновляет кеш.
func (l *Loader) LoadServices(ctx context.Context, categoryID int64) ([]model.Service, error) {
	l.changeLoadingServices(1)
	defer l.changeLoadingServices(-1)

	list, err := l.backend.Services(ctx, categoryID)
	if err != nil {
		return nil, fmt.Errorf("load services of category %d: %w", categoryID, err)
	}

	l.mu.Lock()
	l.services[categoryID] = list
	l.mu.Unlock()

	return append([]model.Service(nil), list...), nil
}

// Services возвращает закешированные услуги категории.
func (l *Loader) Services(categoryID int64) []model.Service {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.Service(nil), l.services[categoryID]...)
}

// AllServices возвращает общий кеш услуг первых категорий, заполняя его при первом вызове.
// Заполненный кеш не обновляется до конца сессии.
func (l *Loader) AllServices(ctx context.Context) ([]model.Service, error) {
	l.mu.RLock()
	if l.allLoaded {
		res := append([]model.Service(nil), l.all...)
		l.mu.RUnlock()
		return res, nil
	}
	l.mu.RUnlock()

	v, err, _ := l.group.Do("all", func() (any, error) {
		return l.fillAll(ctx)
	})
	if err != nil {
		return nil, err
	}
	return append([]model.Service(nil), v.([]model.Service)...), nil
}

func (l *Loader) fillAll(ctx context.Context) ([]model.Service, error) {
	l.mu.RLock()
	if l.allLoaded {
		res := l.all
		l.mu.RUnlock()
		return res, nil
	}
	cats := Clone(l.categories)
	l.mu.RUnlock()

	if len(cats) == 0 {
		loaded, err := l.LoadCategories(ctx)
		if err != nil {
			return nil, err
		}
		cats = loaded
	}
	if l.fallbackCategories > 0 && len(cats) > l.fallbackCategories {
		cats = cats[:l.fallbackCategories]
	}

	perCategory := make([][]model.Service, len(cats))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(allServicesParallelism)

	for i, c := range cats {
		i, c := i, c
		g.Go(func() error {
			list, err := l.backend.Services(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("load services of category %d: %w", c.ID, err)
			}
			for j := range list {
				if list[j].CategoryID == 0 {
					list[j].CategoryID = c.ID
				}
				if list[j].Category == nil {
					cat := c
					list[j].Category = &cat
				}
			}
			perCategory[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fill all services cache: %w", err)
	}

	var all []model.Service
	for _, list := range perCategory {
		all = append(all, list...)
	}

	l.mu.Lock()
	l.all = all
	l.allLoaded = true
	l.mu.Unlock()

	l.logger.Info("all services cache filled",
		zap.Int("categories", len(cats)),
		zap.Int("services", len(all)),
	)

	return all, nil
}

// State возвращает текущие флаги загрузки.
func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return State{
		LoadingCategories: l.loadingCategories,
		LoadingServices:   l.loadingServices > 0,
		AllServicesLoaded: l.allLoaded,
	}
}

func (l *Loader) setLoadingCategories(v bool) {
	l.mu.Lock()
	l.loadingCategories = v
	l.mu.Unlock()
}

func (l *Loader) changeLoadingServices(delta int) {
	l.mu.Lock()
	l.loadingServices += delta
	l.mu.Unlock()
}

// SortCategories упорядочивает категории: сначала приоритетные платформы,
// затем остальные по алфавиту нормализованного названия.
func SortCategories(list []model.Category) {
	sort.SliceStable(list, func(i, j int) bool {
		ni, nj := normalizeTitle(list[i].CategoryTitle), normalizeTitle(list[j].CategoryTitle)
		pi, pj := priority(ni), priority(nj)
		if pi != pj {
			return pi < pj
		}
		return ni < nj
	})
}

func priority(normalized string) int {
	for i, p := range priorityPlatforms {
		if strings.Contains(normalized, p) {
			return i
		}
	}
	return len(priorityPlatforms)
}

// normalizeTitle отбрасывает ведущие символы, не являющиеся буквами или цифрами, и приводит к нижнему регистру.
func normalizeTitle(title string) string {
	trimmed := strings.TrimLeftFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.ToLower(trimmed)
}

// Clone возвращает копию списка категорий.
func Clone(list []model.Category) []model.Category {
	return append([]model.Category(nil), list...)
}
