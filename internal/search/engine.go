// Package search реализует поиск услуг с задержкой ввода, удалённым нечётким поиском
// и локальным запасным поиском по кешу каталога.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/mmeshcher/smm-dashboard/internal/metrics"
	"github.com/mmeshcher/smm-dashboard/internal/model"
)

var (
	// ErrUnknownResult возвращается при выборе услуги, которой нет среди результатов.
	ErrUnknownResult = errors.New("search result not found")
	// ErrCategoryNotFound возвращается, если категорию результата не удалось сопоставить с каталогом.
	ErrCategoryNotFound = errors.New("category of search result not found")
	// ErrServiceNotFound возвращается, если в категории результата нет услуг.
	ErrServiceNotFound = errors.New("category has no services")
)

// State описывает состояние поиска.
type State string

const (
	StateIdle       State = "idle"
	StateDebouncing State = "debouncing"
	StateSearching  State = "searching"
	StateResults    State = "results"
	StateEmpty      State = "empty"
	StateFallback   State = "fallback"
)

// Confidence показывает, насколько точно выбранная услуга соответствует результату поиска.
type Confidence string

const (
	MatchByID    Confidence = "id"
	MatchByTitle Confidence = "title"
	MatchFirst   Confidence = "first"
)

const lowConfidenceNotice = "The exact service could not be found; the first service of its category was selected. Please check your selection."

// Backend выполняет удалённый поиск.
type Backend interface {
	Search(ctx context.Context, query string, limit int) ([]model.Service, error)
}

// Catalog описывает каталог сессии, к которому сводится выбор результата.
type Catalog interface {
	Categories() []model.Category
	LoadServices(ctx context.Context, categoryID int64) ([]model.Service, error)
	AllServices(ctx context.Context) ([]model.Service, error)
}

// Config содержит параметры поиска.
type Config struct {
	Debounce       time.Duration
	BlurGrace      time.Duration
	MinQueryLength int
	RemoteLimit    int
	FallbackLimit  int
}

// DefaultConfig возвращает параметры поиска по умолчанию.
func DefaultConfig() Config {
	return Config{
		Debounce:       300 * time.Millisecond,
		BlurGrace:      300 * time.Millisecond,
		MinQueryLength: 2,
		RemoteLimit:    50,
		FallbackLimit:  30,
	}
}

// Snapshot описывает состояние поиска для отрисовки.
type Snapshot struct {
	State   State           `json:"state"`
	Query   string          `json:"query"`
	Results []model.Service `json:"results"`
	Visible bool            `json:"visible"`
}

// Selection описывает результат сведения выбранной услуги к каталогу.
type Selection struct {
	Category   model.Category  `json:"category"`
	Service    model.Service   `json:"service"`
	Services   []model.Service `json:"-"`
	Confidence Confidence      `json:"confidence"`
	Notice     string          `json:"notice,omitempty"`
}

// Engine обслуживает поисковую строку одной сессии.
type Engine struct {
	backend Backend
	catalog Catalog
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Registry

	ctx       context.Context
	cancel    context.CancelFunc
	debouncer *Debouncer

	mu        sync.Mutex
	query     string
	state     State
	results   []model.Service
	visible   bool
	focused   bool
	seq       uint64
	blurTimer *time.Timer
}

// NewEngine создаёт поисковый движок. Запросы выполняются в контексте parent до вызова Close.
func NewEngine(parent context.Context, backend Backend, catalog Catalog, cfg Config, logger *zap.Logger, m *metrics.Registry) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)

	return &Engine{
		backend:   backend,
		catalog:   catalog,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		ctx:       ctx,
		cancel:    cancel,
		debouncer: NewDebouncer(cfg.Debounce),
		state:     StateIdle,
	}
}

// Input принимает новое значение поисковой строки и откладывает поиск.
func (e *Engine) Input(query string) {
	e.mu.Lock()
	e.query = query
	e.state = StateDebouncing
	e.mu.Unlock()

	e.debouncer.Trigger(func() {
		e.run(query)
	})
}

// Snapshot возвращает текущее состояние поиска.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		State:   e.state,
		Query:   e.query,
		Results: append([]model.Service(nil), e.results...),
		Visible: e.visible,
	}
}

// Focus снова показывает непустые результаты без повторного запроса.
func (e *Engine) Focus() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.focused = true
	if e.blurTimer != nil {
		e.blurTimer.Stop()
		e.blurTimer = nil
	}
	if len(e.results) > 0 {
		e.visible = true
	}
}

// Blur скрывает результаты после паузы, чтобы выбор результата успел сработать.
func (e *Engine) Blur() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.focused = false
	if e.blurTimer != nil {
		e.blurTimer.Stop()
	}
	e.blurTimer = time.AfterFunc(e.cfg.BlurGrace, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.focused {
			e.visible = false
		}
	})
}

// Select сводит выбранный результат к категории и услуге каталога.
// Поиск очищается и скрывается сразу, до обращения к бэкенду.
func (e *Engine) Select(ctx context.Context, serviceID int64) (*Selection, error) {
	result, ok := e.take(serviceID)
	if !ok {
		return nil, ErrUnknownResult
	}

	cat, ok := resolveCategory(e.catalog.Categories(), result)
	if !ok {
		return nil, fmt.Errorf("%w: service %d", ErrCategoryNotFound, serviceID)
	}

	services, err := e.catalog.LoadServices(ctx, cat.ID)
	if err != nil {
		return nil, err
	}
	if len(services) == 0 {
		return nil, fmt.Errorf("%w: category %d", ErrServiceNotFound, cat.ID)
	}

	sel := &Selection{Category: cat, Services: services}

	for _, s := range services {
		if s.ID == result.ID {
			sel.Service, sel.Confidence = s, MatchByID
			return sel, nil
		}
	}
	for _, s := range services {
		if strings.EqualFold(s.ServiceTitle, result.ServiceTitle) {
			sel.Service, sel.Confidence = s, MatchByTitle
			return sel, nil
		}
	}

	e.logger.Warn("search result not found in its category, falling back to first service",
		zap.Int64("serviceID", result.ID),
		zap.Int64("categoryID", cat.ID),
	)
	sel.Service, sel.Confidence, sel.Notice = services[0], MatchFirst, lowConfidenceNotice
	return sel, nil
}

// Close останавливает таймеры и прерывает запросы в полёте.
func (e *Engine) Close() {
	e.debouncer.Stop()
	e.cancel()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.blurTimer != nil {
		e.blurTimer.Stop()
	}
}

func (e *Engine) take(serviceID int64) (model.Service, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var found model.Service
	ok := false
	for _, s := range e.results {
		if s.ID == serviceID {
			found, ok = s, true
			break
		}
	}
	if !ok {
		return model.Service{}, false
	}

	e.debouncer.Cancel()
	e.seq++
	e.query = ""
	e.results = nil
	e.visible = false
	e.state = StateIdle
	return found, true
}

func (e *Engine) run(query string) {
	q := strings.TrimSpace(query)

	e.mu.Lock()
	// строку успели изменить или очистить выбором результата
	if e.query != query {
		e.mu.Unlock()
		return
	}
	e.seq++
	seq := e.seq
	if utf8.RuneCountInString(q) < e.cfg.MinQueryLength {
		e.results = nil
		e.visible = false
		e.state = StateIdle
		e.mu.Unlock()
		return
	}
	e.state = StateSearching
	e.mu.Unlock()

	results, fallback := e.fetch(q)

	e.mu.Lock()
	defer e.mu.Unlock()

	if seq != e.seq {
		e.metrics.StaleDiscarded()
		e.logger.Debug("stale search response discarded", zap.String("query", q))
		return
	}

	e.results = results
	e.visible = len(results) > 0
	switch {
	case len(results) == 0:
		e.state = StateEmpty
	case fallback:
		e.state = StateFallback
	default:
		e.state = StateResults
	}
}

func (e *Engine) fetch(q string) ([]model.Service, bool) {
	remote, err := e.backend.Search(e.ctx, q, e.cfg.RemoteLimit)
	if err == nil {
		e.metrics.SearchServed(metrics.SearchSourceRemote)
		return Filter(q, normalizeAll(remote), 0), false
	}

	e.logger.Warn("remote search failed, using local fallback", zap.String("query", q), zap.Error(err))
	e.metrics.SearchServed(metrics.SearchSourceFallback)

	all, err := e.catalog.AllServices(e.ctx)
	if err != nil {
		e.logger.Warn("local search cache unavailable", zap.Error(err))
		return []model.Service{}, true
	}
	return Filter(q, normalizeAll(all), e.cfg.FallbackLimit), true
}

func normalizeAll(list []model.Service) []model.Service {
	res := make([]model.Service, 0, len(list))
	for _, s := range list {
		res = append(res, Normalize(s))
	}
	return res
}

func resolveCategory(categories []model.Category, s model.Service) (model.Category, bool) {
	for _, c := range categories {
		if c.ID == s.CategoryID {
			return c, true
		}
	}
	if s.Category == nil {
		return model.Category{}, false
	}
	for _, c := range categories {
		if s.Category.ID != 0 && c.ID == s.Category.ID {
			return c, true
		}
	}
	for _, c := range categories {
		if s.Category.CategoryTitle != "" && strings.EqualFold(c.CategoryTitle, s.Category.CategoryTitle) {
			return c, true
		}
	}
	return model.Category{}, false
}
