// Package order собирает заказ пользователя, считает его стоимость и оформляет его в бэкенде.
package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mmeshcher/smm-dashboard/internal/catalog"
	"github.com/mmeshcher/smm-dashboard/internal/currency"
	"github.com/mmeshcher/smm-dashboard/internal/errclass"
	"github.com/mmeshcher/smm-dashboard/internal/metrics"
	"github.com/mmeshcher/smm-dashboard/internal/model"
	"github.com/mmeshcher/smm-dashboard/internal/search"
)

var (
	// ErrUnknownCategory возвращается при выборе категории, которой нет в каталоге.
	ErrUnknownCategory = errors.New("unknown category")
	// ErrUnknownService возвращается при выборе услуги не из текущей категории.
	ErrUnknownService = errors.New("unknown service")
	// ErrSubmitInProgress возвращается при повторной отправке до завершения предыдущей.
	ErrSubmitInProgress = errors.New("order submission already in progress")
)

const successMessage = "Order placed successfully"

// Backend создаёт заказы в бэкенде панели.
type Backend interface {
	CreateOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error)
}

// Catalog описывает каталог сессии.
type Catalog interface {
	LoadCategories(ctx context.Context) ([]model.Category, error)
	Category(id int64) (model.Category, bool)
	LoadServices(ctx context.Context, categoryID int64) ([]model.Service, error)
	State() catalog.State
}

// Journal сохраняет оформленные заказы.
type Journal interface {
	RecordOrder(ctx context.Context, o model.PlacedOrder) error
}

// Deps содержит зависимости Composer.
type Deps struct {
	SessionID string
	Backend   Backend
	Catalog   Catalog
	Book      *currency.Book
	Wallet    *currency.Wallet
	Journal   Journal
	Pricing   PricingUnit
	Logger    *zap.Logger
	Metrics   *metrics.Registry
}

// View описывает состояние формы заказа для отрисовки.
type View struct {
	Draft          model.OrderDraft   `json:"draft"`
	Services       []model.Service    `json:"services"`
	BaseCost       float64            `json:"base_cost"`
	TotalCost      float64            `json:"total_cost"`
	TotalFormatted string             `json:"total_formatted"`
	Balance        string             `json:"balance"`
	BalanceWarning bool               `json:"balance_warning"`
	PricingUnit    PricingUnit        `json:"pricing_unit"`
	Status         *model.OrderStatus `json:"status,omitempty"`
	Loading        catalog.State      `json:"loading"`
}

// Composer хранит заказ, который собирает пользователь.
type Composer struct {
	deps     Deps
	validate *validator.Validate

	mu          sync.Mutex
	draft       model.OrderDraft
	services    []model.Service
	status      *model.OrderStatus
	categorySeq uint64
	submitting  bool
}

// NewComposer создаёт Composer.
func NewComposer(deps Deps) *Composer {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Pricing == "" {
		deps.Pricing = PerUnit
	}
	if deps.Book == nil {
		deps.Book = currency.NewBook()
	}
	if deps.Wallet == nil {
		deps.Wallet = &currency.Wallet{}
	}
	return &Composer{
		deps:     deps,
		validate: validator.New(),
	}
}

// Init загружает категории и выбирает первую.
func (c *Composer) Init(ctx context.Context) error {
	cats, err := c.deps.Catalog.LoadCategories(ctx)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		return nil
	}
	return c.SelectCategory(ctx, cats[0].ID)
}

// SelectCategory выбирает категорию и загружает её услуги. Если выбранная услуга не из этой
// категории, выбирается первая услуга категории, а количество сбрасывается на её минимум.
// Ответ, пришедший после более позднего выбора категории, отбрасывается.
func (c *Composer) SelectCategory(ctx context.Context, id int64) error {
	cat, ok := c.deps.Catalog.Category(id)
	if !ok {
		return ErrUnknownCategory
	}

	c.mu.Lock()
	c.categorySeq++
	seq := c.categorySeq
	c.draft.Category = &cat
	c.mu.Unlock()

	services, err := c.deps.Catalog.LoadServices(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()

	if seq != c.categorySeq {
		c.deps.Logger.Debug("stale services response discarded", zap.Int64("categoryID", id))
		return nil
	}
	if err != nil {
		c.services = nil
		c.draft.Service = nil
		c.draft.Quantity = 0
		return err
	}

	c.services = services
	if c.draft.Service != nil && containsService(services, c.draft.Service.ID) {
		return nil
	}
	if len(services) == 0 {
		c.draft.Service = nil
		c.draft.Quantity = 0
		return nil
	}
	first := services[0]
	c.draft.Service = &first
	c.draft.Quantity = first.MinAmount
	return nil
}

// SelectService выбирает услугу текущей категории и ставит количество на её минимум.
func (c *Composer) SelectService(id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range c.services {
		if s.ID == id {
			svc := s
			c.draft.Service = &svc
			c.draft.Quantity = svc.MinAmount
			return nil
		}
	}
	return ErrUnknownService
}

// SetQuantity задаёт количество.
func (c *Composer) SetQuantity(q int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Quantity = q
}

// SetLink задаёт ссылку.
func (c *Composer) SetLink(link string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Link = strings.TrimSpace(link)
}

// ApplySelection переносит выбранный результат поиска в форму.
func (c *Composer) ApplySelection(sel *search.Selection) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.categorySeq++
	cat := sel.Category
	svc := sel.Service
	c.draft.Category = &cat
	c.draft.Service = &svc
	c.draft.Quantity = svc.MinAmount
	c.services = append([]model.Service(nil), sel.Services...)
}

// Draft возвращает копию текущего заказа.
func (c *Composer) Draft() model.OrderDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyDraft(c.draft)
}

// BaseCost возвращает стоимость заказа в базовой валюте.
func (c *Composer) BaseCost() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.baseCost()
}

// TotalCost возвращает стоимость заказа в выбранной валюте.
func (c *Composer) TotalCost() float64 {
	return c.deps.Book.ToSelected(c.BaseCost())
}

func (c *Composer) baseCost() float64 {
	if c.draft.Service == nil {
		return 0
	}
	return c.deps.Pricing.Cost(c.draft.Quantity, c.draft.Service.Price)
}

// Validate проверяет, что заказ можно отправить.
func (c *Composer) Validate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.request()
	return err
}

func (c *Composer) request() (model.OrderRequest, error) {
	d := c.draft
	switch {
	case d.Category == nil:
		return model.OrderRequest{}, &ValidationError{Field: "category", Message: "Please select a category"}
	case d.Service == nil:
		return model.OrderRequest{}, &ValidationError{Field: "service", Message: "Please select a service"}
	case d.Service.CategoryID != 0 && d.Service.CategoryID != d.Category.ID:
		return model.OrderRequest{}, &ValidationError{Field: "service", Message: "Please select a service from this category"}
	case d.Link == "":
		return model.OrderRequest{}, &ValidationError{Field: "link", Message: "Please enter a link"}
	case d.Quantity <= 0:
		return model.OrderRequest{}, &ValidationError{Field: "quantity", Message: "Please enter a quantity"}
	case !d.Service.InRange(d.Quantity):
		return model.OrderRequest{}, &ValidationError{
			Field:   "quantity",
			Message: fmt.Sprintf("Quantity must be between %d and %d", d.Service.MinAmount, d.Service.MaxAmount),
		}
	}

	req := model.OrderRequest{
		Category: d.Category.ID,
		Service:  d.Service.ID,
		Link:     d.Link,
		Quantity: d.Quantity,
		Check:    true,
	}
	if err := c.validate.Struct(req); err != nil {
		return model.OrderRequest{}, &ValidationError{Field: "order", Message: "Please complete all order fields", Err: err}
	}
	return req, nil
}

// Submit оформляет заказ. Локальные ошибки проверки не доходят до бэкенда.
// После успеха количество, ссылка и услуга очищаются; после ошибки форма сохраняется.
func (c *Composer) Submit(ctx context.Context) (*model.OrderStatus, error) {
	c.mu.Lock()
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	c.status = nil

	req, err := c.request()
	if err != nil {
		st := errclass.Classify(err).Status()
		c.status = st
		c.mu.Unlock()
		c.deps.Metrics.OrderSubmitted(string(errclass.Validation))
		return copyStatus(st), nil
	}
	cost := c.baseCost()
	c.submitting = true
	c.mu.Unlock()

	res, err := c.deps.Backend.CreateOrder(ctx, req)

	c.mu.Lock()
	c.submitting = false
	if err != nil {
		r := errclass.Classify(err)
		c.status = r.Status()
		st := copyStatus(c.status)
		c.mu.Unlock()

		c.deps.Logger.Warn("order submission failed",
			zap.String("session", c.deps.SessionID),
			zap.String("classification", r.Describe()),
			zap.Error(err),
		)
		c.deps.Metrics.OrderSubmitted(string(r.Category))
		return st, nil
	}

	c.status = &model.OrderStatus{Success: true, Message: successMessage, OrderID: res.OrderID}
	c.draft.Quantity = 0
	c.draft.Link = ""
	c.draft.Service = nil
	st := copyStatus(c.status)
	c.mu.Unlock()

	if res.Balance != nil {
		c.deps.Wallet.Set(*res.Balance)
	}
	c.deps.Metrics.OrderSubmitted("success")
	c.deps.Logger.Info("order placed",
		zap.String("session", c.deps.SessionID),
		zap.String("orderID", res.OrderID),
		zap.Int64("serviceID", req.Service),
		zap.Int64("quantity", req.Quantity),
	)

	// без номера заказа запись в журнал заняла бы пустой ключ
	if c.deps.Journal != nil && res.OrderID != "" {
		err := c.deps.Journal.RecordOrder(ctx, model.PlacedOrder{
			SessionID:  c.deps.SessionID,
			OrderID:    res.OrderID,
			CategoryID: req.Category,
			ServiceID:  req.Service,
			Link:       req.Link,
			Quantity:   req.Quantity,
			Cost:       cost,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil {
			c.deps.Logger.Error("record placed order", zap.String("orderID", res.OrderID), zap.Error(err))
		}
	}

	return st, nil
}

// Status возвращает результат последней отправки.
func (c *Composer) Status() *model.OrderStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyStatus(c.status)
}

// DismissStatus скрывает результат последней отправки.
func (c *Composer) DismissStatus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = nil
}

// View возвращает состояние формы заказа.
func (c *Composer) View() View {
	c.mu.Lock()
	draft := copyDraft(c.draft)
	services := append([]model.Service(nil), c.services...)
	base := c.baseCost()
	status := copyStatus(c.status)
	c.mu.Unlock()

	book := c.deps.Book
	total := book.ToSelected(base)
	balance, known := c.deps.Wallet.Get()

	return View{
		Draft:          draft,
		Services:       services,
		BaseCost:       base,
		TotalCost:      total,
		TotalFormatted: currency.Format(total, book.Selected()),
		Balance:        book.FormatSelected(balance),
		BalanceWarning: known && base > balance,
		PricingUnit:    c.deps.Pricing,
		Status:         status,
		Loading:        c.deps.Catalog.State(),
	}
}

func containsService(list []model.Service, id int64) bool {
	for _, s := range list {
		if s.ID == id {
			return true
		}
	}
	return false
}

func copyDraft(d model.OrderDraft) model.OrderDraft {
	if d.Category != nil {
		cat := *d.Category
		d.Category = &cat
	}
	if d.Service != nil {
		svc := *d.Service
		d.Service = &svc
	}
	return d
}

func copyStatus(st *model.OrderStatus) *model.OrderStatus {
	if st == nil {
		return nil
	}
	cp := *st
	if st.Details != nil {
		d := *st.Details
		cp.Details = &d
	}
	return &cp
}
