// Package model содержит доменные сущности панели SMM-сервисов.
package model

import "time"

// BaseCurrency задаёт учётную валюту бэкенда, относительно которой заданы все курсы.
const BaseCurrency = "NGN"

// Currency описывает валюту отображения и её курс относительно базовой валюты.
type Currency struct {
	Code   string  `json:"code"`
	Symbol string  `json:"symbol"`
	Rate   float64 `json:"rate"`
}

// Category описывает категорию услуг (обычно социальную платформу).
type Category struct {
	ID            int64  `json:"id"`
	CategoryTitle string `json:"category_title"`
}

// Service описывает услугу панели. Цена указана за 1000 единиц в базовой валюте.
type Service struct {
	ID           int64     `json:"id"`
	ServiceTitle string    `json:"service_title"`
	Description  string    `json:"description,omitempty"`
	Price        float64   `json:"price"`
	MinAmount    int64     `json:"min_amount"`
	MaxAmount    int64     `json:"max_amount"`
	CategoryID   int64     `json:"category_id"`
	Category     *Category `json:"category,omitempty"`
	StartTime    string    `json:"start_time,omitempty"`
	Speed        string    `json:"speed,omitempty"`
	AvgTime      string    `json:"avg_time,omitempty"`
	Guarantee    string    `json:"guarantee,omitempty"`
}

// InRange сообщает, попадает ли количество в допустимые границы услуги.
func (s *Service) InRange(quantity int64) bool {
	return quantity >= s.MinAmount && quantity <= s.MaxAmount
}

// OrderDraft описывает заказ, который пользователь собирает в форме.
type OrderDraft struct {
	Category *Category `json:"category"`
	Service  *Service  `json:"service"`
	Quantity int64     `json:"quantity"`
	Link     string    `json:"link"`
}

// Shortfall содержит детали нехватки средств на балансе.
type Shortfall struct {
	RequiredAmount float64 `json:"required_amount"`
	CurrentBalance float64 `json:"current_balance"`
	Shortfall      float64 `json:"shortfall"`
}

// OrderStatus описывает результат последней попытки оформить заказ.
type OrderStatus struct {
	Success  bool       `json:"success"`
	Message  string     `json:"message"`
	Category string     `json:"category,omitempty"`
	OrderID  string     `json:"order_id,omitempty"`
	Details  *Shortfall `json:"details,omitempty"`
}

// OrderRequest описывает тело запроса на создание заказа в бэкенде.
type OrderRequest struct {
	Category int64  `json:"category" validate:"required,gt=0"`
	Service  int64  `json:"service" validate:"required,gt=0"`
	Link     string `json:"link" validate:"required"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
	Check    bool   `json:"check"`
}

// OrderResult описывает ответ бэкенда на успешное создание заказа.
type OrderResult struct {
	OrderID string   `json:"order_id"`
	Balance *float64 `json:"balance,omitempty"`
}

// Notification описывает уведомление пользователя.
type Notification struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message,omitempty"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// PlacedOrder описывает запись журнала заказов, оформленных через дашборд.
type PlacedOrder struct {
	SessionID  string    `json:"-"`
	OrderID    string    `json:"order_id"`
	CategoryID int64     `json:"category_id"`
	ServiceID  int64     `json:"service_id"`
	Link       string    `json:"link"`
	Quantity   int64     `json:"quantity"`
	Cost       float64   `json:"cost"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionRecord описывает сохраняемую часть сессии пользователя.
type SessionRecord struct {
	ID           string
	APIToken     string
	CurrencyCode string
	CreatedAt    time.Time
}
