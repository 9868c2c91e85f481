// Package errclass сводит ошибки оформления заказа к небольшой таксономии
// с сообщениями для пользователя.
//
// Классификация эвристическая: она опирается на подстроки в тексте ошибки
// бэкенда. Если бэкенд поменяет формулировки, ошибка попадёт в Generic,
// но обработка не сломается.
package errclass

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mmeshcher/smm-dashboard/internal/model"
	"github.com/mmeshcher/smm-dashboard/internal/panel"
)

// Category задаёт класс ошибки.
type Category string

const (
	Validation          Category = "validation"
	InsufficientBalance Category = "insufficient-balance"
	DuplicateOrder      Category = "duplicate-order"
	ServiceUnavailable  Category = "service-unavailable"
	ProviderError       Category = "provider-error"
	Network             Category = "network"
	Timeout             Category = "timeout"
	Generic             Category = "generic"
)

const (
	msgDuplicate   = "You already have an active order with this link. Please wait until it completes before ordering again."
	msgUnavailable = "This service is currently unavailable. Please choose another service."
	msgProvider    = "The service provider is temporarily unavailable. Please try again later."
	msgNetwork     = "Network error. Please check your connection and try again."
	msgTimeout     = "The request timed out. Please check your orders before trying again."
	msgGeneric     = "Failed to place order. Please try again."
	topUpHint      = "Please fund your account and try again."
)

// Result описывает итог классификации.
type Result struct {
	Category Category
	Message  string
	Details  *model.Shortfall
}

// Status превращает результат в статус неудачного заказа.
func (r Result) Status() *model.OrderStatus {
	return &model.OrderStatus{
		Success:  false,
		Message:  r.Message,
		Category: string(r.Category),
		Details:  r.Details,
	}
}

// Messager реализуется локальными ошибками, текст которых можно показать пользователю как есть.
type Messager interface {
	UserMessage() string
}

var shortfallRe = regexp.MustCompile(`(?i)shortfall[^0-9]*([0-9][0-9,]*(?:\.[0-9]+)?)`)

// Classify классифицирует ошибку, пойманную при оформлении заказа.
func Classify(err error) Result {
	if err == nil {
		return Result{Category: Generic, Message: msgGeneric}
	}

	var local Messager
	if errors.As(err, &local) {
		return Result{Category: Validation, Message: local.UserMessage()}
	}

	var apiErr *panel.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return classifyMessage(apiErr)
	}

	var trErr *panel.TransportError
	if errors.As(err, &trErr) {
		if trErr.Timeout() {
			return Result{Category: Timeout, Message: msgTimeout}
		}
		return Result{Category: Network, Message: msgNetwork}
	}

	return Result{Category: Generic, Message: msgGeneric}
}

func classifyMessage(apiErr *panel.APIError) Result {
	msg := apiErr.Message
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "insufficient balance"):
		return Result{
			Category: InsufficientBalance,
			Message:  strings.TrimRight(msg, ". ") + ". " + topUpHint,
			Details:  shortfallDetails(apiErr),
		}
	case strings.Contains(lower, "active order with this link"):
		return Result{Category: DuplicateOrder, Message: msgDuplicate}
	case strings.Contains(lower, "service not found"), strings.Contains(lower, "currently unavailable"):
		return Result{Category: ServiceUnavailable, Message: msgUnavailable}
	case strings.Contains(lower, "service provider"), strings.Contains(lower, "api connection"):
		return Result{Category: ProviderError, Message: msgProvider}
	}

	return Result{Category: Generic, Message: msg}
}

func shortfallDetails(apiErr *panel.APIError) *model.Shortfall {
	d := &model.Shortfall{}
	found := false

	if apiErr.RequiredAmount != nil {
		d.RequiredAmount = *apiErr.RequiredAmount
		found = true
	}
	if apiErr.CurrentBalance != nil {
		d.CurrentBalance = *apiErr.CurrentBalance
		found = true
	}

	switch {
	case apiErr.Shortfall != nil:
		d.Shortfall = *apiErr.Shortfall
		found = true
	case apiErr.RequiredAmount != nil && apiErr.CurrentBalance != nil:
		d.Shortfall = *apiErr.RequiredAmount - *apiErr.CurrentBalance
	default:
		if v, ok := parseShortfall(apiErr.Message); ok {
			d.Shortfall = v
			found = true
		}
	}

	if !found {
		return nil
	}
	return d
}

func parseShortfall(msg string) (float64, bool) {
	m := shortfallRe.FindStringSubmatch(msg)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Describe возвращает краткое описание для журнала.
func (r Result) Describe() string {
	if r.Details == nil {
		return fmt.Sprintf("%s: %s", r.Category, r.Message)
	}
	return fmt.Sprintf("%s: %s (shortfall %.2f)", r.Category, r.Message, r.Details.Shortfall)
}
