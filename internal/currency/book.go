package currency

import (
	"errors"
	"sync"

	"github.com/mmeshcher/smm-dashboard/internal/model"
)

// ErrUnknownCurrency возвращается при выборе валюты, которой нет в списке.
var ErrUnknownCurrency = errors.New("unknown currency")

// Book хранит загруженные курсы валют и выбранную пользователем валюту.
type Book struct {
	mu       sync.RWMutex
	order    []string
	rates    map[string]model.Currency
	selected string
}

// NewBook создаёт пустой справочник валют.
func NewBook() *Book {
	return &Book{
		rates: make(map[string]model.Currency),
	}
}

// Set заменяет список валют. Валюты с неположительным курсом отбрасываются.
// Если выбранной валюты нет в новом списке, выбирается базовая, а при её отсутствии первая.
func (b *Book) Set(list []model.Currency) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.order = b.order[:0]
	b.rates = make(map[string]model.Currency, len(list))
	for _, c := range list {
		if c.Rate <= 0 || c.Code == "" {
			continue
		}
		if _, dup := b.rates[c.Code]; !dup {
			b.order = append(b.order, c.Code)
		}
		b.rates[c.Code] = c
	}

	if _, ok := b.rates[b.selected]; ok {
		return
	}
	b.selected = ""
	if _, ok := b.rates[model.BaseCurrency]; ok {
		b.selected = model.BaseCurrency
	} else if len(b.order) > 0 {
		b.selected = b.order[0]
	}
}

// List возвращает валюты в порядке загрузки.
func (b *Book) List() []model.Currency {
	b.mu.RLock()
	defer b.mu.RUnlock()

	res := make([]model.Currency, 0, len(b.order))
	for _, code := range b.order {
		res = append(res, b.rates[code])
	}
	return res
}

// Select делает валюту с указанным кодом выбранной.
func (b *Book) Select(code string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.rates[code]; !ok {
		return ErrUnknownCurrency
	}
	b.selected = code
	return nil
}

// Selected возвращает выбранную валюту или nil, если список пуст.
func (b *Book) Selected() *model.Currency {
	b.mu.RLock()
	defer b.mu.RUnlock()

	c, ok := b.rates[b.selected]
	if !ok {
		return nil
	}
	return &c
}

// Rate возвращает курс валюты или 0, если валюта неизвестна.
func (b *Book) Rate(code string) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.rates[code].Rate
}

// ToSelected пересчитывает сумму в базовой валюте в выбранную валюту.
func (b *Book) ToSelected(amountBase float64) float64 {
	sel := b.Selected()
	if sel == nil {
		return 0
	}
	return Convert(amountBase, b.Rate(model.BaseCurrency), sel.Rate)
}

// FormatSelected пересчитывает сумму в базовой валюте в выбранную и форматирует её.
func (b *Book) FormatSelected(amountBase float64) string {
	return Format(b.ToSelected(amountBase), b.Selected())
}
