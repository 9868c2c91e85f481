// Package currency содержит пересчёт сумм между валютами и их форматирование.
package currency

import (
	"fmt"

	"github.com/mmeshcher/smm-dashboard/internal/model"
)

// Convert пересчитывает сумму из валюты с курсом sourceRate в валюту с курсом targetRate.
// Если любой из аргументов равен нулю, возвращает 0.
func Convert(amount, sourceRate, targetRate float64) float64 {
	if amount == 0 || sourceRate == 0 || targetRate == 0 {
		return 0
	}
	return (amount / sourceRate) * targetRate
}

// Format форматирует сумму как "<символ> <сумма с двумя знаками>".
func Format(amount float64, c *model.Currency) string {
	if c == nil {
		return "0.00"
	}
	return fmt.Sprintf("%s %.2f", c.Symbol, amount)
}

// FormatPtr работает как Format, но для отсутствующей суммы возвращает "0.00".
func FormatPtr(amount *float64, c *model.Currency) string {
	if amount == nil {
		return "0.00"
	}
	return Format(*amount, c)
}
