package order

import "fmt"

// PricingUnit задаёт, к какому количеству относится цена услуги.
type PricingUnit string

const (
	// PerUnit: стоимость равна количеству, умноженному на цену.
	PerUnit PricingUnit = "unit"
	// PerThousand: цена указана за 1000 единиц.
	PerThousand PricingUnit = "thousand"
)

// ParsePricingUnit разбирает строковое значение единицы цены.
func ParsePricingUnit(s string) (PricingUnit, error) {
	switch PricingUnit(s) {
	case "", PerUnit:
		return PerUnit, nil
	case PerThousand:
		return PerThousand, nil
	}
	return "", fmt.Errorf("unknown pricing unit %q", s)
}

// Cost возвращает стоимость количества quantity по цене price в базовой валюте.
func (u PricingUnit) Cost(quantity int64, price float64) float64 {
	cost := float64(quantity) * price
	if u == PerThousand {
		cost /= 1000
	}
	return cost
}
