package currency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/smm-dashboard/internal/model"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		source float64
		target float64
		want   float64
	}{
		{name: "identity", amount: 250, source: 1600, target: 1600, want: 250},
		{name: "ngn to usd", amount: 1600, source: 1, target: 0.000625, want: 1},
		{name: "zero amount", amount: 0, source: 1, target: 2, want: 0},
		{name: "missing source rate", amount: 10, source: 0, target: 2, want: 0},
		{name: "missing target rate", amount: 10, source: 1, target: 0, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Convert(tt.amount, tt.source, tt.target), 1e-9)
		})
	}
}

func TestConvert_RoundTrip(t *testing.T) {
	for _, amount := range []float64{0.01, 1, 999.99, 123456.78} {
		there := Convert(amount, 1, 0.00065)
		back := Convert(there, 0.00065, 1)
		assert.InDelta(t, amount, back, 1e-6, "amount %v", amount)
	}
}

func TestFormat(t *testing.T) {
	naira := &model.Currency{Code: "NGN", Symbol: "₦", Rate: 1}

	assert.Equal(t, "₦ 5.00", Format(5, naira))
	assert.Equal(t, "₦ 1234.57", Format(1234.567, naira))
	assert.Equal(t, "0.00", Format(5, nil))
	assert.Equal(t, "0.00", FormatPtr(nil, naira))

	v := 0.5
	assert.Equal(t, "₦ 0.50", FormatPtr(&v, naira))
}

func TestBook(t *testing.T) {
	b := NewBook()
	assert.Nil(t, b.Selected())
	assert.Equal(t, float64(0), b.ToSelected(100))

	b.Set([]model.Currency{
		{Code: "USD", Symbol: "$", Rate: 0.0025},
		{Code: "NGN", Symbol: "₦", Rate: 1},
		{Code: "BAD", Symbol: "?", Rate: 0},
	})

	require.NotNil(t, b.Selected())
	assert.Equal(t, "NGN", b.Selected().Code)
	assert.Len(t, b.List(), 2)
	assert.Equal(t, float64(0), b.Rate("BAD"))

	require.NoError(t, b.Select("USD"))
	assert.InDelta(t, 2.5, b.ToSelected(1000), 1e-9)
	assert.Equal(t, "$ 2.50", b.FormatSelected(1000))

	assert.ErrorIs(t, b.Select("EUR"), ErrUnknownCurrency)
	assert.Equal(t, "USD", b.Selected().Code)

	b.Set([]model.Currency{{Code: "GHS", Symbol: "₵", Rate: 0.01}})
	assert.Equal(t, "GHS", b.Selected().Code)
}
