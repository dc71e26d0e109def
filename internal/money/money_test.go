package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompute_ParacetamolCart(t *testing.T) {
	totals := Compute([]Line{{Price: 10.99, Quantity: 5}}, 0)
	assert.Equal(t, 54.95, totals.Subtotal)
	assert.Equal(t, 0.0, totals.Discount)
	assert.Equal(t, 54.95, totals.Total)
}

func TestCompute_NoFloatDrift(t *testing.T) {
	totals := Compute([]Line{
		{Price: 0.1, Quantity: 1},
		{Price: 0.2, Quantity: 1},
	}, 0)
	assert.Equal(t, 0.3, totals.Subtotal)
	assert.Equal(t, 0.3, totals.Total)
}

func TestCompute_DiscountClamped(t *testing.T) {
	lines := []Line{{Price: 4.5, Quantity: 2}, {Price: 1.25, Quantity: 4}}

	totals := Compute(lines, 2.5)
	assert.Equal(t, 14.0, totals.Subtotal)
	assert.Equal(t, 2.5, totals.Discount)
	assert.Equal(t, 11.5, totals.Total)

	totals = Compute(lines, 50)
	assert.Equal(t, 14.0, totals.Discount)
	assert.Equal(t, 0.0, totals.Total)

	totals = Compute(lines, -3)
	assert.Equal(t, 0.0, totals.Discount)
	assert.Equal(t, 14.0, totals.Total)
}

func TestClampDiscount_Messages(t *testing.T) {
	tests := []struct {
		name     string
		discount float64
		subtotal float64
		want     float64
		message  string
	}{
		{"accepted", 5, 20, 5, ""},
		{"exactly subtotal", 20, 20, 20, ""},
		{"negative", -1, 20, 0, MsgDiscountNegative},
		{"too large", 25, 20, 20, MsgDiscountTooLarge},
		{"empty cart", 1, 0, 0, MsgDiscountTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, msg := ClampDiscount(tt.discount, tt.subtotal)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.message, msg)
		})
	}
}

func TestCompute_TotalNeverNegative(t *testing.T) {
	for _, discount := range []float64{0, 0.01, 9.99, 10, 10.01, 1000} {
		totals := Compute([]Line{{Price: 10, Quantity: 1}}, discount)
		assert.GreaterOrEqual(t, totals.Total, 0.0)
		assert.LessOrEqual(t, totals.Discount, totals.Subtotal)
	}
}

func TestRound(t *testing.T) {
	assert.Equal(t, 1.01, Round(1.005))
	assert.Equal(t, 2.0, Round(1.999))
	assert.Equal(t, 54.95, LineTotal(10.99, 5))
}
