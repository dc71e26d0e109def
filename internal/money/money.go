// Package money holds the cart and sale arithmetic. Amounts travel as
// float64 on the wire and are computed as decimals rounded to cents.
package money

import "github.com/shopspring/decimal"

const (
	MsgDiscountNegative = "Discount cannot be negative"
	MsgDiscountTooLarge = "Discount cannot exceed total amount"
)

type Line struct {
	Price    float64
	Quantity int
}

type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

func Round(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func LineTotal(price float64, quantity int) float64 {
	return lineTotal(Line{Price: price, Quantity: quantity}).InexactFloat64()
}

func Subtotal(lines []Line) float64 {
	return subtotal(lines).InexactFloat64()
}

// ClampDiscount bounds a discount to [0, subtotal]. The message is empty
// when the value was accepted as given.
func ClampDiscount(discount, subtotal float64) (float64, string) {
	d := decimal.NewFromFloat(discount).Round(2)
	s := decimal.NewFromFloat(subtotal).Round(2)
	switch {
	case d.IsNegative():
		return 0, MsgDiscountNegative
	case d.GreaterThan(s):
		return s.InexactFloat64(), MsgDiscountTooLarge
	}
	return d.InexactFloat64(), ""
}

// Compute derives the subtotal from the lines, clamps the discount and
// returns total = max(0, subtotal - discount).
func Compute(lines []Line, discount float64) Totals {
	sub := subtotal(lines)
	applied, _ := ClampDiscount(discount, sub.InexactFloat64())
	d := decimal.NewFromFloat(applied)
	total := sub.Sub(d)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return Totals{
		Subtotal: sub.InexactFloat64(),
		Discount: d.InexactFloat64(),
		Total:    total.Round(2).InexactFloat64(),
	}
}

func lineTotal(line Line) decimal.Decimal {
	return decimal.NewFromFloat(line.Price).Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
}

func subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(lineTotal(line))
	}
	return sum.Round(2)
}
