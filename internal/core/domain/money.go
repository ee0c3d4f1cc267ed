package domain

import "github.com/shopspring/decimal"

// Round2 rounds a monetary value half away from zero to cents.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Totals is the result of the invoice money computation.
type Totals struct {
	Subtotal  float64
	Discount  float64
	Taxable   float64
	VATAmount float64
	Total     float64
}

// ComputeTotals is the single place invoice money is derived:
//
//	subtotal  = Σ item amounts, or amount when there are no items
//	taxable   = subtotal − discount (discount clamped to [0, subtotal])
//	vatAmount = round2(taxable × vat / 100)
//	total     = taxable + vatAmount
func ComputeTotals(items []InvoiceItem, amount, discount, vat float64) Totals {
	subtotal := decimal.NewFromFloat(amount)
	if len(items) > 0 {
		subtotal = decimal.Zero
		for _, it := range items {
			subtotal = subtotal.Add(lineAmount(it.Quantity, it.Rate))
		}
	}
	subtotal = subtotal.Round(2)

	d := decimal.NewFromFloat(discount).Round(2)
	if d.IsNegative() {
		d = decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}

	taxable := subtotal.Sub(d)
	vatAmount := taxable.Mul(decimal.NewFromFloat(vat)).Div(decimal.NewFromInt(100)).Round(2)
	total := taxable.Add(vatAmount)

	return Totals{
		Subtotal:  subtotal.InexactFloat64(),
		Discount:  d.InexactFloat64(),
		Taxable:   taxable.InexactFloat64(),
		VATAmount: vatAmount.InexactFloat64(),
		Total:     total.InexactFloat64(),
	}
}

func lineAmount(quantity, rate float64) decimal.Decimal {
	return decimal.NewFromFloat(quantity).Mul(decimal.NewFromFloat(rate)).Round(2)
}

// SumFloat adds values exactly and rounds the result to cents.
func SumFloat(values ...float64) float64 {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.Round(2).InexactFloat64()
}
