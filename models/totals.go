package models

import "github.com/shopspring/decimal"

// MoneyScale is the number of decimal places kept in storage.
const MoneyScale = 2

// MaxAmount is the smallest magnitude a decimal(10,2) column cannot hold.
var MaxAmount = decimal.New(1, 8)

type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalDiscount decimal.Decimal `json:"total_discount"`
	Total         decimal.Decimal `json:"total"`
}

// CalculateTotals derives the invoice figures from its line items. Only item
// rows add to the subtotal; discount rows are summed and the absolute value of
// that sum is the discount; section rows contribute nothing.
func CalculateTotals(items []LineItem) Totals {
	subtotal := decimal.Zero
	discounts := decimal.Zero

	for _, item := range items {
		switch e := item.Entry().(type) {
		case ItemLine:
			subtotal = subtotal.Add(e.Amount())
		case DiscountLine:
			discounts = discounts.Add(e.UnitPrice)
		}
	}

	totalDiscount := discounts.Abs()

	return Totals{
		Subtotal:      subtotal,
		TotalDiscount: totalDiscount,
		Total:         subtotal.Sub(totalDiscount),
	}
}

// Rounded rounds each figure to MoneyScale places. Total is recomputed from
// the rounded parts so the identity total = subtotal - discount still holds.
func (t Totals) Rounded() Totals {
	subtotal := t.Subtotal.Round(MoneyScale)
	discount := t.TotalDiscount.Round(MoneyScale)
	return Totals{
		Subtotal:      subtotal,
		TotalDiscount: discount,
		Total:         subtotal.Sub(discount),
	}
}
