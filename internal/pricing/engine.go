package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/slowdrip-api/internal/options"
)

// Money is a currency amount in the shop's single currency unit.
type Money = decimal.Decimal

// Item describes a priced line used for basket aggregation.
type Item struct {
	Qty       int
	UnitPrice Money
}

// Summary aggregates computed pricing components.
type Summary struct {
	Lines []Money
	Total Money
}

// UnitPrice prices one unit of a product of the given category configured
// with opts. Unknown categories and unrecognised option values add nothing.
func UnitPrice(category string, opts options.Values, base Money) Money {
	return UnitPriceOf(options.Select(category, opts), base)
}

// UnitPriceOf prices a typed selection.
func UnitPriceOf(sel options.Selection, base Money) Money {
	return base.Add(Surcharge(sel))
}

// Surcharge sums the option surcharges of sel.
func Surcharge(sel options.Selection) Money {
	switch s := sel.(type) {
	case options.Coffee:
		return SizeSurcharge(s.Size).Add(ShotSurcharge(s.Shots)).Add(MilkSurcharge(s.Milk))
	case options.Tea:
		return SizeSurcharge(s.Size)
	case options.ColdDrink:
		return SizeSurcharge(s.Size)
	case options.Food:
		return PortionSurcharge(s.Portion)
	default:
		return decimal.Zero
	}
}

// LineTotal scales a unit price by quantity. Quantities below one count as one.
func LineTotal(unit Money, qty int) Money {
	if qty < 1 {
		qty = 1
	}
	return unit.Mul(decimal.NewFromInt(int64(qty)))
}

// Compute totals the provided lines.
func Compute(items []Item) Summary {
	summary := Summary{Lines: make([]Money, 0, len(items)), Total: decimal.Zero}
	for _, it := range items {
		line := LineTotal(it.UnitPrice, it.Qty)
		summary.Lines = append(summary.Lines, line)
		summary.Total = summary.Total.Add(line)
	}
	return summary
}

// Format renders an amount with two decimals, truncating any extra precision.
func Format(m Money) string {
	return m.Truncate(2).StringFixed(2)
}
