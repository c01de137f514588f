// Package receipt renders a priced basket as order text and as a printable
// PDF receipt. It never prices anything itself: every amount it prints comes
// from the line it was handed.
package receipt

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/slowdrip-api/internal/basket"
	"github.com/noah-isme/slowdrip-api/internal/options"
)

// Line is one rendered order line.
type Line struct {
	Name      string
	Quantity  int
	Selection options.Selection
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// FromItem captures a basket line with its prices.
func FromItem(item basket.LineItem) Line {
	return Line{
		Name:      item.Product.Name,
		Quantity:  item.Quantity,
		Selection: item.Selection(),
		UnitPrice: item.UnitPrice(),
		LineTotal: item.LineTotal(),
	}
}

// FromBasket captures every line of b in basket order.
func FromBasket(b *basket.Basket) []Line {
	items := b.Items()
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, FromItem(item))
	}
	return lines
}

// Total sums the line totals.
func Total(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal)
	}
	return total
}

// OptionLines describes a selection one option per line. Values are printed
// as chosen, unknown ones included.
func OptionLines(sel options.Selection) []string {
	switch s := sel.(type) {
	case options.Coffee:
		return []string{
			"Size: " + s.Size,
			"Shots: " + s.Shots,
			"Sugar level: " + s.Sugar,
			"Ice level: " + s.Ice,
			"Milk type: " + s.Milk,
		}
	case options.Tea:
		return []string{
			"Size: " + s.Size,
			"Sugar level: " + s.Sugar,
			"Ice level: " + s.Ice,
		}
	case options.ColdDrink:
		return []string{
			"Size: " + s.Size,
			"Ice level: " + s.Ice,
		}
	case options.Food:
		out := []string{"Portion size: " + s.Portion}
		if s.Extras != "" {
			out = append(out, "Special requests: "+s.Extras)
		}
		return out
	default:
		return nil
	}
}
