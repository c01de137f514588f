package basket

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/slowdrip-api/internal/catalog"
	"github.com/noah-isme/slowdrip-api/internal/options"
	"github.com/noah-isme/slowdrip-api/internal/pricing"
)

// LineItem is one configured purchase of a product. Prices are derived on
// every call and never stored.
type LineItem struct {
	Product  catalog.Product `json:"product"`
	Options  options.Values  `json:"options"`
	Quantity int             `json:"quantity"`
}

// NewLineItem builds a line item with the category defaults overlaid by opts.
// Fields outside the category schema are dropped and quantity floors at one.
func NewLineItem(p catalog.Product, opts options.Values, qty int) LineItem {
	return LineItem{
		Product:  p.Clone(),
		Options:  Normalize(p.Category, options.Defaults(p.Category).Merge(opts)),
		Quantity: clampQty(qty),
	}
}

// Normalize keeps only the fields that belong to the category's schema.
func Normalize(category string, v options.Values) options.Values {
	return options.Flatten(options.Select(category, v))
}

// Selection returns the typed option variant of the line.
func (li LineItem) Selection() options.Selection {
	return options.Select(li.Product.Category, li.Options)
}

// UnitPrice prices one unit of the line.
func (li LineItem) UnitPrice() decimal.Decimal {
	return pricing.UnitPriceOf(li.Selection(), li.Product.Price)
}

// LineTotal is the unit price times quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return pricing.LineTotal(li.UnitPrice(), li.Quantity)
}

func (li LineItem) clone() LineItem {
	out := li
	out.Product = li.Product.Clone()
	return out
}

func clampQty(q int) int {
	if q < 1 {
		return 1
	}
	return q
}
