package catalog

import (
	"github.com/shopspring/decimal"
)

// Product is a menu entry. Line items hold a snapshot of it, so the JSON shape
// doubles as the at-rest basket format.
type Product struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	Category        string          `json:"category"`
	Image           string          `json:"image,omitempty"`
	Description     string          `json:"description,omitempty"`
	FullDescription string          `json:"fullDescription,omitempty"`
	Dietary         []string        `json:"dietary"`
	Popular         bool            `json:"popular"`
	Featured        bool            `json:"featured"`
}

// Category groups products and drives the option schema.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Clone returns a deep copy of p.
func (p Product) Clone() Product {
	out := p
	if p.Dietary != nil {
		out.Dietary = append([]string(nil), p.Dietary...)
	}
	return out
}
