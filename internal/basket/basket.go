package basket

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/slowdrip-api/internal/options"
)

// Basket is an ordered list of line items. Identical configurations added
// twice stay two separate lines. The zero value is an empty basket.
type Basket struct {
	items []LineItem
}

// Patch selects the fields UpdateItem replaces. Nil fields are left alone.
type Patch struct {
	Options  *options.Values
	Quantity *int
}

// New returns a basket holding copies of items.
func New(items ...LineItem) *Basket {
	b := &Basket{}
	for _, it := range items {
		b.Add(it)
	}
	return b
}

// Add appends item at the end of the basket.
func (b *Basket) Add(item LineItem) {
	item = item.clone()
	item.Quantity = clampQty(item.Quantity)
	b.items = append(b.items, item)
}

// UpdateItem replaces the patched fields of the item at index. It reports
// false and leaves the basket untouched when index is out of range.
func (b *Basket) UpdateItem(index int, patch Patch) bool {
	if !b.inRange(index) {
		return false
	}
	item := &b.items[index]
	if patch.Options != nil {
		item.Options = Normalize(item.Product.Category, *patch.Options)
	}
	if patch.Quantity != nil {
		item.Quantity = clampQty(*patch.Quantity)
	}
	return true
}

// Adjust changes the quantity at index by delta, never going below one.
func (b *Basket) Adjust(index, delta int) bool {
	if !b.inRange(index) {
		return false
	}
	b.items[index].Quantity = clampQty(b.items[index].Quantity + delta)
	return true
}

// RemoveItem deletes the item at index, shifting later items down.
func (b *Basket) RemoveItem(index int) bool {
	if !b.inRange(index) {
		return false
	}
	b.items = append(b.items[:index], b.items[index+1:]...)
	return true
}

// Clear empties the basket.
func (b *Basket) Clear() { b.items = nil }

// Len returns the number of lines.
func (b *Basket) Len() int { return len(b.items) }

// Item returns a copy of the line at index.
func (b *Basket) Item(index int) (LineItem, bool) {
	if !b.inRange(index) {
		return LineItem{}, false
	}
	return b.items[index].clone(), true
}

// Items returns copies of all lines in order.
func (b *Basket) Items() []LineItem {
	out := make([]LineItem, 0, len(b.items))
	for _, it := range b.items {
		out = append(out, it.clone())
	}
	return out
}

// Total sums the line totals, recomputed on every call.
func (b *Basket) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Clone returns an independent copy.
func (b *Basket) Clone() *Basket {
	return New(b.items...)
}

// MarshalJSON encodes the basket as its ordered list of lines.
func (b *Basket) MarshalJSON() ([]byte, error) {
	items := b.items
	if items == nil {
		items = []LineItem{}
	}
	return json.Marshal(items)
}

// UnmarshalJSON decodes the ordered list form.
func (b *Basket) UnmarshalJSON(data []byte) error {
	var items []LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	b.items = nil
	for _, it := range items {
		b.Add(it)
	}
	return nil
}

func (b *Basket) inRange(index int) bool {
	return index >= 0 && index < len(b.items)
}
