package receipt

import (
	"strconv"
	"strings"

	"github.com/noah-isme/slowdrip-api/internal/pricing"
)

// TextOptions selects the text variant.
type TextOptions struct {
	// IncludeTotals prints line totals and the grand total. Messages bound for
	// a chat channel leave prices out.
	IncludeTotals bool
	// ProductName switches to the single-product header.
	ProductName string
}

// RenderText renders lines as a plain-text order.
func RenderText(lines []Line, timestamp string, opts TextOptions) string {
	var b strings.Builder
	b.WriteString("Order:")
	if opts.ProductName != "" {
		b.WriteString(" " + opts.ProductName)
	}
	b.WriteString("\nTime: " + timestamp + "\n\n")

	for i, l := range lines {
		b.WriteString("Item " + strconv.Itoa(i+1) + ": " + l.Name + "\n")
		b.WriteString("  Quantity: " + strconv.Itoa(l.Quantity) + "\n")
		for _, opt := range OptionLines(l.Selection) {
			b.WriteString("  " + opt + "\n")
		}
		if opts.IncludeTotals {
			b.WriteString("  Total: $" + pricing.Format(l.LineTotal) + "\n")
		}
		b.WriteString("\n")
	}

	if opts.IncludeTotals {
		b.WriteString("Grand Total: $" + pricing.Format(Total(lines)) + "\n")
	}
	b.WriteString("Thank you!")
	return b.String()
}
