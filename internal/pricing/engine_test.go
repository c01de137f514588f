package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slowdrip-api/internal/options"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestUnitPriceCoffee(t *testing.T) {
	got := UnitPrice("coffee", options.Values{Size: "large", Shots: "double", Milk: "oat", Sugar: "normal", Ice: "regular"}, dec("3.00"))
	require.True(t, got.Equal(dec("5.30")), "got %s", got)
}

func TestUnitPriceTeaSmallHasNoSurcharge(t *testing.T) {
	got := UnitPrice("tea", options.Values{Size: "small", Sugar: "no-sugar", Ice: "extra-ice"}, dec("2.50"))
	require.True(t, got.Equal(dec("2.50")), "got %s", got)
}

func TestUnitPriceIgnoresFieldsOutsideSchema(t *testing.T) {
	// shots and milk are not part of the tea schema
	got := UnitPrice("tea", options.Values{Size: "medium", Shots: "triple", Milk: "oat"}, dec("2.00"))
	require.True(t, got.Equal(dec("2.50")), "got %s", got)

	got = UnitPrice("noodles", options.Values{Size: "large", Portion: "large"}, dec("5.00"))
	require.True(t, got.Equal(dec("7.00")), "got %s", got)
}

func TestUnitPriceUnknownValuesAddZero(t *testing.T) {
	got := UnitPrice("coffee", options.Values{Size: "venti", Shots: "quad", Milk: "hemp"}, dec("3.00"))
	require.True(t, got.Equal(dec("3.00")))

	got = UnitPrice("merch", options.Values{Size: "large", Portion: "large"}, dec("12.00"))
	require.True(t, got.Equal(dec("12.00")))
}

func TestUnitPriceNeverBelowBase(t *testing.T) {
	base := dec("1.25")
	categories := []string{"coffee", "tea", "smoothies", "desserts", "unknown"}
	values := []string{"", "small", "medium", "large", "single", "double", "triple", "oat", "regular", "bogus"}
	for _, c := range categories {
		for _, v := range values {
			opts := options.Values{Size: v, Shots: v, Milk: v, Portion: v}
			require.True(t, UnitPrice(c, opts, base).GreaterThanOrEqual(base), "%s/%s", c, v)
		}
	}
}

func TestLineTotalAndCompute(t *testing.T) {
	coffee := UnitPrice("coffee", options.Values{Size: "medium", Shots: "double", Milk: "oat"}, dec("3.00"))
	noodle := UnitPrice("noodles", options.Values{Portion: "large", Extras: "no onions"}, dec("5.00"))

	require.True(t, LineTotal(coffee, 2).Equal(dec("9.60")))
	require.True(t, LineTotal(coffee, 0).Equal(coffee), "quantity floors at one")

	summary := Compute([]Item{{Qty: 2, UnitPrice: coffee}, {Qty: 1, UnitPrice: noodle}})
	require.Len(t, summary.Lines, 2)
	require.Equal(t, "16.60", Format(summary.Total))
	require.Equal(t, "0.00", Format(Compute(nil).Total))
}

func TestFormatTruncates(t *testing.T) {
	require.Equal(t, "1.99", Format(dec("1.999")))
	require.Equal(t, "5.30", Format(dec("5.3")))
}

func TestFieldSurcharge(t *testing.T) {
	v, priced := FieldSurcharge(options.FieldShots, "triple")
	require.True(t, priced)
	require.True(t, v.Equal(dec("1.5")))

	_, priced = FieldSurcharge(options.FieldSugar, "extra-sweet")
	require.False(t, priced)
}
