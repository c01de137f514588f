package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/slowdrip-api/internal/options"
)

var (
	sizes = map[string]decimal.Decimal{
		"small":  decimal.Zero,
		"medium": decimal.RequireFromString("0.5"),
		"large":  decimal.RequireFromString("1.0"),
	}
	coffeeShots = map[string]decimal.Decimal{
		"single": decimal.Zero,
		"double": decimal.RequireFromString("0.8"),
		"triple": decimal.RequireFromString("1.5"),
	}
	milk = map[string]decimal.Decimal{
		"regular": decimal.Zero,
		"oat":     decimal.RequireFromString("0.5"),
		"almond":  decimal.RequireFromString("0.5"),
		"soy":     decimal.RequireFromString("0.5"),
		"coconut": decimal.RequireFromString("0.5"),
	}
	portions = map[string]decimal.Decimal{
		"regular": decimal.Zero,
		"large":   decimal.RequireFromString("2.0"),
	}
)

func lookup(table map[string]decimal.Decimal, value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	if v, ok := table[value]; ok {
		return v
	}
	return decimal.Zero
}

// SizeSurcharge returns the size surcharge, zero for unknown sizes.
func SizeSurcharge(value string) Money { return lookup(sizes, value) }

// ShotSurcharge returns the espresso shot surcharge.
func ShotSurcharge(value string) Money { return lookup(coffeeShots, value) }

// MilkSurcharge returns the milk surcharge.
func MilkSurcharge(value string) Money { return lookup(milk, value) }

// PortionSurcharge returns the food portion surcharge.
func PortionSurcharge(value string) Money { return lookup(portions, value) }

// FieldSurcharge returns the surcharge of value for the named option field and
// whether the field is priced at all.
func FieldSurcharge(field, value string) (Money, bool) {
	switch field {
	case options.FieldSize:
		return SizeSurcharge(value), true
	case options.FieldShots:
		return ShotSurcharge(value), true
	case options.FieldMilk:
		return MilkSurcharge(value), true
	case options.FieldPortion:
		return PortionSurcharge(value), true
	default:
		return decimal.Zero, false
	}
}
