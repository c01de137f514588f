package options

// Selection is the typed option selection of a single line item. The concrete
// variant is fixed by the product category; fields that do not belong to the
// category's schema have no representation.
type Selection interface {
	group() Group
}

// Coffee carries size, espresso shots, sweetness, ice and milk.
type Coffee struct {
	Size  string
	Shots string
	Sugar string
	Ice   string
	Milk  string
}

// Tea carries size, sweetness and ice.
type Tea struct {
	Size  string
	Sugar string
	Ice   string
}

// ColdDrink covers milk drinks, smoothies and soft drinks.
type ColdDrink struct {
	Size string
	Ice  string
}

// Food covers every dish category.
type Food struct {
	Portion string
	Extras  string
}

// Generic is the option-less fallback for unknown categories.
type Generic struct{}

func (Coffee) group() Group    { return GroupCoffee }
func (Tea) group() Group       { return GroupTea }
func (ColdDrink) group() Group { return GroupColdDrink }
func (Food) group() Group      { return GroupFood }
func (Generic) group() Group   { return GroupGeneric }

// GroupOfSelection reports the schema family of a selection.
func GroupOfSelection(sel Selection) Group {
	if sel == nil {
		return GroupGeneric
	}
	return sel.group()
}

// Select projects flat values onto the variant that matches category.
func Select(category string, v Values) Selection {
	switch GroupOf(category) {
	case GroupCoffee:
		return Coffee{Size: v.Size, Shots: v.Shots, Sugar: v.Sugar, Ice: v.Ice, Milk: v.Milk}
	case GroupTea:
		return Tea{Size: v.Size, Sugar: v.Sugar, Ice: v.Ice}
	case GroupColdDrink:
		return ColdDrink{Size: v.Size, Ice: v.Ice}
	case GroupFood:
		return Food{Portion: v.Portion, Extras: v.Extras}
	default:
		return Generic{}
	}
}

// Flatten turns a selection back into its wire form.
func Flatten(sel Selection) Values {
	switch s := sel.(type) {
	case Coffee:
		return Values{Size: s.Size, Shots: s.Shots, Sugar: s.Sugar, Ice: s.Ice, Milk: s.Milk}
	case Tea:
		return Values{Size: s.Size, Sugar: s.Sugar, Ice: s.Ice}
	case ColdDrink:
		return Values{Size: s.Size, Ice: s.Ice}
	case Food:
		return Values{Portion: s.Portion, Extras: s.Extras}
	default:
		return Values{}
	}
}
