package options

// CategoryTag identifies the kind of product and therefore its option schema.
type CategoryTag string

const (
	CategoryCoffee        CategoryTag = "coffee"
	CategoryTea           CategoryTag = "tea"
	CategoryMilkDrinks    CategoryTag = "milk-drinks"
	CategorySmoothies     CategoryTag = "smoothies"
	CategorySoftDrinks    CategoryTag = "soft-drinks"
	CategoryRiceDishes    CategoryTag = "rice-dishes"
	CategoryNoodles       CategoryTag = "noodles"
	CategorySandwiches    CategoryTag = "sandwiches"
	CategoryCakesPastries CategoryTag = "cakes-pastries"
	CategorySalads        CategoryTag = "salads"
	CategorySnacks        CategoryTag = "snacks"
	CategoryDesserts      CategoryTag = "desserts"
)

// Group is the option schema family a category belongs to.
type Group string

const (
	GroupCoffee    Group = "coffee"
	GroupTea       Group = "tea"
	GroupColdDrink Group = "cold-drink"
	GroupFood      Group = "food"
	GroupGeneric   Group = "generic"
)

// GroupOf maps a category tag onto its schema family. Tags match exactly;
// anything else, including a differently cased tag, is generic.
func GroupOf(category string) Group {
	switch CategoryTag(category) {
	case CategoryCoffee:
		return GroupCoffee
	case CategoryTea:
		return GroupTea
	case CategoryMilkDrinks, CategorySmoothies, CategorySoftDrinks:
		return GroupColdDrink
	case CategoryRiceDishes, CategoryNoodles, CategorySandwiches, CategoryCakesPastries, CategorySalads, CategorySnacks, CategoryDesserts:
		return GroupFood
	default:
		return GroupGeneric
	}
}

// Values is the flat option selection as it travels over the wire and rests
// in storage. Only the fields belonging to the category's schema carry
// meaning; the rest stay empty.
type Values struct {
	Size    string `json:"size"`
	Shots   string `json:"shots"`
	Sugar   string `json:"sugar"`
	Ice     string `json:"ice"`
	Milk    string `json:"milk"`
	Portion string `json:"portion"`
	Extras  string `json:"extras"`
}

// Defaults returns the initial option selection for a product of the given
// category. It never fails; unknown categories resolve to all-empty values.
func Defaults(category string) Values {
	switch GroupOf(category) {
	case GroupCoffee:
		return Values{Size: "medium", Sugar: "normal", Ice: "regular", Milk: "regular", Shots: "single"}
	case GroupTea:
		return Values{Size: "medium", Sugar: "normal", Ice: "regular"}
	case GroupColdDrink:
		return Values{Size: "medium", Ice: "regular"}
	case GroupFood:
		return Values{Portion: "regular"}
	default:
		return Values{}
	}
}

// Merge overlays the non-empty fields of patch on top of v.
func (v Values) Merge(patch Values) Values {
	out := v
	if patch.Size != "" {
		out.Size = patch.Size
	}
	if patch.Shots != "" {
		out.Shots = patch.Shots
	}
	if patch.Sugar != "" {
		out.Sugar = patch.Sugar
	}
	if patch.Ice != "" {
		out.Ice = patch.Ice
	}
	if patch.Milk != "" {
		out.Milk = patch.Milk
	}
	if patch.Portion != "" {
		out.Portion = patch.Portion
	}
	if patch.Extras != "" {
		out.Extras = patch.Extras
	}
	return out
}
