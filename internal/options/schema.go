package options

// Field names of the option schema.
const (
	FieldSize    = "size"
	FieldShots   = "shots"
	FieldSugar   = "sugar"
	FieldIce     = "ice"
	FieldMilk    = "milk"
	FieldPortion = "portion"
	FieldExtras  = "extras"
)

var (
	sizeChoices    = []string{"small", "medium", "large"}
	shotChoices    = []string{"single", "double", "triple"}
	sugarChoices   = []string{"no-sugar", "less-sugar", "normal", "extra-sweet"}
	iceChoices     = []string{"no-ice", "less-ice", "regular", "extra-ice"}
	milkChoices    = []string{"regular", "oat", "almond", "soy", "coconut"}
	portionChoices = []string{"regular", "large"}
)

// Field describes one customisable field of a schema. Choices is empty for
// free-text fields.
type Field struct {
	Name    string   `json:"name"`
	Choices []string `json:"choices,omitempty"`
}

// Schema lists the fields a category exposes, in display order.
type Schema struct {
	Group  Group   `json:"group"`
	Fields []Field `json:"fields"`
}

// SchemaFor returns the option schema of category.
func SchemaFor(category string) Schema {
	g := GroupOf(category)
	var names []string
	switch g {
	case GroupCoffee:
		names = []string{FieldSize, FieldShots, FieldSugar, FieldIce, FieldMilk}
	case GroupTea:
		names = []string{FieldSize, FieldSugar, FieldIce}
	case GroupColdDrink:
		names = []string{FieldSize, FieldIce}
	case GroupFood:
		names = []string{FieldPortion, FieldExtras}
	}
	fields := make([]Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, Field{Name: name, Choices: choices(name)})
	}
	return Schema{Group: g, Fields: fields}
}

func choices(field string) []string {
	var src []string
	switch field {
	case FieldSize:
		src = sizeChoices
	case FieldShots:
		src = shotChoices
	case FieldSugar:
		src = sugarChoices
	case FieldIce:
		src = iceChoices
	case FieldMilk:
		src = milkChoices
	case FieldPortion:
		src = portionChoices
	default:
		return nil
	}
	return append([]string(nil), src...)
}
