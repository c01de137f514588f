package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

//go:embed seed/menu.json
var seedMenu []byte

// Menu is the serialised shape of a full catalog.
type Menu struct {
	Categories []Category `json:"categories"`
	Products   []Product  `json:"products"`
}

// SeedMenu returns the bundled default menu.
func SeedMenu() (Menu, error) {
	var menu Menu
	if err := json.Unmarshal(seedMenu, &menu); err != nil {
		return Menu{}, fmt.Errorf("decode seed menu: %w", err)
	}
	return menu, nil
}

// NewSeededMemoryStore returns a memory store holding the bundled menu.
func NewSeededMemoryStore() (*MemoryStore, error) {
	menu, err := SeedMenu()
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(menu.Categories, menu.Products), nil
}
