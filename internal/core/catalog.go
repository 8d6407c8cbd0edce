package core

import "strings"

// DefaultCategory is assigned to items created without a category.
const DefaultCategory = "general"

// Category is one entry of the static category table. DisplayKey and
// ColorToken are opaque to the core; the UI resolves them.
type Category struct {
	ID         string `json:"id"`
	DisplayKey string `json:"displayKey"`
	ColorToken string `json:"colorToken"`
}

type Catalog []Category

func DefaultCatalog() Catalog {
	return Catalog{
		{ID: "general", DisplayKey: "general", ColorToken: "neutral.500"},
		{ID: "housing", DisplayKey: "housing", ColorToken: "primary.main"},
		{ID: "food", DisplayKey: "food", ColorToken: "financial.paid.main"},
		{ID: "transportation", DisplayKey: "transportation", ColorToken: "financial.partial.main"},
		{ID: "utilities", DisplayKey: "utilities", ColorToken: "financial.unpaid.main"},
		{ID: "entertainment", DisplayKey: "entertainment", ColorToken: "neutral.600"},
		{ID: "healthcare", DisplayKey: "healthcare", ColorToken: "neutral.700"},
		{ID: "shopping", DisplayKey: "shopping", ColorToken: "neutral.800"},
	}
}

// ParseCatalog builds a catalog from a comma separated id list, e.g.
// "food,rent". Display keys default to the id. DefaultCategory is always
// the first entry.
func ParseCatalog(s string) Catalog {
	c := Catalog{{ID: DefaultCategory, DisplayKey: DefaultCategory}}
	seen := map[string]struct{}{DefaultCategory: {}}
	for _, id := range strings.Split(s, ",") {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		c = append(c, Category{ID: id, DisplayKey: id})
	}
	return c
}

func (c Catalog) Has(id string) bool {
	for _, cat := range c {
		if cat.ID == id {
			return true
		}
	}
	return false
}

// Resolve maps an empty id to DefaultCategory and rejects unknown ids.
// An empty catalog accepts any id.
func (c Catalog) Resolve(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return DefaultCategory, nil
	}
	if len(c) == 0 || c.Has(id) {
		return id, nil
	}
	return "", ErrUnknownCategory
}
