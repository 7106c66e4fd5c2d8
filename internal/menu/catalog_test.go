package menu

import (
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

const testMenu = `{
  "restaurant": {"name": "Jade Wok", "tax_rate": 0.1175},
  "categories": [
    {
      "id": "entrees",
      "name": "Entrees",
      "items": [
        {"id": "ent_001", "name": "General Tao's Chicken", "price": 15.95,
         "modifiers": [{"id": "spice", "name": "Spice Level", "required": true,
           "options": [{"name": "Mild", "price": 0}, {"name": "Extra Hot", "price": 0.50}]}]},
        {"id": "ent_002", "name": "Sesame Chicken", "price": 14.50},
        {"id": "ent_003", "name": "Beef w. Broccoli", "price": 16.25}
      ]
    },
    {
      "id": "sides",
      "name": "Sides",
      "items": [
        {"id": "side_001", "name": "White Rice", "price": 2.00},
        {"id": "side_002", "name": "Fried Rice", "price": 4.50},
        {"id": "side_003", "name": "Spring Roll", "price": 3.25},
        {"id": "side_004", "name": "Spring Roll Deluxe", "price": 5.25},
        {"id": "side_005", "name": "Wonton", "price": 2.75},
        {"id": "side_006", "name": "Wonton Soup", "price": 4.95}
      ]
    }
  ]
}`

func loadTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Load(strings.NewReader(testMenu))
	if err != nil {
		t.Fatalf("load test catalog: %v", err)
	}
	return c
}

func TestLoad(t *testing.T) {
	c := loadTestCatalog(t)

	if c.Restaurant() != "Jade Wok" {
		t.Errorf("restaurant = %q, want %q", c.Restaurant(), "Jade Wok")
	}
	if want := decimal.NewFromFloat(0.1175); !c.TaxRate().Equal(want) {
		t.Errorf("tax rate = %s, want %s", c.TaxRate(), want)
	}
	if c.Len() != 9 {
		t.Errorf("item count = %d, want 9", c.Len())
	}
	if len(c.Categories()) != 2 {
		t.Errorf("category count = %d, want 2", len(c.Categories()))
	}

	item, ok := c.ItemByID("side_001")
	if !ok {
		t.Fatal("ItemByID(side_001) not found")
	}
	if item.Name != "White Rice" {
		t.Errorf("item name = %q, want White Rice", item.Name)
	}
	if item.Category != "Sides" {
		t.Errorf("item category = %q, want Sides", item.Category)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "missing categories",
			input:   `{"restaurant": {"tax_rate": 0.08}}`,
			wantErr: ErrNoCategories,
		},
		{
			name:    "empty categories",
			input:   `{"categories": []}`,
			wantErr: ErrNoCategories,
		},
		{
			name:    "item without name",
			input:   `{"categories": [{"id": "c", "name": "C", "items": [{"id": "x", "price": 1.0}]}]}`,
			wantErr: ErrItemMissingName,
		},
		{
			name:    "item without price",
			input:   `{"categories": [{"id": "c", "name": "C", "items": [{"id": "x", "name": "Thing"}]}]}`,
			wantErr: ErrItemMissingPrice,
		},
		{
			name:    "negative price",
			input:   `{"categories": [{"id": "c", "name": "C", "items": [{"id": "x", "name": "Thing", "price": -1.0}]}]}`,
			wantErr: ErrNegativePrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Load error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMalformedJSON(t *testing.T) {
	if _, err := Load(strings.NewReader(`{"categories": [`)); err == nil {
		t.Error("Load on malformed JSON: want error, got nil")
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "lower and trim",
			input:    "  White Rice  ",
			expected: "white rice",
		},
		{
			name:     "possessive substitution",
			input:    "General Tso's Chicken",
			expected: "general taos chicken",
		},
		{
			name:     "bare substitution",
			input:    "general tso chicken",
			expected: "general tao chicken",
		},
		{
			name:     "steamed rice alias",
			input:    "Steamed Rice",
			expected: "white rice",
		},
		{
			name:     "hyphen stripped",
			input:    "Pork-Fried Rice",
			expected: "porkfried rice",
		},
		{
			name:     "apostrophe stripped",
			input:    "General Tao's Chicken",
			expected: "general taos chicken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.expected {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	// Repeated calls must agree, since the same transform keys both the
	// catalog index and incoming queries.
	for i := 0; i < 100; i++ {
		if got := Normalize("General Tso's Chicken"); got != "general taos chicken" {
			t.Fatalf("iteration %d: Normalize = %q", i, got)
		}
	}
}

func TestDualKeyIndex(t *testing.T) {
	c := loadTestCatalog(t)

	// Normalized key and raw lower-cased key both hit the same item.
	byNorm, ok := c.Lookup("general taos chicken")
	if !ok {
		t.Fatal("normalized key missed")
	}
	byRaw, ok := c.Lookup("general tao's chicken")
	if !ok {
		t.Fatal("raw key missed")
	}
	if byNorm.ID != "ent_001" || byRaw.ID != "ent_001" {
		t.Errorf("dual keys resolve to %q / %q, want ent_001 for both", byNorm.ID, byRaw.ID)
	}
}

func TestCategoryByID(t *testing.T) {
	c := loadTestCatalog(t)

	if _, ok := c.CategoryByID("sides"); !ok {
		t.Error("CategoryByID(sides) not found")
	}
	if _, ok := c.CategoryByID("Entrees"); !ok {
		t.Error("CategoryByID by display name not found")
	}
	if _, ok := c.CategoryByID("desserts"); ok {
		t.Error("CategoryByID(desserts) should not be found")
	}
}

func TestSearch(t *testing.T) {
	c := loadTestCatalog(t)

	hits := c.Search("rice")
	if len(hits) != 2 {
		t.Fatalf("Search(rice) = %d hits, want 2", len(hits))
	}
	if hits := c.Search("lobster"); len(hits) != 0 {
		t.Errorf("Search(lobster) = %d hits, want 0", len(hits))
	}
}
