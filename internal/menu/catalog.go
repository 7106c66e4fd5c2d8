package menu

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

// Errors returned while loading menu configuration. All of them are fatal:
// the process must not serve pricing from an incomplete catalog.
var (
	ErrNoCategories     = errors.New("menu data has no categories")
	ErrItemMissingName  = errors.New("menu item has no name")
	ErrItemMissingPrice = errors.New("menu item has no price")
	ErrNegativePrice    = errors.New("menu item price is negative")
)

// DefaultTaxRate applies when the menu configuration does not set one.
var DefaultTaxRate = decimal.NewFromFloat(0.1175)

// menuFile is the on-disk configuration shape.
type menuFile struct {
	Restaurant struct {
		Name    string           `json:"name"`
		TaxRate *decimal.Decimal `json:"tax_rate"`
	} `json:"restaurant"`
	Categories []categoryFile `json:"categories"`
}

type categoryFile struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Items []itemFile `json:"items"`
}

type itemFile struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Price     *decimal.Decimal `json:"price"`
	Modifiers []ModifierGroup  `json:"modifiers"`
}

// ModifierGroup is a named set of options attached to a menu item.
// Required groups are exactly-one-of-N; optional groups are add-ons.
type ModifierGroup struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Required bool             `json:"required"`
	Options  []ModifierOption `json:"options"`
}

// ModifierOption is one selectable option with its price delta.
type ModifierOption struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Item is one sellable catalog entry.
type Item struct {
	ID        string
	Name      string
	Category  string
	Price     decimal.Decimal
	Modifiers []ModifierGroup
}

// Category groups items for menu display.
type Category struct {
	ID    string
	Name  string
	Items []Item
}

// Catalog is the authoritative menu, loaded once at startup and immutable
// afterwards. Concurrent reads need no locking.
type Catalog struct {
	restaurant string
	taxRate    decimal.Decimal
	categories []Category

	// index maps lookup keys to items. Each item is stored under two keys:
	// its normalized name and its raw lower-cased/trimmed name, so callers
	// hitting either form get an exact hit before any fuzzy logic runs.
	// Last write wins on key collision.
	index map[string]*Item
}

// Load parses menu configuration from r and builds the lookup index.
func Load(r io.Reader) (*Catalog, error) {
	var mf menuFile
	if err := json.NewDecoder(r).Decode(&mf); err != nil {
		return nil, fmt.Errorf("parse menu data: %w", err)
	}
	if len(mf.Categories) == 0 {
		return nil, ErrNoCategories
	}

	c := &Catalog{
		restaurant: mf.Restaurant.Name,
		taxRate:    DefaultTaxRate,
		index:      make(map[string]*Item),
	}
	if mf.Restaurant.TaxRate != nil {
		c.taxRate = *mf.Restaurant.TaxRate
	}

	for _, cat := range mf.Categories {
		category := Category{ID: cat.ID, Name: cat.Name}
		for _, it := range cat.Items {
			if strings.TrimSpace(it.Name) == "" {
				return nil, fmt.Errorf("category %q: %w", cat.Name, ErrItemMissingName)
			}
			if it.Price == nil {
				return nil, fmt.Errorf("category %q, item %q: %w", cat.Name, it.Name, ErrItemMissingPrice)
			}
			if it.Price.IsNegative() {
				return nil, fmt.Errorf("category %q, item %q: %w", cat.Name, it.Name, ErrNegativePrice)
			}
			category.Items = append(category.Items, Item{
				ID:        it.ID,
				Name:      it.Name,
				Category:  cat.Name,
				Price:     *it.Price,
				Modifiers: it.Modifiers,
			})
		}
		c.categories = append(c.categories, category)
	}

	for ci := range c.categories {
		for ii := range c.categories[ci].Items {
			item := &c.categories[ci].Items[ii]
			c.index[Normalize(item.Name)] = item
			c.index[strings.ToLower(strings.TrimSpace(item.Name))] = item
		}
	}

	return c, nil
}

// LoadFile loads menu configuration from a JSON file on disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open menu data: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// substitutions maps common spelling variants to the catalog's canonical
// spelling. Applied in order; the possessive form goes first so both forms
// rewrite cleanly.
var substitutions = []struct{ from, to string }{
	{"general tso's", "general tao's"},
	{"general tso", "general tao"},
	{"steamed rice", "white rice"},
}

var punctStripper = strings.NewReplacer("'", "", "-", "")

// Normalize produces the lookup key for a name: lower-case, trim, apply
// spelling substitutions, then strip apostrophes and hyphens. Pure and
// deterministic; the same transform is applied to catalog keys and query
// keys so exact-match lookups line up.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, sub := range substitutions {
		if strings.Contains(n, sub.from) {
			n = strings.ReplaceAll(n, sub.from, sub.to)
		}
	}
	return punctStripper.Replace(n)
}

// Restaurant returns the configured restaurant name.
func (c *Catalog) Restaurant() string { return c.restaurant }

// TaxRate returns the configured tax rate.
func (c *Catalog) TaxRate() decimal.Decimal { return c.taxRate }

// Categories returns the menu grouped for display.
func (c *Catalog) Categories() []Category { return c.categories }

// Len reports the number of distinct items in the catalog.
func (c *Catalog) Len() int {
	n := 0
	for _, cat := range c.categories {
		n += len(cat.Items)
	}
	return n
}

// Lookup returns the item stored under key, if any. Key must already be
// normalized or lower-cased/trimmed; see Normalize.
func (c *Catalog) Lookup(key string) (*Item, bool) {
	item, ok := c.index[key]
	return item, ok
}

// ItemByID returns the item with the given catalog id.
func (c *Catalog) ItemByID(id string) (*Item, bool) {
	for ci := range c.categories {
		for ii := range c.categories[ci].Items {
			if c.categories[ci].Items[ii].ID == id {
				return &c.categories[ci].Items[ii], true
			}
		}
	}
	return nil, false
}

// CategoryByID returns the category with the given id or name.
func (c *Catalog) CategoryByID(id string) (*Category, bool) {
	for ci := range c.categories {
		if c.categories[ci].ID == id || strings.EqualFold(c.categories[ci].Name, id) {
			return &c.categories[ci], true
		}
	}
	return nil, false
}

// Search returns items whose name contains q, case-insensitively.
func (c *Catalog) Search(q string) []Item {
	q = strings.ToLower(strings.TrimSpace(q))
	var out []Item
	for _, cat := range c.categories {
		for _, item := range cat.Items {
			if strings.Contains(strings.ToLower(item.Name), q) {
				out = append(out, item)
			}
		}
	}
	return out
}
