package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jadewok-pos/api/internal/menu"
)

// MenuHandler serves the menu catalog. The catalog is loaded once at
// startup and immutable, so handlers read it without locking.
type MenuHandler struct {
	catalog *menu.Catalog
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(catalog *menu.Catalog) *MenuHandler {
	return &MenuHandler{catalog: catalog}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
// Mounted at /api/menu.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Full)
	r.Get("/search/query", h.Search)
	r.Get("/item/{id}", h.Item)
	r.Get("/{category}", h.Category)
}

type menuItemResponse struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Category  string               `json:"category"`
	Price     string               `json:"price"`
	Modifiers []menu.ModifierGroup `json:"modifiers"`
}

// Full handles GET /api/menu.
func (h *MenuHandler) Full(w http.ResponseWriter, r *http.Request) {
	categories := make(map[string][]menuItemResponse)
	for _, cat := range h.catalog.Categories() {
		items := make([]menuItemResponse, len(cat.Items))
		for i, item := range cat.Items {
			items[i] = toMenuItemResponse(item)
		}
		categories[cat.Name] = items
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":     true,
		"restaurant":  h.catalog.Restaurant(),
		"tax_rate":    h.catalog.TaxRate().StringFixed(4),
		"total_items": h.catalog.Len(),
		"categories":  categories,
	})
}

// Category handles GET /api/menu/{category}.
func (h *MenuHandler) Category(w http.ResponseWriter, r *http.Request) {
	cat, ok := h.catalog.CategoryByID(chi.URLParam(r, "category"))
	if !ok {
		writeError(w, http.StatusNotFound, "category not found")
		return
	}

	items := make([]menuItemResponse, len(cat.Items))
	for i, item := range cat.Items {
		items[i] = toMenuItemResponse(item)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"category": cat.Name,
		"count":    len(items),
		"items":    items,
	})
}

// Item handles GET /api/menu/item/{id}.
func (h *MenuHandler) Item(w http.ResponseWriter, r *http.Request) {
	item, ok := h.catalog.ItemByID(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "menu item not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"item":    toMenuItemResponse(*item),
	})
}

// Search handles GET /api/menu/search/query?q=.
func (h *MenuHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "search query (q) is required")
		return
	}

	found := h.catalog.Search(q)
	items := make([]menuItemResponse, len(found))
	for i, item := range found {
		items[i] = toMenuItemResponse(item)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"query":   q,
		"count":   len(items),
		"items":   items,
	})
}

func toMenuItemResponse(item menu.Item) menuItemResponse {
	resp := menuItemResponse{
		ID:        item.ID,
		Name:      item.Name,
		Category:  item.Category,
		Price:     item.Price.StringFixed(2),
		Modifiers: item.Modifiers,
	}
	if resp.Modifiers == nil {
		resp.Modifiers = []menu.ModifierGroup{}
	}
	return resp
}
