package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mejakita/api/internal/cart"
	"github.com/mejakita/api/internal/promo"
)

// CartHandler handles the table-scoped cart endpoints.
type CartHandler struct {
	mgr    *cart.Manager
	promos *promo.Validator
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(mgr *cart.Manager, promos *promo.Validator) *CartHandler {
	return &CartHandler{mgr: mgr, promos: promos}
}

// RegisterRoutes registers cart endpoints on the given Chi router.
// Expected to be mounted inside a table-scoped subrouter: /tables/{tid}/cart
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Delete("/", h.Clear)
	r.Post("/items", h.AddItem)
	r.Delete("/items", h.RemoveItem)
	r.Get("/summary", h.Summary)
	r.Get("/validate", h.Validate)
	r.Post("/promo", h.ApplyPromo)
	r.Delete("/promo", h.RemovePromo)
}

// --- Request / Response types ---

type addItemRequest struct {
	MenuItemID     string   `json:"menu_item_id"`
	Name           string   `json:"name"`
	UnitPrice      string   `json:"unit_price"`
	Quantity       int32    `json:"quantity"`
	Customizations []string `json:"customizations"`
	Instructions   string   `json:"instructions"`
}

type applyPromoRequest struct {
	Code string `json:"code"`
}

type cartEntryResponse struct {
	Key            string   `json:"key"`
	MenuItemID     string   `json:"menu_item_id"`
	Name           string   `json:"name"`
	UnitPrice      string   `json:"unit_price"`
	Quantity       int32    `json:"quantity"`
	Customizations []string `json:"customizations,omitempty"`
	Instructions   string   `json:"instructions,omitempty"`
}

type cartResponse struct {
	TableID string              `json:"table_id"`
	Entries []cartEntryResponse `json:"entries"`
	Promo   *promo.Promo        `json:"promo,omitempty"`
	Summary summaryResponse     `json:"summary"`
}

type summaryResponse struct {
	Subtotal   string `json:"subtotal"`
	Tax        string `json:"tax"`
	ServiceFee string `json:"service_fee"`
	Discount   string `json:"discount"`
	Total      string `json:"total"`
}

// --- Handlers ---

// Get handles GET /tables/{tid}/cart. An absent stored cart comes back
// as a fresh empty one bound to the table.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// AddItem handles POST /tables/{tid}/cart/items.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")

	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	menuItemID, err := uuid.Parse(req.MenuItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu_item_id"})
		return
	}
	unitPrice, err := decimal.NewFromString(req.UnitPrice)
	if err != nil || unitPrice.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit_price"})
		return
	}

	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	addErr := c.AddItem(cart.Entry{
		MenuItemID:     menuItemID,
		Name:           req.Name,
		UnitPrice:      unitPrice,
		Quantity:       req.Quantity,
		Customizations: req.Customizations,
		Instructions:   req.Instructions,
	}, tid)

	// Expiry and table switches mutate the cart even when they fail the
	// add, so persist before reporting.
	if err := h.mgr.Save(r.Context(), c); err != nil {
		log.Printf("ERROR: save cart for table %s: %v", tid, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	switch {
	case addErr == nil:
		writeJSON(w, http.StatusOK, toCartResponse(c))
	case errors.Is(addErr, cart.ErrSessionExpired):
		writeJSON(w, http.StatusGone, map[string]string{"error": addErr.Error()})
	case errors.Is(addErr, cart.ErrTableMismatch):
		writeJSON(w, http.StatusConflict, map[string]string{"error": addErr.Error()})
	case errors.Is(addErr, cart.ErrInvalidQuantity),
		errors.Is(addErr, cart.ErrItemLimitExceeded),
		errors.Is(addErr, cart.ErrTotalLimitExceeded):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": addErr.Error()})
	default:
		log.Printf("ERROR: add cart item for table %s: %v", tid, addErr)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// RemoveItem handles DELETE /tables/{tid}/cart/items?key=...
// The key is the normalized entry key returned in cart responses.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
		return
	}

	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	c.RemoveItem(key)
	if err := h.mgr.Save(r.Context(), c); err != nil {
		log.Printf("ERROR: save cart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// Clear handles DELETE /tables/{tid}/cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	if err := h.mgr.Remove(r.Context(), tid); err != nil {
		log.Printf("ERROR: clear cart for table %s: %v", tid, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Summary handles GET /tables/{tid}/cart/summary.
func (h *CartHandler) Summary(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSummaryResponse(c.GetSummary()))
}

// Validate handles GET /tables/{tid}/cart/validate. Always 200: the
// caller inspects errors and warnings.
func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	v := c.Validate()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":       v.OK(),
		"errors":   v.Errors,
		"warnings": v.Warnings,
	})
}

// ApplyPromo handles POST /tables/{tid}/cart/promo.
func (h *CartHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	var req applyPromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code is required"})
		return
	}

	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}

	summary := c.GetSummary()
	payable := summary.Subtotal.Add(summary.Tax).Add(summary.ServiceFee)
	result := h.promos.Validate(req.Code, payable)
	if !result.Valid {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": result.Message})
		return
	}

	p, _ := h.promos.Lookup(req.Code)
	c.ApplyPromo(p)
	if err := h.mgr.Save(r.Context(), c); err != nil {
		log.Printf("ERROR: save cart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// RemovePromo handles DELETE /tables/{tid}/cart/promo.
func (h *CartHandler) RemovePromo(w http.ResponseWriter, r *http.Request) {
	c, ok := h.loadCart(w, r)
	if !ok {
		return
	}
	c.RemovePromo()
	if err := h.mgr.Save(r.Context(), c); err != nil {
		log.Printf("ERROR: save cart: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

// --- Helpers ---

// loadCart rehydrates the table's cart, falling back to a fresh empty
// one. Returns ok=false after writing an error response.
func (h *CartHandler) loadCart(w http.ResponseWriter, r *http.Request) (*cart.Cart, bool) {
	tid := chi.URLParam(r, "tid")
	if tid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing table ID"})
		return nil, false
	}

	c, err := h.mgr.Load(r.Context(), tid)
	if err != nil {
		log.Printf("ERROR: load cart for table %s: %v", tid, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return nil, false
	}
	if c == nil {
		c = cart.New(tid)
	}
	return c, true
}

func toCartResponse(c *cart.Cart) cartResponse {
	entries := make([]cartEntryResponse, len(c.Entries))
	for i, e := range c.Entries {
		entries[i] = cartEntryResponse{
			Key:            e.Key(),
			MenuItemID:     e.MenuItemID.String(),
			Name:           e.Name,
			UnitPrice:      e.UnitPrice.StringFixed(2),
			Quantity:       e.Quantity,
			Customizations: e.Customizations,
			Instructions:   e.Instructions,
		}
	}
	return cartResponse{
		TableID: c.TableID,
		Entries: entries,
		Promo:   c.Promo,
		Summary: toSummaryResponse(c.GetSummary()),
	}
}

func toSummaryResponse(s cart.Summary) summaryResponse {
	return summaryResponse{
		Subtotal:   s.Subtotal.StringFixed(2),
		Tax:        s.Tax.StringFixed(2),
		ServiceFee: s.ServiceFee.StringFixed(2),
		Discount:   s.Discount.StringFixed(2),
		Total:      s.Total.StringFixed(2),
	}
}
