package handler_test

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mejakita/api/internal/cart"
	"github.com/mejakita/api/internal/enum"
	"github.com/mejakita/api/internal/handler"
	"github.com/mejakita/api/internal/middleware"
	"github.com/mejakita/api/internal/promo"
)

func testPromos() *promo.Validator {
	return promo.NewValidator([]promo.Promo{
		{
			Code:         "HEMAT10",
			DiscountType: enum.DiscountTypePercentage,
			Value:        decimal.NewFromInt(10),
			MinOrder:     decimal.NewFromInt(50000),
			MaxDiscount:  decimal.NewFromInt(25000),
		},
	})
}

func setupCartRouter(mgr *cart.Manager) *chi.Mux {
	h := handler.NewCartHandler(mgr, testPromos())
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Route("/tables/{tid}", func(r chi.Router) {
			r.Use(middleware.RequireTable)
			r.Route("/cart", h.RegisterRoutes)
		})
	})
	return r
}

func itemBody(name, price string, qty int) map[string]interface{} {
	return map[string]interface{}{
		"menu_item_id": uuid.New().String(),
		"name":         name,
		"unit_price":   price,
		"quantity":     qty,
	}
}

func TestCartAddItem_HappyPath(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))

	rr := doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		guestToken(t, tableID), itemBody("Nasi Goreng", "25000", 2))

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	entries, ok := resp["entries"].([]interface{})
	if !ok || len(entries) != 1 {
		t.Fatalf("entries: got %v, want 1", resp["entries"])
	}
	entry := entries[0].(map[string]interface{})
	if entry["quantity"] != float64(2) {
		t.Errorf("quantity: got %v, want 2", entry["quantity"])
	}
	if entry["unit_price"] != "25000.00" {
		t.Errorf("unit_price: got %v, want 25000.00", entry["unit_price"])
	}
	summary := resp["summary"].(map[string]interface{})
	if summary["total"] != "57500.00" {
		t.Errorf("total: got %v, want 57500.00", summary["total"])
	}
}

func TestCartAddItem_MergesEqualEntries(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))
	token := guestToken(t, tableID)

	body := itemBody("Mie Ayam", "20000", 2)
	doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items", token, body)
	rr := doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items", token, body)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeBody(t, rr)
	entries := resp["entries"].([]interface{})
	if len(entries) != 1 {
		t.Fatalf("entries after merge: got %d, want 1", len(entries))
	}
	if got := entries[0].(map[string]interface{})["quantity"]; got != float64(4) {
		t.Errorf("merged quantity: got %v, want 4", got)
	}
}

func TestCartAddItem_PerItemLimit(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))

	rr := doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		guestToken(t, tableID), itemBody("Sate Kambing", "40000", 11))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestCartAddItem_TotalLimitAcrossEntries(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))
	token := guestToken(t, tableID)

	// Five distinct items at 10 each hit the cap exactly.
	for i := 0; i < 5; i++ {
		rr := doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
			token, itemBody("Menu", "10000", 10))
		if rr.Code != http.StatusOK {
			t.Fatalf("add %d: got %d, want %d", i, rr.Code, http.StatusOK)
		}
	}

	rr := doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		token, itemBody("One Too Many", "10000", 1))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCartAddItem_RejectsNegativePrice(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))

	rr := doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		guestToken(t, tableID), itemBody("Gratis", "-5000", 1))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestCartRemoveItem_ByKey(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))
	token := guestToken(t, tableID)

	rr := doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		token, itemBody("Gado Gado", "22000", 1))
	resp := decodeBody(t, rr)
	key := resp["entries"].([]interface{})[0].(map[string]interface{})["key"].(string)

	rr = doRequest(t, router, "DELETE", "/tables/"+tableID+"/cart/items?key="+key, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp = decodeBody(t, rr)
	if entries, _ := resp["entries"].([]interface{}); len(entries) != 0 {
		t.Fatalf("entries after remove: got %d, want 0", len(entries))
	}
}

func TestCartClear(t *testing.T) {
	tableID := uuid.New().String()
	mgr := cart.NewManager(cart.NewMemoryKV())
	router := setupCartRouter(mgr)
	token := guestToken(t, tableID)

	doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		token, itemBody("Bakso", "15000", 1))

	rr := doRequest(t, router, "DELETE", "/tables/"+tableID+"/cart", token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}

	rr = doRequest(t, router, "GET", "/tables/"+tableID+"/cart", token, nil)
	resp := decodeBody(t, rr)
	if entries, _ := resp["entries"].([]interface{}); len(entries) != 0 {
		t.Fatalf("entries after clear: got %d, want 0", len(entries))
	}
}

func TestCartSummary_Math(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))
	token := guestToken(t, tableID)

	doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		token, itemBody("Ayam Bakar", "50000", 2))
	doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		token, itemBody("Es Teh", "5000", 3))

	rr := doRequest(t, router, "GET", "/tables/"+tableID+"/cart/summary", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeBody(t, rr)
	if resp["subtotal"] != "115000.00" {
		t.Errorf("subtotal: got %v, want 115000.00", resp["subtotal"])
	}
	if resp["tax"] != "11500.00" {
		t.Errorf("tax: got %v, want 11500.00", resp["tax"])
	}
	if resp["service_fee"] != "5750.00" {
		t.Errorf("service_fee: got %v, want 5750.00", resp["service_fee"])
	}
	if resp["total"] != "132250.00" {
		t.Errorf("total: got %v, want 132250.00", resp["total"])
	}
}

func TestCartApplyPromo_HappyPath(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))
	token := guestToken(t, tableID)

	doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		token, itemBody("Ikan Bakar", "100000", 1))

	rr := doRequest(t, router, "POST", "/tables/"+tableID+"/cart/promo",
		token, map[string]interface{}{"code": "hemat10"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}

	// 10% of the 115000 payable, under the 25000 cap.
	resp := decodeBody(t, rr)
	summary := resp["summary"].(map[string]interface{})
	if summary["discount"] != "11500.00" {
		t.Errorf("discount: got %v, want 11500.00", summary["discount"])
	}
	if summary["total"] != "103500.00" {
		t.Errorf("total: got %v, want 103500.00", summary["total"])
	}
}

func TestCartApplyPromo_UnknownCode(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))
	token := guestToken(t, tableID)

	doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		token, itemBody("Soto", "60000", 1))

	rr := doRequest(t, router, "POST", "/tables/"+tableID+"/cart/promo",
		token, map[string]interface{}{"code": "NOPE"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
}

func TestCartApplyPromo_BelowMinOrder(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))
	token := guestToken(t, tableID)

	doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		token, itemBody("Kerupuk", "5000", 1))

	rr := doRequest(t, router, "POST", "/tables/"+tableID+"/cart/promo",
		token, map[string]interface{}{"code": "HEMAT10"})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusUnprocessableEntity)
	}
}

func TestCartRemovePromo(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))
	token := guestToken(t, tableID)

	doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		token, itemBody("Rendang", "80000", 1))
	doRequest(t, router, "POST", "/tables/"+tableID+"/cart/promo",
		token, map[string]interface{}{"code": "HEMAT10"})

	rr := doRequest(t, router, "DELETE", "/tables/"+tableID+"/cart/promo", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeBody(t, rr)
	if _, ok := resp["promo"]; ok {
		t.Errorf("promo still attached after removal: %+v", resp["promo"])
	}
	if got := resp["summary"].(map[string]interface{})["discount"]; got != "0.00" {
		t.Errorf("discount after removal: got %v, want 0.00", got)
	}
}

func TestCartValidate_EmptyCartBlocks(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))

	rr := doRequest(t, router, "GET", "/tables/"+tableID+"/cart/validate",
		guestToken(t, tableID), nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	resp := decodeBody(t, rr)
	if resp["ok"] != false {
		t.Errorf("ok: got %v, want false", resp["ok"])
	}
	if errs, _ := resp["errors"].([]interface{}); len(errs) == 0 {
		t.Errorf("errors: got none, want at least one")
	}
}

func TestCartValidate_LowTotalWarns(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))
	token := guestToken(t, tableID)

	doRequest(t, router, "POST", "/tables/"+tableID+"/cart/items",
		token, itemBody("Teh Tawar", "3000", 1))

	rr := doRequest(t, router, "GET", "/tables/"+tableID+"/cart/validate", token, nil)
	resp := decodeBody(t, rr)
	if resp["ok"] != true {
		t.Errorf("ok: got %v, want true (warnings do not block)", resp["ok"])
	}
	if warns, _ := resp["warnings"].([]interface{}); len(warns) == 0 {
		t.Errorf("warnings: got none, want the low-total warning")
	}
}

func TestCartGuestWrongTable(t *testing.T) {
	tableID := uuid.New().String()
	router := setupCartRouter(cart.NewManager(cart.NewMemoryKV()))

	rr := doRequest(t, router, "GET", "/tables/"+tableID+"/cart",
		guestToken(t, uuid.New().String()), nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}
