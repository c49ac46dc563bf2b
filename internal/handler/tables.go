package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mejakita/api/internal/auth"
	"github.com/mejakita/api/internal/cart"
	"github.com/mejakita/api/internal/enum"
	"github.com/mejakita/api/internal/occupancy"
	"github.com/mejakita/api/internal/store"
)

// TableStore defines the database methods needed by table handlers.
type TableStore interface {
	ListOrdersForTable(ctx context.Context, tableID uuid.UUID) ([]store.Order, error)
	ListActiveOrders(ctx context.Context) ([]store.Order, error)
}

// TableHandler handles the QR scan entry point and the derived
// occupancy views.
type TableHandler struct {
	store     TableStore
	carts     *cart.Manager
	jwtSecret string
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(st TableStore, carts *cart.Manager, jwtSecret string) *TableHandler {
	return &TableHandler{store: st, carts: carts, jwtSecret: jwtSecret}
}

// --- Response types ---

type scanResponse struct {
	TableID      string `json:"table_id"`
	SessionToken string `json:"session_token"`
	// CartRecovered reports whether an unexpired stored cart for this
	// table was found and will be served on the next cart fetch.
	CartRecovered bool `json:"cart_recovered"`
}

type tableStatusResponse struct {
	TableID string `json:"table_id"`
	Status  string `json:"status"`
}

// --- Handlers ---

// Scan handles POST /tables/{tid}/scan. It mints the guest session
// token for the table and reports whether a stored cart survives.
func (h *TableHandler) Scan(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	if _, err := uuid.Parse(tid); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	token, err := auth.GenerateTableToken(h.jwtSecret, tid)
	if err != nil {
		log.Printf("ERROR: generate table token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	recovered := false
	if c, err := h.carts.Load(r.Context(), tid); err != nil {
		log.Printf("ERROR: load cart on scan for table %s: %v", tid, err)
	} else if c != nil && len(c.Entries) > 0 {
		recovered = true
	}

	writeJSON(w, http.StatusOK, scanResponse{
		TableID:       tid,
		SessionToken:  token,
		CartRecovered: recovered,
	})
}

// Status handles GET /tables/{tid}/status. The label is derived from
// the table's active orders on every call.
func (h *TableHandler) Status(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	orders, err := h.store.ListOrdersForTable(r.Context(), tableID)
	if err != nil {
		log.Printf("ERROR: list orders for table status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, tableStatusResponse{
		TableID: tableID.String(),
		Status:  occupancy.Label(tableID, orders),
	})
}

// FloorStatus handles GET /tables/status for the staff floor view. It
// lists every table with at least one active order; tables absent from
// the response are available.
func (h *TableHandler) FloorStatus(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListActiveOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: list active orders for floor status: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	seen := make(map[uuid.UUID]bool)
	resp := []tableStatusResponse{}
	for i := range orders {
		o := &orders[i]
		if !o.TableID.Valid {
			continue
		}
		tableID := uuid.UUID(o.TableID.Bytes)
		if seen[tableID] {
			continue
		}
		seen[tableID] = true

		label := occupancy.Label(tableID, orders)
		if label == enum.TableStatusAvailable {
			continue
		}
		resp = append(resp, tableStatusResponse{
			TableID: tableID.String(),
			Status:  label,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
