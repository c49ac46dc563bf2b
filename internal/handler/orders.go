package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/mejakita/api/internal/cart"
	"github.com/mejakita/api/internal/enum"
	"github.com/mejakita/api/internal/store"
	"github.com/mejakita/api/internal/transition"
)

// OrderStore defines the database methods needed by order handlers.
// Satisfied by *store.Store; narrow interface for testability.
type OrderStore interface {
	CreateOrder(ctx context.Context, arg store.CreateOrderParams) (store.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
	ListOrdersForTable(ctx context.Context, tableID uuid.UUID) ([]store.Order, error)
	ListActiveOrders(ctx context.Context) ([]store.Order, error)
	ListOrderItems(ctx context.Context, orderID uuid.UUID) ([]store.OrderItem, error)
}

// TransitionService defines the status mutation methods order handlers
// delegate to. Satisfied by *transition.Service.
type TransitionService interface {
	Transition(ctx context.Context, orderID uuid.UUID, requested string) (*store.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*store.Order, error)
	VerifyPayment(ctx context.Context, orderID uuid.UUID) (*store.Order, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	store OrderStore
	svc   TransitionService
	carts *cart.Manager
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(st OrderStore, svc TransitionService, carts *cart.Manager) *OrderHandler {
	return &OrderHandler{store: st, svc: svc, carts: carts}
}

// --- Request / Response types ---

type checkoutRequest struct {
	Notes string `json:"notes"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	TableID       *string             `json:"table_id"`
	OrderType     string              `json:"order_type"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"payment_status"`
	Subtotal      string              `json:"subtotal"`
	Tax           string              `json:"tax"`
	ServiceCharge string              `json:"service_charge"`
	Discount      string              `json:"discount"`
	Total         string              `json:"total"`
	Notes         *string             `json:"notes"`
	ConfirmedAt   *time.Time          `json:"confirmed_at"`
	PreparingAt   *time.Time          `json:"preparing_at"`
	ReadyAt       *time.Time          `json:"ready_at"`
	DeliveredAt   *time.Time          `json:"delivered_at"`
	CompletedAt   *time.Time          `json:"completed_at"`
	CancelledAt   *time.Time          `json:"cancelled_at"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	Items         []orderItemResponse `json:"items,omitempty"`
}

type orderItemResponse struct {
	ID           uuid.UUID `json:"id"`
	MenuItemID   uuid.UUID `json:"menu_item_id"`
	Quantity     int32     `json:"quantity"`
	UnitPrice    string    `json:"unit_price"`
	Subtotal     string    `json:"subtotal"`
	Instructions *string   `json:"instructions"`
}

// --- Handlers ---

// Checkout handles POST /tables/{tid}/orders. It converts the table's
// cart into a pending_payment order and drops the stored cart.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	tid := chi.URLParam(r, "tid")
	tableID, err := uuid.Parse(tid)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	var req checkoutRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	c, err := h.carts.Load(r.Context(), tid)
	if err != nil {
		log.Printf("ERROR: load cart for checkout: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if c == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "cart is empty"})
		return
	}

	if v := c.Validate(); !v.OK() {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  "cart is not ready for checkout",
			"errors": v.Errors,
		})
		return
	}

	summary := c.GetSummary()
	items := make([]store.CreateOrderItemParams, len(c.Entries))
	for i, e := range c.Entries {
		items[i] = store.CreateOrderItemParams{
			MenuItemID:   e.MenuItemID,
			Quantity:     e.Quantity,
			UnitPrice:    e.UnitPrice,
			Instructions: e.Instructions,
		}
	}

	order, err := h.store.CreateOrder(r.Context(), store.CreateOrderParams{
		TableID:       pgtype.UUID{Bytes: tableID, Valid: true},
		OrderType:     enum.OrderTypeDineIn,
		Subtotal:      summary.Subtotal,
		Tax:           summary.Tax,
		ServiceCharge: summary.ServiceFee,
		Discount:      summary.Discount,
		Total:         summary.Total,
		Notes:         req.Notes,
		Items:         items,
	})
	if err != nil {
		log.Printf("ERROR: create order for table %s: %v", tid, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	// The cart is spent. A failed removal only risks a stale rehydrate,
	// so it is not worth failing the checkout over.
	if err := h.carts.Remove(r.Context(), tid); err != nil {
		log.Printf("ERROR: remove cart after checkout: %v", err)
	}

	resp := toOrderResponse(order)
	resp.Items = toItemResponses(orderItemsFromParams(order, items))
	writeJSON(w, http.StatusCreated, resp)
}

// ListForTable handles GET /tables/{tid}/orders.
func (h *OrderHandler) ListForTable(w http.ResponseWriter, r *http.Request) {
	tableID, err := uuid.Parse(chi.URLParam(r, "tid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table ID"})
		return
	}

	orders, err := h.store.ListOrdersForTable(r.Context(), tableID)
	if err != nil {
		log.Printf("ERROR: list orders for table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// ListActive handles GET /orders for the kitchen and floor dashboards.
func (h *OrderHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListActiveOrders(r.Context())
	if err != nil {
		log.Printf("ERROR: list active orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItems(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := toOrderResponse(order)
	resp.Items = toItemResponses(items)
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus handles PATCH /orders/{id}/status. All status writes go
// through the transition service; the handler only maps errors.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	order, err := h.svc.Transition(r.Context(), orderID, req.Status)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// Cancel handles DELETE /orders/{id}.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.Cancel(r.Context(), orderID)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// SubmitPayment handles POST /orders/{id}/payment. The guest reports
// payment sent; the order moves to payment_verification until an
// employee verifies.
func (h *OrderHandler) SubmitPayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.Transition(r.Context(), orderID, enum.OrderStatusPaymentVerification)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// VerifyPayment handles POST /orders/{id}/payment/verify.
func (h *OrderHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	order, err := h.svc.VerifyPayment(r.Context(), orderID)
	if err != nil {
		h.writeTransitionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(*order))
}

// --- Helpers ---

// writeTransitionError maps transition service errors to HTTP statuses.
func (h *OrderHandler) writeTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, transition.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, transition.ErrInvalidStatus):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, transition.ErrInvalidTransition),
		errors.Is(err, transition.ErrTerminalState),
		errors.Is(err, transition.ErrPaymentNotPending),
		errors.Is(err, transition.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: order transition: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func toOrderResponse(o store.Order) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		OrderNumber:   o.Number(),
		OrderType:     o.OrderType,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Subtotal:      store.NumericToString(o.Subtotal),
		Tax:           store.NumericToString(o.Tax),
		ServiceCharge: store.NumericToString(o.ServiceCharge),
		Discount:      store.NumericToString(o.Discount),
		Total:         store.NumericToString(o.Total),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}

	if o.TableID.Valid {
		s := uuid.UUID(o.TableID.Bytes).String()
		resp.TableID = &s
	}
	if o.Notes.Valid {
		resp.Notes = &o.Notes.String
	}
	if o.ConfirmedAt.Valid {
		resp.ConfirmedAt = &o.ConfirmedAt.Time
	}
	if o.PreparingAt.Valid {
		resp.PreparingAt = &o.PreparingAt.Time
	}
	if o.ReadyAt.Valid {
		resp.ReadyAt = &o.ReadyAt.Time
	}
	if o.DeliveredAt.Valid {
		resp.DeliveredAt = &o.DeliveredAt.Time
	}
	if o.CompletedAt.Valid {
		resp.CompletedAt = &o.CompletedAt.Time
	}
	if o.CancelledAt.Valid {
		resp.CancelledAt = &o.CancelledAt.Time
	}

	return resp
}

func toOrderResponses(orders []store.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	return resp
}

func toItemResponses(items []store.OrderItem) []orderItemResponse {
	resp := make([]orderItemResponse, len(items))
	for i, it := range items {
		resp[i] = orderItemResponse{
			ID:         it.ID,
			MenuItemID: it.MenuItemID,
			Quantity:   it.Quantity,
			UnitPrice:  store.NumericToString(it.UnitPrice),
			Subtotal:   store.NumericToString(it.Subtotal),
		}
		if it.Instructions.Valid {
			resp[i].Instructions = &it.Instructions.String
		}
	}
	return resp
}

// orderItemsFromParams echoes the just-inserted lines back in the
// checkout response without a second round trip.
func orderItemsFromParams(order store.Order, items []store.CreateOrderItemParams) []store.OrderItem {
	out := make([]store.OrderItem, len(items))
	for i, item := range items {
		out[i] = store.OrderItem{
			OrderID:    order.ID,
			MenuItemID: item.MenuItemID,
			Quantity:   item.Quantity,
			UnitPrice:  store.DecimalToNumeric(item.UnitPrice),
			Subtotal:   store.DecimalToNumeric(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity))),
		}
		if item.Instructions != "" {
			out[i].Instructions = pgtype.Text{String: item.Instructions, Valid: true}
		}
	}
	return out
}
