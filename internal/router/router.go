package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mejakita/api/internal/cart"
	"github.com/mejakita/api/internal/config"
	"github.com/mejakita/api/internal/enum"
	"github.com/mejakita/api/internal/handler"
	mw "github.com/mejakita/api/internal/middleware"
	"github.com/mejakita/api/internal/promo"
	"github.com/mejakita/api/internal/store"
	"github.com/mejakita/api/internal/transition"
	"github.com/mejakita/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Guests reach the table-scoped routes with scan tokens; staff routes
// require an employee or owner login.
func New(cfg *config.Config, st *store.Store, svc *transition.Service, carts *cart.Manager, promos *promo.Validator, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(st, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// The QR scan is the guest entry point, so it cannot require a
	// token of its own.
	tableHandler := handler.NewTableHandler(st, carts, cfg.JWTSecret)
	r.Post("/tables/{tid}/scan", tableHandler.Scan)

	// WebSocket routes (handle auth internally via query param)
	r.Get("/ws/tables/{tid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeTableWS(hub, cfg.JWTSecret, w, r)
	})
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeOrdersWS(hub, cfg.JWTSecret, w, r)
	})

	cartHandler := handler.NewCartHandler(carts, promos)
	orderHandler := handler.NewOrderHandler(st, svc, carts)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Table-scoped routes; guests are pinned to their own table
		r.Route("/tables/{tid}", func(r chi.Router) {
			r.Use(mw.RequireTable)

			r.Get("/status", tableHandler.Status)
			r.Route("/cart", cartHandler.RegisterRoutes)
			r.Post("/orders", orderHandler.Checkout)
			r.Get("/orders", orderHandler.ListForTable)
		})

		// Order detail is reachable by guests for their own receipts
		// and by staff for everything
		r.Get("/orders/{id}", orderHandler.Get)
		r.Post("/orders/{id}/payment", orderHandler.SubmitPayment)

		// Staff-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireStaff)

			r.Get("/orders", orderHandler.ListActive)
			r.Get("/tables/status", tableHandler.FloorStatus)
			r.Patch("/orders/{id}/status", orderHandler.UpdateStatus)
			r.Delete("/orders/{id}", orderHandler.Cancel)
		})

		// Payment verification is restricted further: owners and
		// employees, never kitchen displays
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleEmployee))
			r.Post("/orders/{id}/payment/verify", orderHandler.VerifyPayment)
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
