package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jadewok-pos/api/internal/config"
	"github.com/jadewok-pos/api/internal/database"
	"github.com/jadewok-pos/api/internal/handler"
	"github.com/jadewok-pos/api/internal/menu"
	mw "github.com/jadewok-pos/api/internal/middleware"
	"github.com/jadewok-pos/api/internal/pricing"
	"github.com/jadewok-pos/api/internal/service"
	"github.com/jadewok-pos/api/internal/ws"
)

// New creates a Chi router with all application routes wired up. Order
// creation is gated by the voice agent API key; status changes and
// refunds require staff JWTs; the menu and payment page endpoints are
// public.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, catalog *menu.Catalog, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			cfg.CORSOrigin,
			"http://localhost:5173", // dashboard dev server
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{ //nolint:errcheck
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"websocket": map[string]interface{}{
				"connected_clients": hub.ClientCount(),
				"server_running":    true,
			},
		})
	})

	authHandler := handler.NewAuthHandler(cfg.JWTSecret, cfg.StaffPasscodeHash, cfg.ManagerPasscodeHash)
	r.Post("/api/auth/login", authHandler.Login)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/orders", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, req)
	})

	menuHandler := handler.NewMenuHandler(catalog)
	r.Route("/api/menu", menuHandler.RegisterRoutes)

	pricer := pricing.New(catalog)
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, queries, newOrderStore, pricer)
	orderHandler := handler.NewOrderHandler(orderService, queries, hub, cfg.CORSOrigin)

	r.Route("/api/orders", func(r chi.Router) {
		orderHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(mw.RequireAPIKey(cfg.APIKey))
			orderHandler.RegisterIntakeRoutes(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			orderHandler.RegisterProtectedRoutes(r)
		})
	})

	newPaymentStore := func(db database.DBTX) service.PaymentStore {
		return database.New(db)
	}
	paymentService := service.NewPaymentService(pool, queries, newPaymentStore)
	paymentHandler := handler.NewPaymentHandler(paymentService, hub)

	r.Route("/api/payments", func(r chi.Router) {
		paymentHandler.RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole("manager"))
			paymentHandler.RegisterProtectedRoutes(r)
		})
	})

	return r
}
