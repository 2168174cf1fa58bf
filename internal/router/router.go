package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	adminhandler "github.com/supermandi/api/internal/admin/handler"
	"github.com/supermandi/api/internal/auth"
	"github.com/supermandi/api/internal/config"
	"github.com/supermandi/api/internal/database"
	"github.com/supermandi/api/internal/handler"
	mw "github.com/supermandi/api/internal/middleware"
	"github.com/supermandi/api/internal/service"
	"github.com/supermandi/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Device endpoints live under /api/v1/pos behind token auth; the
// operator surface lives under /api/v1/admin.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "x-device-token", "x-admin-token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/stores/{storeId}/events", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.WSTicketSecret, w, r)
	})

	adminVerifier, err := auth.NewAdminVerifier(cfg.AdminToken)
	if err != nil {
		// Serve the admin surface as disabled rather than refusing to boot.
		log.Printf("ERROR: admin verifier: %v", err)
		adminVerifier, _ = auth.NewAdminVerifier("")
	}

	// POS device routes
	r.Route("/api/v1/pos", func(r chi.Router) {
		// Enrollment (public, rate-limited per IP)
		r.Group(func(r chi.Router) {
			r.Use(mw.RateLimit(cfg.EnrollRateLimit, cfg.EnrollRateWindow, "enrollment_rate_limited"))
			enrollHandler := handler.NewEnrollHandler(pool, func(db database.DBTX) handler.EnrollStore {
				return database.New(db)
			})
			enrollHandler.RegisterRoutes(r)
		})

		deviceHandler := handler.NewDeviceHandler(queries)

		// Status endpoints tolerate unbound or inactive devices
		r.Group(func(r chi.Router) {
			r.Use(mw.DeviceStatus(queries))
			deviceHandler.RegisterStatusRoutes(r)
		})

		// Everything else requires an active, store-bound device
		r.Group(func(r chi.Router) {
			r.Use(mw.DeviceAuth(queries))

			deviceHandler.RegisterRoutes(r)

			scanService := service.NewScanService(pool, func(db database.DBTX) service.ScanStore {
				return database.New(db)
			})
			scanHandler := handler.NewScanHandler(
				scanService,
				pool,
				func(db database.DBTX) handler.PriceStore {
					return database.New(db)
				},
				hub,
			)
			scanHandler.RegisterRoutes(r)

			saleService := service.NewSaleService(pool, func(db database.DBTX) service.SaleStore {
				return database.New(db)
			})
			saleHandler := handler.NewSaleHandler(saleService, hub)
			saleHandler.RegisterRoutes(r)

			paymentHandler := handler.NewPaymentHandler(saleService, hub)
			paymentHandler.RegisterRoutes(r)

			billHandler := handler.NewBillHandler(queries)
			billHandler.RegisterRoutes(r)

			purchaseService := service.NewPurchaseService(pool, func(db database.DBTX) service.PurchaseStore {
				return database.New(db)
			})
			purchaseHandler := handler.NewPurchaseHandler(purchaseService, hub)
			purchaseHandler.RegisterRoutes(r)

			syncService := service.NewSyncService(pool, func(db database.DBTX) service.SyncStore {
				return database.New(db)
			})
			syncHandler := handler.NewSyncHandler(syncService, queries)
			syncHandler.RegisterRoutes(r)
		})
	})

	// Admin routes
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(mw.AdminAuth(adminVerifier))

		storeHandler := adminhandler.NewStoreHandler(queries)
		storeHandler.RegisterRoutes(r)

		adminDeviceHandler := adminhandler.NewDeviceHandler(queries)
		adminDeviceHandler.RegisterRoutes(r)

		inventoryHandler := adminhandler.NewInventoryHandler(queries)
		inventoryHandler.RegisterRoutes(r)

		dashboardHandler := adminhandler.NewDashboardHandler(queries)
		dashboardHandler.RegisterRoutes(r)

		ticketHandler := adminhandler.NewTicketHandler(queries, cfg.WSTicketSecret)
		ticketHandler.RegisterRoutes(r)
	})

	log.Println("Router initialized with all handlers")
	return r
}
