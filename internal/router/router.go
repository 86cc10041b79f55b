package router

import (
	"log"
	"net/http"

	"github.com/cheche-app/api/internal/auth"
	"github.com/cheche-app/api/internal/config"
	"github.com/cheche-app/api/internal/database"
	"github.com/cheche-app/api/internal/enum"
	"github.com/cheche-app/api/internal/handler"
	mw "github.com/cheche-app/api/internal/middleware"
	"github.com/cheche-app/api/internal/observability/metrics"
	"github.com/cheche-app/api/internal/service"
	"github.com/cheche-app/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, branch scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, rdb *redis.Client, hub *ws.Hub, httpMetrics *metrics.HTTPMetrics) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if httpMetrics != nil {
		r.Use(httpMetrics.Middleware)
	}

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Auth routes (public)
	otpStore := auth.NewOTPStore(rdb)
	authHandler := handler.NewAuthHandler(queries, otpStore, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket queue feed (handles auth internally via query param)
	r.Get("/ws/branches/{bid}/queue", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	reservationService := service.NewReservationService(
		queries,
		pool,
		func(db database.DBTX) service.ReservationStore {
			return database.New(db)
		},
		rdb,
	)

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Organizations: readable by any authenticated user (feeds the
		// booking flow's picker); writes are superadmin only.
		orgHandler := handler.NewOrganizationHandler(queries)
		r.Get("/organizations", orgHandler.List)
		r.Get("/organizations/{oid}", orgHandler.Get)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleSuperadmin))
			r.Post("/organizations", orgHandler.Create)
			r.Put("/organizations/{oid}", orgHandler.Update)
			r.Delete("/organizations/{oid}", orgHandler.Delete)
		})

		// Branches under an organization.
		branchHandler := handler.NewBranchHandler(queries)
		r.Get("/organizations/{oid}/branches", branchHandler.List)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleSuperadmin, enum.RoleOrganizationManager))
			r.Post("/organizations/{oid}/branches", branchHandler.Create)
			r.Put("/organizations/{oid}/branches/{bid}", branchHandler.Update)
			r.Delete("/organizations/{oid}/branches/{bid}", branchHandler.Delete)
		})

		// Cross-branch reporting.
		reportHandler := handler.NewReportHandler(queries)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleSuperadmin, enum.RoleOrganizationManager))
			r.Get("/reports/branch-comparison", reportHandler.BranchComparison)
		})

		// Branch-scoped routes.
		r.Route("/branches/{bid}", func(r chi.Router) {
			r.Use(mw.RequireBranch)

			r.Get("/", branchHandler.Get)

			// Services
			serviceHandler := handler.NewServiceHandler(queries)
			r.Route("/services", func(r chi.Router) {
				r.Get("/", serviceHandler.List)
				r.Get("/{id}", serviceHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireRole(enum.RoleBranchManager))
					r.Post("/", serviceHandler.Create)
					r.Put("/{id}", serviceHandler.Update)
					r.Delete("/{id}", serviceHandler.Delete)
				})
			})

			// Availability + reservations. The role gates live in
			// RegisterRoutes so tests exercise the same wiring.
			reservationHandler := handler.NewReservationHandler(reservationService, queries, httpMetrics)
			r.Get("/availability", reservationHandler.Availability)
			r.Route("/reservations", func(r chi.Router) {
				reservationHandler.RegisterRoutes(r)

				// Payments (nested under reservations)
				r.Route("/{id}/payments", func(r chi.Router) {
					r.Use(mw.RequireRole(enum.RoleAdministrator, enum.RoleBranchManager))
					paymentHandler := handler.NewPaymentHandler(queries)
					paymentHandler.RegisterRoutes(r)
				})
			})

			// Reviews
			reviewHandler := handler.NewReviewHandler(queries)
			r.Route("/reviews", func(r chi.Router) {
				r.Get("/", reviewHandler.List)
				r.Post("/", reviewHandler.Create)
				r.With(mw.RequireRole(enum.RoleBranchManager)).
					Put("/{id}/status", reviewHandler.UpdateStatus)
			})

			// Walk-in queue
			queueHandler := handler.NewQueueHandler(queries, hub)
			r.Route("/queue", func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleRestaurantOfficer, enum.RoleFieldAgent, enum.RoleBranchManager))
				queueHandler.RegisterRoutes(r)
			})

			// Branch reports
			r.Route("/reports", func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleBranchManager, enum.RoleAdministrator))
				reportHandler.RegisterRoutes(r)
			})

			// Staff
			userHandler := handler.NewUserHandler(queries)
			r.Route("/users", func(r chi.Router) {
				r.Use(mw.RequireRole(enum.RoleBranchManager, enum.RoleAdministrator))
				userHandler.RegisterRoutes(r)
			})
		})
	})

	log.Println("Router initialized with all handlers")
	return r
}
