package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/casafield/leadpipe/internal/access"
	"github.com/casafield/leadpipe/internal/api/handlers"
	"github.com/casafield/leadpipe/internal/api/middleware"
	"github.com/casafield/leadpipe/internal/audit"
	"github.com/casafield/leadpipe/internal/auth"
	"github.com/casafield/leadpipe/internal/exports"
	"github.com/casafield/leadpipe/internal/leads"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	Checker        *access.Checker
	Recorder       *audit.Recorder
	AuditService   *audit.Service
	AsynqClient    *asynq.Client
	Inspector      *asynq.Inspector
	ExportDir      string
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow localhost in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize services
	leadService := leads.NewService(leads.NewRepository(cfg.DB), cfg.Recorder, cfg.Logger)
	exportService := exports.NewService(cfg.DB, leadService, cfg.Recorder, cfg.ExportDir, cfg.Logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	leadHandler := handlers.NewLeadHandler(leadService, exportService)
	userHandler := handlers.NewUserHandler(cfg.DB, cfg.AuthService, cfg.Recorder, cfg.AsynqClient, cfg.Logger)
	auditHandler := handlers.NewAuditHandler(cfg.AuditService)
	exportHandler := handlers.NewExportHandler(exportService, cfg.AsynqClient, cfg.Logger)
	systemHandler := handlers.NewSystemHandler(cfg.Inspector)

	requires := func(permission string) func(http.Handler) http.Handler {
		return middleware.RequirePermission(cfg.Checker, cfg.Recorder, permission)
	}

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/google", authHandler.GoogleLogin)
		r.Post("/auth/logout", authHandler.Logout)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTService))

			r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
				userID := middleware.GetUserID(r.Context())
				user, err := cfg.AuthService.GetUserByID(r.Context(), userID)
				if err != nil {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "User not found"})
					return
				}
				writeJSON(w, http.StatusOK, user)
			})

			// Leads endpoints
			r.Route("/leads", func(r chi.Router) {
				r.With(requires(access.PermLeadsRead)).Get("/", leadHandler.List)
				r.With(requires(access.PermLeadsCreate)).Post("/", leadHandler.Create)
				r.With(requires(access.PermPipelineRead)).Get("/pipeline", leadHandler.Pipeline)
				r.With(requires(access.PermLeadsImport)).Post("/import", leadHandler.Import)

				r.Route("/{id}", func(r chi.Router) {
					r.With(requires(access.PermLeadsRead)).Get("/", leadHandler.Get)
					r.With(requires(access.PermLeadsUpdate)).Put("/", leadHandler.Update)
					r.With(requires(access.PermLeadsDelete)).Delete("/", leadHandler.Delete)
					r.With(requires(access.PermLeadsUpdate)).Put("/status", leadHandler.SetStatus)
					r.With(requires(access.PermLeadsAssign)).Put("/assign", leadHandler.Assign)
					r.With(requires(access.PermLeadsUpdate)).Post("/tags", leadHandler.AddTag)
					r.With(requires(access.PermLeadsUpdate)).Delete("/tags/{tag}", leadHandler.RemoveTag)
					r.With(requires(access.PermLeadsUpdate)).Post("/contact", leadHandler.RecordContact)
				})
			})

			// Users endpoints
			r.Route("/users", func(r chi.Router) {
				r.With(requires(access.PermUsersRead)).Get("/", userHandler.List)
				r.With(requires(access.PermUsersCreate)).Post("/", userHandler.Create)
				r.With(requires(access.PermUsersUpdate)).Put("/{id}/role", userHandler.ChangeRole)
				r.With(requires(access.PermUsersDelete)).Delete("/{id}", userHandler.Delete)
			})

			// Audit endpoints
			r.Route("/audit", func(r chi.Router) {
				r.Use(requires(access.PermAuditRead))
				r.Get("/", auditHandler.List)
				r.Get("/stats", auditHandler.Stats)
			})

			// Exports endpoints
			r.Route("/exports", func(r chi.Router) {
				r.Use(requires(access.PermLeadsExport))
				r.Post("/", exportHandler.Create)
				r.Get("/{id}", exportHandler.Get)
				r.Get("/{id}/download", exportHandler.Download)
			})

			// Analytics endpoints
			r.With(requires(access.PermAnalyticsRead)).Get("/analytics/summary", leadHandler.Analytics)

			// Background queue visibility for admins
			r.With(requires(access.PermAuditRead)).Get("/system/queues", systemHandler.Queues)
		})
	})

	return &Router{r}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
