package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/tablemate/tablemate/internal/middleware"
)

// RouterConfig wires handlers and middleware into a router.
type RouterConfig struct {
	Logger *slog.Logger

	Health  *HealthHandler
	Metrics *MetricsHandler
	Auth    *AuthHandler
	Users   *UserHandler
	Meals   *MealHandler
	Events  *EventHandler
	Admin   *AdminHandler

	AuthConfig      middleware.AuthConfig
	RateLimitConfig middleware.RateLimitConfig
	CORSConfig      middleware.CORSConfig
	SecurityConfig  middleware.SecurityConfig
	AdminUserIDs    []string
	MaxBodySize     int64

	// MediaDir, when set, is served under /media/.
	MediaDir string
}

// NewRouter configures the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	h := New()
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.Security(cfg.SecurityConfig))
	r.Use(middleware.CORS(cfg.CORSConfig))
	if cfg.MaxBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.MaxBodySize))
	}

	// Probes and metrics (no auth required)
	r.Get("/", h.Info)
	r.Get("/healthz", cfg.Health.Healthz)
	r.Get("/readyz", cfg.Health.Readyz)
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Metrics)
	}
	if cfg.MediaDir != "" {
		r.Handle("/media/*", mediaFiles(cfg.MediaDir))
	}

	requireAuth := middleware.Auth(cfg.AuthConfig)
	limitUser := middleware.RateLimitUser(cfg.RateLimitConfig)
	limitIP := middleware.RateLimitIP(cfg.RateLimitConfig)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limitIP).Post("/register", cfg.Auth.Register)
			r.With(limitIP).Post("/login", cfg.Auth.Login)
			r.With(requireAuth).Post("/logout", cfg.Auth.Logout)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/search", cfg.Users.Search)
			r.Get("/{id}", cfg.Users.Get)
			r.Get("/{id}/events", cfg.Users.Events)
			r.Get("/{id}/meals", cfg.Users.Meals)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, limitUser)
				r.Patch("/{id}", cfg.Users.Update)
				r.Post("/{id}/avatar", cfg.Users.UploadAvatar)
			})
		})

		r.Route("/meals", func(r chi.Router) {
			r.Get("/{id}", cfg.Meals.Get)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, limitUser)
				r.Post("/", cfg.Meals.Create)
				r.Patch("/{id}", cfg.Meals.Update)
				r.Delete("/{id}", cfg.Meals.Delete)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", cfg.Events.List)
			r.Get("/{id}", cfg.Events.Get)
			r.Get("/{id}/participants", cfg.Events.Participants)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth, limitUser)
				r.Post("/", cfg.Events.Create)
				r.Get("/me", cfg.Events.Hosted)
				r.Get("/me/joined", cfg.Events.Joined)
				r.Post("/join", cfg.Events.JoinByBody)
				r.Patch("/{id}", cfg.Events.Update)
				r.Delete("/{id}", cfg.Events.Delete)
				r.Post("/{id}/join", cfg.Events.Join)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, middleware.RequireAdmin(cfg.Logger, cfg.AdminUserIDs))
			r.Post("/reconcile", cfg.Admin.Reconcile)
		})
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}

// mediaFiles serves uploaded images. They are embedded by other origins,
// so the same-origin resource policy set globally is relaxed here.
func mediaFiles(dir string) http.Handler {
	files := http.StripPrefix("/media/", http.FileServer(http.Dir(dir)))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Resource-Policy", "cross-origin")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		files.ServeHTTP(w, r)
	})
}
