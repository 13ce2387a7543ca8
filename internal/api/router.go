package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/starford/recipebox/internal/recipeservice"
)

// RouterConfig tunes the HTTP surface.
type RouterConfig struct {
	// AllowedOrigin, when non-empty, is the only origin granted CORS access.
	AllowedOrigin string
	// RateLimit is the sustained mutating requests per second; 0 disables limiting.
	RateLimit float64
	RateBurst int
	// MaxUploadBytes caps POST /recipes bodies; 0 means no cap.
	MaxUploadBytes int64
	// Events, if non-nil, is mounted at GET /events.
	Events http.Handler
}

// NewRouter creates a chi router with all recipe routes mounted.
func NewRouter(svc *recipeservice.Service, cfg RouterConfig) chi.Router {
	h := NewHandler(svc, cfg.MaxUploadBytes)

	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	if cfg.AllowedOrigin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{cfg.AllowedOrigin},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/recipes", h.ListRecipes)
	r.Get("/uploads/{filename}", h.ServeUpload)

	r.Group(func(r chi.Router) {
		if cfg.RateLimit > 0 {
			burst := cfg.RateBurst
			if burst <= 0 {
				burst = 1
			}
			r.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)))
		}
		r.Post("/recipes", h.UpsertRecipe)
		r.Post("/recipes/delete", h.DeleteRecipe)
		r.Post("/recipes/copy", h.CopyRecipe)
	})

	if cfg.Events != nil {
		r.Get("/events", cfg.Events.ServeHTTP)
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}
