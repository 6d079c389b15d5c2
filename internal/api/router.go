/**
 * @description
 * HTTP router setup for the FDR API using go-chi/chi.
 */

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/procura/fdr-service/internal/app"
)

// RouterConfig carries the auth and limiting settings for NewRouter.
type RouterConfig struct {
	Auth           AuthConfig
	InternalAPIKey string
	AllowedOrigins []string
	Limiter        RateLimiter
	Logger         *slog.Logger
}

// NewRouter creates a new Chi router and registers the FDR routes.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	// Cross-origin access is only granted to configured origins.
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", UserIDHeader},
			ExposedHeaders:   []string{"Link", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("FDR service is healthy"))
	})

	r.Route("/internal/fdrs", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(cfg.InternalAPIKey))
		r.Post("/maturity-sweep", h.handleMaturitySweep)
		r.Post("/expiring/notify", h.handleNotifyExpiring)
	})

	r.Route("/fdrs", func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Auth))

		r.Post("/", h.handleCreateFDR)
		r.Get("/", h.handleListFDRs)
		r.Get("/expiring", h.handleListExpiring)
		r.Post("/bulk-import", h.handleBulkImport)

		r.Group(func(r chi.Router) {
			r.Use(RateLimitMiddleware(cfg.Limiter, app.ScopeExtraction, cfg.Logger))
			r.Post("/extract/text", h.handleExtractText)
			r.Post("/extract/file", h.handleExtractFile)
		})

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetFDR)
			r.Put("/", h.handleUpdateFDR)
			r.Patch("/", h.handleUpdateFDR)
			r.Delete("/", h.handleDeleteFDR)
			r.Patch("/status", h.handleUpdateStatus)
		})
	})

	return r
}
