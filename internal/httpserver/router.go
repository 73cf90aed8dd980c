package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"cropscan-gateway/internal/handlers"
	"cropscan-gateway/internal/metrics"
	"cropscan-gateway/internal/middleware"
	"cropscan-gateway/internal/ratelimit"
)

// SetupRouter wires middleware and routes. The rate limiter only guards
// the /v1 API surface; health and metrics stay reachable.
func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, h *handlers.Handler, limiter *ratelimit.Limiter, allowedOrigins []string) {
	r.Use(metrics.Middleware)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())

	// The browser frontend calls this API directly.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Client-ID"},
		MaxAge:         300,
	}))

	// Analysis calls two providers back to back; the budget covers both
	// plus one fallback each.
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(middleware.MaxBodySize(16 * 1024 * 1024)) // two base64 images

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(limiter))

		r.Post("/analyze", h.Analyze)
		r.Post("/ask", h.Ask)
		r.Post("/feedback", h.Feedback)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
