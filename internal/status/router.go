package status

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/drheny/cab-sub000/internal/sync"
)

// NewRouter creates and configures the status server router.
func NewRouter(logger zerolog.Logger, engine *sync.Engine) *chi.Mux {
	r := chi.NewRouter()

	r.Use(recordMetrics)
	r.Use(requestLogger(logger))
	r.Use(chimw.Recoverer)

	// The clinic UI shell polls this from the browser on another port.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	h := NewHandler(engine)

	r.Get("/healthz", h.Health)
	r.Get("/stats", h.Stats)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
