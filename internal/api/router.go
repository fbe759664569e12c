package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mariachi-loyalty/dispatch/internal/api/handler"
	apimw "github.com/mariachi-loyalty/dispatch/internal/api/middleware"
	"github.com/mariachi-loyalty/dispatch/internal/batch"
	"github.com/mariachi-loyalty/dispatch/internal/queue"
)

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. The surface is deliberately thin: batch submission plus
// operational introspection — the dispatch core is driven by the queues,
// not by HTTP.
func NewRouter(
	broker *queue.Broker,
	tracker *batch.Tracker,
	reg prometheus.Gatherer,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RealIP)             // trust X-Forwarded-For / X-Real-IP
	r.Use(chimw.RequestSize(1<<20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	bh := handler.NewBatchHandler(broker, tracker, logger)
	qh := handler.NewQueuesHandler(broker)
	hh := handler.NewHealthHandler()

	// --- routes ---
	r.Get("/health", hh.Health)

	// Raw Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/queues", qh.Depths)

		// Tenant-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireTenant)
			r.Post("/batches", bh.Submit)
			r.Get("/batches/{id}", bh.Progress)
		})
	})

	return r
}
