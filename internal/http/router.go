package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailrag/internal/handlers"
	"mailrag/internal/service"
	"mailrag/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	RetrievalService service.RetrievalService
	VectorStore      vectorstore.VectorStore
	Chunks           handlers.ChunkCounter
	Collection       string
	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(CORS)

	retrieveHandler := handlers.NewRetrieveHandler(deps.RetrievalService)
	healthHandler := handlers.NewHealthHandler(deps.VectorStore, deps.Chunks, deps.Collection)

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)
		r.Route("/v1", func(r chi.Router) {
			r.Method(http.MethodPost, "/retrieve", retrieveHandler)
		})
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return r
}
