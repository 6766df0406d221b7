package api

import (
	"net/http"

	"go.uber.org/zap"

	"route-dispatch-service/internal/api/handlers"
	"route-dispatch-service/internal/ports"
	"route-dispatch-service/internal/services"
)

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(repo ports.RoundRepository, engine *services.Engine, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	roundHandler := &handlers.RoundHandler{Repo: repo, Engine: engine, Logger: logger}
	dispatchHandler := &handlers.DispatchHandler{Repo: repo, Engine: engine, Logger: logger}
	providerHandler := &handlers.ProviderHandler{Engine: engine, Logger: logger}

	mux.HandleFunc("/health", handlers.Health(logger))
	mux.HandleFunc("/provider/health", providerHandler.Health)
	mux.HandleFunc("/provider/route-live", providerHandler.RouteLive)
	mux.HandleFunc("/rounds/recompute", roundHandler.Recompute)
	mux.HandleFunc("/rounds/optimize", roundHandler.Optimize)
	mux.HandleFunc("/dispatch", dispatchHandler.Dispatch)

	return loggingMiddleware(logger, mux)
}
