package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes registers the read-only endpoints under /api/v1
func SetupRoutes(router *mux.Router, handlers *Handlers) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)
	api.HandleFunc("/lambdas", handlers.GetLambdas).Methods(http.MethodGet)
	api.HandleFunc("/replicas", handlers.GetReplicas).Methods(http.MethodGet)
	api.HandleFunc("/stats", handlers.GetStats).Methods(http.MethodGet)

	nodes := api.PathPrefix("/nodes").Subrouter()
	nodes.HandleFunc("", handlers.ListNodes).Methods(http.MethodGet)
	nodes.HandleFunc("/{nodeId}", handlers.GetNode).Methods(http.MethodGet)
}

// NewHandler builds the full middleware stack around the routes
func NewHandler(handlers *Handlers, origins []string) http.Handler {
	router := mux.NewRouter()
	SetupRoutes(router, handlers)

	router.Use(LoggingMiddleware)
	router.Use(RecoveryMiddleware)

	return CORS(router, origins)
}
