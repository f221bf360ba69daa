// Package server wires HTTP handlers into a router for the GoRelay
// application via routing helpers.
package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// SetupRoutes configures the application routes and wraps them in the
// configured CORS policy.
func SetupRoutes(app *App) http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws", app.WebSocketHandler)
	router.HandleFunc("/stats", app.StatsHandler).Methods(http.MethodGet)
	if app.metrics != nil {
		router.Handle("/metrics", app.metrics.Handler()).Methods(http.MethodGet)
	}
	router.HandleFunc("/test", TestPageHandler).Methods(http.MethodGet)
	router.HandleFunc("/", HealthHandler)

	c := cors.New(cors.Options{
		AllowedOrigins: app.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	})
	return c.Handler(router)
}
