// Package server constructs and starts the GoRelay HTTP service with helpers
// that apply sensible production defaults.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// CreateServer creates and configures an HTTP server with the specified port and handler.
// It sets reasonable timeout values for production use.
func CreateServer(port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// StartServer starts the HTTP server and blocks until it stops. A server
// stopped through Shutdown returns nil.
func (a *App) StartServer(server *http.Server) error {
	a.log.Info("server listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting HTTP requests, then closes every relay connection
// and waits for their loops to finish. Hijacked WebSocket connections are not
// tracked by http.Server, so the registry drains them itself.
func (a *App) Shutdown(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	a.log.Info("shutting down http server")
	var errs []error
	if err := server.Shutdown(ctx); err != nil {
		a.log.Error("http server shutdown", "err", err)
		errs = append(errs, err)
	}

	a.log.Info("shutting down registry")
	if err := a.registry.Shutdown(ctx); err != nil {
		a.log.Warn("registry shutdown timed out; some connections may still be open", "err", err)
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		a.log.Info("shutdown completed")
	}
	return errors.Join(errs...)
}
