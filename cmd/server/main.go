package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/Tyrowin/gorelay/internal/metrics"
	"github.com/Tyrowin/gorelay/internal/relay"
	"github.com/Tyrowin/gorelay/internal/server"
)

func main() {
	// Local .env is optional; real deployments set the environment directly.
	envErr := godotenv.Load()

	config := server.NewConfigFromEnv().Sanitize()
	logger := server.NewLogger(os.Stdout, config.LogLevel, config.LogFormat)
	if envErr != nil {
		logger.Debug("no .env file loaded", "err", envErr)
	}

	m := metrics.New()
	registry := relay.New(relay.WithLogger(logger), relay.WithObserver(m))
	m.Track(registry)

	app := server.NewApp(config, registry, m, logger)
	httpServer := server.CreateServer(config.Port, server.SetupRoutes(app))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- app.StartServer(httpServer)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
		return
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	if err := app.Shutdown(httpServer, config.ShutdownTimeout); err != nil {
		logger.Error("graceful shutdown incomplete", "err", err)
		os.Exit(1)
	}
}
