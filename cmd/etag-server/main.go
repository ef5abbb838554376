// Command etag-server serves documents from Redis with ETag based
// conditional responses.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/etagger/pkg/config"
	"github.com/Sternrassler/etagger/pkg/etag"
	"github.com/Sternrassler/etagger/pkg/logging"
	"github.com/Sternrassler/etagger/pkg/middleware"
	"github.com/Sternrassler/etagger/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// shutdownTimeout bounds how long in-flight requests may take to finish.
const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Log)
	logger := logging.NewLogger("server")
	logger.Info().
		Bool("etag_enabled", cfg.ETag.Enabled).
		Str("algorithm", string(cfg.ETag.Algorithm)).
		Int("route_overrides", len(cfg.Overrides)).
		Msg("Configuration loaded")

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = redisClient.Ping(pingCtx).Err()
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Str("redis", cfg.RedisAddr).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("redis", cfg.RedisAddr).Msg("Connected to Redis")

	engine, err := etag.New(cfg.ETag)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create etag engine")
	}

	router := newRouter(engine, store.New(redisClient), middleware.Options{
		Overrides: cfg.Overrides,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", server.Addr).Msg("Failed to listen")
	}

	logger.Info().Str("addr", server.Addr).Msg("Starting etag server")

	if err := run(ctx, server, ln, logger); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
	logger.Info().Msg("Server stopped")
}

// run serves on ln until ctx is done, then shuts server down and waits for
// in-flight requests to finish.
func run(ctx context.Context, server *http.Server, ln net.Listener, logger zerolog.Logger) error {
	done := make(chan struct{})
	var shutdownErr error
	go func() {
		defer close(done)
		<-ctx.Done()
		logger.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr = server.Shutdown(shutdownCtx)
	}()

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	<-done
	if shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("Shutdown failed")
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}
	return nil
}
