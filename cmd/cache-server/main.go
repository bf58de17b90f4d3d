// Command cache-server serves the cache API on top of Redis or bbolt.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Sternrassler/zato-cache-client/pkg/cacheapi"
	"github.com/Sternrassler/zato-cache-client/pkg/logging"
	"github.com/Sternrassler/zato-cache-client/pkg/metrics"
	"github.com/Sternrassler/zato-cache-client/pkg/server"
	"github.com/Sternrassler/zato-cache-client/pkg/store"
	"github.com/rs/zerolog/log"
)

type config struct {
	Port     string
	Password string
	Store    store.Config
	Logging  logging.Config
}

func loadConfig(getenv func(string) string) config {
	defaults := store.DefaultConfig()
	return config{
		Port:     getEnv(getenv, "PORT", "17010"),
		Password: getenv("CACHE_PASSWORD"),
		Store: store.Config{
			Backend:  getEnv(getenv, "CACHE_BACKEND", defaults.Backend),
			RedisURL: getEnv(getenv, "REDIS_URL", defaults.RedisURL),
			BoltPath: getEnv(getenv, "BOLT_PATH", defaults.BoltPath),
		},
		Logging: logging.FromEnv(),
	}
}

func main() {
	cfg := loadConfig(os.Getenv)
	logging.Setup(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Cache server failed")
	}
}

func run(ctx context.Context, cfg config) error {
	s, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	log.Info().
		Str("backend", cfg.Store.Backend).
		Bool("auth", cfg.Password != "").
		Msg("Store ready")

	srvCfg := server.DefaultConfig()
	srvCfg.Password = cfg.Password

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newMux(s, srvCfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Starting cache server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down cache server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newMux(s store.Store, cfg server.Config) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle(cacheapi.PathPrefix, server.New(s, cfg))
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func getEnv(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}
