/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the contract/installment server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env + environment, see package config)
  2. Build the zap logger
  3. Open the store selected by STORE_BACKEND and wrap it with metrics
  4. Create the engine, API handler and router
  5. Start the renewal watcher
  6. Start server with graceful shutdown

BACKENDS:
  sqlite     SQLITE_PATH (":memory:" allowed)
  postgres   DATABASE_URL, pgx connection pool
  postgrest  SUPABASE_URL + SUPABASE_KEY, no transactions (compensation instead)
  memory     volatile, for demos and tests

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the renewal watcher
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the store
  5. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment variables
*/
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/parcelas/api"
	"github.com/warp/parcelas/config"
	"github.com/warp/parcelas/logger"
	"github.com/warp/parcelas/metrics"
	"github.com/warp/parcelas/parcelas"
	"github.com/warp/parcelas/store/postgres"
	"github.com/warp/parcelas/store/postgrest"
	"github.com/warp/parcelas/store/sqlite"
	"github.com/warp/parcelas/table"
	"github.com/warp/parcelas/table/memory"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zlog, err := logger.New(logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: config.ServiceName,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()
	zlog.Info("starting", cfg.LogFields()...)

	// Initialize store
	store, closer, err := openStore(context.Background(), cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to initialize store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer closer.Close()

	m := metrics.New()
	engine := parcelas.NewEngine(m.InstrumentStore(store, cfg.Store.Backend), parcelas.Options{
		CacheTTL:     cfg.CacheTTL,
		Logger:       zlog.Named("engine"),
		Recorder:     m,
		OnCacheEvent: m.CacheEvent,
	})

	watcher := api.NewRenewalWatcher(engine, m, zlog.Named("renewals"))
	watcher.CheckInterval = cfg.RenewalCheckInterval
	watcher.Enabled = cfg.RenewalCheckInterval > 0
	watcher.Start()

	router := api.NewRouter(api.NewHandler(engine), api.RouterOptions{
		Log:            zlog,
		CORSOrigins:    cfg.Server.CORSOrigins,
		RequestTimeout: cfg.Store.Timeout,
		Metrics:        m,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second + cfg.Store.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		zlog.Info("server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zlog.Info("shutting down server")
	watcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zlog.Error("server forced to shutdown", zap.Error(err))
	}

	zlog.Info("server stopped")
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openStore builds the backend named by cfg.Store.Backend.
func openStore(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (table.Store, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pgCfg := postgres.DefaultConfig(cfg.Store.DatabaseURL)
		pgCfg.MaxConns = int32(cfg.Store.MaxConns)
		s, err := postgres.Open(ctx, pgCfg, zlog.Named("postgres"))
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.BackendPostgREST:
		return postgrest.New(cfg.Store.SupabaseURL, cfg.Store.SupabaseKey, cfg.Store.Timeout), nopCloser{}, nil
	case config.BackendMemory:
		zlog.Warn("using the in-memory store: data is lost on exit")
		return memory.NewTxMemory(), nopCloser{}, nil
	default:
		s, err := sqlite.New(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	}
}
