package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	localstore "dog-adoption-service/internal/adapters/assets/local"
	s3store "dog-adoption-service/internal/adapters/assets/s3"
	"dog-adoption-service/internal/adapters/storage/postgres"
	"dog-adoption-service/internal/config"
	"dog-adoption-service/internal/platform/logger"
	"dog-adoption-service/internal/ports/storage"
	"dog-adoption-service/internal/router"
)

func main() {
	log := logger.NewFromEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := router.Options{Log: log}

	if cfg.DBDSN != "" {
		db, err := postgres.Open(cfg.DBDSN)
		if err != nil {
			log.Error("database connection failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		defer db.Close()

		if err := postgres.Migrate(db); err != nil {
			log.Error("migrations failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		opts.DB = db
	} else {
		log.Warn("DB_DSN not set, using in-memory repositories", nil)
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("storage backend init failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	opts.Store = store
	opts.OrphanTTL = cfg.OrphanTTL

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.NewRouter(opts),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Info("server started", map[string]any{"port": cfg.Port, "storage": cfg.StorageBackend})

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info("shutting down", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", map[string]any{"error": err.Error()})
		}
	}
}

func buildStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "s3":
		return s3store.New(ctx, cfg)
	default:
		return localstore.New(cfg.LocalStorageDir)
	}
}
