package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	localstore "dog-adoption-service/internal/adapters/assets/local"
	s3store "dog-adoption-service/internal/adapters/assets/s3"
	"dog-adoption-service/internal/adapters/storage/memory"
	"dog-adoption-service/internal/adapters/storage/postgres"
	"dog-adoption-service/internal/config"
	"dog-adoption-service/internal/domain/assets"
	"dog-adoption-service/internal/platform/logger"
	"dog-adoption-service/internal/ports/storage"
)

// El sweeper corre como proceso aparte: barre del ledger los assets subidos
// que nunca se asociaron a un listing ni a un request, y borra sus binarios.
func main() {
	log := logger.NewFromEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ledger assets.Ledger
	if cfg.DBDSN != "" {
		db, err := postgres.Open(cfg.DBDSN)
		if err != nil {
			log.Error("database connection failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		defer db.Close()
		ledger = postgres.NewLedgerRepo(db)
	} else {
		// Sin DB el ledger es efímero: solo tiene sentido para probar en dev.
		log.Warn("DB_DSN not set, sweeping an empty in-memory ledger", nil)
		ledger = memory.NewLedgerRepo()
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		log.Error("storage backend init failed", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	svc := assets.NewService(ledger, store, log, cfg.OrphanTTL)

	log.Info("sweeper started", map[string]any{
		"ttl":      cfg.OrphanTTL.String(),
		"interval": cfg.SweepInterval.String(),
	})
	svc.Run(ctx, cfg.SweepInterval)
	log.Info("sweeper stopped", nil)
}

func buildStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "s3":
		return s3store.New(ctx, cfg)
	default:
		return localstore.New(cfg.LocalStorageDir)
	}
}
