package router

import (
	"database/sql"
	"net/http"
	"os"
	"time"

	memassets "dog-adoption-service/internal/adapters/assets/memory"
	mem "dog-adoption-service/internal/adapters/storage/memory"
	pg "dog-adoption-service/internal/adapters/storage/postgres"
	"dog-adoption-service/internal/domain/assets"
	"dog-adoption-service/internal/domain/listings"
	"dog-adoption-service/internal/domain/requests"
	"dog-adoption-service/internal/middleware"
	"dog-adoption-service/internal/platform/logger"
	"dog-adoption-service/internal/platform/txn"
	"dog-adoption-service/internal/ports/auth"
	"dog-adoption-service/internal/ports/storage"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)

	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcional: backend de binarios. Si no viene, in-memory (solo dev/tests).
	Store storage.Store

	Log logger.Logger

	// TTL de assets huérfanos para el sweeper embebido.
	OrphanTTL time.Duration
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	log := opts.Log
	if log == nil {
		log = logger.NewFromEnv()
	}

	store := opts.Store
	if store == nil {
		store = memassets.New()
	}

	ttl := opts.OrphanTTL
	if ttl == 0 {
		ttl = 3 * time.Hour
	}

	var (
		listingRepo listings.Repository
		requestRepo requests.Repository
		ledgerRepo  assets.Ledger
		runner      txn.Runner
	)

	// Si no te pasan DB explícita, intenta por env (para dev/handoff)
	db := opts.DB
	if db == nil {
		if dsn := os.Getenv("DB_DSN"); dsn != "" {
			opened, err := pg.Open(dsn)
			if err == nil {
				db = opened
			}
		}
	}

	if db != nil {
		listingRepo = pg.NewListingsRepo(db)
		requestRepo = pg.NewRequestsRepo(db)
		ledgerRepo = pg.NewLedgerRepo(db)
		runner = pg.NewTxRunner(db, log)
	} else {
		listingRepo = mem.NewListingRepo()
		requestRepo = mem.NewRequestRepo()
		ledgerRepo = mem.NewLedgerRepo()
		runner = txn.Passthrough{Log: log}
	}

	// Services por módulo
	assetsSvc := assets.NewService(ledgerRepo, store, log, ttl)
	listingsSvc := listings.NewService(listingRepo, ledgerRepo, store, runner)
	requestsSvc := requests.NewService(requestRepo, listingRepo, store, runner, log)

	// Rutas por módulo
	listings.RegisterPublicRoutes(r, listingsSvc)
	listings.RegisterRoutes(r, listingsSvc)

	requests.RegisterRoutes(r, requestsSvc)

	assets.RegisterPublicRoutes(r, assetsSvc)
	assets.RegisterRoutes(r, assetsSvc)

	return r
}
