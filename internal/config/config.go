package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config agrupa toda la configuración del servicio.
type Config struct {
	Port   string `env:"PORT" envDefault:"8080"`
	DBDSN  string `env:"DB_DSN"` // vacío = repos in-memory (modo dev)
	AppEnv string `env:"APP_ENV" envDefault:"dev"`

	// local | s3
	StorageBackend  string `env:"STORAGE_BACKEND" envDefault:"local"`
	LocalStorageDir string `env:"LOCAL_STORAGE_DIR" envDefault:"./uploads"`

	S3Endpoint     string `env:"S3_ENDPOINT"`
	S3Region       string `env:"S3_REGION"`
	S3AccessKeyID  string `env:"S3_ACCESS_KEY_ID"`
	S3SecretKey    string `env:"S3_SECRET_ACCESS_KEY"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3PublicURL    string `env:"S3_PUBLIC_URL"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE" envDefault:"true"`

	// Orphan sweeper
	OrphanTTL     time.Duration `env:"ORPHAN_TTL" envDefault:"3h"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"15m"`
}

// Load carga la configuración desde el entorno. En dev intenta primero
// un archivo .env si existe.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); !os.IsNotExist(err) {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("loading .env: %w", err)
		}
	}

	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing env config: %w", err)
	}

	if cfg.StorageBackend != "local" && cfg.StorageBackend != "s3" {
		return nil, fmt.Errorf("STORAGE_BACKEND must be local or s3, got %q", cfg.StorageBackend)
	}
	if cfg.StorageBackend == "s3" {
		if cfg.S3Bucket == "" || cfg.S3Region == "" {
			return nil, fmt.Errorf("S3_BUCKET and S3_REGION are required for the s3 backend")
		}
	}

	return &cfg, nil
}
