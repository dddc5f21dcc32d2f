package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	ServerAddr      string `env:"SERVER_ADDR" envDefault:":8080"`
	AdminServerAddr string `env:"ADMIN_SERVER_ADDR" envDefault:":9091"`
	UploadDir       string `env:"UPLOAD_DIR" envDefault:"uploads"`
	StaticDir       string `env:"STATIC_DIR" envDefault:"static"`
	PresetsPath     string `env:"PRESETS_PATH" envDefault:"presets.json"`

	MaxUploadSize  int64 `env:"MAX_UPLOAD_SIZE_BYTES" envDefault:"524288000"` // 500MB
	MaxResults     int   `env:"MAX_QUERY_RESULTS" envDefault:"50000"`
	ScanChunkSize  int   `env:"SCAN_CHUNK_SIZE" envDefault:"1000"`
	TailScanDepth  int   `env:"TAIL_SCAN_DEPTH" envDefault:"1000"`
	TailBufferSize int   `env:"TAIL_BUFFER_SIZE_BYTES" envDefault:"8192"`

	SessionSecret string        `env:"SESSION_SECRET" envDefault:"dev-secret-key-change-in-production"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	// RegistryBackend selects where fingerprint and session mappings live:
	// "memory" (single process), "redis", or "postgres".
	RegistryBackend string `env:"REGISTRY_BACKEND" envDefault:"memory"`
	RedisURL        string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	PostgresURL     string `env:"POSTGRES_URL"`

	// ReconcileSchedule and FullResetSchedule are cron expressions for the
	// janitor's two maintenance tasks.
	ReconcileSchedule string `env:"RECONCILE_SCHEDULE" envDefault:"@every 1h"`
	FullResetSchedule string `env:"FULL_RESET_SCHEDULE" envDefault:"0 2 * * *"`

	// RetentionMaxAge expires session file references older than the window
	// before reconciling. Zero disables age-based expiry; reference-counted
	// eviction alone then governs file lifetime.
	RetentionMaxAge time.Duration `env:"RETENTION_MAX_AGE" envDefault:"0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
