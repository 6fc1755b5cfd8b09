// Package config reads the service settings from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=8000"`
	// GoEnv is "production" or anything else for development.
	GoEnv string `env:"GO_ENV,default=development"`

	StorageDriver    string `env:"STORAGE_DRIVER,default=postgres"`
	DatabaseUser     string `env:"DATABASE_USER,default=postgres"`
	DatabasePassword string `env:"DATABASE_PASSWORD"`
	DatabaseHost     string `env:"DATABASE_HOST,default=localhost"`
	DatabasePort     int    `env:"DATABASE_PORT,default=5432"`
	DatabaseName     string `env:"DATABASE_NAME,default=mychat"`
	DatabaseSSLMode  string `env:"DATABASE_SSLMODE,default=disable"`
	// DatabaseDSN overrides the individual DATABASE_* settings when set.
	DatabaseDSN string `env:"DATABASE_DSN"`

	RedisAddr     string        `env:"REDIS_ADDR"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB,default=0"`
	PresenceTTL   time.Duration `env:"PRESENCE_TTL,default=2m"`

	BotToken        string        `env:"BOT_TOKEN"`
	NotifyTimeout   time.Duration `env:"NOTIFY_TIMEOUT,default=15s"`
	NotifyWorkers   int           `env:"NOTIFY_WORKERS,default=8"`
	NotifyQueueSize int           `env:"NOTIFY_QUEUE_SIZE,default=256"`
	NotifyLanguage  string        `env:"NOTIFY_LANGUAGE,default=ru"`

	JWTSecret    string        `env:"JWT_SECRET"`
	TokenTTL     time.Duration `env:"TOKEN_TTL,default=72h"`
	BcryptCost   int           `env:"BCRYPT_COST,default=10"`
	UserCacheTTL time.Duration `env:"USER_CACHE_TTL,default=30s"`
	StrictSender bool          `env:"STRICT_SENDER,default=false"`
	// LinkSecret enables PATCH /update_telegram_id for callers sending it in X-Link-Secret.
	LinkSecret string `env:"LINK_SECRET"`

	LogLevel    string `env:"LOG_LEVEL,default=info"`
	LogFilePath string `env:"LOG_FILE_PATH,default=logs/mychat.log"`

	SeedDemo bool `env:"SEED_DEMO,default=false"`
}

// Load reads the settings with Read and validates them.
func Load(files ...string) (*Config, error) {
	cfg, err := Read(files...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads .env files (missing files are ignored) and then the environment, without
// validation. Variables already set in the environment win over the files.
func Read(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("config error: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("config error: JWT_SECRET is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("config error: TOKEN_TTL must be positive")
	}
	return nil
}

// IsProduction reports whether GO_ENV is "production".
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.GoEnv, "production")
}

// Addr is the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
