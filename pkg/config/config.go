package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `json:"host" env:"SERVER_HOST"`
	Port int    `json:"port" env:"SERVER_PORT"`
}

// DatabaseConfig controls persistence.
type DatabaseConfig struct {
	Driver          string `json:"driver" env:"DATABASE_DRIVER"`
	DSN             string `json:"dsn" env:"DATABASE_DSN"`
	Host            string `json:"host" env:"DATABASE_HOST"`
	Port            int    `json:"port" env:"DATABASE_PORT"`
	User            string `json:"user" env:"DATABASE_USER"`
	Password        string `json:"password" env:"DATABASE_PASSWORD"`
	Name            string `json:"name" env:"DATABASE_NAME"`
	SSLMode         string `json:"sslmode" env:"DATABASE_SSLMODE"`
	MaxOpenConns    int    `json:"max_open_conns" env:"DATABASE_MAX_OPEN_CONNS"`
	MaxIdleConns    int    `json:"max_idle_conns" env:"DATABASE_MAX_IDLE_CONNS"`
	ConnMaxLifetime int    `json:"conn_max_lifetime" env:"DATABASE_CONN_MAX_LIFETIME"`
	MigrateOnStart  bool   `json:"migrate_on_start" yaml:"migrate_on_start" env:"DATABASE_MIGRATE_ON_START"`
}

// LoggingConfig controls application logging.
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL"`
	Format     string `json:"format" env:"LOG_FORMAT"`
	Output     string `json:"output" env:"LOG_OUTPUT"`
	FilePrefix string `json:"file_prefix" env:"LOG_FILE_PREFIX"`
}

// SecurityConfig controls encryption-specific parameters.
type SecurityConfig struct {
	SecretEncryptionKey string `json:"secret_encryption_key" env:"SECRET_ENCRYPTION_KEY"`
}

// AuthConfig controls HTTP API authentication. The engine API accepts a small
// set of static bearer tokens; there is no session/user model.
type AuthConfig struct {
	Tokens []string `json:"tokens" env:"AUTH_TOKENS"`
}

// RedisConfig controls the build-level distributed lock (infra/distlock).
// Empty Addr disables distributed locking; every lock acquisition then
// succeeds and no build-level exclusion is enforced.
type RedisConfig struct {
	Addr     string `json:"addr" env:"REDIS_ADDR"`
	Password string `json:"password" env:"REDIS_PASSWORD"`
	DB       int    `json:"db" env:"REDIS_DB"`
	LockTTL  int    `json:"lock_ttl_seconds" env:"REDIS_LOCK_TTL_SECONDS"`
}

// SolverConfig controls the default solver oracle dispatch policy. Per-build
// overrides arrive via LPConfiguration and take precedence over these
// process-wide defaults.
type SolverConfig struct {
	DefaultMode          string `json:"default_mode" env:"SOLVER_DEFAULT_MODE"`
	RemoteURL            string `json:"remote_url" env:"SOLVER_REMOTE_URL"`
	RemoteTimeoutSeconds int    `json:"remote_timeout_seconds" env:"SOLVER_REMOTE_TIMEOUT_SECONDS"`
	TimeoutSeconds       int    `json:"timeout_seconds" env:"SOLVER_TIMEOUT_SECONDS"`
	MaxAccountsGlobalLP  int    `json:"max_accounts_global_lp" env:"SOLVER_MAX_ACCOUNTS_GLOBAL_LP"`
}

// RateLimitConfig bounds loader concurrency against the repository.
type RateLimitConfig struct {
	MaxConcurrentRequests int `json:"max_concurrent_requests" env:"LOADER_MAX_CONCURRENT_REQUESTS"`
	RetryAttempts         int `json:"retry_attempts" env:"LOADER_RETRY_ATTEMPTS"`
}

// Config is the top-level process configuration structure.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Logging   LoggingConfig   `json:"logging"`
	Security  SecurityConfig  `json:"security"`
	Auth      AuthConfig      `json:"auth"`
	Redis     RedisConfig     `json:"redis"`
	Solver    SolverConfig    `json:"solver"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// New returns a configuration populated with defaults.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 300,
			MigrateOnStart:  true,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stdout",
			FilePrefix: "territory-engine",
		},
		Security: SecurityConfig{},
		Auth:     AuthConfig{},
		Redis: RedisConfig{
			DB:      0,
			LockTTL: 300,
		},
		Solver: SolverConfig{
			DefaultMode:          "browser",
			TimeoutSeconds:       60,
			RemoteTimeoutSeconds: 90,
			MaxAccountsGlobalLP:  8000,
		},
		RateLimit: RateLimitConfig{
			MaxConcurrentRequests: 4,
			RetryAttempts:         3,
		},
	}
}

// ConnectionString builds a PostgreSQL connection string using host parameters.
func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Load loads configuration from file (if present) and environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := New()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, err
		}
	} else {
		_ = loadFromFile("configs/config.yaml", cfg)
	}

	if err := envdecode.Decode(cfg); err != nil {
		// envdecode returns an error when no tagged fields are present in the
		// environment; treat that case as "no overrides" so local runs work
		// without exporting vars.
		if !strings.Contains(err.Error(), "none of the target fields were set") {
			return nil, fmt.Errorf("decode env: %w", err)
		}
	}

	applyDatabaseURLOverride(cfg)
	cfg.normalize()

	return cfg, nil
}

// LoadFile reads configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if err := loadFromFile(path, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	cfg.normalize()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	expanded, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return err
	}
	return nil
}

// LoadConfig is a helper used by tests to load JSON config snippets.
func LoadConfig(path string) (*Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDatabaseURLOverride(cfg)
	cfg.normalize()
	return cfg, nil
}

// applyDatabaseURLOverride lets DATABASE_URL override any file-based DSN to
// reduce setup friction in container deployments.
func applyDatabaseURLOverride(cfg *Config) {
	if cfg == nil {
		return
	}
	if dsn := strings.TrimSpace(os.Getenv("DATABASE_URL")); dsn != "" {
		cfg.Database.DSN = dsn
	}
}

func (c *Config) normalize() {
	if c == nil {
		return
	}
	if c.Solver.DefaultMode == "" {
		c.Solver.DefaultMode = "browser"
	}
	if c.Solver.TimeoutSeconds <= 0 {
		c.Solver.TimeoutSeconds = 60
	}
	if c.Solver.MaxAccountsGlobalLP <= 0 {
		c.Solver.MaxAccountsGlobalLP = 8000
	}
	if c.RateLimit.MaxConcurrentRequests <= 0 {
		c.RateLimit.MaxConcurrentRequests = 4
	}
	if c.RateLimit.RetryAttempts <= 0 {
		c.RateLimit.RetryAttempts = 3
	}
}
