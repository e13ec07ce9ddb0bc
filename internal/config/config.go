package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Database struct {
	Driver string `env:"DATABASE_DRIVER" envDefault:"postgres"`
	// Fallback for local dev if not set
	URL   string `env:"DATABASE_URL" envDefault:"host=localhost user=postgres password=postgres dbname=mood port=5432 sslmode=disable TimeZone=Europe/Paris"`
	Debug bool   `env:"DATABASE_DEBUG"`
}

type Auth struct {
	SessionSecret string `env:"SESSION_SECRET" envDefault:"secret_key_change_me"`
	// Empty key means only the very first account can register.
	InvitationKey   string        `env:"INVITATION_KEY"`
	LoginRateLimit  int           `env:"LOGIN_RATE_LIMIT" envDefault:"5"`
	LoginRateWindow time.Duration `env:"LOGIN_RATE_WINDOW" envDefault:"1m"`
}

// Tracing spans are sent over OTLP/HTTP, configured through the standard
// OTEL_EXPORTER_OTLP_* variables, or printed to stdout.
type Tracing struct {
	Enabled bool `env:"TRACING_ENABLED"`
	Stdout  bool `env:"TRACING_STDOUT"`
}

// Jobs configures the background maintenance, zero disables a job.
type Jobs struct {
	ArchiveInterval time.Duration `env:"ARCHIVE_INTERVAL" envDefault:"15m"`
}

type Config struct {
	Environment string `env:"APP_ENV" envDefault:"prod"`
	Port        string `env:"PORT" envDefault:"8080"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:8080"`
	// Addresses or CIDRs whose X-Forwarded-For / X-Real-IP headers are
	// honored. Empty trusts no proxy and uses the peer address.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	DB          Database
	Auth        Auth
	Tracing     Tracing
	Jobs        Jobs
}

func (c Config) IsDevEnvironment() bool {
	return c.Environment == "dev"
}

// PollURL builds the public link shared with a team for the given token.
func (c Config) PollURL(token string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/poll/" + token
}

// Load reads an optional .env file then parses the environment.
func Load(files ...string) (Config, error) {
	// Missing .env is fine, variables may come from the system
	_ = godotenv.Load(files...)

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	switch cfg.DB.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return Config{}, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.Auth.LoginRateLimit <= 0 {
		return Config{}, fmt.Errorf("LOGIN_RATE_LIMIT must be positive, got %d", cfg.Auth.LoginRateLimit)
	}

	return cfg, nil
}
