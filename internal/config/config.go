package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Config holds service configuration.
type Config struct {
	ServerAddr  string `env:"SERVER_ADDR" envDefault:"0.0.0.0:8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	Postgres Postgres

	UserSigningKeys   string `env:"USER_SIGNING_KEYS"`
	UserDefaultKeyID  string `env:"USER_DEFAULT_KEY_ID"`
	AdminSigningKeys  string `env:"ADMIN_SIGNING_KEYS"`
	AdminDefaultKeyID string `env:"ADMIN_DEFAULT_KEY_ID"`
	TokenIssuer       string `env:"TOKEN_ISSUER"`

	InvitationTTL          time.Duration `env:"INVITATION_TTL" envDefault:"24h"`
	SweepInterval          time.Duration `env:"SWEEP_INTERVAL" envDefault:"1m"`
	OperationUpdateTimeout time.Duration `env:"OPERATION_UPDATE_TIMEOUT" envDefault:"5s"`
	NotifyOnExpire         bool          `env:"NOTIFY_ON_EXPIRE" envDefault:"false"`

	WS WebSocket
}

// Postgres builds DATABASE_URL when it is not set.
type Postgres struct {
	User     string `env:"POSTGRES_USER" envDefault:"bookswap"`
	Password string `env:"POSTGRES_PASSWORD" envDefault:"bookswap"`
	DB       string `env:"POSTGRES_DB" envDefault:"bookswap"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	SSLMode  string `env:"DATABASE_SSLMODE" envDefault:"disable"`
}

func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

// WebSocket bounds each client connection.
type WebSocket struct {
	SendBuffer      int           `env:"WS_SEND_BUFFER" envDefault:"64"`
	WriteTimeout    time.Duration `env:"WS_WRITE_TIMEOUT" envDefault:"10s"`
	PongTimeout     time.Duration `env:"WS_PONG_TIMEOUT" envDefault:"60s"`
	MaxMessageBytes int64         `env:"WS_MAX_MESSAGE_BYTES" envDefault:"65536"`
	AllowedOrigins  []string      `env:"WS_ALLOWED_ORIGINS" envSeparator:","`
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = cfg.Postgres.DSN()
	}
	cfg.WS.AllowedOrigins = normalizeOrigins(cfg.WS.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.UserSigningKeys) == "" && strings.TrimSpace(c.AdminSigningKeys) == "" {
		errs = append(errs, errors.New("at least one of USER_SIGNING_KEYS or ADMIN_SIGNING_KEYS is required"))
	}
	if c.InvitationTTL <= 0 {
		errs = append(errs, errors.New("INVITATION_TTL must be positive"))
	}
	if c.SweepInterval <= 0 {
		errs = append(errs, errors.New("SWEEP_INTERVAL must be positive"))
	}
	if c.OperationUpdateTimeout <= 0 {
		errs = append(errs, errors.New("OPERATION_UPDATE_TIMEOUT must be positive"))
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	return errors.Join(errs...)
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
