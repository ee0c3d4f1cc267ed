package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

var (
	ErrMissingProjectID     = errors.New("config: MAGLO_PROJECT_ID is required")
	ErrMissingSessionSecret = errors.New("config: SESSION_SECRET is required")
	ErrUnknownBackend       = errors.New("config: DOCUMENT_BACKEND must be one of mongo, sqlite, memory")
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// ProjectID namespaces every Redis key.
	ProjectID string `env:"MAGLO_PROJECT_ID"`

	Session SessionConfig
	Backend BackendConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	SMTP    SMTPConfig

	EventWorkers int `env:"EVENT_WORKERS, default=8"`
}

type SessionConfig struct {
	Secret       string        `env:"SESSION_SECRET"`
	TTL          time.Duration `env:"SESSION_TTL,           default=24h"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE, default=false"`
}

type BackendConfig struct {
	Type       string `env:"DOCUMENT_BACKEND, default=mongo"`
	SQLitePath string `env:"SQLITE_PATH,      default=data/maglo.db"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=maglo"`
}

// RedisConfig with an empty Addr keeps sessions in process memory.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// KafkaConfig with no brokers logs invoice events instead of publishing them.
type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS"`
	Topic   string   `env:"KAFKA_TOPIC, default=invoice-events"`
}

// SMTPConfig with an empty Host logs outgoing invoice e-mails instead of sending them.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     int    `env:"SMTP_PORT,      default=587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM,      default=no-reply@maglo.local"`
	FromName string `env:"SMTP_FROM_NAME, default=Maglo"`
}

// Load reads an optional .env file and then the environment.
func Load(ctx context.Context) (*Config, error) {
	_ = godotenv.Load()
	return load(ctx, envconfig.OsLookuper())
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, fmt.Errorf("config: failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProjectID) == "" {
		return ErrMissingProjectID
	}
	if c.Session.Secret == "" {
		return ErrMissingSessionSecret
	}
	switch c.Backend.Type {
	case "mongo", "sqlite", "memory":
	default:
		return ErrUnknownBackend
	}
	return nil
}

// IsDevelopment reports whether human-readable logs should be used.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// SessionCookie is the name of the cookie carrying the session token. The
// API docs declare the same name for the cookie security scheme.
const SessionCookie = "maglo_session"

// SessionCookieName is the name of the cookie carrying the session token.
func (c *Config) SessionCookieName() string {
	return SessionCookie
}
