// Package config loads process configuration from WARDEN_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	strutil "warden/pkg/platform/strings"
)

const envPrefix = "WARDEN_"

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `env:"ADDR"             envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

type Logging struct {
	Level  string `env:"LOG_LEVEL"  envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Store selects and configures the punishment backend.
type Store struct {
	Driver      string `env:"STORE_DRIVER" envDefault:"memory"`
	SQLitePath  string `env:"SQLITE_PATH"  envDefault:"warden.db"`
	PostgresDSN string `env:"POSTGRES_DSN"`
}

// RedisConfig holds connection settings for the redis backend.
type RedisConfig struct {
	URL          string        `env:"URL"`
	PoolSize     int           `env:"POOL_SIZE"      envDefault:"10"`
	MinIdleConns int           `env:"MIN_IDLE_CONNS" envDefault:"2"`
	DialTimeout  time.Duration `env:"DIAL_TIMEOUT"   envDefault:"5s"`
	ReadTimeout  time.Duration `env:"READ_TIMEOUT"   envDefault:"3s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT"  envDefault:"3s"`
}

// Engine tunes the lifecycle engine and the issuer.
type Engine struct {
	PollInterval    time.Duration `env:"POLL_INTERVAL"     envDefault:"5s"`
	SweepTimeout    time.Duration `env:"SWEEP_TIMEOUT"     envDefault:"10s"`
	WarnLimit       int           `env:"WARN_LIMIT"        envDefault:"3"`
	AutoIPBanReason string        `env:"AUTO_IPBAN_REASON" envDefault:"Too many warnings"`
}

// Gate configures connection-time enforcement.
type Gate struct {
	ThrottleMaxConnections int           `env:"THROTTLE_MAX_CONNECTIONS" envDefault:"5"`
	ThrottleWindow         time.Duration `env:"THROTTLE_WINDOW"          envDefault:"10s"`
	NNRHiddenReason        string        `env:"NNR_HIDDEN_REASON"        envDefault:"Hidden"`
}

// Kafka is optional; an empty broker list disables the event publisher.
type Kafka struct {
	Brokers    []string `env:"BROKERS"            envSeparator:","`
	Topic      string   `env:"TOPIC"              envDefault:"warden.punishments"`
	AuditTopic string   `env:"AUDIT_TOPIC"        envDefault:"warden.audit"`
	// AuditConsumerGroup, when set, makes this server materialize the
	// network-wide audit topic into its audit store.
	AuditConsumerGroup string `env:"AUDIT_CONSUMER_GROUP"`
	Partitions         int32  `env:"PARTITIONS"         envDefault:"3"`
	ReplicationFactor  int16  `env:"REPLICATION_FACTOR" envDefault:"1"`
}

type Auth struct {
	SigningKey string `env:"SIGNING_KEY" envDefault:"dev-secret-key-change-in-production"`
	Issuer     string `env:"ISSUER"      envDefault:"warden"`
}

// Tracing is opt-in; an empty endpoint keeps the no-op provider.
type Tracing struct {
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"warden"`
}

type Config struct {
	Server  Server
	Logging Logging
	Store   Store
	Redis   RedisConfig `envPrefix:"REDIS_"`
	Engine  Engine
	Gate    Gate
	Kafka   Kafka `envPrefix:"KAFKA_"`
	Auth    Auth  `envPrefix:"JWT_"`
	Tracing Tracing
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Kafka.Brokers = strutil.DedupeAndTrim(cfg.Kafka.Brokers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects unknown drivers and missing connection settings.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Store.SQLitePath) == "" {
			errs = append(errs, errors.New("WARDEN_SQLITE_PATH is required for the sqlite driver"))
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Store.PostgresDSN) == "" {
			errs = append(errs, errors.New("WARDEN_POSTGRES_DSN is required for the postgres driver"))
		}
	case DriverRedis:
		if strings.TrimSpace(c.Redis.URL) == "" {
			errs = append(errs, errors.New("WARDEN_REDIS_URL is required for the redis driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Engine.PollInterval <= 0 {
		errs = append(errs, errors.New("WARDEN_POLL_INTERVAL must be positive"))
	}
	if c.Engine.SweepTimeout <= 0 {
		errs = append(errs, errors.New("WARDEN_SWEEP_TIMEOUT must be positive"))
	}
	if c.Gate.ThrottleMaxConnections < 0 {
		errs = append(errs, errors.New("WARDEN_THROTTLE_MAX_CONNECTIONS must not be negative"))
	}
	if len(c.Kafka.Brokers) > 0 && strings.TrimSpace(c.Kafka.Topic) == "" {
		errs = append(errs, errors.New("WARDEN_KAFKA_TOPIC is required when brokers are set"))
	}
	if strings.TrimSpace(c.Auth.SigningKey) == "" {
		errs = append(errs, errors.New("WARDEN_JWT_SIGNING_KEY is required"))
	}
	return errors.Join(errs...)
}
