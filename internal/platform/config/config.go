// Package config builds the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Rate limit tiers and audit sinks understood by the server.
const (
	TierRedis    = "redis"
	TierPostgres = "postgres"
	TierMemory   = "memory"

	SinkMemory   = "memory"
	SinkPostgres = "postgres"
	SinkKafka    = "kafka"
)

// DevHashKey is used when AUDIT_HASH_KEY is unset. Never in production.
const DevHashKey = "dev-only-hash-key-change-in-production"

type Config struct {
	Env       string
	Server    Server
	Redis     Redis
	Postgres  Postgres
	Kafka     Kafka
	Audit     Audit
	RateLimit RateLimit
	Breaker   Breaker
	Cleanup   Cleanup
	Log       Log
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Postgres struct {
	DSN            string
	MaxOpenConns   int
	MigrateOnStart bool
}

type Kafka struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
	CreateTopic       bool
}

type Audit struct {
	HashKey        string
	Sinks          []string
	BufferSize     int
	WriteTimeout   time.Duration
	MemoryCapacity int
}

type RateLimit struct {
	Tiers          []string
	BackendTimeout time.Duration
	PolicyFile     string
	MemoryCapacity int
}

// Breaker configures the per-tier circuit breakers.
type Breaker struct {
	FailureThreshold int
	SuccessThreshold int
	Cooldown         time.Duration
}

// Cleanup schedules the purge of expired rows in the Postgres counter table.
type Cleanup struct {
	Schedule  string
	Retention time.Duration
}

type Log struct {
	Level  string
	Format string
}

// FromEnv loads .env if present, then reads the process environment.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()
	return Load(os.LookupEnv)
}

// Load reads configuration through lookup, applying defaults for unset keys.
func Load(lookup func(string) (string, bool)) (*Config, error) {
	e := &env{lookup: lookup}
	cfg := &Config{
		Env: e.str("ENV", "development"),
		Server: Server{
			Addr:            e.str("AUTHGUARD_ADDR", ":8080"),
			ReadTimeout:     e.duration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    e.duration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     e.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: e.duration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			AllowedOrigins:  e.list("ALLOWED_ORIGINS", nil),
		},
		Redis: Redis{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 200*time.Millisecond),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 200*time.Millisecond),
		},
		Postgres: Postgres{
			DSN:            e.str("DATABASE_URL", ""),
			MaxOpenConns:   e.int("DATABASE_MAX_OPEN_CONNS", 10),
			MigrateOnStart: e.bool("DATABASE_MIGRATE", true),
		},
		Kafka: Kafka{
			Brokers:           e.list("KAFKA_BROKERS", nil),
			Topic:             e.str("KAFKA_AUDIT_TOPIC", "authguard.risk-audit"),
			Partitions:        int32(e.int("KAFKA_AUDIT_PARTITIONS", 3)),
			ReplicationFactor: int16(e.int("KAFKA_AUDIT_REPLICATION", 1)),
			CreateTopic:       e.bool("KAFKA_CREATE_TOPIC", true),
		},
		Audit: Audit{
			HashKey:        e.str("AUDIT_HASH_KEY", DevHashKey),
			Sinks:          e.list("AUDIT_SINKS", []string{SinkMemory}),
			BufferSize:     e.int("AUDIT_BUFFER_SIZE", 1024),
			WriteTimeout:   e.duration("AUDIT_WRITE_TIMEOUT", time.Second),
			MemoryCapacity: e.int("AUDIT_MEMORY_CAPACITY", 10_000),
		},
		RateLimit: RateLimit{
			Tiers:          e.list("RATE_LIMIT_TIERS", []string{TierMemory}),
			BackendTimeout: e.duration("RATE_LIMIT_BACKEND_TIMEOUT", 250*time.Millisecond),
			PolicyFile:     e.str("RATE_LIMIT_POLICY_FILE", ""),
			MemoryCapacity: e.int("RATE_LIMIT_MEMORY_CAPACITY", 100_000),
		},
		Breaker: Breaker{
			FailureThreshold: e.int("BREAKER_FAILURE_THRESHOLD", 5),
			SuccessThreshold: e.int("BREAKER_SUCCESS_THRESHOLD", 3),
			Cooldown:         e.duration("BREAKER_COOLDOWN", 5*time.Second),
		},
		Cleanup: Cleanup{
			Schedule:  e.str("CLEANUP_SCHEDULE", "@every 10m"),
			Retention: e.duration("CLEANUP_RETENTION", time.Hour),
		},
		Log: Log{
			Level:  e.str("LOG_LEVEL", "info"),
			Format: e.str("LOG_FORMAT", "json"),
		},
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements: every configured backend has what it
// needs to connect.
func (c *Config) Validate() error {
	var errs []error
	if len(c.RateLimit.Tiers) == 0 {
		errs = append(errs, errors.New("RATE_LIMIT_TIERS must name at least one tier"))
	}
	for _, t := range c.RateLimit.Tiers {
		switch t {
		case TierRedis:
			if c.Redis.URL == "" {
				errs = append(errs, errors.New("REDIS_URL is required for the redis tier"))
			}
		case TierPostgres:
			if c.Postgres.DSN == "" {
				errs = append(errs, errors.New("DATABASE_URL is required for the postgres tier"))
			}
		case TierMemory:
		default:
			errs = append(errs, fmt.Errorf("unknown rate limit tier %q", t))
		}
	}
	for _, s := range c.Audit.Sinks {
		switch s {
		case SinkPostgres:
			if c.Postgres.DSN == "" {
				errs = append(errs, errors.New("DATABASE_URL is required for the postgres audit sink"))
			}
		case SinkKafka:
			if len(c.Kafka.Brokers) == 0 {
				errs = append(errs, errors.New("KAFKA_BROKERS is required for the kafka audit sink"))
			}
		case SinkMemory:
		default:
			errs = append(errs, fmt.Errorf("unknown audit sink %q", s))
		}
	}
	if n := len(c.Audit.HashKey); n < 16 || n > 64 {
		errs = append(errs, errors.New("AUDIT_HASH_KEY must be 16 to 64 bytes"))
	}
	if c.IsProduction() && c.Audit.HashKey == DevHashKey {
		errs = append(errs, errors.New("AUDIT_HASH_KEY must be set in production"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// UsesPostgres reports whether any component needs a database handle.
func (c *Config) UsesPostgres() bool {
	return slices.Contains(c.RateLimit.Tiers, TierPostgres) || slices.Contains(c.Audit.Sinks, SinkPostgres)
}

// env reads typed values and collects parse errors so all of them are reported.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) raw(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) str(key, def string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return def
}

func (e *env) int(key string, def int) int {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

func (e *env) bool(key string, def bool) bool {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *env) list(key string, def []string) []string {
	v, ok := e.raw(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
