package store

import (
	"fmt"
	"log/slog"
	"strings"
)

// DefaultNamespace is the profile used when none is configured.
const DefaultNamespace = "default"

// Opts holds configuration options for Store implementations.
type Opts struct {
	DSN       string // data source name: file path, postgres:// URL or redis:// URL
	Namespace string // profile namespace isolating one user's keys
	KeyPrefix string // redis key prefix
}

// Option defines a configuration option for Store implementations.
type Option func(*Opts)

// WithDSN sets the data source name for any backend.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets the DSN for connecting to Postgres.
func WithPostgresDSN(dsn string) Option {
	return WithDSN(dsn)
}

// WithSQLiteDSN sets the database file path for SQLite.
func WithSQLiteDSN(dsn string) Option {
	return WithDSN(dsn)
}

// WithRedisURL sets the redis:// URL.
func WithRedisURL(url string) Option {
	return WithDSN(url)
}

// WithNamespace sets the profile namespace.
func WithNamespace(ns string) Option {
	return func(o *Opts) {
		o.Namespace = ns
	}
}

// WithKeyPrefix sets the prefix prepended to every redis key.
func WithKeyPrefix(prefix string) Option {
	return func(o *Opts) {
		o.KeyPrefix = prefix
	}
}

func applyOptions(opts []Option) Opts {
	cfg := Opts{Namespace: DefaultNamespace, KeyPrefix: "bioflow"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	return cfg
}

// DSN types recognised by DetectDSNType.
const (
	DSNTypeMemory   = "memory"
	DSNTypeSQLite   = "sqlite3"
	DSNTypePostgres = "postgres"
	DSNTypeRedis    = "redis"
)

// DetectDSNType determines the backend from a DSN string.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	switch {
	case d == "" || d == "memory" || d == ":memory:":
		return DSNTypeMemory
	case strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://"):
		return DSNTypePostgres
	case strings.Contains(d, "host=") || strings.Contains(d, "user=") || strings.Contains(d, "dbname="):
		return DSNTypePostgres
	case strings.HasPrefix(d, "redis://") || strings.HasPrefix(d, "rediss://"):
		return DSNTypeRedis
	default:
		return DSNTypeSQLite
	}
}

// New opens the backend selected by the configured DSN.
func New(opts ...Option) (Store, error) {
	cfg := applyOptions(opts)
	kind := DetectDSNType(cfg.DSN)
	slog.Debug("store.New selecting backend", "type", kind, "namespace", cfg.Namespace)

	switch kind {
	case DSNTypeMemory:
		return NewInMemoryStore(), nil
	case DSNTypePostgres:
		return NewPostgresStore(opts...)
	case DSNTypeRedis:
		return NewRedisStore(opts...)
	case DSNTypeSQLite:
		return NewSQLiteStore(opts...)
	default:
		return nil, fmt.Errorf("unsupported DSN type %q", kind)
	}
}
