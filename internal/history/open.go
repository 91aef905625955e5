package history

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Options selects and tunes a history backend.
type Options struct {
	Driver string

	// postgres
	DatabaseURL     string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// sqlite
	SQLitePath string

	// memory
	MemoryCapacity int

	Logger *slog.Logger
}

// Open creates the configured store and runs Init on it.
func Open(ctx context.Context, opts Options) (Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store Store
		err   error
	)
	switch strings.ToLower(opts.Driver) {
	case "", DriverMemory:
		store = NewMemoryStore(opts.MemoryCapacity)
	case DriverSQLite:
		store, err = NewSQLiteStore(opts.SQLitePath, logger)
	case DriverPostgres:
		store, err = openPostgres(ctx, opts, logger)
	default:
		return nil, fmt.Errorf("unknown history driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := store.Init(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

func openPostgres(ctx context.Context, opts Options, logger *slog.Logger) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		poolConfig.MinConns = int32(opts.MinConns)
	}
	if opts.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(opts.DatabaseURL); err == nil {
		logger.Info("connected to history database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		logger.Info("connected to history database")
	}

	return &PostgresStore{pool: pool, ownsPool: true}, nil
}
