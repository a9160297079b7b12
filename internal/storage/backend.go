// Package storage implements the profile key-value store on SQLite,
// PostgreSQL and Redis.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meltforce/repcycle/internal/kv"
)

// Backend is a durable store partitioned into per-user profiles.
type Backend interface {
	Profile(userID int) kv.Store
	GetOrCreateUser(ctx context.Context, login, displayName string) (int, error)
	Close() error
}

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Driver         string
	SQLitePath     string
	PostgresDSN    string
	MigrationsPath string
	Redis          RedisOptions
}

// Open connects the configured backend. PostgreSQL migrations are applied
// before connecting.
func Open(ctx context.Context, opts Options, log *slog.Logger) (Backend, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		l, err := OpenLocal(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("local database opened", "path", opts.SQLitePath)
		return l, nil

	case DriverPostgres:
		migrations := opts.MigrationsPath
		if migrations == "" {
			migrations = "migrations"
		}
		if err := RunMigrations(opts.PostgresDSN, migrations); err != nil {
			return nil, err
		}
		log.Info("migrations applied")
		db, err := New(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		log.Info("database connected")
		return db, nil

	case DriverRedis:
		r, err := NewRedis(ctx, opts.Redis)
		if err != nil {
			return nil, err
		}
		log.Info("redis connected", "addr", opts.Redis.Addr)
		return r, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", opts.Driver)
}
