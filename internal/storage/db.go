package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meltforce/repcycle/internal/kv"
)

// DB wraps a pgxpool.Pool and stores profiles in the profile_kv table.
type DB struct {
	Pool *pgxpool.Pool
}

// Compile-time check: *DB satisfies Backend.
var _ Backend = (*DB)(nil)

// New creates a new DB with a connection pool.
func New(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// RunMigrations applies all pending migrations from the given directory.
func RunMigrations(dsn, migrationsPath string) error {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Profile returns the key-value store of one user.
func (db *DB) Profile(userID int) kv.Store {
	return &pgProfile{pool: db.Pool, userID: userID}
}

type pgProfile struct {
	pool   *pgxpool.Pool
	userID int
}

var _ kv.Batcher = (*pgProfile)(nil)

func (p *pgProfile) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx,
		`SELECT value FROM profile_kv WHERE user_id = $1 AND key = $2`,
		p.userID, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying profile key: %w", err)
	}
	return []byte(value), true, nil
}

const upsertProfileKey = `
	INSERT INTO profile_kv (user_id, key, value)
	VALUES ($1, $2, $3)
	ON CONFLICT (user_id, key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = NOW()`

func (p *pgProfile) Set(ctx context.Context, key string, value []byte) error {
	if _, err := p.pool.Exec(ctx, upsertProfileKey, p.userID, key, string(value)); err != nil {
		return fmt.Errorf("upserting profile key: %w", err)
	}
	return nil
}

func (p *pgProfile) Delete(ctx context.Context, key string) error {
	if _, err := p.pool.Exec(ctx,
		`DELETE FROM profile_kv WHERE user_id = $1 AND key = $2`, p.userID, key); err != nil {
		return fmt.Errorf("deleting profile key: %w", err)
	}
	return nil
}

// SetMany writes all values in one transaction.
func (p *pgProfile) SetMany(ctx context.Context, values map[string][]byte) error {
	return pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		for key, value := range values {
			if _, err := tx.Exec(ctx, upsertProfileKey, p.userID, key, string(value)); err != nil {
				return fmt.Errorf("upserting %s: %w", key, err)
			}
		}
		return nil
	})
}
