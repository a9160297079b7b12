package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/meltforce/repcycle/internal/kv"
	_ "modernc.org/sqlite"
)

// Local keeps profiles in a SQLite file. It backs guest mode and
// single-machine servers.
type Local struct {
	db *sql.DB
}

// Compile-time check: *Local satisfies Backend.
var _ Backend = (*Local)(nil)

// OpenLocal opens (or creates) the SQLite database at path.
func OpenLocal(path string) (*Local, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening local db: %w", err)
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			login        TEXT NOT NULL UNIQUE,
			display_name TEXT NOT NULL DEFAULT '',
			last_seen    TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS profile_kv (
			user_id    INTEGER NOT NULL,
			key        TEXT NOT NULL,
			value      BLOB NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (user_id, key)
		);
		INSERT OR IGNORE INTO users (id, login, display_name) VALUES (1, 'local', 'Local Dev User');
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating local tables: %w", err)
	}

	return &Local{db: db}, nil
}

// Close closes the database.
func (l *Local) Close() error {
	return l.db.Close()
}

// Profile returns the key-value store of one user.
func (l *Local) Profile(userID int) kv.Store {
	return &localProfile{db: l.db, userID: userID}
}

// GetOrCreateUser finds or creates a user by login name.
func (l *Local) GetOrCreateUser(ctx context.Context, login, displayName string) (int, error) {
	var id int
	err := l.db.QueryRowContext(ctx, `
		INSERT INTO users (login, display_name) VALUES (?, ?)
		ON CONFLICT (login) DO UPDATE
			SET last_seen = CURRENT_TIMESTAMP,
			    display_name = COALESCE(NULLIF(excluded.display_name, ''), users.display_name)
		RETURNING id`, login, displayName).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("upserting user: %w", err)
	}
	return id, nil
}

type localProfile struct {
	db     *sql.DB
	userID int
}

var _ kv.Batcher = (*localProfile)(nil)

func (p *localProfile) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT value FROM profile_kv WHERE user_id = ? AND key = ?`, p.userID, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying profile key: %w", err)
	}
	return value, true, nil
}

const upsertLocalKey = `INSERT OR REPLACE INTO profile_kv (user_id, key, value, updated_at)
	VALUES (?, ?, ?, CURRENT_TIMESTAMP)`

func (p *localProfile) Set(ctx context.Context, key string, value []byte) error {
	if _, err := p.db.ExecContext(ctx, upsertLocalKey, p.userID, key, value); err != nil {
		return fmt.Errorf("writing profile key: %w", err)
	}
	return nil
}

func (p *localProfile) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx,
		`DELETE FROM profile_kv WHERE user_id = ? AND key = ?`, p.userID, key); err != nil {
		return fmt.Errorf("deleting profile key: %w", err)
	}
	return nil
}

// SetMany writes all values in one transaction.
func (p *localProfile) SetMany(ctx context.Context, values map[string][]byte) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range values {
		if _, err := tx.ExecContext(ctx, upsertLocalKey, p.userID, key, value); err != nil {
			return fmt.Errorf("writing %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}
