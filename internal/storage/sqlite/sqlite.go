// Package sqlite implements storage.Storage on a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"lms/internal/storage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB keeps one row per snapshot key.
type DB struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the SQLite database at path.
func Open(path string) (*DB, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single writer keeps SQLite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &DB{db: db, now: time.Now}, nil
}

// Initialize applies the embedded goose migrations.
func (d *DB) Initialize(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, d.db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Load returns the blob stored under key, nil if absent.
func (d *DB) Load(ctx context.Context, key string) ([]byte, error) {
	var blob []byte
	err := d.db.QueryRowContext(ctx, `SELECT blob FROM snapshots WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return blob, nil
}

// Save upserts all records in one transaction.
func (d *DB) Save(ctx context.Context, records ...storage.Record) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	savedAt := d.now().UTC()
	for _, r := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshots (key, blob, saved_at) VALUES (?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET blob = excluded.blob, saved_at = excluded.saved_at`,
			r.Key, r.Blob, savedAt)
		if err != nil {
			return fmt.Errorf("save %s: %w", r.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}
