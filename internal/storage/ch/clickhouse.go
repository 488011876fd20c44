package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"lms/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseDB keeps collection snapshots in a ReplacingMergeTree table,
// newest saved_at per key wins.
type ClickHouseDB struct {
	conn clickhouse.Conn
	now  func() time.Time
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn, now: time.Now}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	// See migrations/ and cmd/migrate
	return nil
}

// Load returns the most recently saved blob for key
func (db *ClickHouseDB) Load(ctx context.Context, key string) ([]byte, error) {
	rows, err := db.conn.Query(ctx, `SELECT blob FROM snapshots WHERE key = ? ORDER BY saved_at DESC LIMIT 1`, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot %s: %w", key, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}

	var blob string
	if err := rows.Scan(&blob); err != nil {
		return nil, fmt.Errorf("failed to scan snapshot %s: %w", key, err)
	}
	return []byte(blob), nil
}

// Save inserts all records as one block so they become visible together
func (db *ClickHouseDB) Save(ctx context.Context, records ...storage.Record) error {
	if len(records) == 0 {
		return nil
	}

	batch, err := db.conn.PrepareBatch(ctx, `INSERT INTO snapshots (key, blob, saved_at)`)
	if err != nil {
		return fmt.Errorf("failed to prepare snapshot batch: %w", err)
	}

	savedAt := db.now()
	for _, r := range records {
		if err := batch.Append(r.Key, string(r.Blob), savedAt); err != nil {
			_ = batch.Abort()
			return fmt.Errorf("failed to append snapshot %s: %w", r.Key, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to save snapshots: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
