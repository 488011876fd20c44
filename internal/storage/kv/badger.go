// Package kv implements storage.Storage on an embedded Badger database,
// the local persistence backend.
package kv

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"lms/internal/storage"
)

// BadgerDB wraps a Badger database instance.
type BadgerDB struct {
	db     *badger.DB
	logger *zap.Logger
}

// Open opens (or creates) a Badger database in dir.
func Open(dir string, logger *zap.Logger) (*BadgerDB, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil            // Badger's own logger is too chatty
	opts.SyncWrites = true       // each Save must survive a crash
	opts.CompactL0OnClose = true // faster startup

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("Badger database opened", zap.String("path", dir))

	return &BadgerDB{db: db, logger: logger}, nil
}

// Initialize is a no-op, Badger has no schema.
func (b *BadgerDB) Initialize(ctx context.Context) error {
	return nil
}

// Load returns the blob stored under key, nil if absent.
func (b *BadgerDB) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var blob []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		blob, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return blob, nil
}

// Save writes all records in one transaction.
func (b *BadgerDB) Save(ctx context.Context, records ...storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := b.db.Update(func(txn *badger.Txn) error {
		for _, r := range records {
			if err := txn.Set([]byte(r.Key), r.Blob); err != nil {
				return fmt.Errorf("failed to set %s: %w", r.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// Close gracefully closes the database.
func (b *BadgerDB) Close() error {
	b.logger.Info("Closing badger database")
	return b.db.Close()
}
