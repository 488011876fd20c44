package stubs

import (
	"context"
	"sync"

	"lms/internal/storage"
)

// MemoryDB is an in-memory implementation of the Storage interface for testing
// and for running without any on-disk state.
type MemoryDB struct {
	mu      sync.RWMutex
	blobs   map[string][]byte
	saves   int
	saveErr error
}

// NewMemoryDB creates a new in-memory database
func NewMemoryDB() *MemoryDB {
	return &MemoryDB{
		blobs: make(map[string][]byte),
	}
}

// Initialize does nothing for the in-memory database
func (m *MemoryDB) Initialize(ctx context.Context) error {
	return nil
}

// Load returns a copy of the blob stored under key
func (m *MemoryDB) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	blob, ok := m.blobs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), blob...), nil
}

// Save stores copies of all records, or none of them when a failure is injected
func (m *MemoryDB) Save(ctx context.Context, records ...storage.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.saveErr != nil {
		return m.saveErr
	}

	for _, r := range records {
		m.blobs[r.Key] = append([]byte(nil), r.Blob...)
	}
	m.saves++
	return nil
}

// FailSaves makes every subsequent Save return err. Pass nil to recover.
func (m *MemoryDB) FailSaves(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

// SaveCount returns how many Save calls succeeded
func (m *MemoryDB) SaveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

// Close does nothing for the in-memory database
func (m *MemoryDB) Close() error {
	return nil
}
