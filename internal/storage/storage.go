package storage

import (
	"context"
)

// Snapshot keys, one per entity collection.
const (
	KeyBooks   = "lms_books"
	KeyMembers = "lms_users"
	KeyLoans   = "lms_borrows"
)

// Record is one serialized collection addressed by key
type Record struct {
	Key  string
	Blob []byte
}

// Storage defines the persistence collaborator used by the library core.
// Implementations are chosen once at startup.
type Storage interface {
	// Load returns the blob stored under key, or a nil blob if the key was never saved
	Load(ctx context.Context, key string) ([]byte, error)

	// Save writes all records in a single batch
	Save(ctx context.Context, records ...Record) error

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
