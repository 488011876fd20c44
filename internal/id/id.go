// Package id generates identifiers for books, members and loan records.
package id

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Generator produces globally unique opaque identifiers.
type Generator interface {
	NewID() string
}

// UUID generates random (version 4) UUID strings.
type UUID struct{}

// NewID implements Generator.
func (UUID) NewID() string {
	return uuid.NewString()
}

// Sequence generates predictable identifiers such as "loan-1", "loan-2".
// Intended for tests and fixtures.
type Sequence struct {
	Prefix string

	mu   sync.Mutex
	next int
}

// NewID implements Generator.
func (s *Sequence) NewID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return fmt.Sprintf("%s-%d", s.Prefix, s.next)
}
