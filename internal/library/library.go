// Package library holds the catalog, member and loan collections and enforces
// the borrow/return consistency rules between them.
//
// A Library is constructed once with Open and shared by every presentation
// layer. All state lives behind one lock: mutations hold it across
// read, validate, mutate and persist, and only commit to memory after the
// storage adapter accepted the new snapshot.
package library

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"lms/internal/id"
	"lms/internal/models"
	"lms/internal/storage"
)

// DefaultLoanPeriod is how long a borrowed copy may be kept.
const DefaultLoanPeriod = 14 * 24 * time.Hour

// Options configures a Library.
type Options struct {
	Storage    storage.Storage
	IDs        id.Generator
	Logger     *zap.Logger
	Now        func() time.Time
	LoanPeriod time.Duration
}

// Library is the in-memory view of the three collections, mirrored to Storage.
type Library struct {
	mu sync.RWMutex

	store      storage.Storage
	ids        id.Generator
	logger     *zap.Logger
	now        func() time.Time
	loanPeriod time.Duration
	validate   *validator.Validate

	books   []models.Book
	members []models.Member
	loans   []models.LoanRecord
}

// Open creates a Library and loads the persisted collections.
func Open(ctx context.Context, opts Options) (*Library, error) {
	if opts.Storage == nil {
		return nil, fmt.Errorf("library: storage is required")
	}
	if opts.IDs == nil {
		opts.IDs = id.UUID{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LoanPeriod <= 0 {
		opts.LoanPeriod = DefaultLoanPeriod
	}

	l := &Library{
		store:      opts.Storage,
		ids:        opts.IDs,
		logger:     opts.Logger,
		now:        opts.Now,
		loanPeriod: opts.LoanPeriod,
		validate:   newValidator(),
	}

	if err := l.load(ctx); err != nil {
		return nil, err
	}

	l.logger.Info("Library loaded",
		zap.Int("books", len(l.books)),
		zap.Int("members", len(l.members)),
		zap.Int("loans", len(l.loans)),
	)
	return l, nil
}

// Now returns the library clock, used by callers that evaluate IsOverdue.
func (l *Library) Now() time.Time {
	return l.now()
}

// LoanPeriod returns the configured loan duration.
func (l *Library) LoanPeriod() time.Duration {
	return l.loanPeriod
}

func (l *Library) bookIndex(bookID string) int {
	for i := range l.books {
		if l.books[i].ID == bookID {
			return i
		}
	}
	return -1
}

func (l *Library) memberIndex(memberID string) int {
	for i := range l.members {
		if l.members[i].ID == memberID {
			return i
		}
	}
	return -1
}

func (l *Library) loanIndex(loanID string) int {
	for i := range l.loans {
		if l.loans[i].ID == loanID {
			return i
		}
	}
	return -1
}

func clone[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0)
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}
