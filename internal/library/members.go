package library

import (
	"context"

	"go.uber.org/zap"

	liberrors "lms/internal/errors"
	"lms/internal/models"
	"lms/internal/storage"
)

// ListMembers returns all members in insertion order.
func (l *Library) ListMembers(ctx context.Context) ([]models.Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return append(make([]models.Member, 0, len(l.members)), l.members...), nil
}

// GetMember returns one member by id.
func (l *Library) GetMember(ctx context.Context, memberID string) (models.Member, error) {
	if err := ctx.Err(); err != nil {
		return models.Member{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := l.memberIndex(memberID)
	if idx < 0 {
		return models.Member{}, liberrors.NotFoundf("member %s not found", memberID)
	}
	return l.members[idx], nil
}

// SeedFunc produces the initial members and books.
type SeedFunc func() ([]models.Member, []models.Book)

// SeedIfEmpty populates the store with generate's output when there are no
// members yet. It reports whether seeding happened. The check and the write
// run under the same lock.
func (l *Library) SeedIfEmpty(ctx context.Context, generate SeedFunc) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.members) > 0 {
		return false, nil
	}

	members, books := generate()

	next := l.current()
	next.members = clone(members)
	next.books = append(clone(l.books), books...)
	if err := l.commit(ctx, next, storage.KeyBooks, storage.KeyMembers); err != nil {
		return false, err
	}

	l.logger.Info("Seeded demo data",
		zap.Int("members", len(members)),
		zap.Int("books", len(books)),
	)
	return true, nil
}
