package library

import (
	"context"

	"lms/internal/models"
)

// Stats summarizes the collection for dashboards.
func (l *Library) Stats(ctx context.Context) (models.Stats, error) {
	if err := ctx.Err(); err != nil {
		return models.Stats{}, err
	}

	now := l.now()

	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := models.Stats{
		Titles:  len(l.books),
		Members: len(l.members),
	}
	for _, b := range l.books {
		stats.TotalCopies += b.TotalCopies
		stats.AvailableCopies += b.AvailableCopies
	}
	stats.LentCopies = stats.TotalCopies - stats.AvailableCopies

	for _, r := range l.loans {
		if r.IsActive() {
			stats.ActiveLoans++
		}
		if r.IsOverdue(now) {
			stats.OverdueLoans++
		}
	}
	return stats, nil
}
