package library

import (
	"context"

	"go.uber.org/zap"

	liberrors "lms/internal/errors"
	"lms/internal/models"
	"lms/internal/storage"
)

// Borrow checks out one copy of a book to a member.
//
// Errors:
//   - NOT_FOUND if the book does not exist
//   - VALIDATION if memberID is empty
//   - NOT_FOUND if the member does not exist
//   - OUT_OF_STOCK if no copy is available; nothing changes
//   - PERSISTENCE if the snapshot could not be saved; nothing changes
func (l *Library) Borrow(ctx context.Context, bookID, memberID string) (models.LoanRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.LoanRecord{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bookIdx := l.bookIndex(bookID)
	if bookIdx < 0 {
		return models.LoanRecord{}, liberrors.NotFoundf("book %s not found", bookID)
	}
	if memberID == "" {
		return models.LoanRecord{}, liberrors.Validation("member id is required")
	}
	if l.memberIndex(memberID) < 0 {
		return models.LoanRecord{}, liberrors.NotFoundf("member %s not found", memberID)
	}

	book := l.books[bookIdx]
	if book.AvailableCopies <= 0 {
		return models.LoanRecord{}, liberrors.OutOfStockf("no copies of %q are available", book.Title)
	}

	now := l.now()
	loan := models.LoanRecord{
		ID:         l.ids.NewID(),
		BookID:     bookID,
		MemberID:   memberID,
		BorrowedAt: now,
		DueAt:      now.Add(l.loanPeriod),
	}

	next := l.current()
	next.books = clone(l.books)
	next.books[bookIdx].AvailableCopies--
	next.loans = append(clone(l.loans), loan)
	if err := l.commit(ctx, next, storage.KeyBooks, storage.KeyLoans); err != nil {
		return models.LoanRecord{}, err
	}

	l.logger.Info("Book borrowed",
		zap.String("loan_id", loan.ID),
		zap.String("book_id", bookID),
		zap.String("member_id", memberID),
		zap.Time("due_at", loan.DueAt),
		zap.Int("available_copies", next.books[bookIdx].AvailableCopies),
	)
	return loan, nil
}

// ReturnLoan closes an active loan and puts the copy back on the shelf.
// Returning an unknown or already returned loan is a no-op, so a repeated
// return never changes the counters. A loan whose book has been deleted is
// closed without touching the catalog.
func (l *Library) ReturnLoan(ctx context.Context, loanID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	loanIdx := l.loanIndex(loanID)
	if loanIdx < 0 || !l.loans[loanIdx].IsActive() {
		return nil
	}

	returnedAt := l.now()
	next := l.current()
	next.loans = clone(l.loans)
	next.loans[loanIdx].ReturnedAt = &returnedAt
	keys := []string{storage.KeyLoans}

	bookID := next.loans[loanIdx].BookID
	if bookIdx := l.bookIndex(bookID); bookIdx >= 0 {
		next.books = clone(l.books)
		b := &next.books[bookIdx]
		b.AvailableCopies = min(b.AvailableCopies+1, b.TotalCopies)
		keys = append(keys, storage.KeyBooks)
	} else {
		l.logger.Warn("Returned loan references a deleted book",
			zap.String("loan_id", loanID),
			zap.String("book_id", bookID),
		)
	}

	if err := l.commit(ctx, next, keys...); err != nil {
		return err
	}

	l.logger.Info("Book returned",
		zap.String("loan_id", loanID),
		zap.String("book_id", bookID),
	)
	return nil
}

// GetLoan returns one loan record by id.
func (l *Library) GetLoan(ctx context.Context, loanID string) (models.LoanRecord, error) {
	if err := ctx.Err(); err != nil {
		return models.LoanRecord{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := l.loanIndex(loanID)
	if idx < 0 {
		return models.LoanRecord{}, liberrors.NotFoundf("loan %s not found", loanID)
	}
	return l.loans[idx].Detached(), nil
}

// ListLoans returns every loan record, active and returned, oldest first.
func (l *Library) ListLoans(ctx context.Context) ([]models.LoanRecord, error) {
	return l.listLoans(ctx, func(models.LoanRecord) bool { return true })
}

// ListActiveLoans returns loans that have not been returned, across all members.
func (l *Library) ListActiveLoans(ctx context.Context) ([]models.LoanRecord, error) {
	return l.listLoans(ctx, models.LoanRecord.IsActive)
}

// ListLoansForMember returns the member's loans, active and returned.
func (l *Library) ListLoansForMember(ctx context.Context, memberID string) ([]models.LoanRecord, error) {
	return l.listLoans(ctx, func(r models.LoanRecord) bool { return r.MemberID == memberID })
}

// ListOverdueLoans returns active loans whose due date has passed.
func (l *Library) ListOverdueLoans(ctx context.Context) ([]models.LoanRecord, error) {
	now := l.now()
	return l.listLoans(ctx, func(r models.LoanRecord) bool { return r.IsOverdue(now) })
}

func (l *Library) listLoans(ctx context.Context, keep func(models.LoanRecord) bool) ([]models.LoanRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	out := filter(l.loans, keep)
	for i := range out {
		out[i] = out[i].Detached()
	}
	return out, nil
}
