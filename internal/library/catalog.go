package library

import (
	"context"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"

	liberrors "lms/internal/errors"
	"lms/internal/models"
	"lms/internal/storage"
)

// NewBook is the input for adding a catalog entry.
type NewBook struct {
	Title       string `json:"title" validate:"required,max=128"`
	Author      string `json:"author" validate:"required,max=64"`
	ISBN        string `json:"isbn" validate:"max=17"`
	TotalCopies int    `json:"total_copies" validate:"gte=0"`
	CoverURL    string `json:"coverUrl" validate:"omitempty,url"`
	Category    string `json:"category" validate:"max=32"`
}

// AddBook creates a book with all copies available.
func (l *Library) AddBook(ctx context.Context, title, author, isbn string, totalCopies int) (models.Book, error) {
	return l.CreateBook(ctx, NewBook{
		Title:       title,
		Author:      author,
		ISBN:        isbn,
		TotalCopies: totalCopies,
	})
}

// CreateBook is AddBook with the optional presentation fields. A book
// without a cover gets one of the stock covers.
func (l *Library) CreateBook(ctx context.Context, in NewBook) (models.Book, error) {
	if err := ctx.Err(); err != nil {
		return models.Book{}, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Author = strings.TrimSpace(in.Author)
	in.ISBN = strings.TrimSpace(in.ISBN)
	if err := l.validateStruct(in); err != nil {
		return models.Book{}, err
	}
	if in.CoverURL == "" {
		in.CoverURL = models.CoverImages[rand.IntN(len(models.CoverImages))]
	}

	book := models.Book{
		ID:              l.ids.NewID(),
		Title:           in.Title,
		Author:          in.Author,
		ISBN:            in.ISBN,
		TotalCopies:     in.TotalCopies,
		AvailableCopies: in.TotalCopies,
		CoverURL:        in.CoverURL,
		Category:        in.Category,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := l.current()
	next.books = append(clone(l.books), book)
	if err := l.commit(ctx, next, storage.KeyBooks); err != nil {
		return models.Book{}, err
	}

	l.logger.Info("Book added",
		zap.String("book_id", book.ID),
		zap.String("title", book.Title),
		zap.Int("total_copies", book.TotalCopies),
	)
	return book, nil
}

// DeleteBook removes a book. Deleting an unknown id is a no-op.
// Loan records that reference the book are left in place.
func (l *Library) DeleteBook(ctx context.Context, bookID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.bookIndex(bookID)
	if idx < 0 {
		return nil
	}

	next := l.current()
	next.books = append(clone(l.books[:idx]), l.books[idx+1:]...)
	if err := l.commit(ctx, next, storage.KeyBooks); err != nil {
		return err
	}

	l.logger.Info("Book deleted", zap.String("book_id", bookID))
	return nil
}

// ListBooks returns all books in insertion order.
func (l *Library) ListBooks(ctx context.Context) ([]models.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	return append(make([]models.Book, 0, len(l.books)), l.books...), nil
}

// GetBook returns one book by id.
func (l *Library) GetBook(ctx context.Context, bookID string) (models.Book, error) {
	if err := ctx.Err(); err != nil {
		return models.Book{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := l.bookIndex(bookID)
	if idx < 0 {
		return models.Book{}, liberrors.NotFoundf("book %s not found", bookID)
	}
	return l.books[idx], nil
}

// SearchBooks returns books whose title or author contains query,
// ignoring case. An empty query matches everything.
func (l *Library) SearchBooks(ctx context.Context, query string) ([]models.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))

	l.mu.RLock()
	defer l.mu.RUnlock()

	return filter(l.books, func(b models.Book) bool {
		return strings.Contains(strings.ToLower(b.Title), q) ||
			strings.Contains(strings.ToLower(b.Author), q)
	}), nil
}

// SetDescription stores a generated blurb on the book.
func (l *Library) SetDescription(ctx context.Context, bookID, description string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.bookIndex(bookID)
	if idx < 0 {
		return liberrors.NotFoundf("book %s not found", bookID)
	}

	next := l.current()
	next.books = clone(l.books)
	next.books[idx].Description = description
	return l.commit(ctx, next, storage.KeyBooks)
}
