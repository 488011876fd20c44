package library

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	liberrors "lms/internal/errors"
	"lms/internal/id"
	"lms/internal/models"
	"lms/internal/storage"
	"lms/internal/storage/stubs"
)

// clock is a settable time source shared by a test and its Library.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	lib   *Library
	db    *stubs.MemoryDB
	clock *clock
}

func openLibrary(t *testing.T, db *stubs.MemoryDB, c *clock) *Library {
	t.Helper()

	lib, err := Open(context.Background(), Options{
		Storage: db,
		IDs:     &id.Sequence{Prefix: "id"},
		Logger:  zap.NewNop(),
		Now:     c.Now,
	})
	require.NoError(t, err)
	return lib
}

// setupLibrary returns a library with members "alice", "bob", "carol", "dave".
func setupLibrary(t *testing.T) fixture {
	t.Helper()

	db := stubs.NewMemoryDB()
	c := &clock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
	lib := openLibrary(t, db, c)

	seeded, err := lib.SeedIfEmpty(context.Background(), func() ([]models.Member, []models.Book) {
		return []models.Member{
			{ID: "alice", StudentID: "STU1", Name: "Alice", Role: models.RoleStudent},
			{ID: "bob", StudentID: "STU2", Name: "Bob", Role: models.RoleStudent},
			{ID: "carol", StudentID: "STU3", Name: "Carol", Role: models.RoleStudent},
			{ID: "dave", StudentID: "STU4", Name: "Dave", Role: models.RoleStudent},
		}, nil
	})
	require.NoError(t, err)
	require.True(t, seeded)

	return fixture{lib: lib, db: db, clock: c}
}

func assertCountersConsistent(t *testing.T, lib *Library) {
	t.Helper()

	ctx := context.Background()
	books, err := lib.ListBooks(ctx)
	require.NoError(t, err)
	active, err := lib.ListActiveLoans(ctx)
	require.NoError(t, err)

	activeByBook := make(map[string]int)
	for _, l := range active {
		activeByBook[l.BookID]++
	}
	for _, b := range books {
		assert.GreaterOrEqual(t, b.AvailableCopies, 0, "book %s", b.ID)
		assert.LessOrEqual(t, b.AvailableCopies, b.TotalCopies, "book %s", b.ID)
		assert.Equal(t, b.TotalCopies-activeByBook[b.ID], b.AvailableCopies, "book %s", b.ID)
	}
}

func TestOpen_RequiresStorage(t *testing.T) {
	_, err := Open(context.Background(), Options{})
	assert.Error(t, err)
}

func TestOpen_LoadFailureIsPersistenceError(t *testing.T) {
	db := stubs.NewMemoryDB()
	require.NoError(t, db.Save(context.Background(), storage.Record{Key: storage.KeyBooks, Blob: []byte("{not json")}))

	_, err := Open(context.Background(), Options{Storage: db})
	assert.ErrorIs(t, err, liberrors.ErrPersistence)
}

func TestBorrowReturn_Scenario(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, err := f.lib.AddBook(ctx, "The Three-Body Problem", "Liu Cixin", "978-7-5366-9293-0", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, book.AvailableCopies)

	loanA, err := f.lib.Borrow(ctx, book.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), loanA.BorrowedAt)
	assert.Equal(t, f.clock.Now().Add(14*24*time.Hour), loanA.DueAt)
	assert.True(t, loanA.IsActive())

	got, err := f.lib.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.AvailableCopies)

	aliceLoans, err := f.lib.ListLoansForMember(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceLoans, 1)
	assert.Equal(t, loanA.ID, aliceLoans[0].ID)

	_, err = f.lib.Borrow(ctx, book.ID, "bob")
	require.NoError(t, err)
	_, err = f.lib.Borrow(ctx, book.ID, "carol")
	require.NoError(t, err)

	got, _ = f.lib.GetBook(ctx, book.ID)
	assert.Equal(t, 0, got.AvailableCopies)

	_, err = f.lib.Borrow(ctx, book.ID, "dave")
	assert.ErrorIs(t, err, liberrors.ErrOutOfStock)
	got, _ = f.lib.GetBook(ctx, book.ID)
	assert.Equal(t, 0, got.AvailableCopies)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.lib.ReturnLoan(ctx, loanA.ID))

	got, _ = f.lib.GetBook(ctx, book.ID)
	assert.Equal(t, 1, got.AvailableCopies)

	returned, err := f.lib.GetLoan(ctx, loanA.ID)
	require.NoError(t, err)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, f.clock.Now(), *returned.ReturnedAt)

	active, err := f.lib.ListActiveLoans(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
	for _, l := range active {
		assert.NotEqual(t, loanA.ID, l.ID)
	}

	assertCountersConsistent(t, f.lib)
}

func TestBorrow_OutOfStockLeavesStateUnchanged(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, err := f.lib.AddBook(ctx, "To Live", "Yu Hua", "", 0)
	require.NoError(t, err)
	savesBefore := f.db.SaveCount()

	_, err = f.lib.Borrow(ctx, book.ID, "alice")
	require.ErrorIs(t, err, liberrors.ErrOutOfStock)

	loans, err := f.lib.ListLoans(ctx)
	require.NoError(t, err)
	assert.Empty(t, loans)
	assert.Equal(t, savesBefore, f.db.SaveCount())
}

func TestBorrow_Errors(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, err := f.lib.AddBook(ctx, "Fortress Besieged", "Qian Zhongshu", "", 1)
	require.NoError(t, err)

	testCases := []struct {
		name     string
		bookID   string
		memberID string
		expected error
	}{
		{"unknown book", "missing", "alice", liberrors.ErrNotFound},
		{"empty book id", "", "alice", liberrors.ErrNotFound},
		{"empty member id", book.ID, "", liberrors.ErrValidation},
		{"unknown book before empty member", "missing", "", liberrors.ErrNotFound},
		{"unknown member", book.ID, "zed", liberrors.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.lib.Borrow(ctx, tc.bookID, tc.memberID)
			assert.ErrorIs(t, err, tc.expected)
		})
	}

	got, _ := f.lib.GetBook(ctx, book.ID)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestBorrow_SameMemberSameBookTwice(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, _ := f.lib.AddBook(ctx, "Ordinary World", "Lu Yao", "", 2)

	first, err := f.lib.Borrow(ctx, book.ID, "alice")
	require.NoError(t, err)
	second, err := f.lib.Borrow(ctx, book.ID, "alice")
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assertCountersConsistent(t, f.lib)
}

func TestReturnLoan_IsIdempotent(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, _ := f.lib.AddBook(ctx, "Call to Arms", "Lu Xun", "", 2)
	loan, err := f.lib.Borrow(ctx, book.ID, "alice")
	require.NoError(t, err)
	_, err = f.lib.Borrow(ctx, book.ID, "bob")
	require.NoError(t, err)

	require.NoError(t, f.lib.ReturnLoan(ctx, loan.ID))
	afterFirst, _ := f.lib.GetBook(ctx, book.ID)
	firstReturn, _ := f.lib.GetLoan(ctx, loan.ID)

	f.clock.Advance(time.Hour)
	require.NoError(t, f.lib.ReturnLoan(ctx, loan.ID))
	afterSecond, _ := f.lib.GetBook(ctx, book.ID)
	secondReturn, _ := f.lib.GetLoan(ctx, loan.ID)

	assert.Equal(t, 1, afterFirst.AvailableCopies)
	assert.Equal(t, afterFirst.AvailableCopies, afterSecond.AvailableCopies)
	assert.Equal(t, *firstReturn.ReturnedAt, *secondReturn.ReturnedAt, "return timestamp must never change")
}

func TestReturnLoan_UnknownIsNoop(t *testing.T) {
	f := setupLibrary(t)
	savesBefore := f.db.SaveCount()

	assert.NoError(t, f.lib.ReturnLoan(context.Background(), "does-not-exist"))
	assert.Equal(t, savesBefore, f.db.SaveCount())
}

func TestReturnLoan_ClampsToTotalCopies(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, _ := f.lib.AddBook(ctx, "Sapiens", "Yuval Noah Harari", "", 1)
	loan, err := f.lib.Borrow(ctx, book.ID, "alice")
	require.NoError(t, err)

	// Simulate drift: availability was restored out of band.
	f.lib.mu.Lock()
	f.lib.books[0].AvailableCopies = 1
	f.lib.mu.Unlock()

	require.NoError(t, f.lib.ReturnLoan(ctx, loan.ID))
	got, _ := f.lib.GetBook(ctx, book.ID)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestDeleteBook_WithActiveLoansThenReturnOrphan(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, _ := f.lib.AddBook(ctx, "White Deer Plain", "Chen Zhongshi", "", 2)
	other, _ := f.lib.AddBook(ctx, "Water Margin", "Shi Nai'an", "", 1)
	loan, err := f.lib.Borrow(ctx, book.ID, "alice")
	require.NoError(t, err)

	require.NoError(t, f.lib.DeleteBook(ctx, book.ID))

	books, err := f.lib.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, other.ID, books[0].ID)

	assert.NoError(t, f.lib.ReturnLoan(ctx, loan.ID))
	returned, err := f.lib.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.False(t, returned.IsActive())

	got, _ := f.lib.GetBook(ctx, other.ID)
	assert.Equal(t, 1, got.AvailableCopies)
}

func TestDeleteBook_UnknownIsNoop(t *testing.T) {
	f := setupLibrary(t)
	assert.NoError(t, f.lib.DeleteBook(context.Background(), "missing"))
}

func TestOverdue(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, _ := f.lib.AddBook(ctx, "Journey to the West", "Wu Cheng'en", "", 1)
	loan, err := f.lib.Borrow(ctx, book.ID, "alice")
	require.NoError(t, err)

	overdue, err := f.lib.ListOverdueLoans(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)

	f.clock.Advance(15 * 24 * time.Hour)

	active, err := f.lib.ListActiveLoans(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].IsOverdue(f.lib.Now()))

	overdue, err = f.lib.ListOverdueLoans(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, loan.ID, overdue[0].ID)

	require.NoError(t, f.lib.ReturnLoan(ctx, loan.ID))

	returned, _ := f.lib.GetLoan(ctx, loan.ID)
	assert.False(t, returned.IsOverdue(f.lib.Now()))
	f.clock.Advance(365 * 24 * time.Hour)
	assert.False(t, returned.IsOverdue(f.lib.Now()))

	overdue, err = f.lib.ListOverdueLoans(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestAddBook_ReloadRoundTrip(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	added, err := f.lib.AddBook(ctx, "One Hundred Years of Solitude", "Gabriel García Márquez", "978-0-06-088328-7", 5)
	require.NoError(t, err)
	loan, err := f.lib.Borrow(ctx, added.ID, "bob")
	require.NoError(t, err)

	reloaded := openLibrary(t, f.db, f.clock)

	book, err := reloaded.GetBook(ctx, added.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, book.TotalCopies)
	assert.Equal(t, 4, book.AvailableCopies)

	members, err := reloaded.ListMembers(ctx)
	require.NoError(t, err)
	assert.Len(t, members, 4)

	active, err := reloaded.ListActiveLoans(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, loan.ID, active[0].ID)
	assert.True(t, loan.DueAt.Equal(active[0].DueAt))
}

func TestAddBook_FreshBookRoundTrip(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	_, err := f.lib.AddBook(ctx, "The Kite Runner", "Khaled Hosseini", "", 7)
	require.NoError(t, err)

	books, err := openLibrary(t, f.db, f.clock).ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, 7, books[0].TotalCopies)
	assert.Equal(t, 7, books[0].AvailableCopies)
}

func TestAddBook_AssignsStockCover(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, err := f.lib.AddBook(ctx, "Sapiens", "Yuval Noah Harari", "", 1)
	require.NoError(t, err)
	assert.Contains(t, models.CoverImages, book.CoverURL)

	custom, err := f.lib.CreateBook(ctx, NewBook{Title: "T", Author: "A", CoverURL: "https://example.com/c.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/c.jpg", custom.CoverURL)
}

func TestLoans_ReturnedAtIsNotShared(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, _ := f.lib.AddBook(ctx, "Call to Arms", "Lu Xun", "", 1)
	loan, err := f.lib.Borrow(ctx, book.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, f.lib.ReturnLoan(ctx, loan.ID))

	listed, err := f.lib.ListLoans(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	returnedAt := *listed[0].ReturnedAt
	*listed[0].ReturnedAt = returnedAt.Add(-48 * time.Hour)

	got, err := f.lib.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, got.ReturnedAt.Equal(returnedAt))
	*got.ReturnedAt = time.Time{}

	again, err := f.lib.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, again.ReturnedAt.Equal(returnedAt))
}

func TestAddBook_Validation(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	testCases := []struct {
		name  string
		in    NewBook
		field string
	}{
		{"negative copies", NewBook{Title: "T", Author: "A", TotalCopies: -1}, "total_copies"},
		{"missing title", NewBook{Author: "A", TotalCopies: 1}, "title"},
		{"blank author", NewBook{Title: "T", Author: "   ", TotalCopies: 1}, "author"},
		{"isbn too long", NewBook{Title: "T", Author: "A", ISBN: "978-7-12345678901234"}, "isbn"},
		{"bad cover url", NewBook{Title: "T", Author: "A", CoverURL: "not a url"}, "coverUrl"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.lib.CreateBook(ctx, tc.in)
			require.ErrorIs(t, err, liberrors.ErrValidation)

			var domainErr *liberrors.Error
			require.True(t, errors.As(err, &domainErr))
			assert.Contains(t, domainErr.Details, tc.field)
		})
	}

	books, _ := f.lib.ListBooks(ctx)
	assert.Empty(t, books)
}

func TestListBooks_InsertionOrderAndCopy(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	for _, title := range []string{"Zeta", "Alpha", "Mu"} {
		_, err := f.lib.AddBook(ctx, title, "Author", "", 1)
		require.NoError(t, err)
	}

	books, err := f.lib.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 3)
	assert.Equal(t, "Zeta", books[0].Title)
	assert.Equal(t, "Alpha", books[1].Title)
	assert.Equal(t, "Mu", books[2].Title)

	books[0].AvailableCopies = 99
	again, _ := f.lib.ListBooks(ctx)
	assert.Equal(t, 1, again[0].AvailableCopies)
}

func TestSearchBooks(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	_, _ = f.lib.AddBook(ctx, "Dream of the Red Chamber", "Cao Xueqin", "", 1)
	_, _ = f.lib.AddBook(ctx, "Romance of the Three Kingdoms", "Luo Guanzhong", "", 1)
	_, _ = f.lib.AddBook(ctx, "The Three-Body Problem", "Liu Cixin", "", 1)

	found, err := f.lib.SearchBooks(ctx, "three")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = f.lib.SearchBooks(ctx, "CAO")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Dream of the Red Chamber", found[0].Title)

	found, err = f.lib.SearchBooks(ctx, "")
	require.NoError(t, err)
	assert.Len(t, found, 3)
}

func TestSetDescription(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, _ := f.lib.AddBook(ctx, "Harry Potter and the Philosopher's Stone", "J.K. Rowling", "", 1)
	require.NoError(t, f.lib.SetDescription(ctx, book.ID, "A boy learns he is a wizard."))

	got, _ := f.lib.GetBook(ctx, book.ID)
	assert.Equal(t, "A boy learns he is a wizard.", got.Description)

	err := f.lib.SetDescription(ctx, "missing", "text")
	assert.ErrorIs(t, err, liberrors.ErrNotFound)
}

func TestPersistenceFailure_LeavesStateUnchanged(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, _ := f.lib.AddBook(ctx, "The Miracles of the Namiya General Store", "Keigo Higashino", "", 2)
	loan, err := f.lib.Borrow(ctx, book.ID, "alice")
	require.NoError(t, err)

	f.db.FailSaves(errors.New("quota exceeded"))

	_, err = f.lib.Borrow(ctx, book.ID, "bob")
	assert.ErrorIs(t, err, liberrors.ErrPersistence)

	err = f.lib.ReturnLoan(ctx, loan.ID)
	assert.ErrorIs(t, err, liberrors.ErrPersistence)

	_, err = f.lib.AddBook(ctx, "Unsaved", "Nobody", "", 1)
	assert.ErrorIs(t, err, liberrors.ErrPersistence)

	err = f.lib.DeleteBook(ctx, book.ID)
	assert.ErrorIs(t, err, liberrors.ErrPersistence)

	got, _ := f.lib.GetBook(ctx, book.ID)
	assert.Equal(t, 1, got.AvailableCopies)
	still, _ := f.lib.GetLoan(ctx, loan.ID)
	assert.True(t, still.IsActive())
	books, _ := f.lib.ListBooks(ctx)
	assert.Len(t, books, 1)

	f.db.FailSaves(nil)
	require.NoError(t, f.lib.ReturnLoan(ctx, loan.ID))
	got, _ = f.lib.GetBook(ctx, book.ID)
	assert.Equal(t, 2, got.AvailableCopies)
}

func TestSeedIfEmpty_OnlyOnce(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	called := false
	seeded, err := f.lib.SeedIfEmpty(ctx, func() ([]models.Member, []models.Book) {
		called = true
		return []models.Member{{ID: "x"}}, nil
	})
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.False(t, called)

	members, _ := f.lib.ListMembers(ctx)
	assert.Len(t, members, 4)
}

func TestGetMember(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	m, err := f.lib.GetMember(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Bob", m.Name)

	_, err = f.lib.GetMember(ctx, "nobody")
	assert.ErrorIs(t, err, liberrors.ErrNotFound)
}

func TestStats(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	a, _ := f.lib.AddBook(ctx, "A", "X", "", 3)
	b, _ := f.lib.AddBook(ctx, "B", "Y", "", 2)
	_, err := f.lib.Borrow(ctx, a.ID, "alice")
	require.NoError(t, err)
	f.clock.Advance(20 * 24 * time.Hour)
	loan, err := f.lib.Borrow(ctx, b.ID, "bob")
	require.NoError(t, err)
	_, err = f.lib.Borrow(ctx, b.ID, "carol")
	require.NoError(t, err)
	require.NoError(t, f.lib.ReturnLoan(ctx, loan.ID))

	stats, err := f.lib.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.Stats{
		Titles:          2,
		TotalCopies:     5,
		AvailableCopies: 3,
		LentCopies:      2,
		Members:         4,
		ActiveLoans:     2,
		OverdueLoans:    1,
	}, stats)
}

func TestConcurrentBorrowsNeverOversell(t *testing.T) {
	f := setupLibrary(t)
	ctx := context.Background()

	book, _ := f.lib.AddBook(ctx, "Contended", "Author", "", 5)
	members := []string{"alice", "bob", "carol", "dave"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(member string) {
			defer wg.Done()
			if _, err := f.lib.Borrow(ctx, book.ID, member); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, liberrors.ErrOutOfStock)
			}
		}(members[i%len(members)])
	}
	wg.Wait()

	assert.Equal(t, 5, successes)
	assertCountersConsistent(t, f.lib)
}

func TestCanceledContext(t *testing.T) {
	f := setupLibrary(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.lib.Borrow(ctx, "b", "alice")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = f.lib.ListBooks(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
