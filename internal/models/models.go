package models

import "time"

// Role distinguishes library staff from borrowers
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// CoverImages are the stock covers given to books added without one.
var CoverImages = []string{
	"https://images.unsplash.com/photo-1544947950-fa07a98d237f?auto=format&fit=crop&w=400&q=80",
	"https://images.unsplash.com/photo-1512820790803-83ca734da794?auto=format&fit=crop&w=400&q=80",
	"https://images.unsplash.com/photo-1543002588-bfa74002ed7e?auto=format&fit=crop&w=400&q=80",
	"https://images.unsplash.com/photo-1589829085413-56de8ae18c73?auto=format&fit=crop&w=400&q=80",
	"https://images.unsplash.com/photo-1532012197267-da84d127e765?auto=format&fit=crop&w=400&q=80",
	"https://images.unsplash.com/photo-1497633762265-9d179a990aa6?auto=format&fit=crop&w=400&q=80",
	"https://images.unsplash.com/photo-1495446815901-a7297e633e8d?auto=format&fit=crop&w=400&q=80",
	"https://images.unsplash.com/photo-1541963463532-d68292c34b19?auto=format&fit=crop&w=400&q=80",
}

// Book represents a catalog entry and its copy counters
type Book struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
	CoverURL        string `json:"coverUrl,omitempty"`
	Category        string `json:"category,omitempty"`
	Description     string `json:"description,omitempty"`
}

// LentCopies returns how many copies are currently checked out
func (b Book) LentCopies() int {
	return b.TotalCopies - b.AvailableCopies
}

// Member represents a library user
type Member struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
}

// LoanRecord represents one borrow of one copy.
// ReturnedAt is nil while the copy is checked out.
type LoanRecord struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id"`
	MemberID   string     `json:"user_id"`
	BorrowedAt time.Time  `json:"borrow_date"`
	DueAt      time.Time  `json:"due_date"`
	ReturnedAt *time.Time `json:"return_date"`
}

// Detached returns a copy that shares no memory with l.
func (l LoanRecord) Detached() LoanRecord {
	if l.ReturnedAt != nil {
		t := *l.ReturnedAt
		l.ReturnedAt = &t
	}
	return l
}

// IsActive reports whether the loan has not been returned yet
func (l LoanRecord) IsActive() bool {
	return l.ReturnedAt == nil
}

// IsOverdue reports whether the loan is active and past its due date
func (l LoanRecord) IsOverdue(now time.Time) bool {
	return l.IsActive() && l.DueAt.Before(now)
}

// Stats is a dashboard summary of the collection
type Stats struct {
	Titles          int `json:"titles"`
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
	LentCopies      int `json:"lent_copies"`
	Members         int `json:"members"`
	ActiveLoans     int `json:"active_loans"`
	OverdueLoans    int `json:"overdue_loans"`
}
