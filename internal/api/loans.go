package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	liberrors "lms/internal/errors"
	"lms/internal/models"
)

// LoanView is a loan record as served to clients, with its overdue state
// evaluated at response time.
type LoanView struct {
	models.LoanRecord
	Overdue bool `json:"overdue"`
}

// BorrowRequest is the body of POST /api/loans.
type BorrowRequest struct {
	BookID string `json:"book_id"`
	UserID string `json:"user_id"`
}

func toLoanViews(loans []models.LoanRecord, now time.Time) []LoanView {
	views := make([]LoanView, 0, len(loans))
	for _, l := range loans {
		views = append(views, LoanView{LoanRecord: l, Overdue: l.IsOverdue(now)})
	}
	return views
}

// handleListLoans filters by ?status=active|overdue|all (default all).
func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		loans []models.LoanRecord
		err   error
	)
	switch status := r.URL.Query().Get("status"); status {
	case "", "all":
		loans, err = s.lib.ListLoans(ctx)
	case "active":
		loans, err = s.lib.ListActiveLoans(ctx)
	case "overdue":
		loans, err = s.lib.ListOverdueLoans(ctx)
	default:
		err = liberrors.ValidationWithDetails("invalid status filter", map[string]string{
			"status": "must be one of active, overdue, all",
		})
	}
	if err != nil {
		handleError(w, err, s.logger)
		return
	}

	success(w, toLoanViews(loans, s.lib.Now()), s.logger)
}

func (s *Server) handleBorrow(w http.ResponseWriter, r *http.Request) {
	var req BorrowRequest
	if err := decodeBody(w, r, &req); err != nil {
		handleError(w, err, s.logger)
		return
	}
	if req.BookID == "" {
		handleError(w, liberrors.Validation("book_id is required"), s.logger)
		return
	}

	loan, err := s.lib.Borrow(r.Context(), req.BookID, req.UserID)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	created(w, LoanView{LoanRecord: loan}, s.logger)
}

// handleReturn returns a loan. Returning an already returned loan succeeds
// and serves the unchanged record.
func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loanID := chi.URLParam(r, "id")

	if err := s.lib.ReturnLoan(ctx, loanID); err != nil {
		handleError(w, err, s.logger)
		return
	}

	loan, err := s.lib.GetLoan(ctx, loanID)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, LoanView{LoanRecord: loan, Overdue: loan.IsOverdue(s.lib.Now())}, s.logger)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.lib.ListMembers(r.Context())
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, members, s.logger)
}

func (s *Server) handleMemberLoans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	memberID := chi.URLParam(r, "id")

	if _, err := s.lib.GetMember(ctx, memberID); err != nil {
		handleError(w, err, s.logger)
		return
	}

	loans, err := s.lib.ListLoansForMember(ctx, memberID)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, toLoanViews(loans, s.lib.Now()), s.logger)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.lib.Stats(r.Context())
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, stats, s.logger)
}
