package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"lms/internal/insight"
	"lms/internal/library"
)

// BlurbResponse is returned by the blurb endpoint.
type BlurbResponse struct {
	BookID string `json:"book_id"`
	Blurb  string `json:"blurb"`
	Cached bool   `json:"cached"`
}

// handleListBooks returns the catalog, or the books matching ?q=.
func (s *Server) handleListBooks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		books, err := s.lib.SearchBooks(ctx, q)
		if err != nil {
			handleError(w, err, s.logger)
			return
		}
		success(w, books, s.logger)
		return
	}

	books, err := s.lib.ListBooks(ctx)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, books, s.logger)
}

func (s *Server) handleCreateBook(w http.ResponseWriter, r *http.Request) {
	var req library.NewBook
	if err := decodeBody(w, r, &req); err != nil {
		handleError(w, err, s.logger)
		return
	}

	book, err := s.lib.CreateBook(r.Context(), req)
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	created(w, book, s.logger)
}

func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.lib.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err, s.logger)
		return
	}
	success(w, book, s.logger)
}

func (s *Server) handleDeleteBook(w http.ResponseWriter, r *http.Request) {
	if err := s.lib.DeleteBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		handleError(w, err, s.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleBookBlurb serves the stored description, generating and caching one
// on first request. Generation runs outside any library lock.
func (s *Server) handleBookBlurb(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	book, err := s.lib.GetBook(ctx, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err, s.logger)
		return
	}

	if book.Description != "" {
		success(w, BlurbResponse{BookID: book.ID, Blurb: book.Description, Cached: true}, s.logger)
		return
	}

	blurb := s.insight.GenerateBlurb(ctx, book.Title, book.Author)
	if blurb != insight.FallbackEmpty && blurb != insight.FallbackUnavailable {
		if err := s.lib.SetDescription(ctx, book.ID, blurb); err != nil {
			s.logger.Warn("Failed to cache book blurb",
				zap.Error(err),
				zap.String("book_id", book.ID),
			)
		}
	}

	success(w, BlurbResponse{BookID: book.ID, Blurb: blurb}, s.logger)
}
