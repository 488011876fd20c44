package api

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	liberrors "lms/internal/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Envelope is the shape of every JSON response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, env Envelope, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(env); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

func success(w http.ResponseWriter, data any, logger *zap.Logger) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data}, logger)
}

func created(w http.ResponseWriter, data any, logger *zap.Logger) {
	writeJSON(w, http.StatusCreated, Envelope{Success: true, Data: data}, logger)
}

// handleError maps domain errors to their HTTP status. Anything else is a 500.
func handleError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var domainErr *liberrors.Error
	if liberrors.As(err, &domainErr) {
		status := domainErr.HTTPStatus()
		if status >= http.StatusInternalServerError {
			logger.Error("Request failed", zap.Error(err))
		}
		writeJSON(w, status, Envelope{
			Error:   domainErr.Message,
			Code:    string(domainErr.Code),
			Details: domainErr.Details,
		}, logger)
		return
	}

	logger.Error("Unhandled error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, Envelope{Error: "internal server error"}, logger)
}

// decodeBody reads a JSON request body into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return liberrors.Validation("invalid request body").WithCause(err)
	}
	return nil
}
