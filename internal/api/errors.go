package api

import (
	"encoding/json"
	"net/http"

	"github.com/validator-dashboard/internal/logging"
	"github.com/validator-dashboard/internal/types"

	apperrors "github.com/validator-dashboard/internal/errors"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	respondJSON(w, statusCode, ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			logging.WithError(err).Warn("failed to encode response")
		}
	}
}

// respondServiceError maps a service error onto its HTTP status. System
// errors are logged with the request's logger and reported generically,
// carrying only the request ID so the log entry can be found.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)

	if apperrors.IsSystemError(catErr) {
		logging.FromContext(r.Context()).
			WithField("path", r.URL.Path).
			ErrorWithErr("request failed", err)
		var details map[string]interface{}
		if id := logging.RequestIDFromContext(r.Context()); id != "" {
			details = map[string]interface{}{"request_id": id}
		}
		respondError(w, catErr.StatusCode, catErr.Code, "An internal error occurred", details)
		return
	}

	respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
}
