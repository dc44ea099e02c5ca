package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/validator-dashboard/internal/types"

	apperrors "github.com/validator-dashboard/internal/errors"
)

// handleListNetworks handles GET /api/networks
func (s *Server) handleListNetworks(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.dashboard.ListNetworks())
}

// handleAllLatest handles GET /api/networks/latest
func (s *Server) handleAllLatest(w http.ResponseWriter, r *http.Request) {
	results, err := s.dashboard.GetAllLatest(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, results)
}

// handleNetworkLatest handles GET /api/networks/{network}
func (s *Server) handleNetworkLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := s.dashboard.GetLatest(r.Context(), mux.Vars(r)["network"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	if latest == nil {
		respondJSON(w, http.StatusOK, struct{}{})
		return
	}
	respondJSON(w, http.StatusOK, latest)
}

// handleLatestPerValidator handles GET /api/networks/{network}/latest
func (s *Server) handleLatestPerValidator(w http.ResponseWriter, r *http.Request) {
	rows, err := s.dashboard.GetLatestPerValidator(r.Context(), mux.Vars(r)["network"])
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// handleHistory handles GET /api/networks/{network}/history?range=&since=
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := s.dashboard.GetHistory(r.Context(), mux.Vars(r)["network"], q.Get("range"), q.Get("since"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleNormalized handles GET /api/networks/{network}/usd?field=&range=&since=
func (s *Server) handleNormalized(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	field, ok := parseField(q.Get("field"))
	if !ok {
		respondServiceError(w, r, apperrors.NewInvalidParameterError("field", "must be 'self' or 'external'"))
		return
	}

	result, err := s.dashboard.GetNormalizedHistory(r.Context(), mux.Vars(r)["network"], field, q.Get("range"), q.Get("since"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleMonthly handles GET /api/networks/{network}/monthly?window=
func (s *Server) handleMonthly(w http.ResponseWriter, r *http.Request) {
	result, err := s.dashboard.GetMonthlyRewards(r.Context(), mux.Vars(r)["network"], r.URL.Query().Get("window"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleOverlay handles GET /api/networks/overlay?field=&range=
func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	field, ok := parseField(q.Get("field"))
	if !ok {
		respondServiceError(w, r, apperrors.NewInvalidParameterError("field", "must be 'self' or 'external'"))
		return
	}

	result, err := s.dashboard.GetOverlay(r.Context(), field, q.Get("range"))
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// parseField reads the delegation field, defaulting to self
func parseField(raw string) (types.DelegationField, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return types.FieldSelf, true
	}
	return types.ParseDelegationField(raw)
}
