package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/foliosync/foliosync/internal/models"
	"github.com/foliosync/foliosync/internal/services/tracker"
)

// --- Tracker handlers ---

// handleStatus handles GET /api/status, a pure read of cached engine state.
// Always 200; a failing source shows up in the payload, not the status code.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, s.app.Tracker.Status(r.Context()))
}

// handleSync handles POST /api/sync, triggering one sync cycle.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	result, err := s.app.Tracker.SyncNow(r.Context())
	if err != nil {
		if errors.Is(err, tracker.ErrSyncInProgress) {
			WriteErrorWithCode(w, http.StatusConflict, "sync already in progress", "sync_in_progress")
			return
		}

		// The cycle failed but cached state survives; tell the caller what
		// failed and what they are still looking at.
		status := s.app.Tracker.Status(r.Context())
		WriteJSON(w, http.StatusBadGateway, map[string]interface{}{
			"error":        err.Error(),
			"kind":         string(models.KindOf(err)),
			"stale":        status.Stale,
			"has_snapshot": status.HasSnapshot,
		})
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// handleAnalytics handles GET /api/analytics?days=N.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = v
	}

	report, err := s.app.Tracker.RunAnalytics(r.Context(), days)
	if err != nil {
		if models.IsValidation(err) {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteErrorWithCode(w, http.StatusBadGateway, err.Error(), string(models.KindOf(err)))
		return
	}

	WriteJSON(w, http.StatusOK, report)
}
