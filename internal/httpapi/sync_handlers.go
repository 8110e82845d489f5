package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"tutorgate.org/internal/booksync"
)

type syncRequest struct {
	StartPosition int `json:"start_position"`
	BatchSize     int `json:"batch_size"`
}

// handleSync runs one accounting sync pass. The body is optional; absent
// or unreadable cursors fall back to the first page with the default
// batch size so a bare POST always works.
func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.sync == nil {
		writeError(w, r, http.StatusInternalServerError, "accounting integration is not configured")
		return
	}

	req := syncRequest{StartPosition: 1, BatchSize: 100}
	if r.Body != nil {
		var body syncRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			if body.StartPosition > 0 {
				req.StartPosition = body.StartPosition
			}
			if body.BatchSize > 0 {
				req.BatchSize = body.BatchSize
			}
		}
	}

	result, err := a.sync.Sync(r.Context(), req.StartPosition, req.BatchSize)
	if err != nil {
		switch {
		case errors.Is(err, booksync.ErrNotConfigured):
			writeError(w, r, http.StatusInternalServerError, "accounting integration is not configured")
		case errors.Is(err, booksync.ErrCredentialsExpired):
			writeError(w, r, http.StatusUnauthorized, "accounting access token expired, reconnect required")
		case errors.Is(err, booksync.ErrUpstream):
			logServerError(r, "accounting api request failed", err)
			writeError(w, r, http.StatusBadGateway, "accounting api request failed")
		default:
			logServerError(r, "customer sync failed", err)
			writeError(w, r, http.StatusInternalServerError, "customer synchronization failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":             true,
		"imported_count":      result.ImportedCount,
		"next_start_position": result.NextStartPosition,
		"has_more":            result.HasMore,
		"request_id":          RequestIDFromContext(r.Context()),
	})
}
