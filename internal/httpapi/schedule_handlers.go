package httpapi

import (
	"errors"
	"net/http"
	"time"

	"tutorgate.org/internal/auth"
	"tutorgate.org/internal/schedule"
)

type scheduleRequest struct {
	Action     string `json:"action"`
	TutorID    string `json:"tutor_id,omitempty"`
	StartTime  string `json:"start_time,omitempty"`
	Notes      string `json:"notes,omitempty"`
	PathToFile string `json:"path_to_file,omitempty"`
}

// handleSchedule dispatches the broker actions. The principal is placed
// in the context by the auth middleware.
func (a *API) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "unauthorized: missing session")
		return
	}
	if a.broker == nil {
		writeError(w, r, http.StatusInternalServerError, "scheduling backend is not configured")
		return
	}

	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	switch req.Action {
	case "schedule":
		a.handleScheduleCreate(w, r, principal, req)
	case "get_signed_url":
		a.handleSignedURL(w, r, principal, req)
	default:
		writeError(w, r, http.StatusBadRequest, "invalid action")
	}
}

func (a *API) handleScheduleCreate(w http.ResponseWriter, r *http.Request, principal auth.Principal, req scheduleRequest) {
	if req.TutorID == "" || req.StartTime == "" {
		writeError(w, r, http.StatusBadRequest, "tutor_id and start_time are required")
		return
	}
	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "start_time must be RFC 3339")
		return
	}

	appt, err := a.broker.Schedule(r.Context(), principal, req.TutorID, startTime, req.Notes)
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, "tutor_id and start_time are required")
		case errors.Is(err, schedule.ErrDenied):
			writeError(w, r, http.StatusForbidden, "not allowed to schedule this appointment")
		default:
			logServerError(r, "appointment create failed", err)
			writeError(w, r, http.StatusInternalServerError, "failed to schedule appointment")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"appointment": appt,
	})
}

func (a *API) handleSignedURL(w http.ResponseWriter, r *http.Request, principal auth.Principal, req scheduleRequest) {
	if req.PathToFile == "" {
		writeError(w, r, http.StatusBadRequest, "path_to_file is required")
		return
	}

	grant, err := a.broker.SignedRecordingURL(r.Context(), principal, req.PathToFile)
	if err != nil {
		switch {
		case errors.Is(err, schedule.ErrInvalidInput):
			writeError(w, r, http.StatusBadRequest, "invalid file path")
		case errors.Is(err, schedule.ErrDenied):
			writeError(w, r, http.StatusForbidden, "not allowed to access this recording")
		default:
			logServerError(r, "signed url failed", err)
			writeError(w, r, http.StatusInternalServerError, "failed to sign recording url")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"signed_url": grant.URL,
		"expires_in": grant.ExpiresIn,
	})
}
