// Package schedule brokers access to scheduling resources and stored
// session media. Row-level authorization on the appointment table belongs
// to the data store; this layer translates its denials and enforces the
// user-or-tutor ownership rule before minting media grants.
package schedule

import (
	"context"
	"errors"
	"strings"
	"time"

	"tutorgate.org/internal/audit"
	"tutorgate.org/internal/auth"
	"tutorgate.org/internal/ids"
	"tutorgate.org/internal/storage"
)

// StatusScheduled is the initial appointment status.
const StatusScheduled = "scheduled"

var (
	// ErrInvalidInput covers missing fields and malformed media paths.
	ErrInvalidInput = errors.New("schedule: invalid input")
	// ErrDenied means the principal is not entitled to the resource,
	// whether by local ownership check or by store-level policy.
	ErrDenied = errors.New("schedule: access denied")
	// ErrNotFound means the referenced appointment does not exist.
	ErrNotFound = errors.New("schedule: appointment not found")
)

// Appointment is a scheduling record owned jointly by the requesting user
// and the assigned tutor.
type Appointment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	TutorID   string    `json:"tutor_id"`
	StartTime time.Time `json:"start_time"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// AppointmentStore persists appointments. Create returns ErrDenied when
// the store's row-level policy rejects the write.
type AppointmentStore interface {
	CreateAppointment(ctx context.Context, appt *Appointment) error
	GetAppointment(ctx context.Context, id string) (*Appointment, error)
}

// Service is the access broker.
type Service struct {
	store      AppointmentStore
	signer     storage.URLSigner
	compliance *audit.Logger
}

// NewService wires the broker. The compliance logger may be nil in tests.
func NewService(store AppointmentStore, signer storage.URLSigner, compliance *audit.Logger) *Service {
	return &Service{store: store, signer: signer, compliance: compliance}
}

// Schedule inserts an appointment scoped to the principal and fires the
// compliance log best-effort.
func (s *Service) Schedule(ctx context.Context, principal auth.Principal, tutorID string, startTime time.Time, notes string) (*Appointment, error) {
	tutorID = strings.TrimSpace(tutorID)
	if tutorID == "" || startTime.IsZero() {
		return nil, ErrInvalidInput
	}

	appt := &Appointment{
		ID:        ids.New(),
		UserID:    principal.UserID,
		TutorID:   tutorID,
		StartTime: startTime,
		Status:    StatusScheduled,
		Notes:     strings.TrimSpace(notes),
	}
	if err := s.store.CreateAppointment(ctx, appt); err != nil {
		return nil, err
	}

	if s.compliance != nil {
		s.compliance.Record(ctx, audit.Entry{
			AppointmentID: appt.ID,
			UserID:        appt.UserID,
			TutorID:       appt.TutorID,
			Event:         "appointment_scheduled",
			Payload: map[string]any{
				"start_time": appt.StartTime.UTC().Format(time.RFC3339),
				"status":     appt.Status,
			},
		})
	}
	return appt, nil
}

// SignedRecordingURL validates the media path, checks that the principal
// owns the referenced appointment and mints a time-limited grant.
func (s *Service) SignedRecordingURL(ctx context.Context, principal auth.Principal, pathToFile string) (storage.Grant, error) {
	segments := splitPath(pathToFile)
	if len(segments) < 2 {
		return storage.Grant{}, ErrInvalidInput
	}
	for _, seg := range segments {
		if seg == ".." {
			return storage.Grant{}, ErrInvalidInput
		}
	}

	appointmentID := segments[0]
	appt, err := s.store.GetAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return storage.Grant{}, ErrDenied
		}
		return storage.Grant{}, err
	}
	if principal.UserID != appt.UserID && principal.UserID != appt.TutorID {
		return storage.Grant{}, ErrDenied
	}

	return s.signer.SignedURL(ctx, strings.Join(segments, "/"))
}

func splitPath(path string) []string {
	var out []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
