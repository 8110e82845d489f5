package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"tutorgate.org/internal/schedule"
)

// CreateAppointment inserts the row and translates a row-level security
// denial into the broker's access error.
func (s *Store) CreateAppointment(ctx context.Context, appt *schedule.Appointment) error {
	err := s.db.QueryRowContext(ctx, `
		insert into tutoring_appointments(id, user_id, tutor_id, start_time, status, notes)
		values ($1,$2,$3,$4,$5,$6)
		returning created_at
	`,
		appt.ID, appt.UserID, appt.TutorID, appt.StartTime, appt.Status, nullable(appt.Notes),
	).Scan(&appt.CreatedAt)
	if err != nil {
		if isRLSDenial(err) {
			return schedule.ErrDenied
		}
		return err
	}
	return nil
}

// GetAppointment loads one appointment by id.
func (s *Store) GetAppointment(ctx context.Context, id string) (*schedule.Appointment, error) {
	appt := &schedule.Appointment{}
	var notes sql.NullString
	var created time.Time
	err := s.db.QueryRowContext(ctx, `
		select id, user_id, tutor_id, start_time, status, notes, created_at
		from tutoring_appointments where id = $1
	`, id).Scan(&appt.ID, &appt.UserID, &appt.TutorID, &appt.StartTime, &appt.Status, &notes, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, schedule.ErrNotFound
		}
		return nil, err
	}
	appt.Notes = notes.String
	appt.CreatedAt = created
	return appt, nil
}
