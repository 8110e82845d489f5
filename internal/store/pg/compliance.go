package pg

import (
	"context"
	"encoding/json"

	"tutorgate.org/internal/audit"
)

// InsertComplianceEntry appends one compliance record. The table accepts
// inserts from the service credential only.
func (s *Store) InsertComplianceEntry(ctx context.Context, entry audit.Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into tutoring_logs(id, appointment_id, user_id, tutor_id, event, payload, request_id, occurred_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		entry.ID, entry.AppointmentID, entry.UserID, entry.TutorID,
		entry.Event, payload, nullable(entry.RequestID), entry.OccurredAt,
	)
	return err
}
