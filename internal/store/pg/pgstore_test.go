package pg

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"tutorgate.org/internal/audit"
	"tutorgate.org/internal/booksync"
	"tutorgate.org/internal/schedule"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db), mock
}

func TestUpsertCustomers(t *testing.T) {
	store, mock := newMockStore(t)

	records := []booksync.CustomerRecord{
		{ExternalID: "1", FirstName: "Ada", Source: booksync.Source, UpdatedAt: time.Now()},
		{ExternalID: "2", CompanyName: "Acme", Source: booksync.Source, UpdatedAt: time.Now()},
	}

	mock.ExpectBegin()
	for range records {
		mock.ExpectExec("insert into customers").
			WithArgs(
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	if err := store.UpsertCustomers(context.Background(), records); err != nil {
		t.Fatalf("UpsertCustomers: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpsertCustomersEmptyBatchSkipsTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	if err := store.UpsertCustomers(context.Background(), nil); err != nil {
		t.Fatalf("UpsertCustomers(nil): %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database activity: %v", err)
	}
}

func TestUpsertCustomersRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into customers").
		WithArgs(
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := store.UpsertCustomers(context.Background(), []booksync.CustomerRecord{{ExternalID: "1"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateAppointmentRLSDenial(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into tutoring_appointments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "42501", Message: "new row violates row-level security policy"})

	appt := &schedule.Appointment{ID: "a1", UserID: "u1", TutorID: "t1", StartTime: time.Now(), Status: schedule.StatusScheduled}
	if err := store.CreateAppointment(context.Background(), appt); !errors.Is(err, schedule.ErrDenied) {
		t.Fatalf("expected schedule.ErrDenied, got %v", err)
	}
}

func TestCreateAppointmentSuccess(t *testing.T) {
	store, mock := newMockStore(t)

	created := time.Now().UTC()
	mock.ExpectQuery("insert into tutoring_appointments").
		WithArgs("a1", "u1", "t1", sqlmock.AnyArg(), schedule.StatusScheduled, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(created))

	appt := &schedule.Appointment{ID: "a1", UserID: "u1", TutorID: "t1", StartTime: time.Now(), Status: schedule.StatusScheduled}
	if err := store.CreateAppointment(context.Background(), appt); err != nil {
		t.Fatalf("CreateAppointment: %v", err)
	}
	if !appt.CreatedAt.Equal(created) {
		t.Fatalf("created_at not captured: %v", appt.CreatedAt)
	}
}

func TestGetAppointmentNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select id, user_id, tutor_id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.GetAppointment(context.Background(), "missing"); !errors.Is(err, schedule.ErrNotFound) {
		t.Fatalf("expected schedule.ErrNotFound, got %v", err)
	}
}

func TestGetAppointment(t *testing.T) {
	store, mock := newMockStore(t)

	start := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "tutor_id", "start_time", "status", "notes", "created_at"}).
		AddRow("a1", "u1", "t1", start, "scheduled", nil, start)
	mock.ExpectQuery("select id, user_id, tutor_id").WithArgs("a1").WillReturnRows(rows)

	appt, err := store.GetAppointment(context.Background(), "a1")
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if appt.UserID != "u1" || appt.TutorID != "t1" || appt.Notes != "" {
		t.Fatalf("unexpected appointment: %+v", appt)
	}
}

func TestInsertComplianceEntry(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into tutoring_logs").
		WithArgs("id-1", "a1", "u1", "t1", "appointment_scheduled", sqlmock.AnyArg(), "req-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := audit.Entry{
		ID:            "id-1",
		AppointmentID: "a1",
		UserID:        "u1",
		TutorID:       "t1",
		Event:         "appointment_scheduled",
		Payload:       map[string]any{"status": "scheduled"},
		RequestID:     "req-1",
		OccurredAt:    time.Now().UTC(),
	}
	if err := store.InsertComplianceEntry(context.Background(), entry); err != nil {
		t.Fatalf("InsertComplianceEntry: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
