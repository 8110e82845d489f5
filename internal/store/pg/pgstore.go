// Package pg persists the integration layer's rows: reconciled customers,
// tutoring appointments and the append-only compliance log. The connection
// runs with the service credential; appointment authorization stays with
// the database's row-level policies, whose denials are translated here.
package pg

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"tutorgate.org/internal/audit"
	"tutorgate.org/internal/booksync"
	"tutorgate.org/internal/schedule"
)

// pgInsufficientPrivilege is the SQLSTATE raised by a row-level security
// denial.
const pgInsufficientPrivilege = "42501"

type Store struct {
	db *sql.DB
}

var (
	_ booksync.CustomerStore    = (*Store)(nil)
	_ schedule.AppointmentStore = (*Store)(nil)
	_ audit.Store               = (*Store)(nil)
)

// Open connects with tuned pool defaults.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing handle; used by tests.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// isRLSDenial reports whether err is a row-level security rejection.
func isRLSDenial(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInsufficientPrivilege
}

// nullable coerces empty strings to NULL.
func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
