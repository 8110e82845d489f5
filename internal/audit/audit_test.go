package audit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"tutorgate.org/internal/obs"
)

type captureStore struct {
	mu      sync.Mutex
	entries []Entry
	err     error
	block   chan struct{}
}

func (s *captureStore) InsertComplianceEntry(ctx context.Context, entry Entry) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, entry)
	return nil
}

func TestRecordWritesEntry(t *testing.T) {
	store := &captureStore{}
	logger := NewLogger(store, 8)

	ctx := WithRequestID(context.Background(), "req-1")
	logger.Record(ctx, Entry{
		AppointmentID: "appt-1",
		UserID:        "user-1",
		TutorID:       "tutor-1",
		Event:         "appointment_scheduled",
		Payload:       map[string]any{"status": "scheduled"},
	})
	logger.Close()

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(store.entries))
	}
	got := store.entries[0]
	if got.ID == "" || got.OccurredAt.IsZero() {
		t.Fatalf("id and timestamp must be filled: %+v", got)
	}
	if got.RequestID != "req-1" {
		t.Fatalf("request id not propagated: %+v", got)
	}
}

func TestWriteFailureIsSwallowed(t *testing.T) {
	logger := obsLoggerBuffer(t)

	store := &captureStore{err: errors.New("db down")}
	l := NewLogger(store, 8)
	l.Record(context.Background(), Entry{Event: "appointment_scheduled", AppointmentID: "a1"})
	l.Close()

	if !strings.Contains(logger.String(), "compliance write failed") {
		t.Fatalf("expected failure log, got %q", logger.String())
	}
}

func TestFullQueueDropsWithoutBlocking(t *testing.T) {
	_ = obsLoggerBuffer(t)

	release := make(chan struct{})
	store := &captureStore{block: release}
	l := NewLogger(store, 1)

	// first entry occupies the worker, second fills the queue
	l.Record(context.Background(), Entry{Event: "e1"})
	l.Record(context.Background(), Entry{Event: "e2"})

	done := make(chan struct{})
	go func() {
		l.Record(context.Background(), Entry{Event: "e3"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on full queue")
	}

	close(release)
	l.Close()

	if l.dropped.Load() == 0 {
		t.Fatal("expected at least one dropped entry")
	}
}

func TestRequestIDContext(t *testing.T) {
	if got := RequestIDFromContext(context.Background()); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}
	ctx := WithRequestID(context.Background(), "  ")
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("blank request id must not be stored, got %q", got)
	}
	ctx = WithRequestID(context.Background(), "req-9")
	if got := RequestIDFromContext(ctx); got != "req-9" {
		t.Fatalf("unexpected request id: %q", got)
	}
}

func obsLoggerBuffer(t *testing.T) *bytes.Buffer {
	t.Helper()
	logger := obs.Logger()
	original := logger.Writer()
	logger.SetFlags(0)
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(original) })
	return &buf
}
