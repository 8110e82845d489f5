// Package audit writes compliance log entries for state-changing actions.
// Writes are best-effort: entries are handed to a background worker and
// failures are logged server-side, never surfaced to the caller. The log
// table is written with the service-level credential because the acting
// principal's own credentials are not trusted for compliance records.
package audit

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tutorgate.org/internal/ids"
	"tutorgate.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// Entry is one append-only compliance record.
type Entry struct {
	ID            string
	AppointmentID string
	UserID        string
	TutorID       string
	Event         string
	Payload       map[string]any
	RequestID     string
	OccurredAt    time.Time
}

// Store persists entries with elevated credentials.
type Store interface {
	InsertComplianceEntry(ctx context.Context, entry Entry) error
}

// Logger dispatches entries asynchronously so compliance latency or
// failure never affects the triggering request.
type Logger struct {
	store   Store
	queue   chan Entry
	wg      sync.WaitGroup
	dropped atomic.Int64

	closeOnce sync.Once
}

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
)

// NewLogger starts the background writer.
func NewLogger(store Store, queueSize int) *Logger {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	l := &Logger{
		store: store,
		queue: make(chan Entry, queueSize),
	}
	l.wg.Add(1)
	go l.run()
	return l
}

// Record enqueues an entry without blocking. A full queue drops the entry
// and logs the drop.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	if entry.RequestID == "" {
		entry.RequestID = RequestIDFromContext(ctx)
	}

	select {
	case l.queue <- entry:
	default:
		l.dropped.Add(1)
		l.logFailure("compliance queue full, entry dropped", entry, nil)
	}
}

// Close drains the queue and stops the worker.
func (l *Logger) Close() {
	l.closeOnce.Do(func() {
		close(l.queue)
	})
	l.wg.Wait()
}

func (l *Logger) run() {
	defer l.wg.Done()
	for entry := range l.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := l.store.InsertComplianceEntry(ctx, entry)
		cancel()
		if err != nil {
			l.logFailure("compliance write failed", entry, err)
		}
	}
}

func (l *Logger) logFailure(msg string, entry Entry, err error) {
	line := map[string]any{
		"ts":             time.Now().UTC().Format(time.RFC3339Nano),
		"level":          "error",
		"msg":            msg,
		"event":          entry.Event,
		"appointment_id": entry.AppointmentID,
	}
	if entry.RequestID != "" {
		line["request_id"] = entry.RequestID
	}
	if err != nil {
		line["error"] = err.Error()
	}
	obs.LogRequest(line)
}
