// Package httpapi is the HTTP surface of the integration layer: the OAuth
// round-trip, the accounting sync trigger and the scheduling/media access
// broker, plus the usual health and metrics plumbing.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"tutorgate.org/internal/auth"
	"tutorgate.org/internal/booksync"
	"tutorgate.org/internal/cookies"
	"tutorgate.org/internal/oauth"
	"tutorgate.org/internal/oauthstate"
	"tutorgate.org/internal/obs"
	"tutorgate.org/internal/schedule"
)

// ReadyProbe checks readiness dependencies (DB ping when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Syncer runs one accounting sync pass.
type Syncer interface {
	Sync(ctx context.Context, startPosition, batchSize int) (booksync.Result, error)
}

// Deps carries the wired collaborators. Sync and Broker may be nil when
// their configuration is absent; the endpoints then report that instead
// of panicking.
type Deps struct {
	States          *oauthstate.Signer
	Cookies         cookies.Codec
	OAuth           *oauth.Coordinator
	Sync            Syncer
	Broker          *schedule.Service
	Verifier        *auth.Verifier
	DefaultRedirect string
	AllowedOrigins  []string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	states          *oauthstate.Signer
	cookies         cookies.Codec
	oauth           *oauth.Coordinator
	sync            Syncer
	broker          *schedule.Service
	verifier        *auth.Verifier
	defaultRedirect string
	allowedOrigins  []string

	rateBurst  int
	ratePerSec int
}

func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:             http.NewServeMux(),
		readyProbe:      rp,
		version:         version,
		states:          deps.States,
		cookies:         deps.Cookies,
		oauth:           deps.OAuth,
		sync:            deps.Sync,
		broker:          deps.Broker,
		verifier:        deps.Verifier,
		defaultRedirect: deps.DefaultRedirect,
		allowedOrigins:  deps.AllowedOrigins,
		rateBurst:       20,
		ratePerSec:      10,
	}
	if a.defaultRedirect == "" {
		a.defaultRedirect = "/"
	}

	a.mux.HandleFunc("/oauth/start", a.handleOAuthStart)
	a.mux.HandleFunc("/oauth/callback", a.handleOAuthCallback)
	a.mux.HandleFunc("/oauth/signout", a.handleOAuthSignout)
	a.mux.HandleFunc("/sync", a.handleSync)
	a.mux.HandleFunc("/schedule", a.handleSchedule)

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.withAuth(a.mux)
	h = LoggingJSON(h)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h, a.allowedOrigins)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tutorgate-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "tutorgate-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
		"endpoints": map[string]any{
			"oauth_start":    "/oauth/start?redirect_to=/",
			"oauth_callback": "/oauth/callback",
			"oauth_signout":  map[string]string{"path": "/oauth/signout", "method": "POST"},
			"sync":           map[string]string{"path": "/sync", "method": "POST"},
			"schedule":       map[string]string{"path": "/schedule", "method": "POST"},
		},
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// logServerError keeps failure detail server-side; clients only see the
// category and the request id.
func logServerError(r *http.Request, msg string, err error) {
	obs.LogRequest(map[string]any{
		"ts":         time.Now().UTC().Format(time.RFC3339Nano),
		"level":      "error",
		"msg":        msg,
		"error":      err.Error(),
		"method":     r.Method,
		"path":       r.URL.Path,
		"request_id": RequestIDFromContext(r.Context()),
	})
}
