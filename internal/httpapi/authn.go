package httpapi

import (
	"net/http"
	"strings"

	"tutorgate.org/internal/auth"
)

// withAuth guards the scheduling endpoint. The session is read from the
// cookie set by the OAuth callback, with a bearer token as fallback for
// non-browser clients. Everything else stays public: the OAuth round-trip
// has no session yet and the sync trigger authenticates upstream.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/schedule" {
			next.ServeHTTP(w, r)
			return
		}
		token := a.sessionToken(r)
		if token == "" {
			writeError(w, r, http.StatusUnauthorized, "unauthorized: missing session")
			return
		}
		principal, err := a.verifier.Authenticate(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "unauthorized: invalid session")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithPrincipal(r.Context(), principal)))
	})
}

func (a *API) sessionToken(r *http.Request) string {
	if c, err := r.Cookie(a.cookies.Name); err == nil && c.Value != "" {
		return c.Value
	}
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
