package httpapi

import (
	"net/http"
	"strings"
)

// handleOAuthStart signs the post-login destination into the state
// parameter and redirects the browser to the identity platform.
func (a *API) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	redirectTo := r.URL.Query().Get("redirect_to")
	if redirectTo == "" {
		redirectTo = a.defaultRedirect
	}
	state, err := a.states.Issue(redirectTo)
	if err != nil {
		logServerError(r, "state issue failed", err)
		writeError(w, r, http.StatusInternalServerError, "authentication start failed")
		return
	}
	http.Redirect(w, r, a.oauth.AuthorizeURL(a.callbackURL(r), state), http.StatusFound)
}

// handleOAuthCallback verifies the returned state, exchanges the code for
// a session and moves it into HttpOnly cookies before redirecting.
func (a *API) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		writeError(w, r, http.StatusBadRequest, "missing code or state parameter")
		return
	}
	payload, err := a.states.Verify(state)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid or expired state")
		return
	}
	session, err := a.oauth.Exchange(r.Context(), code, a.callbackURL(r))
	if err != nil {
		logServerError(r, "code exchange failed", err)
		writeError(w, r, http.StatusInternalServerError, "authentication failed")
		return
	}

	http.SetCookie(w, a.cookies.Session(session.AccessToken, session.ExpiresIn))
	if session.RefreshToken != "" {
		http.SetCookie(w, a.cookies.Refresh(session.RefreshToken))
	}

	redirectTo := payload.RedirectTo
	if redirectTo == "" {
		redirectTo = a.defaultRedirect
	}
	http.Redirect(w, r, redirectTo, http.StatusFound)
}

// handleOAuthSignout clears both session cookies.
func (a *API) handleOAuthSignout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	http.SetCookie(w, a.cookies.ClearSession())
	http.SetCookie(w, a.cookies.ClearRefresh())
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// callbackURL reconstructs this service's callback endpoint from the
// incoming request, honoring the proxy's forwarded protocol.
func (a *API) callbackURL(r *http.Request) string {
	scheme := "http"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS != nil {
		scheme = "https"
	}
	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(r.Host)
	b.WriteString("/oauth/callback")
	return b.String()
}
