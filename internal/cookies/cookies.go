// Package cookies builds and clears the browser cookies that carry the
// session and refresh tokens. The codec is pure: it produces http.Cookie
// values and performs no I/O.
package cookies

import (
	"net/http"
	"strings"
	"time"
)

// RefreshMaxAge is how long the refresh-token cookie survives.
const RefreshMaxAge = 30 * 24 * time.Hour

// Codec carries the configurable cookie attributes. Both cookies are always
// HttpOnly; Domain, Secure and SameSite follow deployment configuration.
type Codec struct {
	Name     string
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// NewCodec applies defaults matching the deployed configuration contract:
// Path "/", SameSite Lax, Secure on.
func NewCodec(name, domain, path string, secure bool, sameSite http.SameSite) Codec {
	if strings.TrimSpace(path) == "" {
		path = "/"
	}
	if sameSite == 0 {
		sameSite = http.SameSiteLaxMode
	}
	return Codec{
		Name:     name,
		Domain:   domain,
		Path:     path,
		Secure:   secure,
		SameSite: sameSite,
	}
}

// Session builds the access-token cookie with the given lifetime in seconds.
func (c Codec) Session(value string, maxAge int) *http.Cookie {
	return c.build(c.Name, value, maxAge)
}

// Refresh builds the refresh-token cookie with a 30-day lifetime.
func (c Codec) Refresh(value string) *http.Cookie {
	return c.build(c.refreshName(), value, int(RefreshMaxAge.Seconds()))
}

// ClearSession expires the access-token cookie immediately.
func (c Codec) ClearSession() *http.Cookie {
	return c.build(c.Name, "", -1)
}

// ClearRefresh expires the refresh-token cookie immediately.
func (c Codec) ClearRefresh() *http.Cookie {
	return c.build(c.refreshName(), "", -1)
}

func (c Codec) refreshName() string {
	return c.Name + "-refresh"
}

func (c Codec) build(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		MaxAge:   maxAge,
		Path:     c.Path,
		Domain:   c.Domain,
		Secure:   c.Secure,
		SameSite: c.SameSite,
		HttpOnly: true,
	}
}
