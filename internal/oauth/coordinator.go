// Package oauth drives the three legs of the login round-trip: redirect to
// the provider, authorization-code exchange, and session issuance. The
// exchange runs server-side with the service credential; it is never
// retried, since a failed login should prompt the user rather than loop.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tutorgate.org/internal/retryhttp"
)

// ErrExchangeFailed indicates the provider rejected the code exchange.
var ErrExchangeFailed = errors.New("oauth: code exchange failed")

// Scopes requested at the provider. Offline access and the consent prompt
// are required to obtain a refresh token and the calendar grant.
var scopes = []string{
	"openid",
	"email",
	"profile",
	"https://www.googleapis.com/auth/calendar.events",
}

// Session is the platform's response to a successful code exchange. It is
// owned by the browser via cookies; the server never persists it.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Coordinator performs the provider round-trip.
type Coordinator struct {
	platformURL string
	serviceKey  string
	client      *retryhttp.Client
}

// NewCoordinator wires the coordinator against the identity platform. The
// shared retry client is used with retries disabled.
func NewCoordinator(platformURL, serviceKey string, hc *http.Client) (*Coordinator, error) {
	platformURL = strings.TrimRight(strings.TrimSpace(platformURL), "/")
	if platformURL == "" {
		return nil, errors.New("oauth: platform url is required")
	}
	if serviceKey == "" {
		return nil, errors.New("oauth: service key is required")
	}
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	client := retryhttp.New(hc)
	client.MaxRetries = 0
	return &Coordinator{
		platformURL: platformURL,
		serviceKey:  serviceKey,
		client:      client,
	}, nil
}

// AuthorizeURL builds the provider authorization URL carrying the signed
// state and the callback destination.
func (c *Coordinator) AuthorizeURL(callbackURL, state string) string {
	q := url.Values{}
	q.Set("provider", "google")
	q.Set("redirect_to", callbackURL)
	q.Set("state", state)
	q.Set("scopes", strings.Join(scopes, " "))
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	return c.platformURL + "/auth/v1/authorize?" + q.Encode()
}

// Exchange swaps the authorization code for a session using the
// server-held service credential.
func (c *Coordinator) Exchange(ctx context.Context, code, redirectURI string) (Session, error) {
	body, err := json.Marshal(map[string]string{
		"code":         code,
		"redirect_uri": redirectURI,
	})
	if err != nil {
		return Session{}, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.serviceKey)
	header.Set("apikey", c.serviceKey)
	header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(ctx, retryhttp.Request{
		Method: http.MethodPost,
		URL:    c.platformURL + "/auth/v1/token?grant_type=authorization_code",
		Header: header,
		Body:   body,
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Session{}, fmt.Errorf("%w: status %d: %s", ErrExchangeFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var session Session
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return Session{}, fmt.Errorf("%w: decode response: %v", ErrExchangeFailed, err)
	}
	if session.AccessToken == "" {
		return Session{}, fmt.Errorf("%w: empty access token", ErrExchangeFailed)
	}
	return session, nil
}
