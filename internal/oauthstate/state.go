// Package oauthstate issues and verifies the signed CSRF state tokens that
// bind an OAuth login attempt to its origin. Tokens are
// base64url(HMAC-SHA256 signature) + "." + base64url(JSON payload) and are
// valid for ten minutes from issuance.
//
// Verification checks signature and age only. Replay inside the validity
// window is possible: tracking consumed tokens would require shared state
// across instances, and the authorization code the state travels with is
// single-use at the provider anyway.
package oauthstate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Validity is how long an issued state token remains verifiable.
const Validity = 10 * time.Minute

var (
	// ErrInvalidState covers malformed input, signature mismatch and expiry.
	ErrInvalidState = errors.New("oauthstate: invalid state")

	errMissingSecret = errors.New("oauthstate: signing secret is required")
)

// Payload is the signed content of a state token.
type Payload struct {
	RedirectTo string `json:"redirect_to"`
	IssuedAt   int64  `json:"issued_at"` // unix milliseconds
}

// Signer issues and verifies state tokens with a fixed secret.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner returns a Signer. The secret is mandatory: an ephemeral fallback
// would silently invalidate in-flight logins on every instance restart.
func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errMissingSecret
	}
	return &Signer{secret: []byte(secret), now: time.Now}, nil
}

// Issue serializes the redirect destination with the current time and signs it.
func (s *Signer) Issue(redirectTo string) (string, error) {
	payload := Payload{
		RedirectTo: redirectTo,
		IssuedAt:   s.now().UnixMilli(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return s.sign(raw) + "." + base64.RawURLEncoding.EncodeToString(raw), nil
}

// Verify checks the signature and the issuance window and returns the payload.
func (s *Signer) Verify(token string) (Payload, error) {
	sig, encoded, ok := strings.Cut(token, ".")
	if !ok || sig == "" || encoded == "" {
		return Payload{}, ErrInvalidState
	}

	// strict decoding rejects non-canonical encodings, so any altered
	// character invalidates the token rather than aliasing to the same bytes
	raw, err := base64.RawURLEncoding.Strict().DecodeString(encoded)
	if err != nil {
		return Payload{}, ErrInvalidState
	}

	expected := s.sign(raw)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return Payload{}, ErrInvalidState
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Payload{}, ErrInvalidState
	}
	if s.now().UnixMilli()-payload.IssuedAt > Validity.Milliseconds() {
		return Payload{}, ErrInvalidState
	}
	return payload, nil
}

func (s *Signer) sign(raw []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(raw)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
