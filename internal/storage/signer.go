// Package storage mints time-limited signed URLs for stored media objects
// through the platform's storage API. Grants are computed on demand and
// never persisted.
package storage

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

// GrantTTL is the fixed lifetime of every issued grant.
const GrantTTL = 3600 * time.Second

// ErrSigningFailed indicates the storage API refused to mint a grant.
var ErrSigningFailed = errors.New("storage: signed url issuance failed")

// Grant is a time-limited capability URL for one object.
type Grant struct {
	URL       string
	ExpiresIn int
}

// URLSigner issues grants for object paths inside the media bucket.
type URLSigner interface {
	SignedURL(ctx context.Context, path string) (Grant, error)
}

// Client talks to the platform storage API with the service credential.
type Client struct {
	platformURL string
	serviceKey  string
	bucket      string
	http        *retryhttp.Client
}

var _ URLSigner = (*Client)(nil)

// NewClient wires the signer against the platform storage API.
func NewClient(platformURL, serviceKey, bucket string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		platformURL: strings.TrimRight(platformURL, "/"),
		serviceKey:  serviceKey,
		bucket:      bucket,
		http:        retryhttp.New(hc),
	}
}

// SignedURL asks the storage API for a grant valid for exactly GrantTTL.
func (c *Client) SignedURL(ctx context.Context, path string) (Grant, error) {
	body, err := json.Marshal(map[string]int{"expiresIn": int(GrantTTL.Seconds())})
	if err != nil {
		return Grant{}, err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.serviceKey)
	header.Set("apikey", c.serviceKey)
	header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(ctx, retryhttp.Request{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("%s/storage/v1/object/sign/%s/%s", c.platformURL, url.PathEscape(c.bucket), escapePath(path)),
		Header: header,
		Body:   body,
	})
	if err != nil {
		return Grant{}, fmt.Errorf("%w: %v", ErrSigningFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Grant{}, fmt.Errorf("%w: status %d: %s", ErrSigningFailed, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var payload struct {
		SignedURL string `json:"signedURL"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Grant{}, fmt.Errorf("%w: decode response: %v", ErrSigningFailed, err)
	}
	if payload.SignedURL == "" {
		return Grant{}, fmt.Errorf("%w: empty signed url", ErrSigningFailed)
	}

	signed := payload.SignedURL
	if strings.HasPrefix(signed, "/") {
		signed = c.platformURL + "/storage/v1" + signed
	}
	return Grant{URL: signed, ExpiresIn: int(GrantTTL.Seconds())}, nil
}

// escapePath escapes each segment individually so filenames containing
// reserved characters ('?', '#', spaces) stay inside the URL path.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}
