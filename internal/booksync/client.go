package booksync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tutorgate.org/internal/obs"
	"tutorgate.org/internal/retryhttp"
)

// Client fetches customer pages from the accounting API through the shared
// retry wrapper.
type Client struct {
	baseURL   string
	companyID string
	token     string
	http      *retryhttp.Client
}

// NewClient constructs a Client. Credentials may be empty; FetchCustomers
// then reports ErrNotConfigured, letting callers surface a configuration
// failure instead of an opaque upstream one.
func NewClient(baseURL, companyID, token string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		companyID: companyID,
		token:     token,
		http:      retryhttp.New(hc),
	}
}

// FetchCustomers retrieves one page of customers starting at startPosition.
// Callers pass pre-clamped cursor values.
func (c *Client) FetchCustomers(ctx context.Context, startPosition, batchSize int) ([]Customer, error) {
	if c.companyID == "" || c.token == "" {
		return nil, ErrNotConfigured
	}

	query := fmt.Sprintf("select * from Customer STARTPOSITION %d MAXRESULTS %d", startPosition, batchSize)
	endpoint := fmt.Sprintf("%s/v3/company/%s/query?query=%s",
		c.baseURL, url.PathEscape(c.companyID), url.QueryEscape(query))

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.token)
	header.Set("Accept", "application/json")

	resp, err := c.http.Do(ctx, retryhttp.Request{
		Method: http.MethodGet,
		URL:    endpoint,
		Header: header,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrCredentialsExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		obs.LogRequest(map[string]any{
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
			"level":  "error",
			"msg":    "accounting api error",
			"status": resp.StatusCode,
			"body":   strings.TrimSpace(string(detail)),
		})
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var payload struct {
		QueryResponse struct {
			Customer []Customer `json:"Customer"`
		} `json:"QueryResponse"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	return payload.QueryResponse.Customer, nil
}
