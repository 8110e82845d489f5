package booksync

import (
	"context"
	"errors"
	"time"
)

// Source marks every record written by the accounting sync path.
const Source = "external-accounting-sync"

var (
	// ErrNotConfigured means the accounting credentials are absent.
	ErrNotConfigured = errors.New("booksync: accounting credentials are not configured")
	// ErrCredentialsExpired maps the upstream's 401: the access token must
	// be refreshed out of band before syncing again.
	ErrCredentialsExpired = errors.New("booksync: accounting access token expired")
	// ErrUpstream covers upstream failures that survived all retries.
	ErrUpstream = errors.New("booksync: accounting api request failed")
)

// CustomerRecord is the internal customer row reconciled from upstream.
// Empty strings mean absent; the store persists them as NULL.
type CustomerRecord struct {
	ExternalID   string
	FirstName    string
	LastName     string
	CompanyName  string
	Email        string
	Phone        string
	BillingLine1 string
	BillingCity  string
	BillingState string
	BillingZip   string
	Source       string
	UpdatedAt    time.Time
}

// CustomerStore persists reconciled records, keyed by external id with
// last-write-wins semantics.
type CustomerStore interface {
	UpsertCustomers(ctx context.Context, records []CustomerRecord) error
}

// Customer is the upstream accounting system's customer shape.
type Customer struct {
	ID          string `json:"Id"`
	DisplayName string `json:"DisplayName,omitempty"`
	GivenName   string `json:"GivenName,omitempty"`
	FamilyName  string `json:"FamilyName,omitempty"`
	CompanyName string `json:"CompanyName,omitempty"`

	PrimaryEmailAddr *struct {
		Address string `json:"Address,omitempty"`
	} `json:"PrimaryEmailAddr,omitempty"`
	PrimaryPhone *struct {
		FreeFormNumber string `json:"FreeFormNumber,omitempty"`
	} `json:"PrimaryPhone,omitempty"`
	BillAddr *struct {
		Line1                  string `json:"Line1,omitempty"`
		City                   string `json:"City,omitempty"`
		CountrySubDivisionCode string `json:"CountrySubDivisionCode,omitempty"`
		PostalCode             string `json:"PostalCode,omitempty"`
	} `json:"BillAddr,omitempty"`
}

// Result reports one sync pass. HasMore is a heuristic: a page that came
// back exactly full is assumed to have a successor, which over-fetches one
// empty page when the upstream total is a multiple of the batch size.
type Result struct {
	ImportedCount     int
	NextStartPosition int
	HasMore           bool
}
