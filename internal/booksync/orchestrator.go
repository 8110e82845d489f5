package booksync

import (
	"context"
	"strings"
	"time"
)

const (
	minBatchSize = 1
	maxBatchSize = 1000
)

// Orchestrator drives one paginated sync pass per call. It holds no
// cross-call state: the cursor is caller-supplied, so overlapping or
// re-triggered passes stay convergent through the upsert key.
type Orchestrator struct {
	client *Client
	store  CustomerStore
	now    func() time.Time
}

// NewOrchestrator wires the upstream client to the customer store.
func NewOrchestrator(client *Client, store CustomerStore) *Orchestrator {
	return &Orchestrator{client: client, store: store, now: time.Now}
}

// Sync fetches one page at the given cursor, reconciles it into the store
// and returns the next cursor. Inputs are clamped into valid ranges.
func (o *Orchestrator) Sync(ctx context.Context, startPosition, batchSize int) (Result, error) {
	startPosition = clamp(startPosition, 1, int(^uint(0)>>1))
	batchSize = clamp(batchSize, minBatchSize, maxBatchSize)

	customers, err := o.client.FetchCustomers(ctx, startPosition, batchSize)
	if err != nil {
		return Result{}, err
	}

	if len(customers) == 0 {
		return Result{
			ImportedCount:     0,
			NextStartPosition: startPosition,
			HasMore:           false,
		}, nil
	}

	now := o.now().UTC()
	records := make([]CustomerRecord, 0, len(customers))
	for _, c := range customers {
		record, ok := mapCustomer(c, now)
		if !ok {
			continue
		}
		records = append(records, record)
	}

	if len(records) > 0 {
		if err := o.store.UpsertCustomers(ctx, records); err != nil {
			return Result{}, err
		}
	}

	return Result{
		ImportedCount:     len(records),
		NextStartPosition: startPosition + len(customers),
		HasMore:           len(customers) == batchSize,
	}, nil
}

// mapCustomer reconciles one upstream customer into the internal schema.
// Records without an external identifier are discarded. First/last name
// fall back to splitting the display name.
func mapCustomer(c Customer, now time.Time) (CustomerRecord, bool) {
	externalID := strings.TrimSpace(c.ID)
	if externalID == "" {
		return CustomerRecord{}, false
	}

	first := clean(c.GivenName)
	last := clean(c.FamilyName)
	if first == "" || last == "" {
		parts := strings.Fields(clean(c.DisplayName))
		if first == "" && len(parts) > 0 {
			first = parts[0]
		}
		if last == "" && len(parts) > 1 {
			last = strings.Join(parts[1:], " ")
		}
	}

	record := CustomerRecord{
		ExternalID:  externalID,
		FirstName:   first,
		LastName:    last,
		CompanyName: clean(c.CompanyName),
		Source:      Source,
		UpdatedAt:   now,
	}
	if c.PrimaryEmailAddr != nil {
		record.Email = clean(c.PrimaryEmailAddr.Address)
	}
	if c.PrimaryPhone != nil {
		record.Phone = clean(c.PrimaryPhone.FreeFormNumber)
	}
	if c.BillAddr != nil {
		record.BillingLine1 = clean(c.BillAddr.Line1)
		record.BillingCity = clean(c.BillAddr.City)
		record.BillingState = clean(c.BillAddr.CountrySubDivisionCode)
		record.BillingZip = clean(c.BillAddr.PostalCode)
	}
	return record, true
}

// clean coerces blank strings to absent.
func clean(v string) string {
	return strings.TrimSpace(v)
}

func clamp(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}
