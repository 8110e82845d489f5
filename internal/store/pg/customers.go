package pg

import (
	"context"
	"fmt"
	"strings"

	"tutorgate.org/internal/booksync"
)

// customerColumns is the full column list written by the upsert, in the
// order the placeholders bind. It must match the customers table in
// db/migrations; a test cross-checks the two.
var customerColumns = []string{
	"external_id", "first_name", "last_name", "company_name", "email", "phone",
	"billing_address_line1", "billing_city", "billing_state", "billing_zip",
	"source", "updated_at",
}

var upsertCustomersSQL = buildUpsertCustomersSQL()

func buildUpsertCustomersSQL() string {
	placeholders := make([]string, len(customerColumns))
	assignments := make([]string, 0, len(customerColumns)-1)
	for i, col := range customerColumns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		if col != "external_id" {
			assignments = append(assignments, fmt.Sprintf("%s = excluded.%s", col, col))
		}
	}
	return fmt.Sprintf(`
		insert into customers(%s)
		values (%s)
		on conflict (external_id) do update set %s
	`,
		strings.Join(customerColumns, ", "),
		strings.Join(placeholders, ","),
		strings.Join(assignments, ", "),
	)
}

// UpsertCustomers applies one reconciled batch keyed by external_id,
// last write wins. The whole batch commits or rolls back together.
func (s *Store) UpsertCustomers(ctx context.Context, records []booksync.CustomerRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		if _, err := tx.ExecContext(ctx, upsertCustomersSQL,
			r.ExternalID, nullable(r.FirstName), nullable(r.LastName),
			nullable(r.CompanyName), nullable(r.Email), nullable(r.Phone),
			nullable(r.BillingLine1), nullable(r.BillingCity),
			nullable(r.BillingState), nullable(r.BillingZip),
			r.Source, r.UpdatedAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CountCustomersBySource reports how many rows a given sync source owns.
func (s *Store) CountCustomersBySource(ctx context.Context, source string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`select count(*) from customers where source = $1`, source,
	).Scan(&n)
	return n, err
}
