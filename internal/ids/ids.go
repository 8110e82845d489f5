// Package ids generates the row identifiers used across the service:
// appointment ids minted by the access broker and compliance-log entry
// ids. ULIDs keep the append-only log naturally ordered by creation time.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// The monotonic entropy source is not safe for concurrent use; the lock
// serializes handlers and the compliance worker minting ids at once.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
