// Package ports tracks which local ports the orchestrator has promised to
// which project component, so that two projects never get handed the same
// port.
package ports

import (
	"math/rand"
	"sort"
	"time"
)

const (
	// probeWindow is how far past the preferred port Allocate scans
	// linearly before falling back to random picks.
	probeWindow = 99

	randomAttempts = 10
	randomLow      = 10000
	randomHigh     = 65535
)

// Table is a reservation table mapping port numbers to owner identifiers.
// It does no locking of its own; the orchestrator serializes access under
// its mutex.
type Table struct {
	owners map[int]string
	rng    *rand.Rand
}

// NewTable returns an empty reservation table.
func NewTable() *Table {
	return &Table{
		owners: make(map[int]string),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Allocate reserves a port for owner and returns it. The preferred port is
// used when free, or when owner already holds it (re-allocation is
// idempotent). On conflict it scans preferred+1..preferred+99, then tries
// ten random ports in [10000,65535]. If every candidate is taken the
// preferred port is returned WITHOUT a reservation: the caller proceeds in
// degraded mode rather than failing the project outright.
func (t *Table) Allocate(preferred int, owner string) int {
	cur, taken := t.owners[preferred]
	if !taken || cur == owner {
		t.owners[preferred] = owner
		return preferred
	}
	for p := preferred + 1; p <= preferred+probeWindow; p++ {
		if _, taken := t.owners[p]; !taken {
			t.owners[p] = owner
			return p
		}
	}
	for i := 0; i < randomAttempts; i++ {
		p := randomLow + t.rng.Intn(randomHigh-randomLow+1)
		if _, taken := t.owners[p]; !taken {
			t.owners[p] = owner
			return p
		}
	}
	return preferred
}

// Claim records owner as holding port, replacing any existing reservation.
// Used after the caller has already validated the assignment.
func (t *Table) Claim(port int, owner string) {
	t.owners[port] = owner
}

// Owner reports who holds port.
func (t *Table) Owner(port int) (string, bool) {
	owner, ok := t.owners[port]
	return owner, ok
}

// Release frees a reservation. Releasing an unreserved port is a no-op.
func (t *Table) Release(port int) {
	delete(t.owners, port)
}

// Reset drops every reservation.
func (t *Table) Reset() {
	t.owners = make(map[int]string)
}

// Len returns the number of live reservations.
func (t *Table) Len() int {
	return len(t.owners)
}

// Ports returns the reserved port numbers in ascending order.
func (t *Table) Ports() []int {
	out := make([]int, 0, len(t.owners))
	for p := range t.owners {
		out = append(out, p)
	}
	sort.Ints(out)
	return out
}
