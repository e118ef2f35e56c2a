package controller

import (
	"sort"
	"sync"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/wire"
)

// storeHandle is the Controller's connection to one Store, keyed by the
// port that Store advertised in its JOIN message.
type storeHandle struct {
	port int
	conn *wire.Conn
}

// Membership is the Controller's live view of connected Stores. Safe for
// concurrent use.
type Membership struct {
	mu      sync.RWMutex
	stores  map[int]*storeHandle
}

// NewMembership constructs an empty membership table.
func NewMembership() *Membership {
	return &Membership{stores: make(map[int]*storeHandle)}
}

// Add registers a Store's control connection under its advertised port.
// The entry exists from this call until Remove is called for the same
// port (normally from the connection's own read-loop goroutine on EOF).
func (m *Membership) Add(port int, conn *wire.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores[port] = &storeHandle{port: port, conn: conn}
}

// Remove drops a Store from the table. Idempotent.
func (m *Membership) Remove(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stores, port)
}

// Len reports the current membership count.
func (m *Membership) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stores)
}

// Has reports whether port is currently a member.
func (m *Membership) Has(port int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.stores[port]
	return ok
}

// Conn returns the control connection for port, if it is a current member.
func (m *Membership) Conn(port int) (*wire.Conn, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.stores[port]
	if !ok {
		return nil, false
	}
	return h.conn, true
}

// Snapshot returns the currently connected ports, sorted ascending. The
// sort gives placement a deterministic, testable order without claiming
// any load-awareness the spec does not require.
func (m *Membership) Snapshot() []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ports := make([]int, 0, len(m.stores))
	for p := range m.stores {
		ports = append(ports, p)
	}
	sort.Ints(ports)
	return ports
}

// SelectPlacement chooses r distinct member ports for a new file: the
// first r in ascending-port order. Returns ok=false if fewer than r
// members are currently connected — placement must never choose a port
// absent from membership at the instant of selection (spec invariant 4).
func (m *Membership) SelectPlacement(r int) (ports []int, ok bool) {
	all := m.Snapshot()
	if len(all) < r {
		return nil, false
	}
	return all[:r], true
}

// Intersect filters candidates down to the ports currently in membership,
// preserving input order.
func (m *Membership) Intersect(candidates []int) []int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int, 0, len(candidates))
	for _, p := range candidates {
		if _, ok := m.stores[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
