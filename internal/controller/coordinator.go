// Package controller implements the Controller side of the protocol: the
// membership table, file index, and the per-file store/remove operation
// coordination described in spec §3-5.
package controller

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/wire"
)

// Coordinator owns all of the Controller's shared state and implements
// one method per spec §4.1 operation. Every exported Handle* method is
// safe to call concurrently from many connection goroutines.
type Coordinator struct {
	R       int
	Timeout time.Duration

	Membership *Membership
	Index      *Index
	Reload     *ReloadTracker

	log *log.Logger

	mu             sync.Mutex
	pendingStores  map[string]*pendingOp
	pendingRemoves map[string]*pendingOp
}

// NewCoordinator builds a Coordinator for a replication factor r and
// per-operation timeout.
func NewCoordinator(r int, timeout time.Duration, logger *log.Logger) *Coordinator {
	return &Coordinator{
		R:              r,
		Timeout:        timeout,
		Membership:     NewMembership(),
		Index:          NewIndex(),
		Reload:         NewReloadTracker(timeout),
		log:            logger,
		pendingStores:  make(map[string]*pendingOp),
		pendingRemoves: make(map[string]*pendingOp),
	}
}

// admitted enforces spec §4.1's admission gate: every client command is
// rejected with ERROR_NOT_ENOUGH_DSTORES while fewer than R Stores are
// connected. Ack messages from Stores never pass through this gate.
func (c *Coordinator) admitted(client *wire.Conn) bool {
	if c.Membership.Len() >= c.R {
		return true
	}
	if err := client.WriteLine(wire.ErrNotEnoughStores); err != nil {
		c.log.Printf("write ERROR_NOT_ENOUGH_DSTORES: %v", err)
	}
	return false
}

// HandleJoin registers a Store that has just announced itself.
func (c *Coordinator) HandleJoin(port int, conn *wire.Conn) {
	c.Membership.Add(port, conn)
	c.log.Printf("store joined on port %d (membership now %d)", port, c.Membership.Len())
}

// HandleDisconnect removes a Store's membership entry. Pending ops that
// depended on it are not proactively failed; their timers will expire
// naturally once that Store can no longer ack (spec §4.1 "Membership
// loss").
func (c *Coordinator) HandleDisconnect(port int) {
	c.Membership.Remove(port)
	c.log.Printf("store on port %d disconnected (membership now %d)", port, c.Membership.Len())
}

// HandleStore implements spec §4.1 STORE.
func (c *Coordinator) HandleStore(client *wire.Conn, name string, size int64) {
	if !c.admitted(client) {
		return
	}
	if err := c.Index.BeginStore(name, size); err != nil {
		if writeErr := client.WriteLine(wire.ErrFileExists); writeErr != nil {
			c.log.Printf("write ERROR_FILE_ALREADY_EXISTS: %v", writeErr)
		}
		return
	}

	targets, ok := c.Membership.SelectPlacement(c.R)
	if !ok {
		// Membership shrank between the admission check and placement.
		c.Index.AbortStore(name)
		if writeErr := client.WriteLine(wire.ErrNotEnoughStores); writeErr != nil {
			c.log.Printf("write ERROR_NOT_ENOUGH_DSTORES: %v", writeErr)
		}
		return
	}

	op := newPendingOp(name, targets, client, c.Timeout, func() {
		c.mu.Lock()
		delete(c.pendingStores, name)
		c.mu.Unlock()
		c.Index.AbortStore(name)
		c.log.Printf("store of %q timed out, index entry dropped", name)
	})
	c.mu.Lock()
	c.pendingStores[name] = op
	c.mu.Unlock()

	reply := append([]string{wire.StoreTo}, portsToStrings(targets)...)
	if err := client.WriteLine(reply...); err != nil {
		c.log.Printf("write STORE_TO: %v", err)
	}
}

// HandleStoreAck implements spec §4.1 STORE step 5. port is the port of
// the Store connection the ack arrived on — known directly because that
// connection became sticky to "Store" at JOIN time, per spec §9's design
// note, so no linear search over membership is needed.
func (c *Coordinator) HandleStoreAck(port int, name string) {
	if !c.Membership.Has(port) {
		c.log.Printf("ignoring STORE_ACK for %q from store %d no longer in membership", name, port)
		return
	}
	c.mu.Lock()
	op, ok := c.pendingStores[name]
	c.mu.Unlock()
	if !ok {
		return
	}
	if !op.ack(port) {
		return
	}
	if !op.complete() {
		return
	}
	c.mu.Lock()
	delete(c.pendingStores, name)
	c.mu.Unlock()

	c.Index.CompleteStore(name, op.targetList)
	if err := op.client.WriteLine(wire.StoreComplete); err != nil {
		c.log.Printf("write STORE_COMPLETE: %v", err)
	}
	c.log.Printf("store of %q complete on %v", name, op.targetList)
}

// HandleList implements spec §4.1 LIST.
func (c *Coordinator) HandleList(client *wire.Conn) {
	if !c.admitted(client) {
		return
	}
	names := c.Index.List()
	reply := append([]string{wire.List}, names...)
	if err := client.WriteLine(reply...); err != nil {
		c.log.Printf("write LIST: %v", err)
	}
}

// HandleLoad implements spec §4.1 LOAD and RELOAD, which share every step
// but the error token used when no replica is available and (for RELOAD)
// an attempt to avoid repeating the previously-served replica.
func (c *Coordinator) HandleLoad(client *wire.Conn, name string, reload bool, clientKey string) {
	if !c.admitted(client) {
		return
	}
	replicas, size, err := c.Index.ReplicasOf(name)
	if err != nil {
		if writeErr := client.WriteLine(wire.ErrFileNotFound); writeErr != nil {
			c.log.Printf("write ERROR_FILE_DOES_NOT_EXIST: %v", writeErr)
		}
		return
	}

	candidates := c.Membership.Intersect(replicas)
	if len(candidates) == 0 {
		token := wire.ErrFileNotFound
		if reload {
			token = wire.ErrLoad
		}
		if writeErr := client.WriteLine(token); writeErr != nil {
			c.log.Printf("write %s: %v", token, writeErr)
		}
		return
	}

	port := c.pickCandidate(candidates, reload, clientKey)
	c.Reload.Record(clientKey, port)

	if err := client.WriteLine(wire.LoadFrom, fmt.Sprint(port), fmt.Sprint(size)); err != nil {
		c.log.Printf("write LOAD_FROM: %v", err)
	}
}

// pickCandidate chooses one port from candidates. On RELOAD it excludes
// the client's previously-served port when that exclusion still leaves a
// choice (see DESIGN.md for why this, rather than the source's plain
// uniform-random-among-all-replicas, was chosen).
func (c *Coordinator) pickCandidate(candidates []int, reload bool, clientKey string) int {
	if reload {
		if last, ok := c.Reload.LastServed(clientKey); ok {
			filtered := make([]int, 0, len(candidates))
			for _, p := range candidates {
				if p != last {
					filtered = append(filtered, p)
				}
			}
			if len(filtered) > 0 {
				candidates = filtered
			}
		}
	}
	return candidates[rand.Intn(len(candidates))]
}

// HandleRemove implements spec §4.1 REMOVE.
func (c *Coordinator) HandleRemove(client *wire.Conn, name string) {
	if !c.admitted(client) {
		return
	}
	replicas, err := c.Index.BeginRemove(name)
	if err != nil {
		if writeErr := client.WriteLine(wire.ErrFileNotFound); writeErr != nil {
			c.log.Printf("write ERROR_FILE_DOES_NOT_EXIST: %v", writeErr)
		}
		return
	}

	active := c.Membership.Intersect(replicas)
	if len(active) == 0 {
		if writeErr := client.WriteLine(wire.ErrFileNotFound); writeErr != nil {
			c.log.Printf("write ERROR_FILE_DOES_NOT_EXIST: %v", writeErr)
		}
		return
	}

	op := newPendingOp(name, active, client, c.Timeout, func() {
		c.mu.Lock()
		delete(c.pendingRemoves, name)
		c.mu.Unlock()
		c.Index.AbortRemove(name)
		c.log.Printf("remove of %q timed out, left in REMOVE_IN_PROGRESS", name)
	})
	c.mu.Lock()
	c.pendingRemoves[name] = op
	c.mu.Unlock()

	for _, port := range active {
		conn, ok := c.Membership.Conn(port)
		if !ok {
			continue
		}
		if err := conn.WriteLine(wire.Remove, name); err != nil {
			c.log.Printf("send REMOVE to store %d: %v", port, err)
		}
	}
}

// HandleRemoveAck implements spec §4.1 REMOVE step 5.
func (c *Coordinator) HandleRemoveAck(port int, name string) {
	if !c.Membership.Has(port) {
		c.log.Printf("ignoring REMOVE_ACK for %q from store %d no longer in membership", name, port)
		return
	}
	c.mu.Lock()
	op, ok := c.pendingRemoves[name]
	c.mu.Unlock()
	if !ok {
		return
	}
	if !op.ack(port) {
		return
	}
	if !op.complete() {
		return
	}
	c.mu.Lock()
	delete(c.pendingRemoves, name)
	c.mu.Unlock()

	c.Index.CompleteRemove(name)
	if err := op.client.WriteLine(wire.RemoveComplete); err != nil {
		c.log.Printf("write REMOVE_COMPLETE: %v", err)
	}
	c.log.Printf("remove of %q complete", name)
}

func portsToStrings(ports []int) []string {
	out := make([]string, len(ports))
	for i, p := range ports {
		out[i] = fmt.Sprint(p)
	}
	return out
}
