package controller

import (
	"time"

	cache "github.com/patrickmn/go-cache"
)

// ReloadTracker remembers, per client connection, the last Store port a
// LOAD or RELOAD sent that client toward. It backs the decision recorded
// in DESIGN.md for spec §9's open question: RELOAD excludes the
// previously-served port when a fresh entry exists, and otherwise falls
// back to uniform-random choice. Entries expire after one operation
// timeout, since a client that hasn't asked again within that window
// gains nothing from the exclusion and the map would otherwise grow
// without bound across long-lived connections to many files.
type ReloadTracker struct {
	c *cache.Cache
}

// NewReloadTracker builds a tracker whose entries live for ttl.
func NewReloadTracker(ttl time.Duration) *ReloadTracker {
	return &ReloadTracker{c: cache.New(ttl, ttl)}
}

// Record notes that clientKey was last directed to port.
func (t *ReloadTracker) Record(clientKey string, port int) {
	t.c.SetDefault(clientKey, port)
}

// LastServed returns the last port recorded for clientKey, if still live.
func (t *ReloadTracker) LastServed(clientKey string) (int, bool) {
	v, ok := t.c.Get(clientKey)
	if !ok {
		return 0, false
	}
	return v.(int), true
}
