// Package rebalance reserves the REBALANCE/REBALANCE_STORE/REBALANCE_COMPLETE
// tokens a future load-balancing pass would use. Spec §4.1/§9 keep these
// tokens reserved but unimplemented; this package gives rebalance_period a
// real home instead of leaving it a parsed-and-discarded config value.
package rebalance

import (
	"log"
	"time"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/controller"
)

// Trigger ticks every period and logs the shape of work a rebalancer
// would act on. It never mutates Controller state.
type Trigger struct {
	coord  *controller.Coordinator
	period time.Duration
	log    *log.Logger

	shutdown chan struct{}
}

// NewTrigger builds a Trigger bound to coord, ticking every period.
func NewTrigger(coord *controller.Coordinator, period time.Duration, logger *log.Logger) *Trigger {
	return &Trigger{coord: coord, period: period, log: logger, shutdown: make(chan struct{})}
}

// Run ticks until Stop is called. Intended to be run in its own
// goroutine for the lifetime of the Controller process.
func (t *Trigger) Run() {
	ticker := time.NewTicker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.tick()
		case <-t.shutdown:
			return
		}
	}
}

// Stop ends the ticking loop.
func (t *Trigger) Stop() {
	close(t.shutdown)
}

func (t *Trigger) tick() {
	stores := t.coord.Membership.Len()
	pending := t.coord.Index.CountInState(controller.RemoveInProgress)
	t.log.Printf("rebalance tick: %d files in REMOVE_IN_PROGRESS, %d stores connected", pending, stores)
}
