package controller

import (
	"sync"
	"time"

	"github.com/georgiou-p/DistributedFileSystem-COMP2207/internal/wire"
)

// pendingOp aggregates acks for one in-flight store or remove. Completion
// and timer-fire race to close done exactly once (sync.Once), giving the
// idempotent-against-completion guarantee spec §5 asks for without a
// synchronized block around the whole struct.
type pendingOp struct {
	name       string
	targets    map[int]bool
	targetList []int
	client     *wire.Conn

	mu    sync.Mutex
	acked map[int]bool

	once  sync.Once
	done  chan struct{}
	timer *time.Timer
}

func newPendingOp(name string, targets []int, client *wire.Conn, timeout time.Duration, onTimeout func()) *pendingOp {
	targetSet := make(map[int]bool, len(targets))
	for _, p := range targets {
		targetSet[p] = true
	}
	op := &pendingOp{
		name:       name,
		targets:    targetSet,
		targetList: targets,
		client:     client,
		acked:      make(map[int]bool, len(targets)),
		done:       make(chan struct{}),
	}
	op.timer = time.AfterFunc(timeout, func() {
		if op.complete() {
			onTimeout()
		}
	})
	return op
}

// ack records port's acknowledgement if it is a target. It returns true
// exactly once, the first time the full target set has been acked — the
// caller should treat that single true as "I am the one who completes
// this op."
func (op *pendingOp) ack(port int) (allAcked bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if !op.targets[port] || op.acked[port] {
		return false
	}
	op.acked[port] = true
	return len(op.acked) == len(op.targets)
}

// complete disarms the timer and closes done, returning true the first
// time it is called and false on every subsequent call (by either the
// ack path or the timer path) — this is what makes completion and
// timer-fire mutually idempotent.
func (op *pendingOp) complete() bool {
	completed := false
	op.once.Do(func() {
		op.timer.Stop()
		close(op.done)
		completed = true
	})
	return completed
}
