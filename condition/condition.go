// Package condition composes a mutex with broadcast-only wakeups and
// bounded waits.
//
// Grounded on diminuto_condition.c/.h: every condition owns a dedicated
// mutex, and every signal wakes every waiter (there is no signal-one),
// so a woken waiter must re-check its own predicate and wait again if
// it wasn't actually satisfied. WaitUntil's timeout is relative to the
// call rather than an absolute clocktime (diminuto_condition_wait_until
// takes an absolute diminuto_ticks_t deadline); this package instead
// matches the relative-offset convention [ticks.Deadline] already
// establishes, so every timed-wait call site in this module shares one
// convention.
//
// sync.Cond has no deadline-aware Wait, so this package replaces it with
// a "generation channel": a channel that Signal closes and replaces
// atomically. A waiter captures the current channel, releases the
// mutex, and blocks on either that channel closing or its deadline,
// exactly the condition-variable "check predicate, wait, recheck"
// protocol without needing a timed variant of sync.Cond.
package condition

import (
	"sync"
	"time"

	diminuto "github.com/joeycumines/go-diminuto"
	"github.com/joeycumines/go-diminuto/mutex"
	"github.com/joeycumines/go-diminuto/ticks"
)

// Condition pairs a mutex with broadcast-only signaling. The zero value
// is not usable; use New.
type Condition struct {
	mutex.Mutex

	genMu sync.Mutex
	gen   chan struct{}
}

// New returns a ready-to-use Condition.
func New() *Condition {
	return &Condition{gen: make(chan struct{})}
}

func (c *Condition) currentGen() chan struct{} {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.gen
}

// WaitUntil blocks the calling goroutine, which must hold c's mutex,
// until either Signal is called or timeout elapses (ticks.Infinite waits
// indefinitely). timeout is relative to the call, matching
// ticks.Deadline's convention. It releases the mutex while blocked and
// reacquires it before returning, in either case. It returns
// diminuto.ErrTimedOut if the deadline elapsed first.
func (c *Condition) WaitUntil(timeout ticks.Tick) error {
	gen := c.currentGen()
	c.Unlock()
	defer c.Lock()

	if timeout == ticks.Infinite {
		<-gen
		return nil
	}

	timer := time.NewTimer(time.Until(ticks.Deadline(timeout)))
	defer timer.Stop()

	select {
	case <-gen:
		return nil
	case <-timer.C:
		return diminuto.ErrTimedOut
	}
}

// Wait blocks indefinitely until Signal is called. Equivalent to
// WaitUntil(ticks.Infinite).
func (c *Condition) Wait() error {
	return c.WaitUntil(ticks.Infinite)
}

// Signal wakes every goroutine currently blocked in WaitUntil/Wait on c.
// There is no signal-one: every broadcast, matching
// diminuto_condition_signal's unconditional pthread_cond_broadcast.
// Callers must hold c's mutex when calling Signal, same as the C API's
// documented usage alongside DIMINUTO_CONDITION_BEGIN/END.
func (c *Condition) Signal() {
	c.genMu.Lock()
	defer c.genMu.Unlock()
	close(c.gen)
	c.gen = make(chan struct{})
}
