// Package thread wraps a goroutine in a synchronized state machine that
// mirrors the POSIX thread lifecycle: Allocated, Initialized, Started,
// Running, Exiting, Joined, Finalized, Failed.
//
// Grounded on diminuto_thread.c's proxy/diminuto_thread_join_until: the
// spawned function runs under a state that's visible to Join and to
// Notify, every transition broadcasts on a shared condition so a waiter
// re-checks the state it cares about rather than being told what
// changed, and notifications accumulate in a saturating counter that
// Notifications drains and resets. Where the C implementation sends a
// POSIX signal to interrupt a blocked syscall, Notify instead sends on
// the channel Kick returns (and, on Linux, also writes an eventfd; see
// wake_linux.go). Thread does not expose that eventfd, so only a Func
// that selects on Kick() wakes; a Func blocked in a read or select on
// other descriptors is not interrupted.
package thread

import (
	"context"
	"fmt"
	"sync"

	diminuto "github.com/joeycumines/go-diminuto"
	"github.com/joeycumines/go-diminuto/condition"
	"github.com/joeycumines/go-diminuto/ticks"
)

// State is a thread's position in its lifecycle.
type State int32

const (
	StateAllocated State = iota
	StateInitialized
	StateStarted
	StateRunning
	StateExiting
	StateJoined
	StateFinalized
	StateFailed
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateAllocated:
		return "allocated"
	case StateInitialized:
		return "initialized"
	case StateStarted:
		return "started"
	case StateRunning:
		return "running"
	case StateExiting:
		return "exiting"
	case StateJoined:
		return "joined"
	case StateFinalized:
		return "finalized"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Func is the body run on the thread's goroutine. It should return
// promptly once ctx is Done.
type Func func(ctx context.Context, arg any) any

// Thread wraps one goroutine through its lifecycle. The zero value is
// not usable; use New.
type Thread struct {
	cond *condition.Condition

	mu    sync.Mutex // guards value, kick, and cancel; state and notifications are guarded by cond's own mutex
	state State
	fn    Func
	value any

	notifications uint
	kick          kicker

	cancel context.CancelFunc
}

// New returns a Thread in StateInitialized, ready for Start.
func New(fn Func) *Thread {
	t := &Thread{
		cond:  condition.New(),
		state: StateInitialized,
		fn:    fn,
	}
	return t
}

func (t *Thread) setState(s State) {
	t.cond.Lock()
	t.state = s
	t.cond.Signal()
	t.cond.Unlock()
}

// State returns the thread's current lifecycle state.
func (t *Thread) State() State {
	t.cond.Lock()
	defer t.cond.Unlock()
	return t.state
}

// Start spawns the goroutine running fn(ctx, arg). It is legal from
// StateInitialized, StateJoined, or StateFailed (a Thread can be
// restarted after joining); any other state returns a StateError.
func (t *Thread) Start(ctx context.Context, arg any) error {
	t.cond.Lock()
	switch t.state {
	case StateInitialized, StateJoined, StateFailed:
	default:
		s := t.state
		t.cond.Unlock()
		return &diminuto.StateError{Op: "thread.Start", State: s}
	}
	t.state = StateStarted
	t.cond.Signal()
	t.cond.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	runCtx = context.WithValue(runCtx, instanceKey{}, t)
	t.mu.Lock()
	t.cancel = cancel
	t.kick = newKicker()
	t.mu.Unlock()

	go t.run(runCtx, arg)
	return nil
}

func (t *Thread) run(ctx context.Context, arg any) {
	t.setState(StateRunning)

	value := t.fn(ctx, arg)

	t.mu.Lock()
	t.value = value
	t.mu.Unlock()

	t.setState(StateExiting)
}

// Stop cancels the context passed to the running Func, asking it to
// return; it does not wait for that to happen. Stop is a no-op before
// Start or after the context has already been canceled (including by a
// prior JoinUntil).
func (t *Thread) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Notify increments the thread's saturating notification counter and
// wakes it: any goroutine blocked in JoinUntil re-checks the thread's
// state, and — if the thread's Func is blocked on a kick-aware
// operation — interrupts that operation. Notify is a no-op once the
// thread has exited.
func (t *Thread) Notify() {
	t.cond.Lock()
	switch t.state {
	case StateStarted, StateRunning:
		if t.notifications != ^uint(0) {
			t.notifications++
		}
	default:
		t.cond.Unlock()
		return
	}
	t.cond.Signal()
	t.cond.Unlock()

	t.mu.Lock()
	k := t.kick
	t.mu.Unlock()
	if k != nil {
		k.kick()
	}
}

// Notifications returns the number of pending notifications and resets
// the counter to zero, matching diminuto_thread_notifications' drain
// semantics.
func (t *Thread) Notifications() uint {
	t.cond.Lock()
	defer t.cond.Unlock()
	n := t.notifications
	t.notifications = 0
	return n
}

// Kick returns the channel the running Func should select on (alongside
// its own blocking operations, or ctx.Done()) to notice a Notify call
// promptly. It is nil until Start has been called.
func (t *Thread) Kick() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.kick == nil {
		return nil
	}
	return t.kick.channel()
}

// JoinUntil blocks until the thread reaches StateExiting (or timeout
// elapses; ticks.Infinite waits indefinitely), then transitions it to
// StateJoined and returns its Func's return value. Calling JoinUntil
// again after a successful join returns diminuto.ErrInvalid, matching
// the "already joined" case diminuto_thread_join_until's state switch
// falls through to.
func (t *Thread) JoinUntil(timeout ticks.Tick) (any, error) {
	t.cond.Lock()
	defer t.cond.Unlock()

	for t.state != StateExiting {
		switch t.state {
		case StateStarted, StateRunning:
		default:
			return nil, diminuto.ErrInvalid
		}
		if err := t.cond.WaitUntil(timeout); err != nil {
			return nil, err
		}
	}

	t.state = StateJoined
	t.cond.Signal()

	t.mu.Lock()
	cancel := t.cancel
	k := t.kick
	value := t.value
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if k != nil {
		k.close()
	}

	return value, nil
}

// Join is JoinUntil(ticks.Infinite).
func (t *Thread) Join() (any, error) {
	return t.JoinUntil(ticks.Infinite)
}

// instanceKey is the context.Context key Start attaches a running
// Thread's own *Thread under, standing in for the pthread-specific key
// diminuto_thread.c's proxy installs with pthread_setspecific so a
// thread can always find its own diminuto_thread_t.
type instanceKey struct{}

var (
	mainOnce   sync.Once
	mainThread *Thread
)

// Instance lazily initializes and returns the process-wide pseudo-
// Thread representing the goroutine that owns the process outside of
// any Thread's own Func — grounded on diminuto_thread.c's setup(),
// which registers a static main-thread object, already StateRunning
// and never notified, the first time diminuto_thread_instance is
// called. Go has no analogue of pthread_self() to compare against, so
// Instance identifies "the main thread" by exclusion: it is whatever
// Self is asked for outside a context derived from Start.
func Instance() *Thread {
	mainOnce.Do(func() {
		mainThread = &Thread{
			cond:  condition.New(),
			state: StateRunning,
		}
	})
	return mainThread
}

// Self returns the Thread running on ctx if ctx (or an ancestor of it)
// was passed to that Thread's Func by Start; otherwise it returns
// Instance(). This matches diminuto_thread_instance's contract: the
// process-wide thread-specific key always resolves to a valid Thread
// object, whether the calling code is running inside a spawned Thread
// or is the main thread itself.
func Self(ctx context.Context) *Thread {
	if t, ok := ctx.Value(instanceKey{}).(*Thread); ok {
		return t
	}
	return Instance()
}
