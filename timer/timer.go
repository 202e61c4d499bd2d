// Package timer implements one-shot and periodic callback scheduling on
// a dedicated goroutine per fire.
//
// Grounded on diminuto_timer.c: Start arms the timer and returns
// immediately; each expiration runs the registered function on its own
// callback goroutine (the Go analogue of SIGEV_THREAD's per-expiration
// thread), which then updates the shared state under the timer's
// condition and, for a periodic timer still armed, re-arms the next
// period itself (matching the POSIX interval timer's repeated
// firing). Stop is the race-sensitive operation: the callback may
// already be running (possibly re-entering Stop itself) when the
// disarming side calls it, so Stop transitions to Disarm and waits on
// the condition for the callback to observe that and settle into Idle,
// exactly the diminuto_timer_stop handshake, bounded by
// [Window] so a wedged callback doesn't hang Stop forever.
//
// diminuto_timer_init_generic builds a Timer in one of two mutually
// exclusive kinds, selected by whether a function or a signal number is
// given: a function-kind timer's expiration runs on its own callback
// goroutine (SIGEV_THREAD), while a signal-kind timer instead delivers a
// POSIX signal to the calling process (SIGEV_SIGNAL) and runs no
// callback at all. New builds the former; NewSignal the latter.
// Start/Stop mirror diminuto_timer_start/diminuto_timer_stop's
// timer_settime-derived return value: the ticks remaining until the
// timer's next expiration before the call took effect.
//
// Oneshot and Periodic reproduce diminuto_timer_oneshot/
// diminuto_timer_periodic: a process-wide singleton signal-kind timer,
// lazily created on first use, that delivers SIGALRM the way the
// obsolete setitimer(2) call did, but built on the same monotonic
// POSIX-timer machinery as every other Timer in this package.
package timer

import (
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"time"

	diminuto "github.com/joeycumines/go-diminuto"
	"github.com/joeycumines/go-diminuto/condition"
	"github.com/joeycumines/go-diminuto/ticks"
	"golang.org/x/sys/unix"
)

// DefaultRealTimePriority is the SCHED_RR priority Start attempts to
// apply to a real-time timer's callback goroutine. Diminuto timer
// threads run at a low but non-zero real-time priority by default, not
// the maximum, so they don't starve higher-priority consumers.
const DefaultRealTimePriority = 1

// State is a Timer's position in its arm/disarm cycle.
type State int32

const (
	StateIdle State = iota
	StateArm
	StateDisarm
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArm:
		return "arm"
	case StateDisarm:
		return "disarm"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Func is a timer callback. Its return value is retained and can be
// read with Timer.Value after the expiration that produced it.
type Func func(arg any) any

// Window returns the deadline Stop waits for a racing callback to settle
// within: twice the timer's interval, or one second, whichever is
// larger.
func Window(interval ticks.Tick) ticks.Tick {
	minimum := ticks.Frequency
	result := interval * 2
	if result < minimum {
		result = minimum
	}
	return result
}

// Timer schedules a Func to run once (one-shot) or repeatedly
// (periodic) after a fixed interval. The zero value is not usable; use
// New.
type Timer struct {
	cond     *condition.Condition
	periodic bool
	fn       Func
	signum   syscall.Signal // 0: function-kind; >0: signal-kind, fn is unused
	realTime bool

	mu      sync.Mutex // guards goTimer only; state is guarded by cond
	goTimer *time.Timer

	state    State
	interval ticks.Tick
	arg      any
	value    any
	err      error
	deadline time.Time // when the currently scheduled fire is due
}

// Option configures a Timer at construction time.
type Option func(*Timer)

// WithRealTime makes every callback goroutine attempt a best-effort
// SCHED_RR elevation at DefaultRealTimePriority before running Func,
// matching diminuto_timer_init_generic's scheduling attributes. Failure
// to elevate (no CAP_SYS_NICE, unsupported platform) is logged once via
// LogOnce and otherwise ignored: the callback still runs.
func WithRealTime() Option {
	return func(t *Timer) { t.realTime = true }
}

// New returns an idle function-kind Timer. If periodic, every
// expiration re-arms the next period automatically until Stop is
// called; otherwise the timer returns to StateIdle after its single
// expiration. Each expiration invokes fn on its own callback goroutine.
func New(periodic bool, fn Func, opts ...Option) *Timer {
	t := &Timer{
		cond:     condition.New(),
		periodic: periodic,
		fn:       fn,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewSignal returns an idle signal-kind Timer: each expiration delivers
// signum to the calling process (via [syscall.Kill]) instead of
// invoking a Func, matching diminuto_timer_init_generic's
// SIGEV_SIGNAL path. signum must be greater than zero.
func NewSignal(periodic bool, signum syscall.Signal, opts ...Option) *Timer {
	t := &Timer{
		cond:     condition.New(),
		periodic: periodic,
		signum:   signum,
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State returns the timer's current state.
func (t *Timer) State() State {
	t.cond.Lock()
	defer t.cond.Unlock()
	return t.state
}

// Value returns the value returned by the most recently completed
// expiration's Func.
func (t *Timer) Value() any {
	t.cond.Lock()
	defer t.cond.Unlock()
	return t.value
}

// Start arms the timer to fire after interval. For a function-kind
// Timer, arg is passed to Func on every expiration; a signal-kind
// Timer ignores arg. Starting an already-armed timer rearms it with
// the new interval. It returns the ticks remaining on the timer's
// previous armament (zero if it was idle), matching
// diminuto_timer_start's timer_settime-derived return value.
func (t *Timer) Start(interval ticks.Tick, arg any) (ticks.Tick, error) {
	t.cond.Lock()
	remaining := t.remainingLocked()
	t.interval = interval
	t.arg = arg
	t.state = StateArm
	t.err = nil
	t.cond.Unlock()

	t.schedule(interval)
	return remaining, nil
}

// remainingLocked returns the ticks left until the currently scheduled
// fire if t is armed, or zero otherwise. t.cond must be held; deadline
// itself is read under t.mu, same as goTimer.
func (t *Timer) remainingLocked() ticks.Tick {
	if t.state != StateArm {
		return 0
	}
	t.mu.Lock()
	deadline := t.deadline
	t.mu.Unlock()
	remaining := ticks.FromDuration(time.Until(deadline))
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

func (t *Timer) schedule(interval ticks.Tick) {
	goTimer := time.AfterFunc(interval.Duration(), t.fire)
	t.mu.Lock()
	if t.goTimer != nil {
		t.goTimer.Stop() // a rearm replaces any expiration still pending
	}
	t.goTimer = goTimer
	t.deadline = time.Now().Add(interval.Duration())
	t.mu.Unlock()
}

// fire is the callback goroutine body: one new goroutine per
// expiration, matching a SIGEV_THREAD notification for a function-kind
// Timer. A signal-kind Timer instead delivers its signal to the
// process here, matching SIGEV_SIGNAL, and runs no callback.
func (t *Timer) fire() {
	t.cond.Lock()
	var fn Func
	var arg any
	signum := t.signum
	if t.state == StateArm {
		fn = t.fn
		arg = t.arg
	}
	t.cond.Unlock()

	var value any
	switch {
	case signum > 0:
		if err := unix.Kill(unix.Getpid(), signum); err != nil {
			diminuto.LogOnce("timer.signal", diminuto.LogEntry{
				Level:     diminuto.LevelWarn,
				Component: "timer",
				Message:   "failed to deliver signal on expiration",
				Err:       err,
			})
		}
	case fn != nil:
		if t.realTime {
			err := elevate(DefaultRealTimePriority)
			defer runtime.UnlockOSThread()
			if err != nil {
				diminuto.LogOnce("timer.schedclass", diminuto.LogEntry{
					Level:     diminuto.LevelWarn,
					Component: "timer",
					Message:   "real-time scheduling elevation failed, running at default priority",
					Err:       err,
				})
			}
		}
		value = fn(arg)
	}

	t.cond.Lock()
	defer t.cond.Unlock()

	if t.fn != nil {
		t.value = value
	}

	if t.periodic {
		switch t.state {
		case StateDisarm:
			t.state = StateIdle
			t.cond.Signal()
		case StateArm:
			t.schedule(t.interval)
		}
	} else if t.state != StateIdle {
		t.state = StateIdle
		t.cond.Signal()
	}
}

// Stop disarms the timer. If the timer is armed, Stop waits, up to
// [Window] of the timer's last interval, for the callback already running
// or, failing that, the next expiration's callback to settle the timer
// into StateIdle before returning; Stop never kills a running callback.
// Stopping an idle timer is a no-op. It returns the ticks remaining until the timer's next
// expiration at the moment it was disarmed, matching
// diminuto_timer_stop's timer_settime-derived return value.
func (t *Timer) Stop() (ticks.Tick, error) {
	t.cond.Lock()

	remaining := t.remainingLocked()

	if t.state == StateArm {
		deadline := Window(t.interval)
		t.state = StateDisarm
		for t.state != StateIdle {
			if err := t.cond.WaitUntil(deadline); err != nil {
				t.err = diminuto.Fatal("timer.Stop", err)
				break
			}
		}
	}

	t.cond.Unlock()

	t.mu.Lock()
	goTimer := t.goTimer
	t.mu.Unlock()
	if goTimer != nil {
		goTimer.Stop()
	}

	return remaining, t.Err()
}

// Err returns the error recorded by the most recent Stop, if the
// callback failed to settle within its window.
func (t *Timer) Err() error {
	t.cond.Lock()
	defer t.cond.Unlock()
	return t.err
}

var (
	setitimerOnce sync.Once
	setitimer     *Timer
)

// setitimerSingleton lazily builds the process-wide signal-kind Timer
// oneshot/periodic share, grounded on diminuto_timer_setitimer's static
// singleton: one SIGEV_SIGNAL timer delivering SIGALRM, reused across
// calls rather than one per call, since setitimer(2) itself only ever
// has one outstanding interval per process.
func setitimerSingleton() *Timer {
	setitimerOnce.Do(func() {
		setitimer = NewSignal(false, syscall.SIGALRM)
	})
	return setitimer
}

// setPeriodic changes whether t rearms itself on expiration. t.cond
// guards periodic the same as every other field fire() reads.
func (t *Timer) setPeriodic(periodic bool) {
	t.cond.Lock()
	t.periodic = periodic
	t.cond.Unlock()
}

// Oneshot arms the process-wide singleton timer to deliver SIGALRM once
// after the given number of ticks, or disarms it if n is not positive.
// It returns the ticks remaining on the singleton's previous armament,
// matching diminuto_timer_oneshot/diminuto_timer_setitimer.
func Oneshot(n ticks.Tick) (ticks.Tick, error) {
	t := setitimerSingleton()
	t.setPeriodic(false)
	if n > 0 {
		return t.Start(n, nil)
	}
	return t.Stop()
}

// Periodic arms the process-wide singleton timer to deliver SIGALRM
// repeatedly every given number of ticks, or disarms it if interval is
// not positive, matching diminuto_timer_periodic/diminuto_timer_setitimer.
func Periodic(interval ticks.Tick) (ticks.Tick, error) {
	t := setitimerSingleton()
	t.setPeriodic(true)
	if interval > 0 {
		return t.Start(interval, nil)
	}
	return t.Stop()
}
