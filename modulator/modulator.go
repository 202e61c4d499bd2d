// Package modulator implements software PWM on top of a periodic timer.
//
// Grounded on diminuto_modulator.c: a duty cycle in [DutyMin, DutyMax]
// is split into an on-cycle-count and an off-cycle-count that sum to
// DutyMax, their common prime factors ({2, 3, 5, 7, 11, 13}, the same
// set diminuto_modulator_factor tries) are divided out to shorten the
// on/off run lengths and so reduce visible flicker, and a pending duty
// change is only applied at the start of the next on/off half-cycle —
// Set blocks until the running callback has picked up the new duty,
// exactly the set/signal handshake in diminuto_modulator_set and the
// callback's "if (mp->set)" section.
package modulator

import (
	"math"

	"github.com/joeycumines/go-diminuto/condition"
	"github.com/joeycumines/go-diminuto/ticks"
	"github.com/joeycumines/go-diminuto/timer"
)

// DutyMin and DutyMax bound a Modulator's duty cycle: 0% and 100%.
const (
	DutyMin uint8 = 0
	DutyMax uint8 = 255
)

// primes are the factors diminuto_modulator_factor divides out of the
// on/off cycle counts: every prime p with p*p <= DutyMax.
var primes = []uint16{2, 3, 5, 7, 11, 13}

// Flicker scores how visually uneven an on/off cycle pair is, on a 0-100
// scale: 0 when either count is zero (100% on or 100% off); otherwise
// (|off-on| + (off+on)) / 255, halved and scaled to 100, so a balanced
// pair summing to 255 scores 50 and the score rises as the pair grows
// more uneven. Grounded on diminuto_modulator_flicker's exact arithmetic.
func Flicker(on, off uint16) uint {
	if off == 0 || on == 0 {
		return 0
	}
	diff := math.Abs(float64(int(off) - int(on)))
	sum := math.Abs(float64(int(off) + int(on)))
	score := diff/255.0 + sum/255.0
	score /= 2.0
	score *= 100.0
	return uint(score)
}

// Factor divides each prime from {2,3,5,7,11,13} that divides both *on
// and *off out of them once, trying the primes in ascending order and
// stopping at the first prime larger than either value. It reports
// whether any reduction was applied.
func Factor(on, off *uint16) bool {
	reduced := false
	for _, p := range primes {
		if p > *on || p > *off {
			break
		}
		if *on%p != 0 || *off%p != 0 {
			continue
		}
		*on /= p
		*off /= p
		reduced = true
	}
	return reduced
}

// Pin is the output this Modulator drives. Set asserts the signal;
// Clear deasserts it. Implementations wrap whatever GPIO abstraction the
// host program uses; there is no hardware access in this package.
type Pin interface {
	Set() error
	Clear() error
}

// Modulator drives Pin with a software PWM signal at a fixed cycle
// frequency, shaped by a settable duty cycle.
type Modulator struct {
	cond *condition.Condition
	tm   *timer.Timer
	pin  Pin

	duty      uint8
	on        uint16
	off       uint16
	cycle     uint16
	state     bool // true: pin currently asserted
	ton, toff uint16
	set       bool
	err       error
}

// New returns a Modulator driving pin, initialized to duty (clamped
// elsewhere is the caller's responsibility; DutyMin/DutyMax bound the
// legal range).
func New(pin Pin, duty uint8) *Modulator {
	m := &Modulator{
		cond: condition.New(),
		pin:  pin,
		duty: duty,
		on:   uint16(DutyMin),
		off:  uint16(DutyMax),
		ton:  uint16(DutyMin),
		toff: uint16(DutyMax),
	}
	m.tm = timer.New(true, m.fire)
	_ = m.Set(duty) // establish ton/toff for duty before Start; timer is idle, so this never blocks
	return m
}

// Set changes the duty cycle. If the Modulator is running, Set blocks
// until the currently in-flight on/off half-cycle's callback has applied
// the new ton/toff, matching diminuto_modulator_set's wait-for-pickup
// behavior; on an idle Modulator it returns immediately.
func (m *Modulator) Set(duty uint8) error {
	on := uint16(duty)
	off := uint16(DutyMax) - uint16(duty)

	if on != 0 && off != 0 {
		Factor(&on, &off)
	}

	m.cond.Lock()
	defer m.cond.Unlock()

	m.duty = duty
	m.ton = on
	m.toff = off
	m.set = true

	if m.tm.State() == timer.StateArm {
		for m.set {
			if err := m.cond.Wait(); err != nil {
				m.err = err
				return err
			}
		}
	}
	// If idle, m.set is left pending: the first fire after Start picks it
	// up and applies ton/toff, matching diminuto_modulator_set leaving
	// mp->set asserted when the timer isn't armed yet.
	return nil
}

// Duty returns the Modulator's current duty cycle.
func (m *Modulator) Duty() uint8 {
	m.cond.Lock()
	defer m.cond.Unlock()
	return m.duty
}

// Start arms the underlying timer at hz cycles per second (typically far
// higher than the visible flicker threshold; diminuto_modulator defaults
// to 10kHz) and begins driving Pin.
func (m *Modulator) Start(hz int64) error {
	_, err := m.tm.Start(ticks.Hz(hz), nil)
	return err
}

// Stop disarms the timer, leaving Pin in its last driven state.
func (m *Modulator) Stop() error {
	_, err := m.tm.Stop()
	return err
}

// fire is the timer callback body, grounded on diminuto_modulator.c's
// callback: it completes the current half-cycle's countdown, and only
// at a half-cycle boundary picks up a pending Set and flips the pin.
func (m *Modulator) fire(arg any) any {
	m.cond.Lock()
	if m.cycle > 0 {
		m.cycle--
		m.cond.Unlock()
		return m.cycle
	}

	if !m.state {
		if m.set {
			m.on = m.ton
			m.off = m.toff
			m.set = false
			m.cond.Signal()
		}
	}
	on, off, state := m.on, m.off, m.state
	m.cond.Unlock()

	var err error
	var nextState bool
	var nextCycle uint16

	if state {
		if off > 0 {
			err = m.pin.Clear()
			nextCycle = off
			nextState = false
		} else {
			nextCycle = on // 100%
			nextState = true
		}
	} else {
		if on > 0 {
			err = m.pin.Set()
			nextCycle = on
			nextState = true
		} else {
			nextCycle = off // 0%
			nextState = false
		}
	}

	m.cond.Lock()
	if err != nil {
		m.err = err
	}
	m.cycle = nextCycle
	m.state = nextState
	m.cond.Unlock()

	return nextCycle
}

// Err returns the most recent error raised by Pin.Set/Pin.Clear inside
// the callback, if any.
func (m *Modulator) Err() error {
	m.cond.Lock()
	defer m.cond.Unlock()
	return m.err
}
