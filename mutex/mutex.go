// Package mutex provides a non-recursive mutual exclusion lock with a
// scoped-acquisition helper, built directly on sync.Mutex.
//
// Grounded on the DIMINUTO_MUTEX_BEGIN/TRY/END code-generator macros in
// diminuto_mutex.h: Begin locks and returns a token whose End unlocks,
// so a caller can write the same begin/defer-end shape the C macros
// expand to. Recursive acquisition (the C mutex type supports a
// recursive attribute) was deliberately dropped — see DESIGN.md.
package mutex

import "sync"

// Mutex is a non-recursive mutual exclusion lock. The zero value is
// ready to use.
type Mutex struct {
	mu sync.Mutex
}

// Lock acquires the mutex, blocking until it is available.
func (m *Mutex) Lock() { m.mu.Lock() }

// Unlock releases the mutex. Unlocking an already-unlocked Mutex is a
// caller error, same as sync.Mutex.
func (m *Mutex) Unlock() { m.mu.Unlock() }

// TryLock attempts to acquire the mutex without blocking, returning
// false if it is already held.
func (m *Mutex) TryLock() bool { return m.mu.TryLock() }

// Token represents a held lock; calling End releases it. A Token must be
// released exactly once, and only by the goroutine that acquired it.
type Token struct {
	m *Mutex
}

// Begin locks m and returns a Token whose End unlocks it, mirroring the
// DIMINUTO_MUTEX_BEGIN/END code-generator pair as a value instead of a
// macro.
func Begin(m *Mutex) Token {
	m.Lock()
	return Token{m: m}
}

// End releases the lock acquired by Begin.
func (t Token) End() { t.m.Unlock() }

// Guard runs fn with m held, releasing it before returning (including on
// panic).
func Guard(m *Mutex, fn func()) {
	t := Begin(m)
	defer t.End()
	fn()
}
