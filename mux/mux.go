// Package mux implements a readiness multiplexer over pselect(2),
// tracking read, write, accept, and out-of-band ("urgent") descriptor
// sets as independent capability sets rather than folding
// accept-readiness into the read set, and handing ready descriptors
// back one at a time from a round-robin cursor per set so no single
// busy descriptor can starve the others. A listening socket registered
// under Accept is readiness-tested on the same underlying read fd_set
// pselect(2) uses for Read (accept-readiness and read-readiness are
// the same kernel-level event), but Accept keeps its own registration
// bookkeeping and rotation cursor, so draining one set never touches
// the other.
//
// Registration uses a fixed-capacity direct-indexed descriptor table
// guarded by a mutex, with EINTR treated as "no events" rather than an
// error. The blocking primitive is golang.org/x/sys/unix.Pselect and
// unix.FdSet.
//
// Wait also carries a cooperative signal mask, grounded on
// diminuto_mux_register_signal/diminuto_mux_unregister_signal
// (unittest-mux4.c): a signal registered on a Mux is blocked everywhere
// else and only unblocked for the instant pselect(2) itself is sleeping,
// so a signal arriving outside Wait cannot interrupt other code and a
// signal arriving during Wait reliably wakes it with EINTR instead of
// racing a signal handler installed separately.
package mux

import (
	"errors"
	"sort"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	diminuto "github.com/joeycumines/go-diminuto"
)

// maxFD bounds the descriptors this Mux can track directly: unix.FdSet
// only holds FD_SETSIZE bits (typically 1024).
const maxFD = unix.FD_SETSIZE

// ErrFDOutOfRange is returned when a descriptor falls outside [0, maxFD).
var ErrFDOutOfRange = errors.New("mux: file descriptor out of range")

// Set identifies which of a Mux's four independent descriptor sets an
// operation applies to.
type Set int

const (
	Read Set = iota
	Write
	Accept
	Urgent
	numSets
)

// String implements fmt.Stringer.
func (s Set) String() string {
	switch s {
	case Read:
		return "read"
	case Write:
		return "write"
	case Accept:
		return "accept"
	case Urgent:
		return "urgent"
	default:
		return "unknown"
	}
}

type bitset struct {
	fds     unix.FdSet
	members map[int]struct{}
}

func newBitset() *bitset {
	return &bitset{members: make(map[int]struct{})}
}

func (b *bitset) add(fd int) {
	b.fds.Bits[fd/64] |= 1 << (uint(fd) % 64)
	b.members[fd] = struct{}{}
}

func (b *bitset) remove(fd int) {
	b.fds.Bits[fd/64] &^= 1 << (uint(fd) % 64)
	delete(b.members, fd)
}

func (b *bitset) has(fd int) bool {
	_, ok := b.members[fd]
	return ok
}

func (b *bitset) isset(fd int) bool {
	return b.fds.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

func (b *bitset) snapshot() unix.FdSet {
	return b.fds
}

func (b *bitset) sortedMembers() []int {
	out := make([]int, 0, len(b.members))
	for fd := range b.members {
		out = append(out, fd)
	}
	sort.Ints(out)
	return out
}

// Mux tracks read, write, accept, and urgent descriptor interest and
// answers Wait calls with the subset that became ready, rotating which
// descriptor is returned first on each call so that a continuously
// busy descriptor cannot starve its neighbors in the same set.
type Mux struct {
	mu   sync.Mutex
	sets [numSets]*bitset

	// ready holds the descriptors found ready by the most recent Wait,
	// per set, in round-robin rotation order.
	ready  [numSets][]int
	cursor [numSets]int

	// signals is the set of signal numbers Wait unblocks atomically for
	// the duration of each pselect(2) call.
	signals map[int]struct{}
}

// New returns an empty Mux.
func New() *Mux {
	m := &Mux{signals: make(map[int]struct{})}
	for i := range m.sets {
		m.sets[i] = newBitset()
	}
	return m
}

// Register adds fd to the given Set. Registering an already-registered
// (set, fd) pair is a no-op.
func (m *Mux) Register(set Set, fd int) error {
	if fd < 0 || fd >= maxFD {
		return ErrFDOutOfRange
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[set].add(fd)
	return nil
}

// Unregister removes fd from the given Set, and from that set's
// pending ready rotation if present.
func (m *Mux) Unregister(set Set, fd int) error {
	if fd < 0 || fd >= maxFD {
		return ErrFDOutOfRange
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[set].remove(fd)

	filtered := m.ready[set][:0]
	for _, cand := range m.ready[set] {
		if cand != fd {
			filtered = append(filtered, cand)
		}
	}
	m.ready[set] = filtered
	return nil
}

// RegisterSignal adds sig to the set Wait unblocks while pselect(2) is
// sleeping. Registering an already-registered signal is a no-op.
func (m *Mux) RegisterSignal(sig syscall.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.signals[int(sig)] = struct{}{}
	return nil
}

// UnregisterSignal removes sig from the set Wait unblocks.
// Unregistering a signal that was never registered is a no-op.
func (m *Mux) UnregisterSignal(sig syscall.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.signals, int(sig))
	return nil
}

// RegisteredSignal reports whether sig is registered.
func (m *Mux) RegisteredSignal(sig syscall.Signal) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.signals[int(sig)]
	return ok
}

// sigmask builds the *unix.Sigset_t Wait passes to pselect(2): the
// registered signals, unblocked only for the pselect(2) call itself.
// It returns nil when no signal is registered, so Wait's blocking
// behavior is unchanged from before RegisterSignal existed.
func (m *Mux) sigmask() *unix.Sigset_t {
	if len(m.signals) == 0 {
		return nil
	}
	var set unix.Sigset_t
	for sig := range m.signals {
		bit := sig - 1 // signal numbers are 1-based; bit 0 is SIGHUP(1)
		set.Val[bit/64] |= 1 << (uint(bit) % 64)
	}
	return &set
}

// Close unregisters fd from every set.
func (m *Mux) Close(fd int) error {
	if fd < 0 || fd >= maxFD {
		return ErrFDOutOfRange
	}
	for set := Set(0); set < numSets; set++ {
		if err := m.Unregister(set, fd); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until at least one registered descriptor becomes ready
// in any set, or timeout elapses (a negative timeout blocks
// indefinitely). It returns the total count of descriptors newly found
// ready across all sets. EINTR is treated as a zero-event wakeup
// rather than an error, matching pselect's conventional retry
// contract.
func (m *Mux) Wait(timeout time.Duration) (int, error) {
	m.mu.Lock()
	var nfd int
	var readSet, writeSet, urgentSet unix.FdSet
	for fd := 0; fd < maxFD; fd++ {
		inRead := m.sets[Read].isset(fd) || m.sets[Accept].isset(fd)
		if inRead || m.sets[Write].isset(fd) || m.sets[Urgent].isset(fd) {
			if fd+1 > nfd {
				nfd = fd + 1
			}
		}
		if inRead {
			readSet.Bits[fd/64] |= 1 << (uint(fd) % 64)
		}
	}
	writeSet = m.sets[Write].snapshot()
	urgentSet = m.sets[Urgent].snapshot()
	sigmask := m.sigmask()
	m.mu.Unlock()

	if nfd == 0 {
		return 0, nil
	}

	var ts *unix.Timespec
	if timeout >= 0 {
		spec := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &spec
	}

	n, err := unix.Pselect(nfd, &readSet, &writeSet, &urgentSet, ts, sigmask)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, diminuto.Fatal("mux.Wait", err)
	}
	if n == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	kernelSetFor := func(set Set) *unix.FdSet {
		switch set {
		case Read, Accept:
			return &readSet
		case Write:
			return &writeSet
		default:
			return &urgentSet
		}
	}
	for set := Set(0); set < numSets; set++ {
		snapshot := kernelSetFor(set)
		var fresh []int
		for _, fd := range m.sets[set].sortedMembers() {
			if fdIsSet(snapshot, fd) {
				fresh = append(fresh, fd)
				total++
			}
		}
		m.ready[set] = rotate(fresh, m.cursor[set])
		if len(fresh) > 0 {
			m.cursor[set] = (m.cursor[set] + 1) % len(fresh)
		}
	}
	return total, nil
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

// rotate returns fresh reordered so that fresh[start] comes first,
// preserving relative order otherwise; this is the round-robin
// fairness step.
func rotate(fresh []int, start int) []int {
	if len(fresh) == 0 {
		return nil
	}
	start %= len(fresh)
	out := make([]int, 0, len(fresh))
	out = append(out, fresh[start:]...)
	out = append(out, fresh[:start]...)
	return out
}

// Next pops the next ready descriptor from set's rotation, as found by
// the most recent Wait. It returns ok=false once the set's ready
// descriptors for that Wait have all been drained.
func (m *Mux) Next(set Set) (fd int, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ready[set]) == 0 {
		return 0, false
	}
	fd = m.ready[set][0]
	m.ready[set] = m.ready[set][1:]
	return fd, true
}

// Registered reports whether fd is registered in set.
func (m *Mux) Registered(set Set, fd int) bool {
	if fd < 0 || fd >= maxFD {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sets[set].has(fd)
}
