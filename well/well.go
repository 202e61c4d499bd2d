// Package well implements a fixed-capacity arena: N slots carved from one
// contiguous allocation (a []T, so consecutive slots are T's own size
// apart), with an in-use list and a free list threaded through the slots.
// Allocation returns nil on exhaustion; Free rejects any pointer that
// didn't come from this Well's arena.
//
// Grounded on Diminuto/tst/unittest-well.c and unittest-well-cpp.cpp (the
// alloc/free round-trip and the bounds-checked free). Go has no portable
// posix_memalign without cgo, so the caller-chosen power-of-two alignment
// (minimum: cache-line) is only checked against the slice backing array's
// base address and recorded: slots are not padded to it, and the arena is
// not page-aligned. Callers that need a hard alignment guarantee should
// check Aligned() and fall back to a platform-specific allocation if it
// reports false.
package well

import (
	"errors"
	"reflect"
	"unsafe"

	"github.com/joeycumines/go-diminuto/list"
)

// CacheLineSize is the minimum alignment Well enforces.
const CacheLineSize = 64

// ErrForeignPointer is returned by Free when the pointer did not come from
// this Well's arena, or does not land on a slot boundary.
var ErrForeignPointer = errors.New("well: pointer not owned by this arena")

// Well is a fixed-capacity arena of N contiguous slots holding T.
type Well[T any] struct {
	slots    []T
	inUse    *list.Node
	freeList *list.Node
	nodes    []list.Node // one list.Node per slot, indexed identically to slots
	aligned  bool
}

// New allocates a Well of n slots of type T. align must be a power of two
// (or zero); it is rounded up to CacheLineSize if smaller and is checked
// only against the arena's base address (see Aligned), not applied to
// each slot.
func New[T any](n int, align int) (*Well[T], error) {
	if n <= 0 {
		return nil, errors.New("well: capacity must be positive")
	}
	if align&(align-1) != 0 {
		return nil, errors.New("well: alignment must be a power of two")
	}
	if align < CacheLineSize {
		align = CacheLineSize
	}

	w := &Well[T]{
		slots:    make([]T, n),
		inUse:    list.New(nil),
		freeList: list.New(nil),
		nodes:    make([]list.Node, n),
	}

	if n > 0 {
		addr := uintptr(unsafe.Pointer(&w.slots[0]))
		w.aligned = addr%uintptr(align) == 0
	}

	for i := range w.nodes {
		w.nodes[i].Init(i)
		w.freeList.Enqueue(&w.nodes[i])
	}

	return w, nil
}

// Aligned reports whether the arena's base address satisfied the
// requested alignment. Go gives no portable way to force it (no
// posix_memalign without cgo); this is a diagnostic, not an invariant the
// rest of Well depends on.
func (w *Well[T]) Aligned() bool { return w.aligned }

// Cap returns the well's fixed slot capacity.
func (w *Well[T]) Cap() int { return len(w.slots) }

// Alloc pops a slot from the free list and moves it to the in-use list,
// returning a pointer to its storage, or nil if the arena is exhausted.
func (w *Well[T]) Alloc() *T {
	n := w.freeList.Pop()
	if n == nil {
		return nil
	}
	w.inUse.Enqueue(n)
	idx := n.Data().(int)
	return &w.slots[idx]
}

// Free returns p to the free list. p must be the address of a slot this
// Well handed out via Alloc (checked by arena range and slot-boundary
// alignment); otherwise Free returns ErrForeignPointer and leaves the
// arena unchanged.
func (w *Well[T]) Free(p *T) error {
	idx, err := w.indexOf(p)
	if err != nil {
		return err
	}
	n := &w.nodes[idx]
	if !n.IsMember(w.inUse) {
		// Already free (on the free list, not the in-use list): freeing
		// twice is a caller bug, reported the same way as a foreign
		// pointer.
		return ErrForeignPointer
	}
	n.Remove()
	w.freeList.Enqueue(n)
	return nil
}

// indexOf validates that p points into the arena at a slot boundary and
// returns its slot index.
func (w *Well[T]) indexOf(p *T) (int, error) {
	if len(w.slots) == 0 {
		return 0, ErrForeignPointer
	}
	var zero T
	elemSize := int(reflect.TypeOf(zero).Size())
	if elemSize == 0 {
		elemSize = 1
	}

	base := uintptr(unsafe.Pointer(&w.slots[0]))
	addr := uintptr(unsafe.Pointer(p))
	last := uintptr(unsafe.Pointer(&w.slots[len(w.slots)-1]))

	if addr < base || addr > last {
		return 0, ErrForeignPointer
	}
	offset := addr - base
	if int(offset)%elemSize != 0 {
		return 0, ErrForeignPointer
	}
	idx := int(offset) / elemSize
	if idx < 0 || idx >= len(w.slots) {
		return 0, ErrForeignPointer
	}
	return idx, nil
}

// InUse returns the number of slots currently allocated.
func (w *Well[T]) InUse() int {
	n := 0
	for cur := w.inUse.Head(); cur != w.inUse; cur = cur.Next() {
		n++
	}
	return n
}

// Available returns the number of slots currently free.
func (w *Well[T]) Available() int {
	return w.Cap() - w.InUse()
}
