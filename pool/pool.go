// Package pool implements a list-as-freelist object pool: Alloc dequeues a
// free object or, if the free list is empty, obtains a fresh one from an
// injectable allocator; Free returns an object to the free list for
// reuse. The pool holds no bound on growth.
//
// Grounded on Diminuto/tst/unittest-pool.c's alloc/free/alloc round-trip,
// and on this module's general preference for injectable construction
// over hardcoded `new`. The C implementation reconstructs a header
// pointer from the caller's payload pointer via fixed offset arithmetic;
// Go generics make that unnecessary — each free node already holds a
// real *T, so Pool[T] never needs unsafe.
package pool

import "github.com/joeycumines/go-diminuto/list"

// Allocator supplies raw objects when the free list is empty, and
// optionally reclaims them when a Pool is drained. The default Allocator
// (used by New when alloc is nil) is new(T) / a no-op free, since Go's
// garbage collector reclaims anything the free list no longer references.
type Allocator[T any] struct {
	Alloc func() *T
	Free  func(*T)
}

// Pool is a free-list pool of *T, backed by an intrusive list.Node ring.
// Pool is not internally synchronized: callers that share a Pool across
// goroutines must provide their own mutual exclusion.
type Pool[T any] struct {
	free      *list.Node
	allocator Allocator[T]
	outstanding int
}

// New creates an empty Pool. If allocator.Alloc is nil, new(T) is used; if
// allocator.Free is nil, draining is a no-op and objects are left for the
// garbage collector.
func New[T any](allocator Allocator[T]) *Pool[T] {
	if allocator.Alloc == nil {
		allocator.Alloc = func() *T { return new(T) }
	}
	return &Pool[T]{
		free:      list.New(nil),
		allocator: allocator,
	}
}

// Alloc dequeues a free object, or obtains a fresh one via the pool's
// Allocator if the free list is empty.
func (p *Pool[T]) Alloc() *T {
	if n := p.free.Pop(); n != nil {
		p.outstanding++
		return n.Data().(*T)
	}
	p.outstanding++
	return p.allocator.Alloc()
}

// Free returns obj to the pool's free list for reuse by a later Alloc.
// obj must have come from this Pool's Alloc; Free does not validate this
// (unlike well.Well, which owns a bounded arena it can range-check).
func (p *Pool[T]) Free(obj *T) {
	if obj == nil {
		return
	}
	p.outstanding--
	p.free.Enqueue(list.New(obj))
}

// Outstanding returns the number of objects currently allocated (Alloc'd
// but not yet Free'd).
func (p *Pool[T]) Outstanding() int {
	return p.outstanding
}

// Drain releases every object currently on the free list back to the
// pool's Allocator.Free (if set), emptying the free list. It does not
// affect outstanding (allocated-but-not-freed) objects.
func (p *Pool[T]) Drain() {
	for {
		n := p.free.Pop()
		if n == nil {
			return
		}
		if p.allocator.Free != nil {
			p.allocator.Free(n.Data().(*T))
		}
	}
}

// Available returns the number of objects currently sitting on the free
// list (a diagnostic, not a capacity bound: Pool has none).
func (p *Pool[T]) Available() int {
	n := 0
	for cur := p.free.Head(); cur != p.free; cur = cur.Next() {
		n++
	}
	return n
}
