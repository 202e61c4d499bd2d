// Package buffer implements a size-class byte allocator: a sorted array of
// size classes (defaults: powers of two from 8 to 4096, plus an overflow
// class), each allocation hashed to the smallest class that fits, carrying
// a small header recording the chosen class (or the exact size, for
// overflow), with the returned pointer landing past the header.
//
// Grounded on Diminuto/tst/unittest-buffer.c and unittest-bufferpool.c
// (prealloc/nomalloc/debug/set/log behavior), with each class's free list
// built on pool.Pool: a buffer pool is a pool.Pool per size class plus the
// class-selection and header bookkeeping layered on top. Debug toggles
// per-call logging of allocator activity; Set swaps a Pool's entire
// class/backing-pool configuration for another's, atomically.
package buffer

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"unsafe"

	diminuto "github.com/joeycumines/go-diminuto"
	"github.com/joeycumines/go-diminuto/pool"
)

// headerSize is the fixed prefix every allocated block carries: the
// class index (or -1 for overflow) followed by the overflow size when
// applicable.
const headerSize = 16

type header struct {
	class int64 // index into classes, or -1 for overflow
	size  int64 // overflow only: the exact size requested
}

// DefaultSizeClasses are the payload sizes used when no classes are given
// to New: powers of two from 8 to 4096.
var DefaultSizeClasses = []int{8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096}

// Pool is a size-class byte allocator. The zero value is not usable; use
// New.
type Pool struct {
	mu       sync.Mutex
	classes  []int // ascending payload sizes
	pools    []*pool.Pool[[]byte]
	nomalloc bool
	debug    bool
}

// Option configures a Pool at construction time.
type Option func(*Pool)

// WithSizeClasses overrides the default size classes. Values are sorted
// ascending and deduplicated.
func WithSizeClasses(classes ...int) Option {
	return func(p *Pool) {
		cs := append([]int(nil), classes...)
		sort.Ints(cs)
		cs = dedupe(cs)
		p.classes = cs
	}
}

func dedupe(sorted []int) []int {
	out := sorted[:0]
	var last int
	for i, v := range sorted {
		if i == 0 || v != last {
			out = append(out, v)
			last = v
		}
	}
	return out
}

// New creates a Pool with the given options.
func New(opts ...Option) *Pool {
	p := &Pool{classes: append([]int(nil), DefaultSizeClasses...)}
	for _, opt := range opts {
		opt(p)
	}
	p.pools = make([]*pool.Pool[[]byte], len(p.classes))
	for i, sz := range p.classes {
		blockSize := sz + headerSize
		p.pools[i] = pool.New[[]byte](pool.Allocator[[]byte]{
			Alloc: func() *[]byte {
				b := make([]byte, blockSize)
				return &b
			},
		})
	}
	return p
}

// NoMalloc sets whether allocation failures fall through to a fresh
// malloc-equivalent when a class's free list is empty. When true, a
// class miss returns ErrNoResources instead of growing.
func (p *Pool) NoMalloc(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nomalloc = enabled
}

// Debug enables or disables per-call logging of Alloc/Free/Prealloc
// activity through the package-wide Logger, returning the previous
// setting. Grounded on diminuto_buffer_debug, which toggles the same
// flag and returns its prior state so a test can restore it afterward
// (see unittest-buffer.c's use around diminuto_buffer_log assertions).
func (p *Pool) Debug(enabled bool) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.debug
	p.debug = enabled
	return prev
}

// logDebug emits one debug-level log line per Alloc/Free/Prealloc call
// when debug mode is enabled. p.mu must be held.
func (p *Pool) logDebug(op string, class int, size int) {
	if !p.debug {
		return
	}
	fields := map[string]any{"op": op, "size": size}
	if class >= 0 {
		fields["class"] = class
	}
	diminuto.GetLogger().Log(diminuto.LogEntry{
		Level:     diminuto.LevelDebug,
		Component: "buffer",
		Message:   "buffer pool activity",
		Fields:    fields,
	})
}

// Set installs replacement's size classes, backing pools, and nomalloc
// setting as p's own, atomically swapping out p's prior configuration
// (whether from New's options or an earlier Set) and returning it as a
// *Pool so a caller can restore it with a second Set call. replacement
// must be non-nil and is consumed: the caller should not keep using it
// directly afterward.
//
// Grounded on diminuto_buffer_set, which lets a caller install a
// diminuto_buffer_pool_t backed by static or stack storage in place of
// the library's own heap-backed default pool, e.g. to guarantee a
// real-time section's allocations never reach the heap; there, a NULL
// argument resets the library's single process-wide pool to its own
// built-in default. This package has no such implicit singleton — New
// returns an independent *Pool per caller — so there's nothing for a
// nil replacement to reset to; Set requires an explicit replacement and
// is a no-op returning nil if given none.
func (p *Pool) Set(replacement *Pool) *Pool {
	if replacement == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if replacement != p {
		replacement.mu.Lock()
		defer replacement.mu.Unlock()
	}

	prev := &Pool{classes: p.classes, pools: p.pools, nomalloc: p.nomalloc, debug: p.debug}

	p.classes = replacement.classes
	p.pools = replacement.pools
	p.nomalloc = replacement.nomalloc

	return prev
}

// hash returns the index of the smallest class whose payload size is >=
// n, or len(classes) if n exceeds every class (the overflow case).
func (p *Pool) hash(n int) int {
	return sort.Search(len(p.classes), func(i int) bool { return p.classes[i] >= n })
}

// Alloc returns a payload slice of at least n bytes, hashed to the
// smallest size class that fits (or allocated directly if n exceeds the
// largest class). A zero-sized allocation returns (nil, nil): that is
// success, not an error.
func (p *Pool) Alloc(n int) ([]byte, error) {
	if n < 0 {
		return nil, errors.New("buffer: negative size")
	}
	if n == 0 {
		return nil, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.hash(n)
	if idx == len(p.classes) {
		return p.allocOverflow(n)
	}

	if p.nomalloc && p.pools[idx].Available() == 0 {
		return nil, diminuto.ErrNoResources
	}

	blockPtr := p.pools[idx].Alloc()
	block := *blockPtr
	writeHeader(block, header{class: int64(idx)})
	p.logDebug("alloc", idx, n)
	return block[headerSize : headerSize+n], nil
}

func (p *Pool) allocOverflow(n int) ([]byte, error) {
	if p.nomalloc {
		return nil, diminuto.ErrNoResources
	}
	block := make([]byte, n+headerSize)
	writeHeader(block, header{class: -1, size: int64(n)})
	p.logDebug("alloc_overflow", -1, n)
	return block[headerSize:], nil
}

// Free returns payload — a slice previously returned by Alloc — to its
// size class's free list. Overflow allocations are simply released to the
// garbage collector, matching the C implementation's direct free(3).
func (p *Pool) Free(payload []byte) error {
	if payload == nil {
		return nil
	}
	block := recoverBlock(payload)
	h := readHeader(block)

	p.mu.Lock()
	defer p.mu.Unlock()

	if h.class < 0 {
		p.logDebug("free_overflow", -1, len(payload))
		return nil // overflow: nothing to pool, GC reclaims it
	}
	if int(h.class) >= len(p.pools) {
		return fmt.Errorf("%w: corrupt buffer header", diminuto.ErrInvalid)
	}
	p.pools[h.class].Free(&block)
	p.logDebug("free", int(h.class), len(payload))
	return nil
}

// Prealloc bulk-allocates count blocks of the given class index and
// stages them on that class's free list, for callers that want to avoid
// allocation latency on the hot path.
func (p *Pool) Prealloc(class int, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if class < 0 || class >= len(p.pools) {
		return diminuto.ErrInvalid
	}
	// Take every block already free plus count fresh ones from the class's
	// pool, then return them all, so the free list grows by count while
	// the pool's in-use count is left unchanged.
	total := p.pools[class].Available() + count
	staged := make([]*[]byte, 0, max(total, 0))
	for i := 0; i < total; i++ {
		staged = append(staged, p.pools[class].Alloc())
	}
	for _, b := range staged {
		p.pools[class].Free(b)
	}
	p.logDebug("prealloc", class, count)
	return nil
}

// ClassLog is one line of Pool.Log's per-class accounting.
type ClassLog struct {
	Class int
	Size  int
	Free  int
	InUse int
}

// Log returns the free/in-use counts for every size class.
func (p *Pool) Log() []ClassLog {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ClassLog, len(p.classes))
	for i, sz := range p.classes {
		out[i] = ClassLog{
			Class: i,
			Size:  sz,
			Free:  p.pools[i].Available(),
			InUse: p.pools[i].Outstanding(),
		}
	}
	return out
}

func writeHeader(block []byte, h header) {
	*(*header)(unsafe.Pointer(&block[0])) = h
}

func readHeader(block []byte) header {
	return *(*header)(unsafe.Pointer(&block[0]))
}

// recoverBlock reconstructs the full header+payload block from a payload
// slice previously handed out by Alloc, by walking back headerSize bytes
// from the payload's backing array — the Go analogue of the C idiom
// `(char *)payload - sizeof(header)`. The payload's capacity covers the
// whole class, so the recovered block has the class's full length. This
// is the only unsafe pointer arithmetic in this package, confined here so
// the rest of the allocator stays entirely in terms of plain slices.
func recoverBlock(payload []byte) []byte {
	base := uintptr(unsafe.Pointer(&payload[0])) - headerSize
	return unsafe.Slice((*byte)(unsafe.Pointer(base)), cap(payload)+headerSize)
}
