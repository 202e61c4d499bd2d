package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type widget struct {
	val int
}

func TestAllocFreeAllocRoundTrip(t *testing.T) {
	constructed := 0
	p := New[widget](Allocator[widget]{
		Alloc: func() *widget {
			constructed++
			return &widget{}
		},
	})

	a := p.Alloc()
	require.Equal(t, 1, constructed)
	require.Equal(t, 1, p.Outstanding())

	a.val = 42
	p.Free(a)
	require.Equal(t, 0, p.Outstanding())
	require.Equal(t, 1, p.Available())

	b := p.Alloc()
	require.Same(t, a, b, "freed object must be reissued before a new one is constructed")
	require.Equal(t, 1, constructed, "second alloc must reuse, not construct")
	require.Equal(t, 42, b.val, "reused object's previous contents are visible until overwritten")
}

func TestAllocGrowsUnboundedWhenFreeListEmpty(t *testing.T) {
	constructed := 0
	p := New[widget](Allocator[widget]{
		Alloc: func() *widget {
			constructed++
			return &widget{}
		},
	})

	objs := make([]*widget, 10)
	for i := range objs {
		objs[i] = p.Alloc()
	}
	require.Equal(t, 10, constructed)
	require.Equal(t, 10, p.Outstanding())
}

func TestDefaultAllocator(t *testing.T) {
	p := New[widget](Allocator[widget]{})
	a := p.Alloc()
	require.NotNil(t, a)
}

func TestDrainCallsFreeAllocator(t *testing.T) {
	freed := 0
	p := New[widget](Allocator[widget]{
		Free: func(*widget) { freed++ },
	})

	a := p.Alloc()
	b := p.Alloc()
	p.Free(a)
	p.Free(b)

	p.Drain()
	require.Equal(t, 2, freed)
	require.Equal(t, 0, p.Available())
}

func TestFreeNilIsNoop(t *testing.T) {
	p := New[widget](Allocator[widget]{})
	require.NotPanics(t, func() { p.Free(nil) })
	require.Equal(t, 0, p.Outstanding())
}
