package buffer

import (
	"testing"

	diminuto "github.com/joeycumines/go-diminuto"
	"github.com/stretchr/testify/require"
)

func TestAllocRoundsUpToClass(t *testing.T) {
	p := New()
	b, err := p.Alloc(5)
	require.NoError(t, err)
	require.Len(t, b, 5)
	require.NoError(t, p.Free(b))
}

func TestZeroSizeAllocIsNotAnError(t *testing.T) {
	p := New()
	b, err := p.Alloc(0)
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestFreeNilIsNoop(t *testing.T) {
	p := New()
	require.NoError(t, p.Free(nil))
}

func TestAllocFreeNeverCrossesClass(t *testing.T) {
	p := New(WithSizeClasses(8, 16, 32))

	a, err := p.Alloc(10)
	require.NoError(t, err)
	require.NoError(t, p.Free(a))

	logBefore := p.Log()

	b, err := p.Alloc(10)
	require.NoError(t, err)
	require.Same(t, &a[0], &b[0], "reused block must come from the same class's free list")

	logAfter := p.Log()
	require.Equal(t, logBefore[1].Size, logAfter[1].Size)
}

func TestAllocBeyondLargestClassOverflows(t *testing.T) {
	p := New(WithSizeClasses(8, 16))
	b, err := p.Alloc(1024)
	require.NoError(t, err)
	require.Len(t, b, 1024)
	require.NoError(t, p.Free(b))
}

func TestNegativeSizeIsError(t *testing.T) {
	p := New()
	_, err := p.Alloc(-1)
	require.Error(t, err)
}

func TestNoMallocReturnsErrNoResourcesOnClassMiss(t *testing.T) {
	p := New(WithSizeClasses(8))
	p.NoMalloc(true)

	_, err := p.Alloc(4)
	require.ErrorIs(t, err, diminuto.ErrNoResources)
}

func TestPreallocStagesFreeList(t *testing.T) {
	p := New(WithSizeClasses(8, 16))
	require.NoError(t, p.Prealloc(0, 3))

	log := p.Log()
	require.Equal(t, 3, log[0].Free)
}

func TestPreallocInvalidClassIsError(t *testing.T) {
	p := New(WithSizeClasses(8))
	require.ErrorIs(t, p.Prealloc(5, 1), diminuto.ErrInvalid)
}

func TestLogReflectsOutstandingAllocations(t *testing.T) {
	p := New(WithSizeClasses(8, 16))
	a, err := p.Alloc(8)
	require.NoError(t, err)

	log := p.Log()
	require.Equal(t, 1, log[0].InUse)
	require.Equal(t, 0, log[0].Free)

	require.NoError(t, p.Free(a))
	log = p.Log()
	require.Equal(t, 0, log[0].InUse)
	require.Equal(t, 1, log[0].Free)
}

func TestWithSizeClassesDedupesAndSorts(t *testing.T) {
	p := New(WithSizeClasses(32, 8, 8, 16))
	require.Equal(t, []int{8, 16, 32}, p.classes)
}

func TestDebugReturnsPreviousState(t *testing.T) {
	p := New()
	require.False(t, p.Debug(true))
	require.True(t, p.Debug(true))
	require.True(t, p.Debug(false))
	require.False(t, p.Debug(false))
}

func TestDebugLogsAllocAndFree(t *testing.T) {
	p := New(WithSizeClasses(8))
	logger := &recordingLogger{enabled: true}
	diminuto.SetLogger(logger)
	defer diminuto.SetLogger(nil)

	p.Debug(true)

	b, err := p.Alloc(4)
	require.NoError(t, err)
	require.NoError(t, p.Free(b))

	require.GreaterOrEqual(t, len(logger.entries), 2)
	require.Equal(t, "alloc", logger.entries[0].Fields["op"])
	require.Equal(t, "free", logger.entries[1].Fields["op"])
}

func TestDebugDisabledLogsNothing(t *testing.T) {
	p := New(WithSizeClasses(8))
	logger := &recordingLogger{enabled: true}
	diminuto.SetLogger(logger)
	defer diminuto.SetLogger(nil)

	b, err := p.Alloc(4)
	require.NoError(t, err)
	require.NoError(t, p.Free(b))

	require.Empty(t, logger.entries)
}

func TestSetSwapsConfigurationAndReturnsPrevious(t *testing.T) {
	p := New(WithSizeClasses(8, 16))
	p.NoMalloc(true)

	replacement := New(WithSizeClasses(100, 1000))
	prev := p.Set(replacement)
	require.NotNil(t, prev)
	require.Equal(t, []int{8, 16}, prev.classes)
	require.True(t, prev.nomalloc)

	require.Equal(t, []int{100, 1000}, p.classes)
	require.False(t, p.nomalloc)

	b, err := p.Alloc(50)
	require.NoError(t, err)
	require.Len(t, b, 50)
	require.NoError(t, p.Free(b))

	restored := p.Set(prev)
	require.NotNil(t, restored)
	require.Equal(t, []int{100, 1000}, restored.classes)
	require.Equal(t, []int{8, 16}, p.classes)
}

func TestSetNilIsNoop(t *testing.T) {
	p := New(WithSizeClasses(8, 16))
	require.Nil(t, p.Set(nil))
	require.Equal(t, []int{8, 16}, p.classes)
}

type recordingLogger struct {
	enabled bool
	entries []diminuto.LogEntry
}

func (l *recordingLogger) Log(entry diminuto.LogEntry) {
	l.entries = append(l.entries, entry)
}

func (l *recordingLogger) IsEnabled(diminuto.LogLevel) bool {
	return l.enabled
}
