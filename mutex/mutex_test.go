package mutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGuardSerializesAccess(t *testing.T) {
	var m Mutex
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Guard(&m, func() { counter++ })
		}()
	}
	wg.Wait()

	require.Equal(t, 100, counter)
}

func TestTryLockReportsContention(t *testing.T) {
	var m Mutex
	require.True(t, m.TryLock())
	require.False(t, m.TryLock())
	m.Unlock()
	require.True(t, m.TryLock())
	m.Unlock()
}

func TestBeginEndRoundTrip(t *testing.T) {
	var m Mutex
	tok := Begin(&m)
	require.False(t, m.TryLock())
	tok.End()
	require.True(t, m.TryLock())
	m.Unlock()
}

func TestGuardUnlocksOnPanic(t *testing.T) {
	var m Mutex
	require.Panics(t, func() {
		Guard(&m, func() { panic("boom") })
	})
	require.True(t, m.TryLock(), "Guard must release the lock even when fn panics")
}
