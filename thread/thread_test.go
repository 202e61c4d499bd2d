package thread

import (
	"context"
	"testing"
	"time"

	diminuto "github.com/joeycumines/go-diminuto"
	"github.com/joeycumines/go-diminuto/ticks"
	"github.com/stretchr/testify/require"
)

func TestStartRunJoinLifecycle(t *testing.T) {
	th := New(func(ctx context.Context, arg any) any {
		return arg.(int) * 2
	})
	require.Equal(t, StateInitialized, th.State())

	require.NoError(t, th.Start(context.Background(), 21))

	value, err := th.Join()
	require.NoError(t, err)
	require.Equal(t, 42, value)
	require.Equal(t, StateJoined, th.State())
}

func TestStartTwiceWithoutJoinIsError(t *testing.T) {
	block := make(chan struct{})
	th := New(func(ctx context.Context, arg any) any {
		<-block
		return nil
	})
	require.NoError(t, th.Start(context.Background(), nil))

	err := th.Start(context.Background(), nil)
	require.Error(t, err)

	close(block)
	_, _ = th.Join()
}

func TestJoinUntilTimesOutWhileRunning(t *testing.T) {
	block := make(chan struct{})
	th := New(func(ctx context.Context, arg any) any {
		<-block
		return nil
	})
	require.NoError(t, th.Start(context.Background(), nil))

	_, err := th.JoinUntil(ticks.FromDuration(10 * time.Millisecond))
	require.ErrorIs(t, err, diminuto.ErrTimedOut)

	close(block)
	_, err = th.Join()
	require.NoError(t, err)
}

func TestNotifyAccumulatesAndDrains(t *testing.T) {
	gotKick := make(chan struct{}, 1)
	var th *Thread
	th = New(func(ctx context.Context, arg any) any {
		<-th.Kick()
		gotKick <- struct{}{}
		return nil
	})
	require.NoError(t, th.Start(context.Background(), nil))

	th.Notify()
	th.Notify()
	th.Notify()

	<-gotKick
	require.Equal(t, uint(3), th.Notifications())
	require.Equal(t, uint(0), th.Notifications())

	_, err := th.Join()
	require.NoError(t, err)
}

func TestStopCancelsRunningFunc(t *testing.T) {
	th := New(func(ctx context.Context, arg any) any {
		<-ctx.Done()
		return "stopped"
	})
	require.NoError(t, th.Start(context.Background(), nil))

	th.Stop()

	value, err := th.Join()
	require.NoError(t, err)
	require.Equal(t, "stopped", value)
}

func TestRestartAfterJoin(t *testing.T) {
	calls := 0
	th := New(func(ctx context.Context, arg any) any {
		calls++
		return nil
	})

	require.NoError(t, th.Start(context.Background(), nil))
	_, err := th.Join()
	require.NoError(t, err)

	require.NoError(t, th.Start(context.Background(), nil))
	_, err = th.Join()
	require.NoError(t, err)

	require.Equal(t, 2, calls)
}

func TestStateStringer(t *testing.T) {
	require.Equal(t, "running", StateRunning.String())
	require.Equal(t, "joined", StateJoined.String())
}

func TestInstanceIsLazilyInitializedAndStable(t *testing.T) {
	a := Instance()
	require.NotNil(t, a)
	require.Equal(t, StateRunning, a.State())
	require.Same(t, a, Instance(), "Instance must return the same object on every call")
}

func TestSelfOutsideAnyThreadReturnsInstance(t *testing.T) {
	require.Same(t, Instance(), Self(context.Background()))
}

func TestSelfInsideThreadReturnsItsOwnThread(t *testing.T) {
	var observed *Thread
	var th *Thread
	th = New(func(ctx context.Context, arg any) any {
		observed = Self(ctx)
		return nil
	})

	require.NoError(t, th.Start(context.Background(), nil))
	_, err := th.Join()
	require.NoError(t, err)

	require.Same(t, th, observed)
	require.NotSame(t, Instance(), observed)
}
