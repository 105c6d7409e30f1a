package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/store/memory"
	"github.com/arloliu/helmsman/types"
	"github.com/stretchr/testify/require"
)

// pollOnly hides the Watch method of the wrapped store.
type pollOnly struct {
	store.Store
}

func TestChangeMonitor_StartStop(t *testing.T) {
	m := New(memory.New(), "/c", time.Hour, 10*time.Millisecond, nil, logging.NewTest(t))

	require.ErrorIs(t, m.Stop(), types.ErrMonitorNotStarted)
	require.NoError(t, m.Start(context.Background()))
	require.ErrorIs(t, m.Start(context.Background()), types.ErrMonitorAlreadyStarted)

	require.NoError(t, m.Stop())
	require.NoError(t, m.Stop())
	require.ErrorIs(t, m.Start(context.Background()), types.ErrMonitorAlreadyStopped)
}

func TestChangeMonitor_DetectsWrites(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	var calls atomic.Int32
	m := New(st, "/c", time.Hour, 20*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}, logging.NewTest(t))
	require.NoError(t, m.Start(ctx))
	defer func() { _ = m.Stop() }()

	require.Eventually(t, m.Watching, time.Second, 5*time.Millisecond)

	// A burst of events collapses into one callback.
	for _, p := range []string{"/c/LIVEINSTANCES/p1", "/c/LIVEINSTANCES/p2", "/c/IDEALSTATES/db"} {
		require.NoError(t, st.Set(ctx, p, types.NewRecord("x"), store.Persistent))
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	// Writes outside the prefix are ignored.
	require.NoError(t, st.Set(ctx, "/other/IDEALSTATES/db", types.NewRecord("db"), store.Persistent))
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(1), calls.Load())
}

func TestChangeMonitor_IgnoredPrefixes(t *testing.T) {
	ctx := context.Background()
	st := memory.New()

	var calls atomic.Int32
	m := New(st, "/c", time.Hour, 10*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return nil
	}, logging.NewTest(t))
	m.Ignore("/c/EXTERNALVIEW")
	require.NoError(t, m.Start(ctx))
	defer func() { _ = m.Stop() }()
	require.Eventually(t, m.Watching, time.Second, 5*time.Millisecond)

	require.NoError(t, st.Set(ctx, "/c/EXTERNALVIEW/db", types.NewRecord("db"), store.Persistent))
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, int32(0), calls.Load())

	require.NoError(t, st.Set(ctx, "/c/IDEALSTATES/db", types.NewRecord("db"), store.Persistent))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestChangeMonitor_PollingFallback(t *testing.T) {
	var calls atomic.Int32
	m := New(pollOnly{memory.New()}, "/c", 20*time.Millisecond, 5*time.Millisecond, func(context.Context) error {
		calls.Add(1)
		return errors.New("callback failure is logged only")
	}, logging.NewTest(t))
	require.NoError(t, m.Start(context.Background()))
	defer func() { _ = m.Stop() }()

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, 2*time.Second, 10*time.Millisecond)
	require.False(t, m.Watching())
}

func TestChangeMonitor_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := New(memory.New(), "/c", time.Hour, 10*time.Millisecond, nil, nil)
	require.NoError(t, m.Start(ctx))

	cancel()
	done := make(chan struct{})
	go func() {
		_ = m.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after context cancel")
	}
}
