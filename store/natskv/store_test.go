package natskv

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/store/storetest"
	helmtest "github.com/arloliu/helmsman/testing"
	"github.com/arloliu/helmsman/types"
)

var bucketSeq atomic.Int64

func newTestStore(t *testing.T, nc *nats.Conn, ttl time.Duration) *Store {
	t.Helper()
	st, err := New(context.Background(), nc, Config{
		Bucket:        fmt.Sprintf("helmsman-test-%d", bucketSeq.Add(1)),
		EphemeralTTL:  ttl,
		MemoryStorage: true,
	}, WithLogger(helmtest.NewTestLogger(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close(context.Background()) })

	return st
}

func TestConformance(t *testing.T) {
	_, nc := helmtest.StartEmbeddedNATS(t)
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestStore(t, nc, 10*time.Second)
	})
}

func TestNew_RequiresConnection(t *testing.T) {
	_, err := New(context.Background(), nil, Config{})
	require.ErrorIs(t, err, types.ErrInvalidConfig)
}

func TestConfig_SetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	require.Equal(t, "helmsman", cfg.Bucket)
	require.Equal(t, "helmsman-ephemeral", cfg.EphemeralBucket)
	require.Equal(t, 10*time.Second, cfg.EphemeralTTL)
	require.Equal(t, cfg.EphemeralTTL/3, cfg.KeepaliveInterval)
	require.Equal(t, 1, cfg.Replicas)
	require.Equal(t, 8, cfg.MaxUpdateRetries)
}

func TestEphemeral_KeptAliveUntilClose(t *testing.T) {
	_, nc := helmtest.StartEmbeddedNATS(t)
	ctx := context.Background()

	owner := newTestStore(t, nc, time.Second)
	observer, err := New(ctx, nc, Config{Bucket: owner.cfg.Bucket, EphemeralTTL: time.Second, MemoryStorage: true})
	require.NoError(t, err)
	defer observer.Close(ctx)

	rec := types.NewRecord("p1")
	rec.SetSimpleField("SESSION_ID", "s1")
	require.NoError(t, owner.Create(ctx, "/c/LIVEINSTANCES/p1", rec, store.Ephemeral))
	require.Equal(t, 1, owner.OwnedEphemeral())

	time.Sleep(2 * time.Second)
	got, err := observer.Get(ctx, "/c/LIVEINSTANCES/p1", store.Ephemeral)
	require.NoError(t, err, "owned node should outlive its TTL")
	require.Equal(t, "s1", got.SimpleFields["SESSION_ID"])

	require.NoError(t, owner.Close(ctx))
	_, err = observer.Get(ctx, "/c/LIVEINSTANCES/p1", store.Ephemeral)
	require.ErrorIs(t, err, types.ErrNotFound)

	_, err = owner.Get(ctx, "/c/LIVEINSTANCES/p1", store.Ephemeral)
	require.ErrorIs(t, err, types.ErrStoreClosed)
}

func TestEphemeral_ForeignNodeNotRefreshed(t *testing.T) {
	_, nc := helmtest.StartEmbeddedNATS(t)
	ctx := context.Background()

	st := newTestStore(t, nc, time.Second)
	require.NoError(t, st.ephemeralPutForTest(ctx, "/c/LIVEINSTANCES/ghost"))

	require.Eventually(t, func() bool {
		_, err := st.Get(ctx, "/c/LIVEINSTANCES/ghost", store.Ephemeral)
		return err != nil
	}, 5*time.Second, 100*time.Millisecond)
}

func TestUpdate_MergesConcurrently(t *testing.T) {
	_, nc := helmtest.StartEmbeddedNATS(t)
	ctx := context.Background()
	st := newTestStore(t, nc, 10*time.Second)

	const writers = 5
	errs := make(chan error, writers)
	for i := range writers {
		go func() {
			patch := types.NewRecord("TestDB")
			patch.SetMapFieldEntry("TestDB_0", fmt.Sprintf("p%d", i), "MASTER")
			errs <- st.Update(ctx, "/c/EXTERNALVIEW/TestDB", patch, store.Persistent)
		}()
	}
	for range writers {
		require.NoError(t, <-errs)
	}

	got, err := st.Get(ctx, "/c/EXTERNALVIEW/TestDB", store.Persistent)
	require.NoError(t, err)
	require.Len(t, got.MapFields["TestDB_0"], writers)
}

func TestWatch(t *testing.T) {
	_, nc := helmtest.StartEmbeddedNATS(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st := newTestStore(t, nc, 10*time.Second)

	events, stop, err := st.Watch(ctx, "/c/LIVEINSTANCES")
	require.NoError(t, err)

	require.NoError(t, st.Set(ctx, "/c/IDEALSTATES/db", types.NewRecord("db"), store.Persistent))
	require.NoError(t, st.Create(ctx, "/c/LIVEINSTANCES/p1", types.NewRecord("p1"), store.Ephemeral))

	select {
	case ev := <-events:
		require.Equal(t, store.Event{Path: "/c/LIVEINSTANCES/p1", Type: store.EventPut}, ev)
	case <-ctx.Done():
		t.Fatal("no put event")
	}

	require.NoError(t, st.Remove(ctx, "/c/LIVEINSTANCES/p1"))
	for {
		select {
		case ev := <-events:
			if ev.Type == store.EventDelete {
				require.Equal(t, "/c/LIVEINSTANCES/p1", ev.Path)
				stop()
				require.Eventually(t, func() bool {
					select {
					case _, open := <-events:
						return !open
					default:
						return false
					}
				}, 5*time.Second, 10*time.Millisecond)
				return
			}
		case <-ctx.Done():
			t.Fatal("no delete event")
		}
	}
}
