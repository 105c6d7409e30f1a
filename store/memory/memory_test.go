package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/store/storetest"
	"github.com/arloliu/helmsman/types"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		st := New()
		t.Cleanup(func() { _ = st.Close(context.Background()) })
		return st
	})
}

func TestExpireEphemeral(t *testing.T) {
	ctx := context.Background()
	st := New()

	require.NoError(t, st.Create(ctx, "/c/LIVEINSTANCES/p1", types.NewRecord("p1"), store.Ephemeral))
	require.NoError(t, st.Create(ctx, "/c/IDEALSTATES/db", types.NewRecord("db"), store.Persistent))

	require.Equal(t, 1, st.ExpireEphemeral())
	require.Equal(t, 1, st.Len())

	_, err := st.Get(ctx, "/c/LIVEINSTANCES/p1", store.Ephemeral)
	require.ErrorIs(t, err, types.ErrNotFound)
	_, err = st.Get(ctx, "/c/IDEALSTATES/db", store.Persistent)
	require.NoError(t, err)
}

func TestCloseDropsEphemeralAndRejectsUse(t *testing.T) {
	ctx := context.Background()
	st := New()
	require.NoError(t, st.Create(ctx, "/c/LIVEINSTANCES/p1", types.NewRecord("p1"), store.Ephemeral))

	require.NoError(t, st.Close(ctx))
	require.NoError(t, st.Close(ctx))
	require.Equal(t, 0, st.Len())

	_, err := st.Get(ctx, "/c/LIVEINSTANCES/p1", store.Ephemeral)
	require.ErrorIs(t, err, types.ErrStoreClosed)
}

func TestRecordsAreCopied(t *testing.T) {
	ctx := context.Background()
	st := New()

	rec := types.NewRecord("db")
	rec.SetSimpleField("v", "1")
	require.NoError(t, st.Set(ctx, "/c/IDEALSTATES/db", rec, store.Persistent))
	rec.SetSimpleField("v", "mutated")

	got, err := st.Get(ctx, "/c/IDEALSTATES/db", store.Persistent)
	require.NoError(t, err)
	require.Equal(t, "1", got.SimpleFields["v"])
}

func TestWatch(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st := New()

	events, stop, err := st.Watch(ctx, "/c/LIVEINSTANCES")
	require.NoError(t, err)

	require.NoError(t, st.Set(ctx, "/c/IDEALSTATES/db", types.NewRecord("db"), store.Persistent))
	require.NoError(t, st.Create(ctx, "/c/LIVEINSTANCES/p1", types.NewRecord("p1"), store.Ephemeral))
	require.NoError(t, st.Remove(ctx, "/c/LIVEINSTANCES/p1"))

	ev := <-events
	require.Equal(t, store.Event{Path: "/c/LIVEINSTANCES/p1", Type: store.EventPut}, ev)
	ev = <-events
	require.Equal(t, store.Event{Path: "/c/LIVEINSTANCES/p1", Type: store.EventDelete}, ev)

	stop()
	stop()
	_, open := <-events
	require.False(t, open)
}
