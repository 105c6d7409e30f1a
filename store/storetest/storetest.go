// Package storetest provides a conformance suite for store.Store backends.
//
// Each backend test calls Run with a factory returning a fresh, empty store:
//
//	func TestConformance(t *testing.T) {
//	    storetest.Run(t, func(t *testing.T) store.Store { return memory.New() })
//	}
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/types"
)

// Factory returns a fresh store for one subtest.
type Factory func(t *testing.T) store.Store

func record(id string, kv ...string) *types.Record {
	r := types.NewRecord(id)
	for i := 0; i+1 < len(kv); i += 2 {
		r.SetSimpleField(kv[i], kv[i+1])
	}

	return r
}

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("create rejects duplicates", func(t *testing.T) {
		st := newStore(t)
		ctx := testContext(t)

		require.NoError(t, st.Create(ctx, "/c/IDEALSTATES/db", record("db", "v", "1"), store.Persistent))
		err := st.Create(ctx, "/c/IDEALSTATES/db", record("db", "v", "2"), store.Persistent)
		require.ErrorIs(t, err, types.ErrAlreadyExists)

		got, err := st.Get(ctx, "/c/IDEALSTATES/db", store.Persistent)
		require.NoError(t, err)
		require.Equal(t, "1", got.SimpleFields["v"])
	})

	t.Run("set overwrites", func(t *testing.T) {
		st := newStore(t)
		ctx := testContext(t)

		require.NoError(t, st.Set(ctx, "/c/IDEALSTATES/db", record("db", "v", "1"), store.Persistent))
		require.NoError(t, st.Set(ctx, "/c/IDEALSTATES/db", record("db", "v", "2"), store.Persistent))

		got, err := st.Get(ctx, "/c/IDEALSTATES/db", store.Persistent)
		require.NoError(t, err)
		require.Equal(t, "2", got.SimpleFields["v"])
	})

	t.Run("update merges and creates", func(t *testing.T) {
		st := newStore(t)
		ctx := testContext(t)

		require.NoError(t, st.Update(ctx, "/c/CONFIGS/PARTICIPANT/p1", record("p1", "a", "1"), store.Persistent))
		require.NoError(t, st.Update(ctx, "/c/CONFIGS/PARTICIPANT/p1", record("p1", "b", "2"), store.Persistent))

		got, err := st.Get(ctx, "/c/CONFIGS/PARTICIPANT/p1", store.Persistent)
		require.NoError(t, err)
		require.Equal(t, map[string]string{"a": "1", "b": "2"}, got.SimpleFields)
	})

	t.Run("get missing is not found", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Get(testContext(t), "/c/IDEALSTATES/missing", store.Persistent)
		require.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("remove is recursive and rejects missing", func(t *testing.T) {
		st := newStore(t)
		ctx := testContext(t)

		require.NoError(t, st.Set(ctx, "/c/INSTANCES/p1/MESSAGES/m1", record("m1"), store.Persistent))
		require.NoError(t, st.Set(ctx, "/c/INSTANCES/p1/CURRENTSTATES/s1/db", record("db"), store.Persistent))
		require.NoError(t, st.Set(ctx, "/c/INSTANCES/p10/MESSAGES/m2", record("m2"), store.Persistent))

		require.NoError(t, st.Remove(ctx, "/c/INSTANCES/p1"))

		_, err := st.Get(ctx, "/c/INSTANCES/p1/MESSAGES/m1", store.Persistent)
		require.ErrorIs(t, err, types.ErrNotFound)
		_, err = st.Get(ctx, "/c/INSTANCES/p10/MESSAGES/m2", store.Persistent)
		require.NoError(t, err)

		require.ErrorIs(t, st.Remove(ctx, "/c/INSTANCES/p1"), types.ErrNotFound)
	})

	t.Run("children lists direct children only", func(t *testing.T) {
		st := newStore(t)
		ctx := testContext(t)

		require.NoError(t, st.Set(ctx, "/c/IDEALSTATES/b", record("b"), store.Persistent))
		require.NoError(t, st.Set(ctx, "/c/IDEALSTATES/a", record("a"), store.Persistent))
		require.NoError(t, st.Set(ctx, "/c/IDEALSTATES/a/nested", record("nested"), store.Persistent))
		require.NoError(t, st.Set(ctx, "/c/EXTERNALVIEW/a", record("a"), store.Persistent))

		names, err := st.ChildNames(ctx, "/c/IDEALSTATES", store.Persistent)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "b"}, names)

		recs, err := st.Children(ctx, "/c/IDEALSTATES", store.Persistent)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		require.Equal(t, "a", recs[0].ID)
		require.Equal(t, "b", recs[1].ID)
	})

	t.Run("children of missing parent is empty", func(t *testing.T) {
		st := newStore(t)
		names, err := st.ChildNames(testContext(t), "/c/LIVEINSTANCES", store.Ephemeral)
		require.NoError(t, err)
		require.Empty(t, names)
	})

	t.Run("ephemeral nodes are readable and listable", func(t *testing.T) {
		st := newStore(t)
		ctx := testContext(t)

		require.NoError(t, st.Create(ctx, "/c/LIVEINSTANCES/p1", record("p1", "SESSION_ID", "s1"), store.Ephemeral))
		require.ErrorIs(t, st.Create(ctx, "/c/LIVEINSTANCES/p1", record("p1"), store.Ephemeral), types.ErrAlreadyExists)

		got, err := st.Get(ctx, "/c/LIVEINSTANCES/p1", store.Ephemeral)
		require.NoError(t, err)
		require.Equal(t, "s1", got.SimpleFields["SESSION_ID"])

		names, err := st.ChildNames(ctx, "/c/LIVEINSTANCES", store.Ephemeral)
		require.NoError(t, err)
		require.Equal(t, []string{"p1"}, names)

		require.NoError(t, st.Remove(ctx, "/c/LIVEINSTANCES/p1"))
		_, err = st.Get(ctx, "/c/LIVEINSTANCES/p1", store.Ephemeral)
		require.ErrorIs(t, err, types.ErrNotFound)
	})

	t.Run("batch reports per item", func(t *testing.T) {
		st := newStore(t)
		ctx := testContext(t)

		require.NoError(t, st.Create(ctx, "/c/IDEALSTATES/dup", record("dup"), store.Persistent))

		errs := st.CreateChildren(ctx,
			[]string{"/c/IDEALSTATES/dup", "/c/IDEALSTATES/fresh", "/c/LIVEINSTANCES/p1"},
			[]*types.Record{record("dup"), record("fresh"), record("p1")},
			[]store.Option{store.Persistent, store.Persistent, store.Ephemeral},
		)
		require.Len(t, errs, 3)
		require.ErrorIs(t, errs[0], types.ErrAlreadyExists)
		require.NoError(t, errs[1])
		require.NoError(t, errs[2])

		_, err := st.Get(ctx, "/c/LIVEINSTANCES/p1", store.Ephemeral)
		require.NoError(t, err)

		errs = st.SetChildren(ctx,
			[]string{"/c/IDEALSTATES/dup"},
			[]*types.Record{record("dup", "v", "2")},
			[]store.Option{store.Persistent},
		)
		require.NoError(t, errs[0])
	})

	t.Run("batch length mismatch", func(t *testing.T) {
		st := newStore(t)
		errs := st.SetChildren(testContext(t), []string{"/c/a", "/c/b"}, []*types.Record{record("a")}, []store.Option{store.Persistent})
		require.Len(t, errs, 2)
		for _, err := range errs {
			require.ErrorIs(t, err, types.ErrBatchMismatch)
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		st := newStore(t)
		require.ErrorIs(t, st.Set(testContext(t), "relative/path", record("x"), store.Persistent), types.ErrInvalidPath)
	})

	t.Run("canceled context", func(t *testing.T) {
		st := newStore(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		require.Error(t, st.Set(ctx, "/c/IDEALSTATES/db", record("db"), store.Persistent))
	})
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	return ctx
}
