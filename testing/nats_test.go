package testing

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
)

func TestStartEmbeddedNATS(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)

	require.NotNil(t, ns)
	require.NotNil(t, nc)
	require.True(t, nc.IsConnected())
	require.True(t, ns.ReadyForConnections(1*time.Second))

	js, err := jetstream.New(nc)
	require.NoError(t, err)
	_, err = js.AccountInfo(t.Context())
	require.NoError(t, err)
}

func TestStartEmbeddedNATS_ParallelTests(t *testing.T) {
	t.Parallel()

	for range 3 {
		t.Run("parallel", func(t *testing.T) {
			t.Parallel()

			_, nc := StartEmbeddedNATS(t)
			require.True(t, nc.IsConnected())
		})
	}
}

func TestConnect(t *testing.T) {
	ns, nc := StartEmbeddedNATS(t)
	other := Connect(t, ns)

	require.True(t, other.IsConnected())
	require.NotEqual(t, nc, other)

	kv := CreateJetStreamKV(t, nc, "shared", 0)
	_, err := kv.Put(t.Context(), "key", []byte("value"))
	require.NoError(t, err)

	js, err := jetstream.New(other)
	require.NoError(t, err)
	view, err := js.KeyValue(t.Context(), "shared")
	require.NoError(t, err)
	entry, err := view.Get(t.Context(), "key")
	require.NoError(t, err)
	require.Equal(t, []byte("value"), entry.Value())
}

func TestCreateJetStreamKV(t *testing.T) {
	ctx := t.Context()
	_, nc := StartEmbeddedNATS(t)

	t.Run("persistent bucket", func(t *testing.T) {
		kv := CreateJetStreamKV(t, nc, "helmsman", 0)

		_, err := kv.Put(ctx, "cluster.c1.CONFIGS.CLUSTER.c1", []byte(`{"id":"c1"}`))
		require.NoError(t, err)

		entry, err := kv.Get(ctx, "cluster.c1.CONFIGS.CLUSTER.c1")
		require.NoError(t, err)
		require.JSONEq(t, `{"id":"c1"}`, string(entry.Value()))
	})

	t.Run("ttl bucket", func(t *testing.T) {
		kv := CreateJetStreamKV(t, nc, "helmsman-ephemeral", 2*time.Second)

		status, err := kv.Status(ctx)
		require.NoError(t, err)
		require.Equal(t, 2*time.Second, status.TTL())
	})

	t.Run("buckets are isolated", func(t *testing.T) {
		kv1 := CreateJetStreamKV(t, nc, "bucket-1", 0)
		kv2 := CreateJetStreamKV(t, nc, "bucket-2", 0)

		_, err := kv1.Put(ctx, "key", []byte("value1"))
		require.NoError(t, err)
		_, err = kv2.Put(ctx, "key", []byte("value2"))
		require.NoError(t, err)

		entry1, err := kv1.Get(ctx, "key")
		require.NoError(t, err)
		require.Equal(t, []byte("value1"), entry1.Value())

		entry2, err := kv2.Get(ctx, "key")
		require.NoError(t, err)
		require.Equal(t, []byte("value2"), entry2.Value())
	})
}
