package kvutil

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	helmtest "github.com/arloliu/helmsman/testing"
)

func TestEnsureKVBucketWithRetry(t *testing.T) {
	_, nc := helmtest.StartEmbeddedNATS(t)

	ctx := context.Background()
	js, err := jetstream.New(nc)
	require.NoError(t, err)

	t.Run("successful creation on first try", func(t *testing.T) {
		kv, err := EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{Bucket: "retry-1", History: 1}, 3)
		require.NoError(t, err)
		require.NotNil(t, kv)
	})

	t.Run("bucket exists - should open it", func(t *testing.T) {
		cfg := jetstream.KeyValueConfig{Bucket: "retry-2", History: 1, TTL: 5 * time.Second}
		_, err := js.CreateKeyValue(ctx, cfg)
		require.NoError(t, err)

		kv, err := EnsureKVBucketWithRetry(ctx, js, cfg, 3)
		require.NoError(t, err)
		require.NotNil(t, kv)
	})

	t.Run("concurrent creates - 10 controllers", func(t *testing.T) {
		cfg := jetstream.KeyValueConfig{Bucket: "retry-3", History: 1}

		var wg sync.WaitGroup
		errs := make(chan error, 10)
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := EnsureKVBucketWithRetry(ctx, js, cfg, 5); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
	})

	t.Run("context timeout - should fail gracefully", func(t *testing.T) {
		shortCtx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		time.Sleep(time.Millisecond)

		_, err := EnsureKVBucketWithRetry(shortCtx, js, jetstream.KeyValueConfig{Bucket: "retry-4"}, 3)
		require.Error(t, err)
		require.Contains(t, err.Error(), "context")
	})
}

func TestUpdateWithRetry(t *testing.T) {
	_, nc := helmtest.StartEmbeddedNATS(t)
	kv := helmtest.CreateJetStreamKV(t, nc, "cas", 0)
	ctx := context.Background()

	increment := func(current []byte) ([]byte, error) {
		n := 0
		if current != nil {
			var err error
			n, err = strconv.Atoi(string(current))
			if err != nil {
				return nil, err
			}
		}

		return []byte(strconv.Itoa(n + 1)), nil
	}

	t.Run("creates absent key", func(t *testing.T) {
		got, err := UpdateWithRetry(ctx, kv, "counter", increment, 0)
		require.NoError(t, err)
		require.Equal(t, "1", string(got))
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		var wg sync.WaitGroup
		errs := make(chan error, 5)
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := UpdateWithRetry(ctx, kv, "counter", increment, 50); err != nil {
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		entry, err := kv.Get(ctx, "counter")
		require.NoError(t, err)
		require.Equal(t, "6", string(entry.Value()))
	})

	t.Run("merge error is returned", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := UpdateWithRetry(ctx, kv, "counter", func([]byte) ([]byte, error) { return nil, boom }, 3)
		require.ErrorIs(t, err, boom)
	})
}
