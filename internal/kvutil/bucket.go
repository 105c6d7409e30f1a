// Package kvutil provides utilities for working with NATS JetStream KeyValue stores.
package kvutil

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/helmsman/internal/natsutil"
)

// EnsureKVBucketWithRetry creates or opens a KV bucket with retry logic.
//
// Several controllers and participants may open the same cluster buckets at
// once. A creation that loses the race opens the existing bucket; other
// failures are retried with exponential backoff.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - js: JetStream context
//   - config: KV bucket configuration
//   - maxRetries: Maximum number of retry attempts (default: 3)
//
// Returns:
//   - jetstream.KeyValue: The KV bucket instance
//   - error: Any error that occurred after all retries
//
// Example:
//
//	kv, err := kvutil.EnsureKVBucketWithRetry(ctx, js, jetstream.KeyValueConfig{
//	    Bucket: "helmsman-mycluster-live",
//	    TTL:    10 * time.Second,
//	}, 3)
func EnsureKVBucketWithRetry(
	ctx context.Context,
	js jetstream.JetStream,
	config jetstream.KeyValueConfig,
	maxRetries int,
) (jetstream.KeyValue, error) {
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var lastErr error
	for attempt := range maxRetries {
		kv, err := js.CreateKeyValue(ctx, config)
		if err == nil {
			return kv, nil
		}

		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err := js.KeyValue(ctx, config.Bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("context cancelled during KV bucket creation: %w", ctx.Err())
		}

		if err := backoff(ctx, attempt, maxRetries); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed to create/open KV bucket %s after %d attempts: %w",
		config.Bucket, maxRetries, lastErr)
}

// MergeFunc computes the new value of a key from its current value.
// current is nil when the key does not exist.
type MergeFunc func(current []byte) ([]byte, error)

// UpdateWithRetry applies merge to key with compare-and-set semantics.
//
// The current revision is read, merge computes the replacement, and the write
// is conditioned on the revision being unchanged. A write that loses a race
// is retried from a fresh read. Absent keys are created.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - kv: KV bucket
//   - key: KV key
//   - merge: Computes the replacement value
//   - maxRetries: Maximum number of attempts (default: 8)
//
// Returns:
//   - []byte: The value that was written
//   - error: merge errors, JetStream errors, or the last conflict
func UpdateWithRetry(
	ctx context.Context,
	kv jetstream.KeyValue,
	key string,
	merge MergeFunc,
	maxRetries int,
) ([]byte, error) {
	if maxRetries <= 0 {
		maxRetries = 8
	}

	var lastErr error
	for attempt := range maxRetries {
		var (
			current  []byte
			revision uint64
		)
		entry, err := kv.Get(ctx, key)
		switch {
		case err == nil:
			current = entry.Value()
			revision = entry.Revision()
		case errors.Is(err, jetstream.ErrKeyNotFound), errors.Is(err, jetstream.ErrKeyDeleted):
		default:
			return nil, err
		}

		next, err := merge(current)
		if err != nil {
			return nil, err
		}

		if revision == 0 {
			_, err = kv.Create(ctx, key, next)
		} else {
			_, err = kv.Update(ctx, key, next, revision)
		}
		if err == nil {
			return next, nil
		}
		if !natsutil.IsRevisionConflict(err) {
			return nil, err
		}
		lastErr = err

		if err := backoff(ctx, attempt, maxRetries); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("update %s: gave up after %d attempts: %w", key, maxRetries, lastErr)
}

const maxBackoff = 500 * time.Millisecond

// backoff sleeps 10ms, 20ms, 40ms... between attempts, capped at maxBackoff.
func backoff(ctx context.Context, attempt, maxRetries int) error {
	if attempt >= maxRetries-1 {
		return nil
	}
	delay := maxBackoff
	if attempt < 6 {
		delay = time.Duration(1<<uint(attempt)) * 10 * time.Millisecond //nolint:gosec // attempt < 6
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
