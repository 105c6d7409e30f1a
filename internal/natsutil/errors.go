// Package natsutil classifies NATS and JetStream errors for the KV store backend.
package natsutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/arloliu/helmsman/types"
)

// IsConnectivityError checks if an error is caused by connectivity issues.
//
// This includes NATS timeouts, connection refused, disconnections, etc.
// The accessor propagates these instead of treating the read as absent.
//
// Parameters:
//   - err: Error to check
//
// Returns:
//   - bool: true if error indicates connectivity issue
func IsConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	return errors.Is(err, types.ErrConnectivity) ||
		errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoServers) ||
		errors.Is(err, nats.ErrDisconnected) ||
		errors.Is(err, nats.ErrConnectionClosed) ||
		errors.Is(err, jetstream.ErrNoStreamResponse) ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "i/o timeout")
}

// IsRevisionConflict reports whether a compare-and-set write lost a race.
func IsRevisionConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
	}

	return false
}

// Translate maps JetStream KV errors onto the store sentinels.
//
// Parameters:
//   - op: Operation name used as error context
//   - path: Store path the operation addressed
//   - err: Error returned by JetStream
//
// Returns:
//   - error: nil when err is nil, otherwise an error wrapping types.ErrNotFound,
//     types.ErrAlreadyExists or types.ErrConnectivity when applicable
func Translate(op, path string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jetstream.ErrKeyNotFound), errors.Is(err, jetstream.ErrKeyDeleted):
		return fmt.Errorf("%s %s: %w", op, path, types.ErrNotFound)
	case errors.Is(err, jetstream.ErrKeyExists):
		return fmt.Errorf("%s %s: %w", op, path, types.ErrAlreadyExists)
	case IsConnectivityError(err):
		return fmt.Errorf("%s %s: %w: %w", op, path, types.ErrConnectivity, err)
	default:
		return fmt.Errorf("%s %s: %w", op, path, err)
	}
}
