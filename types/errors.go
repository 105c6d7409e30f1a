package types

import (
	"errors"
	"strings"
)

// Sentinel errors for the Helmsman library.
//
// These errors provide type-safe error checking using errors.Is() and errors.As().
// All components should use these sentinel errors for known error conditions
// and wrap external errors with context using fmt.Errorf("%s: %w", msg, err).
//
// Error Naming Convention:
//   - Use descriptive names with Err prefix
//   - Group by component (Controller, Store, Accessor, etc.)
//   - Use consistent messages across similar error types

// Controller errors - Public API errors returned by Controller component.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrStoreRequired is returned when the coordination store is nil.
	ErrStoreRequired = errors.New("coordination store is required")

	// ErrAlreadyStarted is returned when Start is called on an already running controller.
	ErrAlreadyStarted = errors.New("controller already started")

	// ErrNotStarted is returned when operations require a started controller.
	ErrNotStarted = errors.New("controller not started")

	// ErrSessionExpired is returned when an operation runs under an expired session.
	ErrSessionExpired = errors.New("session expired")

	// ErrConnectivity indicates a store connectivity issue.
	// This is used to distinguish network failures from application errors.
	ErrConnectivity = errors.New("connectivity issue")
)

// Store errors - Returned by every store.Store backend.
var (
	// ErrAlreadyExists is returned when creating a node that already exists.
	ErrAlreadyExists = errors.New("node already exists")

	// ErrNotFound is returned when reading or removing a node that does not exist.
	ErrNotFound = errors.New("node not found")

	// ErrInvalidPath is returned when a store path is empty or malformed.
	ErrInvalidPath = errors.New("invalid store path")

	// ErrBatchMismatch is returned when batch paths, records and options differ in length.
	ErrBatchMismatch = errors.New("batch arguments differ in length")

	// ErrStoreClosed is returned when a store is used after Close.
	ErrStoreClosed = errors.New("store closed")
)

// Accessor errors - Property key and record decoding errors.
var (
	// ErrInvalidPropertyKey is returned when a property key carries too many parameters.
	ErrInvalidPropertyKey = errors.New("invalid property key")

	// ErrUnknownPropertyType is returned when no decoder is registered for a property type.
	ErrUnknownPropertyType = errors.New("unknown property type")

	// ErrInvalidRecord is returned when a record cannot be decoded into a property.
	ErrInvalidRecord = errors.New("invalid record")
)

// Model errors - State model and constraint errors.
var (
	// ErrInvalidTransition is returned when a transition string is malformed.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInvalidStateModel is returned when a state model definition is incomplete.
	ErrInvalidStateModel = errors.New("invalid state model definition")

	// ErrStateModelNotFound is returned when a resource references an unknown state model.
	ErrStateModelNotFound = errors.New("state model definition not found")
)

// Rebalancer errors - Returned by the rebalancer dispatch table.
var (
	// ErrUnsupportedRebalanceMode is returned when no rebalancer serves a mode.
	ErrUnsupportedRebalanceMode = errors.New("unsupported rebalance mode")
)

// Admin errors - Returned by the administrative layer.
var (
	// ErrParticipantLive is returned when dropping a participant that still has a live instance.
	ErrParticipantLive = errors.New("participant is live")

	// ErrInvalidResource is returned when a resource definition is incomplete.
	ErrInvalidResource = errors.New("invalid resource definition")
)

// Monitor errors - Internal change monitoring component errors.
var (
	// ErrMonitorAlreadyStarted is returned when Start is called on an already running monitor.
	ErrMonitorAlreadyStarted = errors.New("change monitor already started")

	// ErrMonitorAlreadyStopped is returned when Start is called on a stopped monitor.
	ErrMonitorAlreadyStopped = errors.New("change monitor already stopped")

	// ErrMonitorNotStarted is returned when Stop is called before Start.
	ErrMonitorNotStarted = errors.New("change monitor not started")
)

// Common errors - Shared errors used across multiple components.
var (
	// ErrNoKeysFound is returned when NATS KV returns no keys (expected condition).
	ErrNoKeysFound = errors.New("no keys found")
)

// IsNoKeysFoundError checks if an error indicates that no keys were found in NATS KV.
//
// This function handles NATS-specific "no keys found" errors which may come as:
//   - Direct error: "nats: no keys found"
//   - Wrapped error: "failed to list KV keys: nats: no keys found"
//
// Parameters:
//   - err: The error to check
//
// Returns:
//   - bool: true if the error indicates no keys were found, false otherwise
func IsNoKeysFoundError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNoKeysFound) {
		return true
	}

	return strings.Contains(err.Error(), "no keys found")
}
