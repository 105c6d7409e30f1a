// Package store defines the hierarchical coordination-store capability consumed
// by the property accessor, plus helpers shared by its backends.
//
// A store holds Records at slash-separated paths such as
// "/mycluster/IDEALSTATES/TestDB". Every write carries an Option selecting
// persistent or ephemeral storage. Ephemeral nodes live only as long as the
// session of the store instance that wrote them.
//
// Backends:
//   - store/memory: in-process maps, used by tests and as the ephemeral overlay of file backends
//   - store/natskv: NATS JetStream KV (persistent bucket plus a TTL bucket for ephemeral nodes)
//   - store/boltdb: bbolt file for single-node deployments
//   - store/sqlstore: database/sql for sqlite3 and postgres
package store

import (
	"context"

	"github.com/arloliu/helmsman/types"
)

// Option selects how a node is stored.
type Option int

const (
	// Persistent nodes survive the session that wrote them.
	Persistent Option = iota

	// Ephemeral nodes are removed when the writing session ends.
	Ephemeral
)

// String returns the option name.
func (o Option) String() string {
	switch o {
	case Persistent:
		return "PERSISTENT"
	case Ephemeral:
		return "EPHEMERAL"
	default:
		return "UNKNOWN"
	}
}

// Store is the coordination-store capability.
//
// Implementations must be safe for concurrent use. Errors for duplicate
// creation and missing nodes wrap types.ErrAlreadyExists and
// types.ErrNotFound respectively.
type Store interface {
	// Create writes rec at path, failing with types.ErrAlreadyExists when the node exists.
	Create(ctx context.Context, path string, rec *types.Record, opt Option) error

	// Set writes rec at path, replacing any existing node.
	Set(ctx context.Context, path string, rec *types.Record, opt Option) error

	// Update merges rec into the node at path, creating it when absent.
	Update(ctx context.Context, path string, rec *types.Record, opt Option) error

	// Get reads the node at path, failing with types.ErrNotFound when absent.
	Get(ctx context.Context, path string, opt Option) (*types.Record, error)

	// Remove deletes the node at path and every node below it.
	// It fails with types.ErrNotFound when nothing exists at or below path.
	Remove(ctx context.Context, path string) error

	// Children returns the records of the direct children of path.
	Children(ctx context.Context, path string, opt Option) ([]*types.Record, error)

	// ChildNames returns the names of the direct children of path, sorted.
	ChildNames(ctx context.Context, path string, opt Option) ([]string, error)

	// CreateChildren creates each node with its own option and returns one error per item.
	CreateChildren(ctx context.Context, paths []string, recs []*types.Record, opts []Option) []error

	// SetChildren sets each node with its own option and returns one error per item.
	SetChildren(ctx context.Context, paths []string, recs []*types.Record, opts []Option) []error

	// Close ends the store session, dropping ephemeral nodes written through it.
	Close(ctx context.Context) error
}

// EventType describes what happened to a node.
type EventType int

const (
	// EventPut is emitted when a node is created or written.
	EventPut EventType = iota

	// EventDelete is emitted when a node is removed or expires.
	EventDelete
)

// Event is a change notification for one node.
type Event struct {
	Path string
	Type EventType
}

// Watcher is implemented by backends that can push change notifications.
type Watcher interface {
	// Watch streams events for every node at or below prefix until ctx is done
	// or stop is called. The returned channel is closed when watching ends.
	Watch(ctx context.Context, prefix string) (events <-chan Event, stop func(), err error)
}

// CheckBatch validates that batch arguments line up.
func CheckBatch(paths []string, recs []*types.Record, opts []Option) error {
	if len(paths) != len(recs) || len(paths) != len(opts) {
		return types.ErrBatchMismatch
	}

	return nil
}

// WriteFunc writes one node.
type WriteFunc func(ctx context.Context, path string, rec *types.Record, opt Option) error

// RunBatch applies write to each item in order and returns one error per item.
//
// When the argument lengths differ, every slot of the result (sized by
// paths) carries types.ErrBatchMismatch and nothing is written.
func RunBatch(ctx context.Context, paths []string, recs []*types.Record, opts []Option, write WriteFunc) []error {
	errs := make([]error, len(paths))
	if err := CheckBatch(paths, recs, opts); err != nil {
		for i := range errs {
			errs[i] = err
		}
		return errs
	}
	for i := range paths {
		errs[i] = write(ctx, paths[i], recs[i], opts[i])
	}

	return errs
}
