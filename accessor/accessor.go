package accessor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/internal/metrics"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/types"
)

// DefaultOperationTimeout bounds each store call when no timeout is configured.
const DefaultOperationTimeout = 5 * time.Second

// DataAccessor reads and writes typed cluster properties through a store.
//
// Every operation is bounded by the operation timeout. Reads treat missing,
// timed-out and undecodable properties as absent: they log and return nil
// without an error. Cancellation of the caller's context and store
// connectivity failures are returned as errors.
//
// DataAccessor is safe for concurrent use.
type DataAccessor struct {
	store    store.Store
	registry *Registry
	logger   types.Logger
	metrics  types.StoreMetrics
	timeout  time.Duration
}

// Option configures a DataAccessor.
type Option func(*DataAccessor)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(a *DataAccessor) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics sets the store metrics collector.
func WithMetrics(m types.StoreMetrics) Option {
	return func(a *DataAccessor) {
		if m != nil {
			a.metrics = m
		}
	}
}

// WithRegistry replaces the decoder registry.
func WithRegistry(r *Registry) Option {
	return func(a *DataAccessor) {
		if r != nil {
			a.registry = r
		}
	}
}

// WithOperationTimeout sets the per-operation timeout.
func WithOperationTimeout(d time.Duration) Option {
	return func(a *DataAccessor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// New creates a DataAccessor over st.
//
// Parameters:
//   - st: Coordination store
//   - opts: Optional configuration (WithLogger, WithMetrics, WithRegistry, WithOperationTimeout)
//
// Returns:
//   - *DataAccessor: Accessor using DefaultRegistry unless overridden
func New(st store.Store, opts ...Option) *DataAccessor {
	a := &DataAccessor{
		store:    st,
		registry: DefaultRegistry(),
		logger:   logging.NewNop(),
		metrics:  metrics.NewNop(),
		timeout:  DefaultOperationTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Store returns the underlying store.
func (a *DataAccessor) Store() store.Store {
	return a.store
}

// CreateProperty creates a property, failing with ErrAlreadyExists when it exists.
func (a *DataAccessor) CreateProperty(ctx context.Context, key PropertyKey, p model.Property) error {
	return a.write(ctx, "create", key, p, a.store.Create)
}

// SetProperty writes a property, replacing any existing value.
func (a *DataAccessor) SetProperty(ctx context.Context, key PropertyKey, p model.Property) error {
	return a.write(ctx, "set", key, p, a.store.Set)
}

// UpdateProperty merges a property into the stored one, creating it when absent.
func (a *DataAccessor) UpdateProperty(ctx context.Context, key PropertyKey, p model.Property) error {
	return a.write(ctx, "update", key, p, a.store.Update)
}

func (a *DataAccessor) write(ctx context.Context, op string, key PropertyKey, p model.Property, fn store.WriteFunc) error {
	path, err := key.Path()
	if err != nil {
		return err
	}
	if p == nil || p.Record() == nil {
		return fmt.Errorf("%s %s: %w", op, path, types.ErrInvalidRecord)
	}

	opCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	err = fn(opCtx, path, p.Record(), key.Option())
	a.metrics.RecordStoreOperation(op, time.Since(start).Seconds(), err == nil)
	if err != nil {
		return fmt.Errorf("%s %s: %w", op, path, err)
	}

	return nil
}

// GetProperty reads one property.
//
// Returns:
//   - model.Property: The property, or nil when it is missing, the read timed
//     out, or the record could not be decoded
//   - error: Invalid keys, caller cancellation and connectivity failures
func (a *DataAccessor) GetProperty(ctx context.Context, key PropertyKey) (model.Property, error) {
	path, err := key.Path()
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	rec, err := a.store.Get(opCtx, path, key.Option())
	if err != nil {
		absent := a.isAbsent(ctx, err)
		a.metrics.RecordStoreOperation("get", time.Since(start).Seconds(), absent)
		if absent {
			if !errors.Is(err, types.ErrNotFound) {
				a.logger.Warn("property read timed out", "path", path, "error", err)
			}
			return nil, nil
		}

		return nil, fmt.Errorf("get %s: %w", path, err)
	}
	a.metrics.RecordStoreOperation("get", time.Since(start).Seconds(), true)

	return a.decode(key.Type, path, rec), nil
}

// RemoveProperty removes a property and everything below it, failing with
// ErrNotFound when nothing exists at the key.
func (a *DataAccessor) RemoveProperty(ctx context.Context, key PropertyKey) error {
	path, err := key.Path()
	if err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	err = a.store.Remove(opCtx, path)
	a.metrics.RecordStoreOperation("remove", time.Since(start).Seconds(), err == nil)
	if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	return nil
}

// ChildNames lists the names of the properties below a parent key, sorted.
// A timed-out listing is logged and yields no names.
func (a *DataAccessor) ChildNames(ctx context.Context, parent PropertyKey) ([]string, error) {
	path, err := parent.Path()
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	names, err := a.store.ChildNames(opCtx, path, parent.Option())
	if err != nil {
		absent := a.isAbsent(ctx, err)
		a.metrics.RecordStoreOperation("children", time.Since(start).Seconds(), absent)
		if absent {
			a.logger.Warn("child listing timed out", "path", path, "error", err)
			return nil, nil
		}

		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	a.metrics.RecordStoreOperation("children", time.Since(start).Seconds(), true)

	return names, nil
}

// ChildValues reads every property below a parent key. An element that
// cannot be decoded is logged and left nil.
func (a *DataAccessor) ChildValues(ctx context.Context, parent PropertyKey) ([]model.Property, error) {
	path, err := parent.Path()
	if err != nil {
		return nil, err
	}

	opCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	recs, err := a.store.Children(opCtx, path, parent.Option())
	if err != nil {
		absent := a.isAbsent(ctx, err)
		a.metrics.RecordStoreOperation("children", time.Since(start).Seconds(), absent)
		if absent {
			a.logger.Warn("child read timed out", "path", path, "error", err)
			return nil, nil
		}

		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	a.metrics.RecordStoreOperation("children", time.Since(start).Seconds(), true)

	out := make([]model.Property, len(recs))
	for i, rec := range recs {
		out[i] = a.decode(parent.Type, path, rec)
	}

	return out, nil
}

// ChildValuesMap reads every property below a parent key, keyed by record
// id. Undecodable children are left out.
func (a *DataAccessor) ChildValuesMap(ctx context.Context, parent PropertyKey) (map[string]model.Property, error) {
	values, err := a.ChildValues(ctx, parent)
	if err != nil {
		return nil, err
	}

	out := make(map[string]model.Property, len(values))
	for _, p := range values {
		if p == nil {
			continue
		}
		out[p.Record().ID] = p
	}

	return out, nil
}

// CreateChildren creates several properties in one call.
//
// Each item is stored with the option of its own key type, so a batch may
// mix persistent and ephemeral properties.
//
// Returns:
//   - []bool: Per-item success
//   - error: ErrBatchMismatch when keys and props differ in length, or an
//     invalid key; failed items are reported through the slice
func (a *DataAccessor) CreateChildren(ctx context.Context, keys []PropertyKey, props []model.Property) ([]bool, error) {
	return a.batch(ctx, "create", keys, props, a.store.CreateChildren)
}

// SetChildren writes several properties in one call, each with the option
// of its own key type. See CreateChildren for the result contract.
func (a *DataAccessor) SetChildren(ctx context.Context, keys []PropertyKey, props []model.Property) ([]bool, error) {
	return a.batch(ctx, "set", keys, props, a.store.SetChildren)
}

type batchFunc func(ctx context.Context, paths []string, recs []*types.Record, opts []store.Option) []error

func (a *DataAccessor) batch(ctx context.Context, op string, keys []PropertyKey, props []model.Property, fn batchFunc) ([]bool, error) {
	if len(keys) != len(props) {
		return nil, fmt.Errorf("%s children: %w: %d keys, %d values",
			op, types.ErrBatchMismatch, len(keys), len(props))
	}

	paths := make([]string, len(keys))
	recs := make([]*types.Record, len(keys))
	opts := make([]store.Option, len(keys))
	for i, key := range keys {
		path, err := key.Path()
		if err != nil {
			return nil, err
		}
		if props[i] == nil || props[i].Record() == nil {
			return nil, fmt.Errorf("%s children: item %d: %w", op, i, types.ErrInvalidRecord)
		}
		paths[i] = path
		recs[i] = props[i].Record()
		opts[i] = key.Option()
	}

	opCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	errs := fn(opCtx, paths, recs, opts)
	elapsed := time.Since(start).Seconds()

	ok := make([]bool, len(keys))
	for i, err := range errs {
		ok[i] = err == nil
		a.metrics.RecordStoreOperation(op, elapsed, ok[i])
		if err != nil {
			a.logger.Debug("batch item failed", "operation", op, "path", paths[i], "error", err)
		}
	}

	return ok, nil
}

// decode turns a record into a property, logging and returning nil on failure.
func (a *DataAccessor) decode(t PropertyType, path string, rec *types.Record) model.Property {
	p, err := a.registry.Decode(t, rec)
	if err != nil {
		a.logger.Error("failed to decode property", "type", t.String(), "path", path, "error", err)
		return nil
	}

	return p
}

// isAbsent reports whether a read error means "no data" rather than a failure:
// the node is missing, or the operation timeout fired while the caller's
// context was still live.
func (a *DataAccessor) isAbsent(parent context.Context, err error) bool {
	if errors.Is(err, types.ErrNotFound) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded) && parent.Err() == nil
}

// GetAs reads one property and asserts its concrete type.
//
// Returns:
//   - T: The property, or the zero value when absent or of another type
//   - error: As GetProperty
//
// Example:
//
//	is, err := accessor.GetAs[*model.IdealState](ctx, da, keys.IdealState("TestDB"))
func GetAs[T model.Property](ctx context.Context, a *DataAccessor, key PropertyKey) (T, error) {
	var zero T
	p, err := a.GetProperty(ctx, key)
	if err != nil || p == nil {
		return zero, err
	}
	typed, ok := p.(T)
	if !ok {
		a.logger.Error("unexpected property type", "path", key.String(), "type", fmt.Sprintf("%T", p))
		return zero, nil
	}

	return typed, nil
}

// ChildValuesMapAs reads every property below a parent key as type T,
// keyed by record id. Children of another type are left out.
func ChildValuesMapAs[T model.Property](ctx context.Context, a *DataAccessor, parent PropertyKey) (map[string]T, error) {
	values, err := a.ChildValuesMap(ctx, parent)
	if err != nil {
		return nil, err
	}

	out := make(map[string]T, len(values))
	for id, p := range values {
		if typed, ok := p.(T); ok {
			out[id] = typed
		}
	}

	return out, nil
}
