package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/helmsman/accessor"
	"github.com/arloliu/helmsman/cluster"
	"github.com/arloliu/helmsman/internal/hash"
	"github.com/arloliu/helmsman/internal/hooks"
	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/internal/metrics"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/rebalancer"
	"github.com/arloliu/helmsman/types"
)

// DefaultMaxParallel bounds concurrent resource computations when unset.
const DefaultMaxParallel = 8

// Skip reasons reported in Result.Skipped and metrics.
const (
	SkipMissingStateModel = "missing_state_model"
	SkipUnsupportedMode   = "unsupported_mode"
	SkipRebalancerError   = "rebalancer_error"
)

// Pass outcomes reported to metrics.
const (
	resultSuccess  = "success"
	resultFailure  = "failure"
	resultPaused   = "paused"
	resultCanceled = "canceled"
)

// Write kinds and outcomes reported to metrics.
const (
	kindAssignment   = "assignment"
	kindExternalView = "external_view"

	writeWritten   = "written"
	writeUnchanged = "unchanged"
	writeFailed    = "failed"
	writeRemoved   = "removed"
)

// Result summarizes one reconciliation pass.
type Result struct {
	// Paused is true when the cluster was paused and nothing was computed.
	Paused bool

	// Assignments holds the computed assignment of every resource that was not skipped.
	Assignments map[types.ResourceID]*model.ResourceAssignment

	// ExternalViews holds the external view built for every resource.
	ExternalViews map[types.ResourceID]*model.ExternalView

	// Skipped maps skipped resources to their skip reason.
	Skipped map[types.ResourceID]string

	// LiveParticipants is the number of connected participants.
	LiveParticipants int

	// Written counts properties persisted in this pass.
	Written int

	// Unchanged counts properties not persisted because their content did not change.
	Unchanged int

	// Failed counts properties whose write or removal failed.
	Failed int

	// Removed counts stale properties removed in this pass.
	Removed int

	// Duration is the wall time of the pass.
	Duration time.Duration
}

// Pipeline runs reconciliation passes for one cluster.
//
// A pass loads a snapshot, computes the assignment of every resource in
// parallel and persists assignments and external views. Resources with bad
// configuration are skipped and logged; the rest of the pass continues.
//
// Run is safe to call from one goroutine at a time. Serialization of passes
// is the caller's concern.
type Pipeline struct {
	accessor     *accessor.DataAccessor
	keys         accessor.KeyBuilder
	loader       *Loader
	table        *rebalancer.Table
	logger       types.Logger
	metrics      types.PipelineMetrics
	hooks        types.Hooks
	maxParallel  int
	fingerprints *hash.Cache
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the pipeline metrics collector.
func WithMetrics(m types.PipelineMetrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithHooks sets the pass hooks. Nil callbacks are no-ops.
func WithHooks(h *types.Hooks) Option {
	return func(p *Pipeline) {
		p.hooks = hooks.Fill(h)
	}
}

// WithRebalancers sets the rebalancer dispatch table.
func WithRebalancers(t *rebalancer.Table) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.table = t
		}
	}
}

// WithMaxParallel bounds concurrent resource computations.
func WithMaxParallel(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxParallel = n
		}
	}
}

// New creates a pipeline for one cluster.
//
// Parameters:
//   - da: Data accessor over the coordination store
//   - clusterID: Cluster to reconcile
//   - opts: Optional configuration
//
// Returns:
//   - *Pipeline: Pipeline instance
//
// Example:
//
//	p := pipeline.New(da, "mycluster", pipeline.WithLogger(logger))
//	result, err := p.Run(ctx)
func New(da *accessor.DataAccessor, clusterID types.ClusterID, opts ...Option) *Pipeline {
	p := &Pipeline{
		accessor:     da,
		keys:         accessor.NewKeyBuilder(clusterID),
		table:        rebalancer.NewTable(),
		logger:       logging.NewNop(),
		metrics:      metrics.NewNop(),
		hooks:        hooks.NewNop(),
		maxParallel:  DefaultMaxParallel,
		fingerprints: hash.NewCache(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.loader = NewLoader(da, clusterID, p.logger)

	return p
}

// ResetFingerprints forgets every remembered write, so the next pass
// persists every property again.
func (p *Pipeline) ResetFingerprints() {
	p.fingerprints.Reset()
}

// Run executes one reconciliation pass.
//
// Parameters:
//   - ctx: Context for cancellation; a canceled pass stops between steps
//
// Returns:
//   - *Result: Pass summary, also returned alongside a persistence error
//   - error: Load failure, cancellation or failed writes
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res, err := p.run(ctx)
	res.Duration = time.Since(start)

	outcome := resultSuccess
	switch {
	case err != nil && ctx.Err() != nil:
		outcome = resultCanceled
	case err != nil:
		outcome = resultFailure
	case res.Paused:
		outcome = resultPaused
	}
	p.metrics.RecordPassDuration(res.Duration.Seconds(), outcome)

	if err != nil {
		if outcome == resultFailure {
			p.logger.Error("reconciliation pass failed", "error", err, "duration", res.Duration)
			if hookErr := p.hooks.OnError(ctx, err); hookErr != nil {
				p.logger.Warn("error hook failed", "error", hookErr)
			}
		}

		return res, err
	}

	if !res.Paused {
		if hookErr := p.hooks.OnPassCompleted(ctx, len(res.Assignments), len(res.Skipped)); hookErr != nil {
			p.logger.Warn("pass completed hook failed", "error", hookErr)
		}
	}

	return res, nil
}

func (p *Pipeline) run(ctx context.Context) (*Result, error) {
	res := &Result{
		Assignments:   make(map[types.ResourceID]*model.ResourceAssignment),
		ExternalViews: make(map[types.ResourceID]*model.ExternalView),
		Skipped:       make(map[types.ResourceID]string),
	}

	snap, err := p.loader.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load snapshot: %w", err)
	}

	res.LiveParticipants = len(snap.Config.LiveParticipants())
	p.metrics.RecordLiveParticipants(res.LiveParticipants)

	if snap.Config.IsPaused() {
		res.Paused = true
		p.logger.Info("cluster paused, skipping pass", "cluster", snap.Config.ID())

		return res, nil
	}

	if err := p.compute(ctx, snap, res); err != nil {
		return res, err
	}
	p.metrics.RecordResourceCount(len(res.Assignments))

	for _, id := range snap.Config.ResourceIDs() {
		res.ExternalViews[id] = buildExternalView(id, snap.Config.Resource(id).Config, snap.CurrentState)
	}

	if err := p.persist(ctx, snap, res); err != nil {
		return res, err
	}

	p.logger.Debug("reconciliation pass completed",
		"computed", len(res.Assignments),
		"skipped", len(res.Skipped),
		"written", res.Written,
		"unchanged", res.Unchanged,
		"removed", res.Removed,
	)

	return res, nil
}

// compute runs the rebalancer of every resource on a bounded worker pool.
func (p *Pipeline) compute(ctx context.Context, snap *Snapshot, res *Result) error {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxParallel)

	for _, id := range snap.Config.ResourceIDs() {
		resource := snap.Config.Resource(id).Config
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			assignment, err := p.table.ComputeResourceMapping(resource, snap.Config, snap.CurrentState)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reason := skipReason(err)
				res.Skipped[id] = reason
				p.metrics.RecordResourceSkipped(reason)
				p.logger.Warn("skipping resource", "resource", id, "reason", reason, "error", err)

				return nil
			}
			res.Assignments[id] = assignment

			return nil
		})
	}

	return g.Wait()
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, types.ErrStateModelNotFound):
		return SkipMissingStateModel
	case errors.Is(err, types.ErrUnsupportedRebalanceMode):
		return SkipUnsupportedMode
	default:
		return SkipRebalancerError
	}
}

// buildExternalView publishes the observed state of a resource over its
// whole partition set, including partitions that are only still observed.
// DROPPED replicas are left out.
func buildExternalView(id types.ResourceID, resource *cluster.ResourceConfig, cs *cluster.ResourceCurrentState) *model.ExternalView {
	ev := model.NewExternalView(id)
	for _, partition := range resource.PartitionSet() {
		for participant, state := range cs.CurrentStateMap(id, partition) {
			if state == types.StateDropped {
				continue
			}
			ev.SetState(partition, participant, state)
		}
	}

	return ev
}

// persist writes changed assignments and external views and removes stale ones.
func (p *Pipeline) persist(ctx context.Context, snap *Snapshot, res *Result) error {
	var (
		keys  []accessor.PropertyKey
		props []model.Property
		kinds []string
		sums  []uint64
	)
	add := func(kind string, key accessor.PropertyKey, prop model.Property) error {
		sum, err := hash.Record(prop.Record())
		if err != nil {
			return err
		}
		if p.fingerprints.Unchanged(key.String(), sum) {
			res.Unchanged++
			p.metrics.RecordAssignmentWrite(kind, writeUnchanged)

			return nil
		}
		keys = append(keys, key)
		props = append(props, prop)
		kinds = append(kinds, kind)
		sums = append(sums, sum)

		return nil
	}

	for _, id := range snap.Config.ResourceIDs() {
		if a, ok := res.Assignments[id]; ok {
			if err := add(kindAssignment, p.keys.ResourceAssignment(id), a); err != nil {
				return err
			}
		}
		if err := add(kindExternalView, p.keys.ExternalView(id), res.ExternalViews[id]); err != nil {
			return err
		}
	}

	var failed int
	if len(keys) > 0 {
		ok, err := p.accessor.SetChildren(ctx, keys, props)
		if err != nil {
			return fmt.Errorf("persist pass results: %w", err)
		}
		for i, written := range ok {
			if !written {
				failed++
				p.fingerprints.Forget(keys[i].String())
				p.metrics.RecordAssignmentWrite(kinds[i], writeFailed)
				p.logger.Warn("failed to persist property", "key", keys[i].String())

				continue
			}
			res.Written++
			p.fingerprints.Store(keys[i].String(), sums[i])
			p.metrics.RecordAssignmentWrite(kinds[i], writeWritten)
		}
	}

	failed += p.removeStale(ctx, kindExternalView, snap.StaleExternalViews, p.keys.ExternalView, res)
	failed += p.removeStale(ctx, kindAssignment, snap.StaleAssignments, p.keys.ResourceAssignment, res)
	res.Failed = failed

	if err := ctx.Err(); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("persist pass results: %d writes failed", failed)
	}

	return nil
}

// removeStale removes properties of deleted resources and returns the number
// of failed removals.
func (p *Pipeline) removeStale(
	ctx context.Context,
	kind string,
	ids []types.ResourceID,
	keyFor func(types.ResourceID) accessor.PropertyKey,
	res *Result,
) int {
	failed := 0
	for _, id := range ids {
		key := keyFor(id)
		p.fingerprints.Forget(key.String())
		if err := p.accessor.RemoveProperty(ctx, key); err != nil && !errors.Is(err, types.ErrNotFound) {
			failed++
			p.metrics.RecordAssignmentWrite(kind, writeFailed)
			p.logger.Warn("failed to remove stale property", "key", key.String(), "error", err)

			continue
		}
		res.Removed++
		p.metrics.RecordAssignmentWrite(kind, writeRemoved)
		p.logger.Info("removed stale property", "kind", kind, "resource", id)
	}

	return failed
}
