package pipeline

import (
	"context"
	"fmt"
	"slices"

	"github.com/arloliu/helmsman/accessor"
	"github.com/arloliu/helmsman/cluster"
	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/types"
)

// Snapshot is the read-only view of the cluster one pass works on.
type Snapshot struct {
	// Config holds topology, state models and constraints.
	Config *cluster.Config

	// CurrentState holds observed and pending replica states of live sessions.
	CurrentState *cluster.ResourceCurrentState

	// StaleExternalViews lists external views of resources that have neither
	// an ideal state nor an observed replica.
	StaleExternalViews []types.ResourceID

	// StaleAssignments lists assignments of resources that have neither an
	// ideal state nor an observed replica.
	StaleAssignments []types.ResourceID
}

// Loader reads the cluster into a Snapshot.
type Loader struct {
	accessor *accessor.DataAccessor
	keys     accessor.KeyBuilder
	logger   types.Logger
}

// NewLoader creates a loader for one cluster.
//
// Parameters:
//   - da: Data accessor over the coordination store
//   - clusterID: Cluster to load
//   - logger: Logger (nil for nop)
//
// Returns:
//   - *Loader: Loader instance
func NewLoader(da *accessor.DataAccessor, clusterID types.ClusterID, logger types.Logger) *Loader {
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Loader{
		accessor: da,
		keys:     accessor.NewKeyBuilder(clusterID),
		logger:   logger,
	}
}

// Load reads every property a pass needs and builds a snapshot.
//
// Current states are read only under each live participant's current
// session; state left behind by expired sessions is ignored. Pending states
// come from STATE_TRANSITION messages addressed to the live session.
//
// Partitions that replicas still report but the ideal state no longer names
// are added to the resource's partition set. A resource whose ideal state is
// gone but whose replicas are still reported stays in the snapshot without an
// ideal state, so its replicas are dropped.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - *Snapshot: Immutable snapshot of the cluster
//   - error: Store failure or cancellation; absent properties are not errors
func (l *Loader) Load(ctx context.Context) (*Snapshot, error) {
	b := cluster.NewBuilder(l.keys.Cluster()).WithLogger(l.logger)

	pause, err := accessor.GetAs[*model.PauseSignal](ctx, l.accessor, l.keys.Pause())
	if err != nil {
		return nil, fmt.Errorf("load pause signal: %w", err)
	}
	b.SetPaused(pause != nil)

	userConfig, err := accessor.GetAs[*model.ClusterConfig](ctx, l.accessor, l.keys.ClusterConfig())
	if err != nil {
		return nil, fmt.Errorf("load cluster config: %w", err)
	}
	b.SetUserConfig(userConfig)

	stateModels, err := accessor.ChildValuesMapAs[*model.StateModelDefinition](ctx, l.accessor, l.keys.StateModelDefs())
	if err != nil {
		return nil, fmt.Errorf("load state models: %w", err)
	}
	for _, def := range stateModels {
		b.AddStateModelDefinition(def)
	}

	constraints, err := accessor.ChildValuesMapAs[*model.ClusterConstraints](ctx, l.accessor, l.keys.Constraints())
	if err != nil {
		return nil, fmt.Errorf("load constraints: %w", err)
	}
	for _, cc := range constraints {
		b.AddConstraint(cc)
	}

	participants, err := l.loadParticipants(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range participants {
		b.AddParticipant(p)
	}

	idealStates, err := accessor.ChildValuesMapAs[*model.IdealState](ctx, l.accessor, l.keys.IdealStates())
	if err != nil {
		return nil, fmt.Errorf("load ideal states: %w", err)
	}
	externalViews, err := accessor.ChildValuesMapAs[*model.ExternalView](ctx, l.accessor, l.keys.ExternalViews())
	if err != nil {
		return nil, fmt.Errorf("load external views: %w", err)
	}

	cs, err := l.loadCurrentState(ctx, participants)
	if err != nil {
		return nil, err
	}

	resources := make(map[types.ResourceID]*cluster.Resource, len(idealStates))
	for id, is := range idealStates {
		r := cluster.NewResource(is, externalViews[id])
		r.Config.AddObservedPartitions(cs.CurrentStateMappedPartitions(r.ID()))
		resources[r.ID()] = r
	}
	for _, id := range cs.Resources() {
		if _, ok := resources[id]; ok {
			continue
		}
		partitions := cs.CurrentStateMappedPartitions(id)
		if len(partitions) == 0 {
			continue
		}
		smd, _ := cs.ResourceStateModelDef(id)
		r := cluster.NewRemovedResource(id, smd, partitions, externalViews[string(id)])
		r.Config.BucketSize = cs.BucketSize(id)
		resources[id] = r
		l.logger.Debug("resource without ideal state still has replicas", "resource", id, "partitions", len(partitions))
	}
	for _, r := range resources {
		b.AddResource(r)
	}

	snap := &Snapshot{Config: b.Build(), CurrentState: cs}
	for id := range externalViews {
		if _, ok := resources[types.ResourceID(id)]; !ok {
			snap.StaleExternalViews = append(snap.StaleExternalViews, types.ResourceID(id))
		}
	}
	slices.Sort(snap.StaleExternalViews)

	assignments, err := l.accessor.ChildNames(ctx, l.keys.ResourceAssignments())
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	for _, name := range assignments {
		if _, ok := resources[types.ResourceID(name)]; !ok {
			snap.StaleAssignments = append(snap.StaleAssignments, types.ResourceID(name))
		}
	}

	return snap, nil
}

// loadParticipants joins instance configs with live instances. A live
// instance without a config is kept with default settings.
func (l *Loader) loadParticipants(ctx context.Context) (map[types.ParticipantID]*cluster.Participant, error) {
	configs, err := accessor.ChildValuesMapAs[*model.InstanceConfig](ctx, l.accessor, l.keys.InstanceConfigs())
	if err != nil {
		return nil, fmt.Errorf("load instance configs: %w", err)
	}
	lives, err := accessor.ChildValuesMapAs[*model.LiveInstance](ctx, l.accessor, l.keys.LiveInstances())
	if err != nil {
		return nil, fmt.Errorf("load live instances: %w", err)
	}

	out := make(map[types.ParticipantID]*cluster.Participant, len(configs))
	for id, cfg := range configs {
		pid := types.ParticipantID(id)
		out[pid] = &cluster.Participant{ID: pid, Config: cfg}
	}
	for id, live := range lives {
		pid := types.ParticipantID(id)
		p, ok := out[pid]
		if !ok {
			l.logger.Warn("live participant has no instance config", "participant", id)
			p = &cluster.Participant{ID: pid}
			out[pid] = p
		}
		p.Live = live
	}

	return out, nil
}

// loadCurrentState reads current states and pending transitions of every
// live session, whether or not the resource still has an ideal state.
func (l *Loader) loadCurrentState(
	ctx context.Context,
	participants map[types.ParticipantID]*cluster.Participant,
) (*cluster.ResourceCurrentState, error) {
	cs := cluster.NewResourceCurrentState()

	for id, p := range participants {
		if !p.IsLive() {
			continue
		}
		session := p.SessionID()

		states, err := accessor.ChildValuesMapAs[*model.CurrentState](ctx, l.accessor, l.keys.CurrentStates(id, session))
		if err != nil {
			return nil, fmt.Errorf("load current states of %s: %w", id, err)
		}
		for _, state := range states {
			resourceID := state.ResourceID()
			if smd := state.StateModelDefID(); smd != "" {
				cs.SetResourceStateModelDef(resourceID, smd)
			}
			cs.SetBucketSize(resourceID, state.BucketSize())
			for partition, replica := range state.PartitionStateMap() {
				cs.SetCurrentState(resourceID, partition, id, replica)
			}
		}

		messages, err := accessor.ChildValuesMapAs[*model.Message](ctx, l.accessor, l.keys.Messages(id))
		if err != nil {
			return nil, fmt.Errorf("load messages of %s: %w", id, err)
		}
		for _, msg := range messages {
			if !msg.IsStateTransition() || msg.TargetSessionID() != session {
				continue
			}
			if msg.State() == model.MessageStateCompleted {
				continue
			}
			cs.SetPendingState(msg.ResourceID(), msg.PartitionID(), id, msg.ToState())
		}
	}

	return cs, nil
}
