package rebalancer

import (
	"github.com/arloliu/helmsman/cluster"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/types"
)

// Custom verifies the preference maps of a CUSTOMIZED resource against the
// observed cluster.
//
// The only states it assigns are the preferred state, DROPPED and the state
// model's initial state. A participant it leaves out of a partition's map is
// waiting: it is offline, disabled or in ERROR and converges on a later pass.
type Custom struct{}

var _ Rebalancer = (*Custom)(nil)

// NewCustom creates the CUSTOMIZED mode rebalancer.
//
// Returns:
//   - *Custom: Stateless rebalancer, safe for concurrent use
//
// Example:
//
//	table := rebalancer.NewTable(rebalancer.WithModeRebalancer(rebalancer.ModeCustom, rebalancer.NewCustom()))
func NewCustom() *Custom {
	return &Custom{}
}

// ComputeResourceMapping computes the verified assignment of every partition
// of the resource.
//
// Parameters:
//   - resource: Resource config carrying the preference maps
//   - c: Cluster snapshot (participants, liveness, state models)
//   - cs: Observed current state of the pass
//
// Returns:
//   - *model.ResourceAssignment: One replica map per partition
//   - error: ErrStateModelNotFound when the resource's state model is not defined
func (r *Custom) ComputeResourceMapping(resource *cluster.ResourceConfig, c *cluster.Config, cs *cluster.ResourceCurrentState) (*model.ResourceAssignment, error) {
	def, err := stateModelOf(resource, c)
	if err != nil {
		return nil, err
	}

	live := c.LiveParticipants()
	assignment := model.NewResourceAssignment(resource.ID)
	for _, partition := range resource.PartitionSet() {
		current := cs.CurrentStateMap(resource.ID, partition)
		disabled := c.DisabledParticipants(partition)
		best := bestStateForPartition(def, live, resource.PreferenceMap(partition), current, disabled)
		assignment.AddReplicaMap(partition, best)
	}

	return assignment, nil
}

// bestStateForPartition resolves the target states of one partition.
//
// Participants that currently hold the partition are dropped when they are
// no longer preferred and quiesced to the initial state when they are
// disabled; replicas in ERROR are left alone. Preferred participants are
// kept only when they are live, enabled and not in ERROR.
func bestStateForPartition(
	def *model.StateModelDefinition,
	live map[types.ParticipantID]*cluster.Participant,
	prefs map[types.ParticipantID]types.State,
	current map[types.ParticipantID]types.State,
	disabled map[types.ParticipantID]struct{},
) map[types.ParticipantID]types.State {
	best := make(map[types.ParticipantID]types.State)

	for participant, state := range current {
		_, isDisabled := disabled[participant]
		_, isPreferred := prefs[participant]
		switch {
		case !isPreferred && !isDisabled:
			best[participant] = types.StateDropped
		case isDisabled && !state.IsError():
			best[participant] = def.InitialState()
		}
	}

	if prefs == nil {
		return best
	}

	for participant, state := range prefs {
		if _, ok := live[participant]; !ok {
			continue
		}
		if cur, ok := current[participant]; ok && cur.IsError() {
			continue
		}
		if _, ok := disabled[participant]; ok {
			continue
		}
		best[participant] = state
	}

	return best
}
