package cluster

import (
	"slices"
	"strconv"

	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/types"
)

// ResourceConfig is the per-pass description of one resource, derived from
// its ideal state.
type ResourceConfig struct {
	// ID is the resource id.
	ID types.ResourceID

	// IdealState is the record the config was derived from.
	IdealState *model.IdealState

	// StateModelDefID names the state model the resource follows.
	StateModelDefID types.StateModelDefID

	// Partitions holds the ideal-state partitions followed by partitions that
	// only appear in the observed current state.
	Partitions []types.PartitionID

	// BucketSize groups partitions into buckets when persisting current state (0 = none).
	BucketSize int

	// BatchMessageMode batches transition messages of the resource.
	BatchMessageMode bool

	// TransitionTimeouts maps "<transition>_TIMEOUT" style keys to milliseconds.
	TransitionTimeouts map[string]int
}

// NewResourceConfig derives a resource config from an ideal state.
//
// Explicit partitions (preference maps or lists) win. An ideal state that
// names none but declares NUM_PARTITIONS gets "<resource>_0" through
// "<resource>_<n-1>".
//
// Parameters:
//   - is: Ideal state of the resource
//
// Returns:
//   - *ResourceConfig: Derived config
func NewResourceConfig(is *model.IdealState) *ResourceConfig {
	id := is.ResourceID()
	partitions := is.PartitionSet()
	if len(partitions) == 0 && is.NumPartitions() > 0 {
		partitions = make([]types.PartitionID, is.NumPartitions())
		for i := range partitions {
			partitions[i] = types.PartitionIDFor(id, strconv.Itoa(i))
		}
	}

	return &ResourceConfig{
		ID:                 id,
		IdealState:         is,
		StateModelDefID:    is.StateModelDefID(),
		Partitions:         partitions,
		BucketSize:         is.BucketSize(),
		BatchMessageMode:   is.BatchMessageMode(),
		TransitionTimeouts: is.TransitionTimeouts(),
	}
}

// NewRemovedResourceConfig describes a resource that has no ideal state
// but still has replicas in the observed current state. Every replica of
// such a resource is to be dropped.
//
// Parameters:
//   - id: Resource id
//   - smd: State model the replicas report
//   - partitions: Partitions with at least one observed replica
//
// Returns:
//   - *ResourceConfig: Config without an ideal state
func NewRemovedResourceConfig(id types.ResourceID, smd types.StateModelDefID, partitions []types.PartitionID) *ResourceConfig {
	return &ResourceConfig{
		ID:              id,
		StateModelDefID: smd,
		Partitions:      slices.Clone(partitions),
	}
}

// HasIdealState reports whether the resource is still defined by an ideal state.
func (r *ResourceConfig) HasIdealState() bool {
	return r.IdealState != nil
}

// AddObservedPartitions appends partitions that replicas still report but
// the ideal state no longer names, so their replicas can be dropped.
func (r *ResourceConfig) AddObservedPartitions(partitions []types.PartitionID) {
	for _, partition := range partitions {
		if !slices.Contains(r.Partitions, partition) {
			r.Partitions = append(r.Partitions, partition)
		}
	}
}

// PartitionSet returns the partitions of the resource.
func (r *ResourceConfig) PartitionSet() []types.PartitionID {
	return r.Partitions
}

// PreferenceMap returns the desired participant states of a partition, or
// nil when the ideal state has none.
func (r *ResourceConfig) PreferenceMap(partition types.PartitionID) map[types.ParticipantID]types.State {
	if r.IdealState == nil {
		return nil
	}

	return r.IdealState.PreferenceMap(partition)
}

// RebalanceMode returns the raw rebalance mode of the resource.
func (r *ResourceConfig) RebalanceMode() string {
	if r.IdealState == nil {
		return ""
	}

	return r.IdealState.RebalanceMode()
}

// RebalancerName returns the user-defined rebalancer name of the resource.
func (r *ResourceConfig) RebalancerName() string {
	if r.IdealState == nil {
		return ""
	}

	return r.IdealState.RebalancerClassName()
}

// Resource pairs a resource config with its last published external view.
type Resource struct {
	Config       *ResourceConfig
	ExternalView *model.ExternalView
}

// NewResource derives a resource from its ideal state and external view.
// ev may be nil.
func NewResource(is *model.IdealState, ev *model.ExternalView) *Resource {
	return &Resource{Config: NewResourceConfig(is), ExternalView: ev}
}

// NewRemovedResource wraps NewRemovedResourceConfig. ev may be nil.
func NewRemovedResource(id types.ResourceID, smd types.StateModelDefID, partitions []types.PartitionID, ev *model.ExternalView) *Resource {
	return &Resource{Config: NewRemovedResourceConfig(id, smd, partitions), ExternalView: ev}
}

// ID returns the resource id.
func (r *Resource) ID() types.ResourceID {
	return r.Config.ID
}

// Participant is the per-pass view of a configured participant.
type Participant struct {
	// ID is the participant id.
	ID types.ParticipantID

	// Config is the persistent participant configuration; nil means enabled with defaults.
	Config *model.InstanceConfig

	// Live is the live-instance node, nil when the participant is not connected.
	Live *model.LiveInstance
}

// IsLive reports whether the participant is connected.
func (p *Participant) IsLive() bool {
	return p.Live != nil
}

// SessionID returns the live session, or "" when not connected.
func (p *Participant) SessionID() types.SessionID {
	if p.Live == nil {
		return ""
	}

	return p.Live.SessionID()
}

// IsEnabled reports whether the participant may serve replicas.
func (p *Participant) IsEnabled() bool {
	return p.Config == nil || p.Config.IsEnabled()
}

// IsDisabledFor reports whether the participant must not serve a partition:
// it is disabled as a whole or the partition is in its disabled set.
func (p *Participant) IsDisabledFor(partition types.PartitionID) bool {
	if p.Config == nil {
		return false
	}

	return !p.Config.IsEnabled() || p.Config.IsPartitionDisabled(partition)
}
