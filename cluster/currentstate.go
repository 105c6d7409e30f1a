package cluster

import (
	"slices"

	"github.com/arloliu/helmsman/types"
)

type replicaKey struct {
	resource    types.ResourceID
	partition   types.PartitionID
	participant types.ParticipantID
}

type partitionKey struct {
	resource  types.ResourceID
	partition types.PartitionID
}

// stateTable is a flat replica to state map with a partition membership index.
type stateTable struct {
	states  map[replicaKey]types.State
	members map[partitionKey][]types.ParticipantID
	byRes   map[types.ResourceID][]types.PartitionID
}

func newStateTable() stateTable {
	return stateTable{
		states:  make(map[replicaKey]types.State),
		members: make(map[partitionKey][]types.ParticipantID),
		byRes:   make(map[types.ResourceID][]types.PartitionID),
	}
}

func (t *stateTable) set(resource types.ResourceID, partition types.PartitionID, participant types.ParticipantID, state types.State) {
	key := replicaKey{resource: resource, partition: partition, participant: participant}
	if _, ok := t.states[key]; !ok {
		pk := partitionKey{resource: resource, partition: partition}
		if _, ok := t.members[pk]; !ok {
			t.byRes[resource] = append(t.byRes[resource], partition)
		}
		t.members[pk] = append(t.members[pk], participant)
	}
	t.states[key] = state
}

func (t *stateTable) get(resource types.ResourceID, partition types.PartitionID, participant types.ParticipantID) (types.State, bool) {
	s, ok := t.states[replicaKey{resource: resource, partition: partition, participant: participant}]
	return s, ok
}

func (t *stateTable) stateMap(resource types.ResourceID, partition types.PartitionID) map[types.ParticipantID]types.State {
	members := t.members[partitionKey{resource: resource, partition: partition}]
	out := make(map[types.ParticipantID]types.State, len(members))
	for _, p := range members {
		out[p] = t.states[replicaKey{resource: resource, partition: partition, participant: p}]
	}

	return out
}

// ResourceCurrentState aggregates the observed and in-flight replica states
// of every resource for one reconciliation pass.
//
// Replica states are kept in flat maps keyed by (resource, partition,
// participant). Query results are fresh maps owned by the caller. A
// ResourceCurrentState is built by one goroutine and then only read; it is
// not safe for concurrent writes.
type ResourceCurrentState struct {
	current     stateTable
	pending     stateTable
	stateModels map[types.ResourceID]types.StateModelDefID
	bucketSizes map[types.ResourceID]int
}

// NewResourceCurrentState creates an empty aggregation.
func NewResourceCurrentState() *ResourceCurrentState {
	return &ResourceCurrentState{
		current:     newStateTable(),
		pending:     newStateTable(),
		stateModels: make(map[types.ResourceID]types.StateModelDefID),
		bucketSizes: make(map[types.ResourceID]int),
	}
}

// SetCurrentState records the observed state of a replica.
func (s *ResourceCurrentState) SetCurrentState(resource types.ResourceID, partition types.PartitionID, participant types.ParticipantID, state types.State) {
	s.current.set(resource, partition, participant, state)
}

// SetPendingState records the target state of an in-flight transition.
func (s *ResourceCurrentState) SetPendingState(resource types.ResourceID, partition types.PartitionID, participant types.ParticipantID, state types.State) {
	s.pending.set(resource, partition, participant, state)
}

// CurrentState returns the observed state of a replica.
func (s *ResourceCurrentState) CurrentState(resource types.ResourceID, partition types.PartitionID, participant types.ParticipantID) (types.State, bool) {
	return s.current.get(resource, partition, participant)
}

// PendingState returns the in-flight target state of a replica.
func (s *ResourceCurrentState) PendingState(resource types.ResourceID, partition types.PartitionID, participant types.ParticipantID) (types.State, bool) {
	return s.pending.get(resource, partition, participant)
}

// CurrentStateMap returns the observed states of every replica of a
// partition. The map is empty, never nil, when nothing was observed.
func (s *ResourceCurrentState) CurrentStateMap(resource types.ResourceID, partition types.PartitionID) map[types.ParticipantID]types.State {
	return s.current.stateMap(resource, partition)
}

// PendingStateMap returns the in-flight target states of a partition. The
// map is empty, never nil, when nothing is in flight.
func (s *ResourceCurrentState) PendingStateMap(resource types.ResourceID, partition types.PartitionID) map[types.ParticipantID]types.State {
	return s.pending.stateMap(resource, partition)
}

// CurrentStateMappedPartitions returns the partitions of a resource that
// have at least one observed replica, sorted.
func (s *ResourceCurrentState) CurrentStateMappedPartitions(resource types.ResourceID) []types.PartitionID {
	out := slices.Clone(s.current.byRes[resource])
	if out == nil {
		out = []types.PartitionID{}
	}
	slices.Sort(out)

	return out
}

// SetResourceStateModelDef binds a resource to the state model its replicas report.
func (s *ResourceCurrentState) SetResourceStateModelDef(resource types.ResourceID, smd types.StateModelDefID) {
	s.stateModels[resource] = smd
}

// ResourceStateModelDef returns the state model bound to a resource.
func (s *ResourceCurrentState) ResourceStateModelDef(resource types.ResourceID) (types.StateModelDefID, bool) {
	smd, ok := s.stateModels[resource]
	return smd, ok
}

// SetBucketSize records the bucket size of a resource.
func (s *ResourceCurrentState) SetBucketSize(resource types.ResourceID, size int) {
	s.bucketSizes[resource] = size
}

// BucketSize returns the bucket size of a resource, or 0 when unset.
func (s *ResourceCurrentState) BucketSize(resource types.ResourceID) int {
	return s.bucketSizes[resource]
}

// Resources returns every resource with an observed replica or a state
// model binding, sorted.
func (s *ResourceCurrentState) Resources() []types.ResourceID {
	seen := make(map[types.ResourceID]struct{}, len(s.current.byRes)+len(s.stateModels))
	for r := range s.current.byRes {
		seen[r] = struct{}{}
	}
	for r := range s.stateModels {
		seen[r] = struct{}{}
	}

	out := make([]types.ResourceID, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	slices.Sort(out)

	return out
}
