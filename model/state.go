package model

import (
	"maps"

	"github.com/arloliu/helmsman/types"
)

// CurrentState holds the partition states a participant reports for one
// resource under one session.
type CurrentState struct {
	record *types.Record
}

var _ Property = (*CurrentState)(nil)

// NewCurrentState creates an empty current state for a resource.
func NewCurrentState(resource types.ResourceID) *CurrentState {
	return &CurrentState{record: types.NewRecord(string(resource))}
}

// CurrentStateFromRecord wraps a decoded record.
func CurrentStateFromRecord(rec *types.Record) (*CurrentState, error) {
	if err := requireRecord("current state", rec); err != nil {
		return nil, err
	}

	return &CurrentState{record: rec}, nil
}

// Record returns the underlying record.
func (s *CurrentState) Record() *types.Record {
	return s.record
}

// ResourceID returns the resource the states belong to.
func (s *CurrentState) ResourceID() types.ResourceID {
	return types.ResourceID(s.record.ID)
}

// SessionID returns the session the states were reported under.
func (s *CurrentState) SessionID() types.SessionID {
	return types.SessionID(s.record.SimpleFields[FieldSessionID])
}

// SetSessionID sets SESSION_ID.
func (s *CurrentState) SetSessionID(id types.SessionID) {
	s.record.SetSimpleField(FieldSessionID, string(id))
}

// StateModelDefID returns the state model of the resource.
func (s *CurrentState) StateModelDefID() types.StateModelDefID {
	return types.StateModelDefID(s.record.SimpleFields[FieldStateModelDef])
}

// SetStateModelDefID sets STATE_MODEL_DEF.
func (s *CurrentState) SetStateModelDefID(id types.StateModelDefID) {
	s.record.SetSimpleField(FieldStateModelDef, string(id))
}

// BucketSize returns BUCKET_SIZE, or 0 when unset.
func (s *CurrentState) BucketSize() int {
	return s.record.SimpleFieldInt(FieldBucketSize, 0)
}

// SetBucketSize sets BUCKET_SIZE.
func (s *CurrentState) SetBucketSize(n int) {
	s.record.SetSimpleFieldInt(FieldBucketSize, n)
}

// State returns the reported state of a partition.
func (s *CurrentState) State(partition types.PartitionID) (types.State, bool) {
	v, ok := s.record.MapFields[string(partition)][FieldCurrentState]
	return types.State(v), ok
}

// SetState records the state of a partition.
func (s *CurrentState) SetState(partition types.PartitionID, state types.State) {
	s.record.SetMapFieldEntry(string(partition), FieldCurrentState, string(state))
}

// PartitionStateMap returns the state of every reported partition.
func (s *CurrentState) PartitionStateMap() map[types.PartitionID]types.State {
	out := make(map[types.PartitionID]types.State, len(s.record.MapFields))
	for p, fields := range s.record.MapFields {
		if v, ok := fields[FieldCurrentState]; ok {
			out[types.PartitionID(p)] = types.State(v)
		}
	}

	return out
}

// ExternalView is the observed placement of a resource: for every partition,
// the state of each participant serving it.
type ExternalView struct {
	record *types.Record
}

var _ Property = (*ExternalView)(nil)

// NewExternalView creates an empty external view for a resource.
func NewExternalView(resource types.ResourceID) *ExternalView {
	return &ExternalView{record: types.NewRecord(string(resource))}
}

// ExternalViewFromRecord wraps a decoded record.
func ExternalViewFromRecord(rec *types.Record) (*ExternalView, error) {
	if err := requireRecord("external view", rec); err != nil {
		return nil, err
	}

	return &ExternalView{record: rec}, nil
}

// Record returns the underlying record.
func (v *ExternalView) Record() *types.Record {
	return v.record
}

// ResourceID returns the resource the view describes.
func (v *ExternalView) ResourceID() types.ResourceID {
	return types.ResourceID(v.record.ID)
}

// SetState records the state of one replica.
func (v *ExternalView) SetState(partition types.PartitionID, participant types.ParticipantID, state types.State) {
	v.record.SetMapFieldEntry(string(partition), string(participant), string(state))
}

// SetStateMap records the states of every replica of a partition.
func (v *ExternalView) SetStateMap(partition types.PartitionID, states map[types.ParticipantID]types.State) {
	for p, s := range states {
		v.SetState(partition, p, s)
	}
}

// StateMap returns the replica states of a partition, or nil when the
// partition is not in the view.
func (v *ExternalView) StateMap(partition types.PartitionID) map[types.ParticipantID]types.State {
	raw, ok := v.record.MapFields[string(partition)]
	if !ok {
		return nil
	}

	return stateMap(raw)
}

// PartitionSet returns the partitions in the view, sorted.
func (v *ExternalView) PartitionSet() []types.PartitionID {
	return sortedPartitions(v.record.MapFields)
}

// ResourceAssignment is the computed target placement of one resource.
type ResourceAssignment struct {
	record *types.Record
}

var _ Property = (*ResourceAssignment)(nil)

// NewResourceAssignment creates an empty assignment for a resource.
func NewResourceAssignment(resource types.ResourceID) *ResourceAssignment {
	return &ResourceAssignment{record: types.NewRecord(string(resource))}
}

// ResourceAssignmentFromRecord wraps a decoded record.
func ResourceAssignmentFromRecord(rec *types.Record) (*ResourceAssignment, error) {
	if err := requireRecord("resource assignment", rec); err != nil {
		return nil, err
	}

	return &ResourceAssignment{record: rec}, nil
}

// Record returns the underlying record.
func (a *ResourceAssignment) Record() *types.Record {
	return a.record
}

// ResourceID returns the assigned resource.
func (a *ResourceAssignment) ResourceID() types.ResourceID {
	return types.ResourceID(a.record.ID)
}

// AddReplicaMap sets the target states of a partition. An empty map
// records the partition with no replicas.
func (a *ResourceAssignment) AddReplicaMap(partition types.PartitionID, replicas map[types.ParticipantID]types.State) {
	a.record.SetMapField(string(partition), rawStateMap(replicas))
}

// ReplicaMap returns the target states of a partition. The map is empty,
// never nil, when the partition is not mapped.
func (a *ResourceAssignment) ReplicaMap(partition types.PartitionID) map[types.ParticipantID]types.State {
	return stateMap(a.record.MapFields[string(partition)])
}

// MappedPartitions returns the partitions of the assignment, sorted.
func (a *ResourceAssignment) MappedPartitions() []types.PartitionID {
	return sortedPartitions(a.record.MapFields)
}

// Equal reports whether both assignments map the same partitions to the same replicas.
func (a *ResourceAssignment) Equal(other *ResourceAssignment) bool {
	if a == nil || other == nil {
		return a == other
	}

	return a.record.ID == other.record.ID &&
		maps.EqualFunc(a.record.MapFields, other.record.MapFields, func(x, y map[string]string) bool {
			return maps.Equal(x, y)
		})
}
