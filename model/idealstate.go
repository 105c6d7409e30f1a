package model

import (
	"strconv"
	"strings"

	"github.com/arloliu/helmsman/types"
)

// Rebalance mode names accepted in REBALANCE_MODE.
const (
	RebalanceModeFullAuto    = "FULL_AUTO"
	RebalanceModeSemiAuto    = "SEMI_AUTO"
	RebalanceModeCustomized  = "CUSTOMIZED"
	RebalanceModeUserDefined = "USER_DEFINED"
)

// IdealState is the desired placement of one resource.
//
// Map fields hold per-partition preference maps (participant to state) and
// list fields per-partition preference lists. A resource without explicit
// partitions declares NUM_PARTITIONS instead.
type IdealState struct {
	record *types.Record
}

var _ Property = (*IdealState)(nil)

// NewIdealState creates an empty ideal state for a resource.
func NewIdealState(resource types.ResourceID) *IdealState {
	return &IdealState{record: types.NewRecord(string(resource))}
}

// IdealStateFromRecord wraps a decoded record.
func IdealStateFromRecord(rec *types.Record) (*IdealState, error) {
	if err := requireRecord("ideal state", rec); err != nil {
		return nil, err
	}

	return &IdealState{record: rec}, nil
}

// Record returns the underlying record.
func (s *IdealState) Record() *types.Record {
	return s.record
}

// ResourceID returns the resource the ideal state describes.
func (s *IdealState) ResourceID() types.ResourceID {
	return types.ResourceID(s.record.ID)
}

// RebalanceMode returns the raw REBALANCE_MODE value.
func (s *IdealState) RebalanceMode() string {
	return s.record.SimpleFields[FieldRebalanceMode]
}

// SetRebalanceMode sets REBALANCE_MODE.
func (s *IdealState) SetRebalanceMode(mode string) {
	s.record.SetSimpleField(FieldRebalanceMode, mode)
}

// RebalancerClassName names the user-defined rebalancer of the resource.
func (s *IdealState) RebalancerClassName() string {
	return s.record.SimpleFields[FieldRebalancerClassName]
}

// SetRebalancerClassName sets REBALANCER_CLASS_NAME.
func (s *IdealState) SetRebalancerClassName(name string) {
	s.record.SetSimpleField(FieldRebalancerClassName, name)
}

// StateModelDefID returns the state model the resource follows.
func (s *IdealState) StateModelDefID() types.StateModelDefID {
	return types.StateModelDefID(s.record.SimpleFields[FieldStateModelDef])
}

// SetStateModelDefID sets STATE_MODEL_DEF.
func (s *IdealState) SetStateModelDefID(id types.StateModelDefID) {
	s.record.SetSimpleField(FieldStateModelDef, string(id))
}

// NumPartitions returns NUM_PARTITIONS, or 0 when unset.
func (s *IdealState) NumPartitions() int {
	return s.record.SimpleFieldInt(FieldNumPartitions, 0)
}

// SetNumPartitions sets NUM_PARTITIONS.
func (s *IdealState) SetNumPartitions(n int) {
	s.record.SetSimpleFieldInt(FieldNumPartitions, n)
}

// Replicas returns the raw REPLICAS value, which may be a number or "N".
func (s *IdealState) Replicas() string {
	return s.record.SimpleFields[FieldReplicas]
}

// SetReplicas sets REPLICAS.
func (s *IdealState) SetReplicas(replicas string) {
	s.record.SetSimpleField(FieldReplicas, replicas)
}

// BucketSize returns BUCKET_SIZE, or 0 when unset.
func (s *IdealState) BucketSize() int {
	return s.record.SimpleFieldInt(FieldBucketSize, 0)
}

// SetBucketSize sets BUCKET_SIZE.
func (s *IdealState) SetBucketSize(n int) {
	s.record.SetSimpleFieldInt(FieldBucketSize, n)
}

// BatchMessageMode reports whether transitions of the resource are batched.
func (s *IdealState) BatchMessageMode() bool {
	return s.record.SimpleFieldBool(FieldBatchMessageMode, false)
}

// SetBatchMessageMode sets BATCH_MESSAGE_MODE.
func (s *IdealState) SetBatchMessageMode(enabled bool) {
	s.record.SetSimpleField(FieldBatchMessageMode, strconv.FormatBool(enabled))
}

// IsEnabled reports whether the resource is enabled. Resources are enabled by default.
func (s *IdealState) IsEnabled() bool {
	return s.record.SimpleFieldBool(FieldEnabled, true)
}

// SetEnabled sets HELIX_ENABLED.
func (s *IdealState) SetEnabled(enabled bool) {
	s.record.SetSimpleField(FieldEnabled, strconv.FormatBool(enabled))
}

// PartitionSet returns every partition named by a preference map or list, sorted.
func (s *IdealState) PartitionSet() []types.PartitionID {
	seen := make(map[string]struct{}, len(s.record.MapFields)+len(s.record.ListFields))
	for p := range s.record.MapFields {
		seen[p] = struct{}{}
	}
	for p := range s.record.ListFields {
		seen[p] = struct{}{}
	}

	return sortedPartitions(seen)
}

// PreferenceMap returns the desired participant states of a partition.
//
// Returns:
//   - map[types.ParticipantID]types.State: Desired states, nil when the
//     partition has no preference map
func (s *IdealState) PreferenceMap(partition types.PartitionID) map[types.ParticipantID]types.State {
	raw, ok := s.record.MapFields[string(partition)]
	if !ok {
		return nil
	}

	return stateMap(raw)
}

// SetPreferenceMap replaces the preference map of a partition.
func (s *IdealState) SetPreferenceMap(partition types.PartitionID, prefs map[types.ParticipantID]types.State) {
	s.record.SetMapField(string(partition), rawStateMap(prefs))
}

// PreferenceList returns the ordered participants preferred for a partition, or nil.
func (s *IdealState) PreferenceList(partition types.PartitionID) []types.ParticipantID {
	raw, ok := s.record.ListFields[string(partition)]
	if !ok {
		return nil
	}
	out := make([]types.ParticipantID, len(raw))
	for i, p := range raw {
		out[i] = types.ParticipantID(p)
	}

	return out
}

// SetPreferenceList replaces the preference list of a partition.
func (s *IdealState) SetPreferenceList(partition types.PartitionID, participants []types.ParticipantID) {
	raw := make([]string, len(participants))
	for i, p := range participants {
		raw[i] = string(p)
	}
	s.record.SetListField(string(partition), raw)
}

// TransitionTimeouts returns every simple field whose key contains
// "_TIMEOUT" and whose value is an integer. Malformed values are ignored.
func (s *IdealState) TransitionTimeouts() map[string]int {
	out := make(map[string]int)
	for key, value := range s.record.SimpleFields {
		if !strings.Contains(key, TimeoutSuffix) {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		out[key] = n
	}

	return out
}
