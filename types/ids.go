package types

import "strings"

// PartitionSeparator joins a resource id and a partition suffix.
const PartitionSeparator = "_"

// ClusterID identifies a cluster.
type ClusterID string

// ResourceID identifies a resource (a partitioned unit of work).
type ResourceID string

// ParticipantID identifies a participant (a worker process).
type ParticipantID string

// PartitionID identifies one partition of a resource.
//
// Partition ids are scoped by their resource: "<resource>_<suffix>".
type PartitionID string

// StateModelDefID identifies a state model definition.
type StateModelDefID string

// SessionID identifies one coordination session of a process.
type SessionID string

// String returns the underlying id.
func (id ClusterID) String() string { return string(id) }

// String returns the underlying id.
func (id ResourceID) String() string { return string(id) }

// String returns the underlying id.
func (id ParticipantID) String() string { return string(id) }

// String returns the underlying id.
func (id PartitionID) String() string { return string(id) }

// String returns the underlying id.
func (id StateModelDefID) String() string { return string(id) }

// String returns the underlying id.
func (id SessionID) String() string { return string(id) }

// PartitionIDFor builds the partition id for the given resource and suffix.
//
// Parameters:
//   - resource: Owning resource id
//   - suffix: Partition suffix, usually the partition index
//
// Returns:
//   - PartitionID: "<resource>_<suffix>"
//
// Example:
//
//	types.PartitionIDFor("TestDB", "3") // "TestDB_3"
func PartitionIDFor(resource ResourceID, suffix string) PartitionID {
	return PartitionID(string(resource) + PartitionSeparator + suffix)
}

// ResourceID extracts the owning resource id from a partition id.
//
// The resource part is everything before the last separator. A partition id
// without a separator is returned unchanged as the resource id.
func (id PartitionID) ResourceID() ResourceID {
	s := string(id)
	idx := strings.LastIndex(s, PartitionSeparator)
	if idx < 0 {
		return ResourceID(s)
	}

	return ResourceID(s[:idx])
}
