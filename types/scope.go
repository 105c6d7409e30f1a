package types

// ScopeType is the granularity at which a configuration or constraint applies.
type ScopeType string

const (
	ScopeCluster     ScopeType = "CLUSTER"
	ScopeResource    ScopeType = "RESOURCE"
	ScopeParticipant ScopeType = "PARTICIPANT"
	ScopePartition   ScopeType = "PARTITION"
)

// Scope pairs a scope type with the id of the scoped entity.
type Scope struct {
	Type ScopeType
	ID   string
}

// ClusterScope returns the scope of a whole cluster.
func ClusterScope(id ClusterID) Scope {
	return Scope{Type: ScopeCluster, ID: string(id)}
}

// ResourceScope returns the scope of one resource.
func ResourceScope(id ResourceID) Scope {
	return Scope{Type: ScopeResource, ID: string(id)}
}

// ParticipantScope returns the scope of one participant.
func ParticipantScope(id ParticipantID) Scope {
	return Scope{Type: ScopeParticipant, ID: string(id)}
}

// PartitionScope returns the scope of one partition.
func PartitionScope(id PartitionID) Scope {
	return Scope{Type: ScopePartition, ID: string(id)}
}

// String renders the scope as "TYPE:id".
func (s Scope) String() string {
	return string(s.Type) + ":" + s.ID
}
