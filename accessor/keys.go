package accessor

import (
	"fmt"
	"strings"

	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/store"
	"github.com/arloliu/helmsman/types"
)

// PropertyType is the closed set of cluster properties.
type PropertyType int

const (
	IdealStates PropertyType = iota
	StateModelDefs
	Constraints
	ClusterConfigs
	InstanceConfigs
	LiveInstances
	CurrentStates
	Messages
	ExternalViews
	ResourceAssignments
	Pause
)

// typeInfo describes where a property type lives. Template segments that
// start with '{' are placeholders filled from the key parameters in order.
type typeInfo struct {
	name       string
	template   []string
	persistent bool
}

var propertyTypes = map[PropertyType]typeInfo{
	IdealStates:         {name: "IDEALSTATES", template: []string{"IDEALSTATES", "{resource}"}, persistent: true},
	StateModelDefs:      {name: "STATEMODELDEFS", template: []string{"STATEMODELDEFS", "{smd}"}, persistent: true},
	Constraints:         {name: "CONSTRAINTS", template: []string{"CONFIGS", "CONSTRAINT", "{type}"}, persistent: true},
	ClusterConfigs:      {name: "CLUSTERCONFIGS", template: []string{"CONFIGS", "CLUSTER", "{cluster}"}, persistent: true},
	InstanceConfigs:     {name: "INSTANCECONFIGS", template: []string{"CONFIGS", "PARTICIPANT", "{participant}"}, persistent: true},
	LiveInstances:       {name: "LIVEINSTANCES", template: []string{"LIVEINSTANCES", "{participant}"}, persistent: false},
	CurrentStates:       {name: "CURRENTSTATES", template: []string{"INSTANCES", "{participant}", "CURRENTSTATES", "{session}", "{resource}"}, persistent: true},
	Messages:            {name: "MESSAGES", template: []string{"INSTANCES", "{participant}", "MESSAGES", "{msgId}"}, persistent: true},
	ExternalViews:       {name: "EXTERNALVIEW", template: []string{"EXTERNALVIEW", "{resource}"}, persistent: true},
	ResourceAssignments: {name: "RESOURCEASSIGNMENTS", template: []string{"RESOURCEASSIGNMENTS", "{resource}"}, persistent: true},
	Pause:               {name: "PAUSE", template: []string{"CONTROLLER", "PAUSE"}, persistent: true},
}

// String returns the property type name.
func (t PropertyType) String() string {
	if info, ok := propertyTypes[t]; ok {
		return info.name
	}

	return fmt.Sprintf("PropertyType(%d)", int(t))
}

// IsPersistent reports whether properties of this type outlive the session that wrote them.
func (t PropertyType) IsPersistent() bool {
	return propertyTypes[t].persistent
}

// Option returns the store option for properties of this type.
func (t PropertyType) Option() store.Option {
	if t.IsPersistent() {
		return store.Persistent
	}

	return store.Ephemeral
}

// PropertyKey addresses one property, or the parent of a set of properties
// when it carries fewer parameters than its type has placeholders.
type PropertyKey struct {
	Type    PropertyType
	Cluster types.ClusterID
	Params  []string
}

// Path renders the store path of the key.
//
// Placeholders are filled from Params in order. The path stops before the
// first placeholder without a parameter, which addresses the parent node
// used for listing.
//
// Returns:
//   - string: Store path such as "/mycluster/IDEALSTATES/TestDB"
//   - error: ErrUnknownPropertyType for an unknown type, ErrInvalidPropertyKey
//     if the key carries more parameters than placeholders or an empty parameter
func (k PropertyKey) Path() (string, error) {
	info, ok := propertyTypes[k.Type]
	if !ok {
		return "", fmt.Errorf("%w: %s", types.ErrUnknownPropertyType, k.Type)
	}
	if k.Cluster == "" {
		return "", fmt.Errorf("%w: %s key without cluster", types.ErrInvalidPropertyKey, k.Type)
	}

	segments := make([]string, 0, len(info.template)+1)
	segments = append(segments, string(k.Cluster))
	next := 0
	for _, seg := range info.template {
		if !strings.HasPrefix(seg, "{") {
			segments = append(segments, seg)
			continue
		}
		if next >= len(k.Params) {
			break
		}
		if k.Params[next] == "" {
			return "", fmt.Errorf("%w: %s parameter %s is empty", types.ErrInvalidPropertyKey, k.Type, seg)
		}
		segments = append(segments, k.Params[next])
		next++
	}
	if next < len(k.Params) {
		return "", fmt.Errorf("%w: %s takes at most %d parameters, got %d",
			types.ErrInvalidPropertyKey, k.Type, next, len(k.Params))
	}

	return store.Join(segments...), nil
}

// Option returns the store option of the key's property type.
func (k PropertyKey) Option() store.Option {
	return k.Type.Option()
}

// String renders the key for logs.
func (k PropertyKey) String() string {
	path, err := k.Path()
	if err != nil {
		return fmt.Sprintf("%s%v", k.Type, k.Params)
	}

	return path
}

// KeyBuilder creates property keys for one cluster.
//
// Example:
//
//	keys := accessor.NewKeyBuilder("mycluster")
//	is, err := accessor.GetAs[*model.IdealState](ctx, da, keys.IdealState("TestDB"))
type KeyBuilder struct {
	cluster types.ClusterID
}

// NewKeyBuilder creates a key builder for a cluster.
func NewKeyBuilder(cluster types.ClusterID) KeyBuilder {
	return KeyBuilder{cluster: cluster}
}

// Cluster returns the cluster the builder creates keys for.
func (b KeyBuilder) Cluster() types.ClusterID {
	return b.cluster
}

func (b KeyBuilder) key(t PropertyType, params ...string) PropertyKey {
	return PropertyKey{Type: t, Cluster: b.cluster, Params: params}
}

// IdealStates addresses the parent of every ideal state.
func (b KeyBuilder) IdealStates() PropertyKey { return b.key(IdealStates) }

// IdealState addresses the ideal state of a resource.
func (b KeyBuilder) IdealState(resource types.ResourceID) PropertyKey {
	return b.key(IdealStates, string(resource))
}

// StateModelDefs addresses the parent of every state model definition.
func (b KeyBuilder) StateModelDefs() PropertyKey { return b.key(StateModelDefs) }

// StateModelDef addresses one state model definition.
func (b KeyBuilder) StateModelDef(id types.StateModelDefID) PropertyKey {
	return b.key(StateModelDefs, string(id))
}

// Constraints addresses the parent of every constraint set.
func (b KeyBuilder) Constraints() PropertyKey { return b.key(Constraints) }

// Constraint addresses the constraint set of one type.
func (b KeyBuilder) Constraint(typ model.ConstraintType) PropertyKey {
	return b.key(Constraints, string(typ))
}

// ClusterConfig addresses the cluster-wide configuration.
func (b KeyBuilder) ClusterConfig() PropertyKey {
	return b.key(ClusterConfigs, string(b.cluster))
}

// InstanceConfigs addresses the parent of every participant configuration.
func (b KeyBuilder) InstanceConfigs() PropertyKey { return b.key(InstanceConfigs) }

// InstanceConfig addresses the configuration of a participant.
func (b KeyBuilder) InstanceConfig(participant types.ParticipantID) PropertyKey {
	return b.key(InstanceConfigs, string(participant))
}

// LiveInstances addresses the parent of every live instance.
func (b KeyBuilder) LiveInstances() PropertyKey { return b.key(LiveInstances) }

// LiveInstance addresses the live node of a participant.
func (b KeyBuilder) LiveInstance(participant types.ParticipantID) PropertyKey {
	return b.key(LiveInstances, string(participant))
}

// Sessions addresses the parent of every session a participant reported current states under.
func (b KeyBuilder) Sessions(participant types.ParticipantID) PropertyKey {
	return b.key(CurrentStates, string(participant))
}

// CurrentStates addresses the current states of a participant session.
func (b KeyBuilder) CurrentStates(participant types.ParticipantID, session types.SessionID) PropertyKey {
	return b.key(CurrentStates, string(participant), string(session))
}

// CurrentState addresses the current state of one resource on a participant session.
func (b KeyBuilder) CurrentState(participant types.ParticipantID, session types.SessionID, resource types.ResourceID) PropertyKey {
	return b.key(CurrentStates, string(participant), string(session), string(resource))
}

// Messages addresses the message queue of a participant.
func (b KeyBuilder) Messages(participant types.ParticipantID) PropertyKey {
	return b.key(Messages, string(participant))
}

// Message addresses one message of a participant.
func (b KeyBuilder) Message(participant types.ParticipantID, id string) PropertyKey {
	return b.key(Messages, string(participant), id)
}

// ExternalViews addresses the parent of every external view.
func (b KeyBuilder) ExternalViews() PropertyKey { return b.key(ExternalViews) }

// ExternalView addresses the external view of a resource.
func (b KeyBuilder) ExternalView(resource types.ResourceID) PropertyKey {
	return b.key(ExternalViews, string(resource))
}

// ResourceAssignments addresses the parent of every resource assignment.
func (b KeyBuilder) ResourceAssignments() PropertyKey { return b.key(ResourceAssignments) }

// ResourceAssignment addresses the computed assignment of a resource.
func (b KeyBuilder) ResourceAssignment(resource types.ResourceID) PropertyKey {
	return b.key(ResourceAssignments, string(resource))
}

// Pause addresses the pause signal of the cluster.
func (b KeyBuilder) Pause() PropertyKey { return b.key(Pause) }
