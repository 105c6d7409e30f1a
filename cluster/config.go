package cluster

import (
	"maps"
	"math"
	"slices"
	"strconv"

	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/types"
)

// Config is an immutable snapshot of a cluster for one reconciliation pass:
// resources, participants, constraints, state models and the pause flag.
//
// A Config is safe for concurrent reads.
type Config struct {
	id           types.ClusterID
	resources    map[types.ResourceID]*Resource
	participants map[types.ParticipantID]*Participant
	constraints  map[model.ConstraintType]*model.ClusterConstraints
	stateModels  map[types.StateModelDefID]*model.StateModelDefinition
	userConfig   *model.ClusterConfig
	paused       bool
	logger       types.Logger
}

// ID returns the cluster id.
func (c *Config) ID() types.ClusterID {
	return c.id
}

// IsPaused reports whether reconciliation of the cluster is paused.
func (c *Config) IsPaused() bool {
	return c.paused
}

// UserConfig returns the cluster-wide user settings. It is never nil.
func (c *Config) UserConfig() *model.ClusterConfig {
	return c.userConfig
}

// Resource returns one resource, or nil.
func (c *Config) Resource(id types.ResourceID) *Resource {
	return c.resources[id]
}

// ResourceIDs returns every resource id, sorted.
func (c *Config) ResourceIDs() []types.ResourceID {
	return slices.Sorted(maps.Keys(c.resources))
}

// Participant returns one participant, or nil.
func (c *Config) Participant(id types.ParticipantID) *Participant {
	return c.participants[id]
}

// Participants returns a copy of the participant map.
func (c *Config) Participants() map[types.ParticipantID]*Participant {
	return maps.Clone(c.participants)
}

// LiveParticipants returns the participants that are currently connected.
func (c *Config) LiveParticipants() map[types.ParticipantID]*Participant {
	out := make(map[types.ParticipantID]*Participant, len(c.participants))
	for id, p := range c.participants {
		if p.IsLive() {
			out[id] = p
		}
	}

	return out
}

// DisabledParticipants returns the participants that must not serve a partition.
func (c *Config) DisabledParticipants(partition types.PartitionID) map[types.ParticipantID]struct{} {
	out := make(map[types.ParticipantID]struct{})
	for id, p := range c.participants {
		if p.IsDisabledFor(partition) {
			out[id] = struct{}{}
		}
	}

	return out
}

// StateModel returns one state model definition, or nil.
func (c *Config) StateModel(id types.StateModelDefID) *model.StateModelDefinition {
	return c.stateModels[id]
}

// StateModels returns a copy of the state model map.
func (c *Config) StateModels() map[types.StateModelDefID]*model.StateModelDefinition {
	return maps.Clone(c.stateModels)
}

// Constraints returns the constraints of one type. It is never nil.
func (c *Config) Constraints(typ model.ConstraintType) *model.ClusterConstraints {
	if cc, ok := c.constraints[typ]; ok {
		return cc
	}

	return model.NewClusterConstraints(typ)
}

// StateUpperBoundConstraint resolves the maximum number of replicas of a
// partition that may be in state.
//
// Constraints are matched on STATE and STATE_MODEL, plus RESOURCE for a
// resource scope. A matching "R" or "N" bound is returned as is; otherwise
// the smallest numeric bound wins. Unparseable bounds are logged and
// skipped.
//
// Parameters:
//   - scope: Cluster or resource scope; other scopes are logged and unbounded
//   - smd: State model owning the state
//   - state: Constrained state
//
// Returns:
//   - string: "-1" when unbounded, "R", "N" or a number
//
// Example:
//
//	bound := cfg.StateUpperBoundConstraint(types.ResourceScope("TestDB"), "MasterSlave", "MASTER")
func (c *Config) StateUpperBoundConstraint(scope types.Scope, smd types.StateModelDefID, state types.State) string {
	query := map[model.ConstraintAttribute]string{
		model.AttrState:      string(state),
		model.AttrStateModel: string(smd),
	}
	switch scope.Type {
	case types.ScopeCluster:
	case types.ScopeResource:
		query[model.AttrResource] = scope.ID
	default:
		c.logger.Error("unsupported scope for state constraint", "scope", scope.String())
		return model.UpperBoundNone
	}

	value := -1
	for _, item := range c.Constraints(model.StateConstraint).Match(query) {
		raw := item.Value()
		if raw == model.UpperBoundReplicas || raw == model.UpperBoundParticipants {
			return raw
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			c.logger.Error("invalid state upper bound", "value", raw, "state", string(state), "error", err)
			continue
		}
		if value == -1 || n < value {
			value = n
		}
	}

	return strconv.Itoa(value)
}

// TransitionConstraint resolves the maximum number of in-flight transitions
// of one kind.
//
// Constraints are matched on STATE_MODEL, MESSAGE_TYPE=STATE_TRANSITION and
// TRANSITION, plus RESOURCE for a resource scope or INSTANCE for a
// participant scope. The smallest numeric cap wins; unparseable caps are
// logged and skipped.
//
// Returns:
//   - int: The cap, or math.MaxInt when unbounded or the scope is unsupported
func (c *Config) TransitionConstraint(scope types.Scope, smd types.StateModelDefID, transition types.Transition) int {
	query := map[model.ConstraintAttribute]string{
		model.AttrStateModel:  string(smd),
		model.AttrMessageType: model.MessageTypeStateTransition,
		model.AttrTransition:  transition.String(),
	}
	switch scope.Type {
	case types.ScopeCluster:
	case types.ScopeResource:
		query[model.AttrResource] = scope.ID
	case types.ScopeParticipant:
		query[model.AttrInstance] = scope.ID
	default:
		c.logger.Error("unsupported scope for transition constraint", "scope", scope.String())
		return math.MaxInt
	}

	value := math.MaxInt
	for _, item := range c.Constraints(model.MessageConstraint).Match(query) {
		n, err := strconv.Atoi(item.Value())
		if err != nil {
			c.logger.Error("invalid in-flight transition cap", "value", item.Value(),
				"transition", transition.String(), "error", err)
			continue
		}
		value = min(value, n)
	}

	return value
}

// Builder assembles a Config.
//
// Example:
//
//	cfg := cluster.NewBuilder("mycluster").
//	    AddStateModelDefinition(model.MasterSlave()).
//	    AddResource(cluster.NewResource(idealState, nil)).
//	    AddParticipant(&cluster.Participant{ID: "p1", Live: live}).
//	    AddTransitionConstraint(types.ClusterScope("mycluster"), "MasterSlave",
//	        types.Transition{From: "OFFLINE", To: "SLAVE"}, 10).
//	    Build()
type Builder struct {
	id           types.ClusterID
	resources    map[types.ResourceID]*Resource
	participants map[types.ParticipantID]*Participant
	constraints  map[model.ConstraintType]*model.ClusterConstraints
	stateModels  map[types.StateModelDefID]*model.StateModelDefinition
	userConfig   *model.ClusterConfig
	paused       bool
	logger       types.Logger
}

// NewBuilder starts a config for the given cluster.
func NewBuilder(id types.ClusterID) *Builder {
	return &Builder{
		id:           id,
		resources:    make(map[types.ResourceID]*Resource),
		participants: make(map[types.ParticipantID]*Participant),
		constraints:  make(map[model.ConstraintType]*model.ClusterConstraints),
		stateModels:  make(map[types.StateModelDefID]*model.StateModelDefinition),
		userConfig:   model.NewClusterConfig(id),
		logger:       logging.NewNop(),
	}
}

// WithLogger sets the logger used by the builder and the built config.
func (b *Builder) WithLogger(logger types.Logger) *Builder {
	if logger != nil {
		b.logger = logger
	}

	return b
}

// AddResource adds or replaces a resource.
func (b *Builder) AddResource(r *Resource) *Builder {
	b.resources[r.ID()] = r
	return b
}

// AddParticipant adds or replaces a participant.
func (b *Builder) AddParticipant(p *Participant) *Builder {
	b.participants[p.ID] = p
	return b
}

// AddConstraint merges every item of cc into the constraints of its type.
func (b *Builder) AddConstraint(cc *model.ClusterConstraints) *Builder {
	existing := b.constraintsOf(cc.Type())
	for id, item := range cc.Items() {
		existing.AddConstraintItem(id, item)
	}

	return b
}

// AddTransitionConstraint caps the in-flight transitions of one kind within
// a cluster, resource or participant scope. Other scopes are logged and ignored.
func (b *Builder) AddTransitionConstraint(scope types.Scope, smd types.StateModelDefID, transition types.Transition, maxInFlight int) *Builder {
	attrs := map[string]string{
		string(model.AttrMessageType):     model.MessageTypeStateTransition,
		string(model.AttrConstraintValue): strconv.Itoa(maxInFlight),
		string(model.AttrTransition):      transition.String(),
		string(model.AttrStateModel):      string(smd),
	}
	switch scope.Type {
	case types.ScopeCluster:
	case types.ScopeResource:
		attrs[string(model.AttrResource)] = scope.ID
	case types.ScopeParticipant:
		attrs[string(model.AttrInstance)] = scope.ID
	default:
		b.logger.Error("unsupported scope for adding a transition constraint", "scope", scope.String())
		return b
	}

	b.constraintsOf(model.MessageConstraint).AddConstraintItem(
		model.ConstraintIDFor(scope, smd, transition), model.NewConstraintItem(attrs))

	return b
}

// AddStateUpperBoundConstraint bounds the replicas of a partition in state.
func (b *Builder) AddStateUpperBoundConstraint(scope types.Scope, smd types.StateModelDefID, state types.State, upperBound int) *Builder {
	return b.AddDynamicStateUpperBoundConstraint(scope, smd, state, strconv.Itoa(upperBound))
}

// AddDynamicStateUpperBoundConstraint bounds the replicas of a partition in
// state by a number, "R" (replica count) or "N" (participant count), within
// a cluster or resource scope. Other scopes are logged and ignored.
func (b *Builder) AddDynamicStateUpperBoundConstraint(scope types.Scope, smd types.StateModelDefID, state types.State, bound string) *Builder {
	attrs := map[string]string{
		string(model.AttrState):           string(state),
		string(model.AttrStateModel):      string(smd),
		string(model.AttrConstraintValue): bound,
	}
	switch scope.Type {
	case types.ScopeCluster:
	case types.ScopeResource:
		attrs[string(model.AttrResource)] = scope.ID
	default:
		b.logger.Error("unsupported scope for adding a state constraint", "scope", scope.String())
		return b
	}

	b.constraintsOf(model.StateConstraint).AddConstraintItem(
		model.ConstraintIDFor(scope, smd, state), model.NewConstraintItem(attrs))

	return b
}

// AddStateModelDefinition adds a state model and derives a cluster-scope
// upper bound constraint for every state whose declared bound is not "-1".
func (b *Builder) AddStateModelDefinition(def *model.StateModelDefinition) *Builder {
	b.stateModels[def.ID()] = def
	for _, state := range def.StatesPriorityList() {
		bound := def.NumParticipantsPerState(state)
		if bound == model.UpperBoundNone {
			continue
		}
		b.AddDynamicStateUpperBoundConstraint(types.ClusterScope(b.id), def.ID(), state, bound)
	}

	return b
}

// SetPaused sets the pause flag.
func (b *Builder) SetPaused(paused bool) *Builder {
	b.paused = paused
	return b
}

// SetUserConfig sets the cluster-wide user settings.
func (b *Builder) SetUserConfig(cfg *model.ClusterConfig) *Builder {
	if cfg != nil {
		b.userConfig = cfg
	}

	return b
}

// Build returns the config. Later builder calls do not affect it.
func (b *Builder) Build() *Config {
	constraints := make(map[model.ConstraintType]*model.ClusterConstraints, len(b.constraints))
	for typ, cc := range b.constraints {
		clone := model.NewClusterConstraints(typ)
		for id, item := range cc.Items() {
			clone.AddConstraintItem(id, item)
		}
		constraints[typ] = clone
	}

	return &Config{
		id:           b.id,
		resources:    maps.Clone(b.resources),
		participants: maps.Clone(b.participants),
		constraints:  constraints,
		stateModels:  maps.Clone(b.stateModels),
		userConfig:   b.userConfig,
		paused:       b.paused,
		logger:       b.logger,
	}
}

func (b *Builder) constraintsOf(typ model.ConstraintType) *model.ClusterConstraints {
	cc, ok := b.constraints[typ]
	if !ok {
		cc = model.NewClusterConstraints(typ)
		b.constraints[typ] = cc
	}

	return cc
}
