package admin

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/arloliu/helmsman/accessor"
	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/types"
)

// ResourceSpec describes a resource to add.
type ResourceSpec struct {
	// Partitions is the number of partitions, named "<resource>_<n>". Required.
	Partitions int

	// StateModel is the state model definition the replicas follow. Required.
	StateModel types.StateModelDefID

	// Mode is the rebalance mode; empty means SEMI_AUTO.
	Mode string

	// Replicas is the replica count, or a dynamic bound such as "N".
	Replicas string

	// RebalancerName selects the rebalancer of USER_DEFINED resources.
	RebalancerName string
}

// Admin manages cluster definitions in the coordination store.
//
// Create operations fail with types.ErrAlreadyExists on duplicates; updates
// of missing entities fail with types.ErrNotFound.
type Admin struct {
	accessor *accessor.DataAccessor
	logger   types.Logger
}

// Option configures an Admin.
type Option func(*Admin)

// WithLogger sets the logger.
func WithLogger(logger types.Logger) Option {
	return func(a *Admin) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New creates an Admin over a data accessor.
//
// Parameters:
//   - da: Data accessor over the coordination store
//   - opts: Optional configuration
//
// Returns:
//   - *Admin: Admin instance
//
// Example:
//
//	adm := admin.New(accessor.New(st))
//	if err := adm.AddCluster(ctx, "mycluster"); err != nil && !errors.Is(err, types.ErrAlreadyExists) {
//	    return err
//	}
func New(da *accessor.DataAccessor, opts ...Option) *Admin {
	a := &Admin{
		accessor: da,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	return a
}

// AddCluster creates the cluster config node.
//
// Returns:
//   - error: types.ErrAlreadyExists when the cluster exists
func (a *Admin) AddCluster(ctx context.Context, cluster types.ClusterID) error {
	keys := accessor.NewKeyBuilder(cluster)
	if err := a.accessor.CreateProperty(ctx, keys.ClusterConfig(), model.NewClusterConfig(cluster)); err != nil {
		return fmt.Errorf("add cluster %s: %w", cluster, err)
	}
	a.logger.Info("cluster added", "cluster", cluster)

	return nil
}

// AddStateModelDef registers a state model definition.
//
// Returns:
//   - error: types.ErrAlreadyExists when a definition with the same id exists
func (a *Admin) AddStateModelDef(ctx context.Context, cluster types.ClusterID, def *model.StateModelDefinition) error {
	if def == nil {
		return types.ErrInvalidStateModel
	}
	keys := accessor.NewKeyBuilder(cluster)
	if err := a.accessor.CreateProperty(ctx, keys.StateModelDef(def.ID()), def); err != nil {
		return fmt.Errorf("add state model %s: %w", def.ID(), err)
	}
	a.logger.Info("state model added", "cluster", cluster, "state_model", def.ID())

	return nil
}

// AddParticipant registers a participant config.
//
// Returns:
//   - error: types.ErrAlreadyExists when the participant exists
func (a *Admin) AddParticipant(ctx context.Context, cluster types.ClusterID, cfg *model.InstanceConfig) error {
	if cfg == nil {
		return fmt.Errorf("add participant: %w", types.ErrInvalidRecord)
	}
	keys := accessor.NewKeyBuilder(cluster)
	if err := a.accessor.CreateProperty(ctx, keys.InstanceConfig(cfg.ParticipantID()), cfg); err != nil {
		return fmt.Errorf("add participant %s: %w", cfg.ParticipantID(), err)
	}
	a.logger.Info("participant added", "cluster", cluster, "participant", cfg.ParticipantID())

	return nil
}

// DropParticipant removes a participant config together with its current
// states and messages.
//
// Returns:
//   - error: types.ErrNotFound when the participant does not exist,
//     types.ErrParticipantLive while it has a live instance
func (a *Admin) DropParticipant(ctx context.Context, cluster types.ClusterID, participant types.ParticipantID) error {
	keys := accessor.NewKeyBuilder(cluster)
	cfg, err := a.instanceConfig(ctx, keys, participant)
	if err != nil {
		return err
	}

	live, err := accessor.GetAs[*model.LiveInstance](ctx, a.accessor, keys.LiveInstance(participant))
	if err != nil {
		return fmt.Errorf("drop participant %s: %w", participant, err)
	}
	if live != nil {
		return fmt.Errorf("drop participant %s: %w", participant, types.ErrParticipantLive)
	}

	for _, key := range []accessor.PropertyKey{keys.Sessions(participant), keys.Messages(participant)} {
		if err := a.removeIfPresent(ctx, key); err != nil {
			return fmt.Errorf("drop participant %s: %w", participant, err)
		}
	}
	if err := a.accessor.RemoveProperty(ctx, keys.InstanceConfig(cfg.ParticipantID())); err != nil {
		return fmt.Errorf("drop participant %s: %w", participant, err)
	}
	a.logger.Info("participant dropped", "cluster", cluster, "participant", participant)

	return nil
}

// EnableParticipant enables or disables a participant.
//
// Returns:
//   - error: types.ErrNotFound when the participant does not exist
func (a *Admin) EnableParticipant(ctx context.Context, cluster types.ClusterID, participant types.ParticipantID, enabled bool) error {
	keys := accessor.NewKeyBuilder(cluster)
	cfg, err := a.instanceConfig(ctx, keys, participant)
	if err != nil {
		return err
	}
	cfg.SetEnabled(enabled)
	if err := a.accessor.SetProperty(ctx, keys.InstanceConfig(participant), cfg); err != nil {
		return fmt.Errorf("enable participant %s: %w", participant, err)
	}
	a.logger.Info("participant enablement changed", "cluster", cluster, "participant", participant, "enabled", enabled)

	return nil
}

// EnablePartitions enables or disables partitions on one participant.
//
// Returns:
//   - error: types.ErrNotFound when the participant does not exist
func (a *Admin) EnablePartitions(
	ctx context.Context,
	cluster types.ClusterID,
	participant types.ParticipantID,
	partitions []types.PartitionID,
	enabled bool,
) error {
	keys := accessor.NewKeyBuilder(cluster)
	cfg, err := a.instanceConfig(ctx, keys, participant)
	if err != nil {
		return err
	}
	for _, p := range partitions {
		cfg.SetPartitionEnabled(p, enabled)
	}
	if err := a.accessor.SetProperty(ctx, keys.InstanceConfig(participant), cfg); err != nil {
		return fmt.Errorf("enable partitions on %s: %w", participant, err)
	}

	return nil
}

// AddResource creates the ideal state of a resource.
//
// Adding a resource that already exists is a no-op; the stored ideal state is
// left untouched.
//
// Parameters:
//   - ctx: Context for cancellation
//   - cluster: Cluster of the resource
//   - resource: Resource name
//   - spec: Partition count, state model and mode
//
// Returns:
//   - error: types.ErrStateModelNotFound when the state model is not
//     registered, types.ErrInvalidResource for an incomplete spec
func (a *Admin) AddResource(ctx context.Context, cluster types.ClusterID, resource types.ResourceID, spec ResourceSpec) error {
	if spec.Partitions <= 0 || spec.StateModel == "" {
		return fmt.Errorf("add resource %s: %w: partitions and state model are required", resource, types.ErrInvalidResource)
	}
	mode := spec.Mode
	if mode == "" {
		mode = model.RebalanceModeSemiAuto
	}
	if mode == model.RebalanceModeUserDefined && spec.RebalancerName == "" {
		return fmt.Errorf("add resource %s: %w: user-defined mode needs a rebalancer name", resource, types.ErrInvalidResource)
	}

	keys := accessor.NewKeyBuilder(cluster)
	def, err := accessor.GetAs[*model.StateModelDefinition](ctx, a.accessor, keys.StateModelDef(spec.StateModel))
	if err != nil {
		return fmt.Errorf("add resource %s: %w", resource, err)
	}
	if def == nil {
		return fmt.Errorf("add resource %s: %w: %s", resource, types.ErrStateModelNotFound, spec.StateModel)
	}

	is := model.NewIdealState(resource)
	is.SetStateModelDefID(spec.StateModel)
	is.SetRebalanceMode(mode)
	is.SetNumPartitions(spec.Partitions)
	if spec.Replicas != "" {
		is.SetReplicas(spec.Replicas)
	}
	if spec.RebalancerName != "" {
		is.SetRebalancerClassName(spec.RebalancerName)
	}
	for i := range spec.Partitions {
		partition := types.PartitionID(string(resource) + "_" + strconv.Itoa(i))
		if mode == model.RebalanceModeCustomized {
			is.SetPreferenceMap(partition, nil)
		} else {
			is.SetPreferenceList(partition, nil)
		}
	}

	err = a.accessor.CreateProperty(ctx, keys.IdealState(resource), is)
	if errors.Is(err, types.ErrAlreadyExists) {
		a.logger.Debug("resource already exists", "cluster", cluster, "resource", resource)
		return nil
	}
	if err != nil {
		return fmt.Errorf("add resource %s: %w", resource, err)
	}
	a.logger.Info("resource added", "cluster", cluster, "resource", resource, "partitions", spec.Partitions, "mode", mode)

	return nil
}

// DropResource removes the ideal state of a resource. The next pass removes
// its assignment and external view.
//
// Returns:
//   - error: types.ErrNotFound when the resource does not exist
func (a *Admin) DropResource(ctx context.Context, cluster types.ClusterID, resource types.ResourceID) error {
	keys := accessor.NewKeyBuilder(cluster)
	if err := a.accessor.RemoveProperty(ctx, keys.IdealState(resource)); err != nil {
		return fmt.Errorf("drop resource %s: %w", resource, err)
	}
	a.logger.Info("resource dropped", "cluster", cluster, "resource", resource)

	return nil
}

// SetPreferenceMap replaces the preferred participant states of one partition.
//
// Returns:
//   - error: types.ErrNotFound when the resource does not exist
func (a *Admin) SetPreferenceMap(
	ctx context.Context,
	cluster types.ClusterID,
	resource types.ResourceID,
	partition types.PartitionID,
	prefs map[types.ParticipantID]types.State,
) error {
	keys := accessor.NewKeyBuilder(cluster)
	is, err := accessor.GetAs[*model.IdealState](ctx, a.accessor, keys.IdealState(resource))
	if err != nil {
		return fmt.Errorf("set preference map of %s: %w", resource, err)
	}
	if is == nil {
		return fmt.Errorf("set preference map of %s: %w", resource, types.ErrNotFound)
	}
	is.SetPreferenceMap(partition, prefs)
	if err := a.accessor.SetProperty(ctx, keys.IdealState(resource), is); err != nil {
		return fmt.Errorf("set preference map of %s: %w", resource, err)
	}

	return nil
}

// SetConstraint adds or replaces one constraint item.
func (a *Admin) SetConstraint(
	ctx context.Context,
	cluster types.ClusterID,
	typ model.ConstraintType,
	id model.ConstraintID,
	item *model.ConstraintItem,
) error {
	if item == nil {
		return fmt.Errorf("set constraint %s: %w", id, types.ErrInvalidRecord)
	}
	keys := accessor.NewKeyBuilder(cluster)
	cc, err := accessor.GetAs[*model.ClusterConstraints](ctx, a.accessor, keys.Constraint(typ))
	if err != nil {
		return fmt.Errorf("set constraint %s: %w", id, err)
	}
	if cc == nil {
		cc = model.NewClusterConstraints(typ)
	}
	cc.AddConstraintItem(id, item)
	if err := a.accessor.SetProperty(ctx, keys.Constraint(typ), cc); err != nil {
		return fmt.Errorf("set constraint %s: %w", id, err)
	}

	return nil
}

// RemoveConstraint removes one constraint item.
//
// Returns:
//   - error: types.ErrNotFound when the item does not exist
func (a *Admin) RemoveConstraint(ctx context.Context, cluster types.ClusterID, typ model.ConstraintType, id model.ConstraintID) error {
	keys := accessor.NewKeyBuilder(cluster)
	cc, err := accessor.GetAs[*model.ClusterConstraints](ctx, a.accessor, keys.Constraint(typ))
	if err != nil {
		return fmt.Errorf("remove constraint %s: %w", id, err)
	}
	if cc == nil || cc.ConstraintItem(id) == nil {
		return fmt.Errorf("remove constraint %s: %w", id, types.ErrNotFound)
	}
	cc.RemoveConstraintItem(id)
	if err := a.accessor.SetProperty(ctx, keys.Constraint(typ), cc); err != nil {
		return fmt.Errorf("remove constraint %s: %w", id, err)
	}

	return nil
}

// PauseCluster stops controllers from computing assignments for the cluster.
func (a *Admin) PauseCluster(ctx context.Context, cluster types.ClusterID, reason string) error {
	keys := accessor.NewKeyBuilder(cluster)
	if err := a.accessor.SetProperty(ctx, keys.Pause(), model.NewPauseSignal(reason)); err != nil {
		return fmt.Errorf("pause cluster %s: %w", cluster, err)
	}
	a.logger.Info("cluster paused", "cluster", cluster, "reason", reason)

	return nil
}

// ResumeCluster removes the pause signal. Resuming a running cluster is a no-op.
func (a *Admin) ResumeCluster(ctx context.Context, cluster types.ClusterID) error {
	keys := accessor.NewKeyBuilder(cluster)
	if err := a.removeIfPresent(ctx, keys.Pause()); err != nil {
		return fmt.Errorf("resume cluster %s: %w", cluster, err)
	}
	a.logger.Info("cluster resumed", "cluster", cluster)

	return nil
}

// ExternalView returns the observed states of a resource, nil when none was written yet.
func (a *Admin) ExternalView(ctx context.Context, cluster types.ClusterID, resource types.ResourceID) (*model.ExternalView, error) {
	return accessor.GetAs[*model.ExternalView](ctx, a.accessor, accessor.NewKeyBuilder(cluster).ExternalView(resource))
}

// ResourceAssignment returns the last computed assignment of a resource, or nil.
func (a *Admin) ResourceAssignment(ctx context.Context, cluster types.ClusterID, resource types.ResourceID) (*model.ResourceAssignment, error) {
	return accessor.GetAs[*model.ResourceAssignment](ctx, a.accessor, accessor.NewKeyBuilder(cluster).ResourceAssignment(resource))
}

// Participants lists registered participants, sorted.
func (a *Admin) Participants(ctx context.Context, cluster types.ClusterID) ([]types.ParticipantID, error) {
	names, err := a.accessor.ChildNames(ctx, accessor.NewKeyBuilder(cluster).InstanceConfigs())
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	return toIDs[types.ParticipantID](names), nil
}

// LiveParticipants lists participants with a live instance, sorted.
func (a *Admin) LiveParticipants(ctx context.Context, cluster types.ClusterID) ([]types.ParticipantID, error) {
	names, err := a.accessor.ChildNames(ctx, accessor.NewKeyBuilder(cluster).LiveInstances())
	if err != nil {
		return nil, fmt.Errorf("list live participants: %w", err)
	}

	return toIDs[types.ParticipantID](names), nil
}

// Resources lists resources with an ideal state, sorted.
func (a *Admin) Resources(ctx context.Context, cluster types.ClusterID) ([]types.ResourceID, error) {
	names, err := a.accessor.ChildNames(ctx, accessor.NewKeyBuilder(cluster).IdealStates())
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}

	return toIDs[types.ResourceID](names), nil
}

func (a *Admin) instanceConfig(ctx context.Context, keys accessor.KeyBuilder, participant types.ParticipantID) (*model.InstanceConfig, error) {
	cfg, err := accessor.GetAs[*model.InstanceConfig](ctx, a.accessor, keys.InstanceConfig(participant))
	if err != nil {
		return nil, fmt.Errorf("read participant %s: %w", participant, err)
	}
	if cfg == nil {
		return nil, fmt.Errorf("participant %s: %w", participant, types.ErrNotFound)
	}

	return cfg, nil
}

func (a *Admin) removeIfPresent(ctx context.Context, key accessor.PropertyKey) error {
	err := a.accessor.RemoveProperty(ctx, key)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return err
	}

	return nil
}

func toIDs[T ~string](names []string) []T {
	out := make([]T, len(names))
	for i, n := range names {
		out[i] = T(n)
	}

	return out
}
