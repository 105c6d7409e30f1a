package admin

import (
	"context"
	"testing"

	"github.com/arloliu/helmsman/accessor"
	"github.com/arloliu/helmsman/internal/logging"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/pipeline"
	"github.com/arloliu/helmsman/store/memory"
	"github.com/arloliu/helmsman/types"
	"github.com/stretchr/testify/require"
)

const cluster types.ClusterID = "c1"

func newAdmin(t *testing.T) (*Admin, *accessor.DataAccessor) {
	t.Helper()
	da := accessor.New(memory.New())
	adm := New(da, WithLogger(logging.NewTest(t)))
	require.NoError(t, adm.AddCluster(context.Background(), cluster))
	require.NoError(t, adm.AddStateModelDef(context.Background(), cluster, model.MasterSlave()))

	return adm, da
}

func TestAddCluster(t *testing.T) {
	adm, _ := newAdmin(t)

	err := adm.AddCluster(context.Background(), cluster)
	require.ErrorIs(t, err, types.ErrAlreadyExists)
	require.NoError(t, adm.AddCluster(context.Background(), "c2"))
}

func TestAddStateModelDef(t *testing.T) {
	adm, da := newAdmin(t)
	ctx := context.Background()

	require.ErrorIs(t, adm.AddStateModelDef(ctx, cluster, model.MasterSlave()), types.ErrAlreadyExists)
	require.ErrorIs(t, adm.AddStateModelDef(ctx, cluster, nil), types.ErrInvalidStateModel)

	require.NoError(t, adm.AddStateModelDef(ctx, cluster, model.OnlineOffline()))
	names, err := da.ChildNames(ctx, accessor.NewKeyBuilder(cluster).StateModelDefs())
	require.NoError(t, err)
	require.Equal(t, []string{"MasterSlave", "OnlineOffline"}, names)
}

func TestParticipants(t *testing.T) {
	ctx := context.Background()
	keys := accessor.NewKeyBuilder(cluster)

	t.Run("add and list", func(t *testing.T) {
		adm, _ := newAdmin(t)
		require.NoError(t, adm.AddParticipant(ctx, cluster, model.NewInstanceConfig("p2")))
		require.NoError(t, adm.AddParticipant(ctx, cluster, model.NewInstanceConfig("p1")))
		require.ErrorIs(t, adm.AddParticipant(ctx, cluster, model.NewInstanceConfig("p1")), types.ErrAlreadyExists)

		ids, err := adm.Participants(ctx, cluster)
		require.NoError(t, err)
		require.Equal(t, []types.ParticipantID{"p1", "p2"}, ids)
	})

	t.Run("enable", func(t *testing.T) {
		adm, da := newAdmin(t)
		require.ErrorIs(t, adm.EnableParticipant(ctx, cluster, "p1", false), types.ErrNotFound)

		require.NoError(t, adm.AddParticipant(ctx, cluster, model.NewInstanceConfig("p1")))
		require.NoError(t, adm.EnableParticipant(ctx, cluster, "p1", false))

		cfg, err := accessor.GetAs[*model.InstanceConfig](ctx, da, keys.InstanceConfig("p1"))
		require.NoError(t, err)
		require.False(t, cfg.IsEnabled())
	})

	t.Run("enable partitions", func(t *testing.T) {
		adm, da := newAdmin(t)
		require.ErrorIs(t, adm.EnablePartitions(ctx, cluster, "p1", []types.PartitionID{"TestDB_0"}, false), types.ErrNotFound)

		require.NoError(t, adm.AddParticipant(ctx, cluster, model.NewInstanceConfig("p1")))
		require.NoError(t, adm.EnablePartitions(ctx, cluster, "p1", []types.PartitionID{"TestDB_0", "TestDB_1"}, false))
		require.NoError(t, adm.EnablePartitions(ctx, cluster, "p1", []types.PartitionID{"TestDB_1"}, true))

		cfg, err := accessor.GetAs[*model.InstanceConfig](ctx, da, keys.InstanceConfig("p1"))
		require.NoError(t, err)
		require.True(t, cfg.IsPartitionDisabled("TestDB_0"))
		require.False(t, cfg.IsPartitionDisabled("TestDB_1"))
	})

	t.Run("drop", func(t *testing.T) {
		adm, da := newAdmin(t)
		require.ErrorIs(t, adm.DropParticipant(ctx, cluster, "p1"), types.ErrNotFound)

		require.NoError(t, adm.AddParticipant(ctx, cluster, model.NewInstanceConfig("p1")))
		cs := model.NewCurrentState("TestDB")
		cs.SetState("TestDB_0", model.StateMaster)
		require.NoError(t, da.SetProperty(ctx, keys.CurrentState("p1", "s1", "TestDB"), cs))
		require.NoError(t, da.CreateProperty(ctx, keys.LiveInstance("p1"), model.NewLiveInstance("p1", "s1")))

		require.ErrorIs(t, adm.DropParticipant(ctx, cluster, "p1"), types.ErrParticipantLive)

		require.NoError(t, da.RemoveProperty(ctx, keys.LiveInstance("p1")))
		require.NoError(t, adm.DropParticipant(ctx, cluster, "p1"))

		ids, err := adm.Participants(ctx, cluster)
		require.NoError(t, err)
		require.Empty(t, ids)
		got, err := accessor.GetAs[*model.CurrentState](ctx, da, keys.CurrentState("p1", "s1", "TestDB"))
		require.NoError(t, err)
		require.Nil(t, got)
	})
}

func TestAddResource(t *testing.T) {
	ctx := context.Background()
	keys := accessor.NewKeyBuilder(cluster)

	t.Run("missing state model", func(t *testing.T) {
		adm, _ := newAdmin(t)
		err := adm.AddResource(ctx, cluster, "TestDB", ResourceSpec{Partitions: 2, StateModel: "Unknown"})
		require.ErrorIs(t, err, types.ErrStateModelNotFound)
	})

	t.Run("invalid spec", func(t *testing.T) {
		adm, _ := newAdmin(t)
		require.ErrorIs(t, adm.AddResource(ctx, cluster, "TestDB", ResourceSpec{StateModel: model.MasterSlaveModel}), types.ErrInvalidResource)
		err := adm.AddResource(ctx, cluster, "TestDB", ResourceSpec{
			Partitions: 1,
			StateModel: model.MasterSlaveModel,
			Mode:       model.RebalanceModeUserDefined,
		})
		require.ErrorIs(t, err, types.ErrInvalidResource)
	})

	t.Run("customized", func(t *testing.T) {
		adm, da := newAdmin(t)
		require.NoError(t, adm.AddResource(ctx, cluster, "TestDB", ResourceSpec{
			Partitions: 3,
			StateModel: model.MasterSlaveModel,
			Mode:       model.RebalanceModeCustomized,
			Replicas:   "2",
		}))

		is, err := accessor.GetAs[*model.IdealState](ctx, da, keys.IdealState("TestDB"))
		require.NoError(t, err)
		require.Equal(t, model.RebalanceModeCustomized, is.RebalanceMode())
		require.Equal(t, model.MasterSlaveModel, is.StateModelDefID())
		require.Equal(t, 3, is.NumPartitions())
		require.Equal(t, "2", is.Replicas())
		require.Equal(t, []types.PartitionID{"TestDB_0", "TestDB_1", "TestDB_2"}, is.PartitionSet())
	})

	t.Run("default mode", func(t *testing.T) {
		adm, da := newAdmin(t)
		require.NoError(t, adm.AddResource(ctx, cluster, "TestDB", ResourceSpec{Partitions: 1, StateModel: model.MasterSlaveModel}))

		is, err := accessor.GetAs[*model.IdealState](ctx, da, keys.IdealState("TestDB"))
		require.NoError(t, err)
		require.Equal(t, model.RebalanceModeSemiAuto, is.RebalanceMode())
	})

	t.Run("re-add is a no-op", func(t *testing.T) {
		adm, da := newAdmin(t)
		spec := ResourceSpec{Partitions: 1, StateModel: model.MasterSlaveModel, Mode: model.RebalanceModeCustomized}
		require.NoError(t, adm.AddResource(ctx, cluster, "TestDB", spec))
		require.NoError(t, adm.SetPreferenceMap(ctx, cluster, "TestDB", "TestDB_0",
			map[types.ParticipantID]types.State{"p1": model.StateMaster}))

		spec.Partitions = 4
		require.NoError(t, adm.AddResource(ctx, cluster, "TestDB", spec))

		is, err := accessor.GetAs[*model.IdealState](ctx, da, keys.IdealState("TestDB"))
		require.NoError(t, err)
		require.Equal(t, 1, is.NumPartitions())
		require.Equal(t, map[types.ParticipantID]types.State{"p1": model.StateMaster}, is.PreferenceMap("TestDB_0"))

		ids, err := adm.Resources(ctx, cluster)
		require.NoError(t, err)
		require.Equal(t, []types.ResourceID{"TestDB"}, ids)
	})
}

func TestDropResource(t *testing.T) {
	adm, _ := newAdmin(t)
	ctx := context.Background()

	require.ErrorIs(t, adm.DropResource(ctx, cluster, "TestDB"), types.ErrNotFound)

	require.NoError(t, adm.AddResource(ctx, cluster, "TestDB", ResourceSpec{Partitions: 1, StateModel: model.MasterSlaveModel}))
	require.NoError(t, adm.DropResource(ctx, cluster, "TestDB"))

	ids, err := adm.Resources(ctx, cluster)
	require.NoError(t, err)
	require.Empty(t, ids)
}

func TestDropResource_NextPassDropsReplicas(t *testing.T) {
	adm, da := newAdmin(t)
	ctx := context.Background()
	keys := accessor.NewKeyBuilder(cluster)

	require.NoError(t, adm.AddParticipant(ctx, cluster, model.NewInstanceConfig("P1")))
	require.NoError(t, da.CreateProperty(ctx, keys.LiveInstance("P1"), model.NewLiveInstance("P1", "s1")))
	require.NoError(t, adm.AddResource(ctx, cluster, "TestDB", ResourceSpec{
		Partitions: 1,
		StateModel: model.MasterSlaveModel,
		Mode:       model.RebalanceModeCustomized,
	}))
	require.NoError(t, adm.SetPreferenceMap(ctx, cluster, "TestDB", "TestDB_0", map[types.ParticipantID]types.State{"P1": model.StateMaster}))

	cs := model.NewCurrentState("TestDB")
	cs.SetSessionID("s1")
	cs.SetStateModelDefID(model.MasterSlaveModel)
	cs.SetState("TestDB_0", model.StateMaster)
	require.NoError(t, da.SetProperty(ctx, keys.CurrentState("P1", "s1", "TestDB"), cs))

	p := pipeline.New(da, cluster, pipeline.WithLogger(logging.NewTest(t)))
	_, err := p.Run(ctx)
	require.NoError(t, err)

	require.NoError(t, adm.DropResource(ctx, cluster, "TestDB"))
	_, err = p.Run(ctx)
	require.NoError(t, err)

	ra, err := adm.ResourceAssignment(ctx, cluster, "TestDB")
	require.NoError(t, err)
	require.NotNil(t, ra)
	require.Equal(t, map[types.ParticipantID]types.State{"P1": types.StateDropped}, ra.ReplicaMap("TestDB_0"))
}

func TestSetPreferenceMapMissingResource(t *testing.T) {
	adm, _ := newAdmin(t)

	err := adm.SetPreferenceMap(context.Background(), cluster, "TestDB", "TestDB_0", nil)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func TestConstraints(t *testing.T) {
	adm, da := newAdmin(t)
	ctx := context.Background()
	keys := accessor.NewKeyBuilder(cluster)

	id := model.ConstraintIDFor(types.ClusterScope(cluster), model.MasterSlaveModel, model.StateMaster)
	item := model.NewConstraintItem(map[string]string{
		"STATE_MODEL":      string(model.MasterSlaveModel),
		"STATE":            string(model.StateMaster),
		"CONSTRAINT_VALUE": "1",
	})

	require.ErrorIs(t, adm.RemoveConstraint(ctx, cluster, model.StateConstraint, id), types.ErrNotFound)
	require.ErrorIs(t, adm.SetConstraint(ctx, cluster, model.StateConstraint, id, nil), types.ErrInvalidRecord)
	require.NoError(t, adm.SetConstraint(ctx, cluster, model.StateConstraint, id, item))

	cc, err := accessor.GetAs[*model.ClusterConstraints](ctx, da, keys.Constraint(model.StateConstraint))
	require.NoError(t, err)
	require.NotNil(t, cc.ConstraintItem(id))
	require.Equal(t, "1", cc.ConstraintItem(id).Value())

	require.NoError(t, adm.RemoveConstraint(ctx, cluster, model.StateConstraint, id))
	cc, err = accessor.GetAs[*model.ClusterConstraints](ctx, da, keys.Constraint(model.StateConstraint))
	require.NoError(t, err)
	require.Empty(t, cc.Items())
}

func TestPauseResume(t *testing.T) {
	adm, da := newAdmin(t)
	ctx := context.Background()
	keys := accessor.NewKeyBuilder(cluster)

	require.NoError(t, adm.ResumeCluster(ctx, cluster))
	require.NoError(t, adm.PauseCluster(ctx, cluster, "maintenance"))

	pause, err := accessor.GetAs[*model.PauseSignal](ctx, da, keys.Pause())
	require.NoError(t, err)
	require.Equal(t, "maintenance", pause.Reason())

	require.NoError(t, adm.ResumeCluster(ctx, cluster))
	pause, err = accessor.GetAs[*model.PauseSignal](ctx, da, keys.Pause())
	require.NoError(t, err)
	require.Nil(t, pause)
}

func TestExternalViewMissing(t *testing.T) {
	adm, _ := newAdmin(t)

	ev, err := adm.ExternalView(context.Background(), cluster, "TestDB")
	require.NoError(t, err)
	require.Nil(t, ev)

	ra, err := adm.ResourceAssignment(context.Background(), cluster, "TestDB")
	require.NoError(t, err)
	require.Nil(t, ra)
}

func TestLiveParticipants(t *testing.T) {
	adm, da := newAdmin(t)
	ctx := context.Background()
	keys := accessor.NewKeyBuilder(cluster)

	require.NoError(t, da.CreateProperty(ctx, keys.LiveInstance("p2"), model.NewLiveInstance("p2", "s2")))
	require.NoError(t, da.CreateProperty(ctx, keys.LiveInstance("p1"), model.NewLiveInstance("p1", "s1")))

	ids, err := adm.LiveParticipants(ctx, cluster)
	require.NoError(t, err)
	require.Equal(t, []types.ParticipantID{"p1", "p2"}, ids)
}
