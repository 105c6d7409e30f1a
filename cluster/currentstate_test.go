package cluster

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/types"
)

func TestResourceCurrentState(t *testing.T) {
	cs := NewResourceCurrentState()
	cs.SetCurrentState("TestDB", "TestDB_1", "p1", model.StateSlave)
	cs.SetCurrentState("TestDB", "TestDB_0", "p1", model.StateMaster)
	cs.SetCurrentState("TestDB", "TestDB_0", "p2", model.StateOffline)
	cs.SetCurrentState("TestDB", "TestDB_0", "p2", model.StateSlave)
	cs.SetPendingState("TestDB", "TestDB_0", "p3", model.StateSlave)

	t.Run("upserts", func(t *testing.T) {
		state, ok := cs.CurrentState("TestDB", "TestDB_0", "p2")
		require.True(t, ok)
		require.Equal(t, model.StateSlave, state)

		require.Equal(t, map[types.ParticipantID]types.State{
			"p1": model.StateMaster,
			"p2": model.StateSlave,
		}, cs.CurrentStateMap("TestDB", "TestDB_0"))
	})

	t.Run("pending is separate", func(t *testing.T) {
		_, ok := cs.CurrentState("TestDB", "TestDB_0", "p3")
		require.False(t, ok)

		state, ok := cs.PendingState("TestDB", "TestDB_0", "p3")
		require.True(t, ok)
		require.Equal(t, model.StateSlave, state)
		require.Len(t, cs.PendingStateMap("TestDB", "TestDB_0"), 1)
	})

	t.Run("unknown keys yield empty maps", func(t *testing.T) {
		m := cs.CurrentStateMap("Unknown", "Unknown_0")
		require.NotNil(t, m)
		require.Empty(t, m)

		m = cs.PendingStateMap("TestDB", "TestDB_1")
		require.NotNil(t, m)
		require.Empty(t, m)

		parts := cs.CurrentStateMappedPartitions("Unknown")
		require.NotNil(t, parts)
		require.Empty(t, parts)
	})

	t.Run("returned maps are copies", func(t *testing.T) {
		m := cs.CurrentStateMap("TestDB", "TestDB_0")
		m["p9"] = model.StateMaster
		require.Len(t, cs.CurrentStateMap("TestDB", "TestDB_0"), 2)
	})

	t.Run("mapped partitions", func(t *testing.T) {
		require.Equal(t, []types.PartitionID{"TestDB_0", "TestDB_1"}, cs.CurrentStateMappedPartitions("TestDB"))
	})

	t.Run("resource metadata", func(t *testing.T) {
		require.Equal(t, 0, cs.BucketSize("TestDB"))
		cs.SetBucketSize("TestDB", 4)
		require.Equal(t, 4, cs.BucketSize("TestDB"))

		_, ok := cs.ResourceStateModelDef("TestDB")
		require.False(t, ok)
		cs.SetResourceStateModelDef("TestDB", model.MasterSlaveModel)
		cs.SetResourceStateModelDef("EmptyDB", model.OnlineOfflineModel)
		smd, ok := cs.ResourceStateModelDef("TestDB")
		require.True(t, ok)
		require.Equal(t, model.MasterSlaveModel, smd)

		require.Equal(t, []types.ResourceID{"EmptyDB", "TestDB"}, cs.Resources())
	})
}

func TestNewResourceConfig(t *testing.T) {
	t.Run("explicit partitions", func(t *testing.T) {
		is := model.NewIdealState("TestDB")
		is.SetNumPartitions(8)
		is.SetPreferenceMap("TestDB_3", map[types.ParticipantID]types.State{"p1": model.StateMaster})
		is.SetBucketSize(2)
		is.SetBatchMessageMode(true)
		is.Record().SetSimpleField("OFFLINE-SLAVE_TIMEOUT", "100")

		rc := NewResourceConfig(is)
		require.Equal(t, []types.PartitionID{"TestDB_3"}, rc.PartitionSet())
		require.Equal(t, 2, rc.BucketSize)
		require.True(t, rc.BatchMessageMode)
		require.Equal(t, map[string]int{"OFFLINE-SLAVE_TIMEOUT": 100}, rc.TransitionTimeouts)
		require.Equal(t, model.StateMaster, rc.PreferenceMap("TestDB_3")["p1"])
	})

	t.Run("partition count", func(t *testing.T) {
		is := model.NewIdealState("TestDB")
		is.SetNumPartitions(3)

		rc := NewResourceConfig(is)
		require.Equal(t, []types.PartitionID{"TestDB_0", "TestDB_1", "TestDB_2"}, rc.PartitionSet())
		require.Nil(t, rc.PreferenceMap("TestDB_0"))
	})

	t.Run("no partitions", func(t *testing.T) {
		rc := NewResourceConfig(model.NewIdealState("TestDB"))
		require.Empty(t, rc.PartitionSet())
	})

	t.Run("observed partitions appended", func(t *testing.T) {
		is := model.NewIdealState("TestDB")
		is.SetPreferenceMap("TestDB_100", map[types.ParticipantID]types.State{"p1": model.StateMaster})

		rc := NewResourceConfig(is)
		rc.AddObservedPartitions([]types.PartitionID{"TestDB_0", "TestDB_100"})
		require.True(t, rc.HasIdealState())
		require.Equal(t, []types.PartitionID{"TestDB_100", "TestDB_0"}, rc.PartitionSet())
		require.Nil(t, rc.PreferenceMap("TestDB_0"))
	})
}

func TestNewRemovedResourceConfig(t *testing.T) {
	partitions := []types.PartitionID{"TestDB_0", "TestDB_1"}
	r := NewRemovedResource("TestDB", model.MasterSlaveModel, partitions, nil)
	partitions[0] = "changed"

	require.Equal(t, types.ResourceID("TestDB"), r.ID())
	require.False(t, r.Config.HasIdealState())
	require.Equal(t, model.MasterSlaveModel, r.Config.StateModelDefID)
	require.Equal(t, []types.PartitionID{"TestDB_0", "TestDB_1"}, r.Config.PartitionSet())
	require.Nil(t, r.Config.PreferenceMap("TestDB_0"))
	require.Empty(t, r.Config.RebalanceMode())
}

func TestParticipant(t *testing.T) {
	p := &Participant{ID: "p1"}
	require.False(t, p.IsLive())
	require.True(t, p.IsEnabled())
	require.False(t, p.IsDisabledFor("TestDB_0"))
	require.Empty(t, p.SessionID())

	cfg := model.NewInstanceConfig("p1")
	cfg.SetPartitionEnabled("TestDB_0", false)
	p = &Participant{ID: "p1", Config: cfg, Live: model.NewLiveInstance("p1", "s1")}
	require.True(t, p.IsLive())
	require.Equal(t, types.SessionID("s1"), p.SessionID())
	require.True(t, p.IsDisabledFor("TestDB_0"))
	require.False(t, p.IsDisabledFor("TestDB_1"))

	cfg.SetEnabled(false)
	require.True(t, p.IsDisabledFor("TestDB_1"))
}
