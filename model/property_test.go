package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/helmsman/types"
)

func TestIdealState(t *testing.T) {
	is := NewIdealState("TestDB")
	is.SetRebalanceMode(RebalanceModeCustomized)
	is.SetStateModelDefID(MasterSlaveModel)
	is.SetNumPartitions(3)
	is.SetBucketSize(2)
	is.SetBatchMessageMode(true)
	is.SetPreferenceMap("TestDB_1", map[types.ParticipantID]types.State{"p1": StateSlave})
	is.SetPreferenceMap("TestDB_0", map[types.ParticipantID]types.State{"p1": StateMaster, "p2": StateSlave})
	is.SetPreferenceList("TestDB_2", []types.ParticipantID{"p2", "p1"})
	is.Record().SetSimpleField("OFFLINE-SLAVE_TIMEOUT", "3000")
	is.Record().SetSimpleField("SLAVE-MASTER_TIMEOUT", "soon")

	require.Equal(t, types.ResourceID("TestDB"), is.ResourceID())
	require.Equal(t, RebalanceModeCustomized, is.RebalanceMode())
	require.Equal(t, MasterSlaveModel, is.StateModelDefID())
	require.Equal(t, 3, is.NumPartitions())
	require.Equal(t, 2, is.BucketSize())
	require.True(t, is.BatchMessageMode())
	require.True(t, is.IsEnabled())
	require.Equal(t, []types.PartitionID{"TestDB_0", "TestDB_1", "TestDB_2"}, is.PartitionSet())
	require.Equal(t, StateMaster, is.PreferenceMap("TestDB_0")["p1"])
	require.Nil(t, is.PreferenceMap("TestDB_9"))
	require.Equal(t, []types.ParticipantID{"p2", "p1"}, is.PreferenceList("TestDB_2"))
	require.Nil(t, is.PreferenceList("TestDB_0"))
	require.Equal(t, map[string]int{"OFFLINE-SLAVE_TIMEOUT": 3000}, is.TransitionTimeouts())

	is.SetEnabled(false)
	require.False(t, is.IsEnabled())

	_, err := IdealStateFromRecord(nil)
	require.ErrorIs(t, err, types.ErrInvalidRecord)
}

func TestCurrentState(t *testing.T) {
	cs := NewCurrentState("TestDB")
	cs.SetSessionID("s1")
	cs.SetStateModelDefID(MasterSlaveModel)
	cs.SetState("TestDB_0", StateMaster)
	cs.SetState("TestDB_1", StateSlave)
	cs.Record().SetMapFieldEntry("TestDB_2", "INFO", "no state")

	require.Equal(t, types.SessionID("s1"), cs.SessionID())
	require.Equal(t, MasterSlaveModel, cs.StateModelDefID())

	state, ok := cs.State("TestDB_0")
	require.True(t, ok)
	require.Equal(t, StateMaster, state)

	_, ok = cs.State("TestDB_2")
	require.False(t, ok)

	require.Equal(t, map[types.PartitionID]types.State{
		"TestDB_0": StateMaster,
		"TestDB_1": StateSlave,
	}, cs.PartitionStateMap())
}

func TestExternalView(t *testing.T) {
	ev := NewExternalView("TestDB")
	ev.SetState("TestDB_1", "p1", StateSlave)
	ev.SetStateMap("TestDB_0", map[types.ParticipantID]types.State{"p1": StateMaster, "p2": StateSlave})

	require.Equal(t, []types.PartitionID{"TestDB_0", "TestDB_1"}, ev.PartitionSet())
	require.Equal(t, StateSlave, ev.StateMap("TestDB_0")["p2"])
	require.Nil(t, ev.StateMap("TestDB_5"))
}

func TestResourceAssignment(t *testing.T) {
	a := NewResourceAssignment("TestDB")
	a.AddReplicaMap("TestDB_1", map[types.ParticipantID]types.State{})
	a.AddReplicaMap("TestDB_0", map[types.ParticipantID]types.State{"p1": StateMaster})

	require.Equal(t, []types.PartitionID{"TestDB_0", "TestDB_1"}, a.MappedPartitions())
	require.Empty(t, a.ReplicaMap("TestDB_1"))
	require.NotNil(t, a.ReplicaMap("TestDB_9"))

	b := NewResourceAssignment("TestDB")
	b.AddReplicaMap("TestDB_0", map[types.ParticipantID]types.State{"p1": StateMaster})
	require.False(t, a.Equal(b))

	b.AddReplicaMap("TestDB_1", nil)
	require.True(t, a.Equal(b))
}

func TestInstanceConfig(t *testing.T) {
	cfg := NewInstanceConfig("p1")
	require.True(t, cfg.IsEnabled())
	require.Empty(t, cfg.DisabledPartitions())

	cfg.SetPartitionEnabled("TestDB_0", false)
	cfg.SetPartitionEnabled("TestDB_0", false)
	cfg.SetPartitionEnabled("TestDB_1", false)
	require.Equal(t, []types.PartitionID{"TestDB_0", "TestDB_1"}, cfg.DisabledPartitions())
	require.True(t, cfg.IsPartitionDisabled("TestDB_0"))

	cfg.SetPartitionEnabled("TestDB_0", true)
	require.False(t, cfg.IsPartitionDisabled("TestDB_0"))
	require.Equal(t, []types.PartitionID{"TestDB_1"}, cfg.DisabledPartitions())

	cfg.SetEnabled(false)
	require.False(t, cfg.IsEnabled())

	cfg.SetHost("10.0.0.1")
	cfg.SetPort(12000)
	require.Equal(t, "10.0.0.1", cfg.Host())
	require.Equal(t, 12000, cfg.Port())
}

func TestLiveInstance(t *testing.T) {
	li := NewLiveInstance("p1", "s1")
	li.SetProcessName("42@host")

	require.Equal(t, types.ParticipantID("p1"), li.ParticipantID())
	require.Equal(t, types.SessionID("s1"), li.SessionID())
	require.Equal(t, "42@host", li.ProcessName())
}

func TestStateTransitionMessage(t *testing.T) {
	before := time.Now().Add(-time.Second)
	msg := NewStateTransitionMessage("m1", "TestDB", "TestDB_0", "p1", "s1",
		types.Transition{From: StateOffline, To: StateSlave})

	require.Equal(t, "m1", msg.ID())
	require.True(t, msg.IsStateTransition())
	require.Equal(t, MessageStateNew, msg.State())
	require.Equal(t, types.ResourceID("TestDB"), msg.ResourceID())
	require.Equal(t, types.PartitionID("TestDB_0"), msg.PartitionID())
	require.Equal(t, types.ParticipantID("p1"), msg.TargetName())
	require.Equal(t, types.SessionID("s1"), msg.TargetSessionID())
	require.Equal(t, StateOffline, msg.FromState())
	require.Equal(t, StateSlave, msg.ToState())
	require.True(t, msg.CreateTime().After(before))

	msg.SetState(MessageStateCompleted)
	require.Equal(t, MessageStateCompleted, msg.State())
}

func TestPauseSignal(t *testing.T) {
	p := NewPauseSignal("maintenance")
	require.Equal(t, PauseID, p.Record().ID)
	require.Equal(t, "maintenance", p.Reason())
}
