package model

import "github.com/arloliu/helmsman/types"

// Built-in state model names.
const (
	MasterSlaveModel   types.StateModelDefID = "MasterSlave"
	LeaderStandbyModel types.StateModelDefID = "LeaderStandby"
	OnlineOfflineModel types.StateModelDefID = "OnlineOffline"
)

// Built-in state names.
const (
	StateMaster  types.State = "MASTER"
	StateSlave   types.State = "SLAVE"
	StateLeader  types.State = "LEADER"
	StateStandby types.State = "STANDBY"
	StateOnline  types.State = "ONLINE"
	StateOffline types.State = "OFFLINE"
)

// MasterSlave returns the MasterSlave state model: one MASTER and R-1
// SLAVE replicas per partition, starting OFFLINE.
func MasterSlave() *StateModelDefinition {
	return mustBuild(NewStateModelDefinitionBuilder(MasterSlaveModel).
		AddState(StateMaster, 1).
		AddState(StateSlave, 2).
		AddState(StateOffline, 3).
		AddState(types.StateDropped, 4).
		AddState(types.StateError, 5).
		InitialState(StateOffline).
		UpperBound(StateMaster, 1).
		DynamicUpperBound(StateSlave, UpperBoundReplicas).
		AddTransition(StateMaster, StateSlave, 1).
		AddTransition(StateSlave, StateMaster, 2).
		AddTransition(StateOffline, StateSlave, 3).
		AddTransition(StateSlave, StateOffline, 4).
		AddTransition(StateOffline, types.StateDropped, 5))
}

// LeaderStandby returns the LeaderStandby state model: one LEADER per
// partition with STANDBY replicas, starting OFFLINE.
func LeaderStandby() *StateModelDefinition {
	return mustBuild(NewStateModelDefinitionBuilder(LeaderStandbyModel).
		AddState(StateLeader, 1).
		AddState(StateStandby, 2).
		AddState(StateOffline, 3).
		AddState(types.StateDropped, 4).
		AddState(types.StateError, 5).
		InitialState(StateOffline).
		UpperBound(StateLeader, 1).
		DynamicUpperBound(StateStandby, UpperBoundReplicas).
		AddTransition(StateLeader, StateStandby, 1).
		AddTransition(StateStandby, StateLeader, 2).
		AddTransition(StateOffline, StateStandby, 3).
		AddTransition(StateStandby, StateOffline, 4).
		AddTransition(StateOffline, types.StateDropped, 5))
}

// OnlineOffline returns the OnlineOffline state model: R ONLINE replicas
// per partition, starting OFFLINE.
func OnlineOffline() *StateModelDefinition {
	return mustBuild(NewStateModelDefinitionBuilder(OnlineOfflineModel).
		AddState(StateOnline, 1).
		AddState(StateOffline, 2).
		AddState(types.StateDropped, 3).
		AddState(types.StateError, 4).
		InitialState(StateOffline).
		DynamicUpperBound(StateOnline, UpperBoundReplicas).
		AddTransition(StateOffline, StateOnline, 1).
		AddTransition(StateOnline, StateOffline, 2).
		AddTransition(StateOffline, types.StateDropped, 3))
}

// DefaultStateModels returns fresh copies of every built-in state model.
func DefaultStateModels() []*StateModelDefinition {
	return []*StateModelDefinition{MasterSlave(), LeaderStandby(), OnlineOffline()}
}

func mustBuild(b *StateModelDefinitionBuilder) *StateModelDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}

	return def
}
