// Package cluster holds the per-pass, in-memory view of a cluster.
//
// A reconciliation pass loads the store into a Config (resources,
// participants, constraints, state models) and a ResourceCurrentState
// (observed and in-flight replica states). Both are built once, read by
// every rebalancer of the pass, and discarded afterwards.
//
// Config also resolves scoped constraints:
//
//	bound := cfg.StateUpperBoundConstraint(types.ResourceScope("TestDB"), "MasterSlave", "MASTER")
//	limit := cfg.TransitionConstraint(types.ParticipantScope("p1"), "MasterSlave",
//	    types.Transition{From: "OFFLINE", To: "SLAVE"})
package cluster
