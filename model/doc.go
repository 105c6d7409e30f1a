// Package model defines the record-backed properties stored in a cluster.
//
// Each property wraps a types.Record and exposes typed accessors for the
// fields it understands:
//
//   - StateModelDefinition: states, their priority and replica bounds, and the transition graph
//   - ClusterConstraints: scoped state bounds and in-flight transition caps
//   - IdealState: the desired placement and rebalance mode of a resource
//   - CurrentState: the states a participant reports for one session
//   - ExternalView: the observed placement of a resource, published by the controller
//   - LiveInstance, InstanceConfig: participant liveness and configuration
//   - Message: a state transition request addressed to a participant
//   - ResourceAssignment: the computed target placement of a resource
//   - PauseSignal: presence pauses reconciliation of the cluster
//
// Properties are decoded with the *FromRecord constructors and encoded by
// calling Record. Built-in state models are available from
// DefaultStateModels.
package model
