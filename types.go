package helmsman

import "github.com/arloliu/helmsman/types"

// Re-export types from the types package.
//
// Internal packages depend on types rather than on the root package, which
// keeps the import graph acyclic while users can still write helmsman.State,
// helmsman.Logger and so on.
type (
	ClusterID       = types.ClusterID
	ResourceID      = types.ResourceID
	ParticipantID   = types.ParticipantID
	PartitionID     = types.PartitionID
	StateModelDefID = types.StateModelDefID
	SessionID       = types.SessionID
	State           = types.State
	Transition      = types.Transition
	Record          = types.Record
	ControllerState = types.ControllerState
)

// Re-export interfaces from the types package for convenience.
type (
	MetricsCollector = types.MetricsCollector
	Logger           = types.Logger
	Hooks            = types.Hooks
)

// Re-export ControllerState constants from the types package.
const (
	ControllerInit        = types.ControllerInit
	ControllerRunning     = types.ControllerRunning
	ControllerReconciling = types.ControllerReconciling
	ControllerPaused      = types.ControllerPaused
	ControllerStopped     = types.ControllerStopped
)

// Re-export reserved replica states from the types package.
const (
	StateDropped = types.StateDropped
	StateError   = types.StateError
)
