package types

import (
	"fmt"
	"strings"
)

// State is the name of one state of a state model, such as "MASTER" or "OFFLINE".
//
// States are compared by name. DROPPED and ERROR are reserved by the
// framework; every state model additionally declares its own initial state.
type State string

const (
	// StateDropped marks a replica that is no longer served by a participant.
	StateDropped State = "DROPPED"

	// StateError marks a replica whose participant failed and cannot serve it.
	StateError State = "ERROR"
)

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// IsError reports whether s is the reserved ERROR state.
func (s State) IsError() bool {
	return s == StateError
}

// Transition is a move of a replica from one state to another.
type Transition struct {
	From State
	To   State
}

// String renders the transition as "FROM-TO".
func (t Transition) String() string {
	return string(t.From) + "-" + string(t.To)
}

// ParseTransition parses a "FROM-TO" string.
//
// Parameters:
//   - s: Transition string, for example "OFFLINE-SLAVE"
//
// Returns:
//   - Transition: Parsed transition
//   - error: ErrInvalidTransition if s is not of the form "FROM-TO"
func ParseTransition(s string) (Transition, error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok || from == "" || to == "" {
		return Transition{}, fmt.Errorf("%w: %q", ErrInvalidTransition, s)
	}

	return Transition{From: State(from), To: State(to)}, nil
}

// ControllerState represents the controller lifecycle state.
//
// States follow a defined progression during normal operation:
//
//	ControllerInit → ControllerRunning ⇄ ControllerReconciling
//
// A paused cluster moves the controller to ControllerPaused until resumed.
// ControllerStopped is terminal.
type ControllerState int

const (
	// ControllerInit is the initial state before Start.
	ControllerInit ControllerState = iota

	// ControllerRunning indicates the controller is idle between passes.
	ControllerRunning

	// ControllerReconciling indicates a reconciliation pass is in progress.
	ControllerReconciling

	// ControllerPaused indicates the cluster is paused and passes compute nothing.
	ControllerPaused

	// ControllerStopped indicates the controller has shut down.
	ControllerStopped
)

// String returns the string representation of the controller state.
func (s ControllerState) String() string {
	switch s {
	case ControllerInit:
		return "Init"
	case ControllerRunning:
		return "Running"
	case ControllerReconciling:
		return "Reconciling"
	case ControllerPaused:
		return "Paused"
	case ControllerStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
