package rebalancer

import (
	"fmt"

	"github.com/arloliu/helmsman/cluster"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/types"
)

// Rebalancer computes the target assignment of one resource.
//
// Implementations are pure: they read the snapshots they are given and
// return a fresh assignment. One rebalancer is called concurrently for
// different resources within a pass.
type Rebalancer interface {
	// ComputeResourceMapping returns the participant states every partition
	// of the resource should converge to.
	ComputeResourceMapping(resource *cluster.ResourceConfig, c *cluster.Config, cs *cluster.ResourceCurrentState) (*model.ResourceAssignment, error)
}

// Func adapts an ordinary function to the Rebalancer interface.
type Func func(resource *cluster.ResourceConfig, c *cluster.Config, cs *cluster.ResourceCurrentState) (*model.ResourceAssignment, error)

var _ Rebalancer = Func(nil)

// ComputeResourceMapping calls f.
func (f Func) ComputeResourceMapping(resource *cluster.ResourceConfig, c *cluster.Config, cs *cluster.ResourceCurrentState) (*model.ResourceAssignment, error) {
	return f(resource, c, cs)
}

// Mode is the closed set of rebalance modes.
type Mode string

const (
	// ModeCustom verifies a caller-supplied preference map.
	ModeCustom Mode = model.RebalanceModeCustomized

	// ModeSemiAuto places states over a caller-supplied preference list.
	ModeSemiAuto Mode = model.RebalanceModeSemiAuto

	// ModeFullAuto computes both placement and states.
	ModeFullAuto Mode = model.RebalanceModeFullAuto

	// ModeUserDefined delegates to a rebalancer registered by name.
	ModeUserDefined Mode = model.RebalanceModeUserDefined
)

// String returns the REBALANCE_MODE value of the mode.
func (m Mode) String() string {
	return string(m)
}

// ParseMode parses a REBALANCE_MODE value.
//
// An empty value is SEMI_AUTO, the mode an ideal state has when it does not
// name one.
//
// Parameters:
//   - s: Raw mode string
//
// Returns:
//   - Mode: Parsed mode
//   - error: ErrUnsupportedRebalanceMode for unknown values
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case "":
		return ModeSemiAuto, nil
	case ModeCustom, ModeSemiAuto, ModeFullAuto, ModeUserDefined:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", types.ErrUnsupportedRebalanceMode, s)
	}
}

// stateModelOf looks up the state model of a resource.
func stateModelOf(resource *cluster.ResourceConfig, c *cluster.Config) (*model.StateModelDefinition, error) {
	def := c.StateModel(resource.StateModelDefID)
	if def == nil {
		return nil, fmt.Errorf("%w: resource %s uses %q",
			types.ErrStateModelNotFound, resource.ID, resource.StateModelDefID)
	}

	return def, nil
}
