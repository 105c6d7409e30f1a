package rebalancer

import (
	"fmt"

	"github.com/arloliu/helmsman/cluster"
	"github.com/arloliu/helmsman/model"
	"github.com/arloliu/helmsman/types"
)

// Table dispatches a resource to the rebalancer of its mode.
//
// A Table is built once and read concurrently; it is not modified after
// NewTable returns.
type Table struct {
	modes       map[Mode]Rebalancer
	userDefined map[string]Rebalancer
}

// TableOption configures a Table.
type TableOption func(*Table)

// WithModeRebalancer serves a mode with r, replacing any previous registration.
//
// Parameters:
//   - mode: Rebalance mode
//   - r: Rebalancer serving the mode
//
// Returns:
//   - TableOption: Option for NewTable
func WithModeRebalancer(mode Mode, r Rebalancer) TableOption {
	return func(t *Table) {
		t.modes[mode] = r
	}
}

// WithUserDefined registers a USER_DEFINED rebalancer under the name an
// ideal state puts in REBALANCER_CLASS_NAME.
//
// Parameters:
//   - name: Rebalancer name
//   - r: Rebalancer
//
// Returns:
//   - TableOption: Option for NewTable
func WithUserDefined(name string, r Rebalancer) TableOption {
	return func(t *Table) {
		t.userDefined[name] = r
	}
}

// NewTable creates a dispatch table. CUSTOMIZED is served by Custom unless
// an option replaces it; SEMI_AUTO and FULL_AUTO have no built-in rebalancer.
//
// Parameters:
//   - opts: Registrations
//
// Returns:
//   - *Table: Dispatch table
//
// Example:
//
//	table := rebalancer.NewTable(
//	    rebalancer.WithUserDefined("evenly", myRebalancer),
//	)
//	assignment, err := table.ComputeResourceMapping(resource, snapshot, currentState)
func NewTable(opts ...TableOption) *Table {
	t := &Table{
		modes:       map[Mode]Rebalancer{ModeCustom: NewCustom()},
		userDefined: make(map[string]Rebalancer),
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Lookup returns the rebalancer serving a resource.
//
// Parameters:
//   - resource: Resource config
//
// Returns:
//   - Rebalancer: Rebalancer for the resource's mode
//   - error: ErrUnsupportedRebalanceMode for an unknown mode, an unregistered
//     mode or an unregistered user-defined name
func (t *Table) Lookup(resource *cluster.ResourceConfig) (Rebalancer, error) {
	// Leftover replicas of a removed resource are dropped by verifying an
	// empty preference map.
	if !resource.HasIdealState() {
		if r, ok := t.modes[ModeCustom]; ok {
			return r, nil
		}

		return NewCustom(), nil
	}

	mode, err := ParseMode(resource.RebalanceMode())
	if err != nil {
		return nil, fmt.Errorf("resource %s: %w", resource.ID, err)
	}

	if mode == ModeUserDefined {
		name := resource.RebalancerName()
		r, ok := t.userDefined[name]
		if !ok {
			return nil, fmt.Errorf("%w: resource %s names unregistered rebalancer %q",
				types.ErrUnsupportedRebalanceMode, resource.ID, name)
		}

		return r, nil
	}

	r, ok := t.modes[mode]
	if !ok {
		return nil, fmt.Errorf("%w: resource %s uses %s", types.ErrUnsupportedRebalanceMode, resource.ID, mode)
	}

	return r, nil
}

// ComputeResourceMapping dispatches to the rebalancer of the resource's mode.
//
// The state model is checked before dispatch, so every registered
// rebalancer may assume it exists.
func (t *Table) ComputeResourceMapping(resource *cluster.ResourceConfig, c *cluster.Config, cs *cluster.ResourceCurrentState) (*model.ResourceAssignment, error) {
	if _, err := stateModelOf(resource, c); err != nil {
		return nil, err
	}

	r, err := t.Lookup(resource)
	if err != nil {
		return nil, err
	}

	return r.ComputeResourceMapping(resource, c, cs)
}
