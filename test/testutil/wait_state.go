package testutil

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arloliu/helmsman/types"
)

// ControllerWaiter defines the subset of Controller methods needed for waiting.
type ControllerWaiter interface {
	// WaitState waits for the controller to reach the expected state within the timeout.
	WaitState(expected types.ControllerState, timeout time.Duration) <-chan error
}

// WaitAllControllersState waits for all controllers to reach the expected state.
//
// The first controller that fails to reach the state cancels the wait and its
// error is returned.
//
// Parameters:
//   - ctx: Context for cancellation
//   - controllers: Controllers to wait on
//   - expected: Target state
//   - timeout: Maximum time to wait for each controller
//
// Returns:
//   - error: nil if all controllers reached the state
func WaitAllControllersState(
	ctx context.Context,
	controllers []ControllerWaiter,
	expected types.ControllerState,
	timeout time.Duration,
) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range controllers {
		g.Go(func() error {
			select {
			case err := <-c.WaitState(expected, timeout):
				if err != nil {
					return fmt.Errorf("controller[%d] failed to reach state %s: %w", i, expected, err)
				}
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	}

	return g.Wait()
}

// WaitControllerStates waits for a controller to pass through states in order.
//
// Example:
//
//	err := testutil.WaitControllerStates(ctx, ctrl, []types.ControllerState{
//	    types.ControllerPaused,
//	    types.ControllerRunning,
//	}, 5*time.Second)
func WaitControllerStates(
	ctx context.Context,
	c ControllerWaiter,
	states []types.ControllerState,
	timeout time.Duration,
) error {
	for i, state := range states {
		select {
		case err := <-c.WaitState(state, timeout):
			if err != nil {
				return fmt.Errorf("failed to reach state[%d] %s: %w", i, state, err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}
