package types

import "context"

// Hooks defines callbacks for Controller lifecycle events.
//
// All hooks are optional. Hooks receive the controller's lifecycle context
// which is cancelled during shutdown. Hook errors are logged but never fail
// a reconciliation pass.
//
// Example:
//
//	hooks := &helmsman.Hooks{
//	    OnPassCompleted: func(ctx context.Context, computed, skipped int) error {
//	        log.Printf("pass done: %d computed, %d skipped", computed, skipped)
//	        return nil
//	    },
//	}
type Hooks struct {
	// OnPassCompleted is called after every reconciliation pass that ran to completion.
	// computed: resources whose assignment was computed
	// skipped: resources left out because of bad configuration
	OnPassCompleted func(ctx context.Context, computed, skipped int) error

	// OnStateChanged is called when the controller state transitions.
	OnStateChanged func(ctx context.Context, from, to ControllerState) error

	// OnSessionExpired is called after the controller replaced an expired session.
	OnSessionExpired func(ctx context.Context, expired, current SessionID) error

	// OnError is called when a recoverable error occurs.
	OnError func(ctx context.Context, err error) error
}
