// Package hooks provides default lifecycle hook implementations.
package hooks

import (
	"context"

	"github.com/arloliu/helmsman/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context, int, int) error                                     = (*NopHooks)(nil).OnPassCompleted
	_ func(context.Context, types.ControllerState, types.ControllerState) error = (*NopHooks)(nil).OnStateChanged
	_ func(context.Context, types.SessionID, types.SessionID) error             = (*NopHooks)(nil).OnSessionExpired
	_ func(context.Context, error) error                                        = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnPassCompleted:  h.OnPassCompleted,
		OnStateChanged:   h.OnStateChanged,
		OnSessionExpired: h.OnSessionExpired,
		OnError:          h.OnError,
	}
}

// Fill returns hooks with every nil callback of h replaced by a no-op.
func Fill(h *types.Hooks) types.Hooks {
	out := NewNop()
	if h == nil {
		return out
	}
	if h.OnPassCompleted != nil {
		out.OnPassCompleted = h.OnPassCompleted
	}
	if h.OnStateChanged != nil {
		out.OnStateChanged = h.OnStateChanged
	}
	if h.OnSessionExpired != nil {
		out.OnSessionExpired = h.OnSessionExpired
	}
	if h.OnError != nil {
		out.OnError = h.OnError
	}

	return out
}

// OnPassCompleted is a no-op implementation.
func (h *NopHooks) OnPassCompleted(ctx context.Context, computed, skipped int) error {
	return nil
}

// OnStateChanged is a no-op implementation.
func (h *NopHooks) OnStateChanged(ctx context.Context, from, to types.ControllerState) error {
	return nil
}

// OnSessionExpired is a no-op implementation.
func (h *NopHooks) OnSessionExpired(ctx context.Context, expired, current types.SessionID) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(ctx context.Context, err error) error {
	return nil
}
