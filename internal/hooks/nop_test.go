package hooks

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/helmsman/types"
)

func TestNewNop(t *testing.T) {
	hooks := NewNop()

	require.NotNil(t, hooks.OnPassCompleted)
	require.NotNil(t, hooks.OnStateChanged)
	require.NotNil(t, hooks.OnSessionExpired)
	require.NotNil(t, hooks.OnError)

	ctx := context.Background()
	require.NoError(t, hooks.OnPassCompleted(ctx, 3, 1))
	require.NoError(t, hooks.OnStateChanged(ctx, types.ControllerInit, types.ControllerRunning))
	require.NoError(t, hooks.OnSessionExpired(ctx, "s1", "s2"))
	require.NoError(t, hooks.OnError(ctx, errors.New("test error")))
}

func TestFill(t *testing.T) {
	t.Run("nil hooks", func(t *testing.T) {
		h := Fill(nil)
		require.NotNil(t, h.OnPassCompleted)
		require.NotNil(t, h.OnError)
	})

	t.Run("keeps provided callbacks", func(t *testing.T) {
		boom := errors.New("boom")
		h := Fill(&types.Hooks{
			OnError: func(context.Context, error) error { return boom },
		})

		require.ErrorIs(t, h.OnError(context.Background(), nil), boom)
		require.NoError(t, h.OnPassCompleted(context.Background(), 0, 0))
		require.NotNil(t, h.OnSessionExpired)
	})
}
