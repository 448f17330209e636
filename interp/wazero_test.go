package interp_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowfile-wasm/engine/interp"
)

func TestWazeroBridgeRequiresIsolationWhenConfigured(t *testing.T) {
	b := interp.NewWazeroBridge(nil)
	b.RequireIsolation = true

	err := b.Initialise(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, interp.ErrHostNotIsolated))
	require.Equal(t, interp.Failed, b.State())
}

func TestWazeroBridgeProceedsWhenIsolationCheckPasses(t *testing.T) {
	b := interp.NewWazeroBridge(nil)
	b.RequireIsolation = true
	b.IsolationCheck = func() bool { return true }

	require.NoError(t, b.Initialise(context.Background()))
	require.Equal(t, interp.Ready, b.State())
}

func TestWazeroBridgeSkipsIsolationCheckByDefault(t *testing.T) {
	b := interp.NewWazeroBridge(nil)
	require.NoError(t, b.Initialise(context.Background()))
	require.Equal(t, interp.Ready, b.State())
}
