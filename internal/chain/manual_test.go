package chain

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestManualClock(t *testing.T) {
	c := NewManualClock(5)
	ctx := context.Background()

	block, err := c.BlockNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(5), block)

	require.Equal(t, uint64(8), c.Advance(3))

	c.AdvanceTo(20)
	block, err = c.BlockNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(20), block)

	// Monotonic: moving backwards is a no-op.
	c.AdvanceTo(10)
	block, err = c.BlockNumber(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(20), block)
}
