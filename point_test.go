package zran

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClosestPoint(t *testing.T) {
	t.Parallel()

	points := []Point{
		{OutLoc: 0},
		{OutLoc: 2},
		{OutLoc: 4},
		{OutLoc: 5},
	}

	t.Run("at or before target", func(t *testing.T) {
		t.Parallel()
		p, ok := ClosestPoint(points, 3, false)
		require.True(t, ok)
		assert.Equal(t, uint64(2), p.OutLoc)
	})

	t.Run("strictly after target", func(t *testing.T) {
		t.Parallel()
		p, ok := ClosestPoint(points, 3, true)
		require.True(t, ok)
		assert.Equal(t, uint64(4), p.OutLoc)
	})

	t.Run("exact hit is at-or-before", func(t *testing.T) {
		t.Parallel()
		p, ok := ClosestPoint(points, 4, false)
		require.True(t, ok)
		assert.Equal(t, uint64(4), p.OutLoc)

		p, ok = ClosestPoint(points, 4, true)
		require.True(t, ok)
		assert.Equal(t, uint64(5), p.OutLoc)
	})

	t.Run("clamps below first point", func(t *testing.T) {
		t.Parallel()
		shifted := []Point{{OutLoc: 10}, {OutLoc: 20}}
		p, ok := ClosestPoint(shifted, 3, false)
		require.True(t, ok)
		assert.Equal(t, uint64(10), p.OutLoc)
	})

	t.Run("nothing after last point", func(t *testing.T) {
		t.Parallel()
		_, ok := ClosestPoint(points, 5, true)
		assert.False(t, ok)

		_, ok = ClosestPoint(points, 100, true)
		assert.False(t, ok)
	})

	t.Run("empty points", func(t *testing.T) {
		t.Parallel()
		_, ok := ClosestPoint(nil, 0, false)
		assert.False(t, ok)
		_, ok = ClosestPoint(nil, 0, true)
		assert.False(t, ok)
	})
}
