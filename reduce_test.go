package zran

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benbart/zran/internal/testutil"
)

func TestReducePoints(t *testing.T) {
	t.Parallel()

	data := testutil.Payload(t, 1<<22)
	compressed := testutil.CompressFlate(t, data)
	index, err := BuildIndex(bytes.NewReader(compressed), WithSpan(1<<18), WithMode(ModeRaw))
	require.NoError(t, err)
	require.Greater(t, len(index.Points), 10, "need enough checkpoints to slice between")
	src := testutil.NewByteSource(compressed)
	last := len(index.Points) - 1

	tests := []struct {
		name       string
		startIndex int
		stopIndex  int
	}{
		{"head of stream", 0, 5},
		{"mid stream", 4, 10},
		{"through the tail", 9, last},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			start := index.Points[tt.startIndex].OutLoc + 100
			stop := index.Points[tt.stopIndex].OutLoc + 100
			if stop > index.Length {
				stop = index.Length
			}

			inRange, outRange, reduced, err := ReducePoints(
				index.Points, uint64(len(compressed)), index.Length, []uint64{start}, []uint64{stop})
			require.NoError(t, err)
			require.NotEmpty(t, reduced)

			assert.Equal(t, uint64(0), reduced[0].OutLoc, "reduced points are rebased")
			assert.Equal(t, uint64(0), reduced[0].InLoc)
			assert.LessOrEqual(t, outRange.Lo, start)
			assert.GreaterOrEqual(t, outRange.Hi, stop)

			sub := NewIndex(index.Mode, outRange.Len(), reduced)
			slice := testutil.NewByteSource(compressed[inRange.Lo:inRange.Hi])

			got, err := Decompress(slice, sub, start-outRange.Lo, stop-start)
			require.NoError(t, err)
			assert.Equal(t, data[start:stop], got)

			// The same absolute range from the full stream must agree.
			full, err := Decompress(src, index, start, stop-start)
			require.NoError(t, err)
			assert.Equal(t, full, got)
		})
	}
}

func TestReducePointsRunsToStreamEnd(t *testing.T) {
	t.Parallel()

	data := testutil.Payload(t, 1<<20)
	compressed := testutil.CompressFlate(t, data)
	index, err := BuildIndex(bytes.NewReader(compressed), WithSpan(1<<17), WithMode(ModeRaw))
	require.NoError(t, err)

	// A stop beyond the last checkpoint has no greater point: the window
	// must extend to the physical end of both streams.
	stop := index.Length
	inRange, outRange, reduced, err := ReducePoints(
		index.Points, uint64(len(compressed)), index.Length, []uint64{0}, []uint64{stop})
	require.NoError(t, err)

	assert.Equal(t, uint64(len(compressed)), inRange.Hi)
	assert.Equal(t, index.Length, outRange.Hi)
	assert.Len(t, reduced, len(index.Points), "every checkpoint lies inside the reduced window")
}

func TestReducePointsMultipleRanges(t *testing.T) {
	t.Parallel()

	data := testutil.Payload(t, 1<<21)
	compressed := testutil.CompressFlate(t, data)
	index, err := BuildIndex(bytes.NewReader(compressed), WithSpan(1<<18), WithMode(ModeRaw))
	require.NoError(t, err)
	require.Greater(t, len(index.Points), 4)

	starts := []uint64{index.Points[2].OutLoc + 5, index.Points[1].OutLoc + 11}
	stops := []uint64{index.Points[3].OutLoc + 5, index.Points[2].OutLoc + 99}

	inRange, outRange, reduced, err := ReducePoints(
		index.Points, uint64(len(compressed)), index.Length, starts, stops)
	require.NoError(t, err)

	sub := NewIndex(index.Mode, outRange.Len(), reduced)
	slice := testutil.NewByteSource(compressed[inRange.Lo:inRange.Hi])

	// Every requested range must be independently servable from the slice.
	for i := range starts {
		lo, hi := starts[i], stops[i]
		got, err := Decompress(slice, sub, lo-outRange.Lo, hi-lo)
		require.NoError(t, err)
		assert.Equal(t, data[lo:hi], got, "range %d", i)
	}
}

func TestReducePointsWindowsAreCopies(t *testing.T) {
	t.Parallel()

	points := []Point{
		{OutLoc: 0, InLoc: 0},
		{OutLoc: 100, InLoc: 50, Window: []byte{1, 2, 3}},
		{OutLoc: 200, InLoc: 90, Window: []byte{4, 5, 6}},
	}
	_, _, reduced, err := ReducePoints(points, 120, 250, []uint64{0}, []uint64{240})
	require.NoError(t, err)
	require.Len(t, reduced, 3)

	points[1].Window[0] = 0xff
	assert.Equal(t, []byte{1, 2, 3}, reduced[1].Window, "reduced points own their windows")
}

func TestReducePointsValidation(t *testing.T) {
	t.Parallel()

	t.Run("no points", func(t *testing.T) {
		t.Parallel()
		_, _, _, err := ReducePoints(nil, 10, 10, []uint64{0}, []uint64{5})
		assert.ErrorIs(t, err, ErrIndexFormat)
	})

	t.Run("no ranges", func(t *testing.T) {
		t.Parallel()
		_, _, _, err := ReducePoints([]Point{{}}, 10, 10, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidRange)
	})
}
