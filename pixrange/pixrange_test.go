package pixrange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{5.50, 5},
		{5.51, 6},
		{5.49, 5},
		{5.0, 5},
		{1.0, 1},
		{0.5, 0},
		{99.99, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Round(tt.in), "Round(%v)", tt.in)
	}
}

func TestResolve_Interior(t *testing.T) {
	w, err := Resolve(50, 50, 100, 100, 9)
	require.NoError(t, err)

	assert.Equal(t, Range{46, 54}, w.SrcX)
	assert.Equal(t, Range{46, 54}, w.SrcY)
	assert.Equal(t, Range{1, 9}, w.DstX)
	assert.Equal(t, Range{1, 9}, w.DstY)
	assert.False(t, w.Empty())
}

func TestResolve_LowerEdgeClip(t *testing.T) {
	w, err := Resolve(1, 1, 10, 10, 5)
	require.NoError(t, err)

	assert.Equal(t, Range{1, 3}, w.SrcX)
	assert.Equal(t, Range{1, 3}, w.SrcY)
	assert.Equal(t, Range{3, 5}, w.DstX)
	assert.Equal(t, Range{3, 5}, w.DstY)
}

func TestResolve_UpperEdgeClip(t *testing.T) {
	w, err := Resolve(10, 9, 10, 10, 5)
	require.NoError(t, err)

	// x: raw [8,12] -> [8,10], dst [1,3]
	assert.Equal(t, Range{8, 10}, w.SrcX)
	assert.Equal(t, Range{1, 3}, w.DstX)
	// y: raw [7,11] -> [7,10], dst [1,4]
	assert.Equal(t, Range{7, 10}, w.SrcY)
	assert.Equal(t, Range{1, 4}, w.DstY)
}

func TestResolve_BothEdgesClip(t *testing.T) {
	w, err := Resolve(3, 3, 4, 4, 9)
	require.NoError(t, err)

	// raw [-1,7]: first -> dst 3, last 7 > 4 -> dst 9-3 = 6
	assert.Equal(t, Range{1, 4}, w.SrcX)
	assert.Equal(t, Range{3, 6}, w.DstX)
}

func TestResolve_NoOverlap(t *testing.T) {
	w, err := Resolve(40, 5, 10, 10, 5)
	require.NoError(t, err)
	assert.True(t, w.Empty())
	assert.Equal(t, 0, w.DstX.Len())
}

func TestResolve_LengthInvariant(t *testing.T) {
	for _, side := range []int{1, 3, 5, 9, 21} {
		for n := 1; n <= 12; n++ {
			for c := -15; c <= 30; c++ {
				w, err := Resolve(float64(c)+0.3, float64(c)-0.2, n, n+3, side)
				require.NoError(t, err)

				require.Equal(t, w.SrcX.Last-w.SrcX.First, w.DstX.Last-w.DstX.First, "side=%d n=%d c=%d", side, n, c)
				require.Equal(t, w.SrcY.Last-w.SrcY.First, w.DstY.Last-w.DstY.First, "side=%d n=%d c=%d", side, n, c)

				if !w.Empty() {
					require.GreaterOrEqual(t, w.SrcX.First, 1)
					require.LessOrEqual(t, w.SrcX.Last, n)
					require.GreaterOrEqual(t, w.DstX.First, 1)
					require.LessOrEqual(t, w.DstX.Last, side)
				}
			}
		}
	}
}

func TestResolve_RejectsEvenSide(t *testing.T) {
	_, err := Resolve(5, 5, 10, 10, 4)
	require.ErrorIs(t, err, ErrEvenSide)
}

func TestWindow_Offset(t *testing.T) {
	w, err := Resolve(1, 50, 10, 100, 5)
	require.NoError(t, err)

	dx, dy := w.Offset()
	assert.Equal(t, 1-3, dx)
	assert.Equal(t, 48-1, dy)
}
