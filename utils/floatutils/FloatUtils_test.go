package floatutils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r1"
)

func TestClipInterval(t *testing.T) {
	unit := r1.Interval{Min: 0, Max: 1}
	require.Equal(t, 0.0, ClipInterval(-2, unit))
	require.Equal(t, 0.25, ClipInterval(0.25, unit))
	require.Equal(t, 1.0, ClipInterval(3, unit))
}

func TestMaxSliceTies(t *testing.T) {
	max, indices := MaxSlice([]float64{1, 3, 2, 3})
	require.Equal(t, 3.0, max)
	require.Equal(t, []int{1, 3}, indices)
}

func TestArgmaxes(t *testing.T) {
	rows := Argmaxes([]float64{
		1, 3, 2,
		0, 0, 0,
		5, -1, 4,
	}, 3)
	require.Equal(t, [][]int{{1}, {0, 1, 2}, {0}}, rows)
	require.Empty(t, Argmaxes(nil, 3))
}

func TestAllFinite(t *testing.T) {
	require.True(t, AllFinite(0, -1, 1e300))
	require.False(t, AllFinite(1, math.NaN()))
	require.False(t, AllFinite(math.Inf(-1)))
}
