package shapes

import (
	"slices"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/require"
)

func TestShape_Strides(t *testing.T) {
	shape := Make(dtypes.Float32, 2, 3, 4)
	require.Equal(t, []int{12, 4, 1}, shape.Strides())

	shape = Make(dtypes.Float32, 5)
	require.Equal(t, []int{1}, shape.Strides())

	shape = Make(dtypes.Float32, 3, 1, 2)
	require.Equal(t, []int{2, 2, 1}, shape.Strides())

	require.Nil(t, Make(dtypes.Float32).Strides())
	require.Equal(t, []int{0, 0}, Make(dtypes.Float32, 3, 0).Strides())
}

func collectIter(shape Shape) (flats []int, indices [][]int) {
	for flatIdx, idx := range shape.Iter() {
		flats = append(flats, flatIdx)
		indices = append(indices, slices.Clone(idx))
	}
	return
}

func TestShape_Iter(t *testing.T) {
	t.Run("trivial axes", func(t *testing.T) {
		flats, indices := collectIter(Make(dtypes.Float32, 1, 1, 1, 1))
		require.Equal(t, []int{0}, flats)
		require.Equal(t, [][]int{{0, 0, 0, 0}}, indices)
	})

	t.Run("row-major", func(t *testing.T) {
		flats, indices := collectIter(Make(dtypes.Float64, 3, 2))
		require.Equal(t, []int{0, 1, 2, 3, 4, 5}, flats)
		want := [][]int{
			{0, 0},
			{0, 1},
			{1, 0},
			{1, 1},
			{2, 0},
			{2, 1},
		}
		require.Equal(t, want, indices)
	})

	t.Run("mixed trivial axes", func(t *testing.T) {
		shape := Make(dtypes.Int32, 3, 1, 2, 1)
		_, indices := collectIter(shape)
		want := [][]int{
			{0, 0, 0, 0},
			{0, 0, 1, 0},
			{1, 0, 0, 0},
			{1, 0, 1, 0},
			{2, 0, 0, 0},
			{2, 0, 1, 0},
		}
		require.Equal(t, want, indices)
	})

	t.Run("flat index matches strides", func(t *testing.T) {
		shape := Make(dtypes.Float32, 2, 3, 4)
		strides := shape.Strides()
		count := 0
		for flatIdx, idx := range shape.Iter() {
			expected := 0
			for axis, i := range idx {
				expected += i * strides[axis]
			}
			require.Equal(t, expected, flatIdx)
			count++
		}
		require.Equal(t, shape.Size(), count)
	})

	t.Run("scalar", func(t *testing.T) {
		flats, indices := collectIter(Make(dtypes.Float32))
		require.Equal(t, []int{0}, flats)
		require.Equal(t, [][]int{{}}, indices)
	})

	t.Run("empty", func(t *testing.T) {
		flats, _ := collectIter(Make(dtypes.Float32, 2, 0, 3))
		require.Empty(t, flats)
		flats, _ = collectIter(MakeDynamic(dtypes.Float32, 2, DimUnknown))
		require.Empty(t, flats)
		flats, _ = collectIter(Invalid())
		require.Empty(t, flats)
	})

	t.Run("restartable", func(t *testing.T) {
		shape := Make(dtypes.Float32, 2, 2)
		seq := shape.Iter()
		var first, second []int
		for flatIdx := range seq {
			first = append(first, flatIdx)
		}
		for flatIdx := range seq {
			second = append(second, flatIdx)
		}
		require.Equal(t, []int{0, 1, 2, 3}, first)
		require.Equal(t, first, second)
	})

	t.Run("early stop", func(t *testing.T) {
		shape := Make(dtypes.Float32, 4, 4)
		count := 0
		for flatIdx := range shape.Iter() {
			if flatIdx == 5 {
				break
			}
			count++
		}
		require.Equal(t, 5, count)
	})
}

func TestShape_IterOn(t *testing.T) {
	shape := Make(dtypes.Float32, 2, 3)
	indices := make([]int, 2)
	var last []int
	for _, idx := range shape.IterOn(indices) {
		last = slices.Clone(idx)
	}
	require.Equal(t, []int{1, 2}, last)
	require.Panics(t, func() { _ = shape.IterOn(make([]int, 3)) })
}
