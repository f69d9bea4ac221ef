package simplego

import (
	"math"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/scatterupdate/backends"
	"github.com/gomlx/scatterupdate/pkg/core/shapes"
	"github.com/gomlx/scatterupdate/pkg/core/tensors"
	"github.com/google/go-cmp/cmp"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/require"
	"github.com/x448/float16"
	"golang.org/x/sync/errgroup"
)

var (
	noReduction = backends.ScatterAttributes{}
	fromValue   = tensors.FromValue
)

func data3x3() *tensors.Tensor {
	return tensors.FromShape(shapes.Make(dtypes.Float32, 3, 3))
}

func indices2x3() *tensors.Tensor {
	return fromValue([][]int64{{1, 0, 2}, {0, 2, 1}})
}

func updates2x3() *tensors.Tensor {
	return fromValue([][]float32{{1.0, 1.1, 1.2}, {2.0, 2.1, 2.2}})
}

func scatter3D() (data, indices, updates *tensors.Tensor) {
	data = fromValue([][][]float32{{{1, 2}, {3, 4}}, {{5, 6}, {7, 8}}, {{9, 10}, {11, 12}}})
	indices = fromValue([][][]int32{{{1, 0}, {0, 1}}, {{1, 0}, {1, 0}}, {{0, 1}, {1, 0}}})
	updates = fromValue([][][]float32{{{21, 22}, {23, 24}}, {{25, 26}, {27, 28}}, {{29, 30}, {31, 32}}})
	return
}

// requireValue checks the tensor values against the nested Go slices in want.
func requireValue(t *testing.T, want any, got *tensors.Tensor) {
	t.Helper()
	if diff := cmp.Diff(want, got.Value()); diff != "" {
		t.Fatalf("unexpected output (-want +got):\n%s", diff)
	}
}

func TestScatterElementsUpdate(t *testing.T) {
	t.Run("rows", func(t *testing.T) {
		output, err := backend.ScatterElementsUpdateWithAxis(data3x3(), indices2x3(), updates2x3(), 0, noReduction)
		require.NoError(t, err)
		requireValue(t, [][]float32{{2.0, 1.1, 0.0}, {1.0, 0.0, 2.2}, {0.0, 2.1, 1.2}}, output)
		backend.Recycle(output)
		require.False(t, output.Ok())
	})

	t.Run("single row", func(t *testing.T) {
		data := fromValue([][]float32{{1, 2, 3, 4, 5}})
		indices := fromValue([][]int64{{1, 3}})
		updates := fromValue([][]float32{{1.1, 2.1}})
		want := [][]float32{{1.0, 1.1, 3.0, 2.1, 5.0}}
		output, err := backend.ScatterElementsUpdateWithAxis(data, indices, updates, 1, noReduction)
		require.NoError(t, err)
		requireValue(t, want, output)

		// Axis given as a tensor, either as a scalar or with shape [1].
		for _, axis := range []*tensors.Tensor{fromValue([]int64{1}), tensors.FromScalar(int32(1)), fromValue([]uint8{1})} {
			output, err = backend.ScatterElementsUpdate(data, indices, updates, axis, noReduction)
			require.NoError(t, err)
			requireValue(t, want, output)
		}
		// Inputs are not changed.
		requireValue(t, [][]float32{{1, 2, 3, 4, 5}}, data)
	})

	t.Run("last axis", func(t *testing.T) {
		data, indices, updates := scatter3D()
		output, err := backend.ScatterElementsUpdateWithAxis(data, indices, updates, -1, noReduction)
		require.NoError(t, err)
		requireValue(t, [][][]float32{{{22, 21}, {23, 24}}, {{26, 25}, {28, 27}}, {{29, 30}, {32, 31}}}, output)
	})

	t.Run("negative axis", func(t *testing.T) {
		data := fromValue([][][]int16{{{1, 2, 3}, {4, 5, 6}}, {{7, 8, 9}, {10, 11, 12}}})
		for _, tc := range []struct {
			axis             int
			indices, updates *tensors.Tensor
		}{
			{0, fromValue([][][]int8{{{1, 0, 1}, {0, 1, 0}}}), fromValue([][][]int16{{{-1, -2, -3}, {-4, -5, -6}}})},
			{1, fromValue([][][]int8{{{1, 0, 1}}, {{0, 1, 1}}}), fromValue([][][]int16{{{-1, -2, -3}}, {{-4, -5, -6}}})},
			{2, fromValue([][][]int8{{{2, 0}, {1, 1}}, {{0, 2}, {2, 1}}}), fromValue([][][]int16{{{-1, -2}, {-3, -4}}, {{-5, -6}, {-7, -8}}})},
		} {
			positive, err := backend.ScatterElementsUpdateWithAxis(data, tc.indices, tc.updates, tc.axis, noReduction)
			require.NoError(t, err, "axis %d", tc.axis)
			negative, err := backend.ScatterElementsUpdateWithAxis(data, tc.indices, tc.updates, tc.axis-3, noReduction)
			require.NoError(t, err, "axis %d", tc.axis-3)
			require.True(t, positive.Equal(negative), "axis %d: %s != %s", tc.axis, positive, negative)
			require.False(t, positive.Equal(data), "axis %d: nothing was updated", tc.axis)
		}

		// Axis 1 of the rank-3 data, updating one element per row.
		output, err := backend.ScatterElementsUpdateWithAxis(data,
			fromValue([][][]int8{{{1, 0, 1}}, {{0, 1, 1}}}), fromValue([][][]int16{{{-1, -2, -3}}, {{-4, -5, -6}}}), -2, noReduction)
		require.NoError(t, err)
		requireValue(t, [][][]int16{{{1, -2, 3}, {-1, 5, -3}}, {{-4, 8, 9}, {10, -5, -6}}}, output)
	})

	t.Run("copy through", func(t *testing.T) {
		data := fromValue([][]float64{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {10, 11, 12}})
		indices := fromValue([][]int32{{3, 0, 1}})
		updates := fromValue([][]float64{{-1, -2, -3}})
		output, err := backend.ScatterElementsUpdateWithAxis(data, indices, updates, 0, noReduction)
		require.NoError(t, err)
		requireValue(t, [][]float64{{1, -2, 3}, {4, 5, -3}, {7, 8, 9}, {-1, 11, 12}}, output)
	})

	t.Run("last write wins", func(t *testing.T) {
		output, err := backend.ScatterElementsUpdateWithAxis(
			fromValue([]int64{0, 0, 0}), fromValue([]int64{1, 1, 1}), fromValue([]int64{5, 6, 7}), 0, noReduction)
		require.NoError(t, err)
		requireValue(t, []int64{0, 7, 0}, output)
	})

	t.Run("bool and half precision", func(t *testing.T) {
		output, err := backend.ScatterElementsUpdateWithAxis(
			fromValue([]bool{false, false}), fromValue([]uint16{1}), fromValue([]bool{true}), 0, noReduction)
		require.NoError(t, err)
		requireValue(t, []bool{false, true}, output)

		f16 := float16.Fromfloat32
		output, err = backend.ScatterElementsUpdateWithAxis(
			fromValue([]float16.Float16{f16(1), f16(2)}), fromValue([]int32{0}), fromValue([]float16.Float16{f16(0.5)}), 0, noReduction)
		require.NoError(t, err)
		requireValue(t, []float16.Float16{f16(0.5), f16(2)}, output)
	})

	t.Run("empty indices", func(t *testing.T) {
		data := fromValue([][]float32{{1, 2}, {3, 4}})
		indices := tensors.FromShape(shapes.Make(dtypes.Int32, 0, 2))
		updates := tensors.FromShape(shapes.Make(dtypes.Float32, 0, 2))
		output, err := backend.ScatterElementsUpdateWithAxis(data, indices, updates, 0, noReduction)
		require.NoError(t, err)
		require.True(t, output.Equal(data))
	})
}

func TestScatterElementsUpdateErrors(t *testing.T) {
	t.Run("shape mismatch", func(t *testing.T) {
		_, err := backend.ScatterElementsUpdateWithAxis(data3x3(), indices2x3(), fromValue([][]float32{{1, 2}, {3, 4}, {5, 6}}), 0, noReduction)
		require.ErrorIs(t, err, backends.ErrShapeMismatch)
		_, err = backend.ScatterElementsUpdateWithAxis(data3x3(), indices2x3(), fromValue([][]float64{{1, 1, 1}, {2, 2, 2}}), 0, noReduction)
		require.ErrorIs(t, err, backends.ErrShapeMismatch)
		_, err = backend.ScatterElementsUpdateWithAxis(nil, indices2x3(), updates2x3(), 0, noReduction)
		require.ErrorIs(t, err, backends.ErrShapeMismatch)
	})

	t.Run("invalid axis", func(t *testing.T) {
		_, err := backend.ScatterElementsUpdateWithAxis(data3x3(), indices2x3(), updates2x3(), 2, noReduction)
		require.ErrorIs(t, err, backends.ErrInvalidAxis)
		_, err = backend.ScatterElementsUpdateWithAxis(data3x3(), indices2x3(), updates2x3(), -3, noReduction)
		require.ErrorIs(t, err, backends.ErrInvalidAxis)
		for _, axis := range []*tensors.Tensor{
			fromValue([]int64{0, 1}),
			tensors.FromScalar(float32(0)),
			tensors.FromScalar(uint64(math.MaxUint64)),
			nil,
		} {
			_, err = backend.ScatterElementsUpdate(data3x3(), indices2x3(), updates2x3(), axis, noReduction)
			require.ErrorIs(t, err, backends.ErrInvalidAxis)
		}
	})

	t.Run("index out of range", func(t *testing.T) {
		for _, indices := range []*tensors.Tensor{
			fromValue([][]int64{{1, 0, 3}, {0, 2, 1}}),
			fromValue([][]int64{{1, 0, -1}, {0, 2, 1}}),
			fromValue([][]uint64{{1, 0, math.MaxUint64}, {0, 2, 1}}),
		} {
			output, err := backend.ScatterElementsUpdateWithAxis(data3x3(), indices, updates2x3(), 0, noReduction)
			require.ErrorIs(t, err, backends.ErrIndexOutOfRange)
			require.Nil(t, output)
		}
	})

	t.Run("invalid attributes", func(t *testing.T) {
		_, err := backend.ScatterElementsUpdateWithAxis(
			fromValue([]bool{true}), fromValue([]int32{0}), fromValue([]bool{false}), 0,
			backends.ScatterAttributes{Reduction: backends.ReductionMean})
		require.ErrorIs(t, err, backends.ErrInvalidAttribute)
	})

	t.Run("not implemented", func(t *testing.T) {
		_, err := backend.InferShape(shapes.Make(dtypes.Complex64, 3), shapes.Make(dtypes.Int32, 3),
			shapes.Make(dtypes.Complex64, 3), 0, noReduction)
		require.ErrorIs(t, err, backends.ErrNotImplemented)
	})
}

func TestScatterElementsUpdateReductions(t *testing.T) {
	indices := fromValue([]int32{0, 0, 2, 2})
	reduce := func(data, updates *tensors.Tensor, reduction backends.ReductionType, ignoreInit bool) *tensors.Tensor {
		t.Helper()
		attrs := backends.ScatterAttributes{Reduction: reduction, IgnoreInitValue: ignoreInit}
		output, err := backend.ScatterElementsUpdateWithAxis(data, indices, updates, 0, attrs)
		require.NoError(t, err, "attributes %s", attrs)
		return output
	}

	t.Run("int32", func(t *testing.T) {
		data := fromValue([]int32{1, 2, 3, 4})
		updates := fromValue([]int32{10, 20, 30, 40})
		for _, tc := range []struct {
			reduction  backends.ReductionType
			ignoreInit bool
			want       []int32
		}{
			{backends.ReductionSum, false, []int32{31, 2, 73, 4}},
			{backends.ReductionSum, true, []int32{30, 2, 70, 4}},
			{backends.ReductionProd, false, []int32{200, 2, 3600, 4}},
			{backends.ReductionProd, true, []int32{200, 2, 1200, 4}},
			{backends.ReductionMin, false, []int32{1, 2, 3, 4}},
			{backends.ReductionMin, true, []int32{10, 2, 30, 4}},
			{backends.ReductionMax, false, []int32{20, 2, 40, 4}},
			{backends.ReductionMax, true, []int32{20, 2, 40, 4}},
			{backends.ReductionMean, false, []int32{10, 2, 24, 4}},
			{backends.ReductionMean, true, []int32{15, 2, 35, 4}},
		} {
			requireValue(t, tc.want, reduce(data, updates, tc.reduction, tc.ignoreInit))
		}
	})

	t.Run("integer mean rounds down", func(t *testing.T) {
		output, err := backend.ScatterElementsUpdateWithAxis(fromValue([]int64{-1, 5}), fromValue([]int64{0}), fromValue([]int64{-2}), 0,
			backends.ScatterAttributes{Reduction: backends.ReductionMean})
		require.NoError(t, err)
		requireValue(t, []int64{-2, 5}, output)

		requireValue(t, []uint8{10, 2, 24, 4},
			reduce(fromValue([]uint8{1, 2, 3, 4}), fromValue([]uint8{10, 20, 30, 40}), backends.ReductionMean, false))
	})

	t.Run("floats", func(t *testing.T) {
		output := reduce(fromValue([]float32{1, 2, 3, 4}), fromValue([]float32{10, 20, 30, 40}), backends.ReductionMean, false)
		require.True(t, output.InDelta(fromValue([]float32{31.0 / 3, 2, 73.0 / 3, 4}), 1e-5), "got %s", output)

		output = reduce(fromValue([]float64{1, 2, 3, 4}), fromValue([]float64{10, 20, 30, 40}), backends.ReductionSum, true)
		requireValue(t, []float64{30, 2, 70, 4}, output)
	})

	t.Run("half precision", func(t *testing.T) {
		f16 := func(values ...float32) []float16.Float16 {
			converted := make([]float16.Float16, len(values))
			for ii, v := range values {
				converted[ii] = float16.Fromfloat32(v)
			}
			return converted
		}
		output := reduce(fromValue(f16(1, 2, 3, 4)), fromValue(f16(10, 20, 30, 40)), backends.ReductionSum, true)
		requireValue(t, f16(30, 2, 70, 4), output)
		output = reduce(fromValue(f16(1, 2, 3, 4)), fromValue(f16(10, 20, 30, 40)), backends.ReductionMean, true)
		requireValue(t, f16(15, 2, 35, 4), output)

		bf16 := func(values ...float32) []bfloat16.BFloat16 {
			converted := make([]bfloat16.BFloat16, len(values))
			for ii, v := range values {
				converted[ii] = bfloat16.FromFloat32(v)
			}
			return converted
		}
		output = reduce(fromValue(bf16(1, 2, 3, 4)), fromValue(bf16(10, 20, 30, 40)), backends.ReductionMax, false)
		requireValue(t, bf16(20, 2, 40, 4), output)
	})

	t.Run("bool", func(t *testing.T) {
		data := fromValue([]bool{false, true, false, true})
		updates := fromValue([]bool{true, false, false, false})
		requireValue(t, []bool{true, true, false, true}, reduce(data, updates, backends.ReductionSum, false))
		requireValue(t, []bool{true, true, false, true}, reduce(data, updates, backends.ReductionMax, false))
		requireValue(t, []bool{false, true, false, true}, reduce(data, updates, backends.ReductionProd, false))
		requireValue(t, []bool{false, true, false, true}, reduce(data, updates, backends.ReductionMin, true))
	})
}

func TestDonation(t *testing.T) {
	for _, config := range []string{"", "reuse=false", "pool=false"} {
		t.Run(config, func(t *testing.T) {
			b := must.M1(New(config)).(*Backend)
			defer b.Finalize()
			data, indices, updates := scatter3D()
			node := must.M1(b.NewScatterElementsUpdateNode(data.Shape(), indices.Shape(), updates.Shape(), 2, noReduction))
			dataFlat := data.Flat().([]float32)
			output, err := b.Execute(node, []*tensors.Tensor{data, indices, updates}, []bool{true, false, false})
			require.NoError(t, err)
			require.False(t, data.Ok(), "donated tensor must be invalidated")
			require.True(t, indices.Ok())
			requireValue(t, [][][]float32{{{22, 21}, {23, 24}}, {{26, 25}, {28, 27}}, {{29, 30}, {32, 31}}}, output)
			reused := &dataFlat[0] == &output.Flat().([]float32)[0]
			require.Equal(t, b.allowReuse, reused)
		})
	}

	t.Run("aliased inputs", func(t *testing.T) {
		values := fromValue([]float32{1, 2})
		node := must.M1(backend.NewScatterElementsUpdateNode(values.Shape(), shapes.Make(dtypes.Int32, 2), values.Shape(), 0, noReduction))
		output, err := backend.Execute(node, []*tensors.Tensor{values, fromValue([]int32{1, 0}), values}, []bool{true, false, false})
		require.NoError(t, err)
		require.True(t, values.Ok())
		requireValue(t, []float32{2, 1}, output)
	})

	t.Run("donated on failure", func(t *testing.T) {
		data := data3x3()
		node := must.M1(backend.NewScatterElementsUpdateNode(data.Shape(), shapes.Make(dtypes.Int64, 2, 3), shapes.Make(dtypes.Float32, 2, 3), 0, noReduction))
		_, err := backend.Execute(node, []*tensors.Tensor{data, fromValue([][]int64{{7, 0, 0}, {0, 0, 0}}), updates2x3()}, []bool{true, false, false})
		require.ErrorIs(t, err, backends.ErrIndexOutOfRange)
		require.False(t, data.Ok())

		_, err = backend.Execute(node, []*tensors.Tensor{data3x3(), indices2x3()}, nil)
		require.ErrorIs(t, err, backends.ErrShapeMismatch)
		_, err = backend.Execute(node, []*tensors.Tensor{data3x3(), indices2x3(), updates2x3()}, []bool{true})
		require.Error(t, err)
	})
}

func TestDynamicShapes(t *testing.T) {
	unknown := shapes.DimUnknown
	dataShape := shapes.MakeDynamic(dtypes.Float32, unknown, 3)
	indicesShape := shapes.MakeDynamic(dtypes.Int64, unknown, 3)
	updatesShape := shapes.MakeDynamic(dtypes.Float32, unknown, 3)

	output, err := backend.InferShape(dataShape, indicesShape, updatesShape, -2, noReduction)
	require.NoError(t, err)
	require.True(t, output.Equal(dataShape))

	node := must.M1(backend.NewScatterElementsUpdateNode(dataShape, indicesShape, updatesShape, 0, noReduction))
	require.Equal(t, backends.OpTypeScatterElementsUpdate, node.OpType())
	require.Len(t, node.InputShapes(), 3)
	result, err := backend.Execute(node, []*tensors.Tensor{data3x3(), indices2x3(), updates2x3()}, nil)
	require.NoError(t, err)
	requireValue(t, [][]float32{{2.0, 1.1, 0.0}, {1.0, 0.0, 2.2}, {0.0, 2.1, 1.2}}, result)

	// Concrete shapes must still be consistent among themselves.
	tooManyIndices := tensors.FromShape(shapes.Make(dtypes.Int64, 4, 3))
	tooManyUpdates := tensors.FromShape(shapes.Make(dtypes.Float32, 4, 3))
	_, err = backend.Execute(node, []*tensors.Tensor{data3x3(), tooManyIndices, tooManyUpdates}, nil)
	require.ErrorIs(t, err, backends.ErrShapeMismatch)

	// And compatible with the node shapes.
	_, err = backend.Execute(node, []*tensors.Tensor{fromValue([]float32{1, 2, 3}), indices2x3(), updates2x3()}, nil)
	require.ErrorIs(t, err, backends.ErrShapeMismatch)
}

func TestConcurrentExecution(t *testing.T) {
	data, indices, updates := scatter3D()
	want := must.M1(backend.ScatterElementsUpdateWithAxis(data, indices, updates, -1, noReduction))
	var g errgroup.Group
	for range 16 {
		g.Go(func() error {
			for range 100 {
				output, err := backend.ScatterElementsUpdateWithAxis(data, indices, updates, -1, noReduction)
				if err != nil {
					return err
				}
				if !output.Equal(want) {
					t.Errorf("concurrent execution got %s, wanted %s", output, want)
				}
				backend.Recycle(output)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
}
