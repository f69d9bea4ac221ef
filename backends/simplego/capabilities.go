package simplego

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/scatterupdate/backends"
)

// Capabilities of the SimpleGo backends: the set of supported operations and data types.
var Capabilities = backends.Capabilities{
	Operations: map[backends.OpType]bool{
		backends.OpTypeScatterElementsUpdate: true,
	},

	DTypes: map[dtypes.DType]bool{
		dtypes.Bool:     true,
		dtypes.Int8:     true,
		dtypes.Int16:    true,
		dtypes.Int32:    true,
		dtypes.Int64:    true,
		dtypes.Uint8:    true,
		dtypes.Uint16:   true,
		dtypes.Uint32:   true,
		dtypes.Uint64:   true,
		dtypes.Float16:  true,
		dtypes.BFloat16: true,
		dtypes.Float32:  true,
		dtypes.Float64:  true,
	},

	IndicesDTypes: map[dtypes.DType]bool{
		dtypes.Int8:   true,
		dtypes.Int16:  true,
		dtypes.Int32:  true,
		dtypes.Int64:  true,
		dtypes.Uint8:  true,
		dtypes.Uint16: true,
		dtypes.Uint32: true,
		dtypes.Uint64: true,
	},

	Reductions: map[backends.ReductionType]bool{
		backends.ReductionNone: true,
		backends.ReductionSum:  true,
		backends.ReductionProd: true,
		backends.ReductionMin:  true,
		backends.ReductionMax:  true,
		backends.ReductionMean: true,
	},

	SupportsDynamicShapes: true,
}
