package backends

import (
	"maps"
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
)

// Capabilities holds mappings of what is supported by a backend.
type Capabilities struct {
	// Operations supported by a backend.
	// If not listed, it's assumed to be false, hence not supported.
	Operations map[OpType]bool

	// DTypes list the data types supported by a backend.
	// If not listed, it's assumed to be false, hence not supported.
	DTypes map[dtypes.DType]bool

	// IndicesDTypes list the data types accepted for the indices and axis tensors.
	IndicesDTypes map[dtypes.DType]bool

	// Reductions supported by the ScatterElementsUpdate operation.
	Reductions map[ReductionType]bool

	// SupportsDynamicShapes indicates whether the backend accepts shapes with unknown dimensions
	// (shapes.DimUnknown) during shape inference. Values are always evaluated with static shapes.
	SupportsDynamicShapes bool
}

// Clone makes a deep copy of the Capabilities.
func (c Capabilities) Clone() Capabilities {
	var c2 Capabilities
	c2.SupportsDynamicShapes = c.SupportsDynamicShapes
	c2.Operations = make(map[OpType]bool, len(c.Operations))
	maps.Copy(c2.Operations, c.Operations)
	c2.DTypes = make(map[dtypes.DType]bool, len(c.DTypes))
	maps.Copy(c2.DTypes, c.DTypes)
	c2.IndicesDTypes = make(map[dtypes.DType]bool, len(c.IndicesDTypes))
	maps.Copy(c2.IndicesDTypes, c.IndicesDTypes)
	c2.Reductions = make(map[ReductionType]bool, len(c.Reductions))
	maps.Copy(c2.Reductions, c.Reductions)
	return c2
}

// SortedDTypes returns the supported data dtypes, sorted by their enum value.
func (c Capabilities) SortedDTypes() []dtypes.DType {
	return slices.Sorted(maps.Keys(c.DTypes))
}
