package backends

import (
	"fmt"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/pkg/errors"
)

// ReductionType selects how the updates scattered to the same output position are combined.
type ReductionType int

//go:generate go tool enumer -type=ReductionType -trimprefix=Reduction -transform=lower -output=gen_reductiontype_enumer.go reduction.go

const (
	// ReductionNone overwrites the output position, and the last update in the row-major order of
	// indices wins.
	ReductionNone ReductionType = iota

	// ReductionSum adds the updates.
	ReductionSum

	// ReductionProd multiplies the updates.
	ReductionProd

	// ReductionMin takes the minimum.
	ReductionMin

	// ReductionMax takes the maximum.
	ReductionMax

	// ReductionMean takes the arithmetic mean. For integer dtypes the result is rounded down (floor).
	ReductionMean
)

// reductionAliases are alternative names accepted by ParseReduction.
var reductionAliases = map[string]ReductionType{
	"":    ReductionNone,
	"add": ReductionSum,
	"mul": ReductionProd,
}

// ParseReduction converts the attribute name of a reduction ("none", "sum", "prod", "min", "max", "mean"),
// case-insensitive, to a ReductionType. It also accepts "add" and "mul" as aliases.
func ParseReduction(name string) (ReductionType, error) {
	name = strings.TrimSpace(name)
	if r, found := reductionAliases[strings.ToLower(name)]; found {
		return r, nil
	}
	r, err := ReductionTypeString(name)
	if err != nil {
		return ReductionNone, errors.Wrapf(ErrInvalidAttribute, "unknown reduction %q, valid values are %q", name, ReductionTypeStrings())
	}
	return r, nil
}

// ScatterAttributes are the attributes of a ScatterElementsUpdate node.
// The zero value is the plain update (ReductionNone).
type ScatterAttributes struct {
	// Reduction used to combine the updates with the output.
	Reduction ReductionType

	// IgnoreInitValue, if set, makes the reduction disregard the values in data for the positions
	// that receive at least one update: they are reduced only over the updates.
	// It has no effect for ReductionNone.
	IgnoreInitValue bool
}

// Validate checks that the attributes are valid for the given dtype of data.
func (attrs ScatterAttributes) Validate(dtype dtypes.DType) error {
	if !attrs.Reduction.IsAReductionType() {
		return errors.Wrapf(ErrInvalidAttribute, "invalid reduction %s", attrs.Reduction)
	}
	if dtype == dtypes.Bool && attrs.Reduction == ReductionMean {
		return errors.Wrapf(ErrInvalidAttribute, "reduction %s not defined for %s", attrs.Reduction, dtype)
	}
	return nil
}

// String implements fmt.Stringer.
func (attrs ScatterAttributes) String() string {
	if attrs.Reduction == ReductionNone {
		return "reduction=none"
	}
	return fmt.Sprintf("reduction=%s, use_init_value=%v", attrs.Reduction, !attrs.IgnoreInitValue)
}
