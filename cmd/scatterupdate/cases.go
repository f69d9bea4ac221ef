package main

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/gomlx/scatterupdate/backends"
	"github.com/gomlx/scatterupdate/pkg/core/shapes"
	"github.com/gomlx/scatterupdate/pkg/core/tensors"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	"gopkg.in/yaml.v3"
)

// CasesFile is the YAML document read with -cases.
type CasesFile struct {
	Cases []*Case `yaml:"cases"`
}

// Case is one ScatterElementsUpdate evaluation. Values are given as nested YAML lists.
type Case struct {
	Name            string `yaml:"name"`
	DType           string `yaml:"dtype"`
	IndicesDType    string `yaml:"indices_dtype"`
	Data            any    `yaml:"data"`
	Indices         any    `yaml:"indices"`
	Updates         any    `yaml:"updates"`
	Axis            any    `yaml:"axis"`
	Reduction       string `yaml:"reduction"`
	IgnoreInitValue bool   `yaml:"ignore_init_value"`
	Expected        any    `yaml:"expected"`
}

// caseInputs are the tensors and attributes of a Case, ready to be evaluated.
type caseInputs struct {
	data, indices, updates, axis *tensors.Tensor
	expected                     *tensors.Tensor // Nil if not given.
	attrs                        backends.ScatterAttributes
}

// LoadCases reads and parses the YAML file with the cases.
func LoadCases(filePath string) ([]*Case, error) {
	contents, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read cases from %q", filePath)
	}
	return ParseCases(contents)
}

// ParseCases parses the YAML contents of a cases file.
func ParseCases(contents []byte) ([]*Case, error) {
	var file CasesFile
	if err := yaml.Unmarshal(contents, &file); err != nil {
		return nil, errors.Wrap(err, "failed to parse cases")
	}
	for ii, c := range file.Cases {
		if c == nil {
			return nil, errors.Errorf("case #%d is empty", ii)
		}
		if c.Name == "" {
			c.Name = fmt.Sprintf("case-%d", ii)
		}
	}
	return file.Cases, nil
}

// build converts the case values to tensors. The dtypes must be supported by the backend, as
// given by its capabilities.
func (c *Case) build(capabilities backends.Capabilities) (*caseInputs, error) {
	dtype, err := parseDType(c.DType, dtypes.Float32, capabilities.DTypes)
	if err != nil {
		return nil, err
	}
	indicesDType, err := parseDType(c.IndicesDType, dtypes.Int64, capabilities.IndicesDTypes)
	if err != nil {
		return nil, err
	}
	reduction, err := backends.ParseReduction(c.Reduction)
	if err != nil {
		return nil, err
	}
	inputs := &caseInputs{
		attrs: backends.ScatterAttributes{Reduction: reduction, IgnoreInitValue: c.IgnoreInitValue},
	}
	if inputs.data, err = valueToTensor(dtype, c.Data); err != nil {
		return nil, errors.WithMessage(err, "data")
	}
	if inputs.indices, err = valueToTensor(indicesDType, c.Indices); err != nil {
		return nil, errors.WithMessage(err, "indices")
	}
	if inputs.updates, err = valueToTensor(dtype, c.Updates); err != nil {
		return nil, errors.WithMessage(err, "updates")
	}
	if c.Axis == nil {
		return nil, errors.New("axis is missing")
	}
	if inputs.axis, err = valueToTensor(dtypes.Int64, c.Axis); err != nil {
		return nil, errors.WithMessage(err, "axis")
	}
	if c.Expected != nil {
		if inputs.expected, err = valueToTensor(dtype, c.Expected); err != nil {
			return nil, errors.WithMessage(err, "expected")
		}
	}
	return inputs, nil
}

// parseDType accepts the DType names, in any case (e.g.: "float32" or "Float32").
// Only the dtypes in supported are accepted.
func parseDType(name string, defaultDType dtypes.DType, supported map[dtypes.DType]bool) (dtypes.DType, error) {
	dtype := defaultDType
	if name != "" {
		var found bool
		dtype, found = dtypes.MapOfNames[name]
		if !found {
			for key, value := range dtypes.MapOfNames {
				if strings.EqualFold(key, name) {
					dtype, found = value, true
					break
				}
			}
		}
		if !found {
			return dtypes.InvalidDType, errors.Errorf("unknown dtype %q", name)
		}
	}
	if !supported[dtype] {
		return dtypes.InvalidDType, errors.Errorf("dtype %s not supported by the backend", dtype)
	}
	return dtype, nil
}

// flattenValue returns the leaf values of the nested lists and its dimensions.
// All lists at the same depth must have the same length.
func flattenValue(value any) (flat []any, dimensions []int, err error) {
	list, isList := value.([]any)
	if !isList {
		return []any{value}, nil, nil
	}
	if len(list) == 0 {
		return nil, []int{0}, nil
	}
	var subDimensions []int
	for ii, element := range list {
		subFlat, subDims, err := flattenValue(element)
		if err != nil {
			return nil, nil, err
		}
		if ii == 0 {
			subDimensions = subDims
		} else if !slices.Equal(subDims, subDimensions) {
			return nil, nil, errors.Errorf("ragged list: element #%d has dimensions %v, but element #0 has %v",
				ii, subDims, subDimensions)
		}
		flat = append(flat, subFlat...)
	}
	return flat, append([]int{len(list)}, subDimensions...), nil
}

// valueToTensor converts a YAML value (a scalar or nested lists) to a tensor of the given dtype.
func valueToTensor(dtype dtypes.DType, value any) (*tensors.Tensor, error) {
	flat, dimensions, err := flattenValue(value)
	if err != nil {
		return nil, err
	}
	shape := shapes.Make(dtype, dimensions...)
	flatV := reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), len(flat), len(flat))
	for ii, leaf := range flat {
		if err = setLeaf(flatV.Index(ii), dtype, leaf); err != nil {
			return nil, errors.WithMessagef(err, "element #%d", ii)
		}
	}
	return tensors.FromFlat(shape, flatV.Interface()), nil
}

func setLeaf(dst reflect.Value, dtype dtypes.DType, leaf any) error {
	if dtype == dtypes.Bool {
		v, ok := leaf.(bool)
		if !ok {
			return errors.Errorf("value %v (%T) is not a bool", leaf, leaf)
		}
		dst.SetBool(v)
		return nil
	}
	var number float64
	var integer int64
	var isInteger bool
	switch v := leaf.(type) {
	case int:
		integer, number, isInteger = int64(v), float64(v), true
	case int64:
		integer, number, isInteger = v, float64(v), true
	case uint64:
		// Only values that don't fit an int64 are decoded as uint64.
		if !dtype.IsUnsigned() || dst.OverflowUint(v) {
			return errors.Errorf("value %d overflows %s", v, dtype)
		}
		dst.SetUint(v)
		return nil
	case float64:
		number = v
	default:
		return errors.Errorf("value %v (%T) is not a number", leaf, leaf)
	}
	switch {
	case dtype == dtypes.Float16:
		dst.Set(reflect.ValueOf(float16.Fromfloat32(float32(number))))
	case dtype == dtypes.BFloat16:
		dst.Set(reflect.ValueOf(bfloat16.FromFloat32(float32(number))))
	case dtype.IsFloat():
		dst.SetFloat(number)
	case !isInteger:
		return errors.Errorf("value %v is not an integer, as required by %s", leaf, dtype)
	case dtype.IsUnsigned():
		if integer < 0 || dst.OverflowUint(uint64(integer)) {
			return errors.Errorf("value %d out of range for %s", integer, dtype)
		}
		dst.SetUint(uint64(integer))
	case dtype.IsInt():
		if dst.OverflowInt(integer) {
			return errors.Errorf("value %d out of range for %s", integer, dtype)
		}
		dst.SetInt(integer)
	default:
		return errors.Errorf("dtype %s not supported in cases", dtype)
	}
	return nil
}

// matches compares the output with the expected value of the case. Floating point values are compared with
// a tolerance, larger for the half-precision types.
func matches(output *tensors.Tensor, inputs *caseInputs) bool {
	dtype := output.DType()
	switch {
	case dtype == dtypes.Float16 || dtype == dtypes.BFloat16:
		return output.InDelta(inputs.expected, 1e-2)
	case dtype.IsFloat():
		return output.InDelta(inputs.expected, 1e-5)
	default:
		return output.Equal(inputs.expected)
	}
}
