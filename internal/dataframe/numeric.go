package dataframe

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paveg/sectorcast/internal/errors"
	"golang.org/x/exp/constraints"
)

// Number is any Go numeric type a column can hold.
type Number interface {
	constraints.Integer | constraints.Float
}

// IsNumeric reports whether the Arrow type is an integer or floating type.
func IsNumeric(dt arrow.DataType) bool {
	return IsInteger(dt) || dt.ID() == arrow.FLOAT64 || dt.ID() == arrow.FLOAT32
}

// IsInteger reports whether the Arrow type is a signed integer type.
func IsInteger(dt arrow.DataType) bool {
	//nolint:exhaustive // only signed integers are produced by the readers
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64:
		return true
	default:
		return false
	}
}

// Valid reports whether slot i is present under the nil-means-all-valid convention.
func Valid(valid []bool, i int) bool {
	return valid == nil || valid[i]
}

// Float64Values converts any numeric column to float64. The second result is the validity
// mask, nil when the column has no nulls.
func Float64Values(s ISeries) ([]float64, []bool, error) {
	arr := s.Array()
	defer arr.Release()

	switch a := arr.(type) {
	case *array.Float64:
		return convert[float64, float64](a.Float64Values(), arr), validity(arr), nil
	case *array.Float32:
		return convert[float32, float64](a.Float32Values(), arr), validity(arr), nil
	case *array.Int64:
		return convert[int64, float64](a.Int64Values(), arr), validity(arr), nil
	case *array.Int32:
		return convert[int32, float64](a.Int32Values(), arr), validity(arr), nil
	case *array.Int16:
		return convert[int16, float64](a.Int16Values(), arr), validity(arr), nil
	case *array.Int8:
		return convert[int8, float64](a.Int8Values(), arr), validity(arr), nil
	default:
		return nil, nil, errors.NewUnsupportedTypeError("Float64Values", s.Name(), arr.DataType().String())
	}
}

// Int64Values converts an integer column to int64 with its validity mask.
func Int64Values(s ISeries) ([]int64, []bool, error) {
	arr := s.Array()
	defer arr.Release()

	switch a := arr.(type) {
	case *array.Int64:
		return convert[int64, int64](a.Int64Values(), arr), validity(arr), nil
	case *array.Int32:
		return convert[int32, int64](a.Int32Values(), arr), validity(arr), nil
	case *array.Int16:
		return convert[int16, int64](a.Int16Values(), arr), validity(arr), nil
	case *array.Int8:
		return convert[int8, int64](a.Int8Values(), arr), validity(arr), nil
	default:
		return nil, nil, errors.NewUnsupportedTypeError("Int64Values", s.Name(), arr.DataType().String())
	}
}

// StringValues returns the values of a string column.
func StringValues(s ISeries) ([]string, error) {
	arr := s.Array()
	defer arr.Release()

	a, ok := arr.(*array.String)
	if !ok {
		return nil, errors.NewUnsupportedTypeError("StringValues", s.Name(), arr.DataType().String())
	}
	out := make([]string, a.Len())
	for i := range out {
		if a.IsValid(i) {
			out[i] = a.Value(i)
		}
	}
	return out, nil
}

// MinMax returns the range of the present values; ok is false when none are present.
func MinMax[T Number](values []T, valid []bool) (lo, hi T, ok bool) {
	for i, v := range values {
		if !Valid(valid, i) {
			continue
		}
		if !ok {
			lo, hi, ok = v, v, true
			continue
		}
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi, ok
}

func convert[S, D Number](values []S, arr arrow.Array) []D {
	out := make([]D, len(values))
	for i, v := range values {
		if arr.IsNull(i) {
			continue
		}
		out[i] = D(v)
	}
	return out
}

func validity(arr arrow.Array) []bool {
	if arr.NullN() == 0 {
		return nil
	}
	valid := make([]bool, arr.Len())
	for i := range valid {
		valid[i] = arr.IsValid(i)
	}
	return valid
}
