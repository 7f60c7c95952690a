package dataframe

import (
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/errors"
	"github.com/paveg/sectorcast/internal/series"
)

// FillNull replaces nulls in the named columns with value, converted to each column's type.
// With no names given every column is filled.
func (df *DataFrame) FillNull(value float64, columns ...string) (*DataFrame, error) {
	if len(columns) == 0 {
		columns = df.order
	}
	mem := memory.NewGoAllocator()

	out := df
	for _, name := range columns {
		s, ok := df.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFoundError("FillNull", name)
		}
		filled, err := fillSeries(s, value, mem)
		if err != nil {
			return nil, err
		}
		if filled == nil {
			continue
		}
		if out, err = out.WithColumn(filled); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// fillSeries returns nil when s has no nulls.
func fillSeries(s ISeries, value float64, mem memory.Allocator) (ISeries, error) {
	arr := s.Array()
	defer arr.Release()
	if arr.NullN() == 0 {
		return nil, nil
	}

	name := s.Name()
	switch a := arr.(type) {
	case *array.Float64:
		return fillTyped(name, arr, a.Value, value, mem)
	case *array.Float32:
		return fillTyped(name, arr, a.Value, float32(value), mem)
	case *array.Int64:
		return fillTyped(name, arr, a.Value, int64(value), mem)
	case *array.Int32:
		return fillTyped(name, arr, a.Value, int32(value), mem)
	case *array.Int16:
		return fillTyped(name, arr, a.Value, int16(value), mem)
	case *array.Int8:
		return fillTyped(name, arr, a.Value, int8(value), mem)
	case *array.String:
		return fillTyped(name, arr, a.Value, strconv.FormatFloat(value, 'g', -1, 64), mem)
	default:
		return nil, errors.NewUnsupportedTypeError("FillNull", name, arr.DataType().String())
	}
}

func fillTyped[T any](name string, arr arrow.Array, get func(int) T, fill T, mem memory.Allocator) (ISeries, error) {
	values := make([]T, arr.Len())
	for i := range values {
		if arr.IsNull(i) {
			values[i] = fill
			continue
		}
		values[i] = get(i)
	}
	s, err := series.NewSafe(name, values, mem)
	if err != nil {
		return nil, err
	}
	return s, nil
}
