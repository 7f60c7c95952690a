package dataframe

import (
	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/errors"
	"github.com/paveg/sectorcast/internal/series"
)

// Take builds a new DataFrame from the given row indices, in order.
// An index of -1 produces a null row, which is how left joins mark unmatched rows.
func (df *DataFrame) Take(indices []int) (*DataFrame, error) {
	mem := memory.NewGoAllocator()
	out := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		s, err := TakeSeries(df.columns[name], indices, mem)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return New(out...), nil
}

// Filter keeps the rows where mask is true.
func (df *DataFrame) Filter(mask []bool) (*DataFrame, error) {
	if len(mask) != df.Len() {
		return nil, errors.NewDataIntegrityError("Filter", "mask length does not match row count")
	}
	indices := make([]int, 0, len(mask))
	for i, keep := range mask {
		if keep {
			indices = append(indices, i)
		}
	}
	return df.Take(indices)
}

// Slice creates a new DataFrame containing rows from start (inclusive) to end (exclusive)
func (df *DataFrame) Slice(start, end int) (*DataFrame, error) {
	length := df.Len()
	start = max(start, 0)
	end = min(end, length)
	if start >= end {
		return df.Take(nil)
	}
	indices := make([]int, end-start)
	for i := range indices {
		indices[i] = start + i
	}
	return df.Take(indices)
}

// TakeSeries gathers rows of a single series; -1 yields null.
func TakeSeries(s ISeries, indices []int, mem memory.Allocator) (ISeries, error) {
	arr := s.Array()
	defer arr.Release()

	name := s.Name()
	switch a := arr.(type) {
	case *array.String:
		return takeTyped(name, arr, indices, a.Value, mem)
	case *array.Int64:
		return takeTyped(name, arr, indices, a.Value, mem)
	case *array.Int32:
		return takeTyped(name, arr, indices, a.Value, mem)
	case *array.Int16:
		return takeTyped(name, arr, indices, a.Value, mem)
	case *array.Int8:
		return takeTyped(name, arr, indices, a.Value, mem)
	case *array.Float64:
		return takeTyped(name, arr, indices, a.Value, mem)
	case *array.Float32:
		return takeTyped(name, arr, indices, a.Value, mem)
	case *array.Boolean:
		return takeTyped(name, arr, indices, a.Value, mem)
	default:
		return nil, errors.NewUnsupportedTypeError("Take", name, arr.DataType().String())
	}
}

func takeTyped[T any](
	name string, arr arrow.Array, indices []int, get func(int) T, mem memory.Allocator,
) (ISeries, error) {
	values := make([]T, len(indices))
	valid := make([]bool, len(indices))
	hasNull := false
	for i, idx := range indices {
		if idx < 0 || idx >= arr.Len() || arr.IsNull(idx) {
			hasNull = true
			continue
		}
		values[i] = get(idx)
		valid[i] = true
	}
	if !hasNull {
		valid = nil
	}

	s, err := series.NewNullable(name, values, valid, mem)
	if err != nil {
		return nil, err
	}
	return s, nil
}
