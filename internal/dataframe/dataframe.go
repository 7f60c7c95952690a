// Package dataframe provides the column-ordered table the feature pipeline is built on.
//
// Frames derived with Select, Drop, Rename or WithColumn share series with their
// source; only the last owner should call Release.
package dataframe

import (
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/paveg/sectorcast/internal/errors"
	"github.com/paveg/sectorcast/internal/series"
)

// DataFrame represents a table of data with typed columns
type DataFrame struct {
	columns map[string]ISeries
	order   []string // Maintains column order
}

// New creates a new DataFrame from a slice of ISeries
func New(series ...ISeries) *DataFrame {
	columns := make(map[string]ISeries)
	order := make([]string, 0, len(series))

	for _, s := range series {
		name := s.Name()
		if _, dup := columns[name]; !dup {
			order = append(order, name)
		}
		columns[name] = s
	}

	return &DataFrame{
		columns: columns,
		order:   order,
	}
}

// Columns returns the names of all columns in order
func (df *DataFrame) Columns() []string {
	if len(df.order) == 0 {
		return []string{}
	}
	return append([]string(nil), df.order...)
}

// Len returns the number of rows (assumes all columns have same length)
func (df *DataFrame) Len() int {
	if len(df.order) == 0 {
		return 0
	}
	return df.columns[df.order[0]].Len()
}

// Width returns the number of columns
func (df *DataFrame) Width() int {
	return len(df.columns)
}

// Column returns the series for the given column name
func (df *DataFrame) Column(name string) (ISeries, bool) {
	series, exists := df.columns[name]
	return series, exists
}

// HasColumn checks if a column exists
func (df *DataFrame) HasColumn(name string) bool {
	_, exists := df.columns[name]
	return exists
}

// Select returns a new DataFrame with only the specified columns
func (df *DataFrame) Select(names ...string) *DataFrame {
	selected := make([]ISeries, 0, len(names))
	for _, name := range names {
		if s, exists := df.columns[name]; exists {
			selected = append(selected, s)
		}
	}
	return New(selected...)
}

// Drop returns a new DataFrame without the specified columns
func (df *DataFrame) Drop(names ...string) *DataFrame {
	dropSet := make(map[string]bool, len(names))
	for _, name := range names {
		dropSet[name] = true
	}

	kept := make([]ISeries, 0, len(df.order))
	for _, name := range df.order {
		if !dropSet[name] {
			kept = append(kept, df.columns[name])
		}
	}
	return New(kept...)
}

// WithColumn returns a new DataFrame with s appended, or replacing the column of the same name in place.
func (df *DataFrame) WithColumn(s ISeries) (*DataFrame, error) {
	if df.Width() > 0 && s.Len() != df.Len() {
		return nil, errors.NewDataIntegrityError("WithColumn",
			fmt.Sprintf("column %s has %d rows, frame has %d", s.Name(), s.Len(), df.Len()))
	}

	out := make([]ISeries, 0, len(df.order)+1)
	replaced := false
	for _, name := range df.order {
		if name == s.Name() {
			out = append(out, s)
			replaced = true
			continue
		}
		out = append(out, df.columns[name])
	}
	if !replaced {
		out = append(out, s)
	}
	return New(out...), nil
}

// WithColumns appends several columns in order.
func (df *DataFrame) WithColumns(cols ...ISeries) (*DataFrame, error) {
	out := df
	for _, c := range cols {
		next, err := out.WithColumn(c)
		if err != nil {
			return nil, err
		}
		out = next
	}
	return out, nil
}

// Rename returns a new DataFrame with columns renamed according to mapping.
// Columns absent from mapping keep their name.
func (df *DataFrame) Rename(mapping map[string]string) (*DataFrame, error) {
	out := make([]ISeries, 0, len(df.order))
	seen := make(map[string]bool, len(df.order))
	for _, name := range df.order {
		s := df.columns[name]
		newName, ok := mapping[name]
		if ok && newName != name {
			renamed, err := renameSeries(s, newName)
			if err != nil {
				return nil, err
			}
			s = renamed
		}
		if seen[s.Name()] {
			return nil, errors.NewSchemaError("Rename", s.Name(), "duplicate column name after rename")
		}
		seen[s.Name()] = true
		out = append(out, s)
	}
	return New(out...), nil
}

// String returns a string representation of the DataFrame
func (df *DataFrame) String() string {
	if len(df.columns) == 0 {
		return "DataFrame[empty]"
	}

	parts := []string{fmt.Sprintf("DataFrame[%dx%d]", df.Len(), df.Width())}

	for _, name := range df.order {
		series := df.columns[name]
		parts = append(parts, fmt.Sprintf("  %s: %s", name, series.DataType().String()))
	}

	return strings.Join(parts, "\n")
}

// Release releases all underlying Arrow memory
func (df *DataFrame) Release() {
	for _, series := range df.columns {
		series.Release()
	}
}

func renameSeries(s ISeries, name string) (ISeries, error) {
	arr := s.Array()
	defer arr.Release()
	return SeriesFromArray(name, arr)
}

// SeriesFromArray wraps an Arrow array in the matching typed Series.
func SeriesFromArray(name string, arr arrow.Array) (ISeries, error) {
	switch arr.(type) {
	case *array.String:
		return series.FromArray[string](name, arr), nil
	case *array.Int64:
		return series.FromArray[int64](name, arr), nil
	case *array.Int32:
		return series.FromArray[int32](name, arr), nil
	case *array.Int16:
		return series.FromArray[int16](name, arr), nil
	case *array.Int8:
		return series.FromArray[int8](name, arr), nil
	case *array.Float64:
		return series.FromArray[float64](name, arr), nil
	case *array.Float32:
		return series.FromArray[float32](name, arr), nil
	case *array.Boolean:
		return series.FromArray[bool](name, arr), nil
	default:
		return nil, errors.NewUnsupportedTypeError("SeriesFromArray", name, arr.DataType().String())
	}
}
