package trainer

import (
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/errors"
	"github.com/paveg/sectorcast/internal/series"
	"gonum.org/v1/gonum/mat"
)

// Matrix lays out the named columns of df as a dense row-major matrix.
// Null cells become 0, the feature mean once scaled.
func Matrix(df *dataframe.DataFrame, features []string) (*mat.Dense, error) {
	const op = "Matrix"
	if len(features) == 0 {
		return nil, errors.NewInvalidInputError(op, "no feature columns")
	}
	if df.Len() == 0 {
		return nil, errors.NewDataIntegrityError(op, "frame has no rows")
	}

	n, d := df.Len(), len(features)
	data := make([]float64, n*d)
	for j, name := range features {
		col, ok := df.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFoundError(op, name)
		}
		values, valid, err := dataframe.Float64Values(col)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			if dataframe.Valid(valid, i) {
				data[i*d+j] = v
			}
		}
	}
	return mat.NewDense(n, d, data), nil
}

// Target returns the label column; a null label is an error.
func Target(df *dataframe.DataFrame, column string) ([]float64, error) {
	col, ok := df.Column(column)
	if !ok {
		return nil, errors.NewColumnNotFoundError("Target", column)
	}
	values, valid, err := dataframe.Float64Values(col)
	if err != nil {
		return nil, err
	}
	if valid != nil {
		for i := range values {
			if !valid[i] {
				return nil, errors.NewDataIntegrityError("Target", "label has missing values")
			}
		}
	}
	return values, nil
}

// AddMissing appends a zero-filled float64 column for every name df lacks.
func AddMissing(df *dataframe.DataFrame, columns []string, mem memory.Allocator) (*dataframe.DataFrame, []string, error) {
	var added []string
	out := df
	for _, name := range columns {
		if out.HasColumn(name) {
			continue
		}
		next, err := out.WithColumn(series.New(name, make([]float64, df.Len()), mem))
		if err != nil {
			return nil, nil, err
		}
		out = next
		added = append(added, name)
	}
	return out, added, nil
}
