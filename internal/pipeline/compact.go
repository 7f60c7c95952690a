package pipeline

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/series"
)

// TargetColumn is the revenue measurement the label is built from.
const TargetColumn = "nht_amount_new_house_transactions"

// Columns Compact never drops even when they are all zero.
var protectedColumns = map[string]bool{
	SectorIDColumn: true,
	TimeColumn:     true,
	MonthNumColumn: true,
	TargetColumn:   true,
}

// Key columns removed once sector_id and time encode them.
var redundantKeys = []string{MonthColumn, SectorColumn, YearColumn}

// Compact drops numeric columns whose values are all zero, narrows integer
// columns to the smallest of int8 or int16 that holds their range, and
// then drops the month, sector and year key columns. Values never change.
func Compact(df *dataframe.DataFrame, mem memory.Allocator) (*dataframe.DataFrame, error) {
	kept := make([]dataframe.ISeries, 0, df.Width())

	for _, name := range df.Columns() {
		col, _ := df.Column(name)
		dt := col.DataType()
		if !dataframe.IsNumeric(dt) {
			kept = append(kept, col)
			continue
		}

		if !dataframe.IsInteger(dt) {
			values, valid, err := dataframe.Float64Values(col)
			if err != nil {
				return nil, err
			}
			if lo, hi, ok := dataframe.MinMax(values, valid); ok && lo == 0 && hi == 0 && !protectedColumns[name] {
				continue
			}
			kept = append(kept, col)
			continue
		}

		values, valid, err := dataframe.Int64Values(col)
		if err != nil {
			return nil, err
		}
		lo, hi, ok := dataframe.MinMax(values, valid)
		if !ok {
			kept = append(kept, col)
			continue
		}
		if lo == 0 && hi == 0 && !protectedColumns[name] {
			continue
		}

		narrowed, err := narrowInt(name, values, valid, lo, hi, dt, mem)
		if err != nil {
			return nil, err
		}
		if narrowed == nil {
			narrowed = col
		}
		kept = append(kept, narrowed)
	}

	return dataframe.New(kept...).Drop(redundantKeys...), nil
}

// intWidth returns the bit width of a signed integer type.
func intWidth(dt arrow.DataType) int {
	//nolint:exhaustive // only signed integers reach here
	switch dt.ID() {
	case arrow.INT8:
		return 8
	case arrow.INT16:
		return 16
	case arrow.INT32:
		return 32
	default:
		return 64
	}
}

// narrowInt returns nil when the column is already at its smallest width.
func narrowInt(name string, values []int64, valid []bool, lo, hi int64, dt arrow.DataType, mem memory.Allocator) (dataframe.ISeries, error) {
	current := intWidth(dt)
	switch {
	case current > 8 && lo >= math.MinInt8 && hi <= math.MaxInt8:
		return narrowTo[int8](name, values, valid, mem)
	case current > 16 && lo >= math.MinInt16 && hi <= math.MaxInt16:
		return narrowTo[int16](name, values, valid, mem)
	default:
		return nil, nil
	}
}

func narrowTo[D int8 | int16](name string, values []int64, valid []bool, mem memory.Allocator) (dataframe.ISeries, error) {
	out := make([]D, len(values))
	for i, v := range values {
		if dataframe.Valid(valid, i) {
			out[i] = D(v)
		}
	}
	s, err := series.NewNullable(name, out, valid, mem)
	if err != nil {
		return nil, err
	}
	return s, nil
}
