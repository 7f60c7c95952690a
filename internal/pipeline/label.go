package pipeline

import (
	"math"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/errors"
	"github.com/paveg/sectorcast/internal/series"
	"github.com/paveg/sectorcast/internal/validation"
)

// Cyclical encodings of the calendar month, keyed by period.
var cyclicalPeriods = []struct {
	cos, sin string
	period   float64
}{
	{"cs", "sn", 12},
	{"cs6", "sn6", 6},
	{"cs4", "sn4", 4},
}

// AddLabel appends the label column: the target value of the next row in the
// same sector, provided that row is exactly one month later. The last month of
// each sector, and any row whose successor target is null, gets a null label.
func AddLabel(df *dataframe.DataFrame, mem memory.Allocator) (*dataframe.DataFrame, error) {
	const op = "AddLabel"
	if err := validation.ValidateColumns(df, op, SectorIDColumn, TimeColumn, TargetColumn); err != nil {
		return nil, err
	}
	if df.HasColumn(LabelColumn) {
		return nil, errors.NewSchemaError(op, LabelColumn, "label column already present")
	}

	sectorCol, _ := df.Column(SectorIDColumn)
	timeCol, _ := df.Column(TimeColumn)
	targetCol, _ := df.Column(TargetColumn)

	sectors, _, err := dataframe.Int64Values(sectorCol)
	if err != nil {
		return nil, err
	}
	times, _, err := dataframe.Int64Values(timeCol)
	if err != nil {
		return nil, err
	}
	target, targetValid, err := dataframe.Float64Values(targetCol)
	if err != nil {
		return nil, err
	}

	n := df.Len()
	labels := make([]float64, n)
	valid := make([]bool, n)
	for i := 0; i+1 < n; i++ {
		next := i + 1
		if sectors[next] != sectors[i] || times[next] != times[i]+1 || !dataframe.Valid(targetValid, next) {
			continue
		}
		labels[i] = target[next]
		valid[i] = true
	}

	label, err := series.NewNullable(LabelColumn, labels, valid, mem)
	if err != nil {
		return nil, err
	}
	return df.WithColumn(label)
}

// DropZeroLabels removes rows whose label is exactly zero. Null labels are kept.
func DropZeroLabels(df *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	col, ok := df.Column(LabelColumn)
	if !ok {
		return nil, errors.NewColumnNotFoundError("DropZeroLabels", LabelColumn)
	}
	labels, valid, err := dataframe.Float64Values(col)
	if err != nil {
		return nil, err
	}

	mask := make([]bool, len(labels))
	for i, v := range labels {
		mask[i] = !dataframe.Valid(valid, i) || v != 0
	}
	return df.Filter(mask)
}

// AddCyclical appends cosine and sine encodings of month_num-1 for periods
// 12, 6 and 4, then drops sector_id.
func AddCyclical(df *dataframe.DataFrame, mem memory.Allocator) (*dataframe.DataFrame, error) {
	const op = "AddCyclical"
	col, ok := df.Column(MonthNumColumn)
	if !ok {
		return nil, errors.NewColumnNotFoundError(op, MonthNumColumn)
	}
	months, valid, err := dataframe.Int64Values(col)
	if err != nil {
		return nil, err
	}
	if valid != nil {
		return nil, errors.NewDataIntegrityError(op, "month_num contains nulls")
	}

	added := make([]dataframe.ISeries, 0, 2*len(cyclicalPeriods))
	for _, c := range cyclicalPeriods {
		cos := make([]float64, len(months))
		sin := make([]float64, len(months))
		for i, m := range months {
			angle := 2 * math.Pi * float64(m-1) / c.period
			cos[i] = math.Cos(angle)
			sin[i] = math.Sin(angle)
		}
		added = append(added,
			series.New(c.cos, cos, mem),
			series.New(c.sin, sin, mem),
		)
	}

	out, err := df.WithColumns(added...)
	if err != nil {
		return nil, err
	}
	return out.Drop(SectorIDColumn), nil
}
