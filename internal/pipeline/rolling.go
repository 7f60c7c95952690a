package pipeline

import (
	"context"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/errors"
	"github.com/paveg/sectorcast/internal/parallel"
	"github.com/paveg/sectorcast/internal/series"
	"github.com/paveg/sectorcast/internal/validation"
)

// LabelColumn holds the one-step-ahead target.
const LabelColumn = "label"

// DefaultWindows are the trailing window lengths, in months.
var DefaultWindows = []int{3, 6, 12}

// Columns that never get rolling features.
var rollingDenylist = map[string]bool{
	SectorIDColumn: true,
	TimeColumn:     true,
	MonthNumColumn: true,
	LabelColumn:    true,
}

// RollingOptions configures AddRollingFeatures.
type RollingOptions struct {
	Windows []int
	// Workers > 1 computes source columns concurrently; output is identical.
	Workers int
}

// RollingColumnNames returns the feature names generated for one source column,
// in output order: window by window, mean then min then max.
func RollingColumnNames(column string, windows []int) []string {
	names := make([]string, 0, 3*len(windows))
	for _, p := range windows {
		names = append(names,
			fmt.Sprintf("%s_mean%d", column, p),
			fmt.Sprintf("%s_min%d", column, p),
			fmt.Sprintf("%s_max%d", column, p),
		)
	}
	return names
}

// AddRollingFeatures appends trailing mean, min and max over each window for every
// numeric column outside the denylist. Statistics are computed within each
// sector_id group over at most p most recent rows, with nulls skipped and a
// single present value enough to produce a result. The frame must be sorted by
// sector_id then time.
func AddRollingFeatures(ctx context.Context, df *dataframe.DataFrame, opts RollingOptions, mem memory.Allocator) (*dataframe.DataFrame, error) {
	const op = "AddRollingFeatures"
	if err := validation.ValidateColumns(df, op, SectorIDColumn, TimeColumn); err != nil {
		return nil, err
	}

	windows := opts.Windows
	if len(windows) == 0 {
		windows = DefaultWindows
	}
	for _, p := range windows {
		if p <= 0 {
			return nil, errors.NewInvalidInputError(op, fmt.Sprintf("window length must be positive, got %d", p))
		}
	}

	sorted, err := df.IsSortedBy(SectorIDColumn, TimeColumn)
	if err != nil {
		return nil, err
	}
	if !sorted {
		return nil, errors.NewDataIntegrityError(op, "rows are not ordered by sector_id, time")
	}

	bounds, err := df.GroupBoundaries(SectorIDColumn)
	if err != nil {
		return nil, err
	}

	var sources []string
	for _, name := range df.Columns() {
		col, _ := df.Column(name)
		if rollingDenylist[name] || !dataframe.IsNumeric(col.DataType()) {
			continue
		}
		for _, generated := range RollingColumnNames(name, windows) {
			if df.HasColumn(generated) {
				return nil, errors.NewSchemaError(op, generated, "rolling feature name already in use")
			}
		}
		sources = append(sources, name)
	}

	compute := func(_ context.Context, _ int, name string) ([]dataframe.ISeries, error) {
		col, _ := df.Column(name)
		return rollColumn(col, bounds, windows, mem)
	}

	var results [][]dataframe.ISeries
	if opts.Workers > 1 && len(sources) > 1 {
		pool := parallel.NewWorkerPool(opts.Workers)
		defer pool.Close()
		if results, err = parallel.ProcessIndexed(ctx, pool, sources, compute); err != nil {
			return nil, err
		}
	} else {
		results = make([][]dataframe.ISeries, len(sources))
		for i, name := range sources {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if results[i], err = compute(ctx, i, name); err != nil {
				return nil, err
			}
		}
	}

	all := make([]dataframe.ISeries, 0, df.Width()+len(sources)*3*len(windows))
	for _, name := range df.Columns() {
		col, _ := df.Column(name)
		all = append(all, col)
	}
	for _, generated := range results {
		all = append(all, generated...)
	}
	return dataframe.New(all...), nil
}

func rollColumn(col dataframe.ISeries, bounds, windows []int, mem memory.Allocator) ([]dataframe.ISeries, error) {
	values, valid, err := dataframe.Float64Values(col)
	if err != nil {
		return nil, err
	}

	names := RollingColumnNames(col.Name(), windows)
	out := make([]dataframe.ISeries, 0, len(names))
	for w, p := range windows {
		stats := rollingWindow(values, valid, bounds, p)
		for k, data := range [][]float64{stats.mean, stats.min, stats.max} {
			s, err := series.NewNullable(names[3*w+k], data, stats.valid, mem)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
	}
	return out, nil
}

type windowStats struct {
	mean, min, max []float64
	valid          []bool // nil when every row has at least one present value
}

// rollingWindow computes trailing statistics over at most p rows inside each
// group [bounds[g], bounds[g+1]). Running sums give the mean; monotonic index
// deques give min and max, so each group costs O(rows).
func rollingWindow(values []float64, valid []bool, bounds []int, p int) windowStats {
	n := len(values)
	stats := windowStats{
		mean: make([]float64, n),
		min:  make([]float64, n),
		max:  make([]float64, n),
	}
	var outValid []bool

	minQ := make([]int, 0, p)
	maxQ := make([]int, 0, p)

	for g := 0; g+1 < len(bounds); g++ {
		start, end := bounds[g], bounds[g+1]
		minQ, maxQ = minQ[:0], maxQ[:0]
		var sum float64
		count := 0

		for i := start; i < end; i++ {
			if dataframe.Valid(valid, i) {
				v := values[i]
				sum += v
				count++
				for len(minQ) > 0 && values[minQ[len(minQ)-1]] >= v {
					minQ = minQ[:len(minQ)-1]
				}
				minQ = append(minQ, i)
				for len(maxQ) > 0 && values[maxQ[len(maxQ)-1]] <= v {
					maxQ = maxQ[:len(maxQ)-1]
				}
				maxQ = append(maxQ, i)
			}

			if out := i - p; out >= start && dataframe.Valid(valid, out) {
				sum -= values[out]
				count--
			}
			for len(minQ) > 0 && minQ[0] <= i-p {
				minQ = minQ[1:]
			}
			for len(maxQ) > 0 && maxQ[0] <= i-p {
				maxQ = maxQ[1:]
			}

			if count == 0 {
				if outValid == nil {
					outValid = make([]bool, n)
					for j := 0; j < i; j++ {
						outValid[j] = true
					}
				}
				continue
			}
			if outValid != nil {
				outValid[i] = true
			}
			stats.mean[i] = sum / float64(count)
			stats.min[i] = values[minQ[0]]
			stats.max[i] = values[maxQ[0]]
		}
	}

	stats.valid = outValid
	return stats
}
