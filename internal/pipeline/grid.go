package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/errors"
	"github.com/paveg/sectorcast/internal/series"
	"github.com/paveg/sectorcast/internal/validation"
)

// Grid columns.
const (
	SectorIDColumn = "sector_id"
	MonthNumColumn = "month_num"
	TimeColumn     = "time"
)

const (
	// SyntheticSector is added to every grid to stand in for a sector with no history.
	SyntheticSector = "sector 95"
	// EpochYear is the year whose January has time index 0.
	EpochYear = 2019
)

var monthCodes = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

// ParseSector returns N for a label of the form "sector N".
func ParseSector(label string) (int64, error) {
	fields := strings.Fields(label)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "sector") {
		return 0, errors.NewSchemaError("ParseSector", SectorColumn, fmt.Sprintf("malformed sector label %q", label))
	}
	id, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || id < 0 {
		return 0, errors.NewSchemaError("ParseSector", SectorColumn, fmt.Sprintf("malformed sector label %q", label))
	}
	return id, nil
}

// ParseMonth splits "YYYY-MM", "YYYY-Mon" or "YYYY Mon" into year and calendar month.
func ParseMonth(label string) (year, month int, err error) {
	malformed := errors.NewSchemaError("ParseMonth", MonthColumn, fmt.Sprintf("malformed month label %q", label))

	s := strings.TrimSpace(label)
	sep := strings.IndexAny(s, "- ")
	if sep <= 0 {
		return 0, 0, malformed
	}
	if year, err = strconv.Atoi(s[:sep]); err != nil {
		return 0, 0, malformed
	}

	part := strings.TrimSpace(s[sep+1:])
	if n, convErr := strconv.Atoi(part); convErr == nil {
		month = n
	} else {
		month = monthCodes[strings.ToLower(part)]
	}
	if month < 1 || month > 12 {
		return 0, 0, malformed
	}
	return year, month, nil
}

// TimeIndex numbers months consecutively from January of EpochYear.
func TimeIndex(year, month int) int64 {
	return int64((year-EpochYear)*12 + month - 1)
}

type sectorKey struct {
	label string
	id    int64
}

type monthKey struct {
	label       string
	year, month int
	time        int64
}

// BuildGrid returns every (sector, month) pair of the revenue table, plus the
// synthetic sector for every month, sorted by sector_id then time.
// Columns: month, sector, sector_id, year, month_num, time.
func BuildGrid(revenue *dataframe.DataFrame, mem memory.Allocator) (*dataframe.DataFrame, error) {
	const op = "BuildGrid"
	if err := validation.NewCompoundValidator(
		validation.NewColumnValidator(revenue, op, SectorColumn, MonthColumn),
		validation.NewNotEmptyValidator(revenue, op, "revenue table"),
	).Validate(); err != nil {
		return nil, err
	}

	sectorLabels, err := keyLabels(revenue, SectorColumn, op)
	if err != nil {
		return nil, err
	}
	monthLabels, err := keyLabels(revenue, MonthColumn, op)
	if err != nil {
		return nil, err
	}

	sectors, err := distinctSectors(append(sectorLabels, SyntheticSector))
	if err != nil {
		return nil, err
	}
	months, err := distinctMonths(monthLabels)
	if err != nil {
		return nil, err
	}

	n := len(sectors) * len(months)
	var (
		monthCol  = make([]string, 0, n)
		sectorCol = make([]string, 0, n)
		idCol     = make([]int64, 0, n)
		yearCol   = make([]int64, 0, n)
		numCol    = make([]int64, 0, n)
		timeCol   = make([]int64, 0, n)
	)
	for _, s := range sectors {
		for _, m := range months {
			monthCol = append(monthCol, m.label)
			sectorCol = append(sectorCol, s.label)
			idCol = append(idCol, s.id)
			yearCol = append(yearCol, int64(m.year))
			numCol = append(numCol, int64(m.month))
			timeCol = append(timeCol, m.time)
		}
	}

	return dataframe.New(
		series.New(MonthColumn, monthCol, mem),
		series.New(SectorColumn, sectorCol, mem),
		series.New(SectorIDColumn, idCol, mem),
		series.New(YearColumn, yearCol, mem),
		series.New(MonthNumColumn, numCol, mem),
		series.New(TimeColumn, timeCol, mem),
	), nil
}

func keyLabels(df *dataframe.DataFrame, column, op string) ([]string, error) {
	col, _ := df.Column(column)
	values, err := dataframe.StringValues(col)
	if err != nil {
		return nil, errors.NewSchemaError(op, column, "key column must be text")
	}
	for i := range values {
		if col.IsNull(i) {
			return nil, errors.NewSchemaError(op, column, fmt.Sprintf("missing value at row %d", i))
		}
	}
	return values, nil
}

// distinctSectors parses each label once and sorts by id. Two labels with the
// same id would produce duplicate grid rows and are rejected.
func distinctSectors(labels []string) ([]sectorKey, error) {
	byLabel := make(map[string]bool, len(labels))
	byID := make(map[int64]string, len(labels))
	var out []sectorKey

	for _, label := range labels {
		if byLabel[label] {
			continue
		}
		id, err := ParseSector(label)
		if err != nil {
			return nil, err
		}
		if prev, dup := byID[id]; dup {
			return nil, errors.NewSchemaError("BuildGrid", SectorColumn,
				fmt.Sprintf("labels %q and %q both map to sector_id %d", prev, label, id))
		}
		byLabel[label] = true
		byID[id] = label
		out = append(out, sectorKey{label: label, id: id})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out, nil
}

func distinctMonths(labels []string) ([]monthKey, error) {
	byLabel := make(map[string]bool, len(labels))
	byTime := make(map[int64]string, len(labels))
	var out []monthKey

	for _, label := range labels {
		if byLabel[label] {
			continue
		}
		year, month, err := ParseMonth(label)
		if err != nil {
			return nil, err
		}
		t := TimeIndex(year, month)
		if prev, dup := byTime[t]; dup {
			return nil, errors.NewSchemaError("BuildGrid", MonthColumn,
				fmt.Sprintf("labels %q and %q denote the same month", prev, label))
		}
		byLabel[label] = true
		byTime[t] = label
		out = append(out, monthKey{label: label, year: year, month: month, time: t})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].time < out[j].time })
	return out, nil
}
