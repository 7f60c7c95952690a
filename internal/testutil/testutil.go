// Package testutil provides fixtures shared by the pipeline, trainer and CLI tests:
// an allocator helper, a raw input directory with all eight tables plus the test
// index, small sector-ordered frames, and frame comparison helpers.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/go-cmp/cmp"
	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMemoryContext provides memory allocator with automatic cleanup.
type TestMemoryContext struct {
	Allocator memory.Allocator
	cleanup   func()
}

// Release performs cleanup of the memory context.
func (tmc *TestMemoryContext) Release() {
	if tmc.cleanup != nil {
		tmc.cleanup()
	}
}

// SetupMemoryTest creates a memory allocator for tests.
//
//	mem := testutil.SetupMemoryTest(t)
//	defer mem.Release()
func SetupMemoryTest(tb testing.TB) *TestMemoryContext {
	tb.Helper()
	return &TestMemoryContext{
		Allocator: memory.NewGoAllocator(),
		cleanup:   func() {},
	}
}

// Raw fixture layout: sectors 1 and 2 over four months of 2019.
//
// Revenue (amount_new_house_transactions):
//
//	sector 1: 10, 20, 30, 40
//	sector 2:  5,  0,  7,  8
//
// The grid adds sector 95 with no transactions, so its revenue is filled with 0.
var (
	FixtureMonths  = []string{"2019-Jan", "2019-Feb", "2019-Mar", "2019-Apr"}
	FixtureSectors = []string{"sector 1", "sector 2"}
	FixtureRevenue = map[string][]float64{
		"sector 1": {10, 20, 30, 40},
		"sector 2": {5, 0, 7, 8},
	}
)

// FixtureFiles holds the raw CSV content keyed by path relative to the raw data root.
func FixtureFiles() map[string]string {
	return map[string]string{
		"train/new_house_transactions.csv": `month,sector,num_new_house_transactions,amount_new_house_transactions,dead_counter
2019-Jan,sector 1,1,10,0
2019-Feb,sector 1,2,20,0
2019-Mar,sector 1,3,30,0
2019-Apr,sector 1,4,40,0
2019-Jan,sector 2,1,5,0
2019-Feb,sector 2,,0,0
2019-Mar,sector 2,2,7,0
2019-Apr,sector 2,2,8,0
`,
		"train/new_house_transactions_nearby_sectors.csv": `month,sector,num_new_house_transactions_nearby_sectors
2019-Jan,sector 1,11.5
2019-Feb,sector 1,12.5
2019-Mar,sector 1,13.5
2019-Apr,sector 1,14.5
2019-Jan,sector 2,21.5
2019-Feb,sector 2,22.5
2019-Mar,sector 2,23.5
`,
		"train/pre_owned_house_transactions.csv": `month,sector,amount_pre_owned_house_transactions
2019-Jan,sector 1,100
2019-Feb,sector 1,110
2019-Mar,sector 1,NA
2019-Apr,sector 1,130
2019-Jan,sector 2,200
2019-Feb,sector 2,210
`,
		"train/pre_owned_house_transactions_nearby_sectors.csv": `month,sector,num_pre_owned_house_transactions_nearby_sectors
2019-Jan,sector 1,3
2019-Feb,sector 2,4
`,
		"train/land_transactions.csv": `month,sector,transaction_amount
2019-Feb,sector 1,5000
2019-Mar,sector 2,7000
`,
		"train/land_transactions_nearby_sectors.csv": `month,sector,transaction_amount_nearby_sectors
2019-Jan,sector 1,900
2019-Apr,sector 2,800
`,
		"train/city_indexes.csv": `city_indicator_data_year,city_gdp_100m,total_fixed_asset_investment_10k
2017,100,1
2018,110,2
2019,120,3
2020,130,4
2021,140,5
2022,150,6
2023,160,7
2024,170,8
`,
		"train/sector_POI.csv": `sector,resident_population,office_population
sector 1,1000,
sector 2,2000,300
`,
		"test.csv": `id,new_house_transaction_amount
2019 May_sector 1,0
2019 May_sector 2,0
2019 May_sector 95,0
`,
	}
}

// FixtureOption adjusts the raw fixture before it is written.
type FixtureOption func(files map[string]string)

// WithoutFile omits one fixture file.
func WithoutFile(rel string) FixtureOption {
	return func(files map[string]string) { delete(files, rel) }
}

// WithFile replaces or adds one fixture file.
func WithFile(rel, content string) FixtureOption {
	return func(files map[string]string) { files[rel] = content }
}

// WriteRawFixture writes the raw input tree under dir and returns dir.
func WriteRawFixture(tb testing.TB, dir string, opts ...FixtureOption) string {
	tb.Helper()

	files := FixtureFiles()
	for _, opt := range opts {
		opt(files)
	}

	for rel, content := range files {
		path := filepath.Join(dir, rel)
		require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(tb, os.WriteFile(path, []byte(content), 0o600))
	}
	return dir
}

// CreateSectorFrame builds a frame sorted by (sector_id, time) with one row per
// revenue value. Months start at January 2019, so time = month_num - 1.
func CreateSectorFrame(mem memory.Allocator, sectorIDs []int64, revenue [][]float64) *dataframe.DataFrame {
	var ids, times, months []int64
	var amounts []float64
	for s, id := range sectorIDs {
		for t, v := range revenue[s] {
			ids = append(ids, id)
			times = append(times, int64(t))
			months = append(months, int64(t%12+1))
			amounts = append(amounts, v)
		}
	}

	return dataframe.New(
		series.New("sector_id", ids, mem),
		series.New("month_num", months, mem),
		series.New("time", times, mem),
		series.New("nht_amount_new_house_transactions", amounts, mem),
	)
}

// ColumnStrings returns a column rendered as strings; nulls become "".
func ColumnStrings(tb testing.TB, df *dataframe.DataFrame, name string) []string {
	tb.Helper()

	col, ok := df.Column(name)
	require.True(tb, ok, "column %s should exist", name)

	out := make([]string, col.Len())
	for i := range out {
		out[i] = col.GetAsString(i)
	}
	return out
}

// ColumnFloats returns a numeric column as float64 with its null flags.
func ColumnFloats(tb testing.TB, df *dataframe.DataFrame, name string) ([]float64, []bool) {
	tb.Helper()

	col, ok := df.Column(name)
	require.True(tb, ok, "column %s should exist", name)

	values, valid, err := dataframe.Float64Values(col)
	require.NoError(tb, err)

	nulls := make([]bool, len(values))
	for i := range nulls {
		nulls[i] = !dataframe.Valid(valid, i)
	}
	return values, nulls
}

// AssertDataFrameEqual compares schema and every cell by its text rendering.
func AssertDataFrameEqual(tb testing.TB, expected, actual *dataframe.DataFrame) {
	tb.Helper()

	require.NotNil(tb, expected, "expected DataFrame should not be nil")
	require.NotNil(tb, actual, "actual DataFrame should not be nil")

	if diff := cmp.Diff(expected.Columns(), actual.Columns()); diff != "" {
		tb.Fatalf("columns mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(tb, expected.Len(), actual.Len(), "DataFrame lengths should match")

	for _, name := range expected.Columns() {
		want := ColumnStrings(tb, expected, name)
		got := ColumnStrings(tb, actual, name)
		if diff := cmp.Diff(want, got); diff != "" {
			tb.Errorf("column %s mismatch (-want +got):\n%s", name, diff)
		}
	}
}

// AssertDataFrameHasColumns verifies that a DataFrame has the expected columns.
func AssertDataFrameHasColumns(tb testing.TB, df *dataframe.DataFrame, expectedColumns ...string) {
	tb.Helper()

	require.NotNil(tb, df, "DataFrame should not be nil")
	for _, col := range expectedColumns {
		assert.True(tb, df.HasColumn(col), "DataFrame should have column %s", col)
	}
}
