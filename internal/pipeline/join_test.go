package pipeline

import (
	"testing"

	pipeerrors "github.com/paveg/sectorcast/internal/errors"
	"github.com/paveg/sectorcast/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func joinFixture(t *testing.T, opts ...testutil.FixtureOption) (*Tables, error) {
	t.Helper()
	tables, err := loadFixture(t, opts...)
	require.NoError(t, err)

	mem := testutil.SetupMemoryTest(t)
	grid, err := BuildGrid(tables.Revenue(), mem.Allocator)
	require.NoError(t, err)

	joined, err := JoinFeatures(grid, tables)
	if err != nil {
		return nil, err
	}
	tables.Frames["joined"] = joined
	return tables, nil
}

func TestJoinFeatures(t *testing.T) {
	tables, err := joinFixture(t)
	require.NoError(t, err)
	joined := tables.Frames["joined"]

	assert.Equal(t, 12, joined.Len())
	testutil.AssertDataFrameHasColumns(t, joined,
		TargetColumn,
		"nhtns_num_new_house_transactions_nearby_sectors",
		"pht_amount_pre_owned_house_transactions",
		"phtns_num_pre_owned_house_transactions_nearby_sectors",
		"ci_city_gdp_100m",
		"sp_resident_population",
		"lt_transaction_amount",
		"ltns_transaction_amount_nearby_sectors",
	)

	t.Run("grid order is preserved", func(t *testing.T) {
		assert.Equal(t,
			[]string{"1", "1", "1", "1", "2", "2", "2", "2", "95", "95", "95", "95"},
			testutil.ColumnStrings(t, joined, SectorIDColumn))
	})

	t.Run("revenue gaps fill with zero", func(t *testing.T) {
		revenue, nulls := testutil.ColumnFloats(t, joined, TargetColumn)
		assert.NotContains(t, nulls, true)
		assert.Equal(t, []float64{10, 20, 30, 40, 5, 0, 7, 8, 0, 0, 0, 0}, revenue)
	})

	t.Run("other gaps fill with the sentinel", func(t *testing.T) {
		land, _ := testutil.ColumnFloats(t, joined, "lt_transaction_amount")
		assert.Equal(t, []float64{-1, 5000, -1, -1, -1, -1, 7000, -1, -1, -1, -1, -1}, land)

		gdp, _ := testutil.ColumnFloats(t, joined, "ci_city_gdp_100m")
		for i, v := range gdp {
			assert.Equal(t, 120.0, v, "row %d", i)
		}

		pop, _ := testutil.ColumnFloats(t, joined, "sp_resident_population")
		assert.Equal(t, []float64{1000, 1000, 1000, 1000, 2000, 2000, 2000, 2000, -1, -1, -1, -1}, pop)
	})
}

func TestJoinFeaturesDuplicateKeys(t *testing.T) {
	_, err := joinFixture(t, testutil.WithFile("train/land_transactions.csv",
		"month,sector,transaction_amount\n2019-Feb,sector 1,5000\n2019-Feb,sector 1,6000\n"))
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeerrors.ErrDataIntegrity)
	assert.Contains(t, err.Error(), "joining lt")
}

func TestJoinFeaturesMissingTable(t *testing.T) {
	tables, err := loadFixture(t)
	require.NoError(t, err)
	mem := testutil.SetupMemoryTest(t)

	grid, err := BuildGrid(tables.Revenue(), mem.Allocator)
	require.NoError(t, err)

	delete(tables.Frames, "sp")
	_, err = JoinFeatures(grid, tables)
	assert.ErrorIs(t, err, pipeerrors.ErrInvalidInput)
}
