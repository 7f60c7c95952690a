package testutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paveg/sectorcast/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRawFixture(t *testing.T) {
	root := testutil.WriteRawFixture(t, t.TempDir())

	for rel := range testutil.FixtureFiles() {
		_, err := os.Stat(filepath.Join(root, rel))
		assert.NoError(t, err, rel)
	}

	t.Run("options", func(t *testing.T) {
		root := testutil.WriteRawFixture(t, t.TempDir(),
			testutil.WithoutFile("test.csv"),
			testutil.WithFile("train/sector_POI.csv", "sector\nsector 1\n"),
		)

		_, err := os.Stat(filepath.Join(root, "test.csv"))
		assert.True(t, os.IsNotExist(err))

		data, err := os.ReadFile(filepath.Join(root, "train/sector_POI.csv"))
		require.NoError(t, err)
		assert.Equal(t, "sector\nsector 1\n", string(data))
	})
}

func TestCreateSectorFrame(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := testutil.CreateSectorFrame(mem.Allocator, []int64{1, 2}, [][]float64{{10, 20}, {5}})
	defer df.Release()

	assert.Equal(t, 3, df.Len())
	assert.Equal(t, []string{"1", "1", "2"}, testutil.ColumnStrings(t, df, "sector_id"))
	assert.Equal(t, []string{"0", "1", "0"}, testutil.ColumnStrings(t, df, "time"))
	assert.Equal(t, []string{"1", "2", "1"}, testutil.ColumnStrings(t, df, "month_num"))

	values, nulls := testutil.ColumnFloats(t, df, "nht_amount_new_house_transactions")
	assert.Equal(t, []float64{10, 20, 5}, values)
	assert.Equal(t, []bool{false, false, false}, nulls)

	testutil.AssertDataFrameEqual(t, df, df)
	testutil.AssertDataFrameHasColumns(t, df, "sector_id", "time")
}
