package scaler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/paveg/sectorcast/internal/dataframe"
	pipeerrors "github.com/paveg/sectorcast/internal/errors"
	"github.com/paveg/sectorcast/internal/series"
	"github.com/paveg/sectorcast/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trainFrame(t *testing.T) *dataframe.DataFrame {
	t.Helper()
	mem := testutil.SetupMemoryTest(t)
	a := mem.Allocator

	pht, err := series.NewNullable("pht_amount", []float64{2, 0, 6}, []bool{true, false, true}, a)
	require.NoError(t, err)
	return dataframe.New(
		series.New("time", []int8{0, 1, 2}, a),
		series.New("nht_amount", []float64{1, 2, 3}, a),
		series.New("ci_constant", []int64{7, 7, 7}, a),
		pht,
		series.New("note", []string{"a", "b", "c"}, a),
		series.New("label", []float64{10, 20, 30}, a),
	)
}

func TestFit(t *testing.T) {
	s, err := Fit(trainFrame(t), "label")
	require.NoError(t, err)

	assert.Equal(t, []string{"time", "nht_amount", "ci_constant", "pht_amount"}, s.Columns)
	assert.InDeltaSlice(t, []float64{1, 2, 7, 4}, s.Mean, 1e-12)
	// population std of {0,1,2} is sqrt(2/3); constant column keeps scale 1
	assert.InDelta(t, 0.816496580927726, s.Scale[0], 1e-12)
	assert.Equal(t, 1.0, s.Scale[2])
	assert.InDelta(t, 2.0, s.Scale[3], 1e-12)
	assert.Equal(t, -1, s.Index("label"))
	assert.Equal(t, -1, s.Index("note"))
}

func TestTransform(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	df := trainFrame(t)
	s, err := Fit(df, "label")
	require.NoError(t, err)

	out, err := s.Transform(df, mem.Allocator)
	require.NoError(t, err)
	assert.Equal(t, df.Columns(), out.Columns())

	constant, _ := testutil.ColumnFloats(t, out, "ci_constant")
	assert.Equal(t, []float64{0, 0, 0}, constant)

	pht, nulls := testutil.ColumnFloats(t, out, "pht_amount")
	assert.Equal(t, []bool{false, true, false}, nulls)
	assert.InDelta(t, -1.0, pht[0], 1e-12)
	assert.InDelta(t, 1.0, pht[2], 1e-12)

	labels, _ := testutil.ColumnFloats(t, out, "label")
	assert.Equal(t, []float64{10, 20, 30}, labels)

	back, err := s.Inverse("nht_amount", 1)
	require.NoError(t, err)
	assert.InDelta(t, 2+0.816496580927726, back, 1e-12)

	_, err = s.Transform(df.Drop("nht_amount"), mem.Allocator)
	assert.ErrorIs(t, err, pipeerrors.ErrSchema)
}

func TestFitErrors(t *testing.T) {
	mem := testutil.SetupMemoryTest(t)
	defer mem.Release()

	_, err := Fit(dataframe.New(series.New("x", []float64{}, mem.Allocator)))
	assert.ErrorIs(t, err, pipeerrors.ErrDataIntegrity)

	_, err = Fit(dataframe.New(series.New("note", []string{"a"}, mem.Allocator)))
	assert.ErrorIs(t, err, pipeerrors.ErrInvalidInput)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "final_model", "scaler.json")

	s, err := Fit(trainFrame(t), "label")
	require.NoError(t, err)
	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s.Columns, loaded.Columns)
	assert.Equal(t, s.Mean, loaded.Mean)
	assert.Equal(t, s.Scale, loaded.Scale)
	assert.True(t, s.FittedAt.Equal(loaded.FittedAt))

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, pipeerrors.ErrMissingInput)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"columns":["a"],"mean":[0],"scale":[0]}`), 0o600))
	_, err = Load(bad)
	assert.ErrorIs(t, err, pipeerrors.ErrInvalidInput)
}
