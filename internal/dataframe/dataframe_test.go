//nolint:testpackage // requires internal access to unexported helpers
package dataframe

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/errors"
	"github.com/paveg/sectorcast/internal/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFrame(mem memory.Allocator) *DataFrame {
	return New(
		series.New("sector_id", []int64{2, 1, 2, 1}, mem),
		series.New("time", []int64{1, 0, 0, 1}, mem),
		series.New("amount", []float64{20.5, 10, 15, 11}, mem),
	)
}

func TestDataFrameBasics(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := newTestFrame(mem)

	assert.Equal(t, 4, df.Len())
	assert.Equal(t, 3, df.Width())
	assert.Equal(t, []string{"sector_id", "time", "amount"}, df.Columns())
	assert.True(t, df.HasColumn("amount"))
	assert.False(t, df.HasColumn("label"))

	assert.Equal(t, []string{"amount", "time"}, df.Select("amount", "missing", "time").Columns())
	assert.Equal(t, []string{"sector_id", "amount"}, df.Drop("time").Columns())
	assert.Equal(t, []string{"sector_id", "time", "amount"}, df.Columns(), "source frame is untouched")
}

func TestDataFrameWithColumn(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := newTestFrame(mem)

	t.Run("appends new column", func(t *testing.T) {
		out, err := df.WithColumn(series.New("label", []float64{1, 2, 3, 4}, mem))
		require.NoError(t, err)
		assert.Equal(t, []string{"sector_id", "time", "amount", "label"}, out.Columns())
	})

	t.Run("replaces column in place", func(t *testing.T) {
		out, err := df.WithColumn(series.New("time", []int64{9, 9, 9, 9}, mem))
		require.NoError(t, err)
		assert.Equal(t, []string{"sector_id", "time", "amount"}, out.Columns())
		col, _ := out.Column("time")
		assert.Equal(t, []int64{9, 9, 9, 9}, col.(*series.Series[int64]).Values())
	})

	t.Run("rejects length mismatch", func(t *testing.T) {
		_, err := df.WithColumn(series.New("short", []float64{1}, mem))
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrDataIntegrity)
	})
}

func TestDataFrameRename(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := newTestFrame(mem)

	out, err := df.Rename(map[string]string{"amount": "nht_amount"})
	require.NoError(t, err)
	assert.Equal(t, []string{"sector_id", "time", "nht_amount"}, out.Columns())

	col, _ := out.Column("nht_amount")
	assert.Equal(t, []float64{20.5, 10, 15, 11}, col.(*series.Series[float64]).Values())

	_, err = df.Rename(map[string]string{"amount": "time"})
	assert.ErrorIs(t, err, errors.ErrSchema)
}

func TestDataFrameTakeAndFilter(t *testing.T) {
	mem := memory.NewGoAllocator()
	df := newTestFrame(mem)

	taken, err := df.Take([]int{3, -1, 0})
	require.NoError(t, err)
	require.Equal(t, 3, taken.Len())

	amount, _ := taken.Column("amount")
	assert.False(t, amount.IsNull(0))
	assert.True(t, amount.IsNull(1))
	assert.Equal(t, "", amount.GetAsString(1))
	assert.Equal(t, "20.5", amount.GetAsString(2))

	filtered, err := df.Filter([]bool{true, false, false, true})
	require.NoError(t, err)
	ids, _ := filtered.Column("sector_id")
	assert.Equal(t, []int64{2, 1}, ids.(*series.Series[int64]).Values())

	_, err = df.Filter([]bool{true})
	assert.ErrorIs(t, err, errors.ErrDataIntegrity)
}

func TestDataFrameFillNull(t *testing.T) {
	mem := memory.NewGoAllocator()
	ints, err := series.NewNullable("n", []int64{1, 0, 3}, []bool{true, false, true}, mem)
	require.NoError(t, err)
	floats, err := series.NewNullable("x", []float64{0, 2.5, 0}, []bool{false, true, false}, mem)
	require.NoError(t, err)
	df := New(ints, floats)

	out, err := df.FillNull(-1, "n")
	require.NoError(t, err)
	n, _ := out.Column("n")
	assert.Equal(t, []int64{1, -1, 3}, n.(*series.Series[int64]).Values())
	x, _ := out.Column("x")
	assert.Equal(t, 2, x.(*series.Series[float64]).NullN(), "unnamed columns keep their nulls")

	all, err := df.FillNull(0)
	require.NoError(t, err)
	x, _ = all.Column("x")
	assert.Equal(t, []float64{0, 2.5, 0}, x.(*series.Series[float64]).Values())
	assert.Equal(t, 0, x.(*series.Series[float64]).NullN())

	_, err = df.FillNull(0, "missing")
	assert.ErrorIs(t, err, errors.ErrSchema)
}

func TestFloat64Values(t *testing.T) {
	mem := memory.NewGoAllocator()
	s, err := series.NewNullable("v", []int16{4, 0, -2}, []bool{true, false, true}, mem)
	require.NoError(t, err)

	values, valid, err := Float64Values(s)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 0, -2}, values)
	assert.Equal(t, []bool{true, false, true}, valid)

	lo, hi, ok := MinMax(values, valid)
	require.True(t, ok)
	assert.InDelta(t, -2.0, lo, 0)
	assert.InDelta(t, 4.0, hi, 0)

	_, _, err = Float64Values(series.New("s", []string{"a"}, mem))
	assert.Error(t, err)
}
