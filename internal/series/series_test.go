package series

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSeries(t *testing.T) {
	mem := memory.NewGoAllocator()

	sector := New("sector", []string{"sector 1", "sector 95"}, mem)
	assert.Equal(t, []string{"sector 1", "sector 95"}, sector.Values())
	assert.Equal(t, "utf8", sector.DataType().Name())

	tests := []struct {
		name     string
		series   interface{ DataType() arrow.DataType }
		expected any
		typeName string
	}{
		{"time index", New("time", []int64{0, 1, 2}, mem), []int64{0, 1, 2}, "int64"},
		{"narrowed month number", New("month_num", []int8{1, 12}, mem), []int8{1, 12}, "int8"},
		{"narrowed sector id", New("sector_id", []int16{1, 95}, mem), []int16{1, 95}, "int16"},
		{"narrowed wide counter", New("n", []int32{70000}, mem), []int32{70000}, "int32"},
		{"revenue", New("nht_amount", []float64{0, 1234.5}, mem), []float64{0, 1234.5}, "float64"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.typeName, tt.series.DataType().Name())
			switch s := tt.series.(type) {
			case *Series[int64]:
				assert.Equal(t, tt.expected, s.Values())
			case *Series[int32]:
				assert.Equal(t, tt.expected, s.Values())
			case *Series[int16]:
				assert.Equal(t, tt.expected, s.Values())
			case *Series[int8]:
				assert.Equal(t, tt.expected, s.Values())
			case *Series[float64]:
				assert.Equal(t, tt.expected, s.Values())
			default:
				t.Fatalf("unexpected series type %T", s)
			}
		})
	}
}

func TestNewNullable(t *testing.T) {
	mem := memory.NewGoAllocator()

	s, err := NewNullable("label", []float64{10, 0, 30}, []bool{true, false, true}, mem)
	require.NoError(t, err)
	defer s.Release()

	assert.Equal(t, 1, s.NullN())
	assert.False(t, s.IsNull(0))
	assert.True(t, s.IsNull(1))
	assert.InDelta(t, 0.0, s.Value(1), 0)
	assert.Equal(t, "", s.GetAsString(1))
	assert.Equal(t, "30", s.GetAsString(2))

	_, err = NewNullable("label", []float64{1, 2}, []bool{true}, mem)
	assert.Error(t, err)
}

func TestSeriesValue(t *testing.T) {
	mem := memory.NewGoAllocator()

	s := New("month", []string{"2019-01", "2019-02", "2019-03"}, mem)
	defer s.Release()

	assert.Equal(t, "2019-01", s.Value(0))
	assert.Equal(t, "2019-03", s.Value(2))
	assert.Equal(t, "", s.Value(-1))
	assert.Equal(t, "", s.Value(3))
}

func TestGetAsString(t *testing.T) {
	mem := memory.NewGoAllocator()

	assert.Equal(t, "-1", New("a", []int8{-1}, mem).GetAsString(0))
	assert.Equal(t, "2019", New("y", []int16{2019}, mem).GetAsString(0))
	assert.Equal(t, "0.25", New("f", []float64{0.25}, mem).GetAsString(0))
	assert.Equal(t, "true", New("b", []bool{true}, mem).GetAsString(0))
}

func TestRenameSharesData(t *testing.T) {
	mem := memory.NewGoAllocator()

	s := New("amount_new_house_transactions", []float64{1, 2}, mem)
	renamed := s.Rename("nht_amount_new_house_transactions")

	assert.Equal(t, "nht_amount_new_house_transactions", renamed.Name())
	assert.Equal(t, "amount_new_house_transactions", s.Name())
	assert.Equal(t, s.Values(), renamed.Values())
}

func TestSeriesString(t *testing.T) {
	mem := memory.NewGoAllocator()

	s := New("sector", []string{"a", "b", "c"}, mem)
	defer s.Release()

	str := s.String()
	assert.Contains(t, str, "Series[string]")
	assert.Contains(t, str, "sector")
	assert.Contains(t, str, "len=3")
}

func TestUnsupportedType(t *testing.T) {
	mem := memory.NewGoAllocator()

	assert.Panics(t, func() {
		New("test", []complex64{1 + 2i, 3 + 4i}, mem)
	})

	_, err := NewSafe("test", []uint64{1}, mem)
	assert.Error(t, err)
}
