package dataframe

import (
	"cmp"
	"slices"

	"github.com/paveg/sectorcast/internal/errors"
)

// keyColumn is a column materialised for row comparisons.
type keyColumn struct {
	ints    []int64
	floats  []float64
	strings []string
	valid   []bool
}

func (k keyColumn) compare(i, j int) int {
	vi, vj := Valid(k.valid, i), Valid(k.valid, j)
	switch {
	case !vi && !vj:
		return 0
	case !vi:
		return -1
	case !vj:
		return 1
	}
	switch {
	case k.ints != nil:
		return cmp.Compare(k.ints[i], k.ints[j])
	case k.floats != nil:
		return cmp.Compare(k.floats[i], k.floats[j])
	default:
		return cmp.Compare(k.strings[i], k.strings[j])
	}
}

func (df *DataFrame) keyColumns(op string, keys []string) ([]keyColumn, error) {
	out := make([]keyColumn, 0, len(keys))
	for _, key := range keys {
		s, ok := df.Column(key)
		if !ok {
			return nil, errors.NewColumnNotFoundError(op, key)
		}
		var kc keyColumn
		var err error
		switch {
		case IsInteger(s.DataType()):
			kc.ints, kc.valid, err = Int64Values(s)
		case IsNumeric(s.DataType()):
			kc.floats, kc.valid, err = Float64Values(s)
		default:
			kc.strings = make([]string, s.Len())
			for i := range kc.strings {
				kc.strings[i] = s.GetAsString(i)
			}
			kc.valid = nullMask(s)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, kc)
	}
	return out, nil
}

func compareRows(cols []keyColumn, i, j int) int {
	for _, c := range cols {
		if r := c.compare(i, j); r != 0 {
			return r
		}
	}
	return 0
}

// SortBy returns a new DataFrame stably sorted ascending by the given keys. Nulls sort first.
func (df *DataFrame) SortBy(keys ...string) (*DataFrame, error) {
	cols, err := df.keyColumns("SortBy", keys)
	if err != nil {
		return nil, err
	}
	perm := make([]int, df.Len())
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(a, b int) int {
		return compareRows(cols, a, b)
	})
	return df.Take(perm)
}

// IsSortedBy reports whether rows are in ascending order of the given keys.
func (df *DataFrame) IsSortedBy(keys ...string) (bool, error) {
	cols, err := df.keyColumns("IsSortedBy", keys)
	if err != nil {
		return false, err
	}
	for i := 1; i < df.Len(); i++ {
		if compareRows(cols, i-1, i) > 0 {
			return false, nil
		}
	}
	return true, nil
}

// GroupBoundaries returns the start offset of every run of equal key values in storage
// order, followed by Len(). Group g spans rows [b[g], b[g+1]).
func (df *DataFrame) GroupBoundaries(key string) ([]int, error) {
	cols, err := df.keyColumns("GroupBoundaries", []string{key})
	if err != nil {
		return nil, err
	}
	n := df.Len()
	bounds := make([]int, 0, 16)
	if n == 0 {
		return []int{0}, nil
	}
	bounds = append(bounds, 0)
	for i := 1; i < n; i++ {
		if cols[0].compare(i-1, i) != 0 {
			bounds = append(bounds, i)
		}
	}
	return append(bounds, n), nil
}

func nullMask(s ISeries) []bool {
	arr := s.Array()
	defer arr.Release()
	return validity(arr)
}
