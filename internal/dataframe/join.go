package dataframe

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/memory"
	xxhash "github.com/cespare/xxhash/v2"
	"github.com/paveg/sectorcast/internal/errors"
)

const keySeparator = "\x1f"

// JoinType represents the type of join operation
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

// JoinOptions specifies parameters for join operations
type JoinOptions struct {
	Type      JoinType
	LeftKey   string   // Single join key for left DataFrame
	RightKey  string   // Single join key for right DataFrame
	LeftKeys  []string // Multiple join keys for left DataFrame
	RightKeys []string // Multiple join keys for right DataFrame
	// ManyToOne rejects right tables where a key matches more than one row,
	// so a left join can never multiply left rows.
	ManyToOne bool
}

// Join joins right onto df. The result holds every left column followed by the
// right columns that are not join keys; left row order is preserved.
func (df *DataFrame) Join(right *DataFrame, options *JoinOptions) (*DataFrame, error) {
	leftKeys, rightKeys := normalizeJoinKeys(options)
	if len(leftKeys) == 0 || len(leftKeys) != len(rightKeys) {
		return nil, errors.NewInvalidInputError("Join",
			fmt.Sprintf("number of left keys (%d) must match number of right keys (%d)", len(leftKeys), len(rightKeys)))
	}
	if err := validateJoinKeys(df, right, leftKeys, rightKeys); err != nil {
		return nil, err
	}

	rightKeySet := make(map[string]bool, len(rightKeys))
	for _, k := range rightKeys {
		rightKeySet[k] = true
	}
	var rightCols []string
	for _, name := range right.Columns() {
		if rightKeySet[name] {
			continue
		}
		if df.HasColumn(name) {
			return nil, errors.NewSchemaError("Join", name, "column present on both sides of join")
		}
		rightCols = append(rightCols, name)
	}

	index := newKeyIndex(right, rightKeys)
	if options.ManyToOne {
		if key, n := index.maxFanout(); n > 1 {
			return nil, errors.NewDataIntegrityError("Join",
				fmt.Sprintf("right table has %d rows for key %q; join would duplicate left rows", n, key))
		}
	}

	leftIdx, rightIdx := make([]int, 0, df.Len()), make([]int, 0, df.Len())
	for i := 0; i < df.Len(); i++ {
		matches := index.lookup(buildJoinKey(df, leftKeys, i))
		if len(matches) == 0 {
			if options.Type == LeftJoin {
				leftIdx = append(leftIdx, i)
				rightIdx = append(rightIdx, -1)
			}
			continue
		}
		for _, r := range matches {
			leftIdx = append(leftIdx, i)
			rightIdx = append(rightIdx, r)
		}
	}

	return buildJoinResult(df, right, rightCols, leftIdx, rightIdx)
}

// normalizeJoinKeys extracts the actual keys to use for joining
func normalizeJoinKeys(options *JoinOptions) ([]string, []string) {
	if len(options.LeftKeys) > 0 && len(options.RightKeys) > 0 {
		return options.LeftKeys, options.RightKeys
	}
	if options.LeftKey == "" {
		return nil, nil
	}
	return []string{options.LeftKey}, []string{options.RightKey}
}

// validateJoinKeys ensures all join keys exist in both DataFrames
func validateJoinKeys(left, right *DataFrame, leftKeys, rightKeys []string) error {
	for _, key := range leftKeys {
		if !left.HasColumn(key) {
			return errors.NewColumnNotFoundError("Join", key)
		}
	}
	for _, key := range rightKeys {
		if !right.HasColumn(key) {
			return errors.NewColumnNotFoundError("Join", key)
		}
	}
	return nil
}

// buildJoinKey creates a composite key from multiple columns at given row index.
// Integer widths format identically, so an int16 year matches an int64 year.
func buildJoinKey(df *DataFrame, keys []string, row int) string {
	if len(keys) == 1 {
		s, _ := df.Column(keys[0])
		return s.GetAsString(row)
	}
	key := ""
	for i, k := range keys {
		s, _ := df.Column(k)
		if i > 0 {
			key += keySeparator
		}
		key += s.GetAsString(row)
	}
	return key
}

// keyIndex maps xxhash digests of right-side keys to row indices; colliding digests are
// disambiguated by comparing the key strings.
type keyIndex struct {
	buckets map[uint64][]int
	keys    []string
}

func newKeyIndex(df *DataFrame, keys []string) *keyIndex {
	idx := &keyIndex{
		buckets: make(map[uint64][]int, df.Len()),
		keys:    make([]string, df.Len()),
	}
	for i := 0; i < df.Len(); i++ {
		k := buildJoinKey(df, keys, i)
		idx.keys[i] = k
		h := xxhash.Sum64String(k)
		idx.buckets[h] = append(idx.buckets[h], i)
	}
	return idx
}

func (idx *keyIndex) lookup(key string) []int {
	candidates := idx.buckets[xxhash.Sum64String(key)]
	var out []int
	for _, r := range candidates {
		if idx.keys[r] == key {
			out = append(out, r)
		}
	}
	return out
}

func (idx *keyIndex) maxFanout() (string, int) {
	counts := make(map[string]int, len(idx.keys))
	worst, n := "", 0
	for _, k := range idx.keys {
		counts[k]++
		if counts[k] > n {
			worst, n = k, counts[k]
		}
	}
	return worst, n
}

func buildJoinResult(left, right *DataFrame, rightCols []string, leftIdx, rightIdx []int) (*DataFrame, error) {
	mem := memory.NewGoAllocator()
	out := make([]ISeries, 0, left.Width()+len(rightCols))

	identity := len(leftIdx) == left.Len()
	for i, l := range leftIdx {
		if l != i {
			identity = false
			break
		}
	}

	for _, name := range left.Columns() {
		s, _ := left.Column(name)
		if identity {
			out = append(out, s)
			continue
		}
		taken, err := TakeSeries(s, leftIdx, mem)
		if err != nil {
			return nil, err
		}
		out = append(out, taken)
	}
	for _, name := range rightCols {
		s, _ := right.Column(name)
		taken, err := TakeSeries(s, rightIdx, mem)
		if err != nil {
			return nil, err
		}
		out = append(out, taken)
	}
	return New(out...), nil
}
