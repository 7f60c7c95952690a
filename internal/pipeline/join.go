package pipeline

import (
	"fmt"

	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/errors"
	"github.com/paveg/sectorcast/internal/validation"
)

// JoinFeatures left-joins every source onto the grid in Sources order. Cells a
// join leaves unmatched get that source's fill value. The grid's rows and their
// order are preserved; a source with duplicate keys fails the join.
func JoinFeatures(grid *dataframe.DataFrame, tables *Tables) (*dataframe.DataFrame, error) {
	const op = "JoinFeatures"

	out := grid
	for _, src := range Sources {
		right, ok := tables.Frames[src.Name]
		if !ok {
			return nil, errors.NewInvalidInputError(op, fmt.Sprintf("table %s was not loaded", src.Name))
		}

		joined, err := out.Join(right, &dataframe.JoinOptions{
			Type:      dataframe.LeftJoin,
			LeftKeys:  src.Keys,
			RightKeys: src.Keys,
			ManyToOne: true,
		})
		if err != nil {
			return nil, fmt.Errorf("joining %s: %w", src.Name, err)
		}

		if added := ownColumns(right, src.Keys); len(added) > 0 {
			if joined, err = joined.FillNull(src.Fill, added...); err != nil {
				return nil, fmt.Errorf("filling %s: %w", src.Name, err)
			}
		}

		if err := validation.ValidateLength(grid.Len(), joined.Len(), op, src.Name+" join"); err != nil {
			return nil, err
		}
		out = joined
	}
	return out, nil
}

// ownColumns returns the columns a source contributes to the feature matrix.
func ownColumns(df *dataframe.DataFrame, keys []string) []string {
	isKey := make(map[string]bool, len(keys))
	for _, k := range keys {
		isKey[k] = true
	}
	var cols []string
	for _, name := range df.Columns() {
		if !isKey[name] {
			cols = append(cols, name)
		}
	}
	return cols
}
