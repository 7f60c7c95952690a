package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/errors"
	sio "github.com/paveg/sectorcast/internal/io"
)

// DefaultTestMonths is how many trailing months form the test partition.
const DefaultTestMonths = 3

// Partitions is the result of a temporal split.
type Partitions struct {
	Train  *dataframe.DataFrame
	Test   *dataframe.DataFrame
	Border int64 // last time index in Train
}

// Split puts rows with time <= max(time)-testMonths into Train and the rest
// into Test. Rows without a label are dropped from both.
func Split(df *dataframe.DataFrame, testMonths int) (*Partitions, error) {
	const op = "Split"
	if testMonths <= 0 {
		return nil, errors.NewInvalidInputError(op, fmt.Sprintf("test months must be positive, got %d", testMonths))
	}
	timeCol, ok := df.Column(TimeColumn)
	if !ok {
		return nil, errors.NewColumnNotFoundError(op, TimeColumn)
	}
	labelCol, ok := df.Column(LabelColumn)
	if !ok {
		return nil, errors.NewColumnNotFoundError(op, LabelColumn)
	}

	times, timeValid, err := dataframe.Int64Values(timeCol)
	if err != nil {
		return nil, err
	}
	_, labelValid, err := dataframe.Float64Values(labelCol)
	if err != nil {
		return nil, err
	}

	_, maxTime, ok := dataframe.MinMax(times, timeValid)
	if !ok {
		return nil, errors.NewDataIntegrityError(op, "no time values to split on")
	}
	border := maxTime - int64(testMonths)

	trainMask := make([]bool, len(times))
	testMask := make([]bool, len(times))
	for i, t := range times {
		if !dataframe.Valid(timeValid, i) || !dataframe.Valid(labelValid, i) {
			continue
		}
		if t <= border {
			trainMask[i] = true
		} else {
			testMask[i] = true
		}
	}

	train, err := df.Filter(trainMask)
	if err != nil {
		return nil, err
	}
	test, err := df.Filter(testMask)
	if err != nil {
		return nil, err
	}
	return &Partitions{Train: train, Test: test, Border: border}, nil
}

// Persist writes df to path, creating parent directories. The extension picks
// the format.
func Persist(df *dataframe.DataFrame, path string) error {
	return sio.WriteFile(path, df)
}

// persistAll writes every frame to a temporary sibling of its destination and
// renames them into place only after all writes succeed. A destination that
// already exists is hard-linked to a backup first; if a later rename fails,
// every destination replaced so far is restored from its backup and the
// temporaries are removed.
func persistAll(runID string, outputs map[string]*dataframe.DataFrame) error {
	dsts := make([]string, 0, len(outputs))
	for dst := range outputs {
		dsts = append(dsts, dst)
	}
	sort.Strings(dsts)

	staged := make(map[string]string, len(outputs))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}

	for _, dst := range dsts {
		tmp := tempPath(dst, runID)
		staged[dst] = tmp
		if err := Persist(outputs[dst], tmp); err != nil {
			cleanup()
			return err
		}
	}

	var placed []placement
	rollback := func() {
		for i := len(placed) - 1; i >= 0; i-- {
			placed[i].restore()
		}
		cleanup()
	}

	for _, dst := range dsts {
		pl, err := place(staged[dst], dst, tempPath(dst, runID+".prev"))
		if err != nil {
			rollback()
			return errors.NewIOError("Persist", dst, err)
		}
		delete(staged, dst)
		placed = append(placed, pl)
	}

	for _, pl := range placed {
		pl.commit()
	}
	return nil
}

// placement records one destination swapped in by persistAll.
type placement struct {
	dst    string
	backup string // empty when dst did not exist before
}

// place links an existing dst to backup and renames tmp over dst.
func place(tmp, dst, backup string) (placement, error) {
	pl := placement{dst: dst}
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Link(dst, backup); err != nil {
			return pl, err
		}
		pl.backup = backup
	}
	if err := os.Rename(tmp, dst); err != nil {
		pl.commit()
		return pl, err
	}
	return pl, nil
}

func (pl placement) restore() {
	if pl.backup == "" {
		_ = os.Remove(pl.dst)
		return
	}
	_ = os.Rename(pl.backup, pl.dst)
}

func (pl placement) commit() {
	if pl.backup != "" {
		_ = os.Remove(pl.backup)
	}
}

// tempPath keeps the extension so the writer still picks the right format.
func tempPath(dst, runID string) string {
	dir, base := filepath.Split(dst)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s%s", stem, runID, ext))
}
