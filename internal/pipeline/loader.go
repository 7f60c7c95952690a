package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/errors"
	sio "github.com/paveg/sectorcast/internal/io"
	"github.com/paveg/sectorcast/internal/series"
	"github.com/paveg/sectorcast/internal/validation"
	"go.uber.org/zap"
)

// Key columns shared by the raw tables and the grid.
const (
	SectorColumn = "sector"
	MonthColumn  = "month"
	YearColumn   = "year"
	IDColumn     = "id"
)

// Fill values applied to a table's own columns after load and after its join.
const (
	RevenueFill  = 0.0
	SentinelFill = -1.0
)

// TestIndexPath is the test index file, relative to the raw data root.
const TestIndexPath = "test.csv"

// Source describes one raw table and how it is normalized and joined.
type Source struct {
	Name     string            // Short name; the column prefix is Name + "_"
	Path     string            // Relative to the raw data root
	Required []string          // Raw columns that must be present
	Keys     []string          // Join keys against the grid, after normalization
	Fill     float64           // Null replacement for this table's columns
	Limit    int               // Keep only the first Limit rows when positive
	Drop     []string          // Raw columns removed before prefixing
	Rename   map[string]string // Prefixed name -> final name
}

// Prefix returns the namespace prepended to every non-key column.
func (s Source) Prefix() string {
	return s.Name + "_"
}

var sectorMonth = []string{SectorColumn, MonthColumn}

// Sources lists the raw tables in join order.
var Sources = []Source{
	{Name: "nht", Path: "train/new_house_transactions.csv", Required: sectorMonth, Keys: sectorMonth, Fill: RevenueFill},
	{Name: "nhtns", Path: "train/new_house_transactions_nearby_sectors.csv", Required: sectorMonth, Keys: sectorMonth, Fill: SentinelFill},
	{Name: "pht", Path: "train/pre_owned_house_transactions.csv", Required: sectorMonth, Keys: sectorMonth, Fill: SentinelFill},
	{Name: "phtns", Path: "train/pre_owned_house_transactions_nearby_sectors.csv", Required: sectorMonth, Keys: sectorMonth, Fill: SentinelFill},
	{
		Name:     "ci",
		Path:     "train/city_indexes.csv",
		Required: []string{"city_indicator_data_year", "total_fixed_asset_investment_10k"},
		Keys:     []string{YearColumn},
		Fill:     SentinelFill,
		Limit:    6,
		Drop:     []string{"total_fixed_asset_investment_10k"},
		Rename:   map[string]string{"ci_city_indicator_data_year": YearColumn},
	},
	{Name: "sp", Path: "train/sector_POI.csv", Required: []string{SectorColumn}, Keys: []string{SectorColumn}, Fill: SentinelFill},
	{Name: "lt", Path: "train/land_transactions.csv", Required: sectorMonth, Keys: sectorMonth, Fill: SentinelFill},
	{Name: "ltns", Path: "train/land_transactions_nearby_sectors.csv", Required: sectorMonth, Keys: sectorMonth, Fill: SentinelFill},
}

// RevenueSource is the table the grid and the label are derived from.
const RevenueSource = "nht"

// Tables holds the normalized raw tables keyed by source name, plus the test index.
type Tables struct {
	Frames map[string]*dataframe.DataFrame
	Test   *dataframe.DataFrame
}

// Revenue returns the normalized new-house transactions table.
func (t *Tables) Revenue() *dataframe.DataFrame {
	return t.Frames[RevenueSource]
}

// Loader reads the raw tables from a root directory.
type Loader struct {
	root   string
	mem    memory.Allocator
	logger *zap.Logger
}

// NewLoader creates a loader for the given raw data root.
func NewLoader(root string, mem memory.Allocator, logger *zap.Logger) *Loader {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{root: root, mem: mem, logger: logger}
}

// Load reads and normalizes every source and the test index. Any absent or
// unreadable file fails the whole load.
func (l *Loader) Load(ctx context.Context) (*Tables, error) {
	tables := &Tables{Frames: make(map[string]*dataframe.DataFrame, len(Sources))}

	for _, src := range Sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		df, err := l.LoadSource(src)
		if err != nil {
			return nil, err
		}
		tables.Frames[src.Name] = df
		l.logger.Debug("table loaded",
			zap.String("table", src.Name),
			zap.Int("rows", df.Len()),
			zap.Int("columns", df.Width()))
	}

	providers := make(map[string]validation.ColumnProvider, len(tables.Frames))
	for name, df := range tables.Frames {
		providers[name] = df
	}
	if err := validation.ValidateDisjoint(providers, "LoadTables", SectorColumn, MonthColumn, YearColumn); err != nil {
		return nil, err
	}

	test, err := l.read(TestIndexPath)
	if err != nil {
		return nil, err
	}
	if tables.Test, err = SplitTestIndex(test, l.mem); err != nil {
		return nil, err
	}
	l.logger.Debug("test index loaded", zap.Int("rows", tables.Test.Len()))

	return tables, nil
}

// LoadSource reads one raw table and normalizes it.
func (l *Loader) LoadSource(src Source) (*dataframe.DataFrame, error) {
	df, err := l.read(src.Path)
	if err != nil {
		return nil, err
	}
	return Normalize(df, src)
}

func (l *Loader) read(rel string) (*dataframe.DataFrame, error) {
	path := filepath.Join(l.root, rel)
	df, err := sio.ReadFile(path, l.mem)
	if err != nil {
		if errors.KindOf(err) == errors.KindMissingInput {
			return nil, err
		}
		return nil, errors.NewMissingInputError("LoadTables", path, err)
	}
	return df, nil
}

// Normalize applies a source's recipe: key check, row limit, column drop,
// null fill, and prefixing of every column except sector and month.
func Normalize(df *dataframe.DataFrame, src Source) (*dataframe.DataFrame, error) {
	op := "Normalize(" + src.Name + ")"
	if err := validation.ValidateColumns(df, op, src.Required...); err != nil {
		return nil, err
	}

	out := df
	var err error
	if src.Limit > 0 && out.Len() > src.Limit {
		if out, err = out.Slice(0, src.Limit); err != nil {
			return nil, err
		}
	}
	if len(src.Drop) > 0 {
		out = out.Drop(src.Drop...)
	}
	if out.Width() > 0 {
		if out, err = out.FillNull(src.Fill); err != nil {
			return nil, err
		}
	}

	mapping := make(map[string]string, out.Width())
	for _, name := range out.Columns() {
		if name == SectorColumn || name == MonthColumn {
			continue
		}
		prefixed := src.Prefix() + name
		if final, ok := src.Rename[prefixed]; ok {
			prefixed = final
		}
		mapping[name] = prefixed
	}
	return out.Rename(mapping)
}

// SplitTestIndex derives month and sector columns from the test index id,
// which has the form "{month}_{sector}".
func SplitTestIndex(test *dataframe.DataFrame, mem memory.Allocator) (*dataframe.DataFrame, error) {
	const op = "SplitTestIndex"
	if err := validation.ValidateColumns(test, op, IDColumn); err != nil {
		return nil, err
	}

	col, _ := test.Column(IDColumn)
	ids, err := dataframe.StringValues(col)
	if err != nil {
		return nil, errors.NewSchemaError(op, IDColumn, "id column must be text")
	}

	months := make([]string, len(ids))
	sectors := make([]string, len(ids))
	for i, id := range ids {
		parts := strings.Split(id, "_")
		if col.IsNull(i) || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.NewSchemaError(op, IDColumn, fmt.Sprintf("malformed id %q at row %d", id, i))
		}
		months[i], sectors[i] = parts[0], parts[1]
	}

	return test.WithColumns(
		series.New(MonthColumn, months, mem),
		series.New(SectorColumn, sectors, mem),
	)
}
