package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paveg/sectorcast/internal/config"
	pipeerrors "github.com/paveg/sectorcast/internal/errors"
	sio "github.com/paveg/sectorcast/internal/io"
	"github.com/paveg/sectorcast/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func testConfig(t *testing.T, ext string, opts ...testutil.FixtureOption) config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.NewConfig()
	cfg.RawDataDir = testutil.WriteRawFixture(t, filepath.Join(dir, "raw"), opts...)
	cfg.TrainOutputPath = filepath.Join(dir, "out", "train"+ext)
	cfg.TestOutputPath = filepath.Join(dir, "out", "test"+ext)
	cfg.ScalerPath = filepath.Join(dir, "model", "scaler.json")
	cfg.ModelDir = filepath.Join(dir, "model")
	return cfg
}

func runPipeline(t *testing.T, cfg config.Config) (*Result, error) {
	t.Helper()
	p, err := New(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return p.Run(context.Background())
}

func TestPipelineRun(t *testing.T) {
	cfg := testConfig(t, ".csv")

	result, err := runPipeline(t, cfg)
	require.NoError(t, err)
	require.False(t, result.Skipped)
	assert.NotEmpty(t, result.RunID)

	// max time is 3 (2019-Apr), so only January trains
	assert.Equal(t, int64(0), result.Border)
	assert.Positive(t, result.PeakBytes)
	assert.Equal(t, 1, result.TrainRows)
	assert.Equal(t, 4, result.TestRows)

	train, err := sio.ReadFile(cfg.TrainOutputPath, nil)
	require.NoError(t, err)
	test, err := sio.ReadFile(cfg.TestOutputPath, nil)
	require.NoError(t, err)

	assert.Equal(t, train.Columns(), test.Columns())
	assert.Equal(t, result.Columns, train.Columns())

	t.Run("key columns are dropped", func(t *testing.T) {
		for _, col := range []string{MonthColumn, SectorColumn, YearColumn, SectorIDColumn, "nht_dead_counter"} {
			assert.False(t, train.HasColumn(col), col)
		}
	})

	t.Run("engineered columns are present", func(t *testing.T) {
		testutil.AssertDataFrameHasColumns(t, train,
			TimeColumn, MonthNumColumn, TargetColumn, LabelColumn,
			TargetColumn+"_mean3", TargetColumn+"_max12", "ci_city_gdp_100m_min6",
			"cs", "sn", "cs6", "sn6", "cs4", "sn4")
		assert.False(t, train.HasColumn("nht_dead_counter_mean3"))
	})

	t.Run("labels are next month revenue", func(t *testing.T) {
		labels, nulls := testutil.ColumnFloats(t, train, LabelColumn)
		assert.Equal(t, []float64{20}, labels)
		assert.NotContains(t, nulls, true)

		labels, nulls = testutil.ColumnFloats(t, test, LabelColumn)
		assert.Equal(t, []float64{30, 40, 7, 8}, labels)
		assert.NotContains(t, nulls, true)
	})

	t.Run("split is disjoint in time", func(t *testing.T) {
		trainTimes, _ := testutil.ColumnFloats(t, train, TimeColumn)
		testTimes, _ := testutil.ColumnFloats(t, test, TimeColumn)
		for _, v := range trainTimes {
			assert.LessOrEqual(t, v, float64(result.Border))
		}
		for _, v := range testTimes {
			assert.Greater(t, v, float64(result.Border))
		}
	})

	t.Run("month one encodes to the unit circle start", func(t *testing.T) {
		cs, _ := testutil.ColumnFloats(t, train, "cs")
		sn, _ := testutil.ColumnFloats(t, train, "sn")
		assert.InDelta(t, 1.0, cs[0], 1e-12)
		assert.InDelta(t, 0.0, sn[0], 1e-12)
	})

	t.Run("rolling mean uses available history", func(t *testing.T) {
		means, _ := testutil.ColumnFloats(t, test, TargetColumn+"_mean3")
		// sector 1 Feb, Mar; sector 2 Feb, Mar
		assert.Equal(t, []float64{15, 20, 2.5, 4}, means)
	})
}

func TestPipelineParquetOutputs(t *testing.T) {
	cfg := testConfig(t, ".parquet")
	cfg.Workers = 4

	result, err := runPipeline(t, cfg)
	require.NoError(t, err)

	test, err := sio.ReadFile(cfg.TestOutputPath, nil)
	require.NoError(t, err)
	assert.Equal(t, result.TestRows, test.Len())
	assert.Equal(t, result.Columns, test.Columns())
}

func TestPipelineRollsAllEmptyColumns(t *testing.T) {
	cfg := testConfig(t, ".csv", emptyMetricFixture)

	_, err := runPipeline(t, cfg)
	require.NoError(t, err)

	train, err := sio.ReadFile(cfg.TrainOutputPath, nil)
	require.NoError(t, err)

	testutil.AssertDataFrameHasColumns(t, train, "phtns_empty_metric",
		"phtns_empty_metric_mean3", "phtns_empty_metric_min6", "phtns_empty_metric_max12")
	values, _ := testutil.ColumnFloats(t, train, "phtns_empty_metric_mean3")
	for _, v := range values {
		assert.Equal(t, -1.0, v)
	}
}

func TestPipelineSkipsWhenOutputsExist(t *testing.T) {
	cfg := testConfig(t, ".csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.TrainOutputPath), 0o755))
	require.NoError(t, os.WriteFile(cfg.TrainOutputPath, []byte("existing train\n"), 0o600))
	require.NoError(t, os.WriteFile(cfg.TestOutputPath, []byte("existing test\n"), 0o600))

	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(cfg.TrainOutputPath, past, past))
	require.NoError(t, os.Chtimes(cfg.TestOutputPath, past, past))

	result, err := runPipeline(t, cfg)
	require.NoError(t, err)
	assert.True(t, result.Skipped)

	for path, want := range map[string]string{
		cfg.TrainOutputPath: "existing train\n",
		cfg.TestOutputPath:  "existing test\n",
	} {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, want, string(data))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.True(t, info.ModTime().Equal(past), "%s was modified", path)
	}
}

func TestPipelineRebuildsWhenOneOutputMissing(t *testing.T) {
	cfg := testConfig(t, ".csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.TrainOutputPath), 0o755))
	require.NoError(t, os.WriteFile(cfg.TrainOutputPath, []byte("stale\n"), 0o600))

	result, err := runPipeline(t, cfg)
	require.NoError(t, err)
	assert.False(t, result.Skipped)

	data, err := os.ReadFile(cfg.TrainOutputPath)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "month_num,time,"), "train output was not rewritten")
}

func TestPipelineErrors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		cfg := testConfig(t, ".csv", testutil.WithoutFile("train/sector_POI.csv"))
		_, err := runPipeline(t, cfg)
		assert.ErrorIs(t, err, pipeerrors.ErrMissingInput)
		assert.NoFileExists(t, cfg.TrainOutputPath)
	})

	t.Run("malformed test id", func(t *testing.T) {
		cfg := testConfig(t, ".csv", testutil.WithFile(TestIndexPath, "id\nbad\n"))
		_, err := runPipeline(t, cfg)
		assert.ErrorIs(t, err, pipeerrors.ErrSchema)
	})

	t.Run("duplicate keys", func(t *testing.T) {
		cfg := testConfig(t, ".csv", testutil.WithFile("train/land_transactions_nearby_sectors.csv",
			"month,sector,transaction_amount_nearby_sectors\n2019-Jan,sector 1,1\n2019-Jan,sector 1,2\n"))
		_, err := runPipeline(t, cfg)
		assert.ErrorIs(t, err, pipeerrors.ErrDataIntegrity)
	})

	t.Run("unwritable output", func(t *testing.T) {
		cfg := testConfig(t, ".csv")
		blocker := filepath.Join(filepath.Dir(cfg.RawDataDir), "blocker")
		require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
		cfg.TestOutputPath = filepath.Join(blocker, "test.csv")

		_, err := runPipeline(t, cfg)
		assert.ErrorIs(t, err, pipeerrors.ErrIO)
		assert.NoFileExists(t, cfg.TrainOutputPath)
	})

	t.Run("cancelled", func(t *testing.T) {
		p, err := New(testConfig(t, ".csv"), zap.NewNop())
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = p.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := testConfig(t, ".csv")
		cfg.Workers = 0
		_, err := New(cfg, nil)
		assert.Error(t, err)
	})
}

func TestPipelineMetrics(t *testing.T) {
	cfg := testConfig(t, ".csv")
	cfg.MetricsPath = filepath.Join(t.TempDir(), "metrics", "sectorcast.prom")

	p, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	summary := p.Metrics().GetSummary()
	assert.Equal(t, 0, summary.Failures)
	for _, stage := range []string{StageLoad, StageGrid, StageJoin, StageCompact, StageRolling, StageLabel, StageCyclical, StageSplit, StagePersist} {
		assert.Equal(t, 1, summary.OperationCounts[stage], stage)
	}

	data, err := os.ReadFile(cfg.MetricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sectorcast_stage_duration_seconds")
}
