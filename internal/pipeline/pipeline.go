// Package pipeline turns the raw sector tables into train and test feature
// matrices: load and normalize, build the sector x month grid, join every
// source onto it, compact the schema, add rolling and cyclical features and
// the next-month label, then split by time and persist both partitions.
package pipeline

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/paveg/sectorcast/internal/config"
	"github.com/paveg/sectorcast/internal/dataframe"
	memtrack "github.com/paveg/sectorcast/internal/memory"
	"github.com/paveg/sectorcast/internal/monitoring"
	"go.uber.org/zap"
)

// Stage names, as reported in logs and metrics.
const (
	StageLoad     = "load"
	StageGrid     = "grid"
	StageJoin     = "join"
	StageCompact  = "compact"
	StageRolling  = "rolling"
	StageLabel    = "label"
	StageCyclical = "cyclical"
	StageSplit    = "split"
	StagePersist  = "persist"
)

// Result summarizes a pipeline run.
type Result struct {
	RunID     string
	Skipped   bool
	TrainPath string
	TestPath  string
	TrainRows int
	TestRows  int
	Columns   []string
	Border    int64
	PeakBytes int64 // High-water mark of Arrow buffers allocated during the run
}

// Pipeline runs the feature build for one configuration.
type Pipeline struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
	mem     *memtrack.Tracker
}

// New validates cfg and returns a pipeline. A nil logger discards output.
func New(cfg config.Config, logger *zap.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:     cfg,
		logger:  logger,
		metrics: monitoring.NewMetricsCollector(),
		mem:     memtrack.NewTracker(nil),
	}, nil
}

// Metrics returns the collector the pipeline records stages into.
func (p *Pipeline) Metrics() *monitoring.MetricsCollector {
	return p.metrics
}

// Run builds and writes both partitions. When both output files already exist
// the run is skipped and the files are left untouched. Outputs are written
// all-or-nothing.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID))
	result := &Result{RunID: runID, TrainPath: p.cfg.TrainOutputPath, TestPath: p.cfg.TestOutputPath}

	if fileExists(p.cfg.TrainOutputPath) && fileExists(p.cfg.TestOutputPath) {
		logger.Info("outputs already exist, skipping build",
			zap.String("train", p.cfg.TrainOutputPath),
			zap.String("test", p.cfg.TestOutputPath))
		result.Skipped = true
		return result, nil
	}

	logger.Info("feature build started", zap.String("raw_data_dir", p.cfg.RawDataDir))

	var tables *Tables
	err := p.stage(ctx, logger, StageLoad, func() (monitoring.Shape, error) {
		var err error
		tables, err = NewLoader(p.cfg.RawDataDir, p.mem, logger).Load(ctx)
		if err != nil {
			return monitoring.Shape{}, err
		}
		return monitoring.Shape{Rows: tables.Revenue().Len(), Columns: len(tables.Frames)}, nil
	})
	if err != nil {
		return nil, err
	}

	features, err := p.buildFeatures(ctx, logger, tables)
	if err != nil {
		return nil, err
	}

	var parts *Partitions
	err = p.stage(ctx, logger, StageSplit, func() (monitoring.Shape, error) {
		var err error
		if parts, err = Split(features, DefaultTestMonths); err != nil {
			return monitoring.Shape{}, err
		}
		return monitoring.Shape{Rows: parts.Train.Len() + parts.Test.Len(), Columns: parts.Train.Width()}, nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, logger, StagePersist, func() (monitoring.Shape, error) {
		outputs := map[string]*dataframe.DataFrame{
			p.cfg.TrainOutputPath: parts.Train,
			p.cfg.TestOutputPath:  parts.Test,
		}
		if err := persistAll(runID, outputs); err != nil {
			return monitoring.Shape{}, err
		}
		return monitoring.Shape{Rows: parts.Train.Len() + parts.Test.Len(), Columns: parts.Train.Width()}, nil
	})
	if err != nil {
		return nil, err
	}

	result.TrainRows = parts.Train.Len()
	result.TestRows = parts.Test.Len()
	result.Columns = parts.Train.Columns()
	result.Border = parts.Border
	result.PeakBytes = p.mem.Peak()

	if p.cfg.MetricsPath != "" {
		if err := p.metrics.WriteTextfile(p.cfg.MetricsPath); err != nil {
			logger.Warn("failed to write metrics", zap.String("path", p.cfg.MetricsPath), zap.Error(err))
		}
	}

	logger.Info("feature build finished",
		zap.Int("train_rows", result.TrainRows),
		zap.Int("test_rows", result.TestRows),
		zap.Int("columns", len(result.Columns)),
		zap.Int64("border", result.Border),
		zap.Int64("arrow_peak_bytes", result.PeakBytes))
	return result, nil
}

// BuildFeatures runs every stage between loading and splitting on tables
// that are already loaded.
func (p *Pipeline) BuildFeatures(ctx context.Context, tables *Tables) (*dataframe.DataFrame, error) {
	return p.buildFeatures(ctx, p.logger, tables)
}

func (p *Pipeline) buildFeatures(ctx context.Context, logger *zap.Logger, tables *Tables) (*dataframe.DataFrame, error) {
	var df *dataframe.DataFrame
	stages := []struct {
		name string
		fn   func() (*dataframe.DataFrame, error)
	}{
		{StageGrid, func() (*dataframe.DataFrame, error) { return BuildGrid(tables.Revenue(), p.mem) }},
		{StageJoin, func() (*dataframe.DataFrame, error) { return JoinFeatures(df, tables) }},
		{StageCompact, func() (*dataframe.DataFrame, error) { return Compact(df, p.mem) }},
		{StageRolling, func() (*dataframe.DataFrame, error) {
			return AddRollingFeatures(ctx, df, RollingOptions{Windows: DefaultWindows, Workers: p.cfg.Workers}, p.mem)
		}},
		{StageLabel, func() (*dataframe.DataFrame, error) {
			labelled, err := AddLabel(df, p.mem)
			if err != nil {
				return nil, err
			}
			return DropZeroLabels(labelled)
		}},
		{StageCyclical, func() (*dataframe.DataFrame, error) { return AddCyclical(df, p.mem) }},
	}

	for _, s := range stages {
		err := p.stage(ctx, logger, s.name, func() (monitoring.Shape, error) {
			next, err := s.fn()
			if err != nil {
				return monitoring.Shape{}, err
			}
			df = next
			return monitoring.Shape{Rows: df.Len(), Columns: df.Width()}, nil
		})
		if err != nil {
			return nil, err
		}
	}
	return df, nil
}

// stage checks ctx, runs fn under the metrics collector and logs the outcome.
func (p *Pipeline) stage(ctx context.Context, logger *zap.Logger, name string, fn func() (monitoring.Shape, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	logger.Debug("stage started", zap.String("stage", name))

	var shape monitoring.Shape
	err := p.metrics.RecordOperation(name, func() (monitoring.Shape, error) {
		var err error
		shape, err = fn()
		return shape, err
	})
	if err != nil {
		logger.Error("stage failed", zap.String("stage", name), zap.Error(err))
		return err
	}

	logger.Info("stage finished",
		zap.String("stage", name),
		zap.Int("rows", shape.Rows),
		zap.Int("columns", shape.Columns),
		zap.Int64("arrow_live_bytes", p.mem.Live()))
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
