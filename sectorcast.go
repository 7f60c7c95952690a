// Package sectorcast builds the monthly sector revenue feature set and trains
// next-month forecasting models on it.
//
// A run reads eight raw tables and a test index, builds a sector x month grid,
// joins every table onto it, adds rolling-window and calendar features and the
// next-month label, and writes time-ordered train and test partitions. Train
// then fits a scaler and a fixed set of models and records the best one;
// Predict applies that model to new feature rows.
//
//	cfg, err := sectorcast.LoadConfig("sectorcast.yaml")
//	if err != nil {
//		return err
//	}
//	if _, err := sectorcast.BuildFeatures(ctx, cfg, logger); err != nil {
//		return err
//	}
//	report, err := sectorcast.Train(ctx, cfg, logger)
package sectorcast

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/config"
	"github.com/paveg/sectorcast/internal/errors"
	sio "github.com/paveg/sectorcast/internal/io"
	"github.com/paveg/sectorcast/internal/pipeline"
	"github.com/paveg/sectorcast/internal/trainer"
	"go.uber.org/zap"
)

// Config holds every path and tunable of a run.
type Config = config.Config

// BuildResult summarizes a feature build.
type BuildResult = pipeline.Result

// TrainReport summarizes a training run.
type TrainReport = trainer.Report

// Error kinds, for use with errors.Is.
var (
	ErrMissingInput  = errors.ErrMissingInput
	ErrSchema        = errors.ErrSchema
	ErrIO            = errors.ErrIO
	ErrDataIntegrity = errors.ErrDataIntegrity
	ErrInvalidInput  = errors.ErrInvalidInput
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return config.NewConfig()
}

// LoadConfig reads a YAML or JSON config file, applies SECTORCAST_* environment
// overrides and validates the result. An empty filename uses the defaults.
func LoadConfig(filename string) (Config, error) {
	return config.Load(filename)
}

// BuildFeatures writes the train and test feature partitions. It does nothing
// when both already exist.
func BuildFeatures(ctx context.Context, cfg Config, logger *zap.Logger) (*BuildResult, error) {
	p, err := pipeline.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx)
}

// Train fits the scaler and every model on the persisted partitions and
// records the model with the lowest test RMSE.
func Train(ctx context.Context, cfg Config, logger *zap.Logger) (*TrainReport, error) {
	t, err := trainer.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return t.Run(ctx)
}

// Predict scores the feature rows in inputPath with the best trained model and
// writes them with a prediction column to outputPath. It returns the number of
// rows written.
func Predict(cfg Config, inputPath, outputPath string, logger *zap.Logger) (int, error) {
	p, err := trainer.LoadPredictor(cfg.ModelDir, cfg.ScalerPath, logger)
	if err != nil {
		return 0, err
	}
	df, err := sio.ReadFile(inputPath, memory.NewGoAllocator())
	if err != nil {
		return 0, err
	}
	out, err := p.PredictFrame(df)
	if err != nil {
		return 0, err
	}
	if err := sio.WriteFile(outputPath, out); err != nil {
		return 0, err
	}
	return out.Len(), nil
}
