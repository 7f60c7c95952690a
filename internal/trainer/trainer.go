// Package trainer fits the model set on the persisted feature partitions,
// scores every model on both partitions and records the best one.
//
// Features are standardized with a scaler fitted on the training partition.
// Each model is written as its own JSON artifact under the model directory;
// best.json names the model with the lowest test RMSE.
package trainer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"github.com/paveg/sectorcast/internal/config"
	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/errors"
	sio "github.com/paveg/sectorcast/internal/io"
	"github.com/paveg/sectorcast/internal/monitoring"
	"github.com/paveg/sectorcast/internal/pipeline"
	"github.com/paveg/sectorcast/internal/scaler"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
)

// BestFile is the selection record written next to the model artifacts.
const BestFile = "best.json"

// Artifact is one fitted model with its scores.
type Artifact struct {
	Model     *LinearModel `json:"model"`
	Train     Metrics      `json:"train"`
	Test      Metrics      `json:"test"`
	RunID     string       `json:"run_id"`
	TrainedAt time.Time    `json:"trained_at"`
}

// Selection records which artifact scored best on the test partition.
type Selection struct {
	Model      string    `json:"model"`
	Artifact   string    `json:"artifact"` // File name inside the model directory
	TestRMSE   float64   `json:"test_rmse"`
	RunID      string    `json:"run_id"`
	SelectedAt time.Time `json:"selected_at"`
}

// ModelReport summarizes one trained model.
type ModelReport struct {
	Name  string
	Path  string
	Train Metrics
	Test  Metrics
}

// Report is the outcome of a training run.
type Report struct {
	RunID  string
	Models []ModelReport
	Best   Selection
}

// Trainer fits and scores the model set for one configuration.
type Trainer struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *monitoring.MetricsCollector
	mem     memory.Allocator
}

// New validates cfg and returns a trainer. A nil logger discards output.
func New(cfg config.Config, logger *zap.Logger) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		cfg:     cfg,
		logger:  logger,
		metrics: monitoring.NewMetricsCollector(),
		mem:     memory.NewGoAllocator(),
	}, nil
}

// Metrics returns the collector the trainer records into.
func (t *Trainer) Metrics() *monitoring.MetricsCollector {
	return t.metrics
}

// Estimators returns the fixed model set for a fitted scaler. The persistence
// baseline needs the revenue column and is left out when it was not scaled.
func Estimators(sc *scaler.StandardScaler) []Estimator {
	estimators := []Estimator{MeanBaseline{}}
	if i := sc.Index(pipeline.TargetColumn); i >= 0 {
		estimators = append(estimators, PersistenceBaseline{
			Column: pipeline.TargetColumn,
			Mean:   sc.Mean[i],
			Scale:  sc.Scale[i],
		})
	}
	return append(estimators, Ridge{Alpha: DefaultRidgeAlpha})
}

// Run reads both partitions, fits the scaler and every model, and writes the
// scaler, one artifact per model and the selection record.
func (t *Trainer) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	logger := t.logger.With(zap.String("run_id", runID))
	logger.Info("training started",
		zap.String("train", t.cfg.TrainOutputPath),
		zap.String("test", t.cfg.TestOutputPath))

	train, err := t.readPartition(t.cfg.TrainOutputPath)
	if err != nil {
		return nil, err
	}
	test, err := t.readPartition(t.cfg.TestOutputPath)
	if err != nil {
		return nil, err
	}

	var (
		sc            *scaler.StandardScaler
		xTrain, xTest *denseInputs
	)
	err = t.metrics.RecordOperation("scale", func() (monitoring.Shape, error) {
		if sc, err = scaler.Fit(train, pipeline.LabelColumn); err != nil {
			return monitoring.Shape{}, err
		}
		if err := sc.Save(t.cfg.ScalerPath); err != nil {
			return monitoring.Shape{}, err
		}
		if xTrain, err = t.inputs(train, sc); err != nil {
			return monitoring.Shape{}, fmt.Errorf("train partition: %w", err)
		}
		if xTest, err = t.inputs(test, sc); err != nil {
			return monitoring.Shape{}, fmt.Errorf("test partition: %w", err)
		}
		return monitoring.Shape{Rows: train.Len(), Columns: len(sc.Columns)}, nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("scaler fitted", zap.String("path", t.cfg.ScalerPath), zap.Int("features", len(sc.Columns)))

	report := &Report{RunID: runID}
	for _, est := range Estimators(sc) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var mr ModelReport
		err := t.metrics.RecordOperation("fit_"+est.Name(), func() (monitoring.Shape, error) {
			var err error
			mr, err = t.fitOne(est, sc.Columns, xTrain, xTest, runID)
			return monitoring.Shape{Rows: xTrain.rows(), Columns: len(sc.Columns)}, err
		})
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", est.Name(), err)
		}
		report.Models = append(report.Models, mr)
		logger.Info("model trained",
			zap.String("model", mr.Name),
			zap.Float64("train_rmse", mr.Train.RMSE),
			zap.Float64("test_rmse", mr.Test.RMSE),
			zap.Float64("test_r2", mr.Test.R2))
	}

	report.Best = selectBest(report.Models, runID)
	if err := writeJSON(filepath.Join(t.cfg.ModelDir, BestFile), report.Best); err != nil {
		return nil, err
	}

	if t.cfg.MetricsPath != "" {
		if err := t.metrics.WriteTextfile(t.cfg.MetricsPath); err != nil {
			logger.Warn("failed to write metrics", zap.String("path", t.cfg.MetricsPath), zap.Error(err))
		}
	}

	logger.Info("training finished", zap.String("best", report.Best.Model), zap.Float64("test_rmse", report.Best.TestRMSE))
	return report, nil
}

type denseInputs struct {
	x *mat.Dense
	y []float64
}

func (d *denseInputs) rows() int {
	return len(d.y)
}

func (t *Trainer) readPartition(path string) (*dataframe.DataFrame, error) {
	df, err := sio.ReadFile(path, t.mem)
	if err != nil {
		return nil, err
	}
	if df.Len() == 0 {
		return nil, errors.NewDataIntegrityError("Trainer", fmt.Sprintf("partition %s has no rows", path))
	}
	return df, nil
}

func (t *Trainer) inputs(df *dataframe.DataFrame, sc *scaler.StandardScaler) (*denseInputs, error) {
	scaled, err := sc.Transform(df, t.mem)
	if err != nil {
		return nil, err
	}
	x, err := Matrix(scaled, sc.Columns)
	if err != nil {
		return nil, err
	}
	y, err := Target(df, pipeline.LabelColumn)
	if err != nil {
		return nil, err
	}
	return &denseInputs{x: x, y: y}, nil
}

func (t *Trainer) fitOne(est Estimator, features []string, train, test *denseInputs, runID string) (ModelReport, error) {
	model, err := est.Fit(train.x, train.y, features)
	if err != nil {
		return ModelReport{}, err
	}

	artifact := Artifact{Model: model, RunID: runID, TrainedAt: time.Now().UTC()}
	for _, part := range []struct {
		in  *denseInputs
		out *Metrics
	}{
		{train, &artifact.Train},
		{test, &artifact.Test},
	} {
		preds, err := model.Predict(part.in.x)
		if err != nil {
			return ModelReport{}, err
		}
		if *part.out, err = Evaluate(preds, part.in.y); err != nil {
			return ModelReport{}, err
		}
	}

	path := ArtifactPath(t.cfg.ModelDir, model.Name)
	if err := writeJSON(path, artifact); err != nil {
		return ModelReport{}, err
	}
	return ModelReport{Name: model.Name, Path: path, Train: artifact.Train, Test: artifact.Test}, nil
}

// selectBest picks the lowest test RMSE; ties go to the earlier model.
func selectBest(models []ModelReport, runID string) Selection {
	best := models[0]
	for _, m := range models[1:] {
		if m.Test.RMSE < best.Test.RMSE {
			best = m
		}
	}
	return Selection{
		Model:      best.Name,
		Artifact:   filepath.Base(best.Path),
		TestRMSE:   best.Test.RMSE,
		RunID:      runID,
		SelectedAt: time.Now().UTC(),
	}
}

// ArtifactPath is where the artifact of the named model is stored.
func ArtifactPath(dir, model string) string {
	return filepath.Join(dir, model+".json")
}

// LoadArtifact reads a model artifact.
func LoadArtifact(path string) (*Artifact, error) {
	var a Artifact
	if err := readJSON(path, &a); err != nil {
		return nil, err
	}
	if a.Model == nil || len(a.Model.Features) != len(a.Model.Coefficients) {
		return nil, errors.NewSchemaError("LoadArtifact", "", fmt.Sprintf("%s is not a valid model artifact", path))
	}
	return &a, nil
}

// LoadSelection reads the best.json record from a model directory.
func LoadSelection(dir string) (*Selection, error) {
	var s Selection
	if err := readJSON(filepath.Join(dir, BestFile), &s); err != nil {
		return nil, err
	}
	if s.Artifact == "" {
		return nil, errors.NewSchemaError("LoadSelection", "", "selection record names no artifact")
	}
	return &s, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIOError("writeJSON", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewIOError("writeJSON", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.NewMissingInputError("readJSON", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errors.NewSchemaError("readJSON", "", fmt.Sprintf("decoding %s: %v", path, err))
	}
	return nil
}
