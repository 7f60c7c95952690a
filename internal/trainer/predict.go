package trainer

import (
	"path/filepath"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/pipeline"
	"github.com/paveg/sectorcast/internal/scaler"
	"github.com/paveg/sectorcast/internal/series"
	"go.uber.org/zap"
)

// PredictionColumn holds model output in frames returned by PredictFrame.
const PredictionColumn = "prediction"

// Predictor applies a saved scaler and model to new feature rows.
type Predictor struct {
	Scaler *scaler.StandardScaler
	Model  *LinearModel
	logger *zap.Logger
	mem    memory.Allocator
}

// LoadPredictor loads the scaler and the model named by best.json in modelDir.
func LoadPredictor(modelDir, scalerPath string, logger *zap.Logger) (*Predictor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sel, err := LoadSelection(modelDir)
	if err != nil {
		return nil, err
	}
	artifact, err := LoadArtifact(filepath.Join(modelDir, sel.Artifact))
	if err != nil {
		return nil, err
	}
	sc, err := scaler.Load(scalerPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("predictor loaded", zap.String("model", artifact.Model.Name), zap.String("run_id", sel.RunID))
	return &Predictor{Scaler: sc, Model: artifact.Model, logger: logger, mem: memory.NewGoAllocator()}, nil
}

// Predict returns one prediction per row. A label column in df is ignored and
// feature columns df lacks are treated as 0 before scaling.
func (p *Predictor) Predict(df *dataframe.DataFrame) ([]float64, error) {
	features := df.Drop(pipeline.LabelColumn)
	features, added, err := AddMissing(features, p.Scaler.Columns, p.mem)
	if err != nil {
		return nil, err
	}
	if len(added) > 0 {
		p.logger.Warn("feature columns missing from input, filled with 0", zap.Strings("columns", added))
	}

	scaled, err := p.Scaler.Transform(features, p.mem)
	if err != nil {
		return nil, err
	}
	x, err := Matrix(scaled, p.Model.Features)
	if err != nil {
		return nil, err
	}
	return p.Model.Predict(x)
}

// PredictFrame returns df without its label plus a prediction column.
func (p *Predictor) PredictFrame(df *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	preds, err := p.Predict(df)
	if err != nil {
		return nil, err
	}
	return df.Drop(pipeline.LabelColumn).WithColumn(series.New(PredictionColumn, preds, p.mem))
}
