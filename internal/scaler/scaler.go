// Package scaler implements the standard scaler fitted on the training
// partition and applied unchanged to every later frame.
package scaler

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/paveg/sectorcast/internal/dataframe"
	"github.com/paveg/sectorcast/internal/errors"
	"github.com/paveg/sectorcast/internal/series"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler maps each feature x to (x - mean) / scale.
type StandardScaler struct {
	Columns  []string  `json:"columns"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
	FittedAt time.Time `json:"fitted_at"`
}

// Fit learns the population mean and standard deviation of every numeric
// column not listed in exclude. Nulls are ignored; a constant column gets
// scale 1 so it maps to zero.
func Fit(df *dataframe.DataFrame, exclude ...string) (*StandardScaler, error) {
	const op = "scaler.Fit"
	if df.Len() == 0 {
		return nil, errors.NewDataIntegrityError(op, "cannot fit on an empty frame")
	}

	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	s := &StandardScaler{FittedAt: time.Now().UTC()}
	for _, name := range df.Columns() {
		col, _ := df.Column(name)
		if skip[name] || !dataframe.IsNumeric(col.DataType()) {
			continue
		}
		values, valid, err := dataframe.Float64Values(col)
		if err != nil {
			return nil, err
		}
		present := presentValues(values, valid)

		mean, scale := 0.0, 1.0
		if len(present) > 0 {
			var variance float64
			mean, variance = stat.PopMeanVariance(present, nil)
			if sd := math.Sqrt(variance); sd > 0 && !math.IsNaN(sd) {
				scale = sd
			}
		}
		s.Columns = append(s.Columns, name)
		s.Mean = append(s.Mean, mean)
		s.Scale = append(s.Scale, scale)
	}

	if len(s.Columns) == 0 {
		return nil, errors.NewInvalidInputError(op, "no numeric feature columns to scale")
	}
	return s, nil
}

func presentValues(values []float64, valid []bool) []float64 {
	if valid == nil {
		return values
	}
	out := make([]float64, 0, len(values))
	for i, v := range values {
		if valid[i] {
			out = append(out, v)
		}
	}
	return out
}

// Index returns the position of a fitted column, or -1.
func (s *StandardScaler) Index(column string) int {
	for i, name := range s.Columns {
		if name == column {
			return i
		}
	}
	return -1
}

// Transform replaces every fitted column with its scaled float64 version.
// Other columns pass through. Nulls stay null.
func (s *StandardScaler) Transform(df *dataframe.DataFrame, mem memory.Allocator) (*dataframe.DataFrame, error) {
	const op = "scaler.Transform"
	if err := s.check(); err != nil {
		return nil, err
	}

	out := df
	for i, name := range s.Columns {
		col, ok := df.Column(name)
		if !ok {
			return nil, errors.NewColumnNotFoundError(op, name)
		}
		values, valid, err := dataframe.Float64Values(col)
		if err != nil {
			return nil, err
		}

		scaled := make([]float64, len(values))
		for j, v := range values {
			if dataframe.Valid(valid, j) {
				scaled[j] = (v - s.Mean[i]) / s.Scale[i]
			}
		}
		replacement, err := series.NewNullable(name, scaled, valid, mem)
		if err != nil {
			return nil, err
		}
		if out, err = out.WithColumn(replacement); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Inverse maps a scaled value of column back to its original units.
func (s *StandardScaler) Inverse(column string, value float64) (float64, error) {
	i := s.Index(column)
	if i < 0 {
		return 0, errors.NewColumnNotFoundError("scaler.Inverse", column)
	}
	return value*s.Scale[i] + s.Mean[i], nil
}

func (s *StandardScaler) check() error {
	if len(s.Mean) != len(s.Columns) || len(s.Scale) != len(s.Columns) {
		return errors.NewInvalidInputError("scaler", fmt.Sprintf(
			"inconsistent scaler: %d columns, %d means, %d scales", len(s.Columns), len(s.Mean), len(s.Scale)))
	}
	for i, sc := range s.Scale {
		if sc == 0 || math.IsNaN(sc) || math.IsInf(sc, 0) {
			return errors.NewInvalidInputError("scaler", fmt.Sprintf("column %s has invalid scale %v", s.Columns[i], sc))
		}
	}
	return nil
}

// Save writes the scaler as JSON, creating parent directories.
func (s *StandardScaler) Save(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding scaler: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIOError("scaler.Save", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewIOError("scaler.Save", path, err)
	}
	return nil
}

// Load reads a scaler written by Save.
func Load(path string) (*StandardScaler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewMissingInputError("scaler.Load", path, err)
	}
	var s StandardScaler
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.NewSchemaError("scaler.Load", "", fmt.Sprintf("decoding %s: %v", path, err))
	}
	if err := s.check(); err != nil {
		return nil, err
	}
	return &s, nil
}
