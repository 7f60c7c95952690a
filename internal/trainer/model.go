package trainer

import (
	"fmt"

	"github.com/paveg/sectorcast/internal/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Model names.
const (
	ModelMean        = "mean_baseline"
	ModelPersistence = "persistence_baseline"
	ModelRidge       = "ridge"
)

// DefaultRidgeAlpha is the L2 penalty used when none is configured.
const DefaultRidgeAlpha = 1.0

// LinearModel predicts Intercept + Coefficients . x over Features. Every model
// the trainer fits reduces to this form, so one artifact format serves all.
type LinearModel struct {
	Name         string    `json:"name"`
	Features     []string  `json:"features"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
}

// Predict returns one prediction per row of x.
func (m *LinearModel) Predict(x mat.Matrix) ([]float64, error) {
	rows, cols := x.Dims()
	if cols != len(m.Coefficients) {
		return nil, errors.NewInvalidInputError("Predict",
			fmt.Sprintf("model %s expects %d features, got %d", m.Name, len(m.Coefficients), cols))
	}
	if rows == 0 {
		return []float64{}, nil
	}

	var out mat.VecDense
	out.MulVec(x, mat.NewVecDense(cols, m.Coefficients))
	preds := make([]float64, rows)
	for i := range preds {
		preds[i] = out.AtVec(i) + m.Intercept
	}
	return preds, nil
}

// Estimator fits a LinearModel to a design matrix and targets.
type Estimator interface {
	Name() string
	Fit(x *mat.Dense, y []float64, features []string) (*LinearModel, error)
}

// MeanBaseline always predicts the training mean.
type MeanBaseline struct{}

func (MeanBaseline) Name() string { return ModelMean }

func (MeanBaseline) Fit(x *mat.Dense, y []float64, features []string) (*LinearModel, error) {
	if err := checkShape(x, y, features); err != nil {
		return nil, err
	}
	return &LinearModel{
		Name:         ModelMean,
		Features:     features,
		Intercept:    stat.Mean(y, nil),
		Coefficients: make([]float64, len(features)),
	}, nil
}

// PersistenceBaseline predicts next month's value as this month's. The input
// column is standardized, so Mean and Scale undo the scaling.
type PersistenceBaseline struct {
	Column string
	Mean   float64
	Scale  float64
}

func (PersistenceBaseline) Name() string { return ModelPersistence }

func (p PersistenceBaseline) Fit(x *mat.Dense, y []float64, features []string) (*LinearModel, error) {
	if err := checkShape(x, y, features); err != nil {
		return nil, err
	}
	coefs := make([]float64, len(features))
	idx := -1
	for i, name := range features {
		if name == p.Column {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, errors.NewColumnNotFoundError("PersistenceBaseline.Fit", p.Column)
	}
	coefs[idx] = p.Scale
	return &LinearModel{Name: ModelPersistence, Features: features, Intercept: p.Mean, Coefficients: coefs}, nil
}

// Ridge is L2-regularized least squares with an unpenalized intercept.
type Ridge struct {
	Alpha float64
}

func (Ridge) Name() string { return ModelRidge }

// Fit solves the normal equations exactly by Cholesky factorization: in
// feature space when there are at least as many rows as features, otherwise
// in sample space.
func (r Ridge) Fit(x *mat.Dense, y []float64, features []string) (*LinearModel, error) {
	const op = "Ridge.Fit"
	if err := checkShape(x, y, features); err != nil {
		return nil, err
	}
	if r.Alpha <= 0 {
		return nil, errors.NewInvalidInputError(op, fmt.Sprintf("alpha must be positive, got %v", r.Alpha))
	}
	n, d := x.Dims()

	xMeans := make([]float64, d)
	for j := range xMeans {
		xMeans[j] = stat.Mean(mat.Col(nil, j, x), nil)
	}
	yMean := stat.Mean(y, nil)

	xc := mat.NewDense(n, d, nil)
	xc.Apply(func(_, j int, v float64) float64 { return v - xMeans[j] }, x)
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	beta := mat.NewVecDense(d, nil)
	if n >= d {
		var gram mat.SymDense
		gram.SymOuterK(1, xc.T())
		addRidge(&gram, r.Alpha)

		var chol mat.Cholesky
		if ok := chol.Factorize(&gram); !ok {
			return nil, errors.NewDataIntegrityError(op, "normal equations are not positive definite")
		}
		var rhs mat.VecDense
		rhs.MulVec(xc.T(), yc)
		if err := chol.SolveVecTo(beta, &rhs); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	} else {
		var kernel mat.SymDense
		kernel.SymOuterK(1, xc)
		addRidge(&kernel, r.Alpha)

		var chol mat.Cholesky
		if ok := chol.Factorize(&kernel); !ok {
			return nil, errors.NewDataIntegrityError(op, "kernel matrix is not positive definite")
		}
		alpha := mat.NewVecDense(n, nil)
		if err := chol.SolveVecTo(alpha, yc); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		beta.MulVec(xc.T(), alpha)
	}

	coefs := make([]float64, d)
	intercept := yMean
	for j := range coefs {
		coefs[j] = beta.AtVec(j)
		intercept -= coefs[j] * xMeans[j]
	}
	return &LinearModel{Name: ModelRidge, Features: features, Intercept: intercept, Coefficients: coefs}, nil
}

func addRidge(s *mat.SymDense, alpha float64) {
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		s.SetSym(i, i, s.At(i, i)+alpha)
	}
}

func checkShape(x *mat.Dense, y []float64, features []string) error {
	n, d := x.Dims()
	switch {
	case n == 0:
		return errors.NewDataIntegrityError("Fit", "no training rows")
	case n != len(y):
		return errors.NewDataIntegrityError("Fit", fmt.Sprintf("%d rows but %d targets", n, len(y)))
	case d != len(features):
		return errors.NewDataIntegrityError("Fit", fmt.Sprintf("%d columns but %d feature names", d, len(features)))
	}
	return nil
}
