package trainer

import (
	"math"
	"testing"

	pipeerrors "github.com/paveg/sectorcast/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// primalRidge solves (XcᵀXc + αI)β = Xcᵀyc directly as a reference.
func primalRidge(t *testing.T, x *mat.Dense, y []float64, alpha float64) []float64 {
	t.Helper()
	n, d := x.Dims()
	xc := mat.DenseCopyOf(x)
	for j := 0; j < d; j++ {
		var mean float64
		for i := 0; i < n; i++ {
			mean += x.At(i, j)
		}
		mean /= float64(n)
		for i := 0; i < n; i++ {
			xc.Set(i, j, x.At(i, j)-mean)
		}
	}
	var ym float64
	for _, v := range y {
		ym += v
	}
	ym /= float64(n)
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-ym)
	}

	var a mat.Dense
	a.Mul(xc.T(), xc)
	for i := 0; i < d; i++ {
		a.Set(i, i, a.At(i, i)+alpha)
	}
	var b mat.VecDense
	b.MulVec(xc.T(), yc)

	var beta mat.VecDense
	require.NoError(t, beta.SolveVec(&a, &b))
	return mat.Col(nil, 0, &beta)
}

func TestRidgeMatchesReference(t *testing.T) {
	tests := []struct {
		name string
		x    *mat.Dense
		y    []float64
	}{
		{
			name: "more rows than features",
			x:    mat.NewDense(5, 2, []float64{1, 0, 2, 1, 3, 0, 4, 1, 5, 0}),
			y:    []float64{5, 8, 9, 12, 13},
		},
		{
			name: "more features than rows",
			x:    mat.NewDense(3, 5, []float64{1, 2, 0, 4, 1, 0, 1, 3, 1, 2, 2, 0, 1, 0, 5}),
			y:    []float64{3, -1, 4},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, d := tt.x.Dims()
			features := make([]string, d)
			for j := range features {
				features[j] = string(rune('a' + j))
			}

			model, err := Ridge{Alpha: 0.5}.Fit(tt.x, tt.y, features)
			require.NoError(t, err)
			assert.Equal(t, ModelRidge, model.Name)
			assert.InDeltaSlice(t, primalRidge(t, tt.x, tt.y, 0.5), model.Coefficients, 1e-9)

			// the intercept makes the mean prediction equal the mean target
			preds, err := model.Predict(tt.x)
			require.NoError(t, err)
			var sumPred, sumY float64
			for i := range preds {
				sumPred += preds[i]
				sumY += tt.y[i]
			}
			assert.InDelta(t, sumY, sumPred, 1e-9)
		})
	}
}

func TestRidgeRecoversLinearSignal(t *testing.T) {
	n := 200
	data := make([]float64, 0, 2*n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b := float64(i%17), float64(i%5)
		data = append(data, a, b)
		y[i] = 3 + 2*a - b
	}

	model, err := Ridge{Alpha: 1e-6}.Fit(mat.NewDense(n, 2, data), y, []string{"a", "b"})
	require.NoError(t, err)
	assert.InDelta(t, 3.0, model.Intercept, 1e-4)
	assert.InDeltaSlice(t, []float64{2, -1}, model.Coefficients, 1e-4)
}

func TestBaselines(t *testing.T) {
	x := mat.NewDense(3, 2, []float64{-1, 5, 0, 6, 1, 7})
	y := []float64{10, 20, 60}
	features := []string{"nht_amount_new_house_transactions", "other"}

	mean, err := MeanBaseline{}.Fit(x, y, features)
	require.NoError(t, err)
	preds, err := mean.Predict(x)
	require.NoError(t, err)
	assert.Equal(t, []float64{30, 30, 30}, preds)

	persistence, err := PersistenceBaseline{Column: features[0], Mean: 100, Scale: 10}.Fit(x, y, features)
	require.NoError(t, err)
	preds, err = persistence.Predict(x)
	require.NoError(t, err)
	// scaled -1, 0, 1 map back to 90, 100, 110
	assert.InDeltaSlice(t, []float64{90, 100, 110}, preds, 1e-12)

	_, err = PersistenceBaseline{Column: "absent", Scale: 1}.Fit(x, y, features)
	assert.ErrorIs(t, err, pipeerrors.ErrSchema)
}

func TestFitErrors(t *testing.T) {
	x := mat.NewDense(2, 1, []float64{1, 2})

	_, err := Ridge{Alpha: 1}.Fit(x, []float64{1}, []string{"a"})
	assert.ErrorIs(t, err, pipeerrors.ErrDataIntegrity)

	_, err = Ridge{Alpha: 1}.Fit(x, []float64{1, 2}, []string{"a", "b"})
	assert.ErrorIs(t, err, pipeerrors.ErrDataIntegrity)

	_, err = Ridge{}.Fit(x, []float64{1, 2}, []string{"a"})
	assert.ErrorIs(t, err, pipeerrors.ErrInvalidInput)

	model := &LinearModel{Name: "m", Features: []string{"a", "b"}, Coefficients: []float64{1, 1}}
	_, err = model.Predict(x)
	assert.ErrorIs(t, err, pipeerrors.ErrInvalidInput)
}

func TestEvaluate(t *testing.T) {
	m, err := Evaluate([]float64{1, 2, 3}, []float64{1, 2, 5})
	require.NoError(t, err)
	assert.InDelta(t, 4.0/3, m.MSE, 1e-12)
	assert.InDelta(t, 2/math.Sqrt(3), m.RMSE, 1e-12)
	assert.InDelta(t, 2.0/3, m.MAE, 1e-12)
	assert.InDelta(t, 42.0/78, m.R2, 1e-12)
	assert.Equal(t, 3, m.N)

	perfect, err := Evaluate([]float64{4}, []float64{4})
	require.NoError(t, err)
	assert.Equal(t, 1.0, perfect.R2)

	off, err := Evaluate([]float64{3, 3}, []float64{4, 4})
	require.NoError(t, err)
	assert.Equal(t, 0.0, off.R2)
	assert.InDelta(t, 1.0, off.RMSE, 1e-12)

	_, err = Evaluate(nil, nil)
	assert.ErrorIs(t, err, pipeerrors.ErrDataIntegrity)
	_, err = Evaluate([]float64{1}, []float64{1, 2})
	assert.ErrorIs(t, err, pipeerrors.ErrDataIntegrity)
}
