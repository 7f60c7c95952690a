package trainer

import (
	"fmt"
	"math"

	"github.com/paveg/sectorcast/internal/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Metrics are regression scores of predictions against targets.
type Metrics struct {
	MSE  float64 `json:"mse"`
	RMSE float64 `json:"rmse"`
	MAE  float64 `json:"mae"`
	R2   float64 `json:"r2"`
	N    int     `json:"n"`
}

// Evaluate scores predictions against targets. R2 of a constant target is 1
// for a perfect fit and 0 otherwise.
func Evaluate(predicted, actual []float64) (Metrics, error) {
	n := len(actual)
	if n == 0 {
		return Metrics{}, errors.NewDataIntegrityError("Evaluate", "no rows to score")
	}
	if len(predicted) != n {
		return Metrics{}, errors.NewDataIntegrityError("Evaluate",
			fmt.Sprintf("%d predictions for %d targets", len(predicted), n))
	}

	l2 := floats.Distance(predicted, actual, 2)
	m := Metrics{
		MSE:  l2 * l2 / float64(n),
		RMSE: l2 / math.Sqrt(float64(n)),
		MAE:  floats.Distance(predicted, actual, 1) / float64(n),
		N:    n,
	}

	if stat.Variance(actual, nil) > 0 {
		m.R2 = stat.RSquaredFrom(predicted, actual, nil)
	} else if l2 == 0 {
		m.R2 = 1
	}
	return m, nil
}
