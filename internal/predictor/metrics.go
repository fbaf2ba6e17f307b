package predictor

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// R2Score is the coefficient of determination of estimates against values.
// It can be negative for a predictor worse than the mean.
func R2Score(values, estimates []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values to score")
	}
	if len(values) != len(estimates) {
		return 0, fmt.Errorf("values and estimates size mismatch: %d != %d", len(values), len(estimates))
	}

	r2 := stat.RSquaredFrom(estimates, values, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return 0, errors.New("r2 undefined for constant targets")
	}
	return r2, nil
}

// AccuracyPercent is R² expressed as a percentage, so at most 100.
func AccuracyPercent(values, estimates []float64) (float64, error) {
	r2, err := R2Score(values, estimates)
	if err != nil {
		return 0, err
	}
	return r2 * 100, nil
}
