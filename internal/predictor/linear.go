package predictor

import (
	"context"
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// LinearModel is an ordinary least squares regressor.
type LinearModel struct {
	Features     []string
	Intercept    float64
	Coefficients []float64
}

// FitLinear fits y ≈ intercept + x·coefficients by least squares.
func FitLinear(x [][]float64, y []float64, features []string) (*LinearModel, error) {
	n := len(x)
	if n == 0 {
		return nil, errors.New("no training rows")
	}
	if n != len(y) {
		return nil, fmt.Errorf("rows and targets size mismatch: %d != %d", n, len(y))
	}
	p := len(x[0])
	if p == 0 {
		return nil, errors.New("training rows have no features")
	}
	if len(features) > 0 && len(features) != p {
		return nil, fmt.Errorf("%d feature names for %d columns", len(features), p)
	}

	// Design matrix with a leading column of ones for the intercept.
	design := mat.NewDense(n, p+1, nil)
	for i, row := range x {
		if len(row) != p {
			return nil, fmt.Errorf("row %d has %d features, want %d", i, len(row), p)
		}
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}
	targets := mat.NewVecDense(n, append([]float64(nil), y...))

	// SVD gives the minimum-norm solution, so constant or collinear columns
	// still produce a usable fit.
	var beta mat.VecDense
	if err := solveMinNorm(&beta, design, targets); err != nil {
		return nil, err
	}

	coefficients := make([]float64, p)
	for j := range coefficients {
		coefficients[j] = beta.AtVec(j + 1)
	}

	return &LinearModel{
		Features:     append([]string(nil), features...),
		Intercept:    beta.AtVec(0),
		Coefficients: coefficients,
	}, nil
}

// rankTolerance is the singular value cutoff, relative to the largest one.
const rankTolerance = 1e-10

func solveMinNorm(dst *mat.VecDense, design *mat.Dense, targets *mat.VecDense) error {
	var svd mat.SVD
	if !svd.Factorize(design, mat.SVDThin) {
		return errors.New("least squares solve failed: SVD did not converge")
	}
	rank := svd.Rank(rankTolerance)
	if rank == 0 {
		return errors.New("least squares solve failed: design matrix has rank 0")
	}
	svd.SolveVecTo(dst, targets, rank)
	return nil
}

func (m *LinearModel) InputDim() int {
	return len(m.Coefficients)
}

func (m *LinearModel) Predict(_ context.Context, features []float64) (float64, error) {
	if len(m.Coefficients) == 0 {
		return 0, fmt.Errorf("%w: model has no coefficients", ErrPredictorUnavailable)
	}
	if err := CheckFeatures(features, len(m.Coefficients)); err != nil {
		return 0, err
	}

	sum := m.Intercept
	for i, v := range features {
		sum += m.Coefficients[i] * v
	}
	return sum, nil
}

func (m *LinearModel) PredictBatch(ctx context.Context, rows [][]float64) ([]float64, error) {
	out := make([]float64, len(rows))
	for i, row := range rows {
		v, err := m.Predict(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Artifact returns the serializable form of the model.
func (m *LinearModel) Artifact() *Artifact {
	return &Artifact{
		Kind:         KindLinear,
		Features:     append([]string(nil), m.Features...),
		Intercept:    m.Intercept,
		Coefficients: append([]float64(nil), m.Coefficients...),
	}
}
