// Package predictor holds the regression predictors served by the façade and
// the artifact format they are loaded from.
package predictor

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrArtifactMissing      = errors.New("predictor artifact not found")
	ErrArtifactInvalid      = errors.New("predictor artifact invalid")
	ErrFeatureCount         = errors.New("feature count mismatch")
	ErrInvalidFeature       = errors.New("invalid feature value")
	ErrPredictorUnavailable = errors.New("predictor unavailable")
	ErrPredictorFault       = errors.New("predictor fault")
)

// Predictor maps an ordered feature vector to a scalar.
type Predictor interface {
	Predict(ctx context.Context, features []float64) (float64, error)
	// InputDim is the expected vector length, or 0 when the predictor
	// cannot tell.
	InputDim() int
}

// BatchPredictor is implemented by predictors that can score many rows in
// one call.
type BatchPredictor interface {
	PredictBatch(ctx context.Context, rows [][]float64) ([]float64, error)
}

// CheckFeatures rejects vectors of the wrong length (dim > 0) and non-finite
// values.
func CheckFeatures(features []float64, dim int) error {
	if dim > 0 && len(features) != dim {
		return fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(features), dim)
	}
	for i, v := range features {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: feature %d is not finite", ErrInvalidFeature, i)
		}
	}
	return nil
}

// PredictAll scores every row, using PredictBatch when available.
func PredictAll(ctx context.Context, p Predictor, rows [][]float64) ([]float64, error) {
	if bp, ok := p.(BatchPredictor); ok {
		return bp.PredictBatch(ctx, rows)
	}

	out := make([]float64, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := p.Predict(ctx, row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
