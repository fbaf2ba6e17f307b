package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bobby-s-dev/water-demand/internal/predictor"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RemotePredictor forwards predictions to an HTTP sidecar, typically a
// Python process serving the pickled model.
//
//	POST <url>  {"features": [20, 50, 50, 30]}  ->  1534.2
//	GET  <url>                                  ->  OK
//
// A JSON body of the form {"prediction": 1534.2} is accepted as well.
type RemotePredictor struct {
	*BaseClient
	url string
	dim int
}

type remoteRequest struct {
	Features []float64 `json:"features"`
}

type remoteResponse struct {
	Prediction *float64 `json:"prediction"`
}

// NewRemotePredictor builds a client for url. dim is the expected vector
// length, 0 when unknown.
func NewRemotePredictor(url string, dim int, config ClientConfig, logger *zap.Logger) *RemotePredictor {
	return &RemotePredictor{
		BaseClient: NewBaseClient("remote-predictor", config, logger),
		url:        url,
		dim:        dim,
	}
}

func (c *RemotePredictor) InputDim() int {
	return c.dim
}

func (c *RemotePredictor) Predict(ctx context.Context, features []float64) (float64, error) {
	if err := predictor.CheckFeatures(features, c.dim); err != nil {
		return 0, err
	}

	body, err := json.Marshal(remoteRequest{Features: features})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", predictor.ErrInvalidFeature, err)
	}

	data, err := c.PostWithRetry(ctx, c.url, body)
	if err != nil {
		return 0, classify(err)
	}

	value, err := parsePrediction(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", predictor.ErrPredictorFault, err)
	}
	return value, nil
}

// Ping checks the sidecar health endpoint.
func (c *RemotePredictor) Ping(ctx context.Context) error {
	data, err := c.GetWithRetry(ctx, c.url)
	if err != nil {
		return classify(err)
	}
	if strings.TrimSpace(string(data)) != "OK" {
		return fmt.Errorf("%w: unexpected health response %q", predictor.ErrPredictorUnavailable, truncate(string(data), 50))
	}
	return nil
}

// classify maps transport failures onto the predictor error kinds. A sidecar
// rejecting the request is a fault; everything else means it cannot be
// reached.
func classify(err error) error {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && !statusErr.Retryable() {
		return fmt.Errorf("%w: %v", predictor.ErrPredictorFault, err)
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: circuit breaker: %v", predictor.ErrPredictorUnavailable, err)
	}
	return fmt.Errorf("%w: %v", predictor.ErrPredictorUnavailable, err)
}

func parsePrediction(data []byte) (float64, error) {
	text := strings.TrimSpace(string(data))

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		var resp remoteResponse
		if jsonErr := json.Unmarshal(data, &resp); jsonErr != nil || resp.Prediction == nil {
			return 0, fmt.Errorf("unparseable prediction %q", truncate(text, 50))
		}
		value = *resp.Prediction
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, fmt.Errorf("prediction %v is not finite", value)
	}
	return value, nil
}
