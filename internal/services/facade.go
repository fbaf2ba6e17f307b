package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bobby-s-dev/water-demand/internal/config"
	"github.com/bobby-s-dev/water-demand/internal/dataset"
	"github.com/bobby-s-dev/water-demand/internal/models"
	"github.com/bobby-s-dev/water-demand/internal/predictor"
	"github.com/bobby-s-dev/water-demand/pkg/client"
	"go.uber.org/zap"
)

// HistoryRecorder persists served predictions.
type HistoryRecorder interface {
	Record(ctx context.Context, rec *models.PredictionRecord) error
}

// Facade owns the loaded predictor and reference dataset. Both are immutable
// after NewFacade returns.
type Facade struct {
	predictor predictor.Predictor
	dataset   *dataset.Dataset
	schema    *models.FeatureSchema
	cache     *PredictionCache
	history   HistoryRecorder
	logger    *zap.Logger

	source   string
	degraded bool
	loadErr  error
	accuracy *float64
	loadedAt time.Time

	mu           sync.RWMutex
	successCount int
	failureCount int
	lastPredict  time.Time
}

// NewFacade loads the predictor artifact and the reference dataset once.
// Artifact failures follow cfg.Model.FailurePolicy: "strict" leaves the
// predictor unset, "fallback" fits a linear model on the reference dataset and
// marks the façade degraded. A façade without a predictor still serves; its
// predictions fail with ErrPredictorUnavailable. Only an invalid schema is
// returned as an error.
func NewFacade(ctx context.Context, cfg *config.Config, schema *models.FeatureSchema, history HistoryRecorder, logger *zap.Logger) (*Facade, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	f := &Facade{
		schema:   schema,
		cache:    NewPredictionCache(cfg.Cache.Duration, cfg.Cache.MaxSize, logger),
		history:  history,
		logger:   logger,
		loadedAt: time.Now(),
	}

	ds, dsErr := dataset.Load(cfg.Model.DataPath, schema)
	if dsErr != nil {
		logger.Warn("Reference dataset unavailable",
			zap.String("path", cfg.Model.DataPath),
			zap.Error(dsErr))
	} else {
		f.dataset = ds
		logger.Info("Reference dataset loaded",
			zap.String("path", cfg.Model.DataPath),
			zap.Int("rows", ds.Len()))
	}

	p, source, err := loadPredictor(cfg, schema, logger)
	if err != nil {
		f.loadErr = err
		logger.Error("Error loading model",
			zap.String("path", cfg.Model.Path),
			zap.Error(err))

		p, source = f.fallback(cfg, err, dsErr)
	}
	f.predictor = p
	f.source = source

	if f.predictor != nil && f.dataset != nil {
		acc, err := f.computeAccuracy(ctx)
		if err != nil {
			logger.Warn("Could not compute model accuracy", zap.Error(err))
		} else {
			f.accuracy = &acc
		}
	}

	fields := []zap.Field{
		zap.String("source", f.source),
		zap.String("schema", schema.Name),
		zap.Bool("degraded", f.degraded),
	}
	if f.accuracy != nil {
		fields = append(fields, zap.String("accuracy", fmt.Sprintf("%.2f%%", *f.accuracy)))
	}
	if f.predictor == nil {
		logger.Error("Serving without a model", fields...)
	} else {
		logger.Info("Model loaded", fields...)
	}

	return f, nil
}

// fallback fits the substitute model, or returns a nil predictor when the
// policy or the missing dataset forbids it.
func (f *Facade) fallback(cfg *config.Config, loadErr, dsErr error) (predictor.Predictor, string) {
	if cfg.Model.FailurePolicy == config.PolicyStrict {
		f.logger.Error("No predictor loaded, predictions will fail until restart",
			zap.String("policy", cfg.Model.FailurePolicy))
		return nil, models.SourceNone
	}
	if f.dataset == nil {
		f.loadErr = fmt.Errorf("%w; fallback impossible: %v", loadErr, dsErr)
		f.logger.Error("No predictor loaded, fallback needs the reference dataset",
			zap.Error(dsErr))
		return nil, models.SourceNone
	}

	model, err := predictor.FitLinear(f.dataset.X, f.dataset.Y, f.schema.Names())
	if err != nil {
		f.loadErr = fmt.Errorf("%w; fallback fit failed: %v", loadErr, err)
		f.logger.Error("No predictor loaded, fallback fit failed", zap.Error(err))
		return nil, models.SourceNone
	}

	f.degraded = true
	f.logger.Warn("Serving fallback linear model fit on reference dataset",
		zap.Float64("intercept", model.Intercept),
		zap.Float64s("coefficients", model.Coefficients))
	return model, models.SourceFallback
}

func loadPredictor(cfg *config.Config, schema *models.FeatureSchema, logger *zap.Logger) (predictor.Predictor, string, error) {
	artifact, err := predictor.ReadArtifact(cfg.Model.Path)
	if err != nil {
		return nil, "", err
	}
	if err := artifact.Verify(schema.Names()); err != nil {
		return nil, "", err
	}

	switch artifact.Kind {
	case predictor.KindLinear:
		model, err := artifact.Linear()
		if err != nil {
			return nil, "", err
		}
		return model, models.SourceArtifact, nil
	case predictor.KindRemote:
		clientConfig := client.ClientConfig{
			Timeout:        cfg.Model.RemoteTimeout,
			MaxRetries:     cfg.Retry.MaxRetries,
			RetryDelay:     cfg.Retry.Delay,
			Multiplier:     cfg.Retry.Multiplier,
			Threshold:      cfg.CircuitBreaker.Threshold,
			BreakerTimeout: cfg.CircuitBreaker.Timeout,
		}
		logger.Info("Remote predictor client initialized", zap.String("url", artifact.URL))
		return client.NewRemotePredictor(artifact.URL, schema.Len(), clientConfig, logger), models.SourceRemote, nil
	default:
		return nil, "", fmt.Errorf("%w: kind %q", predictor.ErrArtifactInvalid, artifact.Kind)
	}
}

func (f *Facade) computeAccuracy(ctx context.Context) (float64, error) {
	estimates, err := predictor.PredictAll(ctx, f.predictor, f.dataset.X)
	if err != nil {
		return 0, err
	}
	return predictor.AccuracyPercent(f.dataset.Y, estimates)
}

// Predict scores one feature vector in schema order.
func (f *Facade) Predict(ctx context.Context, features []float64) (*models.Prediction, error) {
	value, cached, err := f.predict(ctx, features)
	if err != nil {
		f.recordOutcome(false)
		f.logger.Warn("Prediction failed",
			zap.Float64s("features", features),
			zap.Error(err))
		return nil, err
	}
	f.recordOutcome(true)

	if f.history != nil {
		rec := &models.PredictionRecord{
			Schema:      f.schema.Name,
			Features:    append([]float64(nil), features...),
			Prediction:  value,
			ModelSource: f.source,
			Cached:      cached,
			CreatedAt:   time.Now(),
		}
		if err := f.history.Record(ctx, rec); err != nil {
			f.logger.Warn("Failed to record prediction", zap.Error(err))
		}
	}

	return models.NewPrediction(value, f.schema.Name, f.source, f.degraded, cached), nil
}

// PredictNamed orders named values by the schema before predicting.
func (f *Facade) PredictNamed(ctx context.Context, values map[string]float64) (*models.Prediction, error) {
	vector, missing := f.schema.Vector(values)
	if len(missing) > 0 {
		f.recordOutcome(false)
		return nil, fmt.Errorf("%w: missing %v", predictor.ErrInvalidFeature, missing)
	}
	return f.Predict(ctx, vector)
}

func (f *Facade) predict(ctx context.Context, features []float64) (float64, bool, error) {
	if f.predictor == nil {
		return 0, false, f.unavailable()
	}
	if err := predictor.CheckFeatures(features, f.schema.Len()); err != nil {
		return 0, false, err
	}

	if value, ok := f.cache.Get(features); ok {
		return value, true, nil
	}

	value, err := f.predictor.Predict(ctx, features)
	if err != nil {
		return 0, false, typed(err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false, fmt.Errorf("%w: non-finite prediction", predictor.ErrPredictorFault)
	}

	f.cache.Set(features, value)
	return value, false, nil
}

// typed ensures every error leaving the façade carries one of the predictor
// error kinds.
func typed(err error) error {
	for _, kind := range []error{
		predictor.ErrFeatureCount,
		predictor.ErrInvalidFeature,
		predictor.ErrPredictorUnavailable,
		predictor.ErrPredictorFault,
	} {
		if errors.Is(err, kind) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", predictor.ErrPredictorUnavailable, err)
	}
	return fmt.Errorf("%w: %v", predictor.ErrPredictorFault, err)
}

func (f *Facade) unavailable() error {
	if f.loadErr != nil {
		return fmt.Errorf("%w: %v", predictor.ErrPredictorUnavailable, f.loadErr)
	}
	return predictor.ErrPredictorUnavailable
}

// Probe runs one uncached prediction against a reference row, or a zero
// vector when no dataset is loaded, and pings remote predictors.
func (f *Facade) Probe(ctx context.Context) error {
	if f.predictor == nil {
		return f.unavailable()
	}
	if pinger, ok := f.predictor.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			return err
		}
	}

	row := make([]float64, f.schema.Len())
	if f.dataset != nil {
		row = f.dataset.X[0]
	}
	value, err := f.predictor.Predict(ctx, row)
	if err != nil {
		return typed(err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: non-finite prediction", predictor.ErrPredictorFault)
	}
	return nil
}

func (f *Facade) recordOutcome(ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ok {
		f.successCount++
		f.lastPredict = time.Now()
	} else {
		f.failureCount++
	}
}

// Accuracy is the startup R² percentage; false when no dataset was available.
func (f *Facade) Accuracy() (float64, bool) {
	if f.accuracy == nil {
		return 0, false
	}
	return *f.accuracy, true
}

// Importance returns feature/target correlations of the reference dataset.
func (f *Facade) Importance() ([]models.FeatureImportance, error) {
	if f.dataset == nil {
		return nil, dataset.ErrDatasetMissing
	}
	return f.dataset.Correlations(), nil
}

// TargetRange is the observed target range of the reference dataset.
func (f *Facade) TargetRange() (min, max float64, ok bool) {
	if f.dataset == nil {
		return 0, 0, false
	}
	min, max = f.dataset.TargetRange()
	return min, max, true
}

func (f *Facade) Schema() *models.FeatureSchema {
	return f.schema
}

func (f *Facade) ModelSource() string {
	return f.source
}

func (f *Facade) Degraded() bool {
	return f.degraded
}

// Ready reports whether a predictor is loaded.
func (f *Facade) Ready() bool {
	return f.predictor != nil
}

// LoadError is the artifact load failure, nil when the artifact loaded.
func (f *Facade) LoadError() error {
	return f.loadErr
}

func (f *Facade) GetStats() map[string]interface{} {
	f.mu.RLock()
	defer f.mu.RUnlock()

	stats := map[string]interface{}{
		"schema":          f.schema.Name,
		"model_source":    f.source,
		"degraded":        f.degraded,
		"ready":           f.predictor != nil,
		"loaded_at":       f.loadedAt,
		"success_count":   f.successCount,
		"failure_count":   f.failureCount,
		"last_prediction": f.lastPredict,
		"cache_stats":     f.cache.GetStats(),
	}
	if f.accuracy != nil {
		stats["accuracy"] = *f.accuracy
	}
	if f.dataset != nil {
		stats["reference_rows"] = f.dataset.Len()
	}
	if f.loadErr != nil {
		stats["load_error"] = f.loadErr.Error()
	}
	if b, ok := f.predictor.(interface{ BreakerState() string }); ok {
		stats["breaker_state"] = b.BreakerState()
	}
	return stats
}
