package api

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/bobby-s-dev/water-demand/internal/models"
	"github.com/bobby-s-dev/water-demand/internal/predictor"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Predictor is the façade as seen by the HTTP layer.
type Predictor interface {
	Predict(ctx context.Context, features []float64) (*models.Prediction, error)
	PredictNamed(ctx context.Context, values map[string]float64) (*models.Prediction, error)
	Accuracy() (float64, bool)
	Importance() ([]models.FeatureImportance, error)
	Schema() *models.FeatureSchema
	ModelSource() string
	Degraded() bool
	Ready() bool
	LoadError() error
	GetStats() map[string]interface{}
}

type ProbeStatusProvider interface {
	GetStatus() models.ProbeStatus
}

type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]models.PredictionRecord, error)
}

type Handler struct {
	facade  Predictor
	probe   ProbeStatusProvider
	history HistoryReader
	logger  *zap.Logger
	printer *message.Printer
}

// NewHandler wires the façade into HTTP handlers. probe and history may be nil.
func NewHandler(facade Predictor, probe ProbeStatusProvider, history HistoryReader, logger *zap.Logger) *Handler {
	return &Handler{
		facade:  facade,
		probe:   probe,
		history: history,
		logger:  logger,
		printer: message.NewPrinter(language.English),
	}
}

var homeTemplate = template.Must(template.New("home").Parse(`<!DOCTYPE html>
<html>
<head><title>Water Demand Predictor</title></head>
<body>
<h1>Smart Water Demand Prediction</h1>
<p>Model accuracy: {{.Accuracy}}</p>
<p>Model source: {{.Source}}{{if .Degraded}} (fallback model, artifact failed to load){{end}}{{if not .Ready}} (no model loaded, predictions are unavailable){{end}}</p>
<p>Features: {{.Features}}</p>
<p>Predictions served: {{.Served}}</p>
</body>
</html>
`))

// GetHome handles GET /
func (h *Handler) GetHome(c *fiber.Ctx) error {
	accuracy := "unavailable"
	if acc, ok := h.facade.Accuracy(); ok {
		accuracy = h.printer.Sprintf("%.2f%%", acc)
	}

	served := 0
	if n, ok := h.facade.GetStats()["success_count"].(int); ok {
		served = n
	}

	var buf strings.Builder
	err := homeTemplate.Execute(&buf, map[string]interface{}{
		"Accuracy": accuracy,
		"Source":   h.facade.ModelSource(),
		"Degraded": h.facade.Degraded(),
		"Ready":    h.facade.Ready(),
		"Features": strings.Join(h.facade.Schema().Names(), ", "),
		"Served":   h.printer.Sprintf("%d", served),
	})
	if err != nil {
		return err
	}

	c.Type("html", "utf-8")
	return c.SendString(buf.String())
}

// Predict handles POST /predict
//
// The body is either the schema's named fields
//
//	{"temperature": 20, "humidity": 50, "rainfall": 10, "soilMoisture": 30}
//
// or a raw vector in schema order
//
//	{"features": [20, 50, 10, 30]}
func (h *Handler) Predict(c *fiber.Ctx) error {
	var payload map[string]interface{}
	if err := c.BodyParser(&payload); err != nil {
		return h.predictionError(c, fmt.Errorf("%w: malformed JSON body: %v", predictor.ErrInvalidFeature, err))
	}

	var (
		prediction *models.Prediction
		err        error
	)
	if raw, ok := payload["features"]; ok {
		var vector []float64
		vector, err = toVector(raw)
		if err == nil {
			prediction, err = h.facade.Predict(c.UserContext(), vector)
		}
	} else {
		var values map[string]float64
		values, err = toNamed(payload, h.facade.Schema().Names())
		if err == nil {
			prediction, err = h.facade.PredictNamed(c.UserContext(), values)
		}
	}
	if err != nil {
		return h.predictionError(c, err)
	}

	h.logger.Debug("Prediction served",
		zap.Float64("prediction", prediction.Value),
		zap.Bool("cached", prediction.Cached))

	return c.JSON(prediction)
}

func (h *Handler) predictionError(c *fiber.Ctx, err error) error {
	h.logger.Error("Prediction error", zap.Error(err))

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Failed to make prediction",
		"code":    errorCode(err),
		"details": err.Error(),
		"status":  "error",
	})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, predictor.ErrFeatureCount):
		return "feature_count"
	case errors.Is(err, predictor.ErrInvalidFeature):
		return "invalid_feature"
	case errors.Is(err, predictor.ErrPredictorUnavailable):
		return "predictor_unavailable"
	case errors.Is(err, predictor.ErrPredictorFault):
		return "predictor_fault"
	default:
		return "internal"
	}
}

func toVector(raw interface{}) ([]float64, error) {
	items, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: features must be an array of numbers", predictor.ErrInvalidFeature)
	}
	vector := make([]float64, len(items))
	for i, item := range items {
		v, ok := item.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: feature %d is not a number", predictor.ErrInvalidFeature, i)
		}
		vector[i] = v
	}
	return vector, nil
}

// toNamed keeps only schema fields so unknown keys are ignored.
func toNamed(payload map[string]interface{}, names []string) (map[string]float64, error) {
	values := make(map[string]float64, len(names))
	for _, name := range names {
		raw, ok := payload[name]
		if !ok {
			continue
		}
		v, ok := raw.(float64)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a number", predictor.ErrInvalidFeature, name)
		}
		values[name] = v
	}
	return values, nil
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	status := "healthy"
	if h.facade.Degraded() {
		status = "degraded"
	}

	body := fiber.Map{
		"status":       status,
		"timestamp":    time.Now(),
		"uptime":       time.Since(startTime).String(),
		"model_source": h.facade.ModelSource(),
		"schema":       h.facade.Schema().Name,
	}
	if acc, ok := h.facade.Accuracy(); ok {
		body["accuracy"] = acc
	}
	if !h.facade.Ready() {
		body["status"] = "unhealthy"
		if err := h.facade.LoadError(); err != nil {
			body["error"] = err.Error()
		}
	}
	if h.probe != nil {
		probe := h.probe.GetStatus()
		body["probe"] = probe
		if probe.Enabled && probe.Runs > 0 && !probe.Healthy {
			body["status"] = "unhealthy"
		}
	}

	return c.JSON(body)
}

// GetMetrics handles GET /api/v1/metrics
func (h *Handler) GetMetrics(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"metrics":   h.facade.GetStats(),
		"timestamp": time.Now(),
	})
}

// GetSchema handles GET /api/v1/schema
func (h *Handler) GetSchema(c *fiber.Ctx) error {
	return c.JSON(h.facade.Schema())
}

// GetImportance handles GET /api/v1/importance
func (h *Handler) GetImportance(c *fiber.Ctx) error {
	importance, err := h.facade.Importance()
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   "Feature importance unavailable",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"target":     h.facade.Schema().Target,
		"importance": importance,
	})
}

// GetPredictions handles GET /api/v1/predictions
func (h *Handler) GetPredictions(c *fiber.Ctx) error {
	if h.history == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Prediction history is disabled",
		})
	}

	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 500 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Limit parameter must be between 1 and 500",
		})
	}

	records, err := h.history.Recent(c.UserContext(), limit)
	if err != nil {
		h.logger.Error("Failed to read prediction history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to read prediction history",
			"details": err.Error(),
		})
	}
	if records == nil {
		records = []models.PredictionRecord{}
	}

	return c.JSON(fiber.Map{
		"predictions": records,
		"count":       len(records),
	})
}

var startTime = time.Now()
