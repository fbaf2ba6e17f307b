package models

import (
	"time"
)

const (
	DemandLevelNormal = "normal"
	DemandLevelHigh   = "high"

	// Bounds of the "normal" demand band, in the target's units.
	normalDemandMin = 50000
	normalDemandMax = 150000
	// One capacity percent per this many units of demand.
	capacityUnit = 5000
)

const (
	SourceArtifact = "artifact"
	SourceFallback = "fallback"
	SourceRemote   = "remote"
	SourceNone     = "none"
)

type Prediction struct {
	Value           float64 `json:"prediction"`
	Status          string  `json:"status"`
	Schema          string  `json:"schema"`
	Level           string  `json:"level"`
	CapacityPercent int     `json:"capacity_percent"`
	ModelSource     string  `json:"model_source"`
	Degraded        bool    `json:"degraded"`
	Cached          bool    `json:"cached"`
}

// NewPrediction wraps a raw predictor output with its demand classification.
func NewPrediction(value float64, schema, source string, degraded, cached bool) *Prediction {
	level, capacity := ClassifyDemand(value)
	return &Prediction{
		Value:           value,
		Status:          "success",
		Schema:          schema,
		Level:           level,
		CapacityPercent: capacity,
		ModelSource:     source,
		Degraded:        degraded,
		Cached:          cached,
	}
}

// ClassifyDemand returns the demand level and the capacity percentage,
// capped to [0, 100].
func ClassifyDemand(value float64) (string, int) {
	level := DemandLevelHigh
	if value >= normalDemandMin && value <= normalDemandMax {
		level = DemandLevelNormal
	}

	capacity := int(value / capacityUnit)
	if capacity > 100 {
		capacity = 100
	}
	if capacity < 0 {
		capacity = 0
	}
	return level, capacity
}

type FeatureImportance struct {
	Feature     string  `json:"feature"`
	Correlation float64 `json:"correlation"`
}

type PredictionRecord struct {
	ID          int64     `json:"id"`
	Schema      string    `json:"schema"`
	Features    []float64 `json:"features"`
	Prediction  float64   `json:"prediction"`
	ModelSource string    `json:"model_source"`
	Cached      bool      `json:"cached"`
	CreatedAt   time.Time `json:"created_at"`
}

type ProbeStatus struct {
	Enabled  bool          `json:"enabled"`
	Schedule string        `json:"schedule,omitempty"`
	LastRun  time.Time     `json:"last_run"`
	Duration time.Duration `json:"duration"`
	Healthy  bool          `json:"healthy"`
	Error    string        `json:"error,omitempty"`
	Runs     int           `json:"runs"`
	Failures int           `json:"failures"`
}
