package predictor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

const (
	KindLinear = "linear"
	KindRemote = "remote"
)

// Artifact is the on-disk form of a predictor.
//
//	{
//	  "kind": "linear",
//	  "features": ["temperature", "humidity", "rainfall", "soilMoisture"],
//	  "intercept": 812.4,
//	  "coefficients": [12.1, -3.2, -0.8, -5.5]
//	}
//
// A remote artifact names an HTTP sidecar instead of coefficients.
//
//	{"kind": "remote", "url": "http://localhost:5000/predict"}
type Artifact struct {
	Kind         string    `json:"kind"`
	Features     []string  `json:"features,omitempty"`
	Intercept    float64   `json:"intercept,omitempty"`
	Coefficients []float64 `json:"coefficients,omitempty"`
	URL          string    `json:"url,omitempty"`
	Description  string    `json:"description,omitempty"`
	TrainedAt    time.Time `json:"trained_at"`
}

func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactMissing, path)
		}
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrArtifactInvalid, path, err)
	}
	return &a, nil
}

func WriteArtifact(path string, a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Verify checks that the artifact describes something that can predict for
// the given feature order. An empty features list skips the name check.
func (a *Artifact) Verify(features []string) error {
	switch a.Kind {
	case KindLinear:
		if len(a.Coefficients) == 0 {
			return fmt.Errorf("%w: linear artifact has no coefficients", ErrArtifactInvalid)
		}
		for i, c := range a.Coefficients {
			if math.IsNaN(c) || math.IsInf(c, 0) {
				return fmt.Errorf("%w: coefficient %d is not finite", ErrArtifactInvalid, i)
			}
		}
		if len(a.Features) > 0 && len(a.Features) != len(a.Coefficients) {
			return fmt.Errorf("%w: %d features for %d coefficients",
				ErrArtifactInvalid, len(a.Features), len(a.Coefficients))
		}
		if len(features) > 0 && len(a.Coefficients) != len(features) {
			return fmt.Errorf("%w: artifact expects %d features, schema has %d",
				ErrArtifactInvalid, len(a.Coefficients), len(features))
		}
	case KindRemote:
		if a.URL == "" {
			return fmt.Errorf("%w: remote artifact has no url", ErrArtifactInvalid)
		}
	case "":
		return fmt.Errorf("%w: missing kind", ErrArtifactInvalid)
	default:
		return fmt.Errorf("%w: kind %q has no predict capability", ErrArtifactInvalid, a.Kind)
	}

	if len(a.Features) > 0 && len(features) > 0 {
		if len(a.Features) != len(features) {
			return fmt.Errorf("%w: artifact features %v do not match schema %v", ErrArtifactInvalid, a.Features, features)
		}
		for i := range features {
			if a.Features[i] != features[i] {
				return fmt.Errorf("%w: feature %d is %q, schema expects %q",
					ErrArtifactInvalid, i, a.Features[i], features[i])
			}
		}
	}
	return nil
}

// Linear builds the model of a verified linear artifact.
func (a *Artifact) Linear() (*LinearModel, error) {
	if a.Kind != KindLinear {
		return nil, fmt.Errorf("%w: kind %q is not %q", ErrArtifactInvalid, a.Kind, KindLinear)
	}
	return &LinearModel{
		Features:     append([]string(nil), a.Features...),
		Intercept:    a.Intercept,
		Coefficients: append([]float64(nil), a.Coefficients...),
	}, nil
}
