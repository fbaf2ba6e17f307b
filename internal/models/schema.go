package models

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Feature is one input column. Min and Max are advisory input bounds shown to
// clients; they are not enforced.
type Feature struct {
	Name string  `json:"name" yaml:"name"`
	Unit string  `json:"unit,omitempty" yaml:"unit,omitempty"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
}

// FeatureSchema fixes the names and order of the values a predictor was
// trained on, plus the target column of the reference dataset.
type FeatureSchema struct {
	Name     string    `json:"name" yaml:"name"`
	Target   string    `json:"target" yaml:"target"`
	Features []Feature `json:"features" yaml:"features"`
}

func (s *FeatureSchema) Len() int {
	return len(s.Features)
}

func (s *FeatureSchema) Names() []string {
	names := make([]string, len(s.Features))
	for i, f := range s.Features {
		names[i] = f.Name
	}
	return names
}

// Vector orders named values by the schema. The second result lists the
// schema features absent from values; the vector is nil when it is non-empty.
func (s *FeatureSchema) Vector(values map[string]float64) ([]float64, []string) {
	vector := make([]float64, len(s.Features))
	var missing []string
	for i, f := range s.Features {
		v, ok := values[f.Name]
		if !ok {
			missing = append(missing, f.Name)
			continue
		}
		vector[i] = v
	}
	if len(missing) > 0 {
		return nil, missing
	}
	return vector, nil
}

func (s *FeatureSchema) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("schema name is required")
	}
	if s.Target == "" {
		return fmt.Errorf("schema %s: target column is required", s.Name)
	}
	if len(s.Features) == 0 {
		return fmt.Errorf("schema %s: at least one feature is required", s.Name)
	}

	seen := make(map[string]bool, len(s.Features))
	for _, f := range s.Features {
		if f.Name == "" {
			return fmt.Errorf("schema %s: feature with empty name", s.Name)
		}
		if f.Name == s.Target {
			return fmt.Errorf("schema %s: feature %s is also the target", s.Name, f.Name)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema %s: duplicate feature %s", s.Name, f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

var builtinSchemas = map[string]FeatureSchema{
	"api": {
		Name:   "api",
		Target: "Water_Demand_L/ha",
		Features: []Feature{
			{Name: "temperature", Unit: "°C", Min: -20, Max: 50},
			{Name: "humidity", Unit: "%", Min: 0, Max: 100},
			{Name: "rainfall", Unit: "mm", Min: 0, Max: 500},
			{Name: "soilMoisture", Unit: "%", Min: 0, Max: 100},
		},
	},
	"sensor": {
		Name:   "sensor",
		Target: "Water_Demand_L/ha",
		Features: []Feature{
			{Name: "Temperature_C", Unit: "°C", Min: -20, Max: 50},
			{Name: "Humidity_%", Unit: "%", Min: 0, Max: 100},
			{Name: "Rainfall_mm", Unit: "mm", Min: 0, Max: 500},
			{Name: "Soil_Moisture_%", Unit: "%", Min: 0, Max: 100},
			{Name: "Water_Level_m", Unit: "m", Min: 0, Max: 50},
		},
	},
	"demand": {
		Name:   "demand",
		Target: "water_demand",
		Features: []Feature{
			{Name: "population", Min: 0, Max: 1000000},
			{Name: "temperature", Unit: "°C", Min: -20, Max: 50},
			{Name: "precipitation", Unit: "mm", Min: 0, Max: 500},
			{Name: "evaporation", Unit: "mm", Min: 0, Max: 200},
		},
	},
	"climate": {
		Name:   "climate",
		Target: "water_demand",
		Features: []Feature{
			{Name: "temperature", Unit: "°C", Min: -20, Max: 50},
			{Name: "precipitation", Unit: "mm", Min: 0, Max: 500},
			{Name: "evaporation", Unit: "mm", Min: 0, Max: 200},
		},
	},
}

// BuiltinSchema returns a copy of a named built-in schema.
func BuiltinSchema(name string) (*FeatureSchema, error) {
	s, ok := builtinSchemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown feature schema %q (available: %v)", name, BuiltinSchemaNames())
	}
	s.Features = append([]Feature(nil), s.Features...)
	return &s, nil
}

func BuiltinSchemaNames() []string {
	names := make([]string, 0, len(builtinSchemas))
	for name := range builtinSchemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadSchemaFile reads a schema from a YAML file.
func LoadSchemaFile(path string) (*FeatureSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}

	var s FeatureSchema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse schema file %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
