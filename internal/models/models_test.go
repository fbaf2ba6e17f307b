package models

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClassifyDemand(t *testing.T) {
	cases := []struct {
		value    float64
		level    string
		capacity int
	}{
		{1600, DemandLevelHigh, 0},
		{50000, DemandLevelNormal, 10},
		{150000, DemandLevelNormal, 30},
		{150001, DemandLevelHigh, 30},
		{900000, DemandLevelHigh, 100},
		{-5000, DemandLevelHigh, 0},
	}
	for _, tc := range cases {
		level, capacity := ClassifyDemand(tc.value)
		if level != tc.level || capacity != tc.capacity {
			t.Errorf("ClassifyDemand(%v) = %s, %d; want %s, %d", tc.value, level, capacity, tc.level, tc.capacity)
		}
	}
}

func TestBuiltinSchemas(t *testing.T) {
	for _, name := range BuiltinSchemaNames() {
		s, err := BuiltinSchema(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if err := s.Validate(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}

	sensor, _ := BuiltinSchema("sensor")
	if sensor.Len() != 5 || sensor.Names()[4] != "Water_Level_m" {
		t.Fatalf("unexpected sensor schema %v", sensor.Names())
	}

	// Copies must not alias the registry.
	sensor.Features[0].Name = "changed"
	again, _ := BuiltinSchema("sensor")
	if again.Features[0].Name != "Temperature_C" {
		t.Fatal("builtin schema was mutated through a copy")
	}

	if _, err := BuiltinSchema("dashboard"); err == nil {
		t.Fatal("expected error for unknown schema")
	}
}

func TestSchemaVector(t *testing.T) {
	s, _ := BuiltinSchema("climate")

	vector, missing := s.Vector(map[string]float64{"evaporation": 50, "temperature": 20, "precipitation": 50})
	if len(missing) != 0 {
		t.Fatalf("unexpected missing %v", missing)
	}
	if vector[0] != 20 || vector[2] != 50 {
		t.Fatalf("unexpected order %v", vector)
	}

	vector, missing = s.Vector(map[string]float64{"temperature": 20})
	if vector != nil || len(missing) != 2 {
		t.Fatalf("expected two missing features, got %v %v", vector, missing)
	}
}

func TestLoadSchemaFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	content := `name: field
target: Water_Demand_L/ha
features:
  - name: Temperature_C
    unit: "°C"
    min: -20
    max: 50
  - name: Rainfall_mm
    min: 0
    max: 500
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSchemaFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name != "field" || s.Len() != 2 || s.Features[0].Min != -20 {
		t.Fatalf("unexpected schema %+v", s)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("name: dup\ntarget: y\nfeatures:\n  - name: a\n  - name: a\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSchemaFile(bad); err == nil {
		t.Fatal("expected error for duplicate features")
	}
}
