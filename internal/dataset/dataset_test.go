package dataset

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bobby-s-dev/water-demand/internal/models"
)

const climateCSV = `temperature,precipitation,evaporation,water_demand
10,20,30,1000
20,40,60,2000
30,60,90,3000
`

func TestReadSelectsSchemaColumns(t *testing.T) {
	// Columns deliberately out of schema order, plus an unused one.
	data := "evaporation,station,temperature,water_demand,precipitation\n" +
		"3,a,1,10,2\n" +
		"6,b,4,20,5\n"

	ds, err := Read(strings.NewReader(data), []string{"temperature", "precipitation", "evaporation"}, "water_demand")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", ds.Len())
	}
	want := []float64{1, 2, 3}
	for i, v := range want {
		if ds.X[0][i] != v {
			t.Fatalf("row 0 = %v, want %v", ds.X[0], want)
		}
	}
	if ds.Y[1] != 20 {
		t.Fatalf("expected target 20, got %v", ds.Y[1])
	}
}

func TestReadErrors(t *testing.T) {
	features := []string{"temperature"}

	if _, err := Read(strings.NewReader(""), features, "water_demand"); !errors.Is(err, ErrDatasetEmpty) {
		t.Fatalf("expected ErrDatasetEmpty for empty input, got %v", err)
	}
	if _, err := Read(strings.NewReader("temperature,water_demand\n"), features, "water_demand"); !errors.Is(err, ErrDatasetEmpty) {
		t.Fatalf("expected ErrDatasetEmpty for header only, got %v", err)
	}
	if _, err := Read(strings.NewReader("temperature,demand\n1,2\n"), features, "water_demand"); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch for missing target, got %v", err)
	}
	if _, err := Read(strings.NewReader("humidity,water_demand\n1,2\n"), features, "water_demand"); !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch for missing feature, got %v", err)
	}
	if _, err := Read(strings.NewReader("temperature,water_demand\nhot,2\n"), features, "water_demand"); err == nil {
		t.Fatal("expected parse error for non-numeric cell")
	}
}

func TestLoadMissingFile(t *testing.T) {
	schema, err := models.BuiltinSchema("climate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = Load(filepath.Join(t.TempDir(), "absent.csv"), schema)
	if !errors.Is(err, ErrDatasetMissing) {
		t.Fatalf("expected ErrDatasetMissing, got %v", err)
	}
}

func TestLoadTargetRangeAndCorrelations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(climateCSV), 0o600); err != nil {
		t.Fatal(err)
	}
	schema, _ := models.BuiltinSchema("climate")

	ds, err := Load(path, schema)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	min, max := ds.TargetRange()
	if min != 1000 || max != 3000 {
		t.Fatalf("unexpected range [%v, %v]", min, max)
	}

	corr := ds.Correlations()
	if len(corr) != 3 {
		t.Fatalf("expected 3 correlations, got %d", len(corr))
	}
	for _, c := range corr {
		if math.Abs(c.Correlation-1) > 1e-9 {
			t.Fatalf("expected perfect correlation for %s, got %v", c.Feature, c.Correlation)
		}
	}
}

func TestCorrelationsConstantColumn(t *testing.T) {
	data := "temperature,water_demand\n5,1\n5,2\n5,3\n"
	ds, err := Read(strings.NewReader(data), []string{"temperature"}, "water_demand")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c := ds.Correlations()[0].Correlation; c != 0 {
		t.Fatalf("expected 0 for constant column, got %v", c)
	}
}
