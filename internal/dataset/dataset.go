// Package dataset loads the reference table used to score the predictor and
// to report feature correlations.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/bobby-s-dev/water-demand/internal/models"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrDatasetMissing = errors.New("reference dataset not found")
	ErrDatasetEmpty   = errors.New("reference dataset is empty")
	ErrSchemaMismatch = errors.New("reference dataset does not match schema")
)

// Dataset holds the schema's feature columns in schema order plus the target.
type Dataset struct {
	Features []string
	Target   string
	X        [][]float64
	Y        []float64
}

func Load(path string, schema *models.FeatureSchema) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetMissing, path)
		}
		return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
	}
	defer f.Close()

	ds, err := Read(f, schema.Names(), schema.Target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ds, nil
}

// Read parses CSV with a header row. Columns outside features and target are
// ignored.
func Read(r io.Reader, features []string, target string) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrDatasetEmpty
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	targetCol, ok := index[target]
	if !ok {
		return nil, fmt.Errorf("%w: target column %q not found", ErrSchemaMismatch, target)
	}
	featureCols := make([]int, len(features))
	for i, name := range features {
		col, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: feature column %q not found", ErrSchemaMismatch, name)
		}
		featureCols[i] = col
	}

	ds := &Dataset{
		Features: append([]string(nil), features...),
		Target:   target,
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		y, err := parseCell(record[targetCol])
		if err != nil {
			return nil, fmt.Errorf("line %d column %s: %w", line, target, err)
		}
		row := make([]float64, len(featureCols))
		for i, col := range featureCols {
			row[i], err = parseCell(record[col])
			if err != nil {
				return nil, fmt.Errorf("line %d column %s: %w", line, features[i], err)
			}
		}

		ds.X = append(ds.X, row)
		ds.Y = append(ds.Y, y)
	}

	if len(ds.Y) == 0 {
		return nil, ErrDatasetEmpty
	}
	return ds, nil
}

func parseCell(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %q is not finite", s)
	}
	return v, nil
}

func (d *Dataset) Len() int {
	return len(d.Y)
}

// Column returns a copy of feature column i.
func (d *Dataset) Column(i int) []float64 {
	col := make([]float64, len(d.X))
	for r, row := range d.X {
		col[r] = row[i]
	}
	return col
}

func (d *Dataset) TargetRange() (min, max float64) {
	min, max = d.Y[0], d.Y[0]
	for _, v := range d.Y[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// Correlations returns the Pearson correlation of each feature with the
// target. Constant columns report 0.
func (d *Dataset) Correlations() []models.FeatureImportance {
	out := make([]models.FeatureImportance, len(d.Features))
	for i, name := range d.Features {
		c := stat.Correlation(d.Column(i), d.Y, nil)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			c = 0
		}
		out[i] = models.FeatureImportance{Feature: name, Correlation: c}
	}
	return out
}
