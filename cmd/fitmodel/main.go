// Command fitmodel fits a linear predictor artifact from a reference CSV.
//
//	fitmodel -data synthetic_water_data.csv -schema api -out water_demand_model.json
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bobby-s-dev/water-demand/internal/dataset"
	"github.com/bobby-s-dev/water-demand/internal/logging"
	"github.com/bobby-s-dev/water-demand/internal/models"
	"github.com/bobby-s-dev/water-demand/internal/predictor"
	"go.uber.org/zap"
)

type options struct {
	dataPath    string
	schemaName  string
	schemaFile  string
	outPath     string
	description string
}

func main() {
	var opts options
	flag.StringVar(&opts.dataPath, "data", "synthetic_water_data.csv", "reference dataset CSV")
	flag.StringVar(&opts.schemaName, "schema", "api", "built-in feature schema")
	flag.StringVar(&opts.schemaFile, "schema-file", "", "YAML feature schema, overrides -schema")
	flag.StringVar(&opts.outPath, "out", "water_demand_model.json", "artifact output path")
	flag.StringVar(&opts.description, "description", "", "free-form artifact description")
	flag.Parse()

	logger, err := logging.New("info", "")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(opts, logger); err != nil {
		logger.Fatal("Failed to fit model", zap.Error(err))
	}
}

func run(opts options, logger *zap.Logger) error {
	var (
		schema *models.FeatureSchema
		err    error
	)
	if opts.schemaFile != "" {
		schema, err = models.LoadSchemaFile(opts.schemaFile)
	} else {
		schema, err = models.BuiltinSchema(opts.schemaName)
	}
	if err != nil {
		return fmt.Errorf("resolving feature schema: %w", err)
	}

	ds, err := dataset.Load(opts.dataPath, schema)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}

	model, err := predictor.FitLinear(ds.X, ds.Y, schema.Names())
	if err != nil {
		return err
	}

	estimates, err := model.PredictBatch(context.Background(), ds.X)
	if err != nil {
		return fmt.Errorf("scoring model: %w", err)
	}

	fields := []zap.Field{
		zap.String("path", opts.outPath),
		zap.String("schema", schema.Name),
		zap.Int("rows", ds.Len()),
	}
	if accuracy, err := predictor.AccuracyPercent(ds.Y, estimates); err != nil {
		logger.Warn("Could not compute accuracy", zap.Error(err))
	} else {
		fields = append(fields, zap.String("accuracy", fmt.Sprintf("%.2f%%", accuracy)))
	}

	artifact := model.Artifact()
	artifact.TrainedAt = time.Now().UTC()
	artifact.Description = opts.description
	if err := predictor.WriteArtifact(opts.outPath, artifact); err != nil {
		return fmt.Errorf("writing artifact: %w", err)
	}

	logger.Info("Model saved", fields...)
	return nil
}
