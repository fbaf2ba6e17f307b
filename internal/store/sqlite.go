// Package store keeps an audit log of served predictions in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bobby-s-dev/water-demand/internal/models"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS predictions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    schema_name TEXT NOT NULL,
    features TEXT NOT NULL,
    prediction REAL NOT NULL,
    model_source TEXT NOT NULL,
    cached INTEGER NOT NULL DEFAULT 0,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_predictions_created_at ON predictions(created_at);
`

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates the database file and schema if needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	// SQLite serializes writers; one connection also keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	logger.Info("Prediction history store opened", zap.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Record(ctx context.Context, rec *models.PredictionRecord) error {
	features, err := json.Marshal(rec.Features)
	if err != nil {
		return err
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO predictions (schema_name, features, prediction, model_source, cached, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Schema, string(features), rec.Prediction, rec.ModelSource, rec.Cached, createdAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, schema_name, features, prediction, model_source, cached, created_at
         FROM predictions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var records []models.PredictionRecord
	for rows.Next() {
		var (
			rec       models.PredictionRecord
			features  string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.Schema, &features, &rec.Prediction, &rec.ModelSource, &rec.Cached, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(features), &rec.Features); err != nil {
			s.logger.Warn("Corrupt features column", zap.Int64("id", rec.ID), zap.Error(err))
		}
		rec.CreatedAt = time.Unix(0, createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM predictions`).Scan(&n)
	return n, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
