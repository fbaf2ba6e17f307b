package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobby-s-dev/water-demand/internal/models"
	"go.uber.org/zap"
)

func TestStoreRecordAndRecent(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := &models.PredictionRecord{
			Schema:      "climate",
			Features:    []float64{20, 50, float64(i)},
			Prediction:  1600 + float64(i),
			ModelSource: models.SourceArtifact,
			Cached:      i == 2,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.Record(ctx, rec); err != nil {
			t.Fatalf("record failed: %v", err)
		}
		if rec.ID == 0 {
			t.Fatal("expected id to be assigned")
		}
	}

	n, err := s.Count(ctx)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 records, got %d (%v)", n, err)
	}

	recent, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recent))
	}
	newest := recent[0]
	if newest.Prediction != 1602 || !newest.Cached || newest.Features[2] != 2 {
		t.Fatalf("unexpected newest record %+v", newest)
	}
	if !newest.CreatedAt.Equal(base.Add(2 * time.Minute)) {
		t.Fatalf("unexpected timestamp %v", newest.CreatedAt)
	}
}

func TestStoreInMemory(t *testing.T) {
	s, err := Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer s.Close()

	if err := s.Record(context.Background(), &models.PredictionRecord{Schema: "api", Features: []float64{1}}); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	recent, err := s.Recent(context.Background(), 0)
	if err != nil || len(recent) != 1 {
		t.Fatalf("expected 1 record, got %d (%v)", len(recent), err)
	}
}
