package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bobby-s-dev/water-demand/internal/predictor"
	"go.uber.org/zap"
)

func testConfig() ClientConfig {
	return ClientConfig{
		Timeout:        time.Second,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		Multiplier:     2,
		Threshold:      3,
		BreakerTimeout: time.Minute,
	}
}

func TestRemotePredictPlainBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		var req remoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		if len(req.Features) != 3 {
			t.Errorf("expected 3 features, got %d", len(req.Features))
		}
		w.Write([]byte("1534.5\n"))
	}))
	defer server.Close()

	p := NewRemotePredictor(server.URL, 3, testConfig(), zap.NewNop())
	got, err := p.Predict(context.Background(), []float64{20, 50, 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1534.5 {
		t.Fatalf("expected 1534.5, got %v", got)
	}
}

func TestRemotePredictJSONBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"prediction": 42}`))
	}))
	defer server.Close()

	p := NewRemotePredictor(server.URL, 0, testConfig(), zap.NewNop())
	got, err := p.Predict(context.Background(), []float64{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("expected 42, got %v", got)
	}
}

func TestRemotePredictRetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("7"))
	}))
	defer server.Close()

	p := NewRemotePredictor(server.URL, 1, testConfig(), zap.NewNop())
	got, err := p.Predict(context.Background(), []float64{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 7 || atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("got %v after %d hits", got, hits)
	}
}

func TestRemotePredictClientErrorIsFault(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "X has 3 features, but model is expecting 4", http.StatusBadRequest)
	}))
	defer server.Close()

	p := NewRemotePredictor(server.URL, 0, testConfig(), zap.NewNop())
	_, err := p.Predict(context.Background(), []float64{1, 2, 3})
	if !errors.Is(err, predictor.ErrPredictorFault) {
		t.Fatalf("expected ErrPredictorFault, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("client errors must not be retried, got %d hits", hits)
	}
}

func TestRemotePredictGarbageBodyIsFault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	}))
	defer server.Close()

	p := NewRemotePredictor(server.URL, 0, testConfig(), zap.NewNop())
	if _, err := p.Predict(context.Background(), []float64{1}); !errors.Is(err, predictor.ErrPredictorFault) {
		t.Fatalf("expected ErrPredictorFault, got %v", err)
	}
}

func TestRemotePredictWrongLengthNeverCallsServer(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	p := NewRemotePredictor(server.URL, 4, testConfig(), zap.NewNop())
	if _, err := p.Predict(context.Background(), []float64{1}); !errors.Is(err, predictor.ErrFeatureCount) {
		t.Fatalf("expected ErrFeatureCount, got %v", err)
	}
	if hits != 0 {
		t.Fatalf("expected no server hits, got %d", hits)
	}
}

func TestRemoteCircuitBreakerOpens(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cfg := testConfig()
	cfg.MaxRetries = 0
	p := NewRemotePredictor(server.URL, 1, cfg, zap.NewNop())

	for i := 0; i < 3; i++ {
		if _, err := p.Predict(context.Background(), []float64{1}); !errors.Is(err, predictor.ErrPredictorUnavailable) {
			t.Fatalf("call %d: expected ErrPredictorUnavailable, got %v", i, err)
		}
	}
	if p.BreakerState() != "open" {
		t.Fatalf("expected open breaker, got %s", p.BreakerState())
	}

	before := atomic.LoadInt32(&hits)
	if _, err := p.Predict(context.Background(), []float64{1}); !errors.Is(err, predictor.ErrPredictorUnavailable) {
		t.Fatalf("expected ErrPredictorUnavailable, got %v", err)
	}
	if atomic.LoadInt32(&hits) != before {
		t.Fatal("open breaker must not reach the server")
	}
}

func TestRemotePing(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK\n"))
	}))
	defer healthy.Close()

	if err := NewRemotePredictor(healthy.URL, 0, testConfig(), zap.NewNop()).Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wrong := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("starting"))
	}))
	defer wrong.Close()

	err := NewRemotePredictor(wrong.URL, 0, testConfig(), zap.NewNop()).Ping(context.Background())
	if !errors.Is(err, predictor.ErrPredictorUnavailable) {
		t.Fatalf("expected ErrPredictorUnavailable, got %v", err)
	}
}
