package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeProber struct {
	calls    int32
	finished int32
	delay    time.Duration
	err      error
}

func (f *fakeProber) Probe(ctx context.Context) error {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	atomic.AddInt32(&f.finished, 1)
	return f.err
}

func TestForceRunRecordsStatus(t *testing.T) {
	p := &fakeProber{err: errors.New("predictor unavailable")}
	s := NewScheduler(p, "@every 1h", time.Second, zap.NewNop())

	s.ForceRun()
	status := s.GetStatus()
	if status.Runs != 1 || status.Failures != 1 || status.Healthy {
		t.Fatalf("unexpected status %+v", status)
	}
	if status.Error != "predictor unavailable" {
		t.Fatalf("unexpected error %q", status.Error)
	}

	p.err = nil
	s.ForceRun()
	status = s.GetStatus()
	if status.Runs != 2 || !status.Healthy || status.Error != "" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestStartRunsImmediately(t *testing.T) {
	p := &fakeProber{}
	s := NewScheduler(p, "@every 1h", time.Second, zap.NewNop())

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&p.calls) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("probe did not run on start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !s.GetStatus().Enabled {
		t.Fatal("expected enabled status")
	}
}

func TestStopWaitsForStartupRun(t *testing.T) {
	p := &fakeProber{delay: 100 * time.Millisecond}
	s := NewScheduler(p, "@every 1h", time.Second, zap.NewNop())

	if err := s.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Stop()

	if atomic.LoadInt32(&p.finished) != 1 {
		t.Fatalf("startup run still in flight after Stop, finished=%d", atomic.LoadInt32(&p.finished))
	}
	if s.GetStatus().Runs != 1 {
		t.Fatalf("expected the startup run to be recorded, got %+v", s.GetStatus())
	}
}

func TestStartDisabledAndInvalid(t *testing.T) {
	p := &fakeProber{}

	disabled := NewScheduler(p, "", time.Second, zap.NewNop())
	if err := disabled.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	disabled.Stop()
	if disabled.GetStatus().Enabled {
		t.Fatal("expected disabled status")
	}

	invalid := NewScheduler(p, "every now and then", time.Second, zap.NewNop())
	if err := invalid.Start(); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}
