package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bobby-s-dev/water-demand/internal/models"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Prober checks that the predictor still answers.
type Prober interface {
	Probe(ctx context.Context) error
}

type Scheduler struct {
	prober  Prober
	logger  *zap.Logger
	spec    string
	timeout time.Duration
	cron    *cron.Cron
	entry   cron.EntryID
	mu      sync.Mutex
	inline  sync.WaitGroup
	running bool
	status  models.ProbeStatus
}

func NewScheduler(prober Prober, spec string, timeout time.Duration, logger *zap.Logger) *Scheduler {
	cronLog := cronLogger{logger.Sugar()}
	return &Scheduler{
		prober:  prober,
		logger:  logger,
		spec:    spec,
		timeout: timeout,
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
		),
		status: models.ProbeStatus{Enabled: spec != "", Schedule: spec},
	}
}

// Start schedules the probe and runs it once immediately. An empty spec
// leaves the scheduler disabled.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.spec == "" {
		return nil
	}

	entry, err := s.cron.AddFunc(s.spec, s.runProbe)
	if err != nil {
		return fmt.Errorf("invalid probe schedule %q: %w", s.spec, err)
	}
	s.entry = entry
	s.running = true
	s.cron.Start()

	s.logger.Info("Scheduler started",
		zap.String("schedule", s.spec),
		zap.Time("next_run", s.cron.Entry(entry).Next))

	// Run immediately on start
	s.inline.Add(1)
	go func() {
		defer s.inline.Done()
		s.runProbe()
	}()

	return nil
}

func (s *Scheduler) runProbe() {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	err := s.prober.Probe(ctx)
	duration := time.Since(startTime)

	s.mu.Lock()
	s.status.LastRun = startTime
	s.status.Duration = duration
	s.status.Runs++
	s.status.Healthy = err == nil
	s.status.Error = ""
	if err != nil {
		s.status.Failures++
		s.status.Error = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("Predictor probe failed",
			zap.Error(err),
			zap.Duration("duration", duration))
	} else {
		s.logger.Debug("Predictor probe completed",
			zap.Duration("duration", duration))
	}
}

func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Stopping scheduler")
	// Wait for probes in flight.
	<-s.cron.Stop().Done()
	s.inline.Wait()
}

func (s *Scheduler) ForceRun() {
	s.logger.Info("Manually triggering predictor probe")
	s.runProbe()
}

func (s *Scheduler) GetStatus() models.ProbeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
