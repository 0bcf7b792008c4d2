// Package sweep runs periodic expiry sweeps on a cron schedule.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job removes expired items and reports how many it removed
type Job struct {
	Name string
	Run  func(ctx context.Context) (int, error)
}

// Recorder is told how many items each job removed
type Recorder interface {
	ObserveSweep(target string, removed int)
}

// Sweeper runs every job on a shared schedule
type Sweeper struct {
	cron     *cron.Cron
	jobs     []Job
	recorder Recorder
	logger   *slog.Logger
	timeout  time.Duration
}

// New creates a Sweeper for the given cron spec (standard five-field or
// descriptors such as "@every 1m"). Nothing runs until Start.
func New(schedule string, recorder Recorder, logger *slog.Logger, jobs ...Job) (*Sweeper, error) {
	logger = logger.With(slog.String("component", "sweep"))
	s := &Sweeper{
		jobs:     jobs,
		recorder: recorder,
		logger:   logger,
		timeout:  30 * time.Second,
	}

	cl := cronLogger{logger: logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins running sweeps in the background
func (s *Sweeper) Start() {
	s.cron.Start()
	s.logger.Info("sweeper started", slog.Int("jobs", len(s.jobs)))
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end
func (s *Sweeper) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.logger.Info("sweeper stopped")
}

// RunOnce runs every job now. A failing job does not stop the others.
func (s *Sweeper) RunOnce(ctx context.Context) map[string]int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	removed := make(map[string]int, len(s.jobs))
	for _, job := range s.jobs {
		n, err := job.Run(ctx)
		if err != nil {
			s.logger.Error("sweep job failed",
				slog.String("job", job.Name),
				slog.String("error", err.Error()))
			continue
		}
		removed[job.Name] = n
		if s.recorder != nil {
			s.recorder.ObserveSweep(job.Name, n)
		}
	}
	return removed
}

// cronLogger routes cron's own logging to slog
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err.Error())...)
}
