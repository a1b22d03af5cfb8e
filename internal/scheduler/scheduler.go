package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/quake-monitor/internal/quake"
)

// Runner is one ingestion pass.
type Runner interface {
	Run(ctx context.Context) (quake.RunStats, error)
}

// Options configures the Scheduler.
type Options struct {
	Interval   time.Duration
	RunTimeout time.Duration // bound on a single run
	RunOnStart bool
}

// Scheduler periodically runs ingestion in the background. A run still in
// progress when its next tick fires makes that tick a no-op.
type Scheduler struct {
	scheduler *gocron.Scheduler
	runner    Runner
	opts      Options
	logger    *zap.Logger

	// ctx is the parent of every run; Stop cancels it.
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	stopped bool
	active  sync.WaitGroup
}

// New creates a new Scheduler.
func New(runner Runner, opts Options, logger *zap.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 3 * time.Minute
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 2 * time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		runner:    runner,
		opts:      opts,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	job := s.scheduler.Every(s.opts.Interval).SingletonMode()
	if !s.opts.RunOnStart {
		job = job.WaitForSchedule()
	}
	if _, err := job.Do(s.runOnce); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started",
		zap.Duration("interval", s.opts.Interval),
		zap.Bool("run_on_start", s.opts.RunOnStart),
	)
	return nil
}

// Stop cancels any in-flight run, stops future ticks and waits for the
// cancelled run to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.scheduler.Stop()
	s.active.Wait()
}

// runOnce never lets a run's failure escape; the next tick always happens.
func (s *Scheduler) runOnce() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.active.Add(1)
	s.mu.Unlock()
	defer s.active.Done()

	ctx, cancel := context.WithTimeout(s.ctx, s.opts.RunTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduler: ingestion run panicked", zap.Any("panic", r))
		}
	}()

	if _, err := s.runner.Run(ctx); err != nil {
		if errors.Is(err, quake.ErrRunInProgress) {
			s.logger.Info("scheduler: previous run still active; skipping tick")
			return
		}
		if errors.Is(err, context.Canceled) && s.ctx.Err() != nil {
			s.logger.Info("scheduler: ingestion run cancelled by shutdown")
			return
		}
		s.logger.Error("scheduler: ingestion run failed", zap.Error(err))
	}
}
