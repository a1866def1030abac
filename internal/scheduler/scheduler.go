// Package scheduler runs named jobs on fixed intervals. Jobs are plain
// funcs that can also be invoked directly, so tests single-step a cycle
// instead of racing wall-clock timers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/fd1az/flashloan-bot/internal/logger"
)

// Job is one scheduled unit of work. Errors are logged, never fatal.
type Job func(ctx context.Context) error

// Scheduler owns a set of interval-driven jobs.
type Scheduler struct {
	logger logger.LoggerInterface

	mu   sync.Mutex
	jobs []scheduledJob
	wg   sync.WaitGroup

	cancel  context.CancelFunc
	started bool
}

type scheduledJob struct {
	name     string
	interval time.Duration
	run      Job
}

// New creates an empty scheduler.
func New(log logger.LoggerInterface) *Scheduler {
	return &Scheduler{logger: log}
}

// Add registers a job. Must be called before Start.
func (s *Scheduler) Add(name string, interval time.Duration, job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, scheduledJob{name: name, interval: interval, run: job})
}

// Start launches one goroutine per job. Each job runs once immediately,
// then on its interval until the context is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)

	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, j)
	}
}

func (s *Scheduler) loop(ctx context.Context, j scheduledJob) {
	defer s.wg.Done()

	RunOnce(ctx, s.logger, j.name, j.run)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scheduler job stopping", "job", j.name, "reason", ctx.Err())
			return
		case <-ticker.C:
			RunOnce(ctx, s.logger, j.name, j.run)
		}
	}
}

// Stop cancels all jobs and waits for in-flight cycles to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// RunOnce executes a single job cycle, recovering panics so one bad cycle
// cannot take down the scan loop.
func RunOnce(ctx context.Context, log logger.LoggerInterface, name string, job Job) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(ctx, "scheduler job panicked", "job", name, "panic", r)
		}
	}()

	if err := job(ctx); err != nil {
		log.Warn(ctx, "scheduler job failed", "job", name, "error", err)
	}
}
