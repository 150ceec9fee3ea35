// Package scheduler runs periodic jobs on a cron schedule. A job is guarded
// by a distributed lock so that only one instance runs it per tick.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

type Job func(ctx context.Context) error

// Locker hands out named leases. ok is false when another instance holds the
// lease.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

type Option func(*Scheduler)

// WithTimeout bounds a single run of a job.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

func WithLockTTL(d time.Duration) Option {
	return func(s *Scheduler) { s.lockTTL = d }
}

type Scheduler struct {
	cron    *cronlib.Cron
	locker  Locker
	logger  *slog.Logger
	timeout time.Duration
	lockTTL time.Duration
}

// New creates a scheduler. A nil locker runs every tick locally.
func New(locker Locker, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron: cronlib.New(
			cronlib.WithLogger(cl),
			cronlib.WithChain(cronlib.Recover(cl), cronlib.SkipIfStillRunning(cl)),
		),
		locker:  locker,
		logger:  logger,
		timeout: 5 * time.Minute,
		lockTTL: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers job under name. spec is a standard 5-field expression or a
// descriptor such as "@every 1m".
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.runOnce(context.Background(), name, job) }); err != nil {
		return fmt.Errorf("scheduler: add %s (%q): %w", name, spec, err)
	}
	s.logger.Info("scheduled job", "job", name, "spec", spec)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs or ctx, whichever ends
// first.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runOnce(parent context.Context, name string, job Job) {
	ctx, cancel := context.WithTimeout(parent, s.timeout)
	defer cancel()

	if s.locker != nil {
		release, ok, err := s.locker.TryLock(ctx, name, s.lockTTL)
		if err != nil {
			jobRuns.WithLabelValues(name, "lock_error").Inc()
			s.logger.Error("scheduler lock failed", "job", name, "error", err)
			return
		}
		if !ok {
			jobRuns.WithLabelValues(name, "skipped").Inc()
			s.logger.Debug("job held by another instance", "job", name)
			return
		}
		defer func() {
			if err := release(context.Background()); err != nil {
				s.logger.Warn("scheduler lock release failed", "job", name, "error", err)
			}
		}()
	}

	start := time.Now()
	if err := job(ctx); err != nil {
		jobRuns.WithLabelValues(name, "error").Inc()
		s.logger.Error("scheduled job failed", "job", name, "duration", time.Since(start), "error", err)
		return
	}
	jobRuns.WithLabelValues(name, "ok").Inc()
	s.logger.Info("scheduled job finished", "job", name, "duration", time.Since(start))
}

// cronLogger adapts slog to the cron library's logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
