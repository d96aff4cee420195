// Package refresh runs the feed import on a cron schedule.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "meetcal/internal/log"
)

// ErrBusy is returned by RunNow when a run is already in progress.
var ErrBusy = errors.New("refresh already running")

// Job is one refresh pass.
type Job func(ctx context.Context) error

// Scheduler triggers a Job on a standard 5-field cron spec (descriptors like
// "@every 5m" and "@hourly" work too). Overlapping runs are skipped.
type Scheduler struct {
	spec  string
	sched cron.Schedule
	loc   *time.Location
	cron  *cron.Cron
	job   Job
	log   *appLog.Logger

	mu      sync.Mutex
	running bool
	runs    int
}

// New validates spec and returns a stopped Scheduler.
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}
	l := appLog.Component("refresh")
	s := &Scheduler{spec: spec, sched: sched, loc: loc, job: job, log: l}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{l}),
	)
	return s, nil
}

// Start schedules the job. Runs use ctx; cancelling it stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		if err := s.RunNow(ctx); err != nil && !errors.Is(err, ErrBusy) {
			s.log.Error("scheduled refresh failed", err)
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("refresh scheduled", "spec", s.spec, "next", s.Next().Format(time.RFC3339))

	go func() {
		<-ctx.Done()
		<-s.Stop().Done()
	}()
	return nil
}

// Stop halts the schedule. The returned context is done once a running job
// has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// RunNow runs the job immediately. It returns ErrBusy without running when
// a run is already in progress.
func (s *Scheduler) RunNow(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn("refresh still running; skipped")
		return ErrBusy
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.runs++
		s.mu.Unlock()
	}()

	start := time.Now()
	err := s.job(ctx)
	s.log.Debug("refresh finished", "took", time.Since(start).String())
	return err
}

// Next is the next time the schedule fires after now.
func (s *Scheduler) Next() time.Time {
	return s.sched.Next(time.Now().In(s.loc))
}

// Runs counts completed runs.
func (s *Scheduler) Runs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs
}

// cronLogger routes cron's own messages through the app logger.
type cronLogger struct{ l *appLog.Logger }

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.l.Debug(msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.l.Error(msg, err, kv...)
}
