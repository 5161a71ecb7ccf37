// Package scheduler runs a periodic job on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "calplan/internal/log"
)

// Job is invoked on every tick. Ticks that arrive while the previous run is
// still busy are skipped.
type Job func(ctx context.Context) error

// Scheduler wraps a cron runner with a single entry. A Scheduler built from
// an empty spec is disabled and its methods are no-ops.
type Scheduler struct {
	spec string
	cron *cron.Cron
	id   cron.EntryID
	job  Job
	ctx  context.Context
}

// cronLogger routes cron's own messages into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}

// New parses spec (standard five fields or a descriptor such as
// "@every 15m") in loc.
func New(spec string, loc *time.Location, job Job) (*Scheduler, error) {
	s := &Scheduler{spec: spec, job: job, ctx: context.Background()}
	if spec == "" {
		return s, nil
	}
	if loc == nil {
		loc = time.Local
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("scheduler: invalid schedule %q: %w", spec, err)
	}

	logger := cronLogger{}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return nil, fmt.Errorf("scheduler: add %q: %w", spec, err)
	}
	s.id = id
	return s, nil
}

func (s *Scheduler) Enabled() bool { return s.cron != nil }

func (s *Scheduler) run() {
	started := time.Now()
	if err := s.job(s.ctx); err != nil {
		appLog.Error("scheduled job failed", err, "schedule", s.spec)
		return
	}
	appLog.Debug("scheduled job done", "schedule", s.spec, "took", time.Since(started))
}

// Start begins ticking. Jobs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cron == nil {
		appLog.Info("scheduler disabled")
		return
	}
	s.ctx = ctx
	s.cron.Start()
	appLog.Info("scheduler started", "schedule", s.spec, "next", s.Next())
}

// Next reports the next planned run, or the zero time when disabled or not
// started.
func (s *Scheduler) Next() time.Time {
	if s.cron == nil {
		return time.Time{}
	}
	return s.cron.Entry(s.id).Next
}

// Stop halts ticking and waits for a running job until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}
	done := s.cron.Stop()
	select {
	case <-done.Done():
		appLog.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
