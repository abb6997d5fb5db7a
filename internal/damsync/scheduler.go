package damsync

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Schedule holds six-field cron specs (with seconds). A blank spec disables
// that job.
type Schedule struct {
	Catalog     string
	Measurement string
}

// Scheduler runs the daily catalog and measurement syncs on a cron schedule.
// A job that is still running when its next tick arrives is skipped.
type Scheduler struct {
	engine *Engine
	cron   *cron.Cron
	log    *zap.Logger
}

// NewScheduler builds a scheduler for e. Specs are parsed here so that a bad
// spec fails at startup.
func NewScheduler(ctx context.Context, e *Engine, sched Schedule, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	log := zap.L().With(zap.String("component", "damsync.scheduler"))
	logger := cronLogger{sugar: log.Sugar()}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	s := &Scheduler{engine: e, cron: c, log: log}

	if sched.Catalog != "" {
		if _, err := c.AddFunc(sched.Catalog, func() { s.runCatalog(ctx) }); err != nil {
			return nil, eris.Wrapf(err, "damsync: parse catalog schedule %q", sched.Catalog)
		}
	}
	if sched.Measurement != "" {
		if _, err := c.AddFunc(sched.Measurement, func() { s.runMeasurements(ctx) }); err != nil {
			return nil, eris.Wrapf(err, "damsync: parse measurement schedule %q", sched.Measurement)
		}
	}
	return s, nil
}

// Jobs is the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to return.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("scheduler started", zap.Int("jobs", s.Jobs()))
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runCatalog(ctx context.Context) {
	if _, err := s.engine.SyncCatalog(ctx); err != nil {
		s.log.Error("scheduled catalog sync failed", zap.Error(err))
	}
}

func (s *Scheduler) runMeasurements(ctx context.Context) {
	s.engine.SyncToday(ctx)
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
