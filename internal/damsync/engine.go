// Package damsync drives catalog and daily measurement syncs against the SIH
// report feed. Days run strictly one at a time with a pause before each
// upstream call; nothing is retried.
package damsync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/damsync/internal/feed"
	"github.com/sells-group/damsync/internal/model"
	"github.com/sells-group/damsync/internal/monitoring"
	"github.com/sells-group/damsync/internal/reconcile"
	"github.com/sells-group/damsync/internal/store"
)

// ErrUnknownDam is returned when a feed record names a dam that is not in the
// catalog. It ends the day it occurs in. It also matches store.ErrNotFound.
var ErrUnknownDam error = unknownDamError{}

type unknownDamError struct{}

func (unknownDamError) Error() string { return "damsync: unknown dam" }

func (unknownDamError) Is(target error) bool { return target == store.ErrNotFound }

// DefaultPace is the pause taken before each upstream call in a range sync.
const DefaultPace = 10 * time.Second

// Store is what the engine needs from persistence.
type Store interface {
	store.CatalogStore
	store.MeasurementStore
	store.SyncLogStore
}

// PauseFunc blocks for d or until ctx is done.
type PauseFunc func(ctx context.Context, d time.Duration) error

// Options configures an Engine. Zero values pick the defaults.
type Options struct {
	// Pace is the pause before each day of a range sync. Zero means DefaultPace.
	Pace time.Duration
	// Location decides what "today" is. Nil means UTC.
	Location *time.Location
	Clock    clockwork.Clock
	// Pause replaces the clock-based pause, mainly in tests.
	Pause   PauseFunc
	Metrics *monitoring.Metrics
}

// Engine runs catalog and measurement syncs.
type Engine struct {
	store        Store
	feed         feed.Source
	catalog      *reconcile.CatalogReconciler
	measurements *reconcile.MeasurementReconciler
	pace         time.Duration
	loc          *time.Location
	clock        clockwork.Clock
	pause        PauseFunc
	metrics      *monitoring.Metrics
	log          *zap.Logger
}

// NewEngine creates a sync engine.
func NewEngine(st Store, src feed.Source, opts Options) *Engine {
	if opts.Pace == 0 {
		opts.Pace = DefaultPace
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Pause == nil {
		opts.Pause = ClockPause(opts.Clock)
	}
	return &Engine{
		store:        st,
		feed:         src,
		catalog:      reconcile.NewCatalogReconciler(st),
		measurements: reconcile.NewMeasurementReconciler(st),
		pace:         opts.Pace,
		loc:          opts.Location,
		clock:        opts.Clock,
		pause:        opts.Pause,
		metrics:      opts.Metrics,
		log:          zap.L().With(zap.String("component", "damsync.engine")),
	}
}

// ClockPause returns a PauseFunc that waits on clock.
func ClockPause(clock clockwork.Clock) PauseFunc {
	return func(ctx context.Context, d time.Duration) error {
		if d <= 0 {
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clock.After(d):
			return nil
		}
	}
}

// Today returns the current calendar date in the engine's time zone.
func (e *Engine) Today() time.Time {
	return model.DateOf(e.clock.Now().In(e.loc))
}

// SyncRange syncs every day from start to end inclusive, oldest first, and
// returns one outcome per day. A day that fails is recorded in its outcome
// and later days still run. The error is non-nil only for a bad range or a
// cancelled context; outcomes gathered before cancellation are returned.
func (e *Engine) SyncRange(ctx context.Context, start, end string) ([]model.SyncOutcome, error) {
	r, err := ParseRange(start, end)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := e.log.With(zap.String("run_id", runID), zap.Stringer("range", r))
	log.Info("starting range sync", zap.Int("days", r.Len()), zap.Duration("pace", e.pace))

	outcomes := make([]model.SyncOutcome, 0, r.Len())
	var failed int
	for _, day := range r.Days() {
		log.Debug("pausing before fetch", zap.String("date", model.FormatDate(day)))
		if err := e.pause(ctx, e.pace); err != nil {
			return outcomes, eris.Wrap(err, "damsync: range sync cancelled")
		}
		out := e.syncDay(ctx, runID, day)
		if out.Failed() {
			failed++
		}
		outcomes = append(outcomes, out)
	}

	log.Info("range sync complete", zap.Int("days", len(outcomes)), zap.Int("failed", failed))
	return outcomes, nil
}

// SyncDate syncs a single YYYY-MM-DD date without pausing.
func (e *Engine) SyncDate(ctx context.Context, date string) (model.SyncOutcome, error) {
	day, err := ParseDay(date)
	if err != nil {
		return model.SyncOutcome{}, err
	}
	return e.SyncDay(ctx, day), nil
}

// SyncToday syncs the current date in the engine's time zone.
func (e *Engine) SyncToday(ctx context.Context) model.SyncOutcome {
	return e.SyncDay(ctx, e.Today())
}

// SyncDay fetches the report for one date and reconciles each record in feed
// order. The returned outcome carries the day's error, if any.
func (e *Engine) SyncDay(ctx context.Context, on time.Time) model.SyncOutcome {
	return e.syncDay(ctx, uuid.NewString(), model.DateOf(on))
}

// SyncCatalog fetches today's report and creates or overwrites a catalog entry
// for every record in it.
func (e *Engine) SyncCatalog(ctx context.Context) (model.CatalogOutcome, error) {
	today := e.Today()
	date := model.FormatDate(today)
	out := model.NewCatalogOutcome()
	out.RunID = uuid.NewString()
	out.Date = date
	log := e.log.With(zap.String("run_id", out.RunID), zap.String("date", date))

	syncID, err := e.store.StartSync(ctx, out.RunID, model.SyncKindCatalog, date)
	if err != nil {
		return out, eris.Wrap(err, "damsync: start catalog sync log")
	}

	log.Info("starting catalog sync")
	records, err := e.feed.Fetch(ctx, date)
	if err == nil {
		err = e.catalog.ReconcileBatch(ctx, records, &out)
	}

	written := len(out.Created) + len(out.Updated)
	if err != nil {
		log.Error("catalog sync failed", zap.Error(err))
		if logErr := e.store.FailSync(ctx, syncID, written, len(out.Skipped), err.Error()); logErr != nil {
			log.Error("failed to record sync failure", zap.Error(logErr))
		}
		return out, err
	}

	if err := e.store.CompleteSync(ctx, syncID, written, len(out.Skipped)); err != nil {
		log.Error("failed to record sync completion", zap.Error(err))
	}
	e.metrics.RecordCatalog(len(out.Created), len(out.Updated), len(out.Skipped), e.clock.Now())
	log.Info("catalog sync complete",
		zap.Int("created", len(out.Created)),
		zap.Int("updated", len(out.Updated)),
		zap.Int("skipped", len(out.Skipped)),
	)
	return out, nil
}

func (e *Engine) syncDay(ctx context.Context, runID string, on time.Time) model.SyncOutcome {
	out := model.NewSyncOutcome(runID, on)
	run := newDayRun(e.log.With(zap.String("run_id", runID), zap.String("date", out.Date)))

	syncID, err := e.store.StartSync(ctx, runID, model.SyncKindMeasurement, out.Date)
	if err != nil {
		out.Fail(eris.Wrap(err, "damsync: start sync log"))
		run.finish(&out)
		return out
	}

	run.enter(StateFetching)
	records, err := e.feed.Fetch(ctx, out.Date)
	if err != nil {
		out.Fail(err)
	} else {
		run.enter(StateProcessing)
		e.processRecords(ctx, on, records, &out)
	}
	run.finish(&out)
	run.enter(StateDone)

	written, skipped := len(out.Written), len(out.Skipped)
	if out.Failed() {
		if logErr := e.store.FailSync(ctx, syncID, written, skipped, out.Error); logErr != nil {
			run.log.Error("failed to record sync failure", zap.Error(logErr))
		}
	} else if logErr := e.store.CompleteSync(ctx, syncID, written, skipped); logErr != nil {
		run.log.Error("failed to record sync completion", zap.Error(logErr))
	}
	e.metrics.RecordDay(written, skipped, out.Failed(), e.clock.Now())
	return out
}

// processRecords reconciles records one at a time. The first record that
// cannot be reconciled ends the day; earlier writes stay committed.
func (e *Engine) processRecords(ctx context.Context, on time.Time, records []model.FeedRecord, out *model.SyncOutcome) {
	for _, raw := range records {
		key := raw.Key()
		dam, err := e.store.FindByKey(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			out.Fail(eris.Wrapf(ErrUnknownDam, "damsync: dam %q on %s is not cataloged", key, out.Date))
			return
		}
		if err != nil {
			out.Fail(eris.Wrapf(err, "damsync: find dam %s", key))
			return
		}

		res, err := e.measurements.ReconcileOne(ctx, *dam, on, raw.Reading())
		if err != nil {
			out.Fail(err)
			return
		}
		switch res.Kind {
		case reconcile.Written:
			out.Written = append(out.Written, *res.Measurement)
		case reconcile.Duplicate:
			out.Skipped = append(out.Skipped, res.Message)
		}
	}
}
