package damsync

import (
	"go.uber.org/zap"

	"github.com/sells-group/damsync/internal/model"
)

// DayState is the phase of a single-day sync.
type DayState int

// Day sync phases. Processing can end early only when a record fails.
const (
	StateFetching DayState = iota + 1
	StateProcessing
	StateDone
)

func (s DayState) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateProcessing:
		return "processing_records"
	case StateDone:
		return "done"
	default:
		return "pending"
	}
}

type dayRun struct {
	state DayState
	log   *zap.Logger
}

func newDayRun(log *zap.Logger) *dayRun {
	return &dayRun{log: log}
}

func (r *dayRun) enter(s DayState) {
	r.log.Debug("day state", zap.Stringer("from", r.state), zap.Stringer("to", s))
	r.state = s
}

func (r *dayRun) finish(out *model.SyncOutcome) {
	if out.Failed() {
		r.log.Error("day sync failed",
			zap.Stringer("state", r.state),
			zap.Int("written", len(out.Written)),
			zap.Int("skipped", len(out.Skipped)),
			zap.Error(out.Err),
		)
		return
	}
	r.log.Info("day sync complete",
		zap.Int("written", len(out.Written)),
		zap.Int("skipped", len(out.Skipped)),
	)
}
