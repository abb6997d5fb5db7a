package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/damsync/internal/model"
	"github.com/sells-group/damsync/internal/store"
)

// MeasurementResult is the outcome of reconciling one daily reading.
// Measurement is nil for duplicates.
type MeasurementResult struct {
	Kind        Kind
	Measurement *model.Measurement
	Message     string
}

// MeasurementReconciler writes at most one measurement per dam and date.
type MeasurementReconciler struct {
	store store.MeasurementStore
	log   *zap.Logger
}

// NewMeasurementReconciler creates a measurement reconciler backed by s.
func NewMeasurementReconciler(s store.MeasurementStore) *MeasurementReconciler {
	return &MeasurementReconciler{
		store: s,
		log:   zap.L().With(zap.String("component", "reconcile.measurement")),
	}
}

// DuplicateMessage is the skip message reported for an existing (dam, date).
func DuplicateMessage(sihKey string, on time.Time) string {
	return fmt.Sprintf("Daily measurement for dam %s on %s already exists", sihKey, model.FormatDate(on))
}

// ReconcileOne writes reading for dam on the given date unless one is already
// stored. A reading with absent fields fails with ErrValidation.
func (m *MeasurementReconciler) ReconcileOne(ctx context.Context, dam model.Dam, on time.Time, reading model.Reading) (MeasurementResult, error) {
	if missing := reading.Missing(); len(missing) > 0 {
		return MeasurementResult{}, eris.Wrapf(ErrValidation, "reconcile: dam %s on %s missing %s",
			dam.SIHKey, model.FormatDate(on), strings.Join(missing, ", "))
	}
	on = model.DateOf(on)

	exists, err := m.store.ExistsFor(ctx, dam.ID, on)
	if err != nil {
		return MeasurementResult{}, eris.Wrapf(err, "reconcile: check measurement %s", dam.SIHKey)
	}
	if exists {
		return m.duplicate(dam.SIHKey, on), nil
	}

	stored, err := m.store.InsertMeasurement(ctx, model.Measurement{
		DamID:      dam.ID,
		SIHKey:     dam.SIHKey,
		MeasuredOn: on,
		Elevation:  *reading.Elevation,
		Capacity:   *reading.Capacity,
		FillPct:    *reading.FillPct,
	})
	if errors.Is(err, store.ErrDuplicateMeasurement) {
		return m.duplicate(dam.SIHKey, on), nil
	}
	if err != nil {
		return MeasurementResult{}, eris.Wrapf(err, "reconcile: insert measurement %s", dam.SIHKey)
	}
	if stored.SIHKey == "" {
		stored.SIHKey = dam.SIHKey
	}
	return MeasurementResult{Kind: Written, Measurement: stored}, nil
}

func (m *MeasurementReconciler) duplicate(sihKey string, on time.Time) MeasurementResult {
	msg := DuplicateMessage(sihKey, on)
	m.log.Info("skipping duplicate measurement", zap.String("sih_key", sihKey), zap.String("date", model.FormatDate(on)))
	return MeasurementResult{Kind: Duplicate, Message: msg}
}
