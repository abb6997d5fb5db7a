package damsync

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/damsync/internal/model"
	"github.com/sells-group/damsync/internal/store"
)

// QueryStore is the read side of the catalog and measurement stores.
type QueryStore interface {
	store.CatalogStore
	store.MeasurementStore
}

// Query answers catalog and measurement lookups. Unknown keys and empty
// state lookups return an error wrapping store.ErrNotFound.
type Query struct {
	store QueryStore
}

// NewQuery creates a Query over st.
func NewQuery(st QueryStore) *Query {
	return &Query{store: st}
}

// Dams lists the whole catalog ordered by SIH key.
func (q *Query) Dams(ctx context.Context) ([]model.Dam, error) {
	return q.store.ListDams(ctx)
}

// Dam returns one dam by SIH key.
func (q *Query) Dam(ctx context.Context, sihKey string) (*model.Dam, error) {
	return q.store.FindByKey(ctx, sihKey)
}

// DamsByState lists the dams of a state. The match ignores case and accents.
func (q *Query) DamsByState(ctx context.Context, state string) ([]model.Dam, error) {
	dams, err := q.store.FindByRegion(ctx, state)
	if err != nil {
		return nil, err
	}
	if len(dams) == 0 {
		return nil, eris.Wrapf(store.ErrNotFound, "damsync: no dams in state %q", state)
	}
	return dams, nil
}

// Measurements lists every stored measurement, newest first.
func (q *Query) Measurements(ctx context.Context) ([]model.Measurement, error) {
	return q.store.ListMeasurements(ctx)
}

// MeasurementsByDam lists one dam's measurements, newest first.
func (q *Query) MeasurementsByDam(ctx context.Context, sihKey string) ([]model.Measurement, error) {
	dam, err := q.store.FindByKey(ctx, sihKey)
	if err != nil {
		return nil, err
	}
	return q.store.FindByDam(ctx, dam.ID)
}

// MeasurementsByDates lists measurements between start and end inclusive.
// A blank end means start.
func (q *Query) MeasurementsByDates(ctx context.Context, start, end string) ([]model.Measurement, error) {
	r, err := ParseRange(start, end)
	if err != nil {
		return nil, err
	}
	return q.store.FindByDateRange(ctx, r.Start, r.End)
}

// MeasurementsByDamAndDates lists one dam's measurements between start and
// end inclusive.
func (q *Query) MeasurementsByDamAndDates(ctx context.Context, sihKey, start, end string) ([]model.Measurement, error) {
	r, err := ParseRange(start, end)
	if err != nil {
		return nil, err
	}
	dam, err := q.store.FindByKey(ctx, sihKey)
	if err != nil {
		return nil, err
	}
	return q.store.FindByDamAndDateRange(ctx, dam.ID, r.Start, r.End)
}

// Info returns a dam with its measurements. A blank start returns the full
// history; otherwise only the given dates are included.
func (q *Query) Info(ctx context.Context, sihKey, start, end string) (*model.DamInfo, error) {
	dam, err := q.store.FindByKey(ctx, sihKey)
	if err != nil {
		return nil, err
	}

	var ms []model.Measurement
	if start == "" {
		ms, err = q.store.FindByDam(ctx, dam.ID)
	} else {
		var r DateRange
		if r, err = ParseRange(start, end); err != nil {
			return nil, err
		}
		ms, err = q.store.FindByDamAndDateRange(ctx, dam.ID, r.Start, r.End)
	}
	if err != nil {
		return nil, err
	}
	return &model.DamInfo{Dam: *dam, Measurements: newestFirst(ms)}, nil
}

// InfoAll returns every dam with its measurements, optionally bounded by
// dates as in Info.
func (q *Query) InfoAll(ctx context.Context, start, end string) ([]model.DamInfo, error) {
	dams, err := q.store.ListDams(ctx)
	if err != nil {
		return nil, err
	}
	return q.attach(ctx, dams, start, end)
}

// InfoByState is InfoAll restricted to one state.
func (q *Query) InfoByState(ctx context.Context, state, start, end string) ([]model.DamInfo, error) {
	dams, err := q.DamsByState(ctx, state)
	if err != nil {
		return nil, err
	}
	return q.attach(ctx, dams, start, end)
}

// attach loads measurements in one query and groups them by dam.
func (q *Query) attach(ctx context.Context, dams []model.Dam, start, end string) ([]model.DamInfo, error) {
	var (
		ms  []model.Measurement
		err error
	)
	if start == "" {
		ms, err = q.store.ListMeasurements(ctx)
	} else {
		var r DateRange
		if r, err = ParseRange(start, end); err != nil {
			return nil, err
		}
		ms, err = q.store.FindByDateRange(ctx, r.Start, r.End)
	}
	if err != nil {
		return nil, err
	}

	byDam := make(map[int64][]model.Measurement, len(dams))
	for _, m := range ms {
		byDam[m.DamID] = append(byDam[m.DamID], m)
	}

	infos := make([]model.DamInfo, 0, len(dams))
	for _, d := range dams {
		infos = append(infos, model.DamInfo{Dam: d, Measurements: newestFirst(byDam[d.ID])})
	}
	return infos, nil
}

func newestFirst(ms []model.Measurement) []model.Measurement {
	if ms == nil {
		return []model.Measurement{}
	}
	slices.SortStableFunc(ms, func(a, b model.Measurement) int {
		return b.MeasuredOn.Compare(a.MeasuredOn)
	})
	return ms
}
