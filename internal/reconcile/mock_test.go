package reconcile

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/damsync/internal/model"
)

// --- Catalog Store Mock ---

type mockCatalogStore struct {
	mock.Mock
}

func (m *mockCatalogStore) FindByKey(ctx context.Context, sihKey string) (*model.Dam, error) {
	args := m.Called(ctx, sihKey)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dam), args.Error(1)
}

func (m *mockCatalogStore) FindByRegion(ctx context.Context, region string) ([]model.Dam, error) {
	args := m.Called(ctx, region)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Dam), args.Error(1)
}

func (m *mockCatalogStore) ListDams(ctx context.Context) ([]model.Dam, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Dam), args.Error(1)
}

func (m *mockCatalogStore) InsertDam(ctx context.Context, dam model.Dam) (*model.Dam, error) {
	args := m.Called(ctx, dam)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dam), args.Error(1)
}

func (m *mockCatalogStore) UpdateDam(ctx context.Context, dam model.Dam) (*model.Dam, error) {
	args := m.Called(ctx, dam)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Dam), args.Error(1)
}

// --- Measurement Store Mock ---

type mockMeasurementStore struct {
	mock.Mock
}

func (m *mockMeasurementStore) ExistsFor(ctx context.Context, damID int64, on time.Time) (bool, error) {
	args := m.Called(ctx, damID, on)
	return args.Bool(0), args.Error(1)
}

func (m *mockMeasurementStore) InsertMeasurement(ctx context.Context, meas model.Measurement) (*model.Measurement, error) {
	args := m.Called(ctx, meas)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Measurement), args.Error(1)
}

func (m *mockMeasurementStore) FindByDam(ctx context.Context, damID int64) ([]model.Measurement, error) {
	args := m.Called(ctx, damID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Measurement), args.Error(1)
}

func (m *mockMeasurementStore) FindByDateRange(ctx context.Context, start, end time.Time) ([]model.Measurement, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Measurement), args.Error(1)
}

func (m *mockMeasurementStore) FindByDamAndDateRange(ctx context.Context, damID int64, start, end time.Time) ([]model.Measurement, error) {
	args := m.Called(ctx, damID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Measurement), args.Error(1)
}

func (m *mockMeasurementStore) ListMeasurements(ctx context.Context) ([]model.Measurement, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Measurement), args.Error(1)
}
