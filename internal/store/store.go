package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/damsync/internal/model"
)

var (
	// ErrNotFound is returned when a looked-up dam or entry does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrDuplicateKey is returned when inserting a dam whose SIH key exists.
	ErrDuplicateKey = eris.New("store: duplicate dam key")
	// ErrDuplicateMeasurement is returned when inserting a second measurement
	// for the same dam and date.
	ErrDuplicateMeasurement = eris.New("store: duplicate measurement")
)

// CatalogStore persists dam catalog records. SIH keys are unique; the store
// enforces it.
type CatalogStore interface {
	FindByKey(ctx context.Context, sihKey string) (*model.Dam, error)
	FindByRegion(ctx context.Context, region string) ([]model.Dam, error)
	ListDams(ctx context.Context) ([]model.Dam, error)
	InsertDam(ctx context.Context, dam model.Dam) (*model.Dam, error)
	UpdateDam(ctx context.Context, dam model.Dam) (*model.Dam, error)
}

// MeasurementStore persists daily measurements. (dam, date) is unique; the
// store enforces it.
type MeasurementStore interface {
	ExistsFor(ctx context.Context, damID int64, on time.Time) (bool, error)
	InsertMeasurement(ctx context.Context, m model.Measurement) (*model.Measurement, error)
	FindByDam(ctx context.Context, damID int64) ([]model.Measurement, error)
	FindByDateRange(ctx context.Context, start, end time.Time) ([]model.Measurement, error)
	FindByDamAndDateRange(ctx context.Context, damID int64, start, end time.Time) ([]model.Measurement, error)
	ListMeasurements(ctx context.Context) ([]model.Measurement, error)
}

// SyncLogStore records sync runs.
type SyncLogStore interface {
	StartSync(ctx context.Context, runID string, kind model.SyncKind, syncDate string) (int64, error)
	CompleteSync(ctx context.Context, id int64, written, skipped int) error
	FailSync(ctx context.Context, id int64, written, skipped int, errMsg string) error
	ListSyncs(ctx context.Context, limit int) ([]model.SyncEntry, error)
	LastSuccess(ctx context.Context, kind model.SyncKind) (*time.Time, error)
}

// Store is the full persistence interface: catalog, measurements, sync log
// and lifecycle.
type Store interface {
	CatalogStore
	MeasurementStore
	SyncLogStore

	// DeleteDam removes a dam and, by cascade, its measurements. Sync never
	// calls it.
	DeleteDam(ctx context.Context, sihKey string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// defaultListLimit caps ListSyncs when no limit is given.
const defaultListLimit = 100
