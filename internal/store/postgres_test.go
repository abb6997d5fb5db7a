package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/damsync/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresWithPool(mock), mock
}

var damRowColumns = []string{
	"id", "sih_key", "official_name", "common_name", "state", "municipality", "cna_region",
	"latitude", "longitude", "usage_class", "stream", "spillway_type", "operation_start_year",
	"crown_elevation", "freeboard", "name_elevation", "name_capacity", "curtain_height",
	"created_at", "updated_at",
}

// anyArgs matches n bind parameters of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func damRow(rows *pgxmock.Rows, id int64, key, state string, ts time.Time) *pgxmock.Rows {
	return rows.AddRow(id, key, "Presa "+key, "", state, "", "", 25.1, -100.2, "", "", "", "", "", 0.0, 0.0, 0.0, "", ts, ts)
}

func TestPostgresStore_FindByKey(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)SELECT id, sih_key, .* FROM dams WHERE sih_key = \$1`).
		WithArgs("X1").
		WillReturnRows(damRow(pgxmock.NewRows(damRowColumns), 7, "X1", "Sonora", ts))

	d, err := s.FindByKey(context.Background(), "X1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), d.ID)
	assert.Equal(t, "Presa X1", d.OfficialName)
	assert.Equal(t, ts, d.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByKey_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM dams WHERE sih_key = \$1`).
		WithArgs("NOPE").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.FindByKey(context.Background(), "NOPE")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByRegion_UsesNormalizedKey(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ts := time.Now().UTC()

	mock.ExpectQuery(`FROM dams WHERE state_key = \$1`).
		WithArgs("nuevo leon").
		WillReturnRows(damRow(pgxmock.NewRows(damRowColumns), 1, "NL1", "Nuevo León", ts))

	dams, err := s.FindByRegion(context.Background(), "  NUEVO León")
	require.NoError(t, err)
	require.Len(t, dams, 1)
	assert.Equal(t, "NL1", dams[0].SIHKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertDam(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ts := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO dams`).
		WithArgs("X1", "Presa", "", "Sonora", "sonora", "", "", 1.0, 2.0, "", "", "", "", "", 0.0, 0.0, 0.0, "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(11), ts, ts))

	d, err := s.InsertDam(context.Background(), model.Dam{SIHKey: "X1", OfficialName: "Presa", State: "Sonora", Latitude: 1, Longitude: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(11), d.ID)
	assert.Equal(t, ts, d.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertDam_DuplicateKey(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO dams`).
		WithArgs(anyArgs(18)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "dams_sih_key_key"})

	_, err := s.InsertDam(context.Background(), model.Dam{SIHKey: "X1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateKey))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateDam_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`UPDATE dams SET`).
		WithArgs(anyArgs(18)...).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.UpdateDam(context.Background(), model.Dam{ID: 5, SIHKey: "X1"})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteDam(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM dams WHERE sih_key = \$1`).
		WithArgs("X1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM dams WHERE sih_key = \$1`).
		WithArgs("X1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.DeleteDam(context.Background(), "X1"))
	err := s.DeleteDam(context.Background(), "X1")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ExistsFor(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	on := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs(int64(7), on).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.ExistsFor(context.Background(), 7, on)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMeasurement_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO daily_measurements`).
		WithArgs(anyArgs(5)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "daily_measurements_dam_date_key"})

	_, err := s.InsertMeasurement(context.Background(), model.Measurement{DamID: 7, MeasuredOn: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateMeasurement))
	assert.Contains(t, err.Error(), "2024-03-01")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMeasurement_UnknownDam(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO daily_measurements`).
		WithArgs(anyArgs(5)...).
		WillReturnError(&pgconn.PgError{Code: "23503"})

	_, err := s.InsertMeasurement(context.Background(), model.Measurement{DamID: 99})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMeasurement(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	on := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ts := time.Now().UTC()

	mock.ExpectQuery(`INSERT INTO daily_measurements`).
		WithArgs(int64(7), on, 100.5, 80.2, 64.1).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), ts))

	m, err := s.InsertMeasurement(context.Background(), model.Measurement{DamID: 7, MeasuredOn: on, Elevation: 100.5, Capacity: 80.2, FillPct: 64.1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindByDamAndDateRange(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	ts := time.Now().UTC()

	mock.ExpectQuery(`FROM daily_measurements m JOIN dams d .* WHERE m.dam_id = \$1 AND m.measurement_date BETWEEN \$2 AND \$3`).
		WithArgs(int64(7), start, end).
		WillReturnRows(pgxmock.NewRows([]string{"id", "dam_id", "sih_key", "measurement_date", "elevation", "capacity", "fill_pct", "created_at"}).
			AddRow(int64(1), int64(7), "X1", start, 100.5, 80.2, 64.1, ts))

	ms, err := s.FindByDamAndDateRange(context.Background(), 7, start, end)
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, "X1", ms[0].SIHKey)
	assert.Equal(t, "2024-03-01", ms[0].Date())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StartSync(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO sync_log`).
		WithArgs("run-1", "measurement", "2024-03-01").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	id, err := s.StartSync(context.Background(), "run-1", model.SyncKindMeasurement, "2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CompleteAndFailSync(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE sync_log\s+SET status = 'complete'`).
		WithArgs(3, 1, int64(42)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE sync_log\s+SET status = 'failed'`).
		WithArgs(0, 0, "upstream down", int64(43)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.CompleteSync(context.Background(), 42, 3, 1))
	require.NoError(t, s.FailSync(context.Background(), 43, 0, 0, "upstream down"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LastSuccess_Never(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT started_at FROM sync_log`).
		WithArgs("catalog").
		WillReturnError(pgx.ErrNoRows)

	last, err := s.LastSuccess(context.Background(), model.SyncKindCatalog)
	require.NoError(t, err)
	assert.Nil(t, last)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	assert.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
