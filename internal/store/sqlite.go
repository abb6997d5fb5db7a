package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/damsync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode. Foreign keys and the busy timeout are per-connection settings, so
// they are passed as DSN pragmas to reach every pooled connection.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", withPragmas(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func withPragmas(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS dams (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	sih_key              TEXT NOT NULL UNIQUE CHECK (trim(sih_key) <> ''),
	official_name        TEXT NOT NULL DEFAULT '',
	common_name          TEXT NOT NULL DEFAULT '',
	state                TEXT NOT NULL DEFAULT '',
	state_key            TEXT NOT NULL DEFAULT '',
	municipality         TEXT NOT NULL DEFAULT '',
	cna_region           TEXT NOT NULL DEFAULT '',
	latitude             REAL NOT NULL DEFAULT 0,
	longitude            REAL NOT NULL DEFAULT 0,
	usage_class          TEXT NOT NULL DEFAULT '',
	stream               TEXT NOT NULL DEFAULT '',
	spillway_type        TEXT NOT NULL DEFAULT '',
	operation_start_year TEXT NOT NULL DEFAULT '',
	crown_elevation      TEXT NOT NULL DEFAULT '',
	freeboard            REAL NOT NULL DEFAULT 0,
	name_elevation       REAL NOT NULL DEFAULT 0,
	name_capacity        REAL NOT NULL DEFAULT 0,
	curtain_height       TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_dams_state_key ON dams(state_key);

CREATE TABLE IF NOT EXISTS daily_measurements (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	dam_id           INTEGER NOT NULL REFERENCES dams(id) ON DELETE CASCADE,
	measurement_date TEXT NOT NULL,
	elevation        REAL NOT NULL,
	capacity         REAL NOT NULL,
	fill_pct         REAL NOT NULL,
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (dam_id, measurement_date)
);

CREATE INDEX IF NOT EXISTS idx_daily_measurements_date ON daily_measurements(measurement_date);

CREATE TABLE IF NOT EXISTS sync_log (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	kind         TEXT NOT NULL,
	sync_date    TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	rows_written INTEGER NOT NULL DEFAULT 0,
	rows_skipped INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_sync_log_kind_started ON sync_log(kind, started_at);
`

// Migrate creates the schema if needed.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Ping checks the database handle.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteDamColumns = `id, sih_key, official_name, common_name, state, municipality, cna_region,
	latitude, longitude, usage_class, stream, spillway_type, operation_start_year,
	crown_elevation, freeboard, name_elevation, name_capacity, curtain_height,
	created_at, updated_at`

func (s *SQLiteStore) FindByKey(ctx context.Context, sihKey string) (*model.Dam, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteDamColumns+` FROM dams WHERE sih_key = ?`, sihKey,
	)
	d, err := scanSQLiteDam(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: dam %s", sihKey)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find dam %s", sihKey)
	}
	return d, nil
}

func (s *SQLiteStore) FindByRegion(ctx context.Context, region string) ([]model.Dam, error) {
	return s.queryDams(ctx, "find dams by region",
		`SELECT `+sqliteDamColumns+` FROM dams WHERE state_key = ? ORDER BY sih_key`,
		model.RegionKey(region),
	)
}

func (s *SQLiteStore) ListDams(ctx context.Context) ([]model.Dam, error) {
	return s.queryDams(ctx, "list dams", `SELECT `+sqliteDamColumns+` FROM dams ORDER BY sih_key`)
}

func (s *SQLiteStore) InsertDam(ctx context.Context, dam model.Dam) (*model.Dam, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO dams (sih_key, official_name, common_name, state, state_key, municipality,
			cna_region, latitude, longitude, usage_class, stream, spillway_type,
			operation_start_year, crown_elevation, freeboard, name_elevation, name_capacity,
			curtain_height, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dam.SIHKey, dam.OfficialName, dam.CommonName, dam.State, model.RegionKey(dam.State),
		dam.Municipality, dam.CNARegion, dam.Latitude, dam.Longitude, dam.Usage, dam.Current,
		dam.SpillwayType, dam.OperationStartYear, dam.CrownElevation, dam.Freeboard,
		dam.NAMEElevation, dam.NAMECapacity, dam.CurtainHeight, now, now,
	)
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
			return nil, eris.Wrapf(ErrDuplicateKey, "sqlite: insert dam %s", dam.SIHKey)
		}
		return nil, eris.Wrapf(err, "sqlite: insert dam %s", dam.SIHKey)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dam id")
	}
	dam.ID = id
	dam.CreatedAt = now
	dam.UpdatedAt = now
	return &dam, nil
}

func (s *SQLiteStore) UpdateDam(ctx context.Context, dam model.Dam) (*model.Dam, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE dams SET official_name = ?, common_name = ?, state = ?, state_key = ?,
			municipality = ?, cna_region = ?, latitude = ?, longitude = ?, usage_class = ?,
			stream = ?, spillway_type = ?, operation_start_year = ?, crown_elevation = ?,
			freeboard = ?, name_elevation = ?, name_capacity = ?, curtain_height = ?,
			updated_at = ?
		 WHERE id = ?`,
		dam.OfficialName, dam.CommonName, dam.State, model.RegionKey(dam.State),
		dam.Municipality, dam.CNARegion, dam.Latitude, dam.Longitude, dam.Usage, dam.Current,
		dam.SpillwayType, dam.OperationStartYear, dam.CrownElevation, dam.Freeboard,
		dam.NAMEElevation, dam.NAMECapacity, dam.CurtainHeight, now, dam.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update dam %s", dam.SIHKey)
	}
	if err := checkRowsAffected(res, "dam", dam.SIHKey); err != nil {
		return nil, err
	}
	dam.UpdatedAt = now
	return &dam, nil
}

func (s *SQLiteStore) DeleteDam(ctx context.Context, sihKey string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM dams WHERE sih_key = ?`, sihKey)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete dam %s", sihKey)
	}
	return checkRowsAffected(res, "dam", sihKey)
}

func (s *SQLiteStore) queryDams(ctx context.Context, op, query string, args ...any) ([]model.Dam, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close()

	dams := []model.Dam{}
	for rows.Next() {
		d, err := scanSQLiteDam(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan dam (%s)", op)
		}
		dams = append(dams, *d)
	}
	return dams, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

const sqliteMeasurementSelect = `SELECT m.id, m.dam_id, d.sih_key, m.measurement_date, m.elevation,
	m.capacity, m.fill_pct, m.created_at
	FROM daily_measurements m JOIN dams d ON d.id = m.dam_id`

func (s *SQLiteStore) ExistsFor(ctx context.Context, damID int64, on time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM daily_measurements WHERE dam_id = ? AND measurement_date = ?`,
		damID, model.FormatDate(on),
	).Scan(&n)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: measurement exists for dam %d", damID)
	}
	return n > 0, nil
}

func (s *SQLiteStore) InsertMeasurement(ctx context.Context, m model.Measurement) (*model.Measurement, error) {
	m.MeasuredOn = model.DateOf(m.MeasuredOn)
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_measurements (dam_id, measurement_date, elevation, capacity, fill_pct, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		m.DamID, m.Date(), m.Elevation, m.Capacity, m.FillPct, now,
	)
	if err != nil {
		if isSQLiteConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE) {
			return nil, eris.Wrapf(ErrDuplicateMeasurement, "sqlite: insert measurement dam %d on %s", m.DamID, m.Date())
		}
		if isSQLiteConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY) {
			return nil, eris.Wrapf(ErrNotFound, "sqlite: insert measurement dam %d", m.DamID)
		}
		return nil, eris.Wrapf(err, "sqlite: insert measurement dam %d on %s", m.DamID, m.Date())
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: measurement id")
	}
	m.ID = id
	m.CreatedAt = now
	return &m, nil
}

func (s *SQLiteStore) FindByDam(ctx context.Context, damID int64) ([]model.Measurement, error) {
	return s.queryMeasurements(ctx, "find measurements by dam",
		sqliteMeasurementSelect+` WHERE m.dam_id = ? ORDER BY m.measurement_date DESC`,
		damID,
	)
}

func (s *SQLiteStore) FindByDateRange(ctx context.Context, start, end time.Time) ([]model.Measurement, error) {
	return s.queryMeasurements(ctx, "find measurements by date range",
		sqliteMeasurementSelect+` WHERE m.measurement_date BETWEEN ? AND ?
		 ORDER BY m.measurement_date, d.sih_key`,
		model.FormatDate(start), model.FormatDate(end),
	)
}

func (s *SQLiteStore) FindByDamAndDateRange(ctx context.Context, damID int64, start, end time.Time) ([]model.Measurement, error) {
	return s.queryMeasurements(ctx, "find measurements by dam and date range",
		sqliteMeasurementSelect+` WHERE m.dam_id = ? AND m.measurement_date BETWEEN ? AND ?
		 ORDER BY m.measurement_date`,
		damID, model.FormatDate(start), model.FormatDate(end),
	)
}

func (s *SQLiteStore) ListMeasurements(ctx context.Context) ([]model.Measurement, error) {
	return s.queryMeasurements(ctx, "list measurements",
		sqliteMeasurementSelect+` ORDER BY m.measurement_date DESC, d.sih_key`,
	)
}

func (s *SQLiteStore) queryMeasurements(ctx context.Context, op, query string, args ...any) ([]model.Measurement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: %s", op)
	}
	defer rows.Close()

	out := []model.Measurement{}
	for rows.Next() {
		var m model.Measurement
		var date string
		if err := rows.Scan(&m.ID, &m.DamID, &m.SIHKey, &date, &m.Elevation,
			&m.Capacity, &m.FillPct, &m.CreatedAt); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan measurement (%s)", op)
		}
		if m.MeasuredOn, err = model.ParseDate(date); err != nil {
			return nil, eris.Wrapf(err, "sqlite: %s", op)
		}
		out = append(out, m)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: %s iterate", op)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

// isSQLiteConstraint reports whether err is a constraint failure with the
// given extended result code.
func isSQLiteConstraint(err error, code int) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.Code() == code {
		return true
	}
	// Without extended codes only the primary SQLITE_CONSTRAINT is reported.
	if se.Code() != sqlite3.SQLITE_CONSTRAINT {
		return false
	}
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return strings.Contains(se.Error(), "FOREIGN KEY constraint failed")
	}
	return false
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteDam(row scannable) (*model.Dam, error) {
	var d model.Dam
	err := row.Scan(&d.ID, &d.SIHKey, &d.OfficialName, &d.CommonName, &d.State, &d.Municipality,
		&d.CNARegion, &d.Latitude, &d.Longitude, &d.Usage, &d.Current, &d.SpillwayType,
		&d.OperationStartYear, &d.CrownElevation, &d.Freeboard, &d.NAMEElevation,
		&d.NAMECapacity, &d.CurtainHeight, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
