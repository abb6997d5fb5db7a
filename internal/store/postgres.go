package store

import (
	"context"
	"embed"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/damsync/internal/db"
	"github.com/sells-group/damsync/internal/model"
)

//go:embed migrations/*.sql
var postgresMigrations embed.FS

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool. The caller keeps ownership of
// the pool's lifetime.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate applies the embedded schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	sub, err := fs.Sub(postgresMigrations, "migrations")
	if err != nil {
		return eris.Wrap(err, "postgres: open migrations")
	}
	return eris.Wrap(db.Migrate(ctx, s.pool, sub), "postgres: migrate")
}

// Close releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const pgDamColumns = `id, sih_key, official_name, common_name, state, municipality, cna_region,
	latitude, longitude, usage_class, stream, spillway_type, operation_start_year,
	crown_elevation, freeboard, name_elevation, name_capacity, curtain_height,
	created_at, updated_at`

func scanDam(row pgx.Row) (*model.Dam, error) {
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

func (s *PostgresStore) queryDams(ctx context.Context, op, query string, args ...any) ([]model.Dam, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	dams := []model.Dam{}
	for rows.Next() {
		d, err := scanDam(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: scan dam (%s)", op)
		}
		dams = append(dams, *d)
	}
	return dams, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

// FindByKey returns the dam with the given SIH key or ErrNotFound.
func (s *PostgresStore) FindByKey(ctx context.Context, sihKey string) (*model.Dam, error) {
	d, err := scanDam(s.pool.QueryRow(ctx,
		`SELECT `+pgDamColumns+` FROM dams WHERE sih_key = $1`, sihKey,
	))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: dam %s", sihKey)
		}
		return nil, eris.Wrapf(err, "postgres: find dam %s", sihKey)
	}
	return d, nil
}

// FindByRegion returns the dams whose state matches region ignoring case
// and accents.
func (s *PostgresStore) FindByRegion(ctx context.Context, region string) ([]model.Dam, error) {
	return s.queryDams(ctx, "find dams by region",
		`SELECT `+pgDamColumns+` FROM dams WHERE state_key = $1 ORDER BY sih_key`,
		model.RegionKey(region),
	)
}

// ListDams returns every dam ordered by SIH key.
func (s *PostgresStore) ListDams(ctx context.Context) ([]model.Dam, error) {
	return s.queryDams(ctx, "list dams", `SELECT `+pgDamColumns+` FROM dams ORDER BY sih_key`)
}

// InsertDam creates a dam. A second insert for the same key fails with
// ErrDuplicateKey.
func (s *PostgresStore) InsertDam(ctx context.Context, dam model.Dam) (*model.Dam, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO dams (sih_key, official_name, common_name, state, state_key, municipality,
			cna_region, latitude, longitude, usage_class, stream, spillway_type,
			operation_start_year, crown_elevation, freeboard, name_elevation, name_capacity,
			curtain_height)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 RETURNING id, created_at, updated_at`,
		dam.SIHKey, dam.OfficialName, dam.CommonName, dam.State, model.RegionKey(dam.State),
		dam.Municipality, dam.CNARegion, dam.Latitude, dam.Longitude, dam.Usage, dam.Current,
		dam.SpillwayType, dam.OperationStartYear, dam.CrownElevation, dam.Freeboard,
		dam.NAMEElevation, dam.NAMECapacity, dam.CurtainHeight,
	).Scan(&dam.ID, &dam.CreatedAt, &dam.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "dams_sih_key_key") {
			return nil, eris.Wrapf(ErrDuplicateKey, "postgres: insert dam %s", dam.SIHKey)
		}
		return nil, eris.Wrapf(err, "postgres: insert dam %s", dam.SIHKey)
	}
	return &dam, nil
}

// UpdateDam overwrites every mutable column of the dam identified by ID.
func (s *PostgresStore) UpdateDam(ctx context.Context, dam model.Dam) (*model.Dam, error) {
	err := s.pool.QueryRow(ctx,
		`UPDATE dams SET official_name = $2, common_name = $3, state = $4, state_key = $5,
			municipality = $6, cna_region = $7, latitude = $8, longitude = $9, usage_class = $10,
			stream = $11, spillway_type = $12, operation_start_year = $13, crown_elevation = $14,
			freeboard = $15, name_elevation = $16, name_capacity = $17, curtain_height = $18,
			updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		dam.ID, dam.OfficialName, dam.CommonName, dam.State, model.RegionKey(dam.State),
		dam.Municipality, dam.CNARegion, dam.Latitude, dam.Longitude, dam.Usage, dam.Current,
		dam.SpillwayType, dam.OperationStartYear, dam.CrownElevation, dam.Freeboard,
		dam.NAMEElevation, dam.NAMECapacity, dam.CurtainHeight,
	).Scan(&dam.CreatedAt, &dam.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: update dam %s", dam.SIHKey)
		}
		return nil, eris.Wrapf(err, "postgres: update dam %s", dam.SIHKey)
	}
	return &dam, nil
}

// DeleteDam removes a dam; its measurements go with it.
func (s *PostgresStore) DeleteDam(ctx context.Context, sihKey string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM dams WHERE sih_key = $1`, sihKey)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete dam %s", sihKey)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: delete dam %s", sihKey)
	}
	return nil
}

const pgMeasurementSelect = `SELECT m.id, m.dam_id, d.sih_key, m.measurement_date, m.elevation,
	m.capacity, m.fill_pct, m.created_at
	FROM daily_measurements m JOIN dams d ON d.id = m.dam_id`

func (s *PostgresStore) queryMeasurements(ctx context.Context, op, query string, args ...any) ([]model.Measurement, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: %s", op)
	}
	defer rows.Close()

	out := []model.Measurement{}
	for rows.Next() {
		var m model.Measurement
		if err := rows.Scan(&m.ID, &m.DamID, &m.SIHKey, &m.MeasuredOn, &m.Elevation,
			&m.Capacity, &m.FillPct, &m.CreatedAt); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan measurement (%s)", op)
		}
		out = append(out, m)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: %s iterate", op)
}

// ExistsFor reports whether a measurement exists for the dam on the date.
func (s *PostgresStore) ExistsFor(ctx context.Context, damID int64, on time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM daily_measurements WHERE dam_id = $1 AND measurement_date = $2)`,
		damID, model.DateOf(on),
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: measurement exists for dam %d", damID)
	}
	return exists, nil
}

// InsertMeasurement stores one reading. A second insert for the same dam and
// date fails with ErrDuplicateMeasurement.
func (s *PostgresStore) InsertMeasurement(ctx context.Context, m model.Measurement) (*model.Measurement, error) {
	m.MeasuredOn = model.DateOf(m.MeasuredOn)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO daily_measurements (dam_id, measurement_date, elevation, capacity, fill_pct)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		m.DamID, m.MeasuredOn, m.Elevation, m.Capacity, m.FillPct,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err, "daily_measurements_dam_date_key") {
			return nil, eris.Wrapf(ErrDuplicateMeasurement, "postgres: insert measurement dam %d on %s", m.DamID, m.Date())
		}
		if db.IsForeignKeyViolation(err) {
			return nil, eris.Wrapf(ErrNotFound, "postgres: insert measurement dam %d", m.DamID)
		}
		return nil, eris.Wrapf(err, "postgres: insert measurement dam %d on %s", m.DamID, m.Date())
	}
	return &m, nil
}

// FindByDam returns a dam's measurements, newest first.
func (s *PostgresStore) FindByDam(ctx context.Context, damID int64) ([]model.Measurement, error) {
	return s.queryMeasurements(ctx, "find measurements by dam",
		pgMeasurementSelect+` WHERE m.dam_id = $1 ORDER BY m.measurement_date DESC`,
		damID,
	)
}

// FindByDateRange returns all measurements within [start, end].
func (s *PostgresStore) FindByDateRange(ctx context.Context, start, end time.Time) ([]model.Measurement, error) {
	return s.queryMeasurements(ctx, "find measurements by date range",
		pgMeasurementSelect+` WHERE m.measurement_date BETWEEN $1 AND $2
		 ORDER BY m.measurement_date, d.sih_key`,
		model.DateOf(start), model.DateOf(end),
	)
}

// FindByDamAndDateRange returns a dam's measurements within [start, end].
func (s *PostgresStore) FindByDamAndDateRange(ctx context.Context, damID int64, start, end time.Time) ([]model.Measurement, error) {
	return s.queryMeasurements(ctx, "find measurements by dam and date range",
		pgMeasurementSelect+` WHERE m.dam_id = $1 AND m.measurement_date BETWEEN $2 AND $3
		 ORDER BY m.measurement_date`,
		damID, model.DateOf(start), model.DateOf(end),
	)
}

// ListMeasurements returns every measurement, newest first.
func (s *PostgresStore) ListMeasurements(ctx context.Context) ([]model.Measurement, error) {
	return s.queryMeasurements(ctx, "list measurements",
		pgMeasurementSelect+` ORDER BY m.measurement_date DESC, d.sih_key`,
	)
}
