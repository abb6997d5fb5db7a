package db

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"002_indexes.sql": {Data: []byte("CREATE INDEX idx_b ON b(x);")},
		"001_init.sql":    {Data: []byte("CREATE TABLE a (id INT);")},
		"README.md":       {Data: []byte("not a migration")},
	}
}

func TestMigrationFiles_SortedSQLOnly(t *testing.T) {
	names, err := migrationFiles(testMigrations())
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_indexes.sql"}, names)
}

func TestMigrate_FreshDB(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))

	mock.ExpectExec("CREATE TABLE a").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("001_init.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("CREATE INDEX idx_b").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_indexes.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	err = Migrate(context.Background(), mock, testMigrations())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_SkipsApplied(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}).AddRow("001_init.sql"))

	mock.ExpectExec("CREATE INDEX idx_b").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("002_indexes.sql").WillReturnResult(pgxmock.NewResult("INSERT", 1))

	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	err = Migrate(context.Background(), mock, testMigrations())
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_ApplyError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectQuery("SELECT filename FROM schema_migrations").
		WillReturnRows(pgxmock.NewRows([]string{"filename"}))
	mock.ExpectExec("CREATE TABLE a").WillReturnError(errors.New("syntax error"))
	mock.ExpectExec("SELECT pg_advisory_unlock").WithArgs(migrationLockKey).WillReturnResult(pgxmock.NewResult("SELECT", 1))

	err = Migrate(context.Background(), mock, testMigrations())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply migration 001_init.sql")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_LockError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").WithArgs(migrationLockKey).WillReturnError(errors.New("conn refused"))

	err = Migrate(context.Background(), mock, testMigrations())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "advisory lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	unique := &pgconn.PgError{Code: "23505", ConstraintName: "dams_sih_key_key"}

	assert.True(t, IsUniqueViolation(unique, ""))
	assert.True(t, IsUniqueViolation(unique, "dams_sih_key_key"))
	assert.False(t, IsUniqueViolation(unique, "other_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("plain"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(errors.New("plain")))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, IsNoRows(pgx.ErrNoRows))
	assert.False(t, IsNoRows(errors.New("other")))
}
