package migration

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"podocs/internal/config"
	"podocs/internal/database"
	"podocs/internal/logging"
)

func TestEnsureMigrated_SQLite(t *testing.T) {
	pool, err := database.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "migrate.db"),
	})
	require.NoError(t, err)
	defer pool.Close()

	var logs bytes.Buffer
	log := logging.New(&logs, time.UTC)
	ctx := context.Background()

	require.NoError(t, EnsureMigrated(ctx, pool, log, "local"))
	assert.Contains(t, logs.String(), `"event":"db_migration_success"`)
	assert.Equal(t, len(sqliteSteps), strings.Count(logs.String(), `"event":"db_migration_step"`))

	var n int
	require.NoError(t, pool.DB().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('purchase_orders', 'purchase_order_documents')").Scan(&n))
	assert.Equal(t, 2, n)

	logs.Reset()
	require.NoError(t, EnsureMigrated(ctx, pool, log, "local"))
	assert.Contains(t, logs.String(), `"event":"db_migration_skip"`)
	assert.NotContains(t, logs.String(), `"event":"db_migration_step"`)
}

func TestEnsureMigrated_SQLiteForeignKey(t *testing.T) {
	pool, err := database.Open(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "fk.db"),
	})
	require.NoError(t, err)
	defer pool.Close()
	ctx := context.Background()

	require.NoError(t, EnsureMigrated(ctx, pool, nil, "local"))

	_, err = pool.DB().ExecContext(ctx,
		`INSERT INTO purchase_order_documents (po_id, file_path, file_name, document_type, created_by) VALUES (99999, '/x.pdf', 'x.pdf', 'receipt', 'test-user')`)
	require.Error(t, err)
	assert.True(t, database.IsForeignKeyViolation(err))
}

func TestEnsureMigrated_Postgres(t *testing.T) {
	t.Run("runs every step when sentinel is missing", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		pool := database.NewPool(db, database.Postgres)

		mock.ExpectQuery(`SELECT to_regclass\('public.purchase_order_documents'\) IS NOT NULL`).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		for range postgresSteps {
			mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
		}

		require.NoError(t, EnsureMigrated(context.Background(), pool, logging.Discard(), "db:5432"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sentinel check error", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		pool := database.NewPool(db, database.Postgres)

		mock.ExpectQuery("SELECT to_regclass").WillReturnError(errors.New("connection refused"))

		err = EnsureMigrated(context.Background(), pool, logging.Discard(), "db:5432")
		assert.ErrorContains(t, err, "failed to check sentinel table")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("step failure stops the run", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		pool := database.NewPool(db, database.Postgres)

		var logs bytes.Buffer
		mock.ExpectQuery("SELECT to_regclass").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS purchase_orders").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE TABLE IF NOT EXISTS purchase_order_documents").WillReturnError(errors.New("permission denied"))

		err = EnsureMigrated(context.Background(), pool, logging.New(&logs, time.UTC), "db:5432")
		assert.ErrorContains(t, err, "migration step create_table_purchase_order_documents failed")
		assert.Contains(t, logs.String(), `"migration_step":"create_table_purchase_order_documents"`)
		assert.Contains(t, logs.String(), `"level":"error"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
