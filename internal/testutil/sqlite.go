// Package testutil builds migrated SQLite databases for package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"podocs/internal/config"
	"podocs/internal/database"
	"podocs/internal/database/migration"
)

// SQLite opens a fresh migrated database under t.TempDir and returns an
// executor over it. The pool is closed when the test ends.
func SQLite(t testing.TB, opts ...database.ExecutorOption) *database.Executor {
	t.Helper()

	pool, err := database.Open(config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "podocs.db"),
		MaxOpenConns: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	require.NoError(t, migration.EnsureMigrated(context.Background(), pool, nil, "test"))
	return database.NewExecutor(pool, opts...)
}

// SeedPurchaseOrder inserts a purchase order row with a fixed ID.
func SeedPurchaseOrder(t testing.TB, exec *database.Executor, id int64, number, status string) {
	t.Helper()
	err := exec.Run(context.Background(), database.Exec(
		`INSERT INTO purchase_orders (po_id, po_number, status) VALUES ($1, $2, $3)`,
		id, number, status,
	))
	require.NoError(t, err)
}
