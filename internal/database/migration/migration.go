package migration

import (
	"context"
	"fmt"
	"time"

	"podocs/internal/database"
	"podocs/internal/logging"
)

type migrationStep struct {
	Name string
	SQL  string
}

// SentinelTable is checked before running any step. When it exists the schema
// is assumed current.
const SentinelTable = "purchase_order_documents"

// purchase_orders belongs to the surrounding system; it is created only when
// missing so local and test databases have a parent for the foreign key.
var postgresSteps = []migrationStep{
	{
		Name: "create_table_purchase_orders",
		SQL: `CREATE TABLE IF NOT EXISTS purchase_orders (
  po_id      BIGSERIAL   PRIMARY KEY,
  po_number  TEXT        NOT NULL UNIQUE,
  status     TEXT        NOT NULL DEFAULT 'draft',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_table_purchase_order_documents",
		SQL: `CREATE TABLE IF NOT EXISTS purchase_order_documents (
  document_id   BIGSERIAL   PRIMARY KEY,
  po_id         BIGINT      NOT NULL REFERENCES purchase_orders (po_id) ON DELETE RESTRICT,
  file_path     TEXT        NOT NULL UNIQUE,
  file_name     TEXT        NOT NULL,
  document_type TEXT        NOT NULL,
  created_by    TEXT        NOT NULL,
  notes         TEXT,
  created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_purchase_order_documents_po_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_purchase_order_documents_po_id ON purchase_order_documents (po_id, created_at, document_id);`,
	},
	{
		Name: "create_index_purchase_order_documents_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_purchase_order_documents_created_at ON purchase_order_documents (created_at);`,
	},
}

var sqliteSteps = []migrationStep{
	{
		Name: "create_table_purchase_orders",
		SQL: `CREATE TABLE IF NOT EXISTS purchase_orders (
  po_id      INTEGER   PRIMARY KEY AUTOINCREMENT,
  po_number  TEXT      NOT NULL UNIQUE,
  status     TEXT      NOT NULL DEFAULT 'draft',
  created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`,
	},
	{
		Name: "create_table_purchase_order_documents",
		SQL: `CREATE TABLE IF NOT EXISTS purchase_order_documents (
  document_id   INTEGER   PRIMARY KEY AUTOINCREMENT,
  po_id         INTEGER   NOT NULL REFERENCES purchase_orders (po_id) ON DELETE RESTRICT,
  file_path     TEXT      NOT NULL UNIQUE,
  file_name     TEXT      NOT NULL,
  document_type TEXT      NOT NULL,
  created_by    TEXT      NOT NULL,
  notes         TEXT,
  created_at    TIMESTAMP NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f', 'now'))
);`,
	},
	{
		Name: "create_index_purchase_order_documents_po_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_purchase_order_documents_po_id ON purchase_order_documents (po_id, created_at, document_id);`,
	},
	{
		Name: "create_index_purchase_order_documents_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_purchase_order_documents_created_at ON purchase_order_documents (created_at);`,
	},
}

func stepsFor(d database.Dialect) []migrationStep {
	if d == database.SQLite {
		return sqliteSteps
	}
	return postgresSteps
}

func sentinelQuery(d database.Dialect) string {
	if d == database.SQLite {
		return "SELECT EXISTS (SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = '" + SentinelTable + "')"
	}
	return "SELECT to_regclass('public." + SentinelTable + "') IS NOT NULL"
}

// EnsureMigrated checks if the sentinel table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, pool *database.Pool, log *logging.Logger, target string) error {
	start := time.Now()
	if log == nil {
		log = logging.Discard()
	}
	log = log.With("database")
	dialect := pool.Dialect()
	db := pool.DB()

	log.Log(map[string]any{
		"event":     "db_migration_check",
		"status":    "starting",
		"db_host":   target,
		"db_system": string(dialect),
	})

	var exists bool
	err := db.QueryRowContext(ctx, sentinelQuery(dialect)).Scan(&exists)
	if err != nil {
		log.Log(map[string]any{
			"event":         "db_migration_failed",
			"status":        "error",
			"error_message": fmt.Sprintf("failed to check sentinel table: %v", err),
			"db_host":       target,
			"duration_ms":   time.Since(start).Milliseconds(),
		})
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Log(map[string]any{
			"event":       "db_migration_skip",
			"status":      "success",
			"msg":         "schema already exists, skipping migration",
			"db_host":     target,
			"duration_ms": time.Since(start).Milliseconds(),
		})
		return nil
	}

	log.Log(map[string]any{
		"event":   "db_migration_start",
		"status":  "in_progress",
		"db_host": target,
	})

	for _, step := range stepsFor(dialect) {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Log(map[string]any{
				"event":            "db_migration_failed",
				"status":           "error",
				"migration_step":   step.Name,
				"error_message":    err.Error(),
				"db_host":          target,
				"duration_ms":      time.Since(start).Milliseconds(),
				"step_duration_ms": time.Since(stepStart).Milliseconds(),
			})
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Log(map[string]any{
			"event":            "db_migration_step",
			"status":           "success",
			"migration_step":   step.Name,
			"db_host":          target,
			"step_duration_ms": time.Since(stepStart).Milliseconds(),
		})
	}

	log.Log(map[string]any{
		"event":       "db_migration_success",
		"status":      "success",
		"db_host":     target,
		"duration_ms": time.Since(start).Milliseconds(),
	})

	return nil
}
