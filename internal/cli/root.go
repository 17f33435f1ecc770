// Package cli implements podocsctl, the operator commands that run outside
// the request path: schema migration and artifact reconciliation.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"podocs/internal/config"
	"podocs/internal/database"
	"podocs/internal/logging"
	"podocs/internal/repository"
	"podocs/internal/repository/sqldb"
	"podocs/internal/storage"
)

// ErrArtifactsMissing is returned by verify when any record lacks its file.
var ErrArtifactsMissing = errors.New("document artifacts missing")

// Runtime is what the commands operate on.
type Runtime struct {
	Pool   *database.Pool
	Store  storage.Store
	Docs   repository.DocumentRepository
	Log    *logging.Logger
	Target string
	Close  func()
}

// Opener builds a Runtime when a command runs, so --help never touches the
// database.
type Opener func(ctx context.Context) (*Runtime, error)

// OpenFromConfig returns an Opener over the configured database and store.
func OpenFromConfig(cfg *config.AppConfig, log *logging.Logger) Opener {
	return func(ctx context.Context) (*Runtime, error) {
		pool, err := database.Open(cfg.Database, database.WithLogger(log))
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		store, err := storage.Open(cfg.Storage, cfg.MinIO)
		if err != nil {
			_ = pool.Close()
			return nil, fmt.Errorf("open document store: %w", err)
		}
		exec := database.NewExecutor(pool,
			database.WithMaxAttempts(cfg.Database.MaxAttempts),
			database.WithRetryBaseDelay(cfg.Database.RetryBaseDelay()),
		)

		target := cfg.Database.Host
		if pool.Dialect() == database.SQLite {
			target = cfg.Database.Path
		}
		return &Runtime{
			Pool:   pool,
			Store:  store,
			Docs:   sqldb.NewDocumentStore(exec),
			Log:    log,
			Target: target,
			Close:  func() { _ = pool.Close() },
		}, nil
	}
}

// RootCmd assembles podocsctl.
func RootCmd(open Opener) *cobra.Command {
	root := &cobra.Command{
		Use:   "podocsctl",
		Short: "Operate the purchase-order document store",
		Long: `podocsctl runs maintenance tasks against the purchase-order document
database and its artifact store.

Examples:
  podocsctl migrate                 # create tables if missing
  podocsctl verify                  # exit 1 when any record lacks its file
  podocsctl orphans --min-age 2h    # list unreferenced files
  podocsctl orphans --remove        # delete them`,
		SilenceUsage: true,
	}

	root.AddCommand(MigrateCmd(open))
	root.AddCommand(VerifyCmd(open))
	root.AddCommand(OrphansCmd(open))
	return root
}

func withRuntime(cmd *cobra.Command, open Opener, fn func(ctx context.Context, rt *Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := open(ctx)
	if err != nil {
		return err
	}
	if rt.Close != nil {
		defer rt.Close()
	}
	return fn(ctx, rt)
}
