package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"podocs/internal/database/migration"
	"podocs/internal/service"
)

// MigrateCmd creates the document tables when they are missing.
func MigrateCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the document schema if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				if err := migration.EnsureMigrated(ctx, rt.Pool, rt.Log, rt.Target); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s schema ready (%s)\n", okWord(), rt.Pool.Dialect())
				return nil
			})
		},
	}
}

// VerifyCmd reports records whose artifact is gone.
func VerifyCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check that every document record still has its file",
		Long: `Reads every recorded artifact. Records whose file is missing are listed
and the command exits non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				missing, err := service.NewReconciler(rt.Store, rt.Docs, rt.Log).VerifyArtifacts(ctx)
				if err != nil {
					return err
				}
				renderMissing(cmd.OutOrStdout(), missing)
				if len(missing) > 0 {
					return fmt.Errorf("%w: %d", ErrArtifactsMissing, len(missing))
				}
				return nil
			})
		},
	}
}

// OrphansCmd lists, and optionally removes, files no record references.
func OrphansCmd(open Opener) *cobra.Command {
	var (
		minAge time.Duration
		remove bool
	)

	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "List stored files that no document record references",
		Long: `Files younger than --min-age are skipped: their record may still be
in flight.

Examples:
  podocsctl orphans                  # list files older than 1h
  podocsctl orphans --min-age 24h --remove`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if minAge < 0 {
				return fmt.Errorf("--min-age must not be negative")
			}
			return withRuntime(cmd, open, func(ctx context.Context, rt *Runtime) error {
				rec := service.NewReconciler(rt.Store, rt.Docs, rt.Log)
				if !remove {
					orphans, err := rec.FindOrphans(ctx, minAge)
					if err != nil {
						return err
					}
					renderOrphans(cmd.OutOrStdout(), orphans, false)
					return nil
				}

				removed, err := rec.RemoveOrphans(ctx, minAge)
				if err == nil || len(removed) > 0 {
					renderOrphans(cmd.OutOrStdout(), removed, true)
				}
				return err
			})
		},
	}

	cmd.Flags().DurationVar(&minAge, "min-age", time.Hour, "only report files older than this")
	cmd.Flags().BoolVar(&remove, "remove", false, "delete the orphaned files")
	return cmd
}
