package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/geoidx/internal/index"
	"github.com/Aman-CERP/geoidx/internal/preflight"
)

func newCheckDatabaseCmd() *cobra.Command {
	var (
		db      string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "check-database",
		Short: "Check that the database is fully imported and indexed",
		Long: `Run the ordered database checks and stop at the first failure:
  1. The database can be opened
  2. The places table exists
  3. The import_status table exists
  4. No place within the configured rank windows is unindexed
  5. The database-wide indexed flag is set

The search index is reported last but never fails the check.
Exits non-zero when a check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.Database.Path = db
			}

			checker := preflight.New(
				preflight.WithTitle("geoidx Database Check"),
				preflight.WithOutput(cmd.OutOrStdout()),
				preflight.WithVerbose(verbose),
			)

			scope := index.PlanOptionsFromConfig(cfg).Scope(index.ResolvePhases(index.Selection{}))
			results := checker.CheckDatabase(cmd.Context(), cfg.Database.Path, scope, cfg.SearchIndexPath())
			checker.PrintResults(results)

			if checker.HasCriticalFailures(results) {
				return fmt.Errorf("%w: database check failed", errSilent)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&db, "db", "", "Database path (default: database.path)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show details of passing checks")

	return cmd
}
