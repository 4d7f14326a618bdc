package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/output"
	"github.com/Aman-CERP/geoidx/internal/store"
)

type failureRow struct {
	PlaceID  int64  `json:"place_id"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
	Attempts int    `json:"attempts"`
	LastSeen string `json:"last_seen"`
}

func newFailuresCmd() *cobra.Command {
	var (
		jsonOutput bool
		kind       string
		limit      int
		db         string
	)

	cmd := &cobra.Command{
		Use:   "failures",
		Short: "List places that failed to index",
		Long: `List the places whose last indexing attempt failed.

Transient failures (a dependency was not ready, a timeout) usually succeed
on the next run. Permanent failures need the place data to be fixed.
A place leaves this list as soon as it is indexed.`,
		Example: `  # Everything that failed
  geoidx failures

  # Place ids to feed a retry job
  geoidx failures --kind transient --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := store.FailureFilter{Kind: store.FailureKind(kind), Limit: limit}
			switch filter.Kind {
			case "", store.FailureTransient, store.FailurePermanent:
			default:
				return geoerrors.InvalidConfiguration(
					fmt.Sprintf("invalid --kind %q (use transient or permanent)", kind), nil)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.Database.Path = db
			}

			s, err := store.OpenExisting(cfg.Database.Path, store.Options{BusyTimeout: cfg.BusyTimeout()})
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			var failures []store.Failure
			if ok, _ := s.TableExists(cmd.Context(), "index_failures"); ok {
				if failures, err = s.ListFailures(cmd.Context(), filter); err != nil {
					return err
				}
			}

			rows := make([]failureRow, 0, len(failures))
			for _, f := range failures {
				rows = append(rows, failureRow{
					PlaceID:  f.PlaceID,
					Kind:     string(f.Kind),
					Message:  f.Message,
					Attempts: f.Attempts,
					LastSeen: f.LastSeen.UTC().Format("2006-01-02T15:04:05Z"),
				})
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rows)
			}
			printFailures(output.New(cmd.OutOrStdout()), rows)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&kind, "kind", "", "Only list failures of this kind: transient or permanent")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows (0 lists all)")
	cmd.Flags().StringVar(&db, "db", "", "Database path (default: database.path)")

	return cmd
}

func printFailures(out *output.Writer, rows []failureRow) {
	if len(rows) == 0 {
		out.Success("No failed places")
		return
	}

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		table = append(table, []string{
			strconv.FormatInt(r.PlaceID, 10),
			r.Kind,
			strconv.Itoa(r.Attempts),
			r.LastSeen,
			r.Message,
		})
	}
	out.Table([]string{"PLACE", "KIND", "ATTEMPTS", "LAST SEEN", "MESSAGE"}, table)
	out.Newline()
	out.Warningf("%d places failed; run 'geoidx index' to retry them", len(rows))
}
