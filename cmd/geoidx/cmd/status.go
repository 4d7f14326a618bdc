package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/geoidx/internal/config"
	"github.com/Aman-CERP/geoidx/internal/searchindex"
	"github.com/Aman-CERP/geoidx/internal/store"
	"github.com/Aman-CERP/geoidx/internal/ui"
)

func newStatusCmd() *cobra.Command {
	var (
		jsonOutput bool
		db         string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show indexing progress of the database",
		Long: `Display the indexing state of the database:
  - The database-wide indexed flag (import_status)
  - Total and pending places per rank, boundaries first
  - Failure counts by kind
  - The outcome of the last run
  - Documents in the search index`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("db") {
				cfg.Database.Path = db
			}

			info, err := collectStatus(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), ui.DetectNoColor())
			if jsonOutput {
				return renderer.RenderJSON(info)
			}
			return renderer.Render(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&db, "db", "", "Database path (default: database.path)")

	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config) (ui.StatusInfo, error) {
	info := ui.StatusInfo{
		Database: cfg.Database.Path,
		Ranks:    []ui.RankStatus{},
	}

	s, err := store.OpenExisting(cfg.Database.Path, store.Options{BusyTimeout: cfg.BusyTimeout()})
	if err != nil {
		return info, err
	}
	defer func() { _ = s.Close() }()

	if st, err := os.Stat(cfg.Database.Path); err == nil {
		info.DatabaseSize = st.Size()
	}

	counts, err := s.RankCounts(ctx)
	if err != nil {
		return info, err
	}
	for _, c := range counts {
		info.Ranks = append(info.Ranks, ui.RankStatus{
			Rank:     c.Rank,
			Boundary: c.Boundary,
			Total:    c.Total,
			Pending:  c.Pending,
		})
		info.Total += c.Total
	}
	if info.Pending, err = s.CountAllPending(ctx); err != nil {
		return info, err
	}

	if ok, _ := s.TableExists(ctx, "import_status"); ok {
		if info.Indexed, err = s.IsRunComplete(ctx); err != nil {
			return info, err
		}
	}

	if ok, _ := s.TableExists(ctx, "index_failures"); ok {
		failures, err := s.CountFailures(ctx)
		if err != nil {
			return info, err
		}
		info.Transient = failures[store.FailureTransient]
		info.Permanent = failures[store.FailurePermanent]
	}

	if ok, _ := s.TableExists(ctx, "index_runs"); ok {
		run, err := s.LastRun(ctx)
		if err != nil {
			return info, err
		}
		if run != nil {
			info.LastRun = &ui.RunSummary{
				ID:         run.ID,
				StartedAt:  run.StartedAt,
				FinishedAt: run.FinishedAt,
				Phases:     run.Phases,
				Attempted:  run.Attempted,
				Succeeded:  run.Succeeded,
				Failed:     run.Failed,
				Complete:   run.Complete,
				Cancelled:  run.Cancelled,
			}
		}
	}

	info.SearchDocs = searchDocuments(cfg)

	return info, nil
}

// searchDocuments returns the document count of the search index, or 0 when
// there is none.
func searchDocuments(cfg *config.Config) int {
	path := cfg.SearchIndexPath()
	backend := searchindex.Detect(path)
	if backend == "" || !strings.EqualFold(string(backend), cfg.SearchIndex.Backend) {
		return 0
	}

	idx, err := searchindex.Open(path, backend, searchindex.DefaultConfig())
	if err != nil {
		return 0
	}
	defer func() { _ = idx.Close() }()

	return idx.Stats().DocumentCount
}
