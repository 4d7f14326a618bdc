package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/geoidx/internal/compute"
	"github.com/Aman-CERP/geoidx/internal/config"
	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/index"
	"github.com/Aman-CERP/geoidx/internal/lock"
	"github.com/Aman-CERP/geoidx/internal/logging"
	"github.com/Aman-CERP/geoidx/internal/preflight"
	"github.com/Aman-CERP/geoidx/internal/profiling"
	"github.com/Aman-CERP/geoidx/internal/searchindex"
	"github.com/Aman-CERP/geoidx/internal/store"
	"github.com/Aman-CERP/geoidx/internal/ui"
)

type indexOptions struct {
	boundariesOnly bool
	ranksOnly      bool
	threads        int
	minRank        int
	maxRank        int
	db             string
	noTUI          bool
	jsonOutput     bool
	skipCheck      bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index pending places rank by rank",
		Long: `Index every place whose indexed flag is not set.

Boundaries within indexer.boundary_min_rank..boundary_max_rank are indexed
first, one rank at a time. Then every other place within --minrank..--maxrank
is indexed in ascending rank order. All places of a rank are finished before
the next rank starts.

Places that fail are recorded ('geoidx failures') and left pending; the run
carries on. When nothing in scope is pending at the end, the database-wide
indexed flag in import_status is set.

Ctrl+C stops the run after the current rank. Run the command again to resume.`,
		Example: `  # Index everything
  geoidx index

  # Only boundaries, with 8 workers
  geoidx index --boundaries-only --threads 8

  # Ranks 26 to 30 of a specific database
  geoidx index --ranks-only --minrank 26 --maxrank 30 --db planet.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runIndex(ctx, cmd, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.boundariesOnly, "boundaries-only", false, "Only index boundaries")
	f.BoolVar(&opts.ranksOnly, "ranks-only", false, "Only index non-boundary places")
	f.BoolVar(&opts.ranksOnly, "no-boundaries", false, "Alias for --ranks-only")
	f.IntVar(&opts.threads, "threads", 0, "Number of workers (default: indexer.threads)")
	f.IntVar(&opts.minRank, "minrank", config.MinSearchRank, "Lowest rank of the rank phase")
	f.IntVar(&opts.maxRank, "maxrank", config.MaxSearchRank, "Highest rank of the rank phase")
	f.StringVar(&opts.db, "db", "", "Database path (default: database.path)")
	f.BoolVar(&opts.noTUI, "no-tui", false, "Disable TUI mode, use plain text output")
	f.BoolVar(&opts.jsonOutput, "json", false, "Print the run summary as JSON")
	f.BoolVar(&opts.skipCheck, "skip-check", false, "Skip pre-flight system checks")

	return cmd
}

// applyIndexFlags layers explicitly set flags over cfg and revalidates it.
func applyIndexFlags(cmd *cobra.Command, cfg *config.Config, opts indexOptions) error {
	f := cmd.Flags()
	if f.Changed("db") {
		cfg.Database.Path = opts.db
	}
	if f.Changed("threads") {
		cfg.Indexer.Threads = opts.threads
	}
	if f.Changed("minrank") {
		cfg.Indexer.MinRank = opts.minRank
	}
	if f.Changed("maxrank") {
		cfg.Indexer.MaxRank = opts.maxRank
	}
	return cfg.Validate()
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyIndexFlags(cmd, cfg, opts); err != nil {
		return err
	}

	dbPath := cfg.Database.Path
	if !fileExists(dbPath) {
		return geoerrors.New(geoerrors.ErrCodeDatabaseNotFound,
			fmt.Sprintf("database not found: %s", dbPath), nil).
			WithSuggestion("Set database.path in .geoidx.yaml or pass --db")
	}

	runLock := lock.ForDatabase(dbPath)
	if err := runLock.TryAcquire(); err != nil {
		return err
	}
	defer func() { _ = runLock.Release() }()

	if !opts.skipCheck {
		checker := preflight.New(preflight.WithOutput(cmd.ErrOrStderr()), preflight.WithVerbose(debugMode))
		results := checker.RunAll(ctx, dbPath, cfg.Indexer.Threads)
		if checker.HasCriticalFailures(results) {
			checker.PrintResults(results)
			return fmt.Errorf("%w: pre-flight checks failed, use --skip-check to bypass", errSilent)
		}
		if debugMode {
			checker.PrintResults(results)
		}
	}

	s, err := store.Open(dbPath, store.Options{
		BusyTimeout: cfg.BusyTimeout(),
		CacheMB:     cfg.Database.CacheMB,
	})
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	var search searchindex.Index
	if strings.ToLower(cfg.Compute.Provider) == config.ProviderTokens {
		search, err = searchindex.Open(cfg.SearchIndexPath(),
			searchindex.Backend(strings.ToLower(cfg.SearchIndex.Backend)), searchindex.DefaultConfig())
		if err != nil {
			return geoerrors.StorageUnavailable("failed to open search index", err).
				WithDetail("path", cfg.SearchIndexPath())
		}
		defer func() { _ = search.Close() }()
	}

	computer, err := compute.New(cfg, s, search)
	if err != nil {
		return err
	}

	logger, cleanup, err := indexLogger(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var renderer ui.Renderer = ui.Discard{}
	if !opts.jsonOutput {
		renderer = ui.NewRenderer(ui.NewConfig(cmd.OutOrStdout(),
			ui.WithForcePlain(opts.noTUI || debugMode),
			ui.WithNoColor(ui.DetectNoColor()),
			ui.WithDatabase(dbPath)))
	}

	sched, err := index.NewScheduler(index.Dependencies{
		Source:     s,
		Completion: s,
		Computer:   computer,
		Runs:       s,
		Renderer:   renderer,
		Logger:     logger,
	}, index.PlanOptionsFromConfig(cfg))
	if err != nil {
		return err
	}

	if err := renderer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start progress display: %w", err)
	}
	result, runErr := sched.Run(ctx, index.Selection{
		BoundariesOnly: opts.boundariesOnly,
		RanksOnly:      opts.ranksOnly,
	})
	_ = renderer.Stop()
	logger.Debug("index_heap_in_use", slog.Uint64("bytes", profiling.HeapInUse()))

	if opts.jsonOutput && result != nil {
		if err := writeIndexReport(cmd, result, runErr); err != nil {
			return err
		}
	}

	if runErr != nil {
		return runErr
	}
	if result.Cancelled {
		return errInterrupted
	}
	return nil
}

// indexLogger returns the logger handed to the scheduler. Under --debug the
// default logger is already set up; otherwise events go to logging.file when
// configured and are dropped when not, keeping the terminal for progress.
func indexLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	if debugMode {
		return slog.Default(), func() {}, nil
	}
	if cfg.Logging.File == "" {
		return logging.Discard(), func() {}, nil
	}

	logger, cleanup, err := logging.Setup(logging.Config{
		Level:     cfg.Logging.Level,
		FilePath:  cfg.Logging.File,
		MaxSizeMB: cfg.Logging.MaxSizeMB,
		MaxFiles:  cfg.Logging.MaxFiles,
		Format:    cfg.Logging.Format,
	})
	if err != nil {
		return nil, nil, geoerrors.InvalidConfiguration("failed to open logging.file", err)
	}
	return logger, cleanup, nil
}

// indexReport is the --json summary of a run.
type indexReport struct {
	RunID      string          `json:"run_id"`
	Phases     string          `json:"phases"`
	Attempted  int             `json:"attempted"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Skipped    int             `json:"skipped"`
	Complete   bool            `json:"complete"`
	Cancelled  bool            `json:"cancelled"`
	DurationMS int64           `json:"duration_ms"`
	Ranks      []rankReport    `json:"ranks"`
	Failures   []failureReport `json:"failures,omitempty"`
	Error      string          `json:"error,omitempty"`
}

type rankReport struct {
	Rank       int   `json:"rank"`
	Boundary   bool  `json:"boundary"`
	Attempted  int   `json:"attempted"`
	Succeeded  int   `json:"succeeded"`
	Failed     int   `json:"failed"`
	DurationMS int64 `json:"duration_ms"`
}

type failureReport struct {
	PlaceID int64  `json:"place_id"`
	Rank    int    `json:"rank"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

func newIndexReport(result *index.Result, runErr error) indexReport {
	report := indexReport{
		RunID:      result.RunID,
		Phases:     result.Phases.String(),
		Attempted:  result.Attempted(),
		Succeeded:  result.Succeeded(),
		Failed:     result.Failed(),
		Skipped:    result.Skipped,
		Complete:   result.Complete,
		Cancelled:  result.Cancelled,
		DurationMS: result.Duration.Milliseconds(),
		Ranks:      []rankReport{},
	}
	for _, phase := range []index.PhaseResult{result.Boundaries, result.Ranks} {
		for _, r := range phase.Ranks {
			report.Ranks = append(report.Ranks, rankReport{
				Rank:       r.Rank,
				Boundary:   r.Boundary,
				Attempted:  r.Attempted,
				Succeeded:  r.Succeeded,
				Failed:     r.Failed,
				DurationMS: r.Duration.Round(time.Millisecond).Milliseconds(),
			})
		}
	}
	for _, f := range result.Failures() {
		report.Failures = append(report.Failures, failureReport{
			PlaceID: f.PlaceID,
			Rank:    f.Rank,
			Kind:    f.Kind.String(),
			Error:   errorMessage(f.Err),
		})
	}
	if runErr != nil {
		report.Error = errorMessage(runErr)
	}
	return report
}

func writeIndexReport(cmd *cobra.Command, result *index.Result, runErr error) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(newIndexReport(result, runErr))
}

// errorMessage returns the message of a coded error without its code.
func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	if ge, ok := geoerrors.As(err); ok {
		return ge.Message
	}
	return err.Error()
}
