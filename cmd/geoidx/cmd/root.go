// Package cmd provides the CLI commands for geoidx.
package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/geoidx/internal/config"
	geoerrors "github.com/Aman-CERP/geoidx/internal/errors"
	"github.com/Aman-CERP/geoidx/internal/logging"
	"github.com/Aman-CERP/geoidx/internal/profiling"
	"github.com/Aman-CERP/geoidx/pkg/version"
)

// Exit codes returned by Execute.
const (
	ExitOK      = 0
	ExitFailure = 1
	// ExitConfig reports invalid configuration or flags (EX_CONFIG).
	ExitConfig = 78
	// ExitUnavailable reports a database that could not be reached (EX_UNAVAILABLE).
	ExitUnavailable = 69
	// ExitLocked reports another run holding the database.
	ExitLocked = 75
	// ExitInterrupted reports a run stopped by SIGINT or SIGTERM.
	ExitInterrupted = 130
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// Profiling flags
var (
	profileOpts profiling.Options
	profiler    *profiling.Session
)

var (
	// errSilent marks an error whose report was already printed by the command.
	errSilent = errors.New("reported")
	// errInterrupted is returned when a run stopped at a barrier on request.
	errInterrupted = fmt.Errorf("%w: interrupted", errSilent)
)

// NewRootCmd creates the root command for the geoidx CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geoidx",
		Short: "Rank-ordered indexing for a geocoding database",
		Long: `geoidx computes the derived search data of every place in a geocoding
database. Boundaries are indexed first, then every other place rank by rank,
so that each place only depends on places that are already indexed.

Runs are resumable: interrupt with Ctrl+C and run 'geoidx index' again to
continue with the places that are still pending.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("geoidx version {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return geoerrors.InvalidConfiguration(err.Error(), err).
			WithSuggestion(fmt.Sprintf("Run '%s --help' for usage", c.CommandPath()))
	})

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.geoidx/logs/")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write heap profile to file on exit")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newFailuresCmd())
	cmd.AddCommand(newCheckDatabaseCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts profiling and debug logging if requested.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if profileOpts.Enabled() {
		session, err := profiling.Start(profileOpts)
		if err != nil {
			return err
		}
		profiler = session
	}

	if !debugMode {
		return nil
	}

	cleanup, err := logging.SetupDefault(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("failed to setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.Info("debug_logging_enabled",
		slog.String("log_file", logging.DefaultLogPath()),
		slog.String("version", version.Version))

	return nil
}

func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	var err error
	if profiler != nil {
		err = profiler.Stop()
		profiler = nil
	}

	if loggingCleanup != nil {
		slog.Info("debug_logging_stopped")
		loggingCleanup()
		loggingCleanup = nil
	}
	return err
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	root := NewRootCmd()
	err := root.Execute()
	if err != nil && !errors.Is(err, errSilent) {
		_, _ = fmt.Fprint(root.ErrOrStderr(), geoerrors.FormatForCLI(err))
	}
	return ExitCode(err)
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errInterrupted):
		return ExitInterrupted
	case geoerrors.IsInvalidConfiguration(err):
		return ExitConfig
	case geoerrors.GetCode(err) == geoerrors.ErrCodeRunLocked:
		return ExitLocked
	case geoerrors.IsStorageUnavailable(err), geoerrors.GetCode(err) == geoerrors.ErrCodeDatabaseNotFound:
		return ExitUnavailable
	default:
		return ExitFailure
	}
}

// loadConfig loads configuration for the working directory.
func loadConfig() (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	return config.Load(cwd)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
