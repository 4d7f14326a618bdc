package cmd

import (
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/geoidx/internal/logging"
)

func newLogsCmd() *cobra.Command {
	var (
		lines   int
		level   string
		filter  string
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log events",
		Long: `Show the last events of the geoidx log file.

Events are written under --debug to ~/.geoidx/logs/geoidx.log, or to
logging.file when configured.`,
		Example: `  # Last 50 events
  geoidx logs

  # Warnings and errors mentioning a place
  geoidx logs --level warn --filter 'place_id":42\b'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var pattern *regexp.Regexp
			if filter != "" {
				p, err := regexp.Compile(filter)
				if err != nil {
					return fmt.Errorf("invalid filter pattern: %w", err)
				}
				pattern = p
			}

			if logFile == "" {
				if cfg, err := loadConfig(); err == nil {
					logFile = cfg.Logging.File
				}
			}
			path, err := logging.FindLogFile(logFile)
			if err != nil {
				return err
			}

			entries, err := logging.Tail(path, lines, logging.ViewerConfig{Level: level, Pattern: pattern})
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Log file: %s\n---\n", path)
			for _, e := range entries {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), e.Format())
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of events to show")
	cmd.Flags().StringVar(&level, "level", "", "Minimum level (debug|info|warn|error)")
	cmd.Flags().StringVar(&filter, "filter", "", "Only show lines matching this pattern (regex)")
	cmd.Flags().StringVar(&logFile, "file", "", "Path to log file")

	return cmd
}
