package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/surveyctl/internal/config"
	"github.com/Iron-Ham/surveyctl/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View watch session logs",
	Long: `View and filter the logs written by 'surveyctl watch' and
'surveyctl control', including rotated files.

Examples:
  # Show the last 50 entries
  surveyctl logs

  # Everything logged for mission 42 in the last hour
  surveyctl logs --mission 42 --since 1h -n 0

  # Warnings and errors of one session, as JSON lines
  surveyctl logs --session 3f2a... --level warn --format json`,
	RunE: runLogs,
}

var (
	logsMission   string
	logsSession   string
	logsComponent string
	logsLevel     string
	logsSince     time.Duration
	logsGrep      string
	logsTail      int
	logsFormat    string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVarP(&logsMission, "mission", "m", "", "Only entries for this mission id")
	logsCmd.Flags().StringVarP(&logsSession, "session", "s", "", "Only entries for this session epoch")
	logsCmd.Flags().StringVar(&logsComponent, "component", "", "Only entries from this component (session, gateway, telemetry)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().DurationVar(&logsSince, "since", 0, "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsGrep, "grep", "", "Only entries whose message contains this text")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of entries to show (0 for all)")
	logsCmd.Flags().StringVar(&logsFormat, "format", "text", "Output format (text, json)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	path := cfg.Paths.LogFile()

	entries, err := logging.ReadLogs(path, cfg.Logging.MaxBackups)
	if err != nil {
		return err
	}

	filter := logging.LogFilter{
		MissionID:       logsMission,
		SessionID:       logsSession,
		Component:       logsComponent,
		MessageContains: logsGrep,
	}
	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince > 0 {
		filter.Since = time.Now().Add(-logsSince)
	}

	entries = logging.FilterLogs(entries, filter)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching log entries found.")
		return nil
	}
	return logging.WriteEntries(cmd.OutOrStdout(), entries, logsFormat)
}
