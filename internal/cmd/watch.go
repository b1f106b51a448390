package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Iron-Ham/surveyctl/internal/config"
	"github.com/Iron-Ham/surveyctl/internal/logging"
	"github.com/Iron-Ham/surveyctl/internal/session"
	"github.com/Iron-Ham/surveyctl/internal/telemetry"
	"github.com/Iron-Ham/surveyctl/internal/tui"
)

var watchCmd = &cobra.Command{
	Use:   "watch <mission-id>",
	Short: "Follow a mission live and control it",
	Long: `Open a live session for a mission: load its current state, follow the
telemetry stream and issue control actions from the keyboard.

When stdout is not a terminal, or with --plain, one line is printed per
change until the mission ends or the command is interrupted.

Examples:
  # Watch mission 42 in the TUI
  surveyctl watch 42

  # Print changes as lines, e.g. for a log pipe
  surveyctl watch 42 --plain

  # Replay recorded telemetry instead of the live stream
  surveyctl watch 42 --replay ./frames-{id}.jsonl --replay-interval 200ms`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchPlain          bool
	watchReplay         string
	watchReplayInterval time.Duration
	watchTheme          string
)

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Print one line per change instead of the TUI")
	watchCmd.Flags().StringVar(&watchReplay, "replay", "", "Read telemetry frames from a JSON-lines file ({id} is the mission id)")
	watchCmd.Flags().DurationVar(&watchReplayInterval, "replay-interval", 0, "Delay between replayed frames (0 delivers them as fast as read)")
	watchCmd.Flags().StringVar(&watchTheme, "theme", "", "Color theme (overrides tui.theme)")
}

func runWatch(cmd *cobra.Command, args []string) error {
	missionID := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := openLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logger.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(ctx, cfg, logger, missionID)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if watchPlain || !term.IsTerminal(int(os.Stdout.Fd())) {
		return tui.RunPlain(ctx, sess, cmd.OutOrStdout())
	}

	// The TUI installs its own signal handling.
	stop()

	theme := cfg.TUI.Theme
	if watchTheme != "" {
		theme = watchTheme
	}
	app := tui.New(sess, tui.Options{
		Theme:         theme,
		ShowWaypoints: cfg.TUI.ShowWaypoints,
	})
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// openSession wires the gateway and the telemetry channel for missionID and
// opens a live session over them.
func openSession(ctx context.Context, cfg *config.Config, logger *logging.Logger, missionID string) (*session.Session, error) {
	var dialer telemetry.Dialer = &telemetry.WebsocketDialer{
		URLTemplate:       cfg.Service.TelemetryURL,
		KeepaliveInterval: cfg.Telemetry.KeepaliveInterval(),
	}
	if watchReplay != "" {
		dialer = &telemetry.FileDialer{
			PathTemplate: watchReplay,
			Interval:     watchReplayInterval,
		}
	}

	b := cfg.Telemetry.Backoff
	channel := telemetry.NewChannel(dialer, telemetry.Config{
		BufferSize: cfg.Telemetry.BufferSize,
		Backoff: telemetry.NewExponentialBackoff(telemetry.BackoffSettings{
			InitialInterval:     b.InitialInterval(),
			MaxInterval:         b.MaxInterval(),
			Multiplier:          b.Multiplier,
			RandomizationFactor: b.RandomizationFactor,
		}),
		Logger: logger,
	})

	return session.Open(ctx, missionID, session.Options{
		Gateway:   newGateway(cfg, logger),
		Telemetry: channel,
		Logger:    logger,
	})
}
