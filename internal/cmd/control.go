package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/surveyctl/internal/config"
	"github.com/Iron-Ham/surveyctl/internal/errors"
	"github.com/Iron-Ham/surveyctl/internal/mission"
)

var controlCmd = &cobra.Command{
	Use:   "control <mission-id> <action>",
	Short: "Issue one control action",
	Long: `Issue a control action against a mission and print the state the
service answers with.

Actions: start, pause, resume, complete, abort.

The mission's current status is fetched first and actions it does not
offer are refused without contacting the control endpoint. Use --force to
send anyway and let the service decide.`,
	Args: cobra.ExactArgs(2),
	RunE: runControl,
}

var (
	controlForce  bool
	controlFormat string
)

func init() {
	rootCmd.AddCommand(controlCmd)

	controlCmd.Flags().BoolVar(&controlForce, "force", false, "Skip the local check against the mission's current status")
	controlCmd.Flags().StringVarP(&controlFormat, "format", "o", "text", "Output format (text, json, yaml)")
}

func runControl(cmd *cobra.Command, args []string) error {
	missionID := args[0]
	action, err := mission.ParseAction(strings.ToLower(args[1]))
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := openLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = logger.Close() }()

	gw := newGateway(cfg, logger)

	if !controlForce {
		snap, err := gw.FetchSnapshot(cmd.Context(), missionID)
		if err != nil {
			return err
		}
		if !mission.Permits(snap.Status, action) {
			return errors.Wrapf(errors.ErrActionNotPermitted, "%s while %s", action, snap.Status)
		}
	}

	snap, err := gw.Send(cmd.Context(), missionID, action)
	if err != nil {
		var rejected *errors.CommandRejectedError
		if errors.As(err, &rejected) {
			return fmt.Errorf("%s rejected: %s", action, rejected.Reason)
		}
		return err
	}
	logger.WithMission(missionID).Info("control action accepted", "action", string(action), "status", string(snap.Status))
	return writeMission(cmd.OutOrStdout(), snap, controlFormat)
}
