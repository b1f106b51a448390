package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/surveyctl/internal/config"
	"github.com/Iron-Ham/surveyctl/internal/logging"
	"github.com/Iron-Ham/surveyctl/internal/mission"
	"github.com/Iron-Ham/surveyctl/internal/presenter"
)

var statusCmd = &cobra.Command{
	Use:   "status <mission-id>",
	Short: "Show a mission's current state",
	Long: `Fetch a mission's authoritative state from the service and print it.

Use --format json or --format yaml for machine-readable output.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

var statusFormat string

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusFormat, "format", "o", "text", "Output format (text, json, yaml)")
}

// missionReport is the machine-readable form of a mission's state.
type missionReport struct {
	ID              string            `json:"id" yaml:"id"`
	Name            string            `json:"name,omitempty" yaml:"name,omitempty"`
	Status          mission.Status    `json:"status" yaml:"status"`
	FlightPattern   string            `json:"flight_pattern,omitempty" yaml:"flight_pattern,omitempty"`
	AltitudeM       float64           `json:"altitude" yaml:"altitude"`
	ProgressPercent float64           `json:"progress_percent" yaml:"progress_percent"`
	DronePosition   *mission.Position `json:"drone_position,omitempty" yaml:"drone_position,omitempty"`
	Waypoints       int               `json:"waypoints" yaml:"waypoints"`
	Actions         []mission.Action  `json:"actions" yaml:"actions"`
}

func newMissionReport(snap mission.Snapshot) missionReport {
	r := missionReport{
		ID:            snap.MissionID,
		Name:          snap.Name,
		Status:        snap.Status,
		FlightPattern: string(snap.FlightPattern),
		AltitudeM:     snap.AltitudeM,
		DronePosition: snap.DronePosition,
		Waypoints:     len(snap.Waypoints),
		Actions:       mission.AvailableActions(snap.Status),
	}
	if snap.ProgressPercent != nil {
		r.ProgressPercent = *snap.ProgressPercent
	}
	if r.Actions == nil {
		r.Actions = []mission.Action{}
	}
	return r
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	snap, err := newGateway(cfg, logging.NopLogger()).FetchSnapshot(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return writeMission(cmd.OutOrStdout(), snap, statusFormat)
}

// writeMission renders a snapshot in the requested format.
func writeMission(w io.Writer, snap mission.Snapshot, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(newMissionReport(snap))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(newMissionReport(snap)); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		_, err := io.WriteString(w, formatMission(snap))
		return err
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json, yaml)", format)
	}
}

func formatMission(snap mission.Snapshot) string {
	v := presenter.Present(mission.NewSession(snap))

	actions := make([]string, 0, len(v.Actions))
	for _, a := range v.Actions {
		actions = append(actions, string(a.Action))
	}
	if len(actions) == 0 {
		actions = append(actions, "none")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n", v.Title)
	fmt.Fprintf(&sb, "  Status:    %s\n", v.Status.Label)
	fmt.Fprintf(&sb, "  Progress:  %s\n", v.Progress.Text)
	fmt.Fprintf(&sb, "  Position:  %s\n", v.Position.Text)
	fmt.Fprintf(&sb, "  Pattern:   %s\n", v.Details.Pattern)
	fmt.Fprintf(&sb, "  Altitude:  %s\n", v.Details.Altitude)
	fmt.Fprintf(&sb, "  Waypoints: %d\n", v.Details.Waypoints)
	fmt.Fprintf(&sb, "  Actions:   %s\n", strings.Join(actions, ", "))
	return sb.String()
}
