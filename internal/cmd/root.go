package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/surveyctl/internal/config"
	"github.com/Iron-Ham/surveyctl/internal/gateway"
	"github.com/Iron-Ham/surveyctl/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "surveyctl",
	Short: "Live control of drone survey missions",
	Long: `surveyctl follows a drone survey mission as it flies and lets an
operator start, pause, resume, complete or abort it.

The mission's state is kept consistent with the service by reconciling the
live telemetry stream with the authoritative snapshots the REST API returns.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/surveyctl/config.yaml)")
	rootCmd.PersistentFlags().String("base-url", "", "survey service REST API root")
	rootCmd.PersistentFlags().String("telemetry-url", "", "telemetry stream URL template ({id} is the mission id)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("service.base_url", rootCmd.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("service.telemetry_url", rootCmd.PersistentFlags().Lookup("telemetry-url"))
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SURVEYCTL")
	// Replace dots with underscores for nested keys in env vars
	// e.g., SURVEYCTL_SERVICE_BASE_URL for service.base_url
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

// openLogger returns the file logger configured for cfg, or a logger that
// discards everything when logging is disabled.
func openLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	path := cfg.Paths.LogFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return logging.NewLogger(path, cfg.Logging.Level, logging.RotationConfig{
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		Compress:   cfg.Logging.Compress,
	})
}

// newGateway builds the REST client for cfg.
func newGateway(cfg *config.Config, logger *logging.Logger) *gateway.Client {
	return gateway.NewClient(cfg.Service.BaseURL,
		gateway.WithTimeout(cfg.Service.RequestTimeout()),
		gateway.WithLogger(logger),
	)
}
