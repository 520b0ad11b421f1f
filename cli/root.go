// Package cli implements the apnee command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"
	"google.golang.org/api/option"

	"github.com/etnz/apnee/apneeapp"
	"github.com/etnz/apnee/config"
	"github.com/etnz/apnee/logger"
)

var (
	version = "dev"

	cfgPath string
	verbose bool

	// driveOptions, when set, replace the stored-token authentication of the Drive client.
	driveOptions []option.ClientOption
)

var rootCmd = &cobra.Command{
	Use:   "apnee",
	Short: "Keep the apnee data file on Google Drive",
	Long: `apnee connects the apnee web application to the user's Google Drive.

It serves the message ports the application publishes on (read, authenticate, save)
and answers them with the content of the apnee.json data file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default is <user config dir>/apnee/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs and port traffic")
}

// Execute runs the command line.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig loads and validates the configuration, and sets logging up.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	logger.Init(cfg.Log, cmd.ErrOrStderr())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(cmd *cobra.Command, cfg *config.Config) (*apneeapp.App, error) {
	app, err := apneeapp.New(cmd.Context(), cfg, driveOptions...)
	if err != nil {
		return nil, err
	}
	app.Auth.Out = cmd.ErrOrStderr()
	return app, nil
}
