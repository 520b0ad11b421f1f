package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/etnz/apnee/apneeapp"
	"github.com/etnz/apnee/ports"
	"github.com/etnz/apnee/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Drive ports to the web application",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		app, err := newApp(cmd, cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var tracer ports.Tracer = apneeapp.LogTracer{}
		if verbose {
			tracer = apneeapp.NewConsoleTracer(cmd.ErrOrStderr())
		}
		bus := apneeapp.NewBridge(app)
		if err := bus.Start(ctx, tracer); err != nil {
			return err
		}

		cmd.PrintErrf("Serving %s on http://%s\n", cfg.FileName, cfg.Listen)
		return server.New(cfg, bus).Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
