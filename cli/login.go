package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authorize apnee to access your Google Drive",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		app, err := newApp(cmd, cfg)
		if err != nil {
			return err
		}
		if err := app.Auth.Login(cmd.Context()); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		cmd.Println("Successfully logged in. apnee is now authorized to access your Google Drive.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
}
