package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var readJSON bool

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Print the content of the data file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		app, err := newApp(cmd, cfg)
		if err != nil {
			return err
		}

		fc, err := app.ReadFile(cmd.Context())
		if err != nil {
			return err
		}
		if readJSON {
			if err := json.NewEncoder(cmd.OutOrStdout()).Encode(fc); err != nil {
				return fmt.Errorf("encoding file content to JSON: %w", err)
			}
			return nil
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), fc.Content)
		return err
	},
}

func init() {
	readCmd.Flags().BoolVar(&readJSON, "json", false, "print {fileId, content} as JSON")
	rootCmd.AddCommand(readCmd)
}
