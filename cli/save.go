package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/etnz/apnee/apneeapp"
)

var (
	saveFileID string
	saveCreate bool
)

var saveCmd = &cobra.Command{
	Use:   "save [path]",
	Short: "Replace the content of the data file",
	Long: `Replace the content of the data file with the content of path, or of the
standard input when no path is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var content []byte
		if len(args) == 1 {
			content, err = os.ReadFile(args[0])
		} else {
			content, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("reading content: %w", err)
		}

		app, err := newApp(cmd, cfg)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		fileID := saveFileID
		if fileID == "" {
			file, err := app.FindFile(ctx)
			switch {
			case err == nil:
				fileID = file.ID
			case saveCreate && (errors.Is(err, apneeapp.ErrFileNotFound) || errors.Is(err, apneeapp.ErrDataFileNotFound)):
				file, err := app.CreateFile(ctx, string(content))
				if err != nil {
					return err
				}
				cmd.Printf("Created %s (ID: %s).\n", file.Name, file.ID)
				return nil
			default:
				return err
			}
		}

		err = app.SaveFile(ctx, apneeapp.FileContent{FileID: fileID, Content: string(content)})
		if saveCreate && apneeapp.IsNotFound(err) {
			file, err := app.CreateFile(ctx, string(content))
			if err != nil {
				return err
			}
			cmd.Printf("%s no longer exists, created %s (ID: %s).\n", fileID, file.Name, file.ID)
			return nil
		}
		if err != nil {
			return err
		}
		cmd.Printf("Saved %d bytes to %s.\n", len(content), fileID)
		return nil
	},
}

func init() {
	saveCmd.Flags().StringVar(&saveFileID, "file-id", "", "ID of the file to write (default is to look the data file up by name)")
	saveCmd.Flags().BoolVar(&saveCreate, "create", false, "create the data file when it does not exist or the given ID is gone")
	rootCmd.AddCommand(saveCmd)
}
