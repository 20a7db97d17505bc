package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newImportCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>...",
		Short: "Import playlists from JSON files",
		Long: `Import playlists from JSON files. Tracks of unknown types are dropped
with a warning; a playlist whose id is already in the library is rejected.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}

				p, err := a.lib.Import(data)
				if err != nil {
					return fmt.Errorf("failed to import %s: %w", path, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s (%s) with %d tracks\n", p.Name, p.ID, p.Len())
			}
			return nil
		},
	}
}

func newExportCommand(a *app) *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "export <playlist>",
		Short: "Export a playlist as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.lib.Resolve(args[0])
			if err != nil {
				return err
			}

			data, err := a.lib.Export(p.ID)
			if err != nil {
				return err
			}

			if outFile == "" {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			if err := os.WriteFile(outFile, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", outFile, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s\n", p.Name, outFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "output", "o", "", "write to a file instead of stdout")
	return cmd
}
