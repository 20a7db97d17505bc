package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history <playlist>",
		Short: "List saved revisions of a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.lib.Resolve(args[0])
			if err != nil {
				return err
			}

			revisions, err := a.lib.Revisions(p.ID)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), revisions)
			}

			t := newTable(cmd.OutOrStdout(), "REVISION", "SAVED", "TRACKS")
			for _, rev := range revisions {
				t.row(rev.ID, rev.CreatedAt.Local().Format("2006-01-02 15:04:05"), rev.TrackCount)
			}
			return t.flush()
		},
	}
}

func newRestoreCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <revision>",
		Short: "Restore a playlist to a saved revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.lib.Restore(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %s (%s) to %d tracks\n", p.Name, p.ID, p.Len())
			return nil
		},
	}
}
