package cli

import (
	"github.com/spf13/cobra"
)

func newSearchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search tracks by artist or title across playlists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hits, err := a.lib.SearchTracks(args[0])
			if err != nil {
				return err
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), hits)
			}

			t := newTable(cmd.OutOrStdout(), "PLAYLIST", "#", "TYPE", "ARTIST", "TITLE")
			for _, hit := range hits {
				t.row(hit.PlaylistID, hit.Position+1, hit.Track.TrackType, hit.Track.Artist, hit.Track.Title)
			}
			return t.flush()
		},
	}
}
