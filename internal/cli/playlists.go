package cli

import (
	"fmt"

	"mixtape/internal/playlist"

	"github.com/spf13/cobra"
)

func newCreateCommand(a *app) *cobra.Command {
	var opts playlist.Options

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Name = args[0]
			p, err := a.lib.Create(opts)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created playlist %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "playlist id (generated when empty)")
	cmd.Flags().StringVar(&opts.PlatformID, "platform-id", "", "id of the playlist on its source platform")
	cmd.Flags().StringVarP(&opts.Type, "type", "t", "", "playlist type (default from config)")
	return cmd
}

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List playlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			playlists := a.lib.List()

			if a.jsonOut {
				records := make([]playlist.Record, len(playlists))
				for i, p := range playlists {
					records[i] = p.ToRecord()
				}
				return writeJSON(cmd.OutOrStdout(), records)
			}

			if len(playlists) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No playlists")
				return nil
			}

			t := newTable(cmd.OutOrStdout(), "ID", "NAME", "TYPE", "TRACKS")
			for _, p := range playlists {
				t.row(p.ID, p.Name, p.Type, p.Len())
			}
			return t.flush()
		},
	}
}

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <playlist>",
		Short: "Show the tracks of a playlist",
		Long:  `Show the tracks of a playlist. The playlist can be given by id or name.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.lib.Resolve(args[0])
			if err != nil {
				return err
			}

			if a.jsonOut {
				return writeJSON(cmd.OutOrStdout(), p)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s, %s)\n", p.Name, p.ID, p.Type)
			if p.PlatformID != "" {
				fmt.Fprintf(out, "Platform ID: %s\n", p.PlatformID)
			}
			if p.Len() == 0 {
				fmt.Fprintln(out, "No tracks")
				return nil
			}

			t := newTable(out, "#", "TYPE", "ARTIST", "TITLE", "DURATION", "SOURCE")
			for i, track := range p.Tracks() {
				rec := track.ToRecord()
				t.row(i+1, rec.TrackType, rec.Artist, rec.Title, formatDuration(rec.Duration), trackSource(track))
			}
			return t.flush()
		},
	}
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <playlist>",
		Short: "Delete a playlist and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.lib.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := a.lib.Delete(p.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted playlist %s (%s)\n", p.Name, p.ID)
			return nil
		},
	}
}
