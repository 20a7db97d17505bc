package cli

import (
	"errors"
	"fmt"

	"mixtape/internal/playlist"
	"mixtape/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newAddCommand(a *app) *cobra.Command {
	var rec models.TrackRecord
	var youtubeID, vimeoID string

	cmd := &cobra.Command{
		Use:   "add <playlist>",
		Short: "Add a track to a playlist",
		Long: `Add a track to a playlist. Without --youtube or --vimeo the track is a
plain track, optionally pointing at a local file.

Examples:
  mixtape add "Road trip" --artist "Daft Punk" --title "Contact" --youtube 8pLV4JqjOYs
  mixtape add Gym --artist Burial --title Archangel --vimeo 76979871 --owner Hyperdub`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.lib.Resolve(args[0])
			if err != nil {
				return err
			}

			rec.TrackType = models.TrackTypeBase
			switch {
			case youtubeID != "":
				rec.TrackType = models.TrackTypeYoutube
				rec.VideoID = youtubeID
			case vimeoID != "":
				rec.TrackType = models.TrackTypeVimeo
				rec.VideoID = vimeoID
			}

			track, err := models.NewTrackFromRecord(rec)
			if err != nil {
				return err
			}
			if err := p.AddTrack(track); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Added %q by %s to %s\n", rec.Title, rec.Artist, p.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&rec.Title, "title", "", "track title")
	cmd.Flags().StringVar(&rec.Artist, "artist", "", "track artist")
	cmd.Flags().StringVar(&rec.Album, "album", "", "album name")
	cmd.Flags().IntVar(&rec.Duration, "duration", 0, "duration in seconds")
	cmd.Flags().StringVar(&rec.FilePath, "file", "", "local file path")
	cmd.Flags().StringVar(&youtubeID, "youtube", "", "YouTube video id")
	cmd.Flags().StringVar(&rec.ChannelTitle, "channel", "", "YouTube channel title")
	cmd.Flags().StringVar(&rec.ThumbnailURL, "thumbnail", "", "thumbnail URL")
	cmd.Flags().StringVar(&vimeoID, "vimeo", "", "Vimeo video id")
	cmd.Flags().StringVar(&rec.OwnerName, "owner", "", "Vimeo owner name")

	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("artist")
	cmd.MarkFlagsMutuallyExclusive("youtube", "vimeo")
	return cmd
}

func newAddFileCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add-file <playlist> <file>...",
		Short: "Add local audio files to a playlist",
		Long: `Read tags and duration from audio files and add them to a playlist in one
batch. Files that cannot be read or duplicate an existing track are
reported; the others are still added.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.lib.Resolve(args[0])
			if err != nil {
				return err
			}

			tracks := make([]models.Track, 0, len(args)-1)
			for _, path := range args[1:] {
				if !a.extractor.IsAudioFile(path) {
					a.logger.WithField("file_path", path).Warn("Skipping unsupported file")
					continue
				}
				track, err := a.extractor.ExtractTrack(path)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", path, err)
				}
				tracks = append(tracks, track)
			}

			before := p.Len()
			err = p.AddTracks(tracks)
			added := p.Len() - before

			var batchErr *playlist.BatchError
			if errors.As(err, &batchErr) {
				for _, e := range batchErr.Errors {
					a.logger.WithError(e).Warn("Track not added")
				}
				if added > 0 {
					// partial batches do not notify
					if err := a.lib.Save(p.ID); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %d of %d tracks to %s\n", added, len(tracks), p.Name)
				return err
			}
			if err != nil {
				return err
			}

			a.logger.WithFields(logrus.Fields{
				"playlist": p.ID,
				"tracks":   added,
			}).Debug("Added files")
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d of %d tracks to %s\n", added, len(tracks), p.Name)
			return nil
		},
	}
}

func newRemoveCommand(a *app) *cobra.Command {
	var artist, title string

	cmd := &cobra.Command{
		Use:   "remove <playlist>",
		Short: "Remove a track from a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.lib.Resolve(args[0])
			if err != nil {
				return err
			}

			track := p.FindTrackByArtistAndTitle(artist, title)
			if track == nil {
				return fmt.Errorf("%w: %q by %s", playlist.ErrTrackNotFound, title, artist)
			}
			if err := p.RemoveTrack(track); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %q by %s from %s\n", title, artist, p.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "track title")
	cmd.Flags().StringVar(&artist, "artist", "", "track artist")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("artist")
	return cmd
}
