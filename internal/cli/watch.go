package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"mixtape/internal/watcher"

	"github.com/spf13/cobra"
)

var errWatcherDisabled = errors.New("inbox watcher is disabled; set [watcher] enabled = true or pass --dir")

func newWatchCommand(a *app) *cobra.Command {
	var scan bool
	var dir string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Import files dropped into the inbox directory",
		Long: `Watch the inbox directory until interrupted. JSON files are imported as
playlists and audio files are added to the inbox playlist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg.Watcher
			if dir != "" {
				cfg.InboxDir = dir
			} else if !cfg.Enabled {
				return errWatcherDisabled
			}

			w := watcher.New(cfg, a.cfg.Library.InboxPlaylist, a.lib, a.extractor, a.logger)
			if err := w.Start(); err != nil {
				return err
			}
			defer w.Stop()

			if scan {
				if err := w.ScanExisting(); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			<-ctx.Done()
			a.logger.Info("Received shutdown signal")
			return nil
		},
	}

	cmd.Flags().BoolVar(&scan, "scan", false, "import files already in the inbox first")
	cmd.Flags().StringVarP(&dir, "dir", "d", "", "inbox directory (default from config)")
	return cmd
}
