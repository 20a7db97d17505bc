package cli

import (
	"context"
	"fmt"

	"mixtape/internal/config"
	"mixtape/internal/database"
	"mixtape/internal/library"
	"mixtape/internal/logging"
	"mixtape/internal/metadata"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "./mixtape.toml"

// app holds what a command needs once the config is loaded
type app struct {
	cfgFile string
	jsonOut bool

	cfg       *config.Config
	logger    *logrus.Logger
	db        *database.Database
	lib       *library.Library
	extractor *metadata.Extractor
}

// open loads the configuration and opens the library
func (a *app) open() error {
	cfg, err := config.LoadConfig(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	a.logger = logger

	db, err := database.NewDatabase(cfg.Database.Path, cfg.Database.MaxConnections, logger)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.db = db

	lib, err := library.Open(db, cfg.Library, logger)
	if err != nil {
		return fmt.Errorf("failed to open library: %w", err)
	}
	a.lib = lib

	a.extractor = metadata.NewExtractor(cfg.Metadata, logger)
	return nil
}

func (a *app) close() {
	if a.lib != nil {
		a.lib.Close()
		a.lib = nil
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.WithError(err).Error("Failed to close database")
		}
		a.db = nil
	}
}

func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "mixtape",
		Short: "Manage playlists of local files and online videos",
		Long: `Mixtape keeps playlists of local audio files, YouTube and Vimeo videos
in a SQLite library, with import/export as JSON and a watched inbox folder.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", defaultConfigPath, "config file")
	root.PersistentFlags().BoolVarP(&a.jsonOut, "json", "j", false, "output as JSON")

	root.AddCommand(
		newCreateCommand(a),
		newListCommand(a),
		newShowCommand(a),
		newDeleteCommand(a),
		newAddCommand(a),
		newAddFileCommand(a),
		newRemoveCommand(a),
		newImportCommand(a),
		newExportCommand(a),
		newHistoryCommand(a),
		newRestoreCommand(a),
		newSearchCommand(a),
		newWatchCommand(a),
	)

	return root, a
}

// Execute runs the root command with the given context
func Execute(ctx context.Context) error {
	root, a := newRootCommand()
	defer a.close()

	return root.ExecuteContext(ctx)
}
