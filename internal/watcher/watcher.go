package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mixtape/internal/config"
	"mixtape/internal/library"
	"mixtape/internal/metadata"
	"mixtape/internal/playlist"
	"mixtape/pkg/models"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultSettleDelay is how long a file must stay quiet before it is read
const DefaultSettleDelay = 500 * time.Millisecond

// ErrNotRunning is returned by ScanExisting when the watcher is not started or already stopped
var ErrNotRunning = errors.New("inbox watcher is not running")

// Watcher imports files dropped into the inbox directory. Playlist JSON
// files become library playlists; audio files are appended to the inbox
// playlist. Events and scans are handled one at a time on a single goroutine.
type Watcher struct {
	dir           string
	inboxPlaylist string
	settleDelay   time.Duration

	lib       *library.Library
	extractor *metadata.Extractor
	logger    *logrus.Logger

	fsw     *fsnotify.Watcher
	pending map[string]time.Time
	scans   chan chan error
	started atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// New creates a watcher for cfg.InboxDir. Call Start to begin watching.
func New(cfg config.WatcherConfig, inboxPlaylist string, lib *library.Library, extractor *metadata.Extractor, logger *logrus.Logger) *Watcher {
	if logger == nil {
		logger = logrus.New()
	}

	return &Watcher{
		dir:           cfg.InboxDir,
		inboxPlaylist: inboxPlaylist,
		settleDelay:   DefaultSettleDelay,
		lib:           lib,
		extractor:     extractor,
		logger:        logger,
		pending:       make(map[string]time.Time),
		scans:         make(chan chan error),
		done:          make(chan struct{}),
	}
}

// Start creates the inbox directory if needed and begins watching it
func (w *Watcher) Start() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create inbox directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.fsw = fsw

	w.started.Store(true)
	w.wg.Add(1)
	go w.run()

	w.logger.WithField("inbox_dir", w.dir).Info("Inbox watcher started")
	return nil
}

// Stop ends the watch loop and waits for it to exit. Files still settling
// are not imported. Safe to call more than once.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		close(w.done)
		w.wg.Wait()
		if w.fsw != nil {
			w.fsw.Close()
		}
	})
}

// ScanExisting imports every file already present in the inbox directory.
// The scan runs on the watch goroutine, between events, and ScanExisting
// blocks until it is done.
func (w *Watcher) ScanExisting() error {
	if !w.started.Load() {
		return ErrNotRunning
	}

	reply := make(chan error, 1)
	select {
	case w.scans <- reply:
	case <-w.done:
		return ErrNotRunning
	}

	select {
	case err := <-reply:
		return err
	case <-w.done:
		return ErrNotRunning
	}
}

func (w *Watcher) scanDir() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.handleFile(filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

func (w *Watcher) run() {
	defer w.wg.Done()

	interval := w.settleDelay / 2
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("File watcher error")

		case reply := <-w.scans:
			reply <- w.scanDir()

		case now := <-ticker.C:
			w.flushSettled(now)
		}
	}
}

func ignored(path string) bool {
	name := filepath.Base(path)
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp")
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if ignored(event.Name) {
		return
	}

	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		// restart the settle timer on every write
		w.pending[event.Name] = time.Now()

	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(w.pending, event.Name)
		if w.extractor.IsAudioFile(event.Name) {
			w.handleRemovedFile(event.Name)
		}
	}
}

func (w *Watcher) flushSettled(now time.Time) {
	for path, last := range w.pending {
		if now.Sub(last) < w.settleDelay {
			continue
		}
		delete(w.pending, path)
		w.handleFile(path)
	}
}

func (w *Watcher) handleFile(path string) {
	if ignored(path) {
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	switch {
	case strings.EqualFold(filepath.Ext(path), ".json"):
		w.handlePlaylistFile(path)
	case w.extractor.IsAudioFile(path):
		w.handleAudioFile(path)
	default:
		w.logger.WithField("file_path", path).Debug("Ignoring unsupported inbox file")
	}
}

// handlePlaylistFile imports a serialized playlist into the library
func (w *Watcher) handlePlaylistFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		w.logger.WithError(err).WithField("file_path", path).Error("Failed to read playlist file")
		return
	}

	p, err := w.lib.Import(data)
	if errors.Is(err, library.ErrPlaylistExists) {
		w.logger.WithField("file_path", path).Info("Playlist already in library, skipping")
		return
	}
	if err != nil {
		w.logger.WithError(err).WithField("file_path", path).Error("Failed to import playlist file")
		return
	}

	w.logger.WithFields(logrus.Fields{
		"file_path": path,
		"playlist":  p.ID,
		"tracks":    p.Len(),
	}).Info("Imported playlist from inbox")
}

// handleAudioFile extracts metadata and appends the track to the inbox playlist
func (w *Watcher) handleAudioFile(path string) {
	w.logger.WithField("file_path", path).Info("New audio file detected")

	track, err := w.extractor.ExtractTrack(path)
	if err != nil {
		w.logger.WithError(err).WithField("file_path", path).Error("Error extracting metadata")
		return
	}

	inbox, err := w.lib.EnsurePlaylist(w.inboxPlaylist)
	if err != nil {
		w.logger.WithError(err).WithField("playlist", w.inboxPlaylist).Error("Failed to open inbox playlist")
		return
	}

	if err := inbox.AddTrack(track); err != nil {
		if errors.Is(err, playlist.ErrDuplicateTrack) {
			w.logger.WithFields(logrus.Fields{
				"file_path": path,
				"artist":    track.Artist,
				"title":     track.Title,
			}).Info("Track already in inbox playlist")
			return
		}
		w.logger.WithError(err).WithField("file_path", path).Error("Failed to add track")
		return
	}

	w.logger.WithFields(logrus.Fields{
		"artist":   track.Artist,
		"title":    track.Title,
		"album":    track.Album,
		"playlist": inbox.ID,
	}).Info("Added new track")
}

// handleRemovedFile drops inbox tracks that point at a deleted file
func (w *Watcher) handleRemovedFile(path string) {
	inbox, ok := w.lib.GetByName(w.inboxPlaylist)
	if !ok {
		return
	}

	for _, track := range inbox.Tracks() {
		local, ok := track.(*models.BaseTrack)
		if !ok || local.FilePath != path {
			continue
		}
		if err := inbox.RemoveTrack(track); err != nil {
			w.logger.WithError(err).WithField("file_path", path).Error("Failed to remove track")
			continue
		}
		w.logger.WithField("file_path", path).Info("Removed track for deleted file")
	}
}
