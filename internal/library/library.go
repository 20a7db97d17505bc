package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"mixtape/internal/cache"
	"mixtape/internal/config"
	"mixtape/internal/database"
	"mixtape/internal/playlist"

	"github.com/sirupsen/logrus"
)

var (
	ErrPlaylistExists   = errors.New("playlist already exists")
	ErrPlaylistNotFound = database.ErrPlaylistNotFound
)

const searchCacheTTL = 5 * time.Minute

type entry struct {
	playlist     *playlist.Playlist
	subscription playlist.SubscriptionID
}

// Library owns a set of playlists and saves each one to the database
// whenever it emits tracksUpdated. The playlist map is guarded by a mutex;
// individual playlists still expect a single writer.
type Library struct {
	db     *database.Database
	cfg    config.LibraryConfig
	logger *logrus.Logger
	search *cache.SearchCache

	mutex     sync.RWMutex
	playlists map[string]*entry

	// serializes lookups that may add or replace a playlist
	writeMutex sync.Mutex
}

// Open loads every stored playlist and wires autosave on each of them
func Open(db *database.Database, cfg config.LibraryConfig, logger *logrus.Logger) (*Library, error) {
	if logger == nil {
		logger = logrus.New()
	}

	l := &Library{
		db:        db,
		cfg:       cfg,
		logger:    logger,
		search:    cache.NewSearchCache(searchCacheTTL),
		playlists: make(map[string]*entry),
	}

	summaries, err := db.GetAllPlaylists()
	if err != nil {
		l.search.Close()
		return nil, fmt.Errorf("failed to list stored playlists: %w", err)
	}

	for _, s := range summaries {
		p, err := db.GetPlaylist(s.ID)
		if err != nil {
			l.search.Close()
			return nil, fmt.Errorf("failed to load playlist %s: %w", s.ID, err)
		}
		l.attach(p)
	}

	logger.WithField("playlists", len(summaries)).Debug("Library opened")
	return l, nil
}

// Close releases the library's background resources. The database is
// owned by the caller and stays open.
func (l *Library) Close() {
	l.search.Close()
}

// attach registers p and subscribes the autosave handler. Callers must
// not hold the mutex when p can emit events.
func (l *Library) attach(p *playlist.Playlist) {
	id := p.Subscribe(playlist.EventTracksUpdated, func() {
		l.search.Clear()
		if err := l.db.SavePlaylist(p); err != nil {
			l.logger.WithError(err).WithField("playlist", p.ID).Error("Failed to autosave playlist")
		}
	})

	l.mutex.Lock()
	l.playlists[p.ID] = &entry{playlist: p, subscription: id}
	l.mutex.Unlock()
}

func (l *Library) detach(id string) (*playlist.Playlist, bool) {
	l.mutex.Lock()
	e, ok := l.playlists[id]
	if ok {
		delete(l.playlists, id)
	}
	l.mutex.Unlock()

	if !ok {
		return nil, false
	}
	e.playlist.Unsubscribe(e.subscription)
	return e.playlist, true
}

func (l *Library) exists(id string) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	_, ok := l.playlists[id]
	return ok
}

// Create makes a new empty playlist, applying the configured defaults,
// and stores it right away
func (l *Library) Create(opts playlist.Options) (*playlist.Playlist, error) {
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()

	return l.create(opts)
}

func (l *Library) create(opts playlist.Options) (*playlist.Playlist, error) {
	if opts.Name == "" {
		opts.Name = l.cfg.DefaultName
	}
	if opts.Type == "" {
		opts.Type = l.cfg.DefaultType
	}
	if opts.Logger == nil {
		opts.Logger = l.logger
	}

	p := playlist.New(opts)
	if l.exists(p.ID) {
		return nil, fmt.Errorf("%w: %s", ErrPlaylistExists, p.ID)
	}

	if err := l.db.SavePlaylist(p); err != nil {
		return nil, fmt.Errorf("failed to save playlist: %w", err)
	}
	l.attach(p)

	l.logger.WithFields(logrus.Fields{
		"playlist": p.ID,
		"name":     p.Name,
	}).Info("Created playlist")
	return p, nil
}

// Get returns the playlist with the given id
func (l *Library) Get(id string) (*playlist.Playlist, error) {
	l.mutex.RLock()
	defer l.mutex.RUnlock()

	e, ok := l.playlists[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPlaylistNotFound, id)
	}
	return e.playlist, nil
}

// GetByName returns the first playlist, in List order, with the given name
func (l *Library) GetByName(name string) (*playlist.Playlist, bool) {
	for _, p := range l.List() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Resolve looks a playlist up by id, then by name
func (l *Library) Resolve(ref string) (*playlist.Playlist, error) {
	if p, err := l.Get(ref); err == nil {
		return p, nil
	}
	if p, ok := l.GetByName(ref); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrPlaylistNotFound, ref)
}

// EnsurePlaylist returns the playlist called name, creating it if needed
func (l *Library) EnsurePlaylist(name string) (*playlist.Playlist, error) {
	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()

	if p, ok := l.GetByName(name); ok {
		return p, nil
	}
	return l.create(playlist.Options{Name: name})
}

// List returns all playlists sorted by name, then id
func (l *Library) List() []*playlist.Playlist {
	l.mutex.RLock()
	result := make([]*playlist.Playlist, 0, len(l.playlists))
	for _, e := range l.playlists {
		result = append(result, e.playlist)
	}
	l.mutex.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if result[i].Name != result[j].Name {
			return result[i].Name < result[j].Name
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// Delete removes a playlist from the library and the database
func (l *Library) Delete(id string) error {
	if _, ok := l.detach(id); !ok {
		return fmt.Errorf("%w: %s", ErrPlaylistNotFound, id)
	}
	l.search.Clear()

	if err := l.db.DeletePlaylist(id); err != nil && !errors.Is(err, database.ErrPlaylistNotFound) {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}

	l.logger.WithField("playlist", id).Info("Deleted playlist")
	return nil
}

// Save writes the current state of a playlist, e.g. after renaming it
func (l *Library) Save(id string) error {
	p, err := l.Get(id)
	if err != nil {
		return err
	}
	l.search.Clear()
	return l.db.SavePlaylist(p)
}

// Import adds a serialized playlist. Tracks of unknown variants are
// dropped with a warning; an id already in the library is rejected.
func (l *Library) Import(data []byte) (*playlist.Playlist, error) {
	p, err := playlist.FromJSON(data, l.logger)
	if err != nil {
		return nil, err
	}

	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()

	if l.exists(p.ID) {
		return nil, fmt.Errorf("%w: %s", ErrPlaylistExists, p.ID)
	}

	if err := l.db.SavePlaylist(p); err != nil {
		return nil, fmt.Errorf("failed to save playlist: %w", err)
	}
	l.attach(p)
	l.search.Clear()

	l.logger.WithFields(logrus.Fields{
		"playlist": p.ID,
		"name":     p.Name,
		"tracks":   p.Len(),
	}).Info("Imported playlist")
	return p, nil
}

// Export serializes a playlist as indented JSON
func (l *Library) Export(id string) ([]byte, error) {
	p, err := l.Get(id)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(p, "", "  ")
}

// Revisions lists the stored snapshots of a playlist, newest first
func (l *Library) Revisions(id string) ([]database.Revision, error) {
	if !l.exists(id) {
		return nil, fmt.Errorf("%w: %s", ErrPlaylistNotFound, id)
	}
	return l.db.GetRevisions(id)
}

// Restore replaces a playlist with the state captured in a revision.
// Handlers subscribed to the old instance are not carried over. When the
// save fails the library keeps the current instance.
func (l *Library) Restore(revisionID string) (*playlist.Playlist, error) {
	rev, err := l.db.GetRevision(revisionID)
	if err != nil {
		return nil, err
	}

	p, err := playlist.FromJSON(rev.Snapshot, l.logger)
	if err != nil {
		return nil, err
	}

	l.writeMutex.Lock()
	defer l.writeMutex.Unlock()

	if err := l.db.SavePlaylist(p); err != nil {
		return nil, fmt.Errorf("failed to save restored playlist: %w", err)
	}
	l.detach(p.ID)
	l.attach(p)
	l.search.Clear()

	l.logger.WithFields(logrus.Fields{
		"playlist": p.ID,
		"revision": revisionID,
	}).Info("Restored playlist")
	return p, nil
}

// SearchTracks finds stored tracks whose artist or title contains query.
// Results are cached until any playlist in the library changes.
func (l *Library) SearchTracks(query string) ([]database.TrackHit, error) {
	if hits, ok := l.search.GetHits(query); ok {
		return hits, nil
	}

	hits, err := l.db.SearchTracks(query)
	if err != nil {
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}
	l.search.SetHits(query, hits)
	return hits, nil
}
