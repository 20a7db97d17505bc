package playlist

import (
	"crypto/rand"
	"encoding/hex"
	"slices"

	"mixtape/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	DefaultName = "playlist"
	DefaultType = "normal"
)

// Options configures a new Playlist. Zero values select the defaults.
type Options struct {
	ID         string
	PlatformID string
	Name       string
	Type       string
	Tracks     []models.Track
	Logger     logrus.FieldLogger
}

// Playlist is an ordered collection of tracks with no two tracks sharing
// the same (artist, title) pair. It is not safe for concurrent mutation.
type Playlist struct {
	ID         string
	PlatformID string
	Name       string
	Type       string

	tracks []models.Track
	logger logrus.FieldLogger

	listeners      []listener
	nextListenerID SubscriptionID
}

// New creates a playlist, generating an id when none is given. Nil
// entries in opts.Tracks are dropped.
func New(opts Options) *Playlist {
	p := &Playlist{
		ID:         opts.ID,
		PlatformID: opts.PlatformID,
		Name:       opts.Name,
		Type:       opts.Type,
		tracks:     slices.DeleteFunc(slices.Clone(opts.Tracks), isNilTrack),
		logger:     opts.Logger,
	}

	if p.ID == "" {
		p.ID = GenerateID()
	}
	if p.Name == "" {
		p.Name = DefaultName
	}
	if p.Type == "" {
		p.Type = DefaultType
	}
	if p.tracks == nil {
		p.tracks = make([]models.Track, 0)
	}
	if p.logger == nil {
		p.logger = logrus.StandardLogger()
	}

	return p
}

func isNilTrack(t models.Track) bool {
	return t == nil
}

// GenerateID returns a random 6 character hex id. Collisions are unlikely
// but possible; callers needing strict uniqueness supply their own id.
func GenerateID() string {
	bytes := make([]byte, 3)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// AddOption tweaks a single AddTrack call
type AddOption func(*addConfig)

type addConfig struct {
	suppressNotification bool
}

// SuppressNotification skips the tracksUpdated event for this add
func SuppressNotification() AddOption {
	return func(c *addConfig) {
		c.suppressNotification = true
	}
}

// AddTrack appends track unless a track with the same artist and title is
// already present, in which case a *DuplicateTrackError is returned.
func (p *Playlist) AddTrack(track models.Track, opts ...AddOption) error {
	if track == nil {
		return ErrNilTrack
	}

	var cfg addConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	artist, title := track.GetArtist(), track.GetTitle()
	if p.FindTrackByArtistAndTitle(artist, title) != nil {
		return &DuplicateTrackError{Artist: artist, Title: title}
	}

	p.tracks = append(p.tracks, track)
	if !cfg.suppressNotification {
		p.emit(EventTracksUpdated)
	}
	return nil
}

// AddTracks attempts every track in order and emits a single
// tracksUpdated once all of them were added. Failures do not roll back
// the tracks that were added; they are returned as a *BatchError.
func (p *Playlist) AddTracks(tracks []models.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	var errs []error
	for _, track := range tracks {
		if err := p.AddTrack(track, SuppressNotification()); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return &BatchError{Attempted: len(tracks), Errors: errs}
	}

	p.emit(EventTracksUpdated)
	return nil
}

// RemoveTrack removes the given track instance
func (p *Playlist) RemoveTrack(track models.Track) error {
	index := p.FindTrackIndex(track)
	if index == -1 {
		return ErrTrackNotFound
	}

	removed := p.tracks[index]
	// slices.Delete zeroes the vacated tail slot
	p.tracks = slices.Delete(p.tracks, index, index+1)

	p.logger.WithFields(logrus.Fields{
		"playlist": p.ID,
		"artist":   removed.GetArtist(),
		"title":    removed.GetTitle(),
	}).Debug("Removed track")

	p.emit(EventTracksUpdated)
	return nil
}

// FindTrackIndex returns the position of track by identity, or -1
func (p *Playlist) FindTrackIndex(track models.Track) int {
	if track == nil {
		return -1
	}
	for i, t := range p.tracks {
		if t == track {
			return i
		}
	}
	return -1
}

// FindTrackByArtistAndTitle returns the first exact match, or nil
func (p *Playlist) FindTrackByArtistAndTitle(artist, title string) models.Track {
	for _, t := range p.tracks {
		if t.GetArtist() == artist && t.GetTitle() == title {
			return t
		}
	}
	return nil
}

// FindTracksByTitle returns every track with the given title, in order
func (p *Playlist) FindTracksByTitle(title string) []models.Track {
	matches := make([]models.Track, 0)
	for _, t := range p.tracks {
		if t.GetTitle() == title {
			matches = append(matches, t)
		}
	}
	return matches
}

// FindTracksByArtist returns every track by the given artist, in order
func (p *Playlist) FindTracksByArtist(artist string) []models.Track {
	matches := make([]models.Track, 0)
	for _, t := range p.tracks {
		if t.GetArtist() == artist {
			matches = append(matches, t)
		}
	}
	return matches
}

// IsSameWith compares playlists by id only
func (p *Playlist) IsSameWith(other *Playlist) bool {
	if other == nil {
		return false
	}
	return p.ID == other.ID
}

// Tracks returns a copy of the track list
func (p *Playlist) Tracks() []models.Track {
	result := make([]models.Track, len(p.tracks))
	copy(result, p.tracks)
	return result
}

// Len returns the number of tracks
func (p *Playlist) Len() int {
	return len(p.tracks)
}
