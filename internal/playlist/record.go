package playlist

import (
	"encoding/json"
	"fmt"

	"mixtape/pkg/models"

	"github.com/sirupsen/logrus"
)

// Record is the serialized form of a Playlist
type Record struct {
	ID         string               `json:"id"`
	PlatformID string               `json:"platformId"`
	Name       string               `json:"name"`
	Type       string               `json:"type"`
	Tracks     []models.TrackRecord `json:"tracks"`
}

// UnmarshalJSON also accepts exports that store tracks under "_tracks"
func (r *Record) UnmarshalJSON(data []byte) error {
	type Alias Record
	aux := &struct {
		*Alias
		LegacyTracks []models.TrackRecord `json:"_tracks"`
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}
	if r.Tracks == nil && aux.LegacyTracks != nil {
		r.Tracks = aux.LegacyTracks
	}
	return nil
}

// ToRecord serializes the playlist and its tracks, preserving order
func (p *Playlist) ToRecord() Record {
	tracks := make([]models.TrackRecord, 0, len(p.tracks))
	for _, t := range p.tracks {
		tracks = append(tracks, t.ToRecord())
	}

	return Record{
		ID:         p.ID,
		PlatformID: p.PlatformID,
		Name:       p.Name,
		Type:       p.Type,
		Tracks:     tracks,
	}
}

func (p *Playlist) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ToRecord())
}

// FromRecord rebuilds a playlist. Tracks of an unknown variant are logged
// and dropped; duplicate (artist, title) pairs are not re-checked.
func FromRecord(rec Record, logger logrus.FieldLogger) *Playlist {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	tracks := make([]models.Track, 0, len(rec.Tracks))
	for i, raw := range rec.Tracks {
		ctor, ok := models.LookupTrackConstructor(raw.TrackType)
		if !ok {
			logger.WithFields(logrus.Fields{
				"playlist":  rec.ID,
				"position":  i,
				"trackType": raw.TrackType,
				"title":     raw.Title,
			}).Warn("This track may lose data, dropping it")
			continue
		}
		tracks = append(tracks, ctor(raw))
	}

	return New(Options{
		ID:         rec.ID,
		PlatformID: rec.PlatformID,
		Name:       rec.Name,
		Type:       rec.Type,
		Tracks:     tracks,
		Logger:     logger,
	})
}

// FromJSON decodes a serialized playlist, see FromRecord
func FromJSON(data []byte, logger logrus.FieldLogger) (*Playlist, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode playlist: %w", err)
	}
	return FromRecord(rec, logger), nil
}
