package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"mixtape/internal/playlist"
	"mixtape/pkg/models"

	"github.com/sirupsen/logrus"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"), 2, logger)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestPlaylist() *playlist.Playlist {
	p := playlist.New(playlist.Options{ID: "abc123", PlatformID: "PL1", Name: "Road trip", Type: "normal"})
	p.AddTracks([]models.Track{
		&models.BaseTrack{Title: "Local", Artist: "Me", Duration: 120, FilePath: "/music/a.mp3"},
		&models.YoutubeTrack{BaseTrack: models.BaseTrack{Title: "Clip", Artist: "Band"}, VideoID: "yt1"},
		&models.VimeoTrack{BaseTrack: models.BaseTrack{Title: "Live", Artist: "Band"}, VideoID: "42"},
	})
	return p
}

func TestDatabase(t *testing.T) {
	db := newTestDatabase(t)
	p := newTestPlaylist()

	t.Run("SaveAndGetPlaylist", func(t *testing.T) {
		if err := db.SavePlaylist(p); err != nil {
			t.Fatalf("Failed to save playlist: %v", err)
		}

		loaded, err := db.GetPlaylist("abc123")
		if err != nil {
			t.Fatalf("Failed to get playlist: %v", err)
		}

		want, got := p.ToRecord(), loaded.ToRecord()
		if got.ID != want.ID || got.PlatformID != want.PlatformID || got.Name != want.Name || got.Type != want.Type {
			t.Errorf("Expected %+v, got %+v", want, got)
		}
		if len(got.Tracks) != 3 {
			t.Fatalf("Expected 3 tracks, got %d", len(got.Tracks))
		}
		for i := range want.Tracks {
			if got.Tracks[i] != want.Tracks[i] {
				t.Errorf("tracks[%d] = %+v, want %+v", i, got.Tracks[i], want.Tracks[i])
			}
		}
	})

	t.Run("SaveReplacesTracks", func(t *testing.T) {
		first := p.Tracks()[0]
		if err := p.RemoveTrack(first); err != nil {
			t.Fatalf("Failed to remove track: %v", err)
		}
		p.Name = "Renamed"
		if err := db.SavePlaylist(p); err != nil {
			t.Fatalf("Failed to save playlist: %v", err)
		}

		rec, err := db.GetPlaylistRecord("abc123")
		if err != nil {
			t.Fatalf("Failed to get playlist record: %v", err)
		}
		if rec.Name != "Renamed" {
			t.Errorf("Expected name Renamed, got %s", rec.Name)
		}
		if len(rec.Tracks) != 2 || rec.Tracks[0].Title != "Clip" {
			t.Errorf("Expected [Clip Live], got %+v", rec.Tracks)
		}
	})

	t.Run("GetAllPlaylists", func(t *testing.T) {
		empty := playlist.New(playlist.Options{ID: "zzz999", Name: "Empty"})
		if err := db.SavePlaylist(empty); err != nil {
			t.Fatalf("Failed to save playlist: %v", err)
		}

		summaries, err := db.GetAllPlaylists()
		if err != nil {
			t.Fatalf("Failed to get all playlists: %v", err)
		}
		if len(summaries) != 2 {
			t.Fatalf("Expected 2 playlists, got %d", len(summaries))
		}

		counts := map[string]int{}
		for _, s := range summaries {
			counts[s.ID] = s.TrackCount
			if s.UpdatedAt.IsZero() {
				t.Errorf("Expected updated_at for %s", s.ID)
			}
		}
		if counts["abc123"] != 2 || counts["zzz999"] != 0 {
			t.Errorf("Unexpected track counts %v", counts)
		}
	})

	t.Run("Revisions", func(t *testing.T) {
		revisions, err := db.GetRevisions("abc123")
		if err != nil {
			t.Fatalf("Failed to get revisions: %v", err)
		}
		if len(revisions) != 2 {
			t.Fatalf("Expected 2 revisions, got %d", len(revisions))
		}
		if revisions[0].TrackCount != 2 || revisions[1].TrackCount != 3 {
			t.Errorf("Expected newest revision first, got counts %d, %d", revisions[0].TrackCount, revisions[1].TrackCount)
		}

		rev, err := db.GetRevision(revisions[1].ID)
		if err != nil {
			t.Fatalf("Failed to get revision: %v", err)
		}
		var rec playlist.Record
		if err := json.Unmarshal(rev.Snapshot, &rec); err != nil {
			t.Fatalf("Failed to decode snapshot: %v", err)
		}
		if rec.Name != "Road trip" || len(rec.Tracks) != 3 {
			t.Errorf("Unexpected snapshot %+v", rec)
		}

		if _, err := db.GetRevision("missing"); !errors.Is(err, ErrRevisionNotFound) {
			t.Errorf("Expected ErrRevisionNotFound, got %v", err)
		}
	})

	t.Run("SearchTracks", func(t *testing.T) {
		hits, err := db.SearchTracks("band")
		if err != nil {
			t.Fatalf("Failed to search tracks: %v", err)
		}
		if len(hits) != 2 {
			t.Fatalf("Expected 2 hits, got %d", len(hits))
		}
		if hits[0].PlaylistID != "abc123" || hits[0].Position != 0 || hits[0].Track.VideoID != "yt1" {
			t.Errorf("Unexpected first hit %+v", hits[0])
		}
	})

	t.Run("DeletePlaylist", func(t *testing.T) {
		if err := db.DeletePlaylist("abc123"); err != nil {
			t.Fatalf("Failed to delete playlist: %v", err)
		}
		if _, err := db.GetPlaylist("abc123"); !errors.Is(err, ErrPlaylistNotFound) {
			t.Errorf("Expected ErrPlaylistNotFound, got %v", err)
		}
		revisions, err := db.GetRevisions("abc123")
		if err != nil {
			t.Fatalf("Failed to get revisions: %v", err)
		}
		if len(revisions) != 0 {
			t.Errorf("Expected revisions to be deleted, got %d", len(revisions))
		}
		if err := db.DeletePlaylist("abc123"); !errors.Is(err, ErrPlaylistNotFound) {
			t.Errorf("Expected ErrPlaylistNotFound on second delete, got %v", err)
		}
	})
}

func TestDatabaseReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	db, err := NewDatabase(dbPath, 1, nil)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	if err := db.SavePlaylist(newTestPlaylist()); err != nil {
		t.Fatalf("Failed to save playlist: %v", err)
	}
	db.Close()

	// migrations must be idempotent
	db, err = NewDatabase(dbPath, 1, nil)
	if err != nil {
		t.Fatalf("Failed to reopen database: %v", err)
	}
	defer db.Close()

	loaded, err := db.GetPlaylist("abc123")
	if err != nil {
		t.Fatalf("Failed to get playlist after reopen: %v", err)
	}
	if loaded.Len() != 3 {
		t.Errorf("Expected 3 tracks after reopen, got %d", loaded.Len())
	}
}

func TestNewDatabaseFailsOnIncompatibleSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	legacy, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to open legacy database: %v", err)
	}
	// playlist_tracks predates the track_type and record columns
	if _, err := legacy.Exec(`CREATE TABLE playlist_tracks (
		playlist_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		artist TEXT NOT NULL,
		title TEXT NOT NULL,
		PRIMARY KEY (playlist_id, position)
	)`); err != nil {
		t.Fatalf("Failed to create legacy table: %v", err)
	}
	legacy.Close()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := NewDatabase(dbPath, 1, logger)
	if err == nil {
		db.Close()
		t.Fatal("Expected NewDatabase to fail on an incompatible schema")
	}
	if !strings.Contains(err.Error(), "failed to prepare statements") {
		t.Errorf("Expected a prepare failure, got %v", err)
	}

	// the file is released and usable again once the table is fixed
	legacy, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen legacy database: %v", err)
	}
	defer legacy.Close()
	if _, err := legacy.Exec("DROP TABLE playlist_tracks"); err != nil {
		t.Fatalf("Failed to drop legacy table: %v", err)
	}

	db, err = NewDatabase(dbPath, 1, logger)
	if err != nil {
		t.Fatalf("Failed to open repaired database: %v", err)
	}
	db.Close()
}
