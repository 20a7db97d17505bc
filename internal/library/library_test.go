package library

import (
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"mixtape/internal/config"
	"mixtape/internal/database"
	"mixtape/internal/playlist"
	"mixtape/pkg/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

func newTestLibrary(t *testing.T, dbPath string) (*Library, *database.Database) {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	db, err := database.NewDatabase(dbPath, 2, logger)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	lib, err := Open(db, config.DefaultConfig().Library, logger)
	if err != nil {
		db.Close()
		t.Fatalf("Failed to open library: %v", err)
	}

	t.Cleanup(func() {
		lib.Close()
		db.Close()
	})
	return lib, db
}

func TestAutosaveOnTracksUpdated(t *testing.T) {
	lib, db := newTestLibrary(t, filepath.Join(t.TempDir(), "lib.db"))

	p, err := lib.Create(playlist.Options{ID: "c0ffee", Name: "Morning"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	track := &models.YoutubeTrack{BaseTrack: models.BaseTrack{Title: "Sunrise", Artist: "Norah Jones"}, VideoID: "abc"}
	if err := p.AddTrack(track); err != nil {
		t.Fatalf("AddTrack() error = %v", err)
	}

	stored, err := db.GetPlaylist("c0ffee")
	if err != nil {
		t.Fatalf("GetPlaylist() error = %v", err)
	}
	if stored.Len() != 1 {
		t.Fatalf("Expected autosaved playlist with 1 track, got %d", stored.Len())
	}

	// suppressed notifications do not reach the store
	p.AddTrack(&models.BaseTrack{Title: "Quiet", Artist: "Nobody"}, playlist.SuppressNotification())
	stored, _ = db.GetPlaylist("c0ffee")
	if stored.Len() != 1 {
		t.Errorf("Expected suppressed add to skip autosave, got %d tracks", stored.Len())
	}

	if err := p.RemoveTrack(track); err != nil {
		t.Fatalf("RemoveTrack() error = %v", err)
	}
	stored, _ = db.GetPlaylist("c0ffee")
	if stored.Len() != 1 || stored.Tracks()[0].GetTitle() != "Quiet" {
		t.Errorf("Expected only the quiet track after removal, got %v", stored.ToRecord().Tracks)
	}

	revisions, err := lib.Revisions("c0ffee")
	if err != nil {
		t.Fatalf("Revisions() error = %v", err)
	}
	if len(revisions) != 3 {
		t.Errorf("Expected 3 revisions (create, add, remove), got %d", len(revisions))
	}
}

func TestOpenLoadsStoredPlaylists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lib.db")

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	db, err := database.NewDatabase(dbPath, 1, logger)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	lib, err := Open(db, config.DefaultConfig().Library, logger)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	p, _ := lib.Create(playlist.Options{ID: "aaaaaa", Name: "Saved"})
	p.AddTracks([]models.Track{
		&models.BaseTrack{Title: "1", Artist: "A"},
		&models.BaseTrack{Title: "2", Artist: "A"},
	})
	lib.Close()
	db.Close()

	reopened, _ := newTestLibrary(t, dbPath)
	loaded, err := reopened.Get("aaaaaa")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if loaded.Len() != 2 || loaded.Tracks()[0].GetTitle() != "1" {
		t.Errorf("Unexpected reloaded tracks %v", loaded.ToRecord().Tracks)
	}

	// reloaded playlists are wired for autosave too
	loaded.AddTrack(&models.BaseTrack{Title: "3", Artist: "A"})
	hits, err := reopened.SearchTracks("3")
	if err != nil {
		t.Fatalf("SearchTracks() error = %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("Expected the new track to be stored, got %d hits", len(hits))
	}
}

func TestCreateDefaultsAndDuplicates(t *testing.T) {
	lib, _ := newTestLibrary(t, filepath.Join(t.TempDir(), "lib.db"))

	p, err := lib.Create(playlist.Options{})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p.Name != "playlist" || p.Type != "normal" {
		t.Errorf("Expected configured defaults, got name=%q type=%q", p.Name, p.Type)
	}

	if _, err := lib.Create(playlist.Options{ID: p.ID}); !errors.Is(err, ErrPlaylistExists) {
		t.Errorf("Expected ErrPlaylistExists, got %v", err)
	}
}

func TestImportExport(t *testing.T) {
	lib, _ := newTestLibrary(t, filepath.Join(t.TempDir(), "lib.db"))

	data := []byte(`{"id":"beef01","platformId":"PL9","name":"Imported","type":"normal","tracks":[
		{"trackType":"VimeoTrack","title":"Film","artist":"Studio","videoId":"7"},
		{"trackType":"MixcloudTrack","title":"Set","artist":"DJ"}
	]}`)

	p, err := lib.Import(data)
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if p.Len() != 1 {
		t.Errorf("Expected unknown variant to be dropped, got %d tracks", p.Len())
	}

	if _, err := lib.Import(data); !errors.Is(err, ErrPlaylistExists) {
		t.Errorf("Expected ErrPlaylistExists on re-import, got %v", err)
	}

	exported, err := lib.Export("beef01")
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	restored, err := playlist.FromJSON(exported, nil)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	if restored.PlatformID != "PL9" || restored.Len() != 1 {
		t.Errorf("Unexpected exported playlist %+v", restored.ToRecord())
	}

	if _, err := lib.Export("nope"); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("Expected ErrPlaylistNotFound, got %v", err)
	}
}

func TestResolveAndDelete(t *testing.T) {
	lib, db := newTestLibrary(t, filepath.Join(t.TempDir(), "lib.db"))

	p, _ := lib.Create(playlist.Options{ID: "111111", Name: "Gym"})

	if got, err := lib.Resolve("Gym"); err != nil || got != p {
		t.Errorf("Resolve by name = %v, %v", got, err)
	}
	if got, err := lib.Resolve("111111"); err != nil || got != p {
		t.Errorf("Resolve by id = %v, %v", got, err)
	}

	inbox, err := lib.EnsurePlaylist("Inbox")
	if err != nil {
		t.Fatalf("EnsurePlaylist() error = %v", err)
	}
	again, _ := lib.EnsurePlaylist("Inbox")
	if inbox != again {
		t.Error("Expected EnsurePlaylist to return the existing playlist")
	}
	if len(lib.List()) != 2 {
		t.Errorf("Expected 2 playlists, got %d", len(lib.List()))
	}

	if err := lib.Delete("111111"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := db.GetPlaylist("111111"); !errors.Is(err, database.ErrPlaylistNotFound) {
		t.Errorf("Expected playlist to be removed from the store, got %v", err)
	}
	if err := lib.Delete("111111"); !errors.Is(err, ErrPlaylistNotFound) {
		t.Errorf("Expected ErrPlaylistNotFound, got %v", err)
	}

	// a detached playlist no longer autosaves
	p.AddTrack(&models.BaseTrack{Title: "Orphan", Artist: "A"})
	if _, err := db.GetPlaylist("111111"); !errors.Is(err, database.ErrPlaylistNotFound) {
		t.Errorf("Expected detached playlist to stay deleted, got %v", err)
	}
}

func TestRestore(t *testing.T) {
	lib, _ := newTestLibrary(t, filepath.Join(t.TempDir(), "lib.db"))

	p, _ := lib.Create(playlist.Options{ID: "222222", Name: "Undo"})
	first := &models.BaseTrack{Title: "Keep", Artist: "A"}
	p.AddTrack(first)
	p.AddTrack(&models.BaseTrack{Title: "Oops", Artist: "A"})

	revisions, _ := lib.Revisions("222222")
	if len(revisions) != 3 {
		t.Fatalf("Expected 3 revisions, got %d", len(revisions))
	}

	restored, err := lib.Restore(revisions[1].ID)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.Len() != 1 || restored.Tracks()[0].GetTitle() != "Keep" {
		t.Errorf("Unexpected restored tracks %v", restored.ToRecord().Tracks)
	}

	current, _ := lib.Get("222222")
	if current != restored {
		t.Error("Expected library to hold the restored instance")
	}

	if _, err := lib.Restore("missing"); !errors.Is(err, database.ErrRevisionNotFound) {
		t.Errorf("Expected ErrRevisionNotFound, got %v", err)
	}
}

func TestSearchCacheInvalidation(t *testing.T) {
	lib, _ := newTestLibrary(t, filepath.Join(t.TempDir(), "lib.db"))

	p, _ := lib.Create(playlist.Options{ID: "333333"})
	p.AddTrack(&models.BaseTrack{Title: "Blue Monday", Artist: "New Order"})

	hits, _ := lib.SearchTracks("Order")
	if len(hits) != 1 {
		t.Fatalf("Expected 1 hit, got %d", len(hits))
	}

	p.AddTrack(&models.BaseTrack{Title: "Temptation", Artist: "New Order"})
	hits, _ = lib.SearchTracks("Order")
	if len(hits) != 2 {
		t.Errorf("Expected cache to be invalidated after an update, got %d hits", len(hits))
	}
}

func TestRestoreKeepsPlaylistWhenSaveFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "lib.db")
	lib, db := newTestLibrary(t, dbPath)

	p, _ := lib.Create(playlist.Options{ID: "aaa111", Name: "Fragile"})
	p.AddTrack(&models.BaseTrack{Title: "One", Artist: "A"})

	revisions, err := lib.Revisions("aaa111")
	if err != nil || len(revisions) != 2 {
		t.Fatalf("Expected 2 revisions, got %d (%v)", len(revisions), err)
	}

	raw, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to open raw connection: %v", err)
	}
	defer raw.Close()

	if _, err := raw.Exec(`CREATE TRIGGER fail_revisions BEFORE INSERT ON playlist_revisions
		BEGIN SELECT RAISE(ABORT, 'disk full'); END;`); err != nil {
		t.Fatalf("Failed to create trigger: %v", err)
	}

	if _, err := lib.Restore(revisions[1].ID); err == nil {
		t.Fatal("Expected Restore to fail")
	}

	current, err := lib.Get("aaa111")
	if err != nil {
		t.Fatalf("Expected playlist to stay in the library, got %v", err)
	}
	if current != p {
		t.Error("Expected the original instance to be kept")
	}

	if _, err := raw.Exec("DROP TRIGGER fail_revisions"); err != nil {
		t.Fatalf("Failed to drop trigger: %v", err)
	}

	// the kept instance still autosaves
	p.AddTrack(&models.BaseTrack{Title: "Two", Artist: "A"})
	stored, err := db.GetPlaylist("aaa111")
	if err != nil {
		t.Fatalf("GetPlaylist() error = %v", err)
	}
	if stored.Len() != 2 {
		t.Errorf("Expected 2 stored tracks, got %d", stored.Len())
	}
}

func TestEnsurePlaylistConcurrent(t *testing.T) {
	lib, _ := newTestLibrary(t, filepath.Join(t.TempDir(), "lib.db"))

	var wg sync.WaitGroup
	results := make([]*playlist.Playlist, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := lib.EnsurePlaylist("Inbox")
			if err != nil {
				t.Errorf("EnsurePlaylist() error = %v", err)
				return
			}
			results[i] = p
		}(i)
	}
	wg.Wait()

	for i, p := range results {
		if p != results[0] {
			t.Errorf("results[%d] is a different playlist", i)
		}
	}
	if len(lib.List()) != 1 {
		t.Errorf("Expected a single Inbox playlist, got %d playlists", len(lib.List()))
	}
}
