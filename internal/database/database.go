package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mixtape/internal/playlist"
	"mixtape/pkg/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// ErrPlaylistNotFound is returned when no stored playlist has the given id
var ErrPlaylistNotFound = errors.New("playlist not found")

// ErrRevisionNotFound is returned when no revision has the given id
var ErrRevisionNotFound = errors.New("revision not found")

// PlaylistSummary describes a stored playlist without loading its tracks
type PlaylistSummary struct {
	ID         string    `json:"id"`
	PlatformID string    `json:"platformId"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	TrackCount int       `json:"trackCount"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Revision is an immutable snapshot written every time a playlist is saved
type Revision struct {
	ID         string    `json:"id"`
	PlaylistID string    `json:"playlistId"`
	TrackCount int       `json:"trackCount"`
	CreatedAt  time.Time `json:"createdAt"`
	Snapshot   []byte    `json:"-"`
}

// TrackHit is a stored track matched by SearchTracks
type TrackHit struct {
	PlaylistID string             `json:"playlistId"`
	Position   int                `json:"position"`
	Track      models.TrackRecord `json:"track"`
}

// Database wraps a *sql.DB holding serialized playlists. It is safe for
// concurrent use because the underlying *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	upsertPlaylistStmt *sql.Stmt
	insertTrackStmt    *sql.Stmt
	insertRevisionStmt *sql.Stmt
	getPlaylistStmt    *sql.Stmt
	searchTracksStmt   *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures all required tables and indices exist. A nil logger gets a JSON
// logger of its own. Caller should Close() it when finished.
func NewDatabase(dbPath string, maxConns int, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if maxConns < 1 {
		maxConns = 1
	}

	conn, err := sql.Open("sqlite3", dbPath+"?mode=rwc&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=memory;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		// closes whatever was prepared before the failure
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Debug("Database initialized successfully")
	return db, nil
}

// createTables creates tables and indices if they do not already exist, then
// executes any migrations. This is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	playlistsTable := `
	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		platform_id TEXT NOT NULL DEFAULT '',
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	// record holds the full TrackRecord; artist and title are copied out for search
	playlistTracksTable := `
	CREATE TABLE IF NOT EXISTS playlist_tracks (
		playlist_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		track_type TEXT NOT NULL,
		artist TEXT NOT NULL,
		title TEXT NOT NULL,
		record TEXT NOT NULL,
		FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
		PRIMARY KEY (playlist_id, position)
	);`

	revisionsTable := `
	CREATE TABLE IF NOT EXISTS playlist_revisions (
		id TEXT PRIMARY KEY,
		playlist_id TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		track_count INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_playlist_tracks_search ON playlist_tracks(artist, title);",
		"CREATE INDEX IF NOT EXISTS idx_playlist_revisions_playlist ON playlist_revisions(playlist_id, created_at);",
	}

	for _, table := range []string{playlistsTable, playlistTracksTable, revisionsTable} {
		if _, err := db.conn.Exec(table); err != nil {
			return err
		}
	}

	for _, index := range indices {
		if _, err := db.conn.Exec(index); err != nil {
			return err
		}
	}

	return db.runMigrations()
}

// runMigrations performs incremental schema updates in-place. Each migration
// should be idempotent and safe to re-run; keep them lightweight.
func (db *Database) runMigrations() error {
	// Migration 1: track when a playlist was last saved
	var columnExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('playlists')
		WHERE name = 'updated_at'`).Scan(&columnExists)
	if err != nil {
		return err
	}

	if !columnExists {
		// SQLite refuses non-constant defaults in ALTER TABLE
		if _, err := db.conn.Exec("ALTER TABLE playlists ADD COLUMN updated_at DATETIME"); err != nil {
			return err
		}
		db.logger.Debug("Added updated_at column to playlists table")
	}

	return nil
}

// prepareStatements prepares commonly used SQL statements
func (db *Database) prepareStatements() error {
	var err error

	db.upsertPlaylistStmt, err = db.conn.Prepare(`
		INSERT INTO playlists (id, platform_id, name, type, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			platform_id=excluded.platform_id,
			name=excluded.name,
			type=excluded.type,
			updated_at=excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert playlist statement: %w", err)
	}

	db.insertTrackStmt, err = db.conn.Prepare(`
		INSERT INTO playlist_tracks (playlist_id, position, track_type, artist, title, record)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert track statement: %w", err)
	}

	db.insertRevisionStmt, err = db.conn.Prepare(`
		INSERT INTO playlist_revisions (id, playlist_id, snapshot, track_count)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert revision statement: %w", err)
	}

	db.getPlaylistStmt, err = db.conn.Prepare(`
		SELECT id, platform_id, name, type FROM playlists WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get playlist statement: %w", err)
	}

	db.searchTracksStmt, err = db.conn.Prepare(`
		SELECT playlist_id, position, record
		FROM playlist_tracks
		WHERE title LIKE ? OR artist LIKE ?
		ORDER BY playlist_id, position`)
	if err != nil {
		return fmt.Errorf("failed to prepare search tracks statement: %w", err)
	}

	return nil
}

// SavePlaylist replaces the stored copy of the playlist with its current
// state and appends a revision snapshot, all in one transaction.
func (db *Database) SavePlaylist(p *playlist.Playlist) error {
	rec := p.ToRecord()

	snapshot, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode playlist: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Stmt(db.upsertPlaylistStmt).Exec(rec.ID, rec.PlatformID, rec.Name, rec.Type); err != nil {
		return fmt.Errorf("failed to save playlist: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM playlist_tracks WHERE playlist_id = ?", rec.ID); err != nil {
		return fmt.Errorf("failed to clear playlist tracks: %w", err)
	}

	insertTrack := tx.Stmt(db.insertTrackStmt)
	for position, track := range rec.Tracks {
		data, err := json.Marshal(track)
		if err != nil {
			return fmt.Errorf("failed to encode track: %w", err)
		}
		if _, err := insertTrack.Exec(rec.ID, position, string(track.TrackType), track.Artist, track.Title, string(data)); err != nil {
			return fmt.Errorf("failed to save track %d: %w", position, err)
		}
	}

	revisionID := uuid.New().String()
	if _, err := tx.Stmt(db.insertRevisionStmt).Exec(revisionID, rec.ID, string(snapshot), len(rec.Tracks)); err != nil {
		return fmt.Errorf("failed to save revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit playlist: %w", err)
	}

	db.logger.WithFields(logrus.Fields{
		"playlist": rec.ID,
		"tracks":   len(rec.Tracks),
		"revision": revisionID,
	}).Debug("Saved playlist")
	return nil
}

// GetPlaylistRecord returns the stored serialized form of a playlist
func (db *Database) GetPlaylistRecord(id string) (playlist.Record, error) {
	var rec playlist.Record
	err := db.getPlaylistStmt.QueryRow(id).Scan(&rec.ID, &rec.PlatformID, &rec.Name, &rec.Type)
	if err == sql.ErrNoRows {
		return rec, ErrPlaylistNotFound
	}
	if err != nil {
		return rec, err
	}

	rows, err := db.conn.Query(`
		SELECT record FROM playlist_tracks
		WHERE playlist_id = ?
		ORDER BY position`, id)
	if err != nil {
		return rec, err
	}
	defer rows.Close()

	rec.Tracks = make([]models.TrackRecord, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return rec, err
		}
		var track models.TrackRecord
		if err := json.Unmarshal([]byte(data), &track); err != nil {
			return rec, fmt.Errorf("failed to decode stored track: %w", err)
		}
		rec.Tracks = append(rec.Tracks, track)
	}

	return rec, rows.Err()
}

// GetPlaylist loads a stored playlist. Tracks of unknown variants are
// dropped the same way playlist.FromRecord drops them.
func (db *Database) GetPlaylist(id string) (*playlist.Playlist, error) {
	rec, err := db.GetPlaylistRecord(id)
	if err != nil {
		return nil, err
	}
	return playlist.FromRecord(rec, db.logger), nil
}

// GetAllPlaylists returns every stored playlist with its track count
func (db *Database) GetAllPlaylists() ([]PlaylistSummary, error) {
	rows, err := db.conn.Query(`
		SELECT p.id, p.platform_id, p.name, p.type,
			   p.updated_at, COUNT(pt.position) AS track_count
		FROM playlists p
		LEFT JOIN playlist_tracks pt ON p.id = pt.playlist_id
		GROUP BY p.id, p.platform_id, p.name, p.type, p.updated_at
		ORDER BY p.name, p.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]PlaylistSummary, 0)
	for rows.Next() {
		var s PlaylistSummary
		var updatedAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.PlatformID, &s.Name, &s.Type, &updatedAt, &s.TrackCount); err != nil {
			return nil, err
		}
		if updatedAt.Valid {
			s.UpdatedAt = updatedAt.Time
		}
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}

// DeletePlaylist deletes the playlist along with its tracks and revisions
func (db *Database) DeletePlaylist(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, query := range []string{
		"DELETE FROM playlist_tracks WHERE playlist_id = ?",
		"DELETE FROM playlist_revisions WHERE playlist_id = ?",
	} {
		if _, err := tx.Exec(query, id); err != nil {
			return err
		}
	}

	result, err := tx.Exec("DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrPlaylistNotFound
	}

	return tx.Commit()
}

// GetRevisions returns the revisions of a playlist, newest first
func (db *Database) GetRevisions(playlistID string) ([]Revision, error) {
	rows, err := db.conn.Query(`
		SELECT id, playlist_id, snapshot, track_count, created_at
		FROM playlist_revisions
		WHERE playlist_id = ?
		ORDER BY created_at DESC, rowid DESC`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	revisions := make([]Revision, 0)
	for rows.Next() {
		rev, err := scanRevision(rows)
		if err != nil {
			return nil, err
		}
		revisions = append(revisions, rev)
	}

	return revisions, rows.Err()
}

// GetRevision returns a single revision by id
func (db *Database) GetRevision(revisionID string) (Revision, error) {
	row := db.conn.QueryRow(`
		SELECT id, playlist_id, snapshot, track_count, created_at
		FROM playlist_revisions WHERE id = ?`, revisionID)

	rev, err := scanRevision(row)
	if err == sql.ErrNoRows {
		return rev, ErrRevisionNotFound
	}
	return rev, err
}

// SearchTracks performs a simple LIKE-based search over stored artists and titles
func (db *Database) SearchTracks(query string) ([]TrackHit, error) {
	searchQuery := "%" + query + "%"
	rows, err := db.searchTracksStmt.Query(searchQuery, searchQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]TrackHit, 0)
	for rows.Next() {
		var hit TrackHit
		var data string
		if err := rows.Scan(&hit.PlaylistID, &hit.Position, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &hit.Track); err != nil {
			return nil, fmt.Errorf("failed to decode stored track: %w", err)
		}
		hits = append(hits, hit)
	}

	return hits, rows.Err()
}

// Close closes the underlying database connection and prepared statements.
func (db *Database) Close() error {
	statements := []*sql.Stmt{
		db.upsertPlaylistStmt,
		db.insertTrackStmt,
		db.insertRevisionStmt,
		db.getPlaylistStmt,
		db.searchTracksStmt,
	}

	for _, stmt := range statements {
		if stmt != nil {
			if err := stmt.Close(); err != nil {
				db.logger.WithError(err).Error("Failed to close prepared statement")
			}
		}
	}

	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRevision(row rowScanner) (Revision, error) {
	var rev Revision
	var snapshot string
	if err := row.Scan(&rev.ID, &rev.PlaylistID, &snapshot, &rev.TrackCount, &rev.CreatedAt); err != nil {
		return rev, err
	}
	rev.Snapshot = []byte(snapshot)
	return rev, nil
}
