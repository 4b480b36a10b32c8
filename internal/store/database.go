// Package store is the SQLite backend: artifact persistence and execution of
// compiled queries.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/aidanlsb/sramp/internal/logger"
)

// ErrArtifactNotFound indicates the requested UUID is not in the store.
var ErrArtifactNotFound = errors.New("artifact not found")

// CurrentDBVersion is the current database schema version.
const CurrentDBVersion = 2

// Store is the SQLite database handle.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// DB returns the underlying sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	s := New(db)
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenInMemory opens an in-memory database (for testing).
func OpenInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already initialized database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db, log: logger.Named("store")}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates the database schema.
func (s *Store) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA temp_store = MEMORY;
		PRAGMA foreign_keys = ON;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS artifacts (
			uuid TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL,
			type TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			version TEXT NOT NULL DEFAULT '',
			mime_type TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT '',        -- RFC 3339, UTC
			last_modified_at TEXT NOT NULL DEFAULT '',  -- RFC 3339, UTC
			derived TEXT NOT NULL DEFAULT 'false',      -- 'true' or 'false'
			derived_from TEXT,
			content TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS properties (
			artifact_uuid TEXT NOT NULL REFERENCES artifacts(uuid) ON DELETE CASCADE,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (artifact_uuid, name)
		);

		-- normalized = 0: direct classifiers; 1: direct classifiers plus ancestors
		CREATE TABLE IF NOT EXISTS classifications (
			artifact_uuid TEXT NOT NULL REFERENCES artifacts(uuid) ON DELETE CASCADE,
			uri TEXT NOT NULL,
			normalized INTEGER NOT NULL,
			PRIMARY KEY (artifact_uuid, normalized, uri)
		);

		CREATE TABLE IF NOT EXISTS relationships (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_uuid TEXT NOT NULL REFERENCES artifacts(uuid) ON DELETE CASCADE,
			name TEXT NOT NULL,
			generic INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS relationship_attributes (
			relationship_id INTEGER NOT NULL REFERENCES relationships(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (relationship_id, name)
		);

		CREATE TABLE IF NOT EXISTS targets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			relationship_id INTEGER NOT NULL REFERENCES relationships(id) ON DELETE CASCADE,
			target_uuid TEXT NOT NULL,
			target_type TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS target_attributes (
			target_id INTEGER NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (target_id, name)
		);

		CREATE INDEX IF NOT EXISTS idx_artifacts_model_type ON artifacts(model, type);
		CREATE INDEX IF NOT EXISTS idx_artifacts_name ON artifacts(name);
		CREATE INDEX IF NOT EXISTS idx_properties_name_value ON properties(name, value);
		CREATE INDEX IF NOT EXISTS idx_classifications_uri ON classifications(uri, normalized);
		CREATE INDEX IF NOT EXISTS idx_relationships_source ON relationships(source_uuid, name);
		CREATE INDEX IF NOT EXISTS idx_targets_relationship ON targets(relationship_id);
		CREATE INDEX IF NOT EXISTS idx_targets_target ON targets(target_uuid);

		-- Full-text search over artifact names and content
		CREATE VIRTUAL TABLE IF NOT EXISTS fts_content USING fts5(
			uuid UNINDEXED,
			name,
			content,
			tokenize='porter unicode61'
		);

		-- Substring search for free text with a leading wildcard
		CREATE VIRTUAL TABLE IF NOT EXISTS fts_trigram USING fts5(
			uuid UNINDEXED,
			name,
			content,
			tokenize='trigram'
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "failed to initialize database schema")
	}

	if err := s.migrate(); err != nil {
		return err
	}

	_, err := s.db.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)`,
		strconv.Itoa(CurrentDBVersion))
	if err != nil {
		return errors.Wrap(err, "failed to set database version")
	}

	return nil
}

// migrate brings data written by an older schema version up to date.
func (s *Store) migrate() error {
	var stored string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'version'`).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to read database version")
	}
	version, err := strconv.Atoi(stored)
	if err != nil {
		return errors.Wrapf(err, "bad database version %q", stored)
	}
	if version < 2 {
		// Version 1 had no trigram index.
		if _, err := s.db.Exec(`
			INSERT INTO fts_trigram (uuid, name, content)
			SELECT uuid, name, content FROM artifacts
			WHERE uuid NOT IN (SELECT uuid FROM fts_trigram)`); err != nil {
			return errors.Wrap(err, "failed to backfill trigram index")
		}
	}
	return nil
}

// Stats holds row counts.
type Stats struct {
	Artifacts     int            `json:"artifacts"`
	Derived       int            `json:"derived"`
	Relationships int            `json:"relationships"`
	Targets       int            `json:"targets"`
	ByModel       map[string]int `json:"by_model"`
}

// Stats returns row counts for the catalog.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByModel: make(map[string]int)}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM artifacts", &st.Artifacts},
		{"SELECT COUNT(*) FROM artifacts WHERE derived = 'true'", &st.Derived},
		{"SELECT COUNT(*) FROM relationships", &st.Relationships},
		{"SELECT COUNT(*) FROM targets", &st.Targets},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, errors.Wrap(err, "count rows")
		}
	}

	rows, err := s.db.QueryContext(ctx, "SELECT model, COUNT(*) FROM artifacts GROUP BY model")
	if err != nil {
		return nil, errors.Wrap(err, "count by model")
	}
	defer rows.Close()
	for rows.Next() {
		var m string
		var n int
		if err := rows.Scan(&m, &n); err != nil {
			return nil, err
		}
		st.ByModel[m] = n
	}
	return st, rows.Err()
}
