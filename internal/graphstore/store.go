// Package graphstore owns the persistent relational symbol graph:
// files, symbols, imports, exports, BM25 documents, boost configuration,
// and the persistent AST cache, all in one SQLite database. Writes
// serialize through a single connection; each file's replacement commits
// atomically.
package graphstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGO

	"github.com/basinlabs/symgraph/internal/sgerrors"
)

// SchemaVersion is the schema this build writes. Opening a database with
// a newer version fails; older versions are migrated forward.
const SchemaVersion = 2

// Store wraps the SQLite database holding the symbol graph.
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// Open creates or opens the symbol graph database at path, applies
// pragmas and idempotent migrations, and refuses databases written by a
// newer schema. An empty path opens an in-memory database for tests.
func Open(path string) (*Store, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, sgerrors.New(sgerrors.KindStore, sgerrors.CodeStoreOpenFailed, "create store directory", err)
		}
		dsn = path + "?_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, sgerrors.New(sgerrors.KindStore, sgerrors.CodeStoreOpenFailed, "open database", err)
	}

	// Single writer prevents lock contention with modernc.org/sqlite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, sgerrors.New(sgerrors.KindStore, sgerrors.CodeStoreOpenFailed, "set pragma", err)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database. Further calls are no-ops.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// migrate applies idempotent schema migrations, tracking the applied
// version in schema_version. Unknown future versions are fatal.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return sgerrors.New(sgerrors.KindStore, sgerrors.CodeStoreOpenFailed, "create schema_version", err)
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		version = 0
	case err != nil:
		return sgerrors.New(sgerrors.KindStore, sgerrors.CodeStoreOpenFailed, "read schema version", err)
	}

	if version > SchemaVersion {
		return sgerrors.New(sgerrors.KindStore, sgerrors.CodeSchemaUnknown,
			fmt.Sprintf("database schema version %d is newer than supported %d", version, SchemaVersion), nil)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return sgerrors.StoreErr("begin migration", err)
	}
	defer tx.Rollback()

	if version < 1 {
		if err := migrateV1(tx); err != nil {
			return sgerrors.New(sgerrors.KindStore, sgerrors.CodeStoreOpenFailed, "apply schema v1", err)
		}
	}
	if version < 2 {
		if err := migrateV2(tx); err != nil {
			return sgerrors.New(sgerrors.KindStore, sgerrors.CodeStoreOpenFailed, "apply schema v2", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM schema_version`); err != nil {
		return sgerrors.StoreErr("reset schema version", err)
	}
	if _, err := tx.Exec(`INSERT INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
		return sgerrors.StoreErr("write schema version", err)
	}
	if err := tx.Commit(); err != nil {
		return sgerrors.StoreErr("commit migration", err)
	}
	return nil
}

func migrateV1(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS files (
			path TEXT PRIMARY KEY,
			language TEXT NOT NULL DEFAULT '',
			size INTEGER NOT NULL DEFAULT 0,
			mtime TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			last_indexed_at TEXT NOT NULL DEFAULT '',
			partition TEXT NOT NULL DEFAULT 'project',
			authority REAL NOT NULL DEFAULT 0.5
		)`,
		`CREATE TABLE IF NOT EXISTS symbols (
			id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			signature TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL,
			parent_symbol_name TEXT NOT NULL DEFAULT '',
			is_exported INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path)`,
		`CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)`,
		`CREATE TABLE IF NOT EXISTS imports (
			file_path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
			module TEXT NOT NULL,
			imported_name TEXT NOT NULL DEFAULT '',
			is_external INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_imports_file ON imports(file_path)`,
		`CREATE TABLE IF NOT EXISTS exports (
			file_path TEXT NOT NULL REFERENCES files(path) ON DELETE CASCADE,
			name TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exports_file ON exports(file_path)`,
		`CREATE TABLE IF NOT EXISTS bm25_docs (
			id TEXT PRIMARY KEY REFERENCES files(path) ON DELETE CASCADE,
			length INTEGER NOT NULL,
			tokens BLOB NOT NULL,
			content TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS bm25_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			n INTEGER NOT NULL DEFAULT 0,
			avg_doc_len REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS bm25_df (
			term TEXT PRIMARY KEY,
			df INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS boost_config (
			name TEXT PRIMARY KEY,
			file_name_match_boost REAL NOT NULL,
			exported_symbol_boost REAL NOT NULL,
			defined_symbol_boost REAL NOT NULL,
			all_symbol_boost REAL NOT NULL,
			import_only_penalty REAL NOT NULL,
			content_match_weight REAL NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func migrateV2(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ast_cache (
			file_path TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			mtime TEXT NOT NULL,
			language TEXT NOT NULL,
			parse_result BLOB NOT NULL,
			symbols INTEGER NOT NULL DEFAULT 0,
			imports INTEGER NOT NULL DEFAULT 0,
			exports INTEGER NOT NULL DEFAULT 0,
			outline TEXT NOT NULL DEFAULT '',
			cached_at TEXT NOT NULL,
			parse_time_ms INTEGER NOT NULL DEFAULT 0,
			file_size INTEGER NOT NULL DEFAULT 0
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
