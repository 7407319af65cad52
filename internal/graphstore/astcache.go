package graphstore

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/basinlabs/symgraph/internal/astparse"
	"github.com/basinlabs/symgraph/internal/sgerrors"
)

// ASTCacheEntry is the persistent counterpart of the AST cache: survives
// process restarts so a fresh run over an unchanged tree parses nothing.
type ASTCacheEntry struct {
	FilePath    string
	ContentHash string
	MTime       time.Time
	Language    string
	Result      astparse.ParseResult
	CachedAt    time.Time
	ParseTimeMS int64
	FileSize    int64
}

// ASTCacheGet returns the cached parse result iff the on-disk mtime is
// no newer than the cached one and the content hash matches. Any
// mismatch is a miss.
func (s *Store) ASTCacheGet(path string, mtime time.Time, contentHash string) (astparse.ParseResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		cachedHash, cachedMTime string
		blob                    []byte
	)
	err := s.db.QueryRow(`
		SELECT content_hash, mtime, parse_result FROM ast_cache WHERE file_path = ?`, path).
		Scan(&cachedHash, &cachedMTime, &blob)
	if err == sql.ErrNoRows {
		return astparse.ParseResult{}, false, nil
	}
	if err != nil {
		return astparse.ParseResult{}, false, sgerrors.StoreErr("load ast cache entry", err).WithFile(path)
	}

	if cachedHash != contentHash || mtime.After(parseTime(cachedMTime)) {
		return astparse.ParseResult{}, false, nil
	}

	var result astparse.ParseResult
	if err := json.Unmarshal(blob, &result); err != nil {
		return astparse.ParseResult{}, false, sgerrors.StoreErr("decode ast cache entry", err).WithFile(path)
	}
	return result, true, nil
}

// ASTCachePut stores a parse result with INSERT OR REPLACE semantics.
func (s *Store) ASTCachePut(entry ASTCacheEntry) error {
	blob, err := json.Marshal(entry.Result)
	if err != nil {
		return sgerrors.StoreErr("encode ast cache entry", err).WithFile(entry.FilePath)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO ast_cache (file_path, content_hash, mtime, language, parse_result,
			symbols, imports, exports, outline, cached_at, parse_time_ms, file_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			mtime = excluded.mtime,
			language = excluded.language,
			parse_result = excluded.parse_result,
			symbols = excluded.symbols,
			imports = excluded.imports,
			exports = excluded.exports,
			outline = excluded.outline,
			cached_at = excluded.cached_at,
			parse_time_ms = excluded.parse_time_ms,
			file_size = excluded.file_size`,
		entry.FilePath, entry.ContentHash, formatTime(entry.MTime), entry.Language, blob,
		len(entry.Result.Symbols), len(entry.Result.Imports), len(entry.Result.Exports),
		entry.Result.Outline, formatTime(entry.CachedAt), entry.ParseTimeMS, entry.FileSize)
	if err != nil {
		return sgerrors.StoreErr("save ast cache entry", err).WithFile(entry.FilePath)
	}
	return nil
}
