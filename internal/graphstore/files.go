package graphstore

import (
	"database/sql"
	"encoding/json"

	"github.com/basinlabs/symgraph/internal/sgerrors"
)

// ReplaceFile atomically upserts the file row and replaces its symbols,
// imports, exports, and BM25 document in a single transaction. A reader
// never observes a file whose dependents belong to a previous version.
func (s *Store) ReplaceFile(file FileRow, symbols []SymbolRow, imports []ImportRow, exports []string, doc BM25DocRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return sgerrors.StoreErr("begin replace", err).WithFile(file.Path)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO files (path, language, size, mtime, content_hash, last_indexed_at, partition, authority)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			language = excluded.language,
			size = excluded.size,
			mtime = excluded.mtime,
			content_hash = excluded.content_hash,
			last_indexed_at = excluded.last_indexed_at,
			partition = excluded.partition,
			authority = excluded.authority`,
		file.Path, file.Language, file.Size, formatTime(file.MTime), file.ContentHash,
		formatTime(file.LastIndexedAt), file.Partition, file.Authority); err != nil {
		return sgerrors.StoreErr("upsert file", err).WithFile(file.Path)
	}

	for _, table := range []string{"symbols", "imports", "exports"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE file_path = ?`, file.Path); err != nil {
			return sgerrors.StoreErr("clear "+table, err).WithFile(file.Path)
		}
	}

	for _, sym := range symbols {
		id := sym.ID
		if id == "" {
			id = NewSymbolID()
		}
		if _, err := tx.Exec(`
			INSERT INTO symbols (id, file_path, name, kind, signature, location, parent_symbol_name, is_exported)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, file.Path, sym.Name, sym.Kind, sym.Signature, sym.Location, sym.ParentSymbolName, boolInt(sym.IsExported)); err != nil {
			return sgerrors.StoreErr("insert symbol", err).WithFile(file.Path)
		}
	}
	for _, imp := range imports {
		if _, err := tx.Exec(`
			INSERT INTO imports (file_path, module, imported_name, is_external)
			VALUES (?, ?, ?, ?)`,
			file.Path, imp.Module, imp.ImportedName, boolInt(imp.IsExternal)); err != nil {
			return sgerrors.StoreErr("insert import", err).WithFile(file.Path)
		}
	}
	for _, name := range exports {
		if _, err := tx.Exec(`INSERT INTO exports (file_path, name) VALUES (?, ?)`, file.Path, name); err != nil {
			return sgerrors.StoreErr("insert export", err).WithFile(file.Path)
		}
	}

	oldTokens, err := docTokensTx(tx, file.Path)
	if err != nil {
		return sgerrors.StoreErr("load previous bm25 tokens", err).WithFile(file.Path)
	}

	tokens, err := canonicalJSON(doc.Tokens)
	if err != nil {
		return sgerrors.StoreErr("encode bm25 tokens", err).WithFile(file.Path)
	}
	if _, err := tx.Exec(`
		INSERT INTO bm25_docs (id, length, tokens, content)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			length = excluded.length,
			tokens = excluded.tokens,
			content = excluded.content`,
		file.Path, doc.Length, tokens, doc.Content); err != nil {
		return sgerrors.StoreErr("upsert bm25 doc", err).WithFile(file.Path)
	}

	if err := adjustDFTx(tx, oldTokens, -1); err != nil {
		return sgerrors.StoreErr("decrement df", err).WithFile(file.Path)
	}
	if err := adjustDFTx(tx, doc.Tokens, +1); err != nil {
		return sgerrors.StoreErr("increment df", err).WithFile(file.Path)
	}
	if err := refreshBM25MetaTx(tx); err != nil {
		return sgerrors.StoreErr("refresh bm25 meta", err).WithFile(file.Path)
	}

	if err := tx.Commit(); err != nil {
		return sgerrors.StoreErr("commit replace", err).WithFile(file.Path)
	}
	return nil
}

// GetFile loads one file row. Returns (zero, false, nil) when absent.
func (s *Store) GetFile(path string) (FileRow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		row                  FileRow
		mtime, lastIndexedAt string
	)
	err := s.db.QueryRow(`
		SELECT path, language, size, mtime, content_hash, last_indexed_at, partition, authority
		FROM files WHERE path = ?`, path).
		Scan(&row.Path, &row.Language, &row.Size, &mtime, &row.ContentHash, &lastIndexedAt, &row.Partition, &row.Authority)
	if err == sql.ErrNoRows {
		return FileRow{}, false, nil
	}
	if err != nil {
		return FileRow{}, false, sgerrors.StoreErr("load file", err).WithFile(path)
	}
	row.MTime = parseTime(mtime)
	row.LastIndexedAt = parseTime(lastIndexedAt)
	return row, true, nil
}

// AllFilePaths lists every stored file path.
func (s *Store) AllFilePaths() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT path FROM files ORDER BY path`)
	if err != nil {
		return nil, sgerrors.StoreErr("list files", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, sgerrors.StoreErr("scan file path", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteFiles removes files and all their dependents in one transaction.
func (s *Store) DeleteFiles(paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return sgerrors.StoreErr("begin delete", err)
	}
	defer tx.Rollback()

	for _, p := range paths {
		tokens, err := docTokensTx(tx, p)
		if err != nil {
			return sgerrors.StoreErr("load bm25 tokens", err).WithFile(p)
		}
		if err := adjustDFTx(tx, tokens, -1); err != nil {
			return sgerrors.StoreErr("decrement df", err).WithFile(p)
		}
		// ON DELETE CASCADE covers symbols, imports, exports, bm25_docs.
		if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, p); err != nil {
			return sgerrors.StoreErr("delete file", err).WithFile(p)
		}
		if _, err := tx.Exec(`DELETE FROM ast_cache WHERE file_path = ?`, p); err != nil {
			return sgerrors.StoreErr("delete ast cache entry", err).WithFile(p)
		}
	}
	if err := refreshBM25MetaTx(tx); err != nil {
		return sgerrors.StoreErr("refresh bm25 meta", err)
	}
	if err := tx.Commit(); err != nil {
		return sgerrors.StoreErr("commit delete", err)
	}
	return nil
}

// docTokensTx loads a document's token map inside a transaction, nil
// when the doc does not exist yet.
func docTokensTx(tx *sql.Tx, id string) (map[string]int, error) {
	var blob []byte
	err := tx.QueryRow(`SELECT tokens FROM bm25_docs WHERE id = ?`, id).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tokens map[string]int
	if err := json.Unmarshal(blob, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// adjustDFTx shifts document frequencies by delta for every term in
// tokens, dropping rows that reach zero.
func adjustDFTx(tx *sql.Tx, tokens map[string]int, delta int) error {
	for term := range tokens {
		if _, err := tx.Exec(`
			INSERT INTO bm25_df (term, df) VALUES (?, ?)
			ON CONFLICT(term) DO UPDATE SET df = df + ?`, term, delta, delta); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`DELETE FROM bm25_df WHERE df <= 0`); err != nil {
		return err
	}
	return nil
}

// refreshBM25MetaTx recomputes the single bm25_meta row from bm25_docs.
func refreshBM25MetaTx(tx *sql.Tx) error {
	_, err := tx.Exec(`
		INSERT INTO bm25_meta (id, n, avg_doc_len)
		SELECT 1, COUNT(*), COALESCE(AVG(length), 0) FROM bm25_docs WHERE 1=1
		ON CONFLICT(id) DO UPDATE SET
			n = excluded.n,
			avg_doc_len = excluded.avg_doc_len`)
	return err
}

// BM25Meta returns the persisted corpus aggregates.
func (s *Store) BM25Meta() (n int, avgDocLen float64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err = s.db.QueryRow(`SELECT n, avg_doc_len FROM bm25_meta WHERE id = 1`).Scan(&n, &avgDocLen)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, sgerrors.StoreErr("load bm25 meta", err)
	}
	return n, avgDocLen, nil
}

// SymbolsForFile loads the symbols of one file.
func (s *Store) SymbolsForFile(path string) ([]SymbolRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, file_path, name, kind, signature, location, parent_symbol_name, is_exported
		FROM symbols WHERE file_path = ? ORDER BY id`, path)
	if err != nil {
		return nil, sgerrors.StoreErr("load symbols", err).WithFile(path)
	}
	defer rows.Close()

	var out []SymbolRow
	for rows.Next() {
		var sym SymbolRow
		var exported int
		if err := rows.Scan(&sym.ID, &sym.FilePath, &sym.Name, &sym.Kind, &sym.Signature, &sym.Location, &sym.ParentSymbolName, &exported); err != nil {
			return nil, sgerrors.StoreErr("scan symbol", err).WithFile(path)
		}
		sym.IsExported = exported != 0
		out = append(out, sym)
	}
	return out, rows.Err()
}

// ImportsForFile loads the imports of one file.
func (s *Store) ImportsForFile(path string) ([]ImportRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT file_path, module, imported_name, is_external
		FROM imports WHERE file_path = ?`, path)
	if err != nil {
		return nil, sgerrors.StoreErr("load imports", err).WithFile(path)
	}
	defer rows.Close()

	var out []ImportRow
	for rows.Next() {
		var imp ImportRow
		var external int
		if err := rows.Scan(&imp.FilePath, &imp.Module, &imp.ImportedName, &external); err != nil {
			return nil, sgerrors.StoreErr("scan import", err).WithFile(path)
		}
		imp.IsExternal = external != 0
		out = append(out, imp)
	}
	return out, rows.Err()
}

// ExportsForFile loads the exported names of one file.
func (s *Store) ExportsForFile(path string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name FROM exports WHERE file_path = ? ORDER BY name`, path)
	if err != nil {
		return nil, sgerrors.StoreErr("load exports", err).WithFile(path)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, sgerrors.StoreErr("scan export", err).WithFile(path)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// GetBM25Doc loads one BM25 document. Returns (zero, false, nil) when
// absent.
func (s *Store) GetBM25Doc(id string) (BM25DocRow, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var doc BM25DocRow
	var tokens []byte
	err := s.db.QueryRow(`SELECT id, length, tokens, content FROM bm25_docs WHERE id = ?`, id).
		Scan(&doc.ID, &doc.Length, &tokens, &doc.Content)
	if err == sql.ErrNoRows {
		return BM25DocRow{}, false, nil
	}
	if err != nil {
		return BM25DocRow{}, false, sgerrors.StoreErr("load bm25 doc", err).WithFile(id)
	}
	if err := json.Unmarshal(tokens, &doc.Tokens); err != nil {
		return BM25DocRow{}, false, sgerrors.StoreErr("decode bm25 tokens", err).WithFile(id)
	}
	return doc, true, nil
}

// AllBM25Docs streams every stored BM25 document, used to rebuild the
// in-memory index on open.
func (s *Store) AllBM25Docs() ([]BM25DocRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, length, tokens, content FROM bm25_docs ORDER BY id`)
	if err != nil {
		return nil, sgerrors.StoreErr("list bm25 docs", err)
	}
	defer rows.Close()

	var out []BM25DocRow
	for rows.Next() {
		var doc BM25DocRow
		var tokens []byte
		if err := rows.Scan(&doc.ID, &doc.Length, &tokens, &doc.Content); err != nil {
			return nil, sgerrors.StoreErr("scan bm25 doc", err)
		}
		if err := json.Unmarshal(tokens, &doc.Tokens); err != nil {
			return nil, sgerrors.StoreErr("decode bm25 tokens", err).WithFile(doc.ID)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// DetectOrphans returns BM25 doc ids that have no matching files row,
// run at end of sweep.
func (s *Store) DetectOrphans() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT d.id FROM bm25_docs d
		LEFT JOIN files f ON f.path = d.id
		WHERE f.path IS NULL ORDER BY d.id`)
	if err != nil {
		return nil, sgerrors.StoreErr("detect orphans", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, sgerrors.StoreErr("scan orphan", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Stats aggregates totals across the stored graph.
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{ByLanguage: make(map[string]int)}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&stats.TotalFiles); err != nil {
		return Stats{}, sgerrors.StoreErr("count files", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM symbols`).Scan(&stats.TotalSymbols); err != nil {
		return Stats{}, sgerrors.StoreErr("count symbols", err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM imports`).Scan(&stats.TotalImports); err != nil {
		return Stats{}, sgerrors.StoreErr("count imports", err)
	}

	rows, err := s.db.Query(`SELECT language, COUNT(*) FROM files GROUP BY language`)
	if err != nil {
		return Stats{}, sgerrors.StoreErr("count by language", err)
	}
	defer rows.Close()
	for rows.Next() {
		var lang string
		var n int
		if err := rows.Scan(&lang, &n); err != nil {
			return Stats{}, sgerrors.StoreErr("scan language count", err)
		}
		if lang == "" {
			lang = "unknown"
		}
		stats.ByLanguage[lang] = n
	}
	return stats, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// canonicalJSON marshals with sorted keys, which encoding/json already
// guarantees for maps.
func canonicalJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}
