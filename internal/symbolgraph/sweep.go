package symbolgraph

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/basinlabs/symgraph/internal/astparse"
	"github.com/basinlabs/symgraph/internal/bm25"
	"github.com/basinlabs/symgraph/internal/discover"
	"github.com/basinlabs/symgraph/internal/graphstore"
	"github.com/basinlabs/symgraph/internal/sgerrors"
	"github.com/basinlabs/symgraph/internal/vectorindex"
)

// embedSnippetLimit bounds the content prefix sent to the embedding
// service per file.
const embedSnippetLimit = 4000

// parsedFile is the output of the parse stage for one changed file.
type parsedFile struct {
	relPath string
	file    graphstore.FileRow
	result  astparse.ParseResult
	content string
}

// IndexRepository runs a full sweep: discovery, change detection,
// parse, persist, embed, and removal of files that disappeared.
// Cancellation is honored at file-loop boundaries; in-flight
// transactions complete before abort.
func (ix *Indexer) IndexRepository(ctx context.Context) (SweepStats, error) {
	files, err := discover.Files(ix.projectRoot, ix.matcher)
	if err != nil {
		return SweepStats{}, err
	}
	stats, err := ix.sweep(ctx, files, true)
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// IndexFiles indexes an explicit list of repo-relative paths without
// removing anything outside the list.
func (ix *Indexer) IndexFiles(ctx context.Context, paths []string) (SweepStats, error) {
	normalized := make([]string, 0, len(paths))
	for _, p := range paths {
		normalized = append(normalized, filepath.ToSlash(p))
	}
	return ix.sweep(ctx, normalized, false)
}

func (ix *Indexer) sweep(ctx context.Context, files []string, fullSweep bool) (SweepStats, error) {
	start := time.Now()
	stats := SweepStats{TotalFiles: len(files)}

	var (
		mu      sync.Mutex
		changed []parsedFile
	)
	addError := func(path string, err error) {
		kind := string(sgerrors.KindIO)
		var sgErr *sgerrors.Error
		if errors.As(err, &sgErr) {
			kind = string(sgErr.Kind)
		}
		mu.Lock()
		stats.Errors = append(stats.Errors, FileError{Path: path, Kind: kind, Message: err.Error()})
		mu.Unlock()
	}

	// Parse stage: CPU-bound, worker pool sized by max_workers. Each
	// worker owns its own tree-sitter parser.
	g, gctx := errgroup.WithContext(ctx)

	work := make(chan string)
	g.Go(func() error {
		defer close(work)
		for _, rel := range files {
			select {
			case work <- rel:
			case <-gctx.Done():
				return sgerrors.CancelledErr("sweep cancelled")
			}
		}
		return nil
	})

	for w := 0; w < ix.cfg.Performance.MaxWorkers; w++ {
		g.Go(func() error {
			parser := astparse.New()
			defer parser.Close()

			for rel := range work {
				select {
				case <-gctx.Done():
					return sgerrors.CancelledErr("sweep cancelled")
				default:
				}

				outcome, pf, err := ix.examineFile(gctx, parser, rel)
				mu.Lock()
				switch outcome {
				case outcomeUnchanged:
					stats.AlreadyIndexed++
				case outcomeSkipped:
					stats.Skipped++
				case outcomeChanged:
					changed = append(changed, pf)
				}
				mu.Unlock()
				if err != nil {
					addError(rel, err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return stats, err
	}

	// Deterministic persist order keeps logs and tests stable.
	sort.Slice(changed, func(i, j int) bool { return changed[i].relPath < changed[j].relPath })

	// Persist stage: serial writes, one atomic transaction per file.
	for _, pf := range changed {
		if err := ctx.Err(); err != nil {
			return stats, sgerrors.CancelledErr("sweep cancelled")
		}
		if err := ix.persistFile(pf); err != nil {
			addError(pf.relPath, err)
			continue
		}
		stats.Indexed++
		stats.TotalSymbols += len(pf.result.Symbols)
		ix.logger.Info("file indexed",
			"path", pf.relPath,
			"language", pf.file.Language,
			"symbols", len(pf.result.Symbols),
			"partition", pf.file.Partition)
	}

	// Embed stage: the files just persisted plus any stragglers whose
	// embedding failed on a previous sweep.
	ix.embedFiles(ctx, changed, files, addError)

	if fullSweep {
		if err := ix.removeAbsent(files); err != nil {
			return stats, err
		}
		if orphans, err := ix.store.DetectOrphans(); err == nil && len(orphans) > 0 {
			ix.logger.Warn("orphaned bm25 docs detected", "count", len(orphans))
		}
	}

	stats.FilesWithEmbeddings = ix.vectors.Count(Collection)
	stats.Duration = time.Since(start)

	ix.logger.Info("sweep complete",
		"total_files", stats.TotalFiles,
		"indexed", stats.Indexed,
		"already_indexed", stats.AlreadyIndexed,
		"skipped", stats.Skipped,
		"files_with_embeddings", stats.FilesWithEmbeddings,
		"errors", len(stats.Errors),
		"duration_ms", stats.Duration.Milliseconds())
	return stats, nil
}

type fileOutcome int

const (
	outcomeSkipped fileOutcome = iota
	outcomeUnchanged
	outcomeChanged
)

// examineFile runs change detection and, for new or modified files,
// parses via the two-level AST cache.
func (ix *Indexer) examineFile(ctx context.Context, parser *astparse.Parser, rel string) (fileOutcome, parsedFile, error) {
	absPath := filepath.Join(ix.projectRoot, filepath.FromSlash(rel))

	info, err := os.Stat(absPath)
	if err != nil {
		return outcomeSkipped, parsedFile{}, sgerrors.IOErr("stat file", err).WithFile(rel)
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return outcomeSkipped, parsedFile{}, sgerrors.IOErr("read file", err).WithFile(rel)
	}

	hash := astparse.HashContent(content)
	mtime := info.ModTime().UTC()

	stored, exists, err := ix.store.GetFile(rel)
	if err != nil {
		return outcomeSkipped, parsedFile{}, err
	}
	if exists && stored.ContentHash == hash {
		// The hash check is authoritative: a touched-but-identical file
		// is not re-parsed. Refresh the stored mtime so
		// last_indexed_at >= mtime keeps holding.
		if mtime.After(stored.MTime) {
			stored.MTime = mtime
			stored.LastIndexedAt = time.Now().UTC()
			if err := ix.refreshFileRow(stored); err != nil {
				return outcomeUnchanged, parsedFile{}, err
			}
		}
		return outcomeUnchanged, parsedFile{}, nil
	}

	language := ix.languageFor(rel)
	result, err := ix.parseWithCache(ctx, parser, rel, absPath, content, hash, mtime, language, info.Size())
	if err != nil {
		return outcomeSkipped, parsedFile{}, err
	}

	class := ix.classifier.Classify(rel)
	pf := parsedFile{
		relPath: rel,
		file: graphstore.FileRow{
			Path:          rel,
			Language:      language,
			Size:          info.Size(),
			MTime:         mtime,
			ContentHash:   hash,
			LastIndexedAt: time.Now().UTC(),
			Partition:     class.Partition,
			Authority:     class.Authority,
		},
		result:  result,
		content: string(content),
	}

	if result.Diagnostic != "" {
		// Parsed with errors: still indexed and embedded, no symbols
		// beyond what the parser salvaged.
		return outcomeChanged, pf, sgerrors.ParseErr(result.Diagnostic, nil).WithFile(rel)
	}
	return outcomeChanged, pf, nil
}

// parseWithCache consults the in-memory LRU first, then the persistent
// AST cache, and only then parses.
func (ix *Indexer) parseWithCache(ctx context.Context, parser *astparse.Parser, rel, absPath string, content []byte, hash string, mtime time.Time, language string, size int64) (astparse.ParseResult, error) {
	if result, ok := ix.cache.Lookup(absPath, mtime, hash); ok {
		return result, nil
	}
	if result, ok, err := ix.store.ASTCacheGet(rel, mtime, hash); err == nil && ok {
		ix.cache.Store(absPath, mtime, hash, language, size, result)
		return result, nil
	}

	result, err := parser.Parse(ctx, content, language)
	if err != nil {
		return astparse.ParseResult{}, err
	}

	ix.cache.Store(absPath, mtime, hash, language, size, result)
	if err := ix.store.ASTCachePut(graphstore.ASTCacheEntry{
		FilePath:    rel,
		ContentHash: hash,
		MTime:       mtime,
		Language:    language,
		Result:      result,
		CachedAt:    time.Now().UTC(),
		ParseTimeMS: result.ParseTimeMS,
		FileSize:    size,
	}); err != nil {
		return astparse.ParseResult{}, err
	}
	return result, nil
}

// refreshFileRow rewrites just the file row, preserving dependents.
func (ix *Indexer) refreshFileRow(file graphstore.FileRow) error {
	symbols, err := ix.store.SymbolsForFile(file.Path)
	if err != nil {
		return err
	}
	imports, err := ix.store.ImportsForFile(file.Path)
	if err != nil {
		return err
	}
	exports, err := ix.store.ExportsForFile(file.Path)
	if err != nil {
		return err
	}
	doc, ok, err := ix.store.GetBM25Doc(file.Path)
	if err != nil {
		return err
	}
	if !ok || doc.Tokens == nil {
		doc = graphstore.BM25DocRow{ID: file.Path, Tokens: map[string]int{}}
	}
	return ix.store.ReplaceFile(file, symbols, imports, exports, doc)
}

// persistFile commits one file's replacement: file row, symbols,
// imports, exports, and BM25 document in one transaction, then updates
// the in-memory keyword index.
func (ix *Indexer) persistFile(pf parsedFile) error {
	symbols := make([]graphstore.SymbolRow, 0, len(pf.result.Symbols))
	for _, sym := range pf.result.Symbols {
		symbols = append(symbols, graphstore.SymbolRow{
			FilePath:         pf.relPath,
			Name:             sym.Name,
			Kind:             string(sym.Kind),
			Signature:        sym.Signature,
			Location:         sym.Location,
			ParentSymbolName: sym.ParentName,
			IsExported:       sym.IsExported,
		})
	}
	imports := make([]graphstore.ImportRow, 0, len(pf.result.Imports))
	for _, imp := range pf.result.Imports {
		imports = append(imports, graphstore.ImportRow{
			FilePath:     pf.relPath,
			Module:       imp.Module,
			ImportedName: imp.ImportedName,
			IsExternal:   imp.IsExternal,
		})
	}

	tokens, length := bm25.TermFrequencies(pf.content)
	doc := graphstore.BM25DocRow{ID: pf.relPath, Length: length, Tokens: tokens, Content: pf.content}

	if err := ix.store.ReplaceFile(pf.file, symbols, imports, pf.result.Exports, doc); err != nil {
		return err
	}

	meta := bm25.DocMetadata{FileName: filepath.Base(pf.relPath)}
	for _, sym := range pf.result.Symbols {
		if sym.IsExported {
			meta.ExportedSymbols = append(meta.ExportedSymbols, sym.Name)
		} else {
			meta.DefinedSymbols = append(meta.DefinedSymbols, sym.Name)
		}
	}
	for _, imp := range pf.result.Imports {
		if imp.ImportedName != "" {
			meta.ImportedNames = append(meta.ImportedNames, imp.ImportedName)
		}
	}
	ix.keyword.Add(pf.relPath, pf.content, meta)
	return nil
}

// embedFiles sends one bounded content snippet per changed file to the
// embedding service and inserts the returned vectors. Files whose
// embedding failed on an earlier sweep are retried here too. Embedding
// failure leaves the file indexed without a vector.
func (ix *Indexer) embedFiles(ctx context.Context, changed []parsedFile, sweptFiles []string, addError func(string, error)) {
	if ix.embedder == nil {
		return
	}

	type candidate struct {
		path string
		text string
		meta vectorindex.Metadata
	}
	var candidates []candidate

	seen := make(map[string]bool, len(changed))
	for _, pf := range changed {
		seen[pf.relPath] = true
		candidates = append(candidates, candidate{
			path: pf.relPath,
			text: truncate(pf.content, embedSnippetLimit),
			meta: vectorindex.Metadata{
				Partition:   pf.file.Partition,
				Authority:   pf.file.Authority,
				ContentHash: pf.file.ContentHash,
			},
		})
	}

	// Retry files indexed earlier that still lack a vector.
	for _, rel := range sweptFiles {
		if seen[rel] || ix.vectors.Contains(Collection, rel) {
			continue
		}
		stored, exists, err := ix.store.GetFile(rel)
		if err != nil || !exists {
			continue
		}
		content, err := os.ReadFile(filepath.Join(ix.projectRoot, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path: rel,
			text: truncate(string(content), embedSnippetLimit),
			meta: vectorindex.Metadata{
				Partition:   stored.Partition,
				Authority:   stored.Authority,
				ContentHash: stored.ContentHash,
			},
		})
	}

	if len(candidates) == 0 {
		return
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.text
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		ix.logger.Warn("embedding batch failed, files remain indexed without vectors",
			"files", len(candidates), "error", err)
		return
	}

	rows := make([]vectorindex.Row, 0, len(candidates))
	for i, c := range candidates {
		if i >= len(vectors) || vectors[i] == nil {
			continue
		}
		rows = append(rows, vectorindex.Row{
			ID:       c.path,
			Content:  c.text,
			Vector:   vectors[i],
			Metadata: c.meta,
		})
	}
	if len(rows) == 0 {
		return
	}
	if err := ix.vectors.Add(Collection, rows); err != nil {
		addError("", err)
	}
}

// removeAbsent deletes files missing from the discovery set, with all
// their dependents, transactionally.
func (ix *Indexer) removeAbsent(discovered []string) error {
	present := make(map[string]bool, len(discovered))
	for _, rel := range discovered {
		present[rel] = true
	}

	stored, err := ix.store.AllFilePaths()
	if err != nil {
		return err
	}

	var gone []string
	for _, rel := range stored {
		if !present[rel] {
			gone = append(gone, rel)
		}
	}
	if len(gone) == 0 {
		return nil
	}

	if err := ix.store.DeleteFiles(gone); err != nil {
		return err
	}
	for _, rel := range gone {
		ix.keyword.Remove(rel)
		ix.cache.Remove(filepath.Join(ix.projectRoot, filepath.FromSlash(rel)))
	}
	ix.vectors.Remove(Collection, gone)

	ix.logger.Info("removed files absent from sweep", "count", len(gone))
	return nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
