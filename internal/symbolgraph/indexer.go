package symbolgraph

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/basinlabs/symgraph/internal/astparse"
	"github.com/basinlabs/symgraph/internal/bm25"
	"github.com/basinlabs/symgraph/internal/config"
	"github.com/basinlabs/symgraph/internal/discover"
	"github.com/basinlabs/symgraph/internal/graphstore"
	"github.com/basinlabs/symgraph/internal/partition"
	"github.com/basinlabs/symgraph/internal/sgerrors"
	"github.com/basinlabs/symgraph/internal/storagepath"
	"github.com/basinlabs/symgraph/internal/vectorindex"
)

// Collection is the vector collection files embed into.
const Collection = "files"

// Options configures New beyond the loaded config.
type Options struct {
	// Embedder is the embedding client; nil disables embedding, and
	// semantic search then returns no hits.
	Embedder Embedder
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// GraphDBName is the SQLite file name under sqlite/.
	GraphDBName string
}

// Indexer owns the stores and coordinates indexing and search. Create
// with New, release with Close. All state is explicit; there is no
// package-level singleton.
type Indexer struct {
	cfg         *config.Config
	projectRoot string
	storage     storagepath.Config

	store    *graphstore.Store
	keyword  *bm25.Index
	vectors  *vectorindex.Store
	embedder Embedder

	classifier *partition.Classifier
	registry   *astparse.Registry
	cache      *astparse.Cache
	matcher    *discover.Matcher
	boosts     bm25.BoostConfig
	logger     *slog.Logger
}

// New resolves storage paths, opens or creates every store, rebuilds
// the in-memory BM25 index from the persisted documents, and loads the
// vector snapshots. Invalid configuration is fatal here.
func New(projectRoot string, cfg *config.Config, opts Options) (*Indexer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, sgerrors.ConfigErr("resolve project root", err)
	}

	storageCfg, err := storagepath.Resolve(absRoot, cfg.Storage.PreferProjectStorage)
	if err != nil {
		return nil, sgerrors.ConfigErr("resolve storage paths", err)
	}
	if err := storagepath.Ensure(storageCfg); err != nil {
		return nil, sgerrors.ConfigErr("ensure storage tree", err)
	}

	matcher, err := discover.NewMatcher(discover.Options{
		Include: cfg.Paths.Include,
		Exclude: cfg.Paths.Exclude,
	})
	if err != nil {
		return nil, err
	}

	dbName := opts.GraphDBName
	if dbName == "" {
		dbName = "symgraph.db"
	}
	store, err := graphstore.Open(storagepath.SQLitePath(storageCfg, dbName))
	if err != nil {
		return nil, err
	}

	boosts, err := store.BoostConfig()
	if err != nil {
		store.Close()
		return nil, err
	}

	vectors, err := vectorindex.Load(storagepath.VectorDBPath(storageCfg))
	if err != nil {
		store.Close()
		return nil, err
	}
	vectors.CreateCollection(Collection)

	keyword := bm25.New(bm25.Params{K1: cfg.Search.BM25K1, B: cfg.Search.BM25B})
	if err := rebuildKeywordIndex(store, keyword); err != nil {
		store.Close()
		return nil, err
	}

	cache, err := astparse.NewCache(astparse.DefaultCacheSize)
	if err != nil {
		store.Close()
		return nil, sgerrors.ConfigErr("create ast cache", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ix := &Indexer{
		cfg:         cfg,
		projectRoot: absRoot,
		storage:     storageCfg,
		store:       store,
		keyword:     keyword,
		vectors:     vectors,
		embedder:    opts.Embedder,
		classifier:  partition.Default(),
		registry:    astparse.DefaultRegistry(),
		cache:       cache,
		matcher:     matcher,
		boosts:      boosts,
		logger:      logger,
	}
	return ix, nil
}

// rebuildKeywordIndex reloads the in-memory BM25 index from the
// persisted documents and symbol metadata.
func rebuildKeywordIndex(store *graphstore.Store, keyword *bm25.Index) error {
	docs, err := store.AllBM25Docs()
	if err != nil {
		return err
	}
	for _, doc := range docs {
		meta, err := docMetadata(store, doc.ID)
		if err != nil {
			return err
		}
		keyword.Add(doc.ID, doc.Content, meta)
	}
	return nil
}

// docMetadata derives the symbol-aware boost metadata for one file from
// the relational graph.
func docMetadata(store *graphstore.Store, path string) (bm25.DocMetadata, error) {
	symbols, err := store.SymbolsForFile(path)
	if err != nil {
		return bm25.DocMetadata{}, err
	}
	imports, err := store.ImportsForFile(path)
	if err != nil {
		return bm25.DocMetadata{}, err
	}

	meta := bm25.DocMetadata{FileName: filepath.Base(path)}
	for _, sym := range symbols {
		if sym.IsExported {
			meta.ExportedSymbols = append(meta.ExportedSymbols, sym.Name)
		} else {
			meta.DefinedSymbols = append(meta.DefinedSymbols, sym.Name)
		}
	}
	for _, imp := range imports {
		if imp.ImportedName != "" {
			meta.ImportedNames = append(meta.ImportedNames, imp.ImportedName)
		}
	}
	return meta, nil
}

// SetBoostConfig persists new symbol-aware boost weights; they take
// effect immediately.
func (ix *Indexer) SetBoostConfig(cfg bm25.BoostConfig) error {
	if err := ix.store.SetBoostConfig(cfg); err != nil {
		return err
	}
	ix.boosts = cfg
	return nil
}

// Stats reports the aggregate graph state.
func (ix *Indexer) Stats() (GraphStats, error) {
	stored, err := ix.store.Stats()
	if err != nil {
		return GraphStats{}, err
	}
	return GraphStats{
		TotalFiles:          stored.TotalFiles,
		TotalSymbols:        stored.TotalSymbols,
		TotalImports:        stored.TotalImports,
		FilesWithEmbeddings: ix.vectors.Count(Collection),
		ByLanguage:          stored.ByLanguage,
	}, nil
}

// CacheHitRate exposes the AST cache hit ratio for the CLI surface.
func (ix *Indexer) CacheHitRate() float64 {
	return ix.cache.HitRate()
}

// StoragePaths returns the resolved storage configuration.
func (ix *Indexer) StoragePaths() storagepath.Config {
	return ix.storage
}

// Close flushes the embedding queue, persists the vector snapshots, and
// closes the relational store.
func (ix *Indexer) Close() error {
	if ix.embedder != nil {
		ix.embedder.Close()
	}
	var firstErr error
	if err := ix.vectors.Save(storagepath.VectorDBPath(ix.storage)); err != nil {
		firstErr = err
	}
	if err := ix.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// languageFor maps a file path to a stored language label. Files without
// a registered grammar still get a stable label so by_language stats and
// BM25 indexing work for them.
func (ix *Indexer) languageFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := ix.registry.LanguageForExtension(ext); ok {
		return lang
	}
	switch ext {
	case ".md":
		return "markdown"
	default:
		return "text"
	}
}

// ensureDeadline applies the default per-call search deadline when the
// caller did not set one.
func ensureDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultSearchDeadline)
}
