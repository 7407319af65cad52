// Package symbolgraph is the indexing orchestrator: it owns the
// relational symbol graph, the in-memory BM25 index, the vector
// collection, and the embedding queue, and coordinates the keyword,
// semantic, and hybrid search paths over them.
package symbolgraph

import (
	"context"
	"time"
)

// FileError is one per-file failure collected during a sweep.
type FileError struct {
	Path    string `json:"path"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SweepStats summarizes one indexing sweep.
type SweepStats struct {
	TotalFiles          int         `json:"total_files"`
	Indexed             int         `json:"indexed"`
	AlreadyIndexed      int         `json:"already_indexed"`
	Skipped             int         `json:"skipped"`
	FilesWithEmbeddings int         `json:"files_with_embeddings"`
	TotalSymbols        int         `json:"total_symbols"`
	Errors              []FileError `json:"errors"`
	Duration            time.Duration `json:"-"`
}

// GraphStats is the aggregate view returned by Stats.
type GraphStats struct {
	TotalFiles          int            `json:"total_files"`
	TotalSymbols        int            `json:"total_symbols"`
	TotalImports        int            `json:"total_imports"`
	FilesWithEmbeddings int            `json:"files_with_embeddings"`
	ByLanguage          map[string]int `json:"by_language"`
}

// HitMetadata carries provenance for one search hit.
type HitMetadata struct {
	Partition     string  `json:"partition"`
	Authority     float64 `json:"authority"`
	OriginalScore float64 `json:"original_score,omitempty"`
	BM25Rank      int     `json:"bm25_rank,omitempty"`
	SemanticRank  int     `json:"semantic_rank,omitempty"`
	BM25Score     float64 `json:"bm25_score,omitempty"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
}

// Hit is one ranked search result.
type Hit struct {
	File     string      `json:"file"`
	Score    float64     `json:"score"`
	Snippet  string      `json:"snippet,omitempty"`
	Method   string      `json:"method"`
	Metadata HitMetadata `json:"metadata"`
}

// Embedder is the embedding dependency, satisfied by
// embedclient.Client and by test fakes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Close()
}

// Search methods.
const (
	MethodKeyword  = "keyword"
	MethodSemantic = "semantic"
	MethodHybrid   = "hybrid"
)
