package symbolgraph

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/basinlabs/symgraph/internal/fuser"
	"github.com/basinlabs/symgraph/internal/partition"
	"github.com/basinlabs/symgraph/internal/sgerrors"
)

// defaultSearchDeadline bounds any single search call.
const defaultSearchDeadline = 5 * time.Second

// SearchKeyword runs symbol-aware BM25 search and attaches each file's
// stored partition and authority.
func (ix *Indexer) SearchKeyword(ctx context.Context, query string, k int) ([]Hit, error) {
	ctx, cancel := ensureDeadline(ctx)
	defer cancel()

	results := ix.keyword.SearchSymbolAware(query, k, ix.boosts)
	if err := checkDeadline(ctx); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for i, r := range results {
		meta := HitMetadata{Partition: "project", Authority: 0.5, BM25Rank: i + 1, BM25Score: r.Score}
		if stored, ok, err := ix.store.GetFile(r.ID); err == nil && ok {
			meta.Partition = stored.Partition
			meta.Authority = stored.Authority
		}
		hits = append(hits, Hit{
			File:     r.ID,
			Score:    r.Score,
			Snippet:  r.Snippet,
			Method:   MethodKeyword,
			Metadata: meta,
		})
	}
	return hits, nil
}

// SearchSemantic embeds the query once, runs nearest-neighbor search,
// and reweights each hit by its file's authority:
// final = original * (0.5 + 0.5*authority).
func (ix *Indexer) SearchSemantic(ctx context.Context, query string, k int) ([]Hit, error) {
	ctx, cancel := ensureDeadline(ctx)
	defer cancel()

	if ix.embedder == nil {
		return nil, nil
	}
	vector, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		// Embedding service down: semantic search degrades to empty.
		ix.logger.Warn("query embedding failed", "error", err)
		return nil, nil
	}

	results, err := ix.vectors.Search(Collection, vector, k, 0)
	if err != nil {
		return nil, err
	}
	if err := checkDeadline(ctx); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		authority := r.Metadata.Authority
		part := r.Metadata.Partition
		if stored, ok, err := ix.store.GetFile(r.ID); err == nil && ok {
			authority = stored.Authority
			part = stored.Partition
		}
		final := r.Score * partition.AuthorityFactor(authority)
		hits = append(hits, Hit{
			File:    r.ID,
			Score:   final,
			Snippet: truncate(r.Content, 200),
			Method:  MethodSemantic,
			Metadata: HitMetadata{
				Partition:     part,
				Authority:     authority,
				OriginalScore: r.Score,
				SemanticScore: r.Score,
			},
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].File < hits[j].File
	})
	for i := range hits {
		hits[i].Metadata.SemanticRank = i + 1
	}
	return hits, nil
}

// SearchHybrid fetches BM25 top-2k and semantic top-2k in parallel,
// fuses them with RRF, multiplies by the authority factor, and returns
// the top-k with per-source provenance.
func (ix *Indexer) SearchHybrid(ctx context.Context, query string, k int) ([]Hit, error) {
	ctx, cancel := ensureDeadline(ctx)
	defer cancel()

	var keywordHits, semanticHits []Hit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		keywordHits, err = ix.SearchKeyword(gctx, query, 2*k)
		return err
	})
	g.Go(func() error {
		var err error
		semanticHits, err = ix.SearchSemantic(gctx, query, 2*k)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	listA := make([]fuser.Item, len(keywordHits))
	for i, h := range keywordHits {
		listA[i] = fuser.Item{ID: h.File, Score: h.Score}
	}
	listB := make([]fuser.Item, len(semanticHits))
	for i, h := range semanticHits {
		listB[i] = fuser.Item{ID: h.File, Score: h.Metadata.SemanticScore}
	}

	fused := fuser.Fuse(listA, listB, fuser.Config{
		C:       ix.cfg.Search.RRFConstant,
		WeightA: ix.cfg.Search.BM25Weight,
		WeightB: ix.cfg.Search.SemanticWeight,
	})

	snippets := make(map[string]string, len(keywordHits))
	for _, h := range keywordHits {
		snippets[h.File] = h.Snippet
	}
	for _, h := range semanticHits {
		if _, ok := snippets[h.File]; !ok {
			snippets[h.File] = h.Snippet
		}
	}

	hits := make([]Hit, 0, len(fused))
	for _, f := range fused {
		authority, part := 0.5, "project"
		if stored, ok, err := ix.store.GetFile(f.ID); err == nil && ok {
			authority = stored.Authority
			part = stored.Partition
		}
		final := f.RRFScore * partition.AuthorityFactor(authority)
		hits = append(hits, Hit{
			File:    f.ID,
			Score:   final,
			Snippet: snippets[f.ID],
			Method:  MethodHybrid,
			Metadata: HitMetadata{
				Partition:     part,
				Authority:     authority,
				BM25Rank:      f.RankA,
				SemanticRank:  f.RankB,
				BM25Score:     f.ScoreA,
				SemanticScore: f.ScoreB,
			},
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].File < hits[j].File
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// checkDeadline converts a blown deadline into the structured Timeout
// error from the taxonomy.
func checkDeadline(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return sgerrors.TimeoutErr("search deadline exceeded")
		}
		return sgerrors.CancelledErr("search cancelled")
	}
	return nil
}
