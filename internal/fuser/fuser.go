// Package fuser merges ranked result lists with Reciprocal Rank Fusion:
// rrf(id) = Σ_s w_s / (c + rank_s(id)) over the sources that rank id,
// with 1-based ranks. Only ranks matter, so the fusion is invariant to
// any monotone rescaling of the input scores.
package fuser

import "sort"

// Item is one entry of an input ranked list, already sorted best-first.
type Item struct {
	ID    string
	Score float64
}

// Fused is one output entry with provenance back into both sources.
// Rank and score fields are zero-valued when the id was absent from
// that source; RankA/RankB are 1-based when present.
type Fused struct {
	ID       string
	RRFScore float64
	RankA    int
	RankB    int
	ScoreA   float64
	ScoreB   float64
}

// Config tunes the fusion.
type Config struct {
	C       float64
	WeightA float64
	WeightB float64
}

// DefaultConfig returns c=60 with unit weights.
func DefaultConfig() Config {
	return Config{C: 60, WeightA: 1, WeightB: 1}
}

// Fuse combines two ranked lists. The output is sorted descending by
// RRFScore, ties broken by ID ascending for determinism.
func Fuse(listA, listB []Item, cfg Config) []Fused {
	if cfg.C <= 0 {
		cfg.C = 60
	}

	merged := make(map[string]*Fused)
	for i, item := range listA {
		merged[item.ID] = &Fused{
			ID:       item.ID,
			RankA:    i + 1,
			ScoreA:   item.Score,
			RRFScore: cfg.WeightA / (cfg.C + float64(i+1)),
		}
	}
	for i, item := range listB {
		f, ok := merged[item.ID]
		if !ok {
			f = &Fused{ID: item.ID}
			merged[item.ID] = f
		}
		f.RankB = i + 1
		f.ScoreB = item.Score
		f.RRFScore += cfg.WeightB / (cfg.C + float64(i+1))
	}

	out := make([]Fused, 0, len(merged))
	for _, f := range merged {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].ID < out[j].ID
	})
	return out
}
