package fuser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(pairs ...interface{}) []Item {
	out := make([]Item, 0, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out = append(out, Item{ID: pairs[i].(string), Score: pairs[i+1].(float64)})
	}
	return out
}

func TestFuseSeedScenario(t *testing.T) {
	// BM25=[f1, f2, f3], SEM=[f2, f1, f4], c=60.
	bm25 := items("f1", 3.0, "f2", 2.0, "f3", 1.0)
	sem := items("f2", 0.9, "f1", 0.8, "f4", 0.7)

	fused := Fuse(bm25, sem, DefaultConfig())
	require.Len(t, fused, 4)

	byID := make(map[string]Fused)
	for _, f := range fused {
		byID[f.ID] = f
	}

	expectedConsensus := 1.0/61 + 1.0/62
	assert.InDelta(t, expectedConsensus, byID["f1"].RRFScore, 1e-9)
	assert.InDelta(t, expectedConsensus, byID["f2"].RRFScore, 1e-9)
	assert.InDelta(t, 1.0/63, byID["f3"].RRFScore, 1e-9)
	assert.InDelta(t, 1.0/63, byID["f4"].RRFScore, 1e-9)

	// f1 and f2 must rank above f3 and f4.
	assert.Contains(t, []string{"f1", "f2"}, fused[0].ID)
	assert.Contains(t, []string{"f1", "f2"}, fused[1].ID)
	assert.Contains(t, []string{"f3", "f4"}, fused[2].ID)
	assert.Contains(t, []string{"f3", "f4"}, fused[3].ID)
}

func TestFuseScaleInvariance(t *testing.T) {
	bm25 := items("a", 10.0, "b", 5.0, "c", 1.0)
	sem := items("b", 0.9, "c", 0.5)

	base := Fuse(bm25, sem, DefaultConfig())

	scaled := make([]Item, len(bm25))
	for i, it := range bm25 {
		scaled[i] = Item{ID: it.ID, Score: it.Score * 1000}
	}
	rescored := Fuse(scaled, sem, DefaultConfig())

	require.Equal(t, len(base), len(rescored))
	for i := range base {
		assert.Equal(t, base[i].ID, rescored[i].ID)
		assert.InDelta(t, base[i].RRFScore, rescored[i].RRFScore, 1e-12)
	}
}

func TestFuseConsensusBoost(t *testing.T) {
	// A doc ranked first in both sources must outrank any doc present in
	// only one source, regardless of that doc's rank there.
	bm25 := items("both", 1.0, "bm25only", 0.9)
	sem := items("both", 1.0, "semonly", 0.9)

	fused := Fuse(bm25, sem, DefaultConfig())
	require.NotEmpty(t, fused)
	assert.Equal(t, "both", fused[0].ID)
	assert.Greater(t, fused[0].RRFScore, fused[1].RRFScore)
}

func TestFuseProvenance(t *testing.T) {
	fused := Fuse(items("a", 2.0), items("a", 0.8, "b", 0.5), DefaultConfig())

	byID := make(map[string]Fused)
	for _, f := range fused {
		byID[f.ID] = f
	}
	a := byID["a"]
	assert.Equal(t, 1, a.RankA)
	assert.Equal(t, 1, a.RankB)
	assert.Equal(t, 2.0, a.ScoreA)
	assert.Equal(t, 0.8, a.ScoreB)

	b := byID["b"]
	assert.Equal(t, 0, b.RankA)
	assert.Equal(t, 2, b.RankB)
}

func TestFuseWeights(t *testing.T) {
	cfg := Config{C: 60, WeightA: 2, WeightB: 0}
	fused := Fuse(items("a", 1.0), items("b", 1.0), cfg)

	byID := make(map[string]Fused)
	for _, f := range fused {
		byID[f.ID] = f
	}
	assert.InDelta(t, 2.0/61, byID["a"].RRFScore, 1e-12)
	assert.Equal(t, 0.0, byID["b"].RRFScore)
}

func TestFuseEmptyInputs(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil, DefaultConfig()))

	oneSided := Fuse(items("a", 1.0), nil, DefaultConfig())
	require.Len(t, oneSided, 1)
	assert.Equal(t, "a", oneSided[0].ID)
}

func TestFuseDeterministicTieBreak(t *testing.T) {
	fused := Fuse(items("b", 1.0), items("a", 1.0), DefaultConfig())
	require.Len(t, fused, 2)
	// Equal scores: id ascending.
	assert.Equal(t, "a", fused[0].ID)
	assert.Equal(t, "b", fused[1].ID)
}
