package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"getUserById", []string{"get", "user", "by", "id"}},
		{"snake_case_name", []string{"snake", "case", "name"}},
		{"parseHTTPRequest", []string{"parse", "http", "request"}},
		{"a b xy", []string{"xy"}},
		{"", nil},
		{"foo.bar(baz)", []string{"foo", "bar", "baz"}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	ix := New(DefaultParams())
	assert.Empty(t, ix.Search("anything", 10))
}

func TestSearchRanksRelevantDocFirst(t *testing.T) {
	ix := New(DefaultParams())
	ix.Add("auth.ts", "authentication logic for user login sessions", DocMetadata{FileName: "auth.ts"})
	ix.Add("math.ts", "vector math utilities dot product norms", DocMetadata{FileName: "math.ts"})
	ix.Add("db.ts", "database connection pooling and login audit", DocMetadata{FileName: "db.ts"})

	results := ix.Search("authentication login", 10)
	require.NotEmpty(t, results)
	assert.Equal(t, "auth.ts", results[0].ID)
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestAddReplacesDocument(t *testing.T) {
	ix := New(DefaultParams())
	ix.Add("a", "alpha beta", DocMetadata{})
	ix.Add("a", "gamma delta", DocMetadata{})

	assert.Equal(t, 1, ix.Len())
	assert.Empty(t, ix.Search("alpha", 10))
	assert.Len(t, ix.Search("gamma", 10), 1)
}

func TestRemove(t *testing.T) {
	ix := New(DefaultParams())
	ix.Add("a", "alpha beta", DocMetadata{})
	ix.Remove("a")
	ix.Remove("unknown") // no-op

	assert.Equal(t, 0, ix.Len())
	assert.Empty(t, ix.Search("alpha", 10))
}

func TestTieBreakByID(t *testing.T) {
	ix := New(DefaultParams())
	ix.Add("bb", "token token filler words here", DocMetadata{})
	ix.Add("aa", "token token filler words here", DocMetadata{})

	results := ix.Search("token", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "aa", results[0].ID)
	assert.Equal(t, "bb", results[1].ID)
}

func TestSymbolAwareBoostOrdering(t *testing.T) {
	boosts := DefaultBoostConfig()
	ix := New(DefaultParams())

	// a.ts defines and exports foo; b.ts only mentions foo in content.
	ix.Add("a.ts", "export function foo() { return 1 }", DocMetadata{
		FileName:        "a.ts",
		ExportedSymbols: []string{"foo"},
		DefinedSymbols:  []string{"foo"},
	})
	ix.Add("b.ts", "import { foo } from './a'; foo();", DocMetadata{
		FileName:      "b.ts",
		ImportedNames: []string{"foo"},
	})

	results := ix.SearchSymbolAware("foo", 10, boosts)
	require.Len(t, results, 2)
	assert.Equal(t, "a.ts", results[0].ID)
	assert.Equal(t, "b.ts", results[1].ID)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestSymbolAwareFileNameMatch(t *testing.T) {
	boosts := DefaultBoostConfig()
	ix := New(DefaultParams())

	ix.Add("scheduler.ts", "scheduler task queue processing", DocMetadata{FileName: "scheduler.ts"})
	ix.Add("other.ts", "scheduler scheduler scheduler notes", DocMetadata{FileName: "other.ts"})

	plain := ix.Search("scheduler", 10)
	boosted := ix.SearchSymbolAware("scheduler", 10, boosts)
	require.NotEmpty(t, boosted)

	// File-name match multiplies scheduler.ts's score relative to plain BM25.
	var plainScore, boostedScore float64
	for _, r := range plain {
		if r.ID == "scheduler.ts" {
			plainScore = r.Score
		}
	}
	for _, r := range boosted {
		if r.ID == "scheduler.ts" {
			boostedScore = r.Score
		}
	}
	assert.InDelta(t, plainScore*(1+boosts.FileNameMatchBoost), boostedScore, 1e-9)
}

func TestSymbolBoostClamped(t *testing.T) {
	cfg := BoostConfig{FileNameMatchBoost: 100, AllSymbolBoost: 100}
	doc := &document{meta: DocMetadata{FileName: "foo.ts", ExportedSymbols: []string{"foo"}}}
	m := symbolBoost([]string{"foo"}, doc, cfg)
	assert.Equal(t, 5.0, m)
}

func TestImportOnlyPenalty(t *testing.T) {
	cfg := DefaultBoostConfig()
	doc := &document{meta: DocMetadata{FileName: "b.ts", ImportedNames: []string{"foo"}}}
	m := symbolBoost([]string{"foo"}, doc, cfg)
	assert.InDelta(t, 1-cfg.ImportOnlyPenalty, m, 1e-9)
}

func TestSnippetContainsQueryTerm(t *testing.T) {
	ix := New(DefaultParams())
	long := "padding words before the match " +
		"authentication appears right here in the middle of a longer document " +
		"and then some trailing context after it"
	ix.Add("doc", long, DocMetadata{})

	results := ix.Search("authentication", 1)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Snippet, "authentication")
}
