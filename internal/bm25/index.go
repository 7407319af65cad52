// Package bm25 implements keyword retrieval over tokenized file content:
// an in-memory inverted index scored with classic BM25, plus a
// symbol-aware variant that boosts documents whose file name or
// defined/exported symbols match the query.
package bm25

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// Params are the BM25 tuning constants.
type Params struct {
	K1 float64
	B  float64
}

// DefaultParams returns the classic k1=1.5, b=0.75.
func DefaultParams() Params {
	return Params{K1: 1.5, B: 0.75}
}

// DocMetadata carries per-document symbol information used by the
// symbol-aware search path, plus free-form metadata echoed in results.
type DocMetadata struct {
	FileName        string
	ExportedSymbols []string
	DefinedSymbols  []string
	ImportedNames   []string
	Extra           map[string]string
}

type document struct {
	id     string
	tokens map[string]int
	length int
	text   string
	meta   DocMetadata
}

// Result is one search hit.
type Result struct {
	ID      string
	Score   float64
	Snippet string
	Meta    DocMetadata
}

// Index is the in-memory inverted index. Safe for concurrent use: one
// writer at a time, multiple readers.
type Index struct {
	mu       sync.RWMutex
	params   Params
	docs     map[string]*document
	df       map[string]int
	totalLen int
}

// New creates an empty index with the given parameters.
func New(params Params) *Index {
	return &Index{
		params: params,
		docs:   make(map[string]*document),
		df:     make(map[string]int),
	}
}

// Add tokenizes text and upserts the document, replacing any previous
// version with the same id.
func (ix *Index) Add(id, text string, meta DocMetadata) {
	tokens, length := TermFrequencies(text)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.removeLocked(id)
	doc := &document{id: id, tokens: tokens, length: length, text: text, meta: meta}
	ix.docs[id] = doc
	ix.totalLen += length
	for term := range tokens {
		ix.df[term]++
	}
}

// Remove deletes a document and decrements document frequencies.
// Removing an unknown id is a no-op.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(id)
}

func (ix *Index) removeLocked(id string) {
	doc, ok := ix.docs[id]
	if !ok {
		return
	}
	for term := range doc.tokens {
		if ix.df[term] <= 1 {
			delete(ix.df, term)
		} else {
			ix.df[term]--
		}
	}
	ix.totalLen -= doc.length
	delete(ix.docs, id)
}

// Len returns the number of indexed documents.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Search scores all documents against query with classic BM25 and
// returns the top k, ties broken by id ascending. An empty index or
// query yields no results.
func (ix *Index) Search(query string, k int) []Result {
	return ix.search(query, k, nil)
}

// SearchSymbolAware runs the same BM25 core, then multiplies each score
// by the symbol-role boost derived from boosts and the document's
// metadata. Multipliers are clamped to [0, 5].
func (ix *Index) SearchSymbolAware(query string, k int, boosts BoostConfig) []Result {
	terms := Tokenize(query)
	return ix.search(query, k, func(doc *document, score float64) float64 {
		return score * symbolBoost(terms, doc, boosts)
	})
}

func (ix *Index) search(query string, k int, rescore func(*document, float64) float64) []Result {
	queryTerms := Tokenize(query)
	if len(queryTerms) == 0 || k <= 0 {
		return nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := len(ix.docs)
	if n == 0 {
		return nil
	}
	avgLen := float64(ix.totalLen) / float64(n)
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[string]float64)
	for _, term := range queryTerms {
		df, ok := ix.df[term]
		if !ok {
			continue
		}
		idf := math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
		for _, doc := range ix.docs {
			tf, ok := doc.tokens[term]
			if !ok {
				continue
			}
			num := float64(tf) * (ix.params.K1 + 1)
			den := float64(tf) + ix.params.K1*(1-ix.params.B+ix.params.B*float64(doc.length)/avgLen)
			scores[doc.id] += idf * num / den
		}
	}

	results := make([]Result, 0, len(scores))
	for id, score := range scores {
		doc := ix.docs[id]
		if rescore != nil {
			score = rescore(doc, score)
		}
		if score < 0 {
			score = 0
		}
		results = append(results, Result{
			ID:      id,
			Score:   score,
			Snippet: snippet(doc.text, queryTerms),
			Meta:    doc.meta,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results
}

const snippetWindow = 160

// snippet extracts a short window of the document text around the first
// query-term occurrence.
func snippet(text string, terms []string) string {
	lower := strings.ToLower(text)
	pos := -1
	for _, term := range terms {
		if i := strings.Index(lower, term); i >= 0 && (pos < 0 || i < pos) {
			pos = i
		}
	}
	if pos < 0 {
		pos = 0
	}
	start := pos - snippetWindow/4
	if start < 0 {
		start = 0
	}
	end := start + snippetWindow
	if end > len(text) {
		end = len(text)
	}
	s := strings.TrimSpace(text[start:end])
	return strings.Join(strings.Fields(s), " ")
}
