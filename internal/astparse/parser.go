package astparse

import (
	"context"
	"time"

	sitter "github.com/smacker/go-tree-sitter"
)

// Parser wraps a tree-sitter parser plus a language registry, producing
// ParseResult values for the symbol graph indexer. It is not safe for
// concurrent use by multiple goroutines; the indexing worker pool gives
// each worker its own Parser.
type Parser struct {
	ts       *sitter.Parser
	registry *Registry
}

// New creates a Parser bound to the process-wide default registry.
func New() *Parser {
	return &Parser{ts: sitter.NewParser(), registry: DefaultRegistry()}
}

// NewWithRegistry creates a Parser bound to a custom registry, useful for
// tests that only want a subset of languages.
func NewWithRegistry(registry *Registry) *Parser {
	return &Parser{ts: sitter.NewParser(), registry: registry}
}

// Close releases the underlying tree-sitter parser.
func (p *Parser) Close() {
	if p.ts != nil {
		p.ts.Close()
	}
}

// Parse extracts symbols, imports, exports, and an outline from source.
// Unsupported languages (e.g. markdown, which has no tree-sitter grammar
// registered) return an empty-but-valid ParseResult so the file can still
// be BM25- and vector-indexed on content alone, matching the tolerant
// failure semantics for non-code files.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (ParseResult, error) {
	start := time.Now()

	tsLang, ok := p.registry.TreeSitterLanguage(language)
	if !ok {
		return ParseResult{
			Language:    language,
			ParseTimeMS: time.Since(start).Milliseconds(),
		}, nil
	}

	p.ts.SetLanguage(tsLang)
	tree, err := p.ts.ParseCtx(ctx, nil, source)
	if err != nil {
		return ParseResult{
			Language:    language,
			Diagnostic:  "parse failed: " + err.Error(),
			ParseTimeMS: time.Since(start).Milliseconds(),
		}, nil
	}
	if tree == nil {
		return ParseResult{
			Language:    language,
			Diagnostic:  "parse failed: nil tree",
			ParseTimeMS: time.Since(start).Milliseconds(),
		}, nil
	}

	cfg, _ := p.registry.Config(language)
	root := tree.RootNode()

	extractor := &extractor{source: source, cfg: cfg}
	symbols := extractor.extractSymbols(root)
	imports := extractor.extractImports(root)
	exports := exportedNames(symbols)
	outline := buildOutline(symbols)

	result := ParseResult{
		Symbols:     symbols,
		Imports:     imports,
		Exports:     exports,
		Outline:     outline,
		Language:    language,
		ParseTimeMS: time.Since(start).Milliseconds(),
	}
	if root.HasError() {
		result.Diagnostic = "parsed with syntax errors"
	}
	return result, nil
}

func exportedNames(symbols []Symbol) []string {
	names := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s.IsExported {
			names = append(names, s.Name)
		}
	}
	return names
}

// buildOutline renders a one-line-per-symbol indented outline by grouping
// symbols under their ParentName, per the "hierarchical outline" in the
// parser contract.
func buildOutline(symbols []Symbol) string {
	byParent := make(map[string][]Symbol)
	for _, s := range symbols {
		byParent[s.ParentName] = append(byParent[s.ParentName], s)
	}

	var out []byte
	var walk func(parent string, depth int)
	walk = func(parent string, depth int) {
		for _, s := range byParent[parent] {
			for i := 0; i < depth; i++ {
				out = append(out, ' ', ' ')
			}
			out = append(out, []byte(string(s.Kind)+" "+s.Name+"\n")...)
			walk(s.Name, depth+1)
		}
	}
	walk("", 0)
	return string(out)
}
