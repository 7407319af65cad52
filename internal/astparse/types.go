package astparse

import "fmt"

// SymbolKind enumerates the symbol kinds stored in the graph.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindClass     SymbolKind = "class"
	KindMethod    SymbolKind = "method"
	KindInterface SymbolKind = "interface"
	KindType      SymbolKind = "type"
	KindEnum      SymbolKind = "enum"
	KindVariable  SymbolKind = "variable"
)

// Symbol is a language-independent symbol extracted from an AST.
type Symbol struct {
	Name       string
	Kind       SymbolKind
	Signature  string
	Location   string // "sLine:sCol-eLine:eCol", see EncodeLocation
	ParentName string
	IsExported bool
}

// Import is a language-independent import edge.
type Import struct {
	Module       string
	ImportedName string
	IsExternal   bool
}

// ParseResult is the output of parsing one file.
type ParseResult struct {
	Symbols     []Symbol
	Imports     []Import
	Exports     []string
	Outline     string
	Language    string
	ParseTimeMS int64
	Diagnostic  string // non-empty when parsing failed but was tolerated
}

// EncodeLocation renders a symbol span as the compact
// "sLine:sCol-eLine:eCol" string. Coordinates are 1-based; the parser must
// never emit "undefined" here, so callers always go through this helper.
func EncodeLocation(sLine, sCol, eLine, eCol int) string {
	return fmt.Sprintf("%d:%d-%d:%d", sLine, sCol, eLine, eCol)
}
