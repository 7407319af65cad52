package astparse

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
)

// extractor walks a tree-sitter AST and produces language-independent
// Symbol and Import values, driven by LanguageConfig's declarative
// node-type tables instead of per-language branches.
type extractor struct {
	source []byte
	cfg    *LanguageConfig
}

func (e *extractor) extractSymbols(root *sitter.Node) []Symbol {
	if root == nil || e.cfg == nil {
		return []Symbol{}
	}
	symbols := make([]Symbol, 0, 16)
	e.walk(root, "", false, &symbols)
	return symbols
}

// walk recurses through the AST. parent is the enclosing class/interface
// name, or for a Go method its receiver's type name (symbols form a forest
// within a file); directExport is true only for
// the immediate children of a language's "export" wrapper node.
func (e *extractor) walk(n *sitter.Node, parent string, directExport bool, out *[]Symbol) {
	if n == nil {
		return
	}

	if e.isExportWrapper(n.Type()) {
		for i := 0; i < int(n.NamedChildCount()); i++ {
			e.walk(n.NamedChild(i), parent, true, out)
		}
		return
	}

	newParent := parent
	if kind, ok := e.classify(n.Type()); ok {
		if name := e.symbolName(n); name != "" {
			sym := Symbol{
				Name:       name,
				Kind:       kind,
				Signature:  firstLine(e.nodeText(n)),
				Location:   nodeLocation(n),
				ParentName: parent,
				IsExported: e.isExported(name, directExport),
			}
			if kind == KindMethod && parent == "" {
				if recv := n.ChildByFieldName("receiver"); recv != nil && recv.NamedChildCount() > 0 {
					t := recv.NamedChild(0).ChildByFieldName("type")
					for t != nil && t.Type() == "pointer_type" {
						t = t.NamedChild(0)
					}
					if t != nil && t.Type() == "type_identifier" {
						sym.ParentName = e.nodeText(t)
					}
				}
			}
			*out = append(*out, sym)
			if kind == KindClass || kind == KindInterface {
				newParent = name
			}
		}
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		e.walk(n.NamedChild(i), newParent, false, out)
	}
}

func (e *extractor) isExportWrapper(nodeType string) bool {
	return nodeType == "export_statement"
}

func (e *extractor) classify(nodeType string) (SymbolKind, bool) {
	switch {
	case contains(e.cfg.FunctionTypes, nodeType):
		return KindFunction, true
	case contains(e.cfg.MethodTypes, nodeType):
		return KindMethod, true
	case contains(e.cfg.ClassTypes, nodeType):
		return KindClass, true
	case contains(e.cfg.InterfaceTypes, nodeType):
		return KindInterface, true
	case contains(e.cfg.TypeDefTypes, nodeType):
		return KindType, true
	case contains(e.cfg.EnumTypes, nodeType):
		return KindEnum, true
	case contains(e.cfg.ConstantTypes, nodeType):
		return KindVariable, true
	case contains(e.cfg.VariableTypes, nodeType):
		return KindVariable, true
	default:
		return "", false
	}
}

// symbolName resolves a declaration node's identifier, first via the
// language's declared NameField, falling back to the first identifier-like
// descendant for grammars that nest the name (e.g. Go's const_spec/var_spec
// inside const_declaration/var_declaration).
func (e *extractor) symbolName(n *sitter.Node) string {
	if e.cfg.NameField != "" {
		if nameNode := n.ChildByFieldName(e.cfg.NameField); nameNode != nil {
			return e.nodeText(nameNode)
		}
	}
	return e.firstIdentifier(n)
}

func (e *extractor) firstIdentifier(n *sitter.Node) string {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "identifier", "type_identifier", "property_identifier", "field_identifier":
			return e.nodeText(child)
		case "const_spec", "var_spec", "type_spec", "identifier_list":
			if name := e.firstIdentifier(child); name != "" {
				return name
			}
		}
	}
	return ""
}

// isExported applies the per-language export convention: Go uses
// capitalization, JS/TS use an explicit export wrapper. Python has no
// export wrapper node, so Python symbols are never marked exported.
func (e *extractor) isExported(name string, directExport bool) bool {
	if e.cfg.Name == "go" {
		r := []rune(name)
		return len(r) > 0 && unicode.IsUpper(r[0])
	}
	return directExport
}

func (e *extractor) nodeText(n *sitter.Node) string {
	return n.Content(e.source)
}

func nodeLocation(n *sitter.Node) string {
	sp, ep := n.StartPoint(), n.EndPoint()
	return EncodeLocation(int(sp.Row)+1, int(sp.Column)+1, int(ep.Row)+1, int(ep.Column)+1)
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// extractImports walks the AST for import-type nodes and renders them as
// language-independent Import edges.
func (e *extractor) extractImports(root *sitter.Node) []Import {
	if root == nil || e.cfg == nil || len(e.cfg.ImportTypes) == 0 {
		return []Import{}
	}
	imports := make([]Import, 0, 4)
	e.walkImports(root, &imports)
	return imports
}

func (e *extractor) walkImports(n *sitter.Node, out *[]Import) {
	if n == nil {
		return
	}
	if contains(e.cfg.ImportTypes, n.Type()) {
		if imp, ok := e.parseImport(n); ok {
			*out = append(*out, imp)
		}
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		e.walkImports(n.NamedChild(i), out)
	}
}

// parseImport extracts a module path (and, where present, an imported
// name) from raw import node text. This is a light text-based pass rather
// than full per-grammar field extraction, since import clause shapes vary
// widely across Go/TS/JS/Python.
func (e *extractor) parseImport(n *sitter.Node) (Import, bool) {
	text := e.nodeText(n)
	module := extractQuoted(text)
	if module == "" {
		return Import{}, false
	}

	imp := Import{
		Module:     module,
		IsExternal: isExternalModule(e.cfg.Name, module),
	}

	if name := extractImportedName(text); name != "" {
		imp.ImportedName = name
	}
	return imp, true
}

func extractQuoted(text string) string {
	for _, q := range []byte{'"', '\'', '`'} {
		start := strings.IndexByte(text, q)
		if start < 0 {
			continue
		}
		end := strings.IndexByte(text[start+1:], q)
		if end < 0 {
			continue
		}
		return text[start+1 : start+1+end]
	}
	return ""
}

// extractImportedName looks for the braced "import { name } from ..." shape
// and returns the first braced name, with any "as" alias stripped. Default,
// namespace and side-effect imports have no braces and yield "".
func extractImportedName(text string) string {
	openBrace := strings.IndexByte(text, '{')
	closeBrace := strings.IndexByte(text, '}')
	if openBrace >= 0 && closeBrace > openBrace {
		inner := text[openBrace+1 : closeBrace]
		parts := strings.Split(inner, ",")
		if len(parts) > 0 {
			name := strings.TrimSpace(parts[0])
			if idx := strings.Index(name, " as "); idx >= 0 {
				name = name[:idx]
			}
			return strings.TrimSpace(name)
		}
	}
	return ""
}

func isExternalModule(language, module string) bool {
	switch language {
	case "go":
		return !strings.HasPrefix(module, ".")
	default:
		return !strings.HasPrefix(module, ".") && !strings.HasPrefix(module, "/")
	}
}
