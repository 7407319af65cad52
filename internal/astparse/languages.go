// Package astparse turns a source file into the language-independent
// ParseResult the indexer consumes: symbols, imports, exports, and a
// hierarchical outline, dispatched per language via a tree-sitter
// registry.
package astparse

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageConfig tags the tree-sitter node types that define each kind of
// symbol for one language, so the extractor can walk a generic AST without
// per-language branching logic.
type LanguageConfig struct {
	Name           string
	Extensions     []string
	FunctionTypes  []string
	MethodTypes    []string
	ClassTypes     []string
	InterfaceTypes []string
	TypeDefTypes   []string
	EnumTypes      []string
	ConstantTypes  []string
	VariableTypes  []string
	ImportTypes    []string
	NameField      string
}

// Registry maps file extensions and language names to LanguageConfig and
// the compiled tree-sitter grammar.
type Registry struct {
	mu          sync.RWMutex
	configs     map[string]*LanguageConfig
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewRegistry builds a registry pre-populated with the languages named in
// the default discovery globs (*.ts, *.tsx, *.js, *.jsx, *.py) plus
// Go, since the indexer itself is written in it.
func NewRegistry() *Registry {
	r := &Registry{
		configs:     make(map[string]*LanguageConfig),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}
	r.registerGo()
	r.registerTypeScript()
	r.registerJavaScript()
	r.registerPython()
	return r
}

func (r *Registry) register(cfg *LanguageConfig, tsLang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[cfg.Name] = cfg
	r.tsLanguages[cfg.Name] = tsLang
	for _, ext := range cfg.Extensions {
		r.extToLang[ext] = cfg.Name
	}
}

// LanguageForExtension maps a file extension (".go", ".ts", ...) to a
// registered language name. ok is false for unrecognized extensions.
func (r *Registry) LanguageForExtension(ext string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	name, ok := r.extToLang[ext]
	return name, ok
}

// Config returns the LanguageConfig for a registered language name.
func (r *Registry) Config(name string) (*LanguageConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[name]
	return cfg, ok
}

// TreeSitterLanguage returns the compiled grammar for a registered
// language name.
func (r *Registry) TreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lang, ok := r.tsLanguages[name]
	return lang, ok
}

func (r *Registry) registerGo() {
	cfg := &LanguageConfig{
		Name:          "go",
		Extensions:    []string{".go"},
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_declaration"},
		TypeDefTypes:  []string{"type_declaration"},
		ConstantTypes: []string{"const_declaration"},
		VariableTypes: []string{"var_declaration"},
		ImportTypes:   []string{"import_spec"},
		NameField:     "name",
	}
	r.register(cfg, golang.GetLanguage())
}

func (r *Registry) registerTypeScript() {
	ts := &LanguageConfig{
		Name:           "typescript",
		Extensions:     []string{".ts"},
		FunctionTypes:  []string{"function_declaration"},
		MethodTypes:    []string{"method_definition"},
		ClassTypes:     []string{"class_declaration"},
		InterfaceTypes: []string{"interface_declaration"},
		TypeDefTypes:   []string{"type_alias_declaration"},
		ConstantTypes:  []string{"lexical_declaration"},
		VariableTypes:  []string{"variable_declaration"},
		ImportTypes:    []string{"import_statement"},
		NameField:      "name",
	}
	r.register(ts, typescript.GetLanguage())

	tsx := &LanguageConfig{
		Name:           "tsx",
		Extensions:     []string{".tsx"},
		FunctionTypes:  ts.FunctionTypes,
		MethodTypes:    ts.MethodTypes,
		ClassTypes:     ts.ClassTypes,
		InterfaceTypes: ts.InterfaceTypes,
		TypeDefTypes:   ts.TypeDefTypes,
		ConstantTypes:  ts.ConstantTypes,
		VariableTypes:  ts.VariableTypes,
		ImportTypes:    ts.ImportTypes,
		NameField:      ts.NameField,
	}
	r.register(tsx, tsxLang())
}

func tsxLang() *sitter.Language {
	return tsx.GetLanguage()
}

func (r *Registry) registerJavaScript() {
	js := &LanguageConfig{
		Name:          "javascript",
		Extensions:    []string{".js", ".mjs"},
		FunctionTypes: []string{"function_declaration", "function"},
		MethodTypes:   []string{"method_definition"},
		ClassTypes:    []string{"class_declaration"},
		ConstantTypes: []string{"lexical_declaration"},
		VariableTypes: []string{"variable_declaration"},
		ImportTypes:   []string{"import_statement"},
		NameField:     "name",
	}
	r.register(js, javascript.GetLanguage())

	jsx := &LanguageConfig{
		Name:          "jsx",
		Extensions:    []string{".jsx"},
		FunctionTypes: js.FunctionTypes,
		MethodTypes:   js.MethodTypes,
		ClassTypes:    js.ClassTypes,
		ConstantTypes: js.ConstantTypes,
		VariableTypes: js.VariableTypes,
		ImportTypes:   js.ImportTypes,
		NameField:     js.NameField,
	}
	r.register(jsx, javascript.GetLanguage())
}

func (r *Registry) registerPython() {
	cfg := &LanguageConfig{
		Name:          "python",
		Extensions:    []string{".py"},
		FunctionTypes: []string{"function_definition"},
		ClassTypes:    []string{"class_definition"},
		VariableTypes: []string{"assignment"},
		ImportTypes:   []string{"import_statement", "import_from_statement"},
		NameField:     "name",
	}
	r.register(cfg, python.GetLanguage())
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide language registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
