package bm25

import (
	"path/filepath"
	"strings"
)

// BoostConfig holds the symbol-aware boost weights. Each weight feeds a
// multiplicative adjustment; the combined multiplier is clamped to
// [0, 5].
type BoostConfig struct {
	FileNameMatchBoost  float64
	ExportedSymbolBoost float64
	DefinedSymbolBoost  float64
	AllSymbolBoost      float64
	ImportOnlyPenalty   float64
	ContentMatchWeight  float64
}

// DefaultBoostConfig returns the seed weights persisted into
// boost_config on first open.
func DefaultBoostConfig() BoostConfig {
	return BoostConfig{
		FileNameMatchBoost:  0.5,
		ExportedSymbolBoost: 0.4,
		DefinedSymbolBoost:  0.2,
		AllSymbolBoost:      0.1,
		ImportOnlyPenalty:   0.3,
		ContentMatchWeight:  0.05,
	}
}

const (
	minMultiplier = 0.0
	maxMultiplier = 5.0
)

// symbolBoost computes the combined multiplier for one document given
// the tokenized query terms. Matching precedence: file name, exported
// symbols, defined symbols, any symbol; a query matching only imported
// names is penalized; a pure content match gets the content weight.
func symbolBoost(queryTerms []string, doc *document, cfg BoostConfig) float64 {
	fileTokens := tokenSet(Tokenize(stripExt(doc.meta.FileName)))
	exported := nameTokenSet(doc.meta.ExportedSymbols)
	defined := nameTokenSet(doc.meta.DefinedSymbols)
	imported := nameTokenSet(doc.meta.ImportedNames)

	var fileHit, exportedHit, definedHit, importHit bool
	for _, term := range queryTerms {
		if fileTokens[term] {
			fileHit = true
		}
		if exported[term] {
			exportedHit = true
		}
		if defined[term] {
			definedHit = true
		}
		if imported[term] {
			importHit = true
		}
	}
	anySymbolHit := exportedHit || definedHit

	multiplier := 1.0
	switch {
	case fileHit:
		multiplier *= 1 + cfg.FileNameMatchBoost
		if anySymbolHit {
			multiplier *= 1 + cfg.AllSymbolBoost
		}
	case exportedHit:
		multiplier *= (1 + cfg.ExportedSymbolBoost) * (1 + cfg.AllSymbolBoost)
	case definedHit:
		multiplier *= (1 + cfg.DefinedSymbolBoost) * (1 + cfg.AllSymbolBoost)
	case importHit:
		multiplier *= 1 - cfg.ImportOnlyPenalty
	default:
		multiplier *= 1 + cfg.ContentMatchWeight
	}

	if multiplier < minMultiplier {
		return minMultiplier
	}
	if multiplier > maxMultiplier {
		return maxMultiplier
	}
	return multiplier
}

func stripExt(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func tokenSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

// nameTokenSet tokenizes each symbol name (splitting camelCase and
// snake_case) so the query "user" matches the symbol "getUserById".
func nameTokenSet(names []string) map[string]bool {
	set := make(map[string]bool)
	for _, name := range names {
		for _, t := range Tokenize(name) {
			set[t] = true
		}
	}
	return set
}
