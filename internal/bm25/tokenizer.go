package bm25

import (
	"regexp"
	"strings"
	"unicode"
)

// tokenRegex matches identifier-shaped runs; everything else is a
// separator.
var tokenRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// Tokenize lowercases text, splits on non-word characters, splits
// camelCase/snake_case identifiers, and drops tokens shorter than 2.
func Tokenize(text string) []string {
	var tokens []string
	for _, word := range tokenRegex.FindAllString(text, -1) {
		for _, t := range splitCodeToken(word) {
			lower := strings.ToLower(t)
			if len(lower) >= 2 {
				tokens = append(tokens, lower)
			}
		}
	}
	return tokens
}

// TermFrequencies tokenizes text and counts occurrences per term.
func TermFrequencies(text string) (map[string]int, int) {
	freqs := make(map[string]int)
	tokens := Tokenize(text)
	for _, t := range tokens {
		freqs[t]++
	}
	return freqs, len(tokens)
}

func splitCodeToken(token string) []string {
	if strings.Contains(token, "_") {
		var result []string
		for _, part := range strings.Split(token, "_") {
			if part != "" {
				result = append(result, splitCamelCase(part)...)
			}
		}
		return result
	}
	return splitCamelCase(token)
}

// splitCamelCase splits camelCase and PascalCase identifiers, keeping
// acronym runs together ("parseHTTPRequest" -> parse, HTTP, Request).
func splitCamelCase(s string) []string {
	if s == "" {
		return nil
	}

	var result []string
	var current strings.Builder
	runes := []rune(s)

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevIsLower := unicode.IsLower(runes[i-1])
			nextIsLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevIsLower || nextIsLower {
				if current.Len() > 0 {
					result = append(result, current.String())
					current.Reset()
				}
			}
		}
		current.WriteRune(r)
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}
