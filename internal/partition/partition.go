// Package partition maps file paths to a partition label and an
// authority score in [0,1]. The classifier is pure and deterministic:
// an ordered rule list matched first-wins, with a default of
// {project, 0.5}.
package partition

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Classification is the result of classifying one path.
type Classification struct {
	Partition string
	Authority float64
}

// Rule matches a path pattern to a partition and authority.
type Rule struct {
	Pattern   string
	Partition string
	Authority float64
}

// Classifier holds an ordered rule list. The zero value is not usable;
// construct with New or Default.
type Classifier struct {
	rules []Rule
}

// DefaultRules is the static seed rule set. Order matters: the first
// match wins, so the most specific origins come first.
var DefaultRules = []Rule{
	{Pattern: "**/node_modules/**", Partition: "third_party", Authority: 0.3},
	{Pattern: "vendor/**", Partition: "third_party", Authority: 0.3},
	{Pattern: "third_party/**", Partition: "third_party", Authority: 0.3},
	{Pattern: "**/*.gen.*", Partition: "generated", Authority: 0.2},
	{Pattern: "**/*_generated.*", Partition: "generated", Authority: 0.2},
	{Pattern: "**/*.pb.go", Partition: "generated", Authority: 0.2},
	{Pattern: "dist/**", Partition: "generated", Authority: 0.2},
	{Pattern: "build/**", Partition: "generated", Authority: 0.2},
	{Pattern: "kernel/**", Partition: "dom0", Authority: 1.0},
	{Pattern: "core/**", Partition: "dom0", Authority: 1.0},
}

// New builds a classifier over an explicit rule list.
func New(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Default builds a classifier seeded with DefaultRules.
func Default() *Classifier {
	return New(DefaultRules)
}

// Classify matches path against the rules in order and returns the first
// hit, or {project, 0.5} when nothing matches.
func (c *Classifier) Classify(path string) Classification {
	path = filepath.ToSlash(strings.TrimPrefix(path, "./"))
	for _, r := range c.rules {
		if ok, _ := doublestar.Match(r.Pattern, path); ok {
			return Classification{Partition: r.Partition, Authority: r.Authority}
		}
	}
	return Classification{Partition: "project", Authority: 0.5}
}

// AuthorityFactor is the monotone reweighting function applied to search
// scores: f(a) = 0.5 + 0.5*a, clamped to [0,1].
func AuthorityFactor(authority float64) float64 {
	f := 0.5 + 0.5*authority
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
