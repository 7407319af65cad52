// Package discover enumerates the files a sweep should index: a walk of
// the repository root filtered through include and exclude glob sets
// with ** support.
package discover

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/basinlabs/symgraph/internal/sgerrors"
)

// Options controls a discovery pass.
type Options struct {
	Include []string
	Exclude []string
}

// Matcher answers whether a repo-relative path belongs to the index set.
type Matcher struct {
	include []string
	exclude []string
}

// NewMatcher validates the glob sets up front so a bad pattern fails at
// initialize rather than midway through a sweep.
func NewMatcher(opts Options) (*Matcher, error) {
	for _, pat := range append(append([]string{}, opts.Include...), opts.Exclude...) {
		if !doublestar.ValidatePattern(pat) {
			return nil, sgerrors.ConfigErr("invalid glob pattern", nil).WithDetail("pattern", pat)
		}
	}
	return &Matcher{include: opts.Include, exclude: opts.Exclude}, nil
}

// Match reports whether relPath (slash-separated, repo-relative) is
// included and not excluded. Bare-name include patterns like "*.ts"
// also match in subdirectories.
func (m *Matcher) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)

	for _, pat := range m.exclude {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return false
		}
		// "node_modules/**" style patterns should also exclude nested
		// occurrences of the same directory.
		if ok, _ := doublestar.Match("**/"+pat, relPath); ok {
			return false
		}
	}

	base := filepath.Base(relPath)
	for _, pat := range m.include {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return true
		}
		if !strings.Contains(pat, "/") {
			if ok, _ := doublestar.Match(pat, base); ok {
				return true
			}
		}
	}
	return false
}

// Files walks root and returns the repo-relative paths of all regular
// files the matcher accepts, in walk order. Unreadable subtrees are
// skipped rather than failing the whole sweep.
func Files(root string, m *Matcher) ([]string, error) {
	var out []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			// Prune excluded directories early so node_modules-sized
			// trees never get walked.
			if dirFullyExcluded(m, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if m.Match(rel) {
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		return nil, sgerrors.IOErr("walk repository", err).WithFile(root)
	}
	return out, nil
}

// dirFullyExcluded reports whether every path under relDir is excluded,
// checked by matching the directory itself against the exclude set.
func dirFullyExcluded(m *Matcher, relDir string) bool {
	probe := relDir + "/"
	for _, pat := range m.exclude {
		if ok, _ := doublestar.Match(pat, probe+"x"); ok {
			return true
		}
		if ok, _ := doublestar.Match("**/"+pat, probe+"x"); ok {
			return true
		}
	}
	return false
}
