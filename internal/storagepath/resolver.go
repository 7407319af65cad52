// Package storagepath resolves per-scope storage roots for the indexer.
// It picks between a shared "system" scope (one per host,
// under the user home) and a per-repository "project" scope (under
// <repo>/var/storage), ensuring the lancedb/, sqlite/, and logs/
// subtrees exist.
package storagepath

import (
	"fmt"
	"os"
	"path/filepath"
)

// Scope is the storage scope the resolver picked.
type Scope string

const (
	ScopeSystem  Scope = "system"
	ScopeProject Scope = "project"
)

// PreferProjectStorageEnv forces project scope when set to a truthy value.
const PreferProjectStorageEnv = "PREFER_PROJECT_STORAGE"

// Config is the resolved storage configuration: a scope and its base
// directory. The same (projectRoot, preferLocal) always resolves to the
// same Config within a process and across restarts.
type Config struct {
	Scope   Scope
	BaseDir string
}

// Resolve computes the storage root for projectRoot. Project scope is
// chosen when <projectRoot>/var already exists or preferLocal is true;
// otherwise system scope under the user home directory is used.
func Resolve(projectRoot string, preferLocal bool) (Config, error) {
	if projectRoot == "" {
		return Config{}, fmt.Errorf("storagepath: projectRoot must not be empty")
	}

	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return Config{}, fmt.Errorf("storagepath: resolve absolute project root: %w", err)
	}

	varDir := filepath.Join(absRoot, "var")
	_, statErr := os.Stat(varDir)
	projectScope := preferLocal || statErr == nil

	if projectScope {
		return Config{
			Scope:   ScopeProject,
			BaseDir: filepath.Join(absRoot, "var", "storage"),
		}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("storagepath: resolve user home: %w", err)
	}

	slug := projectSlug(absRoot)
	return Config{
		Scope:   ScopeSystem,
		BaseDir: filepath.Join(home, ".symgraph", "projects", slug),
	}, nil
}

// projectSlug derives a stable, filesystem-safe identifier for a project
// root so distinct repositories never collide under the system scope.
func projectSlug(absRoot string) string {
	clean := filepath.ToSlash(absRoot)
	slug := make([]byte, 0, len(clean))
	for i := 0; i < len(clean); i++ {
		c := clean[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			slug = append(slug, c)
		default:
			if len(slug) == 0 || slug[len(slug)-1] != '_' {
				slug = append(slug, '_')
			}
		}
	}
	trimmed := string(slug)
	for len(trimmed) > 0 && trimmed[0] == '_' {
		trimmed = trimmed[1:]
	}
	if trimmed == "" {
		trimmed = "root"
	}
	return trimmed
}

// SQLitePath returns the deterministic path to a named SQLite database
// under cfg's sqlite/ subtree.
func SQLitePath(cfg Config, name string) string {
	return filepath.Join(cfg.BaseDir, "sqlite", name)
}

// VectorDBPath returns the deterministic path to the vector index root.
func VectorDBPath(cfg Config) string {
	return filepath.Join(cfg.BaseDir, "lancedb")
}

// LogsPath joins subpath under cfg's logs/ subtree.
func LogsPath(cfg Config, subpath string) string {
	return filepath.Join(cfg.BaseDir, "logs", subpath)
}

// Ensure creates the sqlite/, lancedb/, and logs/ subtrees if absent.
// Failure is fatal to startup.
func Ensure(cfg Config) error {
	for _, sub := range []string{"sqlite", "lancedb", "logs"} {
		dir := filepath.Join(cfg.BaseDir, sub)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("storagepath: ensure %s: %w", dir, err)
		}
	}
	return nil
}
