package storagepath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePicksProjectScopeWhenVarExists(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "var"), 0o755))

	cfg, err := Resolve(root, false)
	require.NoError(t, err)

	assert.Equal(t, ScopeProject, cfg.Scope)
	assert.Equal(t, filepath.Join(root, "var", "storage"), cfg.BaseDir)
}

func TestResolvePicksProjectScopeWhenPreferLocal(t *testing.T) {
	root := t.TempDir()

	cfg, err := Resolve(root, true)
	require.NoError(t, err)
	assert.Equal(t, ScopeProject, cfg.Scope)
}

func TestResolveFallsBackToSystemScope(t *testing.T) {
	root := t.TempDir()

	cfg, err := Resolve(root, false)
	require.NoError(t, err)
	assert.Equal(t, ScopeSystem, cfg.Scope)
}

func TestResolveIsDeterministic(t *testing.T) {
	root := t.TempDir()

	cfg1, err := Resolve(root, false)
	require.NoError(t, err)
	cfg2, err := Resolve(root, false)
	require.NoError(t, err)

	assert.Equal(t, cfg1, cfg2)
}

func TestEnsureCreatesSubtrees(t *testing.T) {
	root := t.TempDir()
	cfg, err := Resolve(root, true)
	require.NoError(t, err)

	require.NoError(t, Ensure(cfg))

	for _, sub := range []string{"sqlite", "lancedb", "logs"} {
		info, statErr := os.Stat(filepath.Join(cfg.BaseDir, sub))
		require.NoError(t, statErr)
		assert.True(t, info.IsDir())
	}
}
