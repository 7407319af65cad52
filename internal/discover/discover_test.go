package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(Options{
		Include: []string{"**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx", "**/*.py", "**/*.md"},
		Exclude: []string{"node_modules/**", "dist/**", "build/**", ".git/**", "**/*.test.*", "**/*.spec.*"},
	})
	require.NoError(t, err)
	return m
}

func TestMatcher(t *testing.T) {
	m := defaultMatcher(t)

	tests := []struct {
		path string
		want bool
	}{
		{"src/index.ts", true},
		{"README.md", true},
		{"deep/nested/app.py", true},
		{"node_modules/lodash/index.js", false},
		{"pkg/node_modules/x/index.js", false},
		{"dist/bundle.js", false},
		{"src/app.test.ts", false},
		{"src/app.spec.js", false},
		{"image.png", false},
		{".git/config", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Match(tt.path))
		})
	}
}

func TestNewMatcherRejectsBadGlob(t *testing.T) {
	_, err := NewMatcher(Options{Include: []string{"[unclosed"}})
	require.Error(t, err)
}

func TestFilesWalk(t *testing.T) {
	root := t.TempDir()
	write := func(rel string) {
		full := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("content"), 0o644))
	}
	write("a.ts")
	write("docs/guide.md")
	write("node_modules/pkg/index.js")
	write("src/util.test.ts")
	write("src/util.ts")

	files, err := Files(root, defaultMatcher(t))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.ts", "docs/guide.md", "src/util.ts"}, files)
}

func TestFilesEmptyRepo(t *testing.T) {
	files, err := Files(t.TempDir(), defaultMatcher(t))
	require.NoError(t, err)
	assert.Empty(t, files)
}
