package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ops.log")

	cfg := DefaultConfig(path)
	cfg.WriteToStderr = false

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)
	defer cleanup()

	logger.Info("indexed_file", "path", "a.ts", "symbols", 3)
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "indexed_file")
	assert.Contains(t, string(data), "a.ts")
}

func TestRotatingWriterRotatesAtThreshold(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rot.log")

	w, err := NewRotatingWriter(path, 0, 2)
	require.NoError(t, err)
	w.maxSize = 16 // force rotation quickly

	_, err = w.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)
	_, err = w.Write([]byte("next-segment"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
}
