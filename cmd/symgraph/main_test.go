package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func testContext(t *testing.T, args ...string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	require.NoError(t, set.Parse(args))
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestRepositoryPathRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	_, err := repositoryPath(testContext(t, file))
	require.Error(t, err)
	exitErr, ok := err.(cli.ExitCoder)
	require.True(t, ok)
	assert.Equal(t, 2, exitErr.ExitCode())
}

func TestRepositoryPathAcceptsDir(t *testing.T) {
	dir := t.TempDir()
	got, err := repositoryPath(testContext(t, dir))
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestDirSizeMB(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), make([]byte, 1024*1024), 0o644))
	assert.InDelta(t, 1.0, dirSizeMB(dir), 0.01)
	assert.Equal(t, 0.0, dirSizeMB(filepath.Join(dir, "missing")))
}
