package fileinput

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSkipsDirsWithoutTheFile(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dirB, "mod.mylo"), []byte("in-b"), 0o644))

	r := Resolver{Dirs: []string{dirA, dirB}}
	fullPath, data, err := r.Resolve("mod.mylo")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dirB, "mod.mylo"), fullPath)
	assert.Equal(t, "in-b", string(data))
}

func TestResolveAbsolutePathBypassesSearchList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abs.mylo")
	require.NoError(t, os.WriteFile(path, []byte("absolute"), 0o644))

	r := Resolver{}
	fullPath, data, err := r.Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, path, fullPath)
	assert.Equal(t, "absolute", string(data))
}

func TestResolveNotFound(t *testing.T) {
	r := Resolver{Dirs: []string{t.TempDir()}}
	_, _, err := r.Resolve("missing.mylo")
	assert.Error(t, err)
}
