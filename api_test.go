package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCompilesAndExecutes(t *testing.T) {
	var out strings.Builder
	err := Run(context.Background(), `print(2 + 2)`, ".", nil, []VMOption{WithOutput(&out)})
	require.NoError(t, err)
	assert.Equal(t, "4\n", out.String())
}

func TestRunPropagatesCompileErrors(t *testing.T) {
	err := Run(context.Background(), `var x = `, ".", nil, nil)
	require.Error(t, err)
	var cerr CompileError
	assert.ErrorAs(t, err, &cerr)
}

func TestRunFilesRunsEachSpecIndependently(t *testing.T) {
	specs := []RunSpec{
		{Name: "a", Source: `print(1)`, BaseDir: "."},
		{Name: "b", Source: `print(2)`, BaseDir: "."},
		{Name: "c", Source: `print(3)`, BaseDir: "."},
	}
	err := RunFiles(context.Background(), specs, nil, []VMOption{WithOutput(io.Discard)})
	assert.NoError(t, err)
}

func TestRunFilesCollectsFirstError(t *testing.T) {
	specs := []RunSpec{
		{Name: "good", Source: `print(1)`, BaseDir: "."},
		{Name: "bad", Source: `print(1 / 0)`, BaseDir: "."},
	}
	err := RunFiles(context.Background(), specs, nil, []VMOption{WithOutput(io.Discard)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestRunFilePathsReadsFilesFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.mylo")
	require.NoError(t, os.WriteFile(path, []byte(`print("from disk")`), 0o644))

	err := RunFilePaths(context.Background(), []string{path}, nil, []VMOption{WithOutput(io.Discard)})
	assert.NoError(t, err)
}

func TestRunFilePathsMissingFileErrors(t *testing.T) {
	err := RunFilePaths(context.Background(), []string{"/nonexistent/path.mylo"}, nil, nil)
	require.Error(t, err)
}
