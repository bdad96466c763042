package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileUndefinedVariableErrors(t *testing.T) {
	_, err := Compile(`print(nope)`, ".")
	require.Error(t, err)
	var cerr CompileError
	assert.ErrorAs(t, err, &cerr)
}

func TestCompileMissingStructFieldAccessErrors(t *testing.T) {
	_, err := Compile(`
struct Point { var x var y }
var p = { x=1, y=2 }
print(p.z)
`, ".")
	require.Error(t, err)
}

func TestCompileStructLiteralInfersTypeFromFirstField(t *testing.T) {
	_, err := Compile(`
struct Point { var x var y }
struct Size { var w var h }
var p = { x=1, y=2 }
var s = { w=3, h=4 }
print(p)
print(s)
`, ".")
	assert.NoError(t, err)
}

func TestCompileNamespacedFunctionCall(t *testing.T) {
	img, err := Compile(`
mod geo {
	fn dist(n) {
		ret n * n
	}
}
print(geo::dist(4))
`, ".")
	require.NoError(t, err)
	assert.NotNil(t, img)
}

func TestCompileImportResolvesAgainstBaseDir(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib.mylo")
	require.NoError(t, os.WriteFile(lib, []byte(`
fn helper(n) {
	ret n + 1
}
`), 0o644))

	main := filepath.Join(dir, "main.mylo")
	src := `
import "lib.mylo"
print(helper(41))
`
	require.NoError(t, os.WriteFile(main, []byte(src), 0o644))

	img, err := Compile(src, dir)
	require.NoError(t, err)
	assert.NotNil(t, img)
}

func TestCompileImportResolvesViaSearchPath(t *testing.T) {
	libDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "lib.mylo"), []byte(`
fn helper(n) {
	ret n + 1
}
`), 0o644))

	src := `
import "lib.mylo"
print(helper(41))
`
	_, err := Compile(src, t.TempDir(), WithSearchPath(libDir))
	require.NoError(t, err)
}

func TestCompileImportMissingFileErrors(t *testing.T) {
	_, err := Compile(`import "nope.mylo"`, t.TempDir())
	require.Error(t, err)
	var cerr CompileError
	assert.ErrorAs(t, err, &cerr)
}

func TestCompileModulePathDirective(t *testing.T) {
	libDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "lib.mylo"), []byte(`
fn helper(n) {
	ret n + 1
}
`), 0o644))

	src := `
module_path("` + filepath.ToSlash(libDir) + `")
import "lib.mylo"
print(helper(41))
`
	_, err := Compile(src, t.TempDir())
	require.NoError(t, err)
}
