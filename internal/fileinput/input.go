// Package fileinput resolves a named file against a directory search list,
// first-hit-wins -- the shape mylo's compiler needs for import "path" and
// module_path("dir") resolution.
package fileinput

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Resolver searches Dirs in order for a relative file name. An absolute
// name is read directly, bypassing the search list.
type Resolver struct {
	Dirs []string
}

// Resolve returns the full path and contents of the first Dirs entry (or
// the name itself, if absolute) under which name exists.
func (r *Resolver) Resolve(name string) (fullPath string, data []byte, err error) {
	if filepath.IsAbs(name) {
		data, err = os.ReadFile(name)
		return name, data, err
	}
	for _, dir := range r.Dirs {
		data, err := fs.ReadFile(os.DirFS(dir), filepath.ToSlash(name))
		if err == nil {
			return filepath.Join(dir, name), data, nil
		}
	}
	return "", nil, fmt.Errorf("%q not found in search path %v", name, r.Dirs)
}
