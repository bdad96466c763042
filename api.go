package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/jcorbin/mylo/internal/panicerr"
)

// Run compiles src and executes it to completion, a convenience for callers
// that don't need the Image for anything else (disassembly, caching).
func Run(ctx context.Context, src, baseDir string, copts []CompileOption, vopts []VMOption) error {
	img, err := Compile(src, baseDir, copts...)
	if err != nil {
		return err
	}
	vm := New(img, vopts...)
	return vm.Run(ctx)
}

// RunSpec names one independent program to run as part of a RunFiles batch.
type RunSpec struct {
	Name    string
	Source  string
	BaseDir string
}

// RunFiles compiles and runs each spec concurrently, one Image and one VM
// per spec -- the concurrency model gives every program its own VM, never
// shared mutable state. Each run is isolated via internal/panicerr.Recover
// so one program's panic can't take down the others' goroutines, and
// errgroup waits on the fan-out and returns the first error.
func RunFiles(ctx context.Context, specs []RunSpec, copts []CompileOption, vopts []VMOption) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			return panicerr.Recover(spec.Name, func() error {
				img, err := Compile(spec.Source, spec.BaseDir, copts...)
				if err != nil {
					return fmt.Errorf("%s: %w", spec.Name, err)
				}
				vm := New(img, vopts...)
				if err := vm.Run(ctx); err != nil {
					return fmt.Errorf("%s: %w", spec.Name, err)
				}
				return nil
			})
		})
	}
	return g.Wait()
}

// RunFilePaths is RunFiles for files named on disk, reading each with
// os.ReadFile before handing it to the compiler.
func RunFilePaths(ctx context.Context, paths []string, copts []CompileOption, vopts []VMOption) error {
	specs := make([]RunSpec, len(paths))
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		specs[i] = RunSpec{Name: path, Source: string(data), BaseDir: filepath.Dir(path)}
	}
	return RunFiles(ctx, specs, copts, vopts)
}
