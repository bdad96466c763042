package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jcorbin/mylo/internal/logio"
)

func main() {
	var (
		build    bool
		dump     bool
		trace    bool
		memLimit uint
		timeout  time.Duration
	)
	flag.BoolVar(&build, "build", false, "emit C source instead of running (not supported in this build)")
	flag.BoolVar(&dump, "dump", false, "print a bytecode disassembly after compiling")
	flag.BoolVar(&trace, "trace", false, "log every executed instruction")
	flag.UintVar(&memLimit, "mem-limit", 0, "bound the heap to this many cells (0 = unbounded)")
	flag.DurationVar(&timeout, "timeout", 0, "abort the run after this long (0 = no limit)")
	flag.Parse()

	log := logio.Logger{}
	log.SetOutput(os.Stderr)
	defer func() { os.Exit(log.ExitCode()) }()

	if build {
		log.Errorf("--build is not supported in this build: no C-source emitter")
		return
	}

	paths := flag.Args()
	if len(paths) == 0 {
		log.Errorf("usage: mylo [--dump] [--trace] [--mem-limit N] [--timeout D] <file> [<file>...]")
		return
	}

	ctx := context.Background()
	if timeout != 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var vopts []VMOption
	if memLimit != 0 {
		vopts = append(vopts, WithHeapLimit(int(memLimit)))
	}
	if trace {
		tl := traceLogger{logf: log.Leveledf("TRACE")}
		vopts = append(vopts, WithTrace(tl.trace))
	}

	if len(paths) == 1 {
		log.ErrorIf(runOne(ctx, paths[0], dump, vopts, &log))
		return
	}

	if dump {
		log.Errorf("--dump only supports a single file")
		return
	}
	log.ErrorIf(RunFilePaths(ctx, paths, nil, vopts))
}

func runOne(ctx context.Context, path string, dump bool, vopts []VMOption, log *logio.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	img, err := Compile(string(data), filepath.Dir(path))
	if err != nil {
		return err
	}

	if dump {
		lw := &logio.Writer{Logf: log.Leveledf("DUMP")}
		defer lw.Close()
		if err := dumpImage(lw, img); err != nil {
			return err
		}
	}

	vm := New(img, vopts...)
	err = vm.Run(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("timed out: %w", err)
	}
	return err
}
