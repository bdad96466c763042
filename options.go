package main

import (
	"io"

	"github.com/jcorbin/mylo/internal/flushio"
	"github.com/jcorbin/mylo/internal/logio"
)

// VMOption configures a VM at construction, combined the same way
// CompileOption combines Compiler configuration.
type VMOption interface{ apply(vm *VM) }

// VMOptions flattens a list of options (including nested VMOptions results)
// into a single applicable option, collapsing the empty and singleton cases.
func VMOptions(opts ...VMOption) VMOption {
	var res options
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noption:
		case options:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	switch len(res) {
	case 0:
		return noption{}
	case 1:
		return res[0]
	default:
		return res
	}
}

type noption struct{}

func (noption) apply(vm *VM) {}

type options []VMOption

func (opts options) apply(vm *VM) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(vm)
		}
	}
}

type vmOptionFunc func(vm *VM)

func (f vmOptionFunc) apply(vm *VM) { f(vm) }

// WithOutput sets the writer PRN writes formatted values to.
func WithOutput(w io.Writer) VMOption {
	return vmOptionFunc(func(vm *VM) {
		if vm.out != nil {
			vm.out.Flush()
		}
		vm.out = flushio.NewWriteFlusher(w)
	})
}

// WithLogger sets the destination for diagnostic logging (not program
// output -- see WithOutput for that).
func WithLogger(l *logio.Logger) VMOption {
	return vmOptionFunc(func(vm *VM) { vm.log = l })
}

// WithTrace installs a per-instruction trace callback invoked just before
// each instruction executes.
func WithTrace(fn func(ip int, op Op, stackDepth int)) VMOption {
	return vmOptionFunc(func(vm *VM) { vm.trace = fn })
}

// WithHeapLimit bounds the heap's bump allocator to limit cells.
func WithHeapLimit(limit int) VMOption {
	return vmOptionFunc(func(vm *VM) { vm.heap = newHeap(limit) })
}

// WithClock overrides the clock the now() native reads, for deterministic
// tests.
func WithClock(fn func() float64) VMOption {
	return vmOptionFunc(func(vm *VM) { vm.clockFn = fn })
}

// WithVMNatives overrides the VM's native registry -- callers that compiled
// with WithNatives(reg) should run with the same reg so NATIVE ids agree.
func WithVMNatives(reg *NativeRegistry) VMOption {
	return vmOptionFunc(func(vm *VM) { vm.natives = reg })
}
