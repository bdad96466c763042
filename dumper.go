package main

import (
	"fmt"
	"io"
)

// traceLogger renders each executed instruction as one line of the form
// "@addr MNEMONIC depth=N", the shape the --trace flag wires into the VM's
// WithTrace hook via a logio.Logger sink.
type traceLogger struct {
	logf func(mess string, args ...interface{})
}

func (t traceLogger) trace(ip int, op Op, stackDepth int) {
	t.logf("@%-6d %-8v depth=%d", ip, op, stackDepth)
}

// dumpImage writes a full disassembly of img to w, one instruction per
// line, for the CLI's --dump flag.
func dumpImage(w io.Writer, img *Image) error {
	fmt.Fprintf(w, "# Image dump\n")
	fmt.Fprintf(w, "  functions: %v\n", img.Funcs)
	fmt.Fprintf(w, "  structs:   %v\n", img.Structs)
	fmt.Fprintf(w, "  strings:   %d entries\n", img.Strings.Len())
	fmt.Fprintf(w, "  consts:    %d entries\n", img.Consts.Len())
	fmt.Fprintln(w, "  code:")
	return img.Disassemble(w)
}
