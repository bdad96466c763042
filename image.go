package main

import (
	"encoding/binary"
	"fmt"
	"io"
)

// StructLayout is the compile-time-produced, VM-consumed description of a
// declared struct: its mangled name and the order of its fields (field
// offsets are simply their index in this slice).
type StructLayout struct {
	Name   string
	Fields []string
}

func (s StructLayout) fieldOffset(name string) (int, bool) {
	for i, f := range s.Fields {
		if f == name {
			return i, true
		}
	}
	return 0, false
}

// Image is the bytecode produced by the compiler and consumed by the VM:
// code array, constant pool, string pool, and metadata (function addresses,
// struct layouts). It carries no compile-time symbol tables -- those are
// discarded once compilation finishes.
type Image struct {
	Code    []byte
	Lines   []int32 // Lines[addr] is the source line of the instruction starting at addr
	Consts  *ConstPool
	Strings *StringPool
	Funcs   map[string]int // mangled function name -> entry address
	Structs []StructLayout // indexed by struct id
}

func newImage() *Image {
	return &Image{
		Consts:  newConstPool(1 << 20),
		Strings: newStringPool(1 << 20),
		Funcs:   make(map[string]int),
	}
}

// emit appends one opcode (and, optionally, its inline int32 operands) to
// the code array, returning the address the opcode was written at.
func (img *Image) emit(op Op, line int, operands ...int32) int {
	addr := len(img.Code)
	img.Code = append(img.Code, byte(op))
	img.growLines(len(img.Code), line)
	for _, v := range operands {
		img.emitInt32(v, line)
	}
	return addr
}

func (img *Image) emitInt32(v int32, line int) int {
	addr := len(img.Code)
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(v))
	img.Code = append(img.Code, buf[:]...)
	img.growLines(len(img.Code), line)
	return addr
}

func (img *Image) growLines(n int, line int) {
	for len(img.Lines) < n {
		img.Lines = append(img.Lines, int32(line))
	}
}

// patchInt32 rewrites a previously-emitted placeholder operand; used for
// backpatching forward jumps once their target address is known.
func (img *Image) patchInt32(addr int, v int32) {
	binary.LittleEndian.PutUint32(img.Code[addr:addr+4], uint32(v))
}

func (img *Image) readOp(addr int) Op { return Op(img.Code[addr]) }

func (img *Image) readInt32(addr int) int32 {
	return int32(binary.LittleEndian.Uint32(img.Code[addr : addr+4]))
}

func (img *Image) lineAt(addr int) int {
	if addr < 0 || addr >= len(img.Lines) {
		return 0
	}
	return int(img.Lines[addr])
}

// here returns the address the next emit will land at -- used as a jump
// target when backpatching.
func (img *Image) here() int { return len(img.Code) }

// Disassemble writes one line per instruction: address, mnemonic, operands.
func (img *Image) Disassemble(w io.Writer) error {
	for addr := 0; addr < len(img.Code); {
		op := img.readOp(addr)
		n := operandsFor(op)
		line := img.lineAt(addr)
		fmt.Fprintf(w, "%6d  [L%-4d] %-8s", addr, line, op)
		opAddr := addr + 1
		for i := 0; i < n; i++ {
			v := img.readInt32(opAddr)
			fmt.Fprintf(w, " %d", v)
			opAddr += 4
		}
		fmt.Fprintln(w)
		addr = opAddr
	}
	return nil
}
