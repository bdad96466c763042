package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jcorbin/mylo/internal/flushio"
	"github.com/jcorbin/mylo/internal/logio"
	"github.com/jcorbin/mylo/internal/runeio"
)

// VM executes one Image: a tagged-value operand stack, a flat heap, and a
// frame pointer/instruction pointer pair. One VM runs one program to
// completion or failure; independent runs get independent VMs (see
// RunFiles in api.go for running many concurrently).
type VM struct {
	image *Image
	heap  *Heap

	globals []Value
	stack   []Value
	ip      int
	fp      int

	natives  *NativeRegistry
	emptyStr int

	out     flushio.WriteFlusher
	log     *logio.Logger
	trace   func(ip int, op Op, stackDepth int)
	clockFn func() float64

	running bool
}

// New builds a VM ready to execute img, configured by opts (see options.go).
func New(img *Image, opts ...VMOption) *VM {
	vm := &VM{
		image:   img,
		heap:    newHeap(0),
		natives: defaultNatives(),
		out:     flushio.NewWriteFlusher(os.Stdout),
		clockFn: func() float64 { return float64(time.Now().UnixNano()) / 1e9 },
	}
	VMOptions(opts...).apply(vm)
	id, _ := img.Strings.Intern("")
	vm.emptyStr = id
	return vm
}

func (vm *VM) clock() float64 { return vm.clockFn() }

func (vm *VM) push(v Value) { vm.stack = append(vm.stack, v) }

func (vm *VM) pop() Value {
	n := len(vm.stack)
	v := vm.stack[n-1]
	vm.stack = vm.stack[:n-1]
	return v
}

func (vm *VM) peek() Value { return vm.stack[len(vm.stack)-1] }

func (vm *VM) growGlobals(n int) {
	for len(vm.globals) <= n {
		vm.globals = append(vm.globals, numberValue(0))
	}
}

// Run executes the image from address 0 until HLT, a runtime error, or ctx
// is canceled (checked once per instruction).
func (vm *VM) Run(ctx context.Context) (err error) {
	vm.ip = 0
	vm.fp = 0
	vm.running = true

	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(RuntimeError); ok {
				err = re
				return
			}
			panic(r)
		}
	}()

	for vm.running {
		if err := ctx.Err(); err != nil {
			return err
		}
		vm.step()
	}
	return nil
}

func (vm *VM) fail(format string, args ...interface{}) {
	panic(runtimeErrorf(vm.image.lineAt(vm.ip), format, args...))
}

func (vm *VM) fetchOp() Op {
	op := vm.image.readOp(vm.ip)
	vm.ip++
	return op
}

func (vm *VM) fetchInt32() int32 {
	v := vm.image.readInt32(vm.ip)
	vm.ip += 4
	return v
}

func (vm *VM) step() {
	startIP := vm.ip
	op := vm.fetchOp()
	if vm.trace != nil {
		vm.trace(startIP, op, len(vm.stack))
	}

	switch op {
	case OpPshNum:
		idx := vm.fetchInt32()
		vm.push(numberValue(vm.image.Consts.Get(int(idx))))
	case OpPshStr:
		idx := vm.fetchInt32()
		vm.push(stringValue(int(idx)))
	case OpAdd:
		vm.opAdd()
	case OpSub:
		vm.opArith(func(a, b float64) float64 { return a - b })
	case OpMul:
		vm.opArith(func(a, b float64) float64 { return a * b })
	case OpDiv:
		b := vm.requireNumber(vm.peek())
		if b == 0 {
			vm.fail("division by zero")
		}
		vm.opArith(func(a, b float64) float64 { return a / b })
	case OpMod:
		b := vm.requireNumber(vm.peek())
		if b == 0 {
			vm.fail("modulo by zero")
		}
		vm.opArith(func(a, b float64) float64 {
			return math.Mod(a, b)
		})
	case OpLt:
		vm.opCompare(func(a, b float64) bool { return a < b })
	case OpGt:
		vm.opCompare(func(a, b float64) bool { return a > b })
	case OpLe:
		vm.opCompare(func(a, b float64) bool { return a <= b })
	case OpGe:
		vm.opCompare(func(a, b float64) bool { return a >= b })
	case OpEq:
		b, a := vm.pop(), vm.pop()
		vm.push(boolValue(a.Tag == b.Tag && a.Num == b.Num))
	case OpNeq:
		b, a := vm.pop(), vm.pop()
		vm.push(boolValue(!(a.Tag == b.Tag && a.Num == b.Num)))
	case OpCat:
		vm.opCat()
	case OpGet:
		slot := int(vm.fetchInt32())
		vm.growGlobals(slot)
		vm.push(vm.globals[slot])
	case OpSet:
		slot := int(vm.fetchInt32())
		v := vm.pop()
		vm.growGlobals(slot)
		vm.globals[slot] = v
	case OpLVar:
		off := int(vm.fetchInt32())
		vm.push(vm.stack[vm.fp+off])
	case OpSVar:
		off := int(vm.fetchInt32())
		v := vm.pop()
		vm.stack[vm.fp+off] = v
	case OpJmp:
		target := int(vm.fetchInt32())
		vm.ip = target
	case OpJz:
		target := int(vm.fetchInt32())
		v := vm.pop()
		if !v.isTruthy() {
			vm.ip = target
		}
	case OpJnz:
		target := int(vm.fetchInt32())
		v := vm.pop()
		if v.isTruthy() {
			vm.ip = target
		}
	case OpCall:
		target := int(vm.fetchInt32())
		n := int(vm.fetchInt32())
		vm.opCall(target, n)
	case OpRet:
		vm.opRet()
	case OpAlloc:
		sz := int(vm.fetchInt32())
		sid := int(vm.fetchInt32())
		ref, err := vm.heap.AllocStruct(sid, sz)
		if err != nil {
			vm.fail("%v", err)
		}
		vm.push(objectValue(ref))
	case OpHSet:
		off := int(vm.fetchInt32())
		sid := int(vm.fetchInt32())
		val := vm.pop()
		ref := vm.pop()
		if ref.Tag != TagObject {
			vm.fail("HSET: not a struct reference")
		}
		if err := vm.heap.HSet(ref.objIndex(), sid, off, val); err != nil {
			vm.fail("%v", err)
		}
	case OpHGet:
		off := int(vm.fetchInt32())
		sid := int(vm.fetchInt32())
		ref := vm.pop()
		if ref.Tag != TagObject {
			vm.fail("HGET: not a struct reference")
		}
		v, err := vm.heap.HGet(ref.objIndex(), sid, off)
		if err != nil {
			vm.fail("%v", err)
		}
		vm.push(v)
	case OpArr:
		n := int(vm.fetchInt32())
		vals := make([]Value, n)
		for i := n - 1; i >= 0; i-- {
			vals[i] = vm.pop()
		}
		ref, err := vm.heap.AllocArray(vals)
		if err != nil {
			vm.fail("%v", err)
		}
		vm.push(objectValue(ref))
	case OpAGet:
		vm.opAGet()
	case OpASet:
		vm.opASet()
	case OpALen:
		vm.opALen()
	case OpSlice:
		vm.opSlice()
	case OpMap:
		ref, err := vm.heap.AllocMap()
		if err != nil {
			vm.fail("%v", err)
		}
		vm.push(objectValue(ref))
	case OpDup:
		vm.push(vm.peek())
	case OpPop:
		vm.pop()
	case OpPrn:
		v := vm.pop()
		runeio.WriteANSIString(vm.out, vm.formatValue(v))
		vm.out.Write([]byte{'\n'})
		vm.out.Flush()
	case OpNative:
		id := int(vm.fetchInt32())
		vm.opNative(id)
	case OpHlt:
		vm.running = false
	case OpRangeIter, OpCtxPush, OpCtxPop, OpDebugger, OpEmbed:
		// reserved, unimplemented: no-op
	default:
		vm.fail("unknown opcode %d", op)
	}
}

func boolValue(b bool) Value {
	if b {
		return numberValue(1)
	}
	return numberValue(0)
}

func (vm *VM) requireNumber(v Value) float64 {
	if v.Tag != TagNumber {
		vm.fail("expected a number, got %v", v.Tag)
	}
	return v.Num
}

func (vm *VM) opArith(f func(a, b float64) float64) {
	b := vm.pop()
	a := vm.pop()
	an, bn := vm.requireNumber(a), vm.requireNumber(b)
	vm.push(numberValue(f(an, bn)))
}

func (vm *VM) opCompare(f func(a, b float64) bool) {
	b := vm.pop()
	a := vm.pop()
	an, bn := vm.requireNumber(a), vm.requireNumber(b)
	vm.push(boolValue(f(an, bn)))
}

// opAdd dispatches ADD between two numbers (arithmetic sum) or two array
// objects (concatenation); any other pairing is a type-tag mismatch.
func (vm *VM) opAdd() {
	b := vm.pop()
	a := vm.pop()
	if a.Tag == TagNumber && b.Tag == TagNumber {
		vm.push(numberValue(a.Num + b.Num))
		return
	}
	if a.Tag == TagObject && b.Tag == TagObject {
		ref, err := vm.heap.Concat(a.objIndex(), b.objIndex())
		if err != nil {
			vm.fail("%v", err)
		}
		vm.push(objectValue(ref))
		return
	}
	vm.fail("ADD: incompatible operand types %v, %v", a.Tag, b.Tag)
}

func (vm *VM) opCat() {
	b := vm.pop()
	a := vm.pop()
	if a.Tag != TagString || b.Tag != TagString {
		vm.fail("CAT: operands must be strings")
	}
	sa := vm.image.Strings.Get(a.strIndex())
	sb := vm.image.Strings.Get(b.strIndex())
	id, err := vm.image.Strings.Intern(sa + sb)
	if err != nil {
		vm.fail("%v", err)
	}
	vm.push(stringValue(id))
}

// opCall implements the call convention: savedIP and savedFP are inserted
// between the caller's stack prefix and the already-pushed arguments, so
// the frame pointer ends up addressing the first argument/local slot.
func (vm *VM) opCall(target, n int) {
	if len(vm.stack) < n {
		vm.fail("CALL: stack underflow, need %d argument(s)", n)
	}
	args := make([]Value, n)
	copy(args, vm.stack[len(vm.stack)-n:])
	vm.stack = vm.stack[:len(vm.stack)-n]

	vm.push(numberValue(float64(vm.ip)))
	vm.push(numberValue(float64(vm.fp)))
	vm.fp = len(vm.stack)
	for _, a := range args {
		vm.push(a)
	}
	vm.ip = target
}

func (vm *VM) opRet() {
	if len(vm.stack) == 0 {
		vm.fail("RET: stack underflow")
	}
	retVal := vm.pop()
	if vm.fp < 2 {
		vm.fail("RET: no active call frame")
	}
	savedIP := vm.stack[vm.fp-2]
	savedFP := vm.stack[vm.fp-1]
	vm.stack = vm.stack[:vm.fp-2]
	vm.ip = int(savedIP.Num)
	vm.fp = int(savedFP.Num)
	vm.push(retVal)
}

func (vm *VM) opAGet() {
	key := vm.pop()
	coll := vm.pop()
	if coll.Tag != TagObject {
		vm.fail("AGET: not a collection")
	}
	ref := coll.objIndex()
	switch vm.heap.kindAt(ref) {
	case KindArray:
		if key.Tag != TagNumber {
			vm.fail("AGET: array index must be a number")
		}
		v, err := vm.heap.ArrayGet(ref, int(key.Num))
		if err != nil {
			vm.fail("%v", err)
		}
		vm.push(v)
	case KindBytes:
		if key.Tag != TagNumber {
			vm.fail("AGET: byte index must be a number")
		}
		b, err := vm.heap.BytesGet(ref, int(key.Num))
		if err != nil {
			vm.fail("%v", err)
		}
		vm.push(numberValue(float64(b)))
	case KindMap:
		if key.Tag != TagString {
			vm.fail("AGET: map key must be a string")
		}
		v, err := vm.heap.MapGet(ref, key.strIndex(), vm.emptyStr)
		if err != nil {
			vm.fail("%v", err)
		}
		vm.push(v)
	default:
		vm.fail("AGET: unsupported collection kind %v", vm.heap.kindAt(ref))
	}
}

func (vm *VM) opASet() {
	val := vm.pop()
	key := vm.pop()
	coll := vm.pop()
	if coll.Tag != TagObject {
		vm.fail("ASET: not a collection")
	}
	ref := coll.objIndex()
	switch vm.heap.kindAt(ref) {
	case KindArray:
		if key.Tag != TagNumber {
			vm.fail("ASET: array index must be a number")
		}
		if err := vm.heap.ArraySet(ref, int(key.Num), val); err != nil {
			vm.fail("%v", err)
		}
	case KindBytes:
		if key.Tag != TagNumber || val.Tag != TagNumber {
			vm.fail("ASET: byte index/value must be numbers")
		}
		if err := vm.heap.BytesSet(ref, int(key.Num), byte(val.Num)); err != nil {
			vm.fail("%v", err)
		}
	case KindMap:
		if key.Tag != TagString {
			vm.fail("ASET: map key must be a string")
		}
		if err := vm.heap.MapSet(ref, key.strIndex(), val); err != nil {
			vm.fail("%v", err)
		}
	default:
		vm.fail("ASET: unsupported collection kind %v", vm.heap.kindAt(ref))
	}
	vm.push(val)
}

func (vm *VM) opALen() {
	coll := vm.pop()
	if coll.Tag != TagObject {
		vm.fail("ALEN: not a collection")
	}
	ref := coll.objIndex()
	var n int
	var err error
	switch vm.heap.kindAt(ref) {
	case KindArray:
		n, err = vm.heap.ArrayLen(ref)
	case KindBytes:
		n, err = vm.heap.BytesLen(ref)
	case KindMap:
		n, err = vm.heap.MapLen(ref)
	default:
		vm.fail("ALEN: unsupported collection kind %v", vm.heap.kindAt(ref))
	}
	if err != nil {
		vm.fail("%v", err)
	}
	vm.push(numberValue(float64(n)))
}

func (vm *VM) opSlice() {
	end := vm.pop()
	start := vm.pop()
	coll := vm.pop()
	if coll.Tag != TagObject || start.Tag != TagNumber || end.Tag != TagNumber {
		vm.fail("SLICE: invalid operands")
	}
	ref, err := vm.heap.Slice(coll.objIndex(), int(start.Num), int(end.Num))
	if err != nil {
		vm.fail("%v", err)
	}
	vm.push(objectValue(ref))
}

func (vm *VM) opNative(id int) {
	nf, ok := vm.natives.Get(id)
	if !ok {
		vm.fail("unknown native id %d", id)
	}
	if len(vm.stack) < nf.Arity {
		vm.fail("native %q: stack underflow, need %d argument(s)", nf.Name, nf.Arity)
	}
	v, err := nf.Fn(vm)
	if err != nil {
		vm.fail("native %q: %v", nf.Name, err)
	}
	vm.push(v)
}

// formatValue renders v the way PRN and the str() native do: numbers in
// their shortest round-tripping decimal form, strings raw, and objects
// recursively by heap kind.
func (vm *VM) formatValue(v Value) string {
	switch v.Tag {
	case TagNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case TagString:
		return vm.image.Strings.Get(v.strIndex())
	case TagObject:
		return vm.formatObject(v.objIndex())
	default:
		return ""
	}
}

func (vm *VM) formatObject(ref int) string {
	kind := vm.heap.kindAt(ref)
	switch {
	case kind == KindArray:
		n, _ := vm.heap.ArrayLen(ref)
		parts := make([]string, n)
		for i := 0; i < n; i++ {
			v, _ := vm.heap.ArrayGet(ref, i)
			parts[i] = vm.formatValue(v)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case kind == KindBytes:
		n, _ := vm.heap.BytesLen(ref)
		var sb strings.Builder
		sb.WriteString(`b"`)
		for i := 0; i < n; i++ {
			b, _ := vm.heap.BytesGet(ref, i)
			sb.WriteString(escapeByteForDisplay(b))
		}
		sb.WriteByte('"')
		return sb.String()
	case kind == KindMap:
		return vm.formatMap(ref)
	case kind.isStruct():
		return vm.formatStruct(ref, int(kind))
	default:
		return fmt.Sprintf("[Ref: %d]", ref)
	}
}

func (vm *VM) formatMap(ref int) string {
	keys, vals, err := vm.heap.MapPairs(ref)
	if err != nil {
		return fmt.Sprintf("<map %d>", ref)
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%q=%s", vm.image.Strings.Get(k), vm.formatValue(vals[i]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (vm *VM) formatStruct(ref, structID int) string {
	if structID < 0 || structID >= len(vm.image.Structs) {
		return fmt.Sprintf("<struct#%d %d>", structID, ref)
	}
	layout := vm.image.Structs[structID]
	parts := make([]string, len(layout.Fields))
	for i, f := range layout.Fields {
		v, err := vm.heap.HGet(ref, structID, i)
		if err != nil {
			parts[i] = f + "=?"
			continue
		}
		parts[i] = f + "=" + vm.formatValue(v)
	}
	return layout.Name + "{" + strings.Join(parts, ", ") + "}"
}

// escapeByteForDisplay renders one byte for PRN's b"..." form: printable
// ASCII as itself, quote/backslash escaped, control bytes (C0, DEL, C1) in
// the caret form runeio.CaretForm defines, and any other byte as \xNN.
func escapeByteForDisplay(b byte) string {
	switch b {
	case '"':
		return `\"`
	case '\\':
		return `\\`
	}
	if b >= 0x20 && b < 0x7f {
		return string(rune(b))
	}
	if caret := runeio.CaretForm(rune(b)); caret != "" {
		return caret
	}
	return fmt.Sprintf(`\x%02x`, b)
}
