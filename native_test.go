package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestVM() *VM {
	img := newImage()
	return New(img, WithClock(func() float64 { return 42 }))
}

func TestNativeRegistryLookup(t *testing.T) {
	reg := defaultNatives()

	id, arity, ok := reg.Lookup("sqrt")
	assert.True(t, ok)
	assert.Equal(t, 1, arity)

	fn, ok := reg.Get(id)
	assert.True(t, ok)
	assert.Equal(t, "sqrt", fn.Name)

	_, _, ok = reg.Lookup("nope")
	assert.False(t, ok)

	_, ok = reg.Get(999)
	assert.False(t, ok)
}

func TestNativeRegistryReRegisterReplacesInPlace(t *testing.T) {
	reg := newNativeRegistry()
	id1 := reg.Register(NativeFunc{Name: "f", Arity: 1, Fn: func(vm *VM) (Value, error) { return numberValue(1), nil }})
	id2 := reg.Register(NativeFunc{Name: "f", Arity: 2, Fn: func(vm *VM) (Value, error) { return numberValue(2), nil }})

	assert.Equal(t, id1, id2)
	fn, _ := reg.Get(id1)
	assert.Equal(t, 2, fn.Arity)
}

func TestNativeLen(t *testing.T) {
	vm := newTestVM()
	id, _ := vm.image.Strings.Intern("hello")
	vm.push(stringValue(id))
	v, err := nativeLen(vm)
	assert.NoError(t, err)
	assert.Equal(t, numberValue(5), v)

	ref, _ := vm.heap.AllocArray([]Value{numberValue(1), numberValue(2)})
	vm.push(objectValue(ref))
	v, err = nativeLen(vm)
	assert.NoError(t, err)
	assert.Equal(t, numberValue(2), v)
}

func TestNativeStrAndNum(t *testing.T) {
	vm := newTestVM()
	vm.push(numberValue(3.5))
	v, err := nativeStr(vm)
	assert.NoError(t, err)
	assert.Equal(t, "3.5", vm.image.Strings.Get(v.strIndex()))

	id, _ := vm.image.Strings.Intern("12.25")
	vm.push(stringValue(id))
	v, err = nativeNum(vm)
	assert.NoError(t, err)
	assert.Equal(t, numberValue(12.25), v)

	// num on an already-numeric value is a no-op
	vm.push(numberValue(7))
	v, err = nativeNum(vm)
	assert.NoError(t, err)
	assert.Equal(t, numberValue(7), v)
}

func TestNativeMathHelpers(t *testing.T) {
	vm := newTestVM()

	vm.push(numberValue(-4))
	v, err := nativeAbs(vm)
	assert.NoError(t, err)
	assert.Equal(t, numberValue(4), v)

	vm.push(numberValue(2.9))
	v, err = nativeFloor(vm)
	assert.NoError(t, err)
	assert.Equal(t, numberValue(2), v)

	vm.push(numberValue(9))
	v, err = nativeSqrt(vm)
	assert.NoError(t, err)
	assert.Equal(t, numberValue(3), v)
}

func TestNativeNow(t *testing.T) {
	vm := newTestVM()
	v, err := nativeNow(vm)
	assert.NoError(t, err)
	assert.Equal(t, numberValue(42), v)
}
