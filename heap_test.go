package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeapArray(t *testing.T) {
	h := newHeap(0)
	ref, err := h.AllocArray([]Value{numberValue(1), numberValue(2), numberValue(3)})
	assert.NoError(t, err)
	assert.Equal(t, KindArray, h.kindAt(ref))

	n, err := h.ArrayLen(ref)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	v, err := h.ArrayGet(ref, 1)
	assert.NoError(t, err)
	assert.Equal(t, numberValue(2), v)

	// negative indices count from the end
	v, err = h.ArrayGet(ref, -1)
	assert.NoError(t, err)
	assert.Equal(t, numberValue(3), v)

	assert.NoError(t, h.ArraySet(ref, 0, numberValue(99)))
	v, _ = h.ArrayGet(ref, 0)
	assert.Equal(t, numberValue(99), v)

	_, err = h.ArrayGet(ref, 5)
	assert.Error(t, err)
}

func TestHeapSlice(t *testing.T) {
	h := newHeap(0)
	ref, _ := h.AllocArray([]Value{numberValue(0), numberValue(1), numberValue(2), numberValue(3), numberValue(4)})

	sliced, err := h.Slice(ref, 1, 3)
	assert.NoError(t, err)
	n, _ := h.ArrayLen(sliced)
	assert.Equal(t, 3, n)
	v0, _ := h.ArrayGet(sliced, 0)
	assert.Equal(t, numberValue(1), v0)

	// empty when end < start
	empty, err := h.Slice(ref, 3, 1)
	assert.NoError(t, err)
	n, _ = h.ArrayLen(empty)
	assert.Equal(t, 0, n)
}

func TestHeapConcat(t *testing.T) {
	h := newHeap(0)
	a, _ := h.AllocArray([]Value{numberValue(1)})
	b, _ := h.AllocArray([]Value{numberValue(2), numberValue(3)})

	out, err := h.Concat(a, b)
	assert.NoError(t, err)
	n, _ := h.ArrayLen(out)
	assert.Equal(t, 3, n)
	v2, _ := h.ArrayGet(out, 2)
	assert.Equal(t, numberValue(3), v2)
}

func TestHeapBytes(t *testing.T) {
	h := newHeap(0)
	ref, err := h.AllocBytes([]byte("hi!"))
	assert.NoError(t, err)
	assert.Equal(t, KindBytes, h.kindAt(ref))

	n, err := h.BytesLen(ref)
	assert.NoError(t, err)
	assert.Equal(t, 3, n)

	b, err := h.BytesGet(ref, 1)
	assert.NoError(t, err)
	assert.Equal(t, byte('i'), b)

	assert.NoError(t, h.BytesSet(ref, 2, 'X'))
	b, _ = h.BytesGet(ref, 2)
	assert.Equal(t, byte('X'), b)

	out, err := h.ReadBytes(ref, 0, 2, 1)
	assert.NoError(t, err)
	assert.Equal(t, []byte("hi"), out)

	_, err = h.ReadBytes(ref, 0, 2, 2)
	assert.Error(t, err, "only stride 1 is supported")
}

func TestHeapBytesSpanningMultipleCells(t *testing.T) {
	h := newHeap(0)
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}
	ref, err := h.AllocBytes(data)
	assert.NoError(t, err)

	out, err := h.ReadBytes(ref, 0, len(data), 1)
	assert.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestHeapMap(t *testing.T) {
	h := newHeap(0)
	ref, err := h.AllocMap()
	assert.NoError(t, err)
	assert.Equal(t, KindMap, h.kindAt(ref))

	const emptyStrID = 0
	v, err := h.MapGet(ref, 42, emptyStrID)
	assert.NoError(t, err)
	assert.Equal(t, stringValue(emptyStrID), v, "a miss yields the empty-string sentinel")

	assert.NoError(t, h.MapSet(ref, 1, numberValue(10)))
	assert.NoError(t, h.MapSet(ref, 2, numberValue(20)))

	v, err = h.MapGet(ref, 1, emptyStrID)
	assert.NoError(t, err)
	assert.Equal(t, numberValue(10), v)

	ok, err := h.MapContains(ref, 2)
	assert.NoError(t, err)
	assert.True(t, ok)

	n, err := h.MapLen(ref)
	assert.NoError(t, err)
	assert.Equal(t, 2, n)

	// overwrite an existing key: count doesn't change
	assert.NoError(t, h.MapSet(ref, 1, numberValue(11)))
	n, _ = h.MapLen(ref)
	assert.Equal(t, 2, n)
	v, _ = h.MapGet(ref, 1, emptyStrID)
	assert.Equal(t, numberValue(11), v)
}

func TestHeapMapGrowsPastInitialCapacity(t *testing.T) {
	h := newHeap(0)
	ref, err := h.AllocMap()
	assert.NoError(t, err)

	for i := 0; i < defaultMapCap*3; i++ {
		assert.NoError(t, h.MapSet(ref, i, numberValue(float64(i))))
	}
	n, err := h.MapLen(ref)
	assert.NoError(t, err)
	assert.Equal(t, defaultMapCap*3, n)

	for i := 0; i < defaultMapCap*3; i++ {
		v, err := h.MapGet(ref, i, 0)
		assert.NoError(t, err)
		assert.Equal(t, numberValue(float64(i)), v)
	}
}

func TestHeapMapPairs(t *testing.T) {
	h := newHeap(0)
	ref, _ := h.AllocMap()
	assert.NoError(t, h.MapSet(ref, 3, numberValue(30)))
	assert.NoError(t, h.MapSet(ref, 4, numberValue(40)))

	keys, vals, err := h.MapPairs(ref)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []int{3, 4}, keys)
	assert.ElementsMatch(t, []Value{numberValue(30), numberValue(40)}, vals)
}

func TestHeapStruct(t *testing.T) {
	h := newHeap(0)
	ref, err := h.AllocStruct(5, 2)
	assert.NoError(t, err)
	assert.Equal(t, ObjKind(5), h.kindAt(ref))
	assert.True(t, h.kindAt(ref).isStruct())

	v, err := h.HGet(ref, 5, 0)
	assert.NoError(t, err)
	assert.Equal(t, numberValue(0), v, "fields start zeroed")

	assert.NoError(t, h.HSet(ref, 5, 1, stringValue(3)))
	v, err = h.HGet(ref, 5, 1)
	assert.NoError(t, err)
	assert.Equal(t, stringValue(3), v)

	_, err = h.HGet(ref, 6, 0)
	assert.Error(t, err, "struct id mismatch must be rejected")
}

func TestHeapOverflow(t *testing.T) {
	h := newHeap(4)
	_, err := h.AllocArray([]Value{numberValue(1), numberValue(2), numberValue(3), numberValue(4), numberValue(5)})
	assert.Error(t, err)
	var overflow HeapOverflow
	assert.ErrorAs(t, err, &overflow)
	assert.Equal(t, 4, overflow.Limit)
}

func TestNormIndex(t *testing.T) {
	assert.Equal(t, 2, normIndex(2, 5))
	assert.Equal(t, 4, normIndex(-1, 5))
	assert.Equal(t, 0, normIndex(-5, 5))
}
