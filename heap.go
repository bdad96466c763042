package main

import (
	"fmt"
	"math"
)

// ObjKind is the header[0] word of a heap object: a negative sentinel for a
// built-in kind, or a non-negative struct id.
type ObjKind int

const (
	KindArray ObjKind = -1 - iota
	KindBytes
	KindMap
)

func (k ObjKind) String() string {
	switch {
	case k == KindArray:
		return "Array"
	case k == KindBytes:
		return "Bytes"
	case k == KindMap:
		return "Map"
	case k >= 0:
		return fmt.Sprintf("Struct#%d", int(k))
	default:
		return fmt.Sprintf("ObjKind(%d)", int(k))
	}
}

func (k ObjKind) isStruct() bool { return k >= 0 }

const (
	headerArray = 1 // [kind, length]
	headerBytes = 1 // [kind, length]
	headerMap   = 3 // [kind, capacity, count, dataPtr]
)

const mapHeaderWords = 4
const defaultMapCap = 8
const bytesPerCell = 8

// HeapOverflow is raised when the bump pointer would exceed the configured
// limit.
type HeapOverflow struct{ Requested, Limit int }

func (e HeapOverflow) Error() string {
	return fmt.Sprintf("heap overflow: requested %d cells past limit %d", e.Requested, e.Limit)
}

// Heap is a single flat array of doubles with a parallel array of type tags
// and a monotonically growing bump pointer. All objects are contiguous
// regions addressed by their starting index; nothing is ever freed during a
// run -- there is no garbage collector.
type Heap struct {
	vals  []float64
	tags  []Tag
	limit int // 0 means unbounded
}

func newHeap(limit int) *Heap {
	return &Heap{limit: limit}
}

func (h *Heap) Len() int { return len(h.vals) }

func (h *Heap) grow(n int) (base int, err error) {
	base = len(h.vals)
	need := base + n
	if h.limit > 0 && need > h.limit {
		return 0, HeapOverflow{Requested: need, Limit: h.limit}
	}
	if need > cap(h.vals) {
		const chunk = 1024
		newCap := cap(h.vals)*2 + chunk
		if newCap < need {
			newCap = need
		}
		nv := make([]float64, len(h.vals), newCap)
		copy(nv, h.vals)
		nt := make([]Tag, len(h.tags), newCap)
		copy(nt, h.tags)
		h.vals, h.tags = nv, nt
	}
	h.vals = h.vals[:need]
	h.tags = h.tags[:need]
	return base, nil
}

func (h *Heap) setCell(addr int, v Value) {
	h.vals[addr] = v.Num
	h.tags[addr] = v.Tag
}

func (h *Heap) getCell(addr int) Value {
	return Value{Tag: h.tags[addr], Num: h.vals[addr]}
}

func (h *Heap) kindAt(addr int) ObjKind {
	return ObjKind(int(h.vals[addr]))
}

func (h *Heap) checkAddr(addr int) error {
	if addr < 0 || addr >= len(h.vals) {
		return fmt.Errorf("invalid heap reference %d", addr)
	}
	return nil
}

// AllocArray reserves a new array object of len(vals) elements, populated
// from vals.
func (h *Heap) AllocArray(vals []Value) (int, error) {
	n := len(vals)
	base, err := h.grow(headerArray + 1 + n)
	if err != nil {
		return 0, err
	}
	h.vals[base], h.tags[base] = float64(KindArray), TagNumber
	h.vals[base+1], h.tags[base+1] = float64(n), TagNumber
	for i, v := range vals {
		h.setCell(base+headerArray+1+i, v)
	}
	return base, nil
}

func (h *Heap) ArrayLen(ref int) (int, error) {
	if err := h.checkAddr(ref); err != nil {
		return 0, err
	}
	if h.kindAt(ref) != KindArray {
		return 0, fmt.Errorf("not an array: %d", ref)
	}
	return int(h.vals[ref+1]), nil
}

// normIndex resolves a possibly-negative array index against length n:
// negative indices count backward from the end (len + idx).
func normIndex(i, n int) int {
	if i < 0 {
		return n + i
	}
	return i
}

func (h *Heap) ArrayGet(ref, idx int) (Value, error) {
	n, err := h.ArrayLen(ref)
	if err != nil {
		return Value{}, err
	}
	i := normIndex(idx, n)
	if i < 0 || i >= n {
		return Value{}, fmt.Errorf("array index out of bounds: %d (len %d)", idx, n)
	}
	addr := ref + headerArray + 1 + i
	return h.getCell(addr), nil
}

func (h *Heap) ArraySet(ref, idx int, v Value) error {
	n, err := h.ArrayLen(ref)
	if err != nil {
		return err
	}
	i := normIndex(idx, n)
	if i < 0 || i >= n {
		return fmt.Errorf("array index out of bounds: %d (len %d)", idx, n)
	}
	h.setCell(ref+headerArray+1+i, v)
	return nil
}

// Slice implements a[s:e], inclusive on both ends, clamped to bounds, with
// an empty result when e < s.
func (h *Heap) Slice(ref, s, e int) (int, error) {
	n, err := h.ArrayLen(ref)
	if err != nil {
		return 0, err
	}
	s = normIndex(s, n)
	e = normIndex(e, n)
	if s < 0 {
		s = 0
	}
	if e > n-1 {
		e = n - 1
	}
	if e < s {
		return h.AllocArray(nil)
	}
	out := make([]Value, 0, e-s+1)
	for i := s; i <= e; i++ {
		out = append(out, h.getCell(ref+headerArray+1+i))
	}
	return h.AllocArray(out)
}

// Concat implements ADD over two arrays: a new array holding a's elements
// followed by b's.
func (h *Heap) Concat(a, b int) (int, error) {
	an, err := h.ArrayLen(a)
	if err != nil {
		return 0, err
	}
	bn, err := h.ArrayLen(b)
	if err != nil {
		return 0, err
	}
	out := make([]Value, 0, an+bn)
	for i := 0; i < an; i++ {
		v, _ := h.ArrayGet(a, i)
		out = append(out, v)
	}
	for i := 0; i < bn; i++ {
		v, _ := h.ArrayGet(b, i)
		out = append(out, v)
	}
	return h.AllocArray(out)
}

// AllocBytes reserves a byte buffer of the given length, packing 8 bytes
// per double cell.
func (h *Heap) AllocBytes(data []byte) (int, error) {
	n := len(data)
	cells := (n + bytesPerCell - 1) / bytesPerCell
	base, err := h.grow(headerBytes + 1 + cells)
	if err != nil {
		return 0, err
	}
	h.vals[base], h.tags[base] = float64(KindBytes), TagNumber
	h.vals[base+1], h.tags[base+1] = float64(n), TagNumber
	for i := 0; i < cells; i++ {
		var word uint64
		for j := 0; j < bytesPerCell; j++ {
			k := i*bytesPerCell + j
			if k < n {
				word |= uint64(data[k]) << (8 * j)
			}
		}
		h.vals[base+headerBytes+1+i] = math.Float64frombits(word)
		h.tags[base+headerBytes+1+i] = TagNumber
	}
	return base, nil
}

func (h *Heap) BytesLen(ref int) (int, error) {
	if err := h.checkAddr(ref); err != nil {
		return 0, err
	}
	if h.kindAt(ref) != KindBytes {
		return 0, fmt.Errorf("not a byte buffer: %d", ref)
	}
	return int(h.vals[ref+1]), nil
}

func (h *Heap) byteWord(ref, cellIdx int) uint64 {
	return math.Float64bits(h.vals[ref+headerBytes+1+cellIdx])
}

func (h *Heap) BytesGet(ref, idx int) (byte, error) {
	n, err := h.BytesLen(ref)
	if err != nil {
		return 0, err
	}
	i := normIndex(idx, n)
	if i < 0 || i >= n {
		return 0, fmt.Errorf("byte index out of bounds: %d (len %d)", idx, n)
	}
	cell, off := i/bytesPerCell, i%bytesPerCell
	word := h.byteWord(ref, cell)
	return byte(word >> (8 * off)), nil
}

func (h *Heap) BytesSet(ref, idx int, b byte) error {
	n, err := h.BytesLen(ref)
	if err != nil {
		return err
	}
	i := normIndex(idx, n)
	if i < 0 || i >= n {
		return fmt.Errorf("byte index out of bounds: %d (len %d)", idx, n)
	}
	cell, off := i/bytesPerCell, i%bytesPerCell
	addr := ref + headerBytes + 1 + cell
	word := math.Float64bits(h.vals[addr])
	word &^= 0xff << (8 * off)
	word |= uint64(b) << (8 * off)
	h.vals[addr] = math.Float64frombits(word)
	return nil
}

// ReadBytes copies length bytes out of ref starting at start, honoring a
// stride of 1 (byte-aligned, the only stride read_bytes is meaningful
// with). Any other stride is rejected rather than silently ignored --
// see DESIGN.md.
func (h *Heap) ReadBytes(ref, start, length, stride int) ([]byte, error) {
	if stride != 1 {
		return nil, fmt.Errorf("read_bytes: unsupported stride %d", stride)
	}
	n, err := h.BytesLen(ref)
	if err != nil {
		return nil, err
	}
	if start < 0 || length < 0 || start+length > n {
		return nil, fmt.Errorf("read_bytes out of bounds: start=%d length=%d len=%d", start, length, n)
	}
	out := make([]byte, length)
	for i := 0; i < length; i++ {
		out[i], _ = h.BytesGet(ref, start+i)
	}
	return out, nil
}

// mapEmptySlot marks an unused (key,value) pair in a map's data region. Keys
// are string pool indices, which are >= 0, so -1 is the empty sentinel and
// key 0 stays usable.
const mapEmptySlot = -1

// AllocMap reserves an empty map with an initial capacity.
func (h *Heap) AllocMap() (int, error) {
	dataBase, err := h.allocMapData(defaultMapCap)
	if err != nil {
		return 0, err
	}
	base, err := h.grow(mapHeaderWords)
	if err != nil {
		return 0, err
	}
	h.vals[base], h.tags[base] = float64(KindMap), TagNumber
	h.vals[base+1], h.tags[base+1] = float64(defaultMapCap), TagNumber
	h.vals[base+2], h.tags[base+2] = 0, TagNumber
	h.vals[base+3], h.tags[base+3] = float64(dataBase), TagNumber
	return base, nil
}

// allocMapData bump-allocates a fresh data region of cap pairs, each pair
// occupying 2 cells (key tag/num, value tag/num), with keys initialized to
// the empty sentinel.
func (h *Heap) allocMapData(capacity int) (int, error) {
	base, err := h.grow(capacity * 2)
	if err != nil {
		return 0, err
	}
	for i := 0; i < capacity; i++ {
		h.vals[base+i*2] = mapEmptySlot
		h.tags[base+i*2] = TagNumber
	}
	return base, nil
}

func (h *Heap) mapHeader(ref int) (capacity, count, dataPtr int, err error) {
	if err = h.checkAddr(ref); err != nil {
		return
	}
	if h.kindAt(ref) != KindMap {
		err = fmt.Errorf("not a map: %d", ref)
		return
	}
	capacity = int(h.vals[ref+1])
	count = int(h.vals[ref+2])
	dataPtr = int(h.vals[ref+3])
	return
}

// mapProbe linearly probes for key (a string pool index) starting at its
// home slot, returning the slot index and whether it currently holds key.
func (h *Heap) mapProbe(dataPtr, capacity, key int) (slot int, found bool) {
	start := key % capacity
	if start < 0 {
		start += capacity
	}
	for i := 0; i < capacity; i++ {
		slot = (start + i) % capacity
		cur := int(h.vals[dataPtr+slot*2])
		if cur == mapEmptySlot {
			return slot, false
		}
		if cur == key {
			return slot, true
		}
	}
	return -1, false
}

// MapSet inserts or updates a string-keyed binding, growing (doubling, via
// a fresh bump allocation that abandons the old data region) once the map
// is at least half full.
// String keys compare by pool index, which is sound because the pool
// deduplicates.
func (h *Heap) MapSet(ref, key int, val Value) error {
	capacity, count, dataPtr, err := h.mapHeader(ref)
	if err != nil {
		return err
	}
	if count*2 >= capacity {
		newCap := capacity * 2
		newData, err := h.allocMapData(newCap)
		if err != nil {
			return err
		}
		for i := 0; i < capacity; i++ {
			k := int(h.vals[dataPtr+i*2])
			if k == mapEmptySlot {
				continue
			}
			v := h.getCell(dataPtr + i*2 + 1)
			slot, _ := h.mapProbe(newData, newCap, k)
			h.vals[newData+slot*2] = float64(k)
			h.setCell(newData+slot*2+1, v)
		}
		capacity, dataPtr = newCap, newData
		h.vals[ref+1] = float64(capacity)
		h.vals[ref+3] = float64(dataPtr)
	}

	slot, found := h.mapProbe(dataPtr, capacity, key)
	h.vals[dataPtr+slot*2] = float64(key)
	h.tags[dataPtr+slot*2] = TagNumber
	h.setCell(dataPtr+slot*2+1, val)
	if !found {
		h.vals[ref+2] = float64(count + 1)
	}
	return nil
}

// MapGet returns the bound value, or the empty string on a miss -- kept as
// the empty string rather than an absent-value sentinel; see DESIGN.md.
func (h *Heap) MapGet(ref, key int, emptyStr int) (Value, error) {
	capacity, _, dataPtr, err := h.mapHeader(ref)
	if err != nil {
		return Value{}, err
	}
	if capacity == 0 {
		return stringValue(emptyStr), nil
	}
	slot, found := h.mapProbe(dataPtr, capacity, key)
	if !found {
		return stringValue(emptyStr), nil
	}
	return h.getCell(dataPtr + slot*2 + 1), nil
}

func (h *Heap) MapContains(ref, key int) (bool, error) {
	capacity, _, dataPtr, err := h.mapHeader(ref)
	if err != nil {
		return false, err
	}
	if capacity == 0 {
		return false, nil
	}
	_, found := h.mapProbe(dataPtr, capacity, key)
	return found, nil
}

func (h *Heap) MapLen(ref int) (int, error) {
	_, count, _, err := h.mapHeader(ref)
	return count, err
}

// MapPairs returns every populated (key pool index, value) binding,
// probe-order rather than insertion-order since the header carries no
// separate ordering structure. Used only by display/debug formatting.
func (h *Heap) MapPairs(ref int) ([]int, []Value, error) {
	capacity, _, dataPtr, err := h.mapHeader(ref)
	if err != nil {
		return nil, nil, err
	}
	var keys []int
	var vals []Value
	for i := 0; i < capacity; i++ {
		k := int(h.vals[dataPtr+i*2])
		if k == mapEmptySlot {
			continue
		}
		keys = append(keys, k)
		vals = append(vals, h.getCell(dataPtr+i*2+1))
	}
	return keys, vals, nil
}

// AllocStruct reserves a struct object with the given id and field count,
// all fields initialized to the number 0.
func (h *Heap) AllocStruct(structID, fieldCount int) (int, error) {
	base, err := h.grow(1 + fieldCount)
	if err != nil {
		return 0, err
	}
	h.vals[base], h.tags[base] = float64(structID), TagNumber
	for i := 0; i < fieldCount; i++ {
		h.vals[base+1+i], h.tags[base+1+i] = 0, TagNumber
	}
	return base, nil
}

// checkStructID checks that ref is tagged with exactly structID,
// trapping otherwise.
func (h *Heap) checkStructID(ref, structID int) error {
	if err := h.checkAddr(ref); err != nil {
		return err
	}
	got := int(h.vals[ref])
	if got != structID {
		return fmt.Errorf("struct id mismatch: want %d, got %d at %d", structID, got, ref)
	}
	return nil
}

func (h *Heap) HGet(ref, structID, offset int) (Value, error) {
	if err := h.checkStructID(ref, structID); err != nil {
		return Value{}, err
	}
	return h.getCell(ref + 1 + offset), nil
}

func (h *Heap) HSet(ref, structID, offset int, v Value) error {
	if err := h.checkStructID(ref, structID); err != nil {
		return err
	}
	h.setCell(ref+1+offset, v)
	return nil
}
