package main

import "fmt"

// StringPool is a deduplicated, append-only table mapping indices to byte
// strings. Interning an already-known string returns its existing index.
type StringPool struct {
	strs []string
	byID map[string]int
	max  int // 0 means unbounded
}

// MaxStringLen bounds how long a single pooled string may be; attempting to
// intern a longer one is a compile-time capacity overflow.
const MaxStringLen = 1 << 16

func newStringPool(maxEntries int) *StringPool {
	return &StringPool{byID: make(map[string]int), max: maxEntries}
}

// Intern returns the index for s, inserting it if not already present.
func (p *StringPool) Intern(s string) (int, error) {
	if len(s) > MaxStringLen {
		return 0, fmt.Errorf("string pool: entry too long (%d bytes)", len(s))
	}
	if id, ok := p.byID[s]; ok {
		return id, nil
	}
	if p.max > 0 && len(p.strs) >= p.max {
		return 0, fmt.Errorf("string pool: capacity exceeded (%d)", p.max)
	}
	id := len(p.strs)
	p.strs = append(p.strs, s)
	p.byID[s] = id
	return id, nil
}

// Get returns the string at idx, or "" if idx is out of range.
func (p *StringPool) Get(idx int) string {
	if idx < 0 || idx >= len(p.strs) {
		return ""
	}
	return p.strs[idx]
}

func (p *StringPool) Len() int { return len(p.strs) }

// ConstPool is a deduplicated table of distinct double values.
type ConstPool struct {
	vals []float64
	byID map[float64]int
	max  int
}

func newConstPool(maxEntries int) *ConstPool {
	return &ConstPool{byID: make(map[float64]int), max: maxEntries}
}

func (p *ConstPool) Intern(n float64) (int, error) {
	if id, ok := p.byID[n]; ok {
		return id, nil
	}
	if p.max > 0 && len(p.vals) >= p.max {
		return 0, fmt.Errorf("constant pool: capacity exceeded (%d)", p.max)
	}
	id := len(p.vals)
	p.vals = append(p.vals, n)
	p.byID[n] = id
	return id, nil
}

func (p *ConstPool) Get(idx int) float64 {
	if idx < 0 || idx >= len(p.vals) {
		return 0
	}
	return p.vals[idx]
}

func (p *ConstPool) Len() int { return len(p.vals) }
