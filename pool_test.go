package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringPoolInternDedups(t *testing.T) {
	p := newStringPool(0)

	id1, err := p.Intern("hello")
	assert.NoError(t, err)
	id2, err := p.Intern("world")
	assert.NoError(t, err)
	id3, err := p.Intern("hello")
	assert.NoError(t, err)

	assert.Equal(t, id1, id3, "re-interning the same string returns the same id")
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, "hello", p.Get(id1))
	assert.Equal(t, "world", p.Get(id2))
	assert.Equal(t, 2, p.Len())
}

func TestStringPoolGetOutOfRange(t *testing.T) {
	p := newStringPool(0)
	assert.Equal(t, "", p.Get(99))
	assert.Equal(t, "", p.Get(-1))
}

func TestStringPoolCapacity(t *testing.T) {
	p := newStringPool(1)
	_, err := p.Intern("a")
	assert.NoError(t, err)
	_, err = p.Intern("b")
	assert.Error(t, err)
	// re-interning the already-present entry still succeeds even at capacity
	_, err = p.Intern("a")
	assert.NoError(t, err)
}

func TestConstPoolInternDedups(t *testing.T) {
	p := newConstPool(0)

	id1, err := p.Intern(1.5)
	assert.NoError(t, err)
	id2, err := p.Intern(2.5)
	assert.NoError(t, err)
	id3, err := p.Intern(1.5)
	assert.NoError(t, err)

	assert.Equal(t, id1, id3)
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 1.5, p.Get(id1))
	assert.Equal(t, 2.5, p.Get(id2))
	assert.Equal(t, 2, p.Len())
}
