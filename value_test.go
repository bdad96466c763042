package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueConstructors(t *testing.T) {
	n := numberValue(3.5)
	assert.Equal(t, TagNumber, n.Tag)
	assert.Equal(t, 3.5, n.Num)

	s := stringValue(7)
	assert.Equal(t, TagString, s.Tag)
	assert.Equal(t, 7, s.strIndex())

	o := objectValue(12)
	assert.Equal(t, TagObject, o.Tag)
	assert.Equal(t, 12, o.objIndex())
}

func TestValueIsTruthy(t *testing.T) {
	assert.True(t, numberValue(1).isTruthy())
	assert.True(t, numberValue(-1).isTruthy())
	assert.False(t, numberValue(0).isTruthy())
	// Only numbers participate in truthiness; strings/objects are never
	// truthy regardless of content.
	assert.False(t, stringValue(0).isTruthy())
	assert.False(t, objectValue(0).isTruthy())
}

func TestTagString(t *testing.T) {
	assert.Equal(t, "Number", TagNumber.String())
	assert.Equal(t, "String", TagString.String())
	assert.Equal(t, "Object", TagObject.String())
	assert.Equal(t, "Tag(7)", Tag(7).String())
}
