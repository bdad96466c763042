package main

import "fmt"

// Tag identifies what a tagged value's double payload means: a plain
// number, an index into the string pool, or an index into the heap.
type Tag int

const (
	TagNumber Tag = iota
	TagString
	TagObject
)

func (t Tag) String() string {
	switch t {
	case TagNumber:
		return "Number"
	case TagString:
		return "String"
	case TagObject:
		return "Object"
	default:
		return fmt.Sprintf("Tag(%d)", int(t))
	}
}

// Value is the tagged operand carried on the VM stack and in every heap
// cell: one double plus a parallel type tag, standing in for a union type.
type Value struct {
	Tag Tag
	Num float64
}

func numberValue(n float64) Value { return Value{Tag: TagNumber, Num: n} }
func stringValue(idx int) Value   { return Value{Tag: TagString, Num: float64(idx)} }
func objectValue(idx int) Value   { return Value{Tag: TagObject, Num: float64(idx)} }

func (v Value) isTruthy() bool { return v.Tag == TagNumber && v.Num != 0 }

func (v Value) strIndex() int { return int(v.Num) }
func (v Value) objIndex() int { return int(v.Num) }
