package kthrift

import "fmt"

// Type is the one byte wire tag that precedes every struct field and
// describes container elements.
type Type byte

const (
	TypeStop   Type = 0
	TypeBool   Type = 2
	TypeByte   Type = 3
	TypeDouble Type = 4
	TypeI16    Type = 6
	TypeI32    Type = 8
	TypeI64    Type = 10
	TypeString Type = 11
	TypeStruct Type = 12
	TypeMap    Type = 13
	TypeSet    Type = 14
	TypeList   Type = 15
)

// Valid reports whether t tags a value that can appear on the wire. TypeStop
// is not valid: it only terminates a struct.
func (t Type) Valid() bool {
	switch t {
	case TypeBool, TypeByte, TypeDouble, TypeI16, TypeI32, TypeI64,
		TypeString, TypeStruct, TypeMap, TypeSet, TypeList:
		return true
	default:
		return false
	}
}

// Container reports whether t is a struct, map, set or list.
func (t Type) Container() bool {
	switch t {
	case TypeStruct, TypeMap, TypeSet, TypeList:
		return true
	default:
		return false
	}
}

// minSize is the smallest number of bytes a value of type t occupies.
func (t Type) minSize() int64 {
	switch t {
	case TypeBool, TypeByte, TypeStruct:
		return 1
	case TypeI16:
		return 2
	case TypeI32, TypeString:
		return 4
	case TypeI64, TypeDouble:
		return 8
	case TypeSet, TypeList:
		return 5
	case TypeMap:
		return 6
	default:
		return 1
	}
}

func (t Type) String() string {
	switch t {
	case TypeStop:
		return "stop"
	case TypeBool:
		return "bool"
	case TypeByte:
		return "byte"
	case TypeDouble:
		return "double"
	case TypeI16:
		return "i16"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeString:
		return "string"
	case TypeStruct:
		return "struct"
	case TypeMap:
		return "map"
	case TypeSet:
		return "set"
	case TypeList:
		return "list"
	default:
		return fmt.Sprintf("type(%d)", byte(t))
	}
}
