package kthrift

// Value is a decoded unit of the binary protocol. The set of implementations
// is closed: Bool, Byte, I16, I32, I64, Double, Binary, *List, *Set, *Map and
// *Struct.
type Value interface {
	Type() Type
	value()
}

type (
	Bool   bool
	Byte   int8
	I16    int16
	I32    int32
	I64    int64
	Double float64
)

// Binary holds both strings and binary blobs, which share the same wire
// representation. It may contain arbitrary bytes, including zeros.
type Binary []byte

// String returns the bytes as a string.
func (b Binary) String() string { return string(b) }

// List is an ordered, homogeneous sequence.
type List struct {
	Elem   Type
	Values []Value
}

// Set has the same wire shape as List. Element order carries no meaning.
type Set struct {
	Elem   Type
	Values []Value
}

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   Value
	Value Value
}

// Map keeps entries in wire order. Keys are unique.
type Map struct {
	Key     Type
	Elem    Type
	Entries []MapEntry
}

// Field is a struct member as read from the wire.
type Field struct {
	ID    int16
	Value Value
}

// Struct keeps fields in wire order.
type Struct struct {
	Fields []Field
}

// Field returns the value of the first field with the given id.
func (s *Struct) Field(id int16) (Value, bool) {
	for _, f := range s.Fields {
		if f.ID == id {
			return f.Value, true
		}
	}
	return nil, false
}

// Set appends a field. Nil values are skipped so optional members can be
// passed through unconditionally.
func (s *Struct) Set(id int16, v Value) {
	if v == nil {
		return
	}
	s.Fields = append(s.Fields, Field{ID: id, Value: v})
}

func (Bool) Type() Type    { return TypeBool }
func (Byte) Type() Type    { return TypeByte }
func (I16) Type() Type     { return TypeI16 }
func (I32) Type() Type     { return TypeI32 }
func (I64) Type() Type     { return TypeI64 }
func (Double) Type() Type  { return TypeDouble }
func (Binary) Type() Type  { return TypeString }
func (*List) Type() Type   { return TypeList }
func (*Set) Type() Type    { return TypeSet }
func (*Map) Type() Type    { return TypeMap }
func (*Struct) Type() Type { return TypeStruct }

func (Bool) value()    {}
func (Byte) value()    {}
func (I16) value()     {}
func (I32) value()     {}
func (I64) value()     {}
func (Double) value()  {}
func (Binary) value()  {}
func (*List) value()   {}
func (*Set) value()    {}
func (*Map) value()    {}
func (*Struct) value() {}
