package kthrift

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Encoder writes values in the binary protocol.
type Encoder struct {
	w   io.Writer
	buf []byte
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes v. Nothing is written if v is malformed.
func (e *Encoder) Encode(v Value) error {
	b, err := appendValue(e.buf[:0], v)
	if err != nil {
		return err
	}
	e.buf = b
	_, err = e.w.Write(b)
	return err
}

// Marshal returns the encoding of v.
func Marshal(v Value) ([]byte, error) {
	return appendValue(nil, v)
}

// appendValue appends the encoding of v. Container elements must match the
// container's declared element types.
func appendValue(b []byte, v Value) ([]byte, error) {
	switch v := v.(type) {
	case Bool:
		if v {
			return append(b, 1), nil
		}
		return append(b, 0), nil
	case Byte:
		return append(b, byte(v)), nil
	case I16:
		return binary.BigEndian.AppendUint16(b, uint16(v)), nil
	case I32:
		return binary.BigEndian.AppendUint32(b, uint32(v)), nil
	case I64:
		return binary.BigEndian.AppendUint64(b, uint64(v)), nil
	case Double:
		return binary.BigEndian.AppendUint64(b, math.Float64bits(float64(v))), nil
	case Binary:
		b = binary.BigEndian.AppendUint32(b, uint32(len(v)))
		return append(b, v...), nil
	case *Struct:
		var err error
		for _, f := range v.Fields {
			if f.Value == nil {
				continue
			}
			b = append(b, byte(f.Value.Type()))
			b = binary.BigEndian.AppendUint16(b, uint16(f.ID))
			if b, err = appendValue(b, f.Value); err != nil {
				return nil, err
			}
		}
		return append(b, byte(TypeStop)), nil
	case *List:
		return appendSequence(b, v.Elem, v.Values)
	case *Set:
		return appendSequence(b, v.Elem, v.Values)
	case *Map:
		if !v.Key.Valid() || !v.Elem.Valid() {
			return nil, fmt.Errorf("%w: map<%s,%s>", ErrUnknownTypeTag, v.Key, v.Elem)
		}
		b = append(b, byte(v.Key), byte(v.Elem))
		b = binary.BigEndian.AppendUint32(b, uint32(len(v.Entries)))
		var err error
		for _, e := range v.Entries {
			if err := checkType(v.Key, e.Key); err != nil {
				return nil, err
			}
			if err := checkType(v.Elem, e.Value); err != nil {
				return nil, err
			}
			if b, err = appendValue(b, e.Key); err != nil {
				return nil, err
			}
			if b, err = appendValue(b, e.Value); err != nil {
				return nil, err
			}
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", ErrTypeMismatch, v)
	}
}

func appendSequence(b []byte, elem Type, values []Value) ([]byte, error) {
	if !elem.Valid() {
		return nil, fmt.Errorf("%w: element type %s", ErrUnknownTypeTag, elem)
	}
	b = append(b, byte(elem))
	b = binary.BigEndian.AppendUint32(b, uint32(len(values)))
	var err error
	for _, v := range values {
		if err := checkType(elem, v); err != nil {
			return nil, err
		}
		if b, err = appendValue(b, v); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func checkType(want Type, v Value) error {
	if v == nil {
		return fmt.Errorf("%w: nil element, want %s", ErrTypeMismatch, want)
	}
	if v.Type() != want {
		return fmt.Errorf("%w: element is %s, want %s", ErrTypeMismatch, v.Type(), want)
	}
	return nil
}
