package kthrift

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Decoding limits. Both can be changed per Decoder.
const (
	DefaultMaxLength = 64 << 20
	DefaultMaxDepth  = 64
)

// preallocLimit caps how much is allocated up front for a declared length
// that cannot be checked against the remaining input.
const preallocLimit = 1 << 16

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithMaxLength bounds declared string lengths and container element
// counts. Larger declarations fail with ErrInvalidLength.
func WithMaxLength(n int) DecoderOption {
	return func(d *Decoder) {
		d.maxLength = n
	}
}

// WithMaxDepth bounds the nesting of structs and containers.
func WithMaxDepth(n int) DecoderOption {
	return func(d *Decoder) {
		d.maxDepth = n
	}
}

// WithRemaining tells the decoder how many bytes the source holds, for
// readers that cannot report it themselves. Declared lengths that cannot
// fit into what remains fail with ErrUnexpectedEndOfInput before anything
// is allocated.
func WithRemaining(n int64) DecoderOption {
	return func(d *Decoder) {
		d.remaining = n
	}
}

// Decoder reads values from a byte stream. It consumes exactly the bytes of
// each value it returns.
type Decoder struct {
	r         io.Reader
	scratch   [8]byte
	offset    int64
	remaining int64 // -1 if unknown
	maxLength int
	maxDepth  int
	depth     int
	keyBuf    []byte
}

// NewDecoder returns a Decoder reading from r. The remaining size is taken
// from r when it is a *bytes.Reader, *bytes.Buffer, *strings.Reader or a
// regular *os.File.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		r:         r,
		remaining: sizeOf(r),
		maxLength: DefaultMaxLength,
		maxDepth:  DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sizeOf(r io.Reader) int64 {
	switch src := r.(type) {
	case interface{ Len() int }:
		return int64(src.Len())
	case *os.File:
		fi, err := src.Stat()
		if err != nil || !fi.Mode().IsRegular() {
			return -1
		}
		pos, err := src.Seek(0, io.SeekCurrent)
		if err != nil {
			return -1
		}
		return fi.Size() - pos
	default:
		return -1
	}
}

// Unmarshal decodes a single struct from data. Bytes following the struct's
// stop marker are not inspected.
func Unmarshal(data []byte, opts ...DecoderOption) (*Struct, error) {
	return NewDecoder(bytes.NewReader(data), opts...).ReadStruct()
}

// Offset returns the number of bytes consumed so far.
func (d *Decoder) Offset() int64 {
	return d.offset
}

// ReadValue decodes one value of type t.
func (d *Decoder) ReadValue(t Type) (Value, error) {
	switch t {
	case TypeStruct:
		return d.ReadStruct()
	case TypeList:
		return d.ReadList()
	case TypeSet:
		return d.ReadSet()
	case TypeMap:
		return d.ReadMap()
	default:
		return d.ReadScalar(t)
	}
}

// ReadStruct decodes fields until the stop tag. Each field is a type tag,
// a two byte id and the value; the tag decides how the value is read.
func (d *Decoder) ReadStruct() (*Struct, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	s := &Struct{}
	for {
		tagOffset := d.offset
		tag, err := d.readByte()
		if err != nil {
			return nil, err
		}
		t := Type(tag)
		if t == TypeStop {
			return s, nil
		}
		if !t.Valid() {
			return nil, d.failAt(tagOffset, fmt.Errorf("%w: %d in struct field", ErrUnknownTypeTag, tag))
		}
		id, err := d.readI16()
		if err != nil {
			return nil, err
		}
		v, err := d.ReadValue(t)
		if err != nil {
			return nil, err
		}
		s.Fields = append(s.Fields, Field{ID: id, Value: v})
	}
}

// ReadList decodes an element type tag, a four byte count and that many
// elements.
func (d *Decoder) ReadList() (*List, error) {
	elem, values, err := d.readSequence()
	if err != nil {
		return nil, err
	}
	return &List{Elem: elem, Values: values}, nil
}

// ReadSet decodes a set. Sets have the wire shape of lists.
func (d *Decoder) ReadSet() (*Set, error) {
	elem, values, err := d.readSequence()
	if err != nil {
		return nil, err
	}
	return &Set{Elem: elem, Values: values}, nil
}

func (d *Decoder) readSequence() (Type, []Value, error) {
	if err := d.enter(); err != nil {
		return 0, nil, err
	}
	defer d.leave()

	elem, err := d.readType()
	if err != nil {
		return 0, nil, err
	}
	n, err := d.readLength(elem.minSize())
	if err != nil {
		return 0, nil, err
	}
	values := make([]Value, 0, min(n, preallocLimit))
	for i := 0; i < n; i++ {
		v, err := d.ReadValue(elem)
		if err != nil {
			return 0, nil, err
		}
		values = append(values, v)
	}
	return elem, values, nil
}

// ReadMap decodes the key and value type tags, a four byte count and that
// many pairs. A key that appears twice fails with ErrDuplicateMapKey.
func (d *Decoder) ReadMap() (*Map, error) {
	if err := d.enter(); err != nil {
		return nil, err
	}
	defer d.leave()

	key, err := d.readType()
	if err != nil {
		return nil, err
	}
	elem, err := d.readType()
	if err != nil {
		return nil, err
	}
	n, err := d.readLength(key.minSize() + elem.minSize())
	if err != nil {
		return nil, err
	}

	m := &Map{Key: key, Elem: elem, Entries: make([]MapEntry, 0, min(n, preallocLimit))}
	seen := make(map[string]struct{}, min(n, preallocLimit))
	for i := 0; i < n; i++ {
		keyOffset := d.offset
		k, err := d.ReadValue(key)
		if err != nil {
			return nil, err
		}
		if d.keyBuf, err = appendValue(d.keyBuf[:0], k); err != nil {
			return nil, d.failAt(keyOffset, err)
		}
		if _, ok := seen[string(d.keyBuf)]; ok {
			return nil, d.failAt(keyOffset, fmt.Errorf("%w: entry %d", ErrDuplicateMapKey, i))
		}
		seen[string(d.keyBuf)] = struct{}{}

		v, err := d.ReadValue(elem)
		if err != nil {
			return nil, err
		}
		m.Entries = append(m.Entries, MapEntry{Key: k, Value: v})
	}
	return m, nil
}

// ReadScalar decodes a fixed width value or a length prefixed string.
func (d *Decoder) ReadScalar(t Type) (Value, error) {
	switch t {
	case TypeBool:
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return Bool(b != 0), nil
	case TypeByte:
		b, err := d.readByte()
		if err != nil {
			return nil, err
		}
		return Byte(int8(b)), nil
	case TypeI16:
		v, err := d.readI16()
		if err != nil {
			return nil, err
		}
		return I16(v), nil
	case TypeI32:
		v, err := d.readI32()
		if err != nil {
			return nil, err
		}
		return I32(v), nil
	case TypeI64:
		if err := d.readFull(d.scratch[:8]); err != nil {
			return nil, err
		}
		return I64(int64(binary.BigEndian.Uint64(d.scratch[:8]))), nil
	case TypeDouble:
		if err := d.readFull(d.scratch[:8]); err != nil {
			return nil, err
		}
		return Double(math.Float64frombits(binary.BigEndian.Uint64(d.scratch[:8]))), nil
	case TypeString:
		n, err := d.readLength(1)
		if err != nil {
			return nil, err
		}
		b, err := d.readBytes(n)
		if err != nil {
			return nil, err
		}
		return Binary(b), nil
	default:
		return nil, d.fail(fmt.Errorf("%w: %s is not a scalar", ErrUnknownTypeTag, t))
	}
}

func (d *Decoder) enter() error {
	if d.depth >= d.maxDepth {
		return d.fail(fmt.Errorf("%w: %d", ErrMaxDepthExceeded, d.maxDepth))
	}
	d.depth++
	return nil
}

func (d *Decoder) leave() {
	d.depth--
}

func (d *Decoder) readType() (Type, error) {
	tagOffset := d.offset
	b, err := d.readByte()
	if err != nil {
		return 0, err
	}
	t := Type(b)
	if !t.Valid() {
		return 0, d.failAt(tagOffset, fmt.Errorf("%w: %d in container header", ErrUnknownTypeTag, b))
	}
	return t, nil
}

// readLength reads a four byte signed length and checks it against the
// configured bound and, when known, the bytes left in the source.
func (d *Decoder) readLength(elemSize int64) (int, error) {
	lengthOffset := d.offset
	n, err := d.readI32()
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, d.failAt(lengthOffset, fmt.Errorf("%w: negative length %d", ErrInvalidLength, n))
	}
	if int64(n) > int64(d.maxLength) {
		return 0, d.failAt(lengthOffset, fmt.Errorf("%w: length %d exceeds maximum %d", ErrInvalidLength, n, d.maxLength))
	}
	if d.remaining >= 0 && int64(n)*elemSize > d.remaining {
		return 0, d.fail(fmt.Errorf("%w: length %d needs at least %d bytes, %d left",
			ErrUnexpectedEndOfInput, n, int64(n)*elemSize, d.remaining))
	}
	return int(n), nil
}

func (d *Decoder) readByte() (byte, error) {
	if err := d.readFull(d.scratch[:1]); err != nil {
		return 0, err
	}
	return d.scratch[0], nil
}

func (d *Decoder) readI16() (int16, error) {
	if err := d.readFull(d.scratch[:2]); err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(d.scratch[:2])), nil
}

func (d *Decoder) readI32() (int32, error) {
	if err := d.readFull(d.scratch[:4]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(d.scratch[:4])), nil
}

func (d *Decoder) readBytes(n int) ([]byte, error) {
	if n <= preallocLimit || d.remaining >= 0 {
		b := make([]byte, n)
		if err := d.readFull(b); err != nil {
			return nil, err
		}
		return b, nil
	}

	// Unknown source size: grow while reading so a bogus length on a short
	// stream does not allocate the declared size.
	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, d.r, int64(n))
	d.advance(copied)
	if err != nil {
		return nil, d.ioError(err)
	}
	return buf.Bytes(), nil
}

func (d *Decoder) readFull(p []byte) error {
	n, err := io.ReadFull(d.r, p)
	d.advance(int64(n))
	if err != nil {
		return d.ioError(err)
	}
	return nil
}

func (d *Decoder) advance(n int64) {
	d.offset += n
	if d.remaining >= 0 {
		d.remaining = max(d.remaining-n, 0)
	}
}

func (d *Decoder) ioError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return d.fail(ErrUnexpectedEndOfInput)
	}
	return d.fail(err)
}

func (d *Decoder) fail(err error) error {
	return d.failAt(d.offset, err)
}

func (d *Decoder) failAt(offset int64, err error) error {
	return &DecodeError{Offset: offset, Err: err}
}
