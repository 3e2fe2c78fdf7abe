package kthrift

import (
	"errors"
	"fmt"
)

// Sentinel errors for malformed input.
var (
	ErrUnexpectedEndOfInput = errors.New("unexpected end of input")
	ErrUnknownTypeTag       = errors.New("unknown type tag")
	ErrInvalidLength        = errors.New("invalid length")
	ErrDuplicateMapKey      = errors.New("duplicate map key")
	ErrMaxDepthExceeded     = errors.New("maximum nesting depth exceeded")
	ErrTypeMismatch         = errors.New("type mismatch")
)

// DecodeError reports where in the stream decoding failed.
type DecodeError struct {
	// Offset is the number of bytes consumed from the start of the value
	// that was being decoded when the error was detected.
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("kthrift: decode failed at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
