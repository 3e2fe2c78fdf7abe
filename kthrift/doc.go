// Package kthrift reads and writes the Thrift binary protocol without
// generated code.
//
// The format is self-describing: every struct field carries a one byte type
// tag and a two byte field id, containers carry the tags of their elements
// and a four byte element count. A Decoder therefore dispatches on the type
// tag to know how many bytes the next value occupies, and produces a tree of
// Value nodes whose shape is only known at runtime.
//
//	d := kthrift.NewDecoder(f)
//	root, err := d.ReadStruct()
//	if errors.Is(err, kthrift.ErrUnexpectedEndOfInput) {
//	    // truncated file
//	}
//
// Value is a closed set of types: Bool, Byte, I16, I32, I64, Double, Binary,
// *List, *Set, *Map and *Struct. Strings and binary blobs share one wire
// type and are both decoded as Binary.
//
// Decoding never recovers from a malformed stream. Every error is returned
// as a *DecodeError carrying the byte offset at which decoding stopped and
// wrapping one of the sentinel errors below, so callers can use errors.Is.
//
// A Decoder is not safe for concurrent use. Independent Decoders over
// independent readers share no state.
package kthrift
