// Package wire encodes and decodes the on-queue representation of a log
// record: a fixed header followed by an argument payload. This is the
// minimal stand-in for the out-of-scope argument-encoding/macro layer,
// giving the backend core something concrete to decode in tests and giving
// any real frontend a committed wire format to write against.
//
// Encoding follows the same reflect+binary.Write idiom
// EvSecDev-SDSyslog's protocol package uses for its own wire values:
// fixed-width fields, network byte order, one type switch per argument.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// DynamicLevelNone marks a header's DynamicLevel field as "not dynamic";
// headers built for a static-level record always set this.
const DynamicLevelNone uint8 = 0xFF

// EventKind distinguishes what a record's payload means to the backend:
// a record to format and dispatch, or a control record instructing the
// backend to flush sinks or manipulate a logger's backtrace ring.
type EventKind uint8

const (
	// KindLog is a normal formatted-message record.
	KindLog EventKind = iota
	// KindFlush asks the backend to flush every active sink, then mark the
	// record's FlushFlagID done.
	KindFlush
	// KindInitBacktrace asks the backend to (re)size a logger's backtrace
	// ring to the capacity carried in the record's payload.
	KindInitBacktrace
	// KindFlushBacktrace asks the backend to drain and emit a logger's
	// backtrace ring unconditionally, independent of the level-comparison
	// trigger normal dispatch uses.
	KindFlushBacktrace
)

// Header is the fixed-size portion of an encoded record.
type Header struct {
	Timestamp  uint64
	MetadataID uint32
	LoggerID   uint32
	DecoderID  uint32
	// DynamicLevel carries the record's level when the call site resolved it
	// at runtime; DynamicLevelNone otherwise.
	DynamicLevel uint8
	// FlushFlagID indexes a runtime-owned flush-flag table, standing in for
	// a raw completion-flag pointer; 0 means "no flush flag attached".
	FlushFlagID uint32
	// Kind is the record's event kind (see EventKind).
	Kind EventKind
}

const headerSize = 8 + 4 + 4 + 4 + 1 + 4 + 1

// EncodeHeader writes h's fixed fields to buf in big-endian order.
func EncodeHeader(buf *bytes.Buffer, h Header) error {
	for _, v := range []any{h.Timestamp, h.MetadataID, h.LoggerID, h.DecoderID, h.DynamicLevel, h.FlushFlagID, h.Kind} {
		if err := binary.Write(buf, binary.BigEndian, v); err != nil {
			return fmt.Errorf("wire: encode header: %w", err)
		}
	}
	return nil
}

// Cursor reads sequential, typed fields out of an encoded record payload,
// tracking position the way a decoder walks a queue's read buffer.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor wraps buf for sequential reads.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.pos
}

// Consumed returns the number of bytes read from the cursor so far.
func (c *Cursor) Consumed() int {
	return c.pos
}

// DecodeHeader reads a Header from the front of the cursor.
func DecodeHeader(c *Cursor) (Header, error) {
	if c.Remaining() < headerSize {
		return Header{}, fmt.Errorf("wire: decode header: need %d bytes, have %d", headerSize, c.Remaining())
	}
	r := bytes.NewReader(c.buf[c.pos:])
	var h Header
	for _, v := range []any{&h.Timestamp, &h.MetadataID, &h.LoggerID, &h.DecoderID, &h.DynamicLevel, &h.FlushFlagID, &h.Kind} {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return Header{}, fmt.Errorf("wire: decode header: %w", err)
		}
	}
	c.pos += headerSize
	return h, nil
}

// ReadString reads a length-prefixed UTF-8 string.
func (c *Cursor) ReadString() (string, error) {
	if c.Remaining() < 4 {
		return "", fmt.Errorf("wire: read string: truncated length prefix")
	}
	n := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	if c.Remaining() < int(n) {
		return "", fmt.Errorf("wire: read string: need %d bytes, have %d", n, c.Remaining())
	}
	s := string(c.buf[c.pos : c.pos+int(n)])
	c.pos += int(n)
	return s, nil
}

// WriteString appends a length-prefixed UTF-8 string to buf.
func WriteString(buf *bytes.Buffer, s string) error {
	if err := binary.Write(buf, binary.BigEndian, uint32(len(s))); err != nil {
		return fmt.Errorf("wire: write string: %w", err)
	}
	buf.WriteString(s)
	return nil
}

// ArgStore accumulates decoded positional and named arguments while a
// Decoder walks a Cursor.
type ArgStore struct {
	Positional []string
	Named      []NamedArg
}

// NamedArg is a decoded `{name}`-style formatted argument.
type NamedArg struct {
	Name  string
	Value string
}

// AddPositional appends a positionally-formatted argument value.
func (s *ArgStore) AddPositional(v string) {
	s.Positional = append(s.Positional, v)
}

// AddNamed appends a name/value pair.
func (s *ArgStore) AddNamed(name, value string) {
	s.Named = append(s.Named, NamedArg{Name: name, Value: value})
}

// Reset clears the store for reuse.
func (s *ArgStore) Reset() {
	s.Positional = s.Positional[:0]
	s.Named = s.Named[:0]
}
