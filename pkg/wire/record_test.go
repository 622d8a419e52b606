package wire

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	want := Header{
		Timestamp:    123456789,
		MetadataID:   7,
		LoggerID:     2,
		DecoderID:    1,
		DynamicLevel: DynamicLevelNone,
		FlushFlagID:  0,
	}

	var buf bytes.Buffer
	if err := EncodeHeader(&buf, want); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}

	c := NewCursor(buf.Bytes())
	got, err := DecodeHeader(c)
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got != want {
		t.Fatalf("DecodeHeader() = %+v, want %+v", got, want)
	}
	if c.Remaining() != 0 {
		t.Fatalf("Remaining() = %d, want 0", c.Remaining())
	}
}

func TestHeaderRoundTripPreservesEventKind(t *testing.T) {
	want := Header{
		Timestamp:    42,
		LoggerID:     3,
		DecoderID:    1,
		DynamicLevel: DynamicLevelNone,
		FlushFlagID:  9,
		Kind:         KindFlush,
	}

	var buf bytes.Buffer
	if err := EncodeHeader(&buf, want); err != nil {
		t.Fatalf("EncodeHeader: %v", err)
	}

	got, err := DecodeHeader(NewCursor(buf.Bytes()))
	if err != nil {
		t.Fatalf("DecodeHeader: %v", err)
	}
	if got.Kind != KindFlush {
		t.Fatalf("DecodeHeader().Kind = %v, want KindFlush", got.Kind)
	}
	if got.FlushFlagID != 9 {
		t.Fatalf("DecodeHeader().FlushFlagID = %d, want 9", got.FlushFlagID)
	}
}

func TestStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteString(&buf, "hello world"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	c := NewCursor(buf.Bytes())
	got, err := c.ReadString()
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("ReadString() = %q, want %q", got, "hello world")
	}
}

func TestDecodeHeaderTruncated(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	if _, err := DecodeHeader(c); err == nil {
		t.Fatalf("DecodeHeader() on truncated buffer = nil error, want error")
	}
}
