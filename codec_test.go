package shada

import (
	"bytes"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

// TestDecodeMapPreservingUnknownKeys verifies that a map payload with
// one known key and one unknown key carries the unknown key's encoded
// bytes into extras untouched, covering testable property 3 (unknown
// keys round-trip byte-exact).
func TestDecodeMapPreservingUnknownKeys(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.EncodeMapLen(2)
	enc.EncodeString("n")
	enc.EncodeString("x")
	enc.EncodeString("zz")
	enc.EncodeUint64(7)

	var seen string
	extras, err := decodeMapPreserving(buf.Bytes(), mapFieldHandlers{
		"n": func(d *msgpack.Decoder) (e error) { seen, e = d.DecodeString(); return },
	})
	if err != nil {
		t.Fatalf("decodeMapPreserving: %v", err)
	}
	if seen != "x" {
		t.Errorf("known key n = %q, want %q", seen, "x")
	}
	if extras.pairs != 1 {
		t.Fatalf("extras.pairs = %d, want 1", extras.pairs)
	}

	// Re-encode and confirm the map header counts both the known key and
	// the preserved unknown one.
	out, err := marshalPayload(func(buf *bytes.Buffer, enc *msgpack.Encoder) error {
		return encodeMap(buf, enc, 1, func(enc *msgpack.Encoder) error {
			enc.EncodeString("n")
			return enc.EncodeString("x")
		}, extras)
	})
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}

	dec := msgpack.NewDecoder(bytes.NewReader(out))
	n, err := dec.DecodeMapLen()
	if err != nil || n != 2 {
		t.Fatalf("re-encoded map len = %d, err=%v, want 2", n, err)
	}
}

// TestDecodeArrayPreservingTrailing verifies array payloads keep
// trailing elements beyond the known positional fields (HistoryEntry,
// Variable, SubString all use this shape).
func TestDecodeArrayPreservingTrailing(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.EncodeArrayLen(3)
	enc.EncodeString("first")
	enc.EncodeString("second")
	enc.EncodeUint64(99)

	var first, second string
	extras, err := decodeArrayPreserving(buf.Bytes(), arrayElemHandlers{
		func(d *msgpack.Decoder) (e error) { first, e = d.DecodeString(); return },
		func(d *msgpack.Decoder) (e error) { second, e = d.DecodeString(); return },
	})
	if err != nil {
		t.Fatalf("decodeArrayPreserving: %v", err)
	}
	if first != "first" || second != "second" {
		t.Errorf("decoded (%q, %q), want (first, second)", first, second)
	}
	if extras.pairs != 1 {
		t.Fatalf("extras.pairs = %d, want 1", extras.pairs)
	}
}

// TestDecodeArrayPreservingTooShort verifies that an array shorter
// than the known field count is reported as malformed rather than
// panicking on an out-of-range decode.
func TestDecodeArrayPreservingTooShort(t *testing.T) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.EncodeArrayLen(1)
	enc.EncodeString("only")

	_, err := decodeArrayPreserving(buf.Bytes(), arrayElemHandlers{
		func(d *msgpack.Decoder) (e error) { _, e = d.DecodeString(); return },
		func(d *msgpack.Decoder) (e error) { _, e = d.DecodeString(); return },
	})
	if err == nil {
		t.Fatal("decodeArrayPreserving on too-short array: want error, got nil")
	}
}
