// Record codec (C2): per-type payload encoding and decoding.
//
// Payloads are maps or arrays in the self-describing binary format
// (msgpack), handled through github.com/vmihailenco/msgpack/v5's
// low-level Encoder/Decoder primitives rather than its struct-tag
// reflection path — this package needs byte-exact control over which
// keys were actually present on disk so that unknown ones round-trip
// verbatim (spec invariant: unknown map keys and unknown record types
// must survive read→write unchanged).
//
// The outer framing integers (type/timestamp/length) are hand-parsed in
// framing.go instead; once a reader has decided a record is worth
// decoding, its payload is read into one bounded []byte (length is
// already known and capped by max_kbyte) and decoded from that slice
// with msgpack.
package shada

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// extras is the preserved-extras span: the opaque, already-encoded bytes
// of every map key (or trailing array element) a decoder did not
// recognize, kept so they can be written back byte-for-byte.
type extras struct {
	pairs int   // number of key/value pairs (maps) or elements (arrays) in bytes
	bytes []byte
}

func (e extras) empty() bool { return e.pairs == 0 }

// mapFieldHandlers maps a known 1-2 letter key to a decode function that
// consumes exactly that key's value from dec.
type mapFieldHandlers map[string]func(dec *msgpack.Decoder) error

// decodeMapPreserving decodes a map-shaped payload, dispatching known
// keys to handlers and capturing everything else into extras. payload
// must be the complete, already length-bounded record payload.
func decodeMapPreserving(payload []byte, handlers mapFieldHandlers) (extras, error) {
	r := bytes.NewReader(payload)
	dec := msgpack.NewDecoder(r)

	n, err := dec.DecodeMapLen()
	if err != nil {
		return extras{}, fmt.Errorf("%w: map header: %v", ErrMalformed, err)
	}

	var out bytes.Buffer
	pairs := 0
	for i := 0; i < n; i++ {
		keyStart := len(payload) - r.Len()
		key, err := dec.DecodeString()
		if err != nil {
			return extras{}, fmt.Errorf("%w: map key: %v", ErrMalformed, err)
		}
		if h, ok := handlers[key]; ok {
			if err := h(dec); err != nil {
				return extras{}, fmt.Errorf("%w: key %q: %v", ErrMalformed, key, err)
			}
			continue
		}
		if err := dec.Skip(); err != nil {
			return extras{}, fmt.Errorf("%w: skipping unknown key %q: %v", ErrMalformed, key, err)
		}
		valueEnd := len(payload) - r.Len()
		out.Write(payload[keyStart:valueEnd])
		pairs++
	}
	return extras{pairs: pairs, bytes: out.Bytes()}, nil
}

// encodeMap serializes a map payload: the known key count plus the
// preserved extras pair count, the known keys (via enc), then the raw
// extras bytes appended verbatim straight to buf (the same buffer enc
// writes to — safe because msgpack.Encoder never buffers ahead of what
// it has already written).
func encodeMap(buf *bytes.Buffer, enc *msgpack.Encoder, known int, write func(enc *msgpack.Encoder) error, ex extras) error {
	if err := enc.EncodeMapLen(known + ex.pairs); err != nil {
		return err
	}
	if err := write(enc); err != nil {
		return err
	}
	if !ex.empty() {
		buf.Write(ex.bytes)
	}
	return nil
}

// arrayElemHandlers decodes array elements positionally; element i uses
// handlers[i] when present.
type arrayElemHandlers []func(dec *msgpack.Decoder) error

// decodeArrayPreserving decodes an array-shaped payload, consuming the
// first len(handlers) elements with their handler and capturing any
// trailing elements into extras.
func decodeArrayPreserving(payload []byte, handlers arrayElemHandlers) (extras, error) {
	r := bytes.NewReader(payload)
	dec := msgpack.NewDecoder(r)

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return extras{}, fmt.Errorf("%w: array header: %v", ErrMalformed, err)
	}
	if n < len(handlers) {
		return extras{}, fmt.Errorf("%w: array has %d elements, need at least %d", ErrMalformed, n, len(handlers))
	}

	for i, h := range handlers {
		if err := h(dec); err != nil {
			return extras{}, fmt.Errorf("%w: array element %d: %v", ErrMalformed, i, err)
		}
	}

	var out bytes.Buffer
	trailing := 0
	for i := len(handlers); i < n; i++ {
		start := len(payload) - r.Len()
		if err := dec.Skip(); err != nil {
			return extras{}, fmt.Errorf("%w: trailing array element %d: %v", ErrMalformed, i, err)
		}
		end := len(payload) - r.Len()
		out.Write(payload[start:end])
		trailing++
	}
	return extras{pairs: trailing, bytes: out.Bytes()}, nil
}

// encodeArray serializes an array payload: known element count plus
// preserved trailing elements, the known elements (via write), then the
// raw trailing bytes appended verbatim straight to buf.
func encodeArray(buf *bytes.Buffer, enc *msgpack.Encoder, known int, write func(enc *msgpack.Encoder) error, ex extras) error {
	if err := enc.EncodeArrayLen(known + ex.pairs); err != nil {
		return err
	}
	if err := write(enc); err != nil {
		return err
	}
	if !ex.empty() {
		buf.Write(ex.bytes)
	}
	return nil
}

// marshalPayload runs fn against a fresh encoder over a scratch buffer
// and returns the serialized bytes — the "growable scratch buffer" spec
// §4.1 calls for so the framing codec can learn `length` up front.
func marshalPayload(fn func(buf *bytes.Buffer, enc *msgpack.Encoder) error) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := fn(&buf, enc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
