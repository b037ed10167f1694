// Record payload shapes (§3) and their known on-disk record types.
package shada

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// RecordType is the on-disk type tag. Type 0 is reserved and illegal;
// types above recTypeMax are preserved verbatim without interpretation.
type RecordType uint64

const (
	RecTypeMissing       RecordType = 0
	RecTypeHeader        RecordType = 1
	RecTypeSearchPattern RecordType = 2
	RecTypeSubString     RecordType = 3
	RecTypeHistoryEntry  RecordType = 4
	RecTypeRegister      RecordType = 5
	RecTypeVariable      RecordType = 6
	RecTypeGlobalMark    RecordType = 7
	RecTypeJump          RecordType = 8
	RecTypeBufferList    RecordType = 9
	RecTypeLocalMark     RecordType = 10
	RecTypeChange        RecordType = 11

	recTypeMax = RecTypeChange
)

// HistoryKind selects which of the five history rings an entry belongs
// to. Stored as the `histtype` field of a HistoryEntry payload.
type HistoryKind uint64

const (
	HistCmd HistoryKind = iota
	HistSearch
	HistExpr
	HistInput
	HistDebug

	numHistoryKinds = int(HistDebug) + 1
)

// HeaderPayload is informational only — never consumed on read, always
// emitted first on write.
type HeaderPayload struct {
	Generator string
	Version   string
	MaxKbyte  uint64
	PID       uint64
	Encoding  string
	Extras    extras
}

func decodeHeader(payload []byte) (*HeaderPayload, error) {
	h := &HeaderPayload{}
	var err error
	h.Extras, err = decodeMapPreserving(payload, mapFieldHandlers{
		"generator": func(d *msgpack.Decoder) (e error) { h.Generator, e = d.DecodeString(); return },
		"version":   func(d *msgpack.Decoder) (e error) { h.Version, e = d.DecodeString(); return },
		"max_kbyte": func(d *msgpack.Decoder) (e error) { h.MaxKbyte, e = d.DecodeUint64(); return },
		"pid":       func(d *msgpack.Decoder) (e error) { h.PID, e = d.DecodeUint64(); return },
		"encoding":  func(d *msgpack.Decoder) (e error) { h.Encoding, e = d.DecodeString(); return },
	})
	return h, err
}

func (h *HeaderPayload) encode() ([]byte, error) {
	known := 3 // max_kbyte, pid, encoding always present
	if h.Generator != "" {
		known++
	}
	if h.Version != "" {
		known++
	}
	return marshalPayload(func(buf *bytes.Buffer, enc *msgpack.Encoder) error {
		return encodeMap(buf, enc, known, func(enc *msgpack.Encoder) error {
			if h.Generator != "" {
				if err := enc.EncodeString("generator"); err != nil {
					return err
				}
				if err := enc.EncodeString(h.Generator); err != nil {
					return err
				}
			}
			if h.Version != "" {
				if err := enc.EncodeString("version"); err != nil {
					return err
				}
				if err := enc.EncodeString(h.Version); err != nil {
					return err
				}
			}
			for _, kv := range []struct {
				key string
				val uint64
			}{{"max_kbyte", h.MaxKbyte}, {"pid", h.PID}} {
				if err := enc.EncodeString(kv.key); err != nil {
					return err
				}
				if err := enc.EncodeUint64(kv.val); err != nil {
					return err
				}
			}
			if err := enc.EncodeString("encoding"); err != nil {
				return err
			}
			return enc.EncodeString(h.Encoding)
		}, h.Extras)
	})
}

// SearchPatternPayload. Keys matching the defaults documented in
// spec.md §6 (see defaultSearchPattern) are omitted on encode.
type SearchPatternPayload struct {
	Pattern          string // sp, required
	Magic            bool   // sm, default true
	SmartCase        bool   // sc, default false
	HasLineOffset    bool   // sl, default false
	PlaceCursorAtEnd bool   // se, default false
	Offset           int64  // so, default 0
	IsLastUsed       bool   // su, default true
	IsSubstitute     bool   // ss, default false
	Highlighted      bool   // sh, default false
	SearchBackward   bool   // sb, default false
	Timestamp        uint64
	FromFile         bool
	Extras           extras
}

// defaultSearchPattern returns the omitted-key defaults from spec §6.
func defaultSearchPattern() SearchPatternPayload {
	return SearchPatternPayload{Magic: true, IsLastUsed: true}
}

func decodeSearchPattern(payload []byte) (*SearchPatternPayload, error) {
	p := defaultSearchPattern()
	haveSP := false
	var err error
	p.Extras, err = decodeMapPreserving(payload, mapFieldHandlers{
		"sp": func(d *msgpack.Decoder) (e error) { p.Pattern, e = d.DecodeString(); haveSP = true; return },
		"sm": func(d *msgpack.Decoder) (e error) { p.Magic, e = d.DecodeBool(); return },
		"sc": func(d *msgpack.Decoder) (e error) { p.SmartCase, e = d.DecodeBool(); return },
		"sl": func(d *msgpack.Decoder) (e error) { p.HasLineOffset, e = d.DecodeBool(); return },
		"se": func(d *msgpack.Decoder) (e error) { p.PlaceCursorAtEnd, e = d.DecodeBool(); return },
		"su": func(d *msgpack.Decoder) (e error) { p.IsLastUsed, e = d.DecodeBool(); return },
		"ss": func(d *msgpack.Decoder) (e error) { p.IsSubstitute, e = d.DecodeBool(); return },
		"sh": func(d *msgpack.Decoder) (e error) { p.Highlighted, e = d.DecodeBool(); return },
		"sb": func(d *msgpack.Decoder) (e error) { p.SearchBackward, e = d.DecodeBool(); return },
		"so": func(d *msgpack.Decoder) (e error) { p.Offset, e = d.DecodeInt64(); return },
	})
	if err != nil {
		return nil, err
	}
	if !haveSP {
		return nil, fmt.Errorf("%w: search pattern missing required key sp", ErrMalformed)
	}
	return &p, nil
}

func (p *SearchPatternPayload) encode() ([]byte, error) {
	def := defaultSearchPattern()
	type field struct {
		key     string
		present bool
		write   func(enc *msgpack.Encoder) error
	}
	fields := []field{
		{"sp", true, func(enc *msgpack.Encoder) error { return enc.EncodeString(p.Pattern) }},
		{"sm", p.Magic != def.Magic, func(enc *msgpack.Encoder) error { return enc.EncodeBool(p.Magic) }},
		{"sc", p.SmartCase != def.SmartCase, func(enc *msgpack.Encoder) error { return enc.EncodeBool(p.SmartCase) }},
		{"sl", p.HasLineOffset != def.HasLineOffset, func(enc *msgpack.Encoder) error { return enc.EncodeBool(p.HasLineOffset) }},
		{"se", p.PlaceCursorAtEnd != def.PlaceCursorAtEnd, func(enc *msgpack.Encoder) error { return enc.EncodeBool(p.PlaceCursorAtEnd) }},
		{"su", p.IsLastUsed != def.IsLastUsed, func(enc *msgpack.Encoder) error { return enc.EncodeBool(p.IsLastUsed) }},
		{"ss", p.IsSubstitute != def.IsSubstitute, func(enc *msgpack.Encoder) error { return enc.EncodeBool(p.IsSubstitute) }},
		{"sh", p.Highlighted != def.Highlighted, func(enc *msgpack.Encoder) error { return enc.EncodeBool(p.Highlighted) }},
		{"sb", p.SearchBackward != def.SearchBackward, func(enc *msgpack.Encoder) error { return enc.EncodeBool(p.SearchBackward) }},
		{"so", p.Offset != def.Offset, func(enc *msgpack.Encoder) error { return enc.EncodeInt64(p.Offset) }},
	}
	known := 0
	for _, f := range fields {
		if f.present {
			known++
		}
	}
	return marshalPayload(func(buf *bytes.Buffer, enc *msgpack.Encoder) error {
		return encodeMap(buf, enc, known, func(enc *msgpack.Encoder) error {
			for _, f := range fields {
				if !f.present {
					continue
				}
				if err := enc.EncodeString(f.key); err != nil {
					return err
				}
				if err := f.write(enc); err != nil {
					return err
				}
			}
			return nil
		}, p.Extras)
	})
}

// SubStringPayload is the last substitute string, array `[sub]`.
type SubStringPayload struct {
	Sub       string
	Timestamp uint64
	FromFile  bool
	Extras    extras
}

func decodeSubString(payload []byte) (*SubStringPayload, error) {
	s := &SubStringPayload{}
	var err error
	s.Extras, err = decodeArrayPreserving(payload, arrayElemHandlers{
		func(d *msgpack.Decoder) (e error) { s.Sub, e = d.DecodeString(); return },
	})
	return s, err
}

func (s *SubStringPayload) encode() ([]byte, error) {
	return marshalPayload(func(buf *bytes.Buffer, enc *msgpack.Encoder) error {
		return encodeArray(buf, enc, 1, func(enc *msgpack.Encoder) error {
			return enc.EncodeString(s.Sub)
		}, s.Extras)
	})
}

// HistoryEntryPayload is array `[histtype, string]` or
// `[histtype, string, sepchar]` when histtype == HistSearch.
type HistoryEntryPayload struct {
	Kind      HistoryKind
	Text      string
	Sep       byte
	HasSep    bool
	Timestamp uint64
	FromFile  bool
	Extras    extras
}

func decodeHistoryEntry(payload []byte) (*HistoryEntryPayload, error) {
	h := &HistoryEntryPayload{}

	// The third positional element (if present) is the search separator
	// only when histtype == HistSearch; otherwise it belongs to extras.
	// That depends on a field decoded at runtime, so peek the array
	// length and the histtype up front — cheap, payloads are bounded by
	// max_kbyte — before committing to a handler list.
	n, kind, err := peekArrayLenAndKind(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: array header: %v", ErrMalformed, err)
	}
	h.Kind = HistoryKind(kind)

	handlers := arrayElemHandlers{
		func(d *msgpack.Decoder) (e error) { var k uint64; k, e = d.DecodeUint64(); h.Kind = HistoryKind(k); return },
		func(d *msgpack.Decoder) (e error) { h.Text, e = d.DecodeString(); return },
	}
	if n >= 3 && h.Kind == HistSearch {
		handlers = append(handlers, func(d *msgpack.Decoder) (e error) {
			var sep uint64
			sep, e = d.DecodeUint64()
			h.Sep = byte(sep)
			h.HasSep = true
			return
		})
	}
	h.Extras, err = decodeArrayPreserving(payload, handlers)
	return h, err
}

func (h *HistoryEntryPayload) encode() ([]byte, error) {
	known := 2
	if h.Kind == HistSearch && h.HasSep {
		known = 3
	}
	return marshalPayload(func(buf *bytes.Buffer, enc *msgpack.Encoder) error {
		return encodeArray(buf, enc, known, func(enc *msgpack.Encoder) error {
			if err := enc.EncodeUint64(uint64(h.Kind)); err != nil {
				return err
			}
			if err := enc.EncodeString(h.Text); err != nil {
				return err
			}
			if known == 3 {
				return enc.EncodeUint64(uint64(h.Sep))
			}
			return nil
		}, h.Extras)
	})
}

// RegisterPayload. `rc` is required and non-empty.
type RegisterPayload struct {
	Name       byte     // n, required
	Contents   []string // rc, required, non-empty
	MotionType uint64   // rt
	BlockWidth uint64   // rw
	IsUnnamed  bool     // ru
	Timestamp  uint64
	FromFile   bool
	Extras     extras
}

func decodeRegister(payload []byte) (*RegisterPayload, error) {
	r := &RegisterPayload{}
	haveName, haveContents := false, false
	var err error
	r.Extras, err = decodeMapPreserving(payload, mapFieldHandlers{
		"n": func(d *msgpack.Decoder) error {
			s, e := d.DecodeString()
			if e != nil {
				return e
			}
			if len(s) != 1 {
				return fmt.Errorf("register name must be one byte")
			}
			r.Name = s[0]
			haveName = true
			return nil
		},
		"rc": func(d *msgpack.Decoder) error {
			n, e := d.DecodeArrayLen()
			if e != nil {
				return e
			}
			r.Contents = make([]string, n)
			for i := 0; i < n; i++ {
				if r.Contents[i], e = d.DecodeString(); e != nil {
					return e
				}
			}
			haveContents = len(r.Contents) > 0
			return nil
		},
		"rt": func(d *msgpack.Decoder) (e error) { r.MotionType, e = d.DecodeUint64(); return },
		"rw": func(d *msgpack.Decoder) (e error) { r.BlockWidth, e = d.DecodeUint64(); return },
		"ru": func(d *msgpack.Decoder) (e error) { r.IsUnnamed, e = d.DecodeBool(); return },
	})
	if err != nil {
		return nil, err
	}
	if !haveName {
		return nil, fmt.Errorf("%w: register missing required key n", ErrMalformed)
	}
	if !haveContents {
		return nil, fmt.Errorf("%w: register missing non-empty rc", ErrMalformed)
	}
	return r, nil
}

func (r *RegisterPayload) encode() ([]byte, error) {
	return marshalPayload(func(buf *bytes.Buffer, enc *msgpack.Encoder) error {
		return encodeMap(buf, enc, 5, func(enc *msgpack.Encoder) error {
			if err := enc.EncodeString("rc"); err != nil {
				return err
			}
			if err := enc.EncodeArrayLen(len(r.Contents)); err != nil {
				return err
			}
			for _, line := range r.Contents {
				if err := enc.EncodeString(line); err != nil {
					return err
				}
			}
			if err := enc.EncodeString("n"); err != nil {
				return err
			}
			if err := enc.EncodeString(string(r.Name)); err != nil {
				return err
			}
			if err := enc.EncodeString("rt"); err != nil {
				return err
			}
			if err := enc.EncodeUint64(r.MotionType); err != nil {
				return err
			}
			if err := enc.EncodeString("rw"); err != nil {
				return err
			}
			if err := enc.EncodeUint64(r.BlockWidth); err != nil {
				return err
			}
			if err := enc.EncodeString("ru"); err != nil {
				return err
			}
			return enc.EncodeBool(r.IsUnnamed)
		}, r.Extras)
	})
}

// VariablePayload is array `[name, value]` or `[name, value, VAR_TYPE_BLOB]`.
// The trailing tag distinguishes a byte-blob from a text string; both
// are carried as raw bytes since the wire encoding is identical.
const varTypeBlob = 1

type VariablePayload struct {
	Name      string
	Value     []byte
	IsBlob    bool
	Timestamp uint64
	FromFile  bool
	Extras    extras
}

func decodeVariable(payload []byte) (*VariablePayload, error) {
	v := &VariablePayload{}
	n, _, err := peekArrayLenAndKind(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: array header: %v", ErrMalformed, err)
	}
	handlers := arrayElemHandlers{
		func(d *msgpack.Decoder) (e error) { v.Name, e = d.DecodeString(); return },
		func(d *msgpack.Decoder) (e error) { v.Value, e = d.DecodeBytes(); return },
	}
	if n >= 3 {
		handlers = append(handlers, func(d *msgpack.Decoder) error {
			tag, e := d.DecodeUint64()
			if e != nil {
				return e
			}
			v.IsBlob = tag == varTypeBlob
			return nil
		})
	}
	v.Extras, err = decodeArrayPreserving(payload, handlers)
	return v, err
}

func (v *VariablePayload) encode() ([]byte, error) {
	known := 2
	if v.IsBlob {
		known = 3
	}
	return marshalPayload(func(buf *bytes.Buffer, enc *msgpack.Encoder) error {
		return encodeArray(buf, enc, known, func(enc *msgpack.Encoder) error {
			if err := enc.EncodeString(v.Name); err != nil {
				return err
			}
			if err := enc.EncodeBytes(v.Value); err != nil {
				return err
			}
			if v.IsBlob {
				return enc.EncodeUint64(varTypeBlob)
			}
			return nil
		}, v.Extras)
	})
}

// peekArrayLenAndKind decodes only the array header and its first
// element (the numeric discriminant shared by HistoryEntry's histtype
// and, incidentally, harmless to read for Variable) without consuming
// the rest of the payload. The real decode re-reads from byte 0
// afterwards; payloads here are bounded by max_kbyte so the extra pass
// is cheap.
func peekArrayLenAndKind(payload []byte) (n int, first uint64, err error) {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	n, err = dec.DecodeArrayLen()
	if err != nil || n == 0 {
		return n, 0, err
	}
	first, err = dec.DecodeUint64()
	if err != nil {
		// First element isn't a uint (e.g. Variable's name string) —
		// that's fine, the caller only needs n in that case.
		return n, 0, nil
	}
	return n, first, nil
}

// MarkPayload is the shared shape of GlobalMark, LocalMark, Jump, Change,
// and BufferList entries: `f` required, `l` defaults to 1 (must be >0),
// `c` defaults to 0 (must be >=0). `n` (the mark letter) is present for
// GlobalMark/LocalMark and forbidden for Jump/Change/BufferList.
type MarkPayload struct {
	File      string // f, required
	Line      uint64 // l, default 1, must be > 0
	Col       uint64 // c, default 0
	Name      byte   // n; 0 means absent
	Timestamp uint64
	FromFile  bool
	Extras    extras
}

func decodeMark(payload []byte, wantName bool) (*MarkPayload, error) {
	m := &MarkPayload{Line: 1}
	haveFile := false
	handlers := mapFieldHandlers{
		"f": func(d *msgpack.Decoder) (e error) { m.File, e = d.DecodeString(); haveFile = true; return },
		"l": func(d *msgpack.Decoder) (e error) { m.Line, e = d.DecodeUint64(); return },
		"c": func(d *msgpack.Decoder) (e error) { m.Col, e = d.DecodeUint64(); return },
	}
	if wantName {
		handlers["n"] = func(d *msgpack.Decoder) error {
			s, e := d.DecodeString()
			if e != nil {
				return e
			}
			if len(s) != 1 {
				return fmt.Errorf("mark name must be one byte")
			}
			m.Name = s[0]
			return nil
		}
	} else {
		handlers["n"] = func(d *msgpack.Decoder) error {
			return fmt.Errorf("mark name key n is not allowed in this record type")
		}
	}
	var err error
	m.Extras, err = decodeMapPreserving(payload, handlers)
	if err != nil {
		return nil, err
	}
	if !haveFile {
		return nil, fmt.Errorf("%w: mark missing required key f", ErrMalformed)
	}
	if m.Line == 0 {
		return nil, fmt.Errorf("%w: mark line must be > 0", ErrMalformed)
	}
	return m, nil
}

func (m *MarkPayload) encode(withName bool) ([]byte, error) {
	known := 3
	if withName && m.Name != 0 {
		known = 4
	}
	return marshalPayload(func(buf *bytes.Buffer, enc *msgpack.Encoder) error {
		return encodeMap(buf, enc, known, func(enc *msgpack.Encoder) error {
			if err := enc.EncodeString("f"); err != nil {
				return err
			}
			if err := enc.EncodeString(m.File); err != nil {
				return err
			}
			if err := enc.EncodeString("l"); err != nil {
				return err
			}
			if err := enc.EncodeUint64(m.Line); err != nil {
				return err
			}
			if err := enc.EncodeString("c"); err != nil {
				return err
			}
			if err := enc.EncodeUint64(m.Col); err != nil {
				return err
			}
			if known == 4 {
				if err := enc.EncodeString("n"); err != nil {
					return err
				}
				if err := enc.EncodeString(string(m.Name)); err != nil {
					return err
				}
			}
			return nil
		}, m.Extras)
	})
}
