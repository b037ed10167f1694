// Write orchestrator (C7): the end-to-end write sequence of spec §4.8.
package shada

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// Write merges the editor's current state with whatever ShaDa file
// already exists at target and atomically replaces it, following the
// fourteen-step sequence of spec §4.8.
func Write(target string, ed Editor, opts WriteOptions) error {
	cfg := opts.Config
	mask := opts.mask()

	prev, err := os.Open(target)
	var prevReader *bufio.Reader
	hadPrev := err == nil
	if hadPrev {
		defer prev.Close()
		prevReader = bufio.NewReader(prev)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("shada: opening %s: %w", target, err)
	}

	tmp, tmpPath, err := createTempFile(target)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(tmp)

	state := newWriteMergerState(cfg, ed)

	notShaDa := false
	if hadPrev {
		notShaDa, err = mergePreviousFile(prevReader, state, mask, cfg)
		if err != nil {
			tmp.Close()
			discardTempFile(tmpPath)
			return err
		}
		if notShaDa {
			opts.logger().Warn("previous shada file does not look like a shada file, leaving target untouched", "target", target)
		}
	}

	state.finishHistory()
	if err := emitAll(w, state, mask, ed, cfg.NumMarkedFiles, opts.Force); err != nil {
		tmp.Close()
		discardTempFile(tmpPath)
		return err
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		discardTempFile(tmpPath)
		return fmt.Errorf("shada: flushing %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("shada: closing %s: %w", tmpPath, err)
	}

	if notShaDa {
		// The rename is skipped; the target is left exactly as it was.
		return discardTempFile(tmpPath)
	}
	if err := finishWrite(tmpPath, target); err != nil {
		opts.logger().Warn("could not replace target, temp file left in place", "target", target, "temp", tmpPath, "err", err)
		return err
	}
	return nil
}

// writeMergerState bundles every merger live during one write pass
// (spec §4.8 step 2).
type writeMergerState struct {
	history     [numHistoryKinds]*hmll
	marks       *marksMerger
	registers   *registersMerger
	search      *searchMerger
	vars        *variablesMerger
	passthrough []rawRecord
}

// rawRecord is a record this package has no merger for — an unknown
// type, or a register name with no saved slot — carried verbatim so
// it re-emits byte-identical (spec §4.2, §4.8 step 10).
type rawRecord struct {
	typ     RecordType
	ts      uint64
	payload []byte
}

func newWriteMergerState(cfg Config, ed Editor) *writeMergerState {
	s := &writeMergerState{
		marks:     newMarksMergerWithHash(cfg.JumplistSize, cfg.ChangelistSize, cfg.Hash),
		registers: newRegistersMerger(cfg.MaxRegLines),
		search:    &searchMerger{},
		vars:      newVariablesMerger(),
	}
	for k := HistoryKind(0); int(k) < numHistoryKinds; k++ {
		s.history[k] = newHMLL(k, cfg.HistoryLen[k], ed.HistoryCursor(k))
	}
	return s
}

func (s *writeMergerState) finishHistory() {
	for _, h := range s.history {
		h.finish()
	}
}

// forceTimestamp is substituted for an editor entry's real timestamp
// when force is set, so it always outranks anything merged from the
// previous file regardless of its actual age (spec §6 ":wshada!").
const forceTimestamp = ^uint64(0)

// snapshotEditor pulls the editor's own state into the merger
// (spec §4.8 step 9); these entries are observed, not owned.
func snapshotEditor(s *writeMergerState, ed Editor, force bool) {
	bump := func(ts uint64) uint64 {
		if force {
			return forceTimestamp
		}
		return ts
	}
	for name, e := range ed.GlobalMarks() {
		e.Timestamp = bump(e.Timestamp)
		if name >= '0' && name <= '9' {
			s.marks.mergeNumbered(e)
		} else {
			s.marks.mergeGlobal(name, e)
		}
	}
	for _, path := range ed.OpenBuffers() {
		if ed.MarkRemovable(path) {
			continue
		}
		if named, changes, ok := ed.LocalMarks(path); ok {
			for name, e := range named {
				e.Timestamp = bump(e.Timestamp)
				s.marks.mergeLocal(path, name, e)
			}
			for _, c := range changes {
				c.Timestamp = bump(c.Timestamp)
				s.marks.mergeChangeFor(path, c)
			}
		}
	}
	var lastJump JumpEntry
	haveLast := false
	for _, j := range ed.JumpList() {
		if haveLast && lastJump.File == j.File && lastJump.Line == j.Line && lastJump.Col == j.Col {
			continue // de-duplicate consecutive same file+position entries
		}
		j.Timestamp = bump(j.Timestamp)
		s.marks.mergeJump(j)
		lastJump, haveLast = j, true
	}
	for name, e := range ed.Registers() {
		e.Timestamp = bump(e.Timestamp)
		_ = s.registers.merge(name, e)
	}
	if e, ok := ed.SearchPattern(); ok {
		e.Timestamp = bump(e.Timestamp)
		s.search.mergeSearch(e)
	}
	if e, ok := ed.SubstitutePattern(); ok {
		e.Timestamp = bump(e.Timestamp)
		s.search.mergeSubstitute(e)
	}
	if e, ok := ed.ReplacementString(); ok {
		e.Timestamp = bump(e.Timestamp)
		s.search.mergeReplacement(e)
	}
}

// mergePreviousFile streams every record from the previous file
// through the appropriate merger (spec §4.8 step 10). It returns
// notShaDa=true if the stream turned out not to be a ShaDa file at
// all, in which case the caller still finishes the write but skips
// the rename.
func mergePreviousFile(r *bufio.Reader, s *writeMergerState, mask RecordMask, cfg Config) (notShaDa bool, err error) {
	first := true
	for {
		hdr, err := readRecordHeader(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return false, nil
			}
			if errors.Is(err, ErrNotShaDa) {
				return true, nil
			}
			return false, err
		}
		if first && looksNotShaDa(hdr) {
			return true, nil
		}
		first = false

		if cfg.MaxKbyte != 0 && hdr.Length > cfg.MaxKbyte*1024 {
			if err := skipBytes(r, hdr.Length); err != nil {
				return true, nil // ended mid-record
			}
			continue
		}
		if hdr.Type != 0 && hdr.Type <= uint64(recTypeMax) && !mask.has(RecordType(hdr.Type)) {
			if err := skipBytes(r, hdr.Length); err != nil {
				return true, nil // ended mid-record
			}
			continue
		}

		payload := make([]byte, hdr.Length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return true, nil // truncated payload
		}
		if hdr.Type == 0 || hdr.Type > uint64(recTypeMax) {
			s.passthrough = append(s.passthrough, rawRecord{typ: RecordType(hdr.Type), ts: hdr.Timestamp, payload: payload})
			continue
		}
		applyRecord(s, RecordType(hdr.Type), hdr.Timestamp, payload)
	}
}

// looksNotShaDa is the first-record "is this a ShaDa file?" check. It
// reports a stream whose first record header has type 10 (a newline
// byte) and a zero length. A first record of type 10 with a non-empty
// payload, or of an unknown type, is not flagged; the first record's
// payload is not test-parsed here.
func looksNotShaDa(hdr recordHeader) bool {
	return hdr.Type == uint64(RecTypeLocalMark) && hdr.Length == 0
}

// applyRecord decodes one record and feeds it to the merger matching
// its type. Decode errors mark the record malformed and it is simply
// dropped (spec §4.2 "decoding discipline").
func applyRecord(s *writeMergerState, typ RecordType, ts uint64, payload []byte) {
	switch typ {
	case RecTypeHistoryEntry:
		h, err := decodeHistoryEntry(payload)
		if err != nil {
			return
		}
		s.history[h.Kind%HistoryKind(numHistoryKinds)].insertFile(HistoryEntry{
			Text: h.Text, Sep: h.Sep, HasSep: h.HasSep, Timestamp: ts,
		})
	case RecTypeGlobalMark:
		m, err := decodeMark(payload, true)
		if err != nil {
			return
		}
		e := MarkEntry{File: m.File, Line: m.Line, Col: m.Col, Timestamp: ts}
		if m.Name >= '0' && m.Name <= '9' {
			s.marks.mergeNumbered(e)
		} else {
			s.marks.mergeGlobal(m.Name, e)
		}
	case RecTypeLocalMark:
		m, err := decodeMark(payload, true)
		if err != nil {
			return
		}
		s.marks.mergeLocal(m.File, m.Name, MarkEntry{File: m.File, Line: m.Line, Col: m.Col, Timestamp: ts})
	case RecTypeJump:
		m, err := decodeMark(payload, false)
		if err != nil {
			return
		}
		s.marks.mergeJump(JumpEntry{File: m.File, Line: m.Line, Col: m.Col, Timestamp: ts})
	case RecTypeChange:
		m, err := decodeMark(payload, false)
		if err != nil {
			return
		}
		s.marks.mergeChangeFor(m.File, PositionEntry{Line: m.Line, Col: m.Col, Timestamp: ts})
	case RecTypeRegister:
		r, err := decodeRegister(payload)
		if err != nil {
			return
		}
		if registerIndex(r.Name) < 0 {
			s.passthrough = append(s.passthrough, rawRecord{typ: typ, ts: ts, payload: payload})
			return
		}
		_ = s.registers.merge(r.Name, RegisterEntry{
			Contents: r.Contents, MotionType: r.MotionType, BlockWidth: r.BlockWidth,
			IsUnnamed: r.IsUnnamed, Timestamp: ts,
		})
	case RecTypeSearchPattern:
		p, err := decodeSearchPattern(payload)
		if err != nil {
			return
		}
		e := SearchEntry{
			Pattern: p.Pattern, Magic: p.Magic, SmartCase: p.SmartCase, HasLineOffset: p.HasLineOffset,
			PlaceCursorAtEnd: p.PlaceCursorAtEnd, Offset: p.Offset, IsLastUsed: p.IsLastUsed,
			Highlighted: p.Highlighted, SearchBackward: p.SearchBackward, Timestamp: ts,
		}
		if p.IsSubstitute {
			s.search.mergeSubstitute(e)
		} else {
			s.search.mergeSearch(e)
		}
	case RecTypeSubString:
		sub, err := decodeSubString(payload)
		if err != nil {
			return
		}
		s.search.mergeReplacement(StringEntry{Value: sub.Sub, Timestamp: ts})
	case RecTypeVariable:
		v, err := decodeVariable(payload)
		if err != nil {
			return
		}
		s.vars.mergeFile(v.Name, v.Value, v.IsBlob, ts)
	}
}

// emitAll writes the Header, BufferList, variables, and every merged
// category to w in the order spec §4.8 step 12 specifies.
func emitAll(w *bufio.Writer, s *writeMergerState, mask RecordMask, ed Editor, numMarkedFiles int, force bool) error {
	if err := emitHeader(w); err != nil {
		return err
	}
	if mask.has(RecTypeBufferList) {
		if err := emitBufferList(w, ed); err != nil {
			return err
		}
	}
	if mask.has(RecTypeVariable) {
		if err := dumpVariables(w, s.vars, ed); err != nil {
			return err
		}
	}

	snapshotEditor(s, ed, force)

	if cursor, ok := ed.GlobalMarks()['"']; ok {
		s.marks.promoteCursorMark(cursor)
	}

	if mask.has(RecTypeGlobalMark) {
		if err := emitGlobalMarks(w, s.marks); err != nil {
			return err
		}
	}
	if mask.has(RecTypeRegister) {
		if err := emitRegisters(w, s.registers); err != nil {
			return err
		}
	}
	if mask.has(RecTypeJump) {
		if err := emitJumps(w, s.marks); err != nil {
			return err
		}
	}
	if mask.has(RecTypeSearchPattern) || mask.has(RecTypeSubString) {
		if err := emitSearch(w, s.search); err != nil {
			return err
		}
	}
	if mask.has(RecTypeLocalMark) || mask.has(RecTypeChange) {
		if err := emitFileMarks(w, s.marks, numMarkedFiles); err != nil {
			return err
		}
	}
	if mask.has(RecTypeHistoryEntry) {
		if err := emitHistories(w, s.history); err != nil {
			return err
		}
	}
	for _, raw := range s.passthrough {
		if err := writeRecord(w, raw.typ, raw.ts, raw.payload); err != nil {
			return err
		}
	}
	return nil
}

func writeRecord(w *bufio.Writer, typ RecordType, ts uint64, payload []byte) error {
	var hdr [binaryHeaderMax]byte
	buf := writeRecordHeader(hdr[:0], uint64(typ), ts, len(payload))
	if _, err := w.Write(buf); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// binaryHeaderMax bounds the scratch array writeRecord uses: three
// integers, each at most 9 bytes wide.
const binaryHeaderMax = 27

func emitHeader(w *bufio.Writer) error {
	h := &HeaderPayload{Generator: "shada-go", MaxKbyte: DefaultMaxKbyte, Encoding: "utf-8"}
	payload, err := h.encode()
	if err != nil {
		return err
	}
	return writeRecord(w, RecTypeHeader, 0, payload)
}

func emitBufferList(w *bufio.Writer, ed Editor) error {
	for _, path := range ed.OpenBuffers() {
		if ed.MarkRemovable(path) {
			continue
		}
		m := &MarkPayload{File: path, Line: 1}
		payload, err := m.encode(false)
		if err != nil {
			return err
		}
		if err := writeRecord(w, RecTypeBufferList, 0, payload); err != nil {
			return err
		}
	}
	return nil
}

func dumpVariables(w *bufio.Writer, vm *variablesMerger, ed Editor) error {
	cursor := ed.GlobalVars()
	for {
		name, value, isBlob, ok := cursor.Next()
		if !ok {
			break
		}
		vm.markDumped(name)
		v := &VariablePayload{Name: name, Value: value, IsBlob: isBlob}
		payload, err := v.encode()
		if err != nil {
			if errors.Is(err, ErrIgnorableWrite) {
				continue
			}
			return err
		}
		if err := writeRecord(w, RecTypeVariable, 0, payload); err != nil {
			return err
		}
	}
	for _, stale := range vm.passthrough() {
		payload, err := stale.encode()
		if err != nil {
			continue
		}
		if err := writeRecord(w, RecTypeVariable, stale.Timestamp, payload); err != nil {
			return err
		}
	}
	return nil
}

func emitGlobalMarks(w *bufio.Writer, mm *marksMerger) error {
	for name, e := range mm.global {
		m := &MarkPayload{File: e.File, Line: e.Line, Col: e.Col, Name: name}
		payload, err := m.encode(true)
		if err != nil {
			return err
		}
		if err := writeRecord(w, RecTypeGlobalMark, e.Timestamp, payload); err != nil {
			return err
		}
	}
	for i, e := range mm.numbered {
		m := &MarkPayload{File: e.File, Line: e.Line, Col: e.Col, Name: '0' + byte(i)}
		payload, err := m.encode(true)
		if err != nil {
			return err
		}
		if err := writeRecord(w, RecTypeGlobalMark, e.Timestamp, payload); err != nil {
			return err
		}
	}
	return nil
}

func emitRegisters(w *bufio.Writer, rm *registersMerger) error {
	for name, e := range rm.entries() {
		r := &RegisterPayload{
			Name: name, Contents: e.Contents, MotionType: e.MotionType,
			BlockWidth: e.BlockWidth, IsUnnamed: e.IsUnnamed,
		}
		payload, err := r.encode()
		if err != nil {
			return err
		}
		if err := writeRecord(w, RecTypeRegister, e.Timestamp, payload); err != nil {
			return err
		}
	}
	return nil
}

func emitJumps(w *bufio.Writer, mm *marksMerger) error {
	for _, j := range mm.jumps {
		m := &MarkPayload{File: j.File, Line: j.Line, Col: j.Col}
		payload, err := m.encode(false)
		if err != nil {
			return err
		}
		if err := writeRecord(w, RecTypeJump, j.Timestamp, payload); err != nil {
			return err
		}
	}
	return nil
}

func emitSearch(w *bufio.Writer, sm *searchMerger) error {
	if sm.searchSet {
		if err := emitOneSearchPattern(w, sm.search, false); err != nil {
			return err
		}
	}
	if sm.substSet {
		if err := emitOneSearchPattern(w, sm.substitute, true); err != nil {
			return err
		}
	}
	if sm.replSet {
		s := &SubStringPayload{Sub: sm.replacement.Value}
		payload, err := s.encode()
		if err != nil {
			return err
		}
		if err := writeRecord(w, RecTypeSubString, sm.replacement.Timestamp, payload); err != nil {
			return err
		}
	}
	return nil
}

func emitOneSearchPattern(w *bufio.Writer, e SearchEntry, isSubstitute bool) error {
	p := &SearchPatternPayload{
		Pattern: e.Pattern, Magic: e.Magic, SmartCase: e.SmartCase, HasLineOffset: e.HasLineOffset,
		PlaceCursorAtEnd: e.PlaceCursorAtEnd, Offset: e.Offset, IsLastUsed: e.IsLastUsed,
		IsSubstitute: isSubstitute, Highlighted: e.Highlighted, SearchBackward: e.SearchBackward,
	}
	payload, err := p.encode()
	if err != nil {
		return err
	}
	return writeRecord(w, RecTypeSearchPattern, e.Timestamp, payload)
}

func emitFileMarks(w *bufio.Writer, mm *marksMerger, numMarkedFiles int) error {
	for _, f := range mm.orderedFiles(numMarkedFiles) {
		for i, used := range f.namedUsed {
			if !used {
				continue
			}
			e := f.named[i]
			m := &MarkPayload{File: f.path, Line: e.Line, Col: e.Col, Name: 'a' + byte(i)}
			payload, err := m.encode(true)
			if err != nil {
				return err
			}
			if err := writeRecord(w, RecTypeLocalMark, e.Timestamp, payload); err != nil {
				return err
			}
		}
		for _, a := range f.additional {
			m := &MarkPayload{File: f.path, Line: a.mark.Line, Col: a.mark.Col, Name: a.name}
			payload, err := m.encode(true)
			if err != nil {
				return err
			}
			if err := writeRecord(w, RecTypeLocalMark, a.mark.Timestamp, payload); err != nil {
				return err
			}
		}
		for _, c := range f.changes {
			m := &MarkPayload{File: f.path, Line: c.Line, Col: c.Col}
			payload, err := m.encode(false)
			if err != nil {
				return err
			}
			if err := writeRecord(w, RecTypeChange, c.Timestamp, payload); err != nil {
				return err
			}
		}
	}
	return nil
}

func emitHistories(w *bufio.Writer, rings [numHistoryKinds]*hmll) error {
	for kind, ring := range rings {
		for _, e := range ring.entries() {
			h := &HistoryEntryPayload{Kind: HistoryKind(kind), Text: e.Text, Sep: e.Sep, HasSep: e.HasSep}
			payload, err := h.encode()
			if err != nil {
				return err
			}
			if err := writeRecord(w, RecTypeHistoryEntry, e.Timestamp, payload); err != nil {
				return err
			}
		}
	}
	return nil
}
