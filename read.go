// Read driver (C8): the end-to-end read sequence of spec §4.9.
package shada

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// ReadResult carries the read-only side effects of a Read call that
// don't belong on the Editor interface: the v:oldfiles list (file
// paths mentioned in the file for which no live buffer exists).
type ReadResult struct {
	OldFiles []string
}

// Read applies the ShaDa file at target to ed, following the
// dispatch rules of spec §4.9: newest-wins against whatever ed
// already holds, with Force making the file's values win outright.
func Read(target string, ed Editor, opts ReadOptions) (ReadResult, error) {
	f, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return ReadResult{}, nil
		}
		return ReadResult{}, fmt.Errorf("shada: opening %s: %w", target, err)
	}
	defer f.Close()

	cfg := opts.Config
	mask := opts.mask()
	r := bufio.NewReader(f)

	drv := newReadDriver(cfg, ed, opts.Force)

	first := true
	for {
		hdr, err := readRecordHeader(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break // kSDReadStatusFinished
			}
			if errors.Is(err, ErrNotShaDa) {
				opts.logger().Warn("shada file ended mid-record, keeping whatever was applied so far", "target", target, "err", err)
				break // kSDReadStatusNotShaDa: retain whatever was already applied
			}
			return drv.result(), err // kSDReadStatusReadError
		}
		if first && looksNotShaDa(hdr) {
			opts.logger().Warn("file does not look like a shada file", "target", target)
			break
		}
		first = false

		if cfg.MaxKbyte != 0 && hdr.Length > cfg.MaxKbyte*1024 {
			if err := skipBytes(r, hdr.Length); err != nil {
				return drv.result(), err
			}
			continue
		}
		if hdr.Type != 0 && hdr.Type <= uint64(recTypeMax) && !mask.has(RecordType(hdr.Type)) {
			if err := skipBytes(r, hdr.Length); err != nil {
				return drv.result(), err
			}
			continue
		}

		payload := make([]byte, hdr.Length)
		if _, err := io.ReadFull(r, payload); err != nil {
			opts.logger().Warn("shada file ended mid-record, keeping whatever was applied so far", "target", target, "err", err)
			break // truncated trailing record: stop, keep what was applied
		}
		drv.dispatch(RecordType(hdr.Type), hdr.Timestamp, payload) // kSDReadStatusMalformed is swallowed inside
	}

	return drv.result(), nil
}

// readDriver dispatches records against live editor state. Global and
// local marks and registers are compared with the editor's current
// value (newest-wins, or force-wins) as each record arrives; history,
// jumps, changes and the search/substitute/replacement slots are
// merged into the same merger types Write uses and pushed back into
// the editor once, in finish.
type readDriver struct {
	ed       Editor
	force    bool
	maxReg   int
	oldFiles []string
	seenOld  map[string]bool
	openBuf  *bloom

	history  [numHistoryKinds]*hmll
	marks    *marksMerger
	search   *searchMerger
	finished bool
}

func newReadDriver(cfg Config, ed Editor, force bool) *readDriver {
	buf := newBloom()
	for _, path := range ed.OpenBuffers() {
		buf.Add(path)
	}
	d := &readDriver{ed: ed, force: force, maxReg: cfg.MaxRegLines, seenOld: make(map[string]bool), openBuf: buf}

	for k := HistoryKind(0); int(k) < numHistoryKinds; k++ {
		d.history[k] = newHMLL(k, cfg.HistoryLen[k], ed.HistoryCursor(k))
	}

	d.marks = newMarksMergerWithHash(cfg.JumplistSize, cfg.ChangelistSize, cfg.Hash)
	for _, j := range ed.JumpList() {
		d.marks.mergeJump(j)
	}
	for _, path := range ed.OpenBuffers() {
		if _, changes, ok := ed.LocalMarks(path); ok {
			for _, c := range changes {
				d.marks.mergeChangeFor(path, c)
			}
		}
	}

	d.search = &searchMerger{}
	if e, ok := ed.SearchPattern(); ok {
		d.search.mergeSearch(e)
	}
	if e, ok := ed.SubstitutePattern(); ok {
		d.search.mergeSubstitute(e)
	}
	if e, ok := ed.ReplacementString(); ok {
		d.search.mergeReplacement(e)
	}
	return d
}

// effectiveTimestamp is the timestamp a file-sourced history/jump/change
// candidate competes with inside the hmll/marksMerger it is merged into:
// its own, unless Force is set, in which case it is bumped to
// forceTimestamp so it outranks whatever the editor already holds,
// mirroring the write path's own use of forceTimestamp (write.go).
func (d *readDriver) effectiveTimestamp(ts uint64) uint64 {
	if d.force {
		return forceTimestamp
	}
	return ts
}

// bufferOpen is a cheap pre-check before the (potentially expensive, on
// a host backed by real files or a network session store) call into
// ed.LocalMarks: a bloom-filter miss means the path is definitely not
// an open buffer, so LocalMark/Change records for it can be routed to
// v:oldfiles without ever asking the editor.
func (d *readDriver) bufferOpen(path string) bool {
	return d.openBuf.Contains(path)
}

// finish drains any editor history entries newer than every file
// record seen and pushes the fully merged, bounded, deduplicated
// history/jump/change state back into the editor (spec §4.9's claim
// that dispatch mirrors the write-merger's newest-wins rules applies
// to these bounded categories exactly as it does to the write path).
func (d *readDriver) finish() {
	if d.finished {
		return
	}
	d.finished = true
	for k := range d.history {
		d.history[k].finish()
		d.ed.InsertHistory(HistoryKind(k), d.history[k].entries())
	}
	d.ed.InsertJump(d.marks.jumps)
	for _, f := range d.marks.files {
		d.ed.InsertChange(f.path, f.changes)
	}
	if !d.force {
		// Offer the editor's own slots again so that a file entry with
		// the same timestamp does not displace them.
		if e, ok := d.ed.SearchPattern(); ok {
			d.search.mergeSearch(e)
		}
		if e, ok := d.ed.SubstitutePattern(); ok {
			d.search.mergeSubstitute(e)
		}
		if e, ok := d.ed.ReplacementString(); ok {
			d.search.mergeReplacement(e)
		}
	}
	d.search.applyToEditor(d.ed)
}

func (d *readDriver) result() ReadResult {
	d.finish()
	return ReadResult{OldFiles: d.oldFiles}
}

func (d *readDriver) addOldFile(path string) {
	if !d.seenOld[path] {
		d.seenOld[path] = true
		d.oldFiles = append(d.oldFiles, path)
	}
}

// wins reports whether a file-sourced entry with timestamp fileTS
// should overwrite the editor's existing value with timestamp curTS
// (curOK false meaning the editor has nothing yet): newest wins, a
// tie keeps the editor's value, and Force makes the file win outright
// regardless of age.
func (d *readDriver) wins(fileTS, curTS uint64, curOK bool) bool {
	return d.force || !curOK || fileTS > curTS
}

func (d *readDriver) dispatch(typ RecordType, ts uint64, payload []byte) {
	switch typ {
	case RecTypeHistoryEntry:
		h, err := decodeHistoryEntry(payload)
		if err != nil {
			return
		}
		d.history[h.Kind%HistoryKind(numHistoryKinds)].insertFile(HistoryEntry{
			Text: h.Text, Sep: h.Sep, HasSep: h.HasSep, Timestamp: d.effectiveTimestamp(ts),
		})

	case RecTypeGlobalMark:
		m, err := decodeMark(payload, true)
		if err != nil {
			return
		}
		e := MarkEntry{File: m.File, Line: m.Line, Col: m.Col, Timestamp: ts}
		cur, ok := d.ed.GlobalMarks()[m.Name]
		if d.wins(ts, cur.Timestamp, ok) {
			d.ed.SetGlobalMark(m.Name, e)
		}

	case RecTypeLocalMark:
		m, err := decodeMark(payload, true)
		if err != nil {
			return
		}
		if !d.bufferOpen(m.File) {
			d.addOldFile(m.File)
			return
		}
		named, _, ok := d.ed.LocalMarks(m.File)
		if !ok {
			d.addOldFile(m.File)
			return
		}
		cur, have := named[m.Name]
		if d.wins(ts, cur.Timestamp, have) {
			d.ed.SetLocalMark(m.File, m.Name, MarkEntry{File: m.File, Line: m.Line, Col: m.Col, Timestamp: ts})
		}

	case RecTypeJump:
		m, err := decodeMark(payload, false)
		if err != nil {
			return
		}
		d.marks.mergeJump(JumpEntry{File: m.File, Line: m.Line, Col: m.Col, Timestamp: d.effectiveTimestamp(ts)})

	case RecTypeChange:
		m, err := decodeMark(payload, false)
		if err != nil {
			return
		}
		if !d.bufferOpen(m.File) {
			d.addOldFile(m.File)
			return
		}
		d.marks.mergeChangeFor(m.File, PositionEntry{Line: m.Line, Col: m.Col, Timestamp: d.effectiveTimestamp(ts)})

	case RecTypeRegister:
		r, err := decodeRegister(payload)
		if err != nil || registerIndex(r.Name) < 0 {
			return
		}
		if d.maxReg > 0 && len(r.Contents) > d.maxReg {
			return
		}
		cur, ok := d.ed.Registers()[r.Name]
		if d.wins(ts, cur.Timestamp, ok) {
			d.ed.SetRegister(r.Name, RegisterEntry{
				Contents: r.Contents, MotionType: r.MotionType, BlockWidth: r.BlockWidth,
				IsUnnamed: r.IsUnnamed, Timestamp: ts,
			})
		}

	case RecTypeSearchPattern:
		p, err := decodeSearchPattern(payload)
		if err != nil {
			return
		}
		e := SearchEntry{
			Pattern: p.Pattern, Magic: p.Magic, SmartCase: p.SmartCase, HasLineOffset: p.HasLineOffset,
			PlaceCursorAtEnd: p.PlaceCursorAtEnd, Offset: p.Offset, IsLastUsed: p.IsLastUsed,
			Highlighted: p.Highlighted, SearchBackward: p.SearchBackward, Timestamp: d.effectiveTimestamp(ts),
		}
		if p.IsSubstitute {
			d.search.mergeSubstitute(e)
		} else {
			d.search.mergeSearch(e)
		}

	case RecTypeSubString:
		sub, err := decodeSubString(payload)
		if err != nil {
			return
		}
		d.search.mergeReplacement(StringEntry{Value: sub.Sub, Timestamp: d.effectiveTimestamp(ts)})

	case RecTypeVariable:
		v, err := decodeVariable(payload)
		if err != nil {
			return
		}
		d.ed.SetGlobalVar(v.Name, v.Value, v.IsBlob)

	case RecTypeBufferList:
		m, err := decodeMark(payload, false)
		if err != nil {
			return
		}
		if !d.bufferOpen(m.File) {
			d.addOldFile(m.File)
		}
	}
}
