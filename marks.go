// Mark/jump/change merger (C4): global named and numbered marks,
// per-file local marks, the jump list, and per-file change lists.
package shada

import (
	"sort"
	"strconv"
)

// extraMark is a local mark whose name the merger does not recognize
// as a lowercase letter; carried verbatim so it round-trips on
// re-emit (spec §4.4 "additional local marks").
type extraMark struct {
	name byte
	mark MarkEntry
}

// fileMarks is the per-file record local marks and the change list
// attach to, keyed by absolute path in marksMerger.files.
type fileMarks struct {
	path         string
	named        [26]MarkEntry // 'a'-'z'
	namedUsed    [26]bool
	additional   []extraMark
	changes      []PositionEntry // ascending by timestamp
	changeHashes map[uint64]bool
}

// positionKey hashes a (file, line, col) position so mergeChange/mergeJump can
// reject most non-duplicates without a linear scan of the list; a hit
// still falls through to the exact comparison to resolve collisions.
func positionKey(hash HashAlgorithm, file string, line, col uint64) uint64 {
	return keyHash(hash, file+"\x00"+strconv.FormatUint(line, 36)+"\x00"+strconv.FormatUint(col, 36))
}

// latestTimestamp returns the greatest timestamp contained in this
// file's marks/changes, used to order emission (spec §4.4 "file
// ordering for emission").
func (f *fileMarks) latestTimestamp() uint64 {
	var max uint64
	for i, used := range f.namedUsed {
		if used && f.named[i].Timestamp > max {
			max = f.named[i].Timestamp
		}
	}
	for _, a := range f.additional {
		if a.mark.Timestamp > max {
			max = a.mark.Timestamp
		}
	}
	for _, c := range f.changes {
		if c.Timestamp > max {
			max = c.Timestamp
		}
	}
	return max
}

// marksMerger holds every mark/jump/change slot live during one
// write (or read) pass.
type marksMerger struct {
	global         map[byte]MarkEntry // 'A'-'Z'
	numbered       []MarkEntry        // descending by timestamp, len <= numberedMarkCount
	files          map[string]*fileMarks
	jumps          []JumpEntry // ascending by timestamp, len <= jumplistSize
	jumpHashes     map[uint64]bool
	jumplistSize   int
	changelistSize int
	hash           HashAlgorithm
}

func newMarksMerger(jumplistSize, changelistSize int) *marksMerger {
	return newMarksMergerWithHash(jumplistSize, changelistSize, HashXXH3)
}

func newMarksMergerWithHash(jumplistSize, changelistSize int, hash HashAlgorithm) *marksMerger {
	return &marksMerger{
		global:         make(map[byte]MarkEntry),
		files:          make(map[string]*fileMarks),
		jumpHashes:     make(map[uint64]bool),
		jumplistSize:   jumplistSize,
		changelistSize: changelistSize,
		hash:           hash,
	}
}

func (m *marksMerger) fileFor(path string) *fileMarks {
	f, ok := m.files[path]
	if !ok {
		f = &fileMarks{path: path}
		m.files[path] = f
	}
	return f
}

// mergeGlobal applies newest-wins for a global named mark (A-Z).
func (m *marksMerger) mergeGlobal(name byte, e MarkEntry) {
	if cur, ok := m.global[name]; !ok || e.Timestamp >= cur.Timestamp {
		m.global[name] = e
	}
}

// mergeNumbered inserts a numbered-mark candidate, maintaining
// descending timestamp order and the fixed-10 rotation.
func (m *marksMerger) mergeNumbered(e MarkEntry) {
	for _, existing := range m.numbered {
		if existing.Timestamp == e.Timestamp && existing.File == e.File &&
			existing.Line == e.Line && existing.Col == e.Col {
			return // exact duplicate
		}
	}
	pos := sort.Search(len(m.numbered), func(i int) bool { return m.numbered[i].Timestamp < e.Timestamp })
	m.numbered = append(m.numbered, MarkEntry{})
	copy(m.numbered[pos+1:], m.numbered[pos:])
	m.numbered[pos] = e
	if len(m.numbered) > numberedMarkCount {
		m.numbered = m.numbered[:numberedMarkCount]
	}
}

// mergeLocal applies newest-wins for a local named mark, keyed by
// path and letter. Names outside 'a'-'z' go to the additional list,
// one entry per name, the newer timestamp replacing the older.
func (m *marksMerger) mergeLocal(path string, name byte, e MarkEntry) {
	f := m.fileFor(path)
	if name >= 'a' && name <= 'z' {
		i := name - 'a'
		if !f.namedUsed[i] || e.Timestamp >= f.named[i].Timestamp {
			f.named[i] = e
			f.namedUsed[i] = true
		}
		return
	}
	for idx, a := range f.additional {
		if a.name == name {
			if e.Timestamp >= a.mark.Timestamp {
				f.additional[idx].mark = e
			}
			return
		}
	}
	f.additional = append(f.additional, extraMark{name: name, mark: e})
}

// mergeJump inserts a jump-list candidate per spec §4.4: dedup by
// exact (file, position), insertion-ordered ascending by timestamp,
// drop-if-full-at-head, evict-oldest-if-full-elsewhere.
func (m *marksMerger) mergeJump(j JumpEntry) {
	key := positionKey(m.hash, j.File, j.Line, j.Col)
	if m.jumpHashes[key] {
		for _, existing := range m.jumps {
			if existing.File == j.File && existing.Line == j.Line && existing.Col == j.Col {
				return
			}
		}
	}
	pos := len(m.jumps)
	for pos > 0 && m.jumps[pos-1].Timestamp > j.Timestamp {
		pos--
	}
	if len(m.jumps) >= m.jumplistSize {
		if pos == 0 {
			return
		}
		m.jumps = m.jumps[1:]
		pos--
	}
	m.jumps = append(m.jumps, JumpEntry{})
	copy(m.jumps[pos+1:], m.jumps[pos:])
	m.jumps[pos] = j
	m.jumpHashes[key] = true
}

// mergeChange inserts a change-list candidate for one file, same
// rules as the jump list but keyed on position alone.
func (f *fileMarks) mergeChange(p PositionEntry, capacity int, hash HashAlgorithm) {
	if f.changeHashes == nil {
		f.changeHashes = make(map[uint64]bool)
	}
	key := positionKey(hash, f.path, p.Line, p.Col)
	if f.changeHashes[key] {
		for _, existing := range f.changes {
			if existing.Line == p.Line && existing.Col == p.Col {
				return
			}
		}
	}
	pos := len(f.changes)
	for pos > 0 && f.changes[pos-1].Timestamp > p.Timestamp {
		pos--
	}
	if len(f.changes) >= capacity {
		if pos == 0 {
			return
		}
		f.changes = f.changes[1:]
		pos--
	}
	f.changes = append(f.changes, PositionEntry{})
	copy(f.changes[pos+1:], f.changes[pos:])
	f.changes[pos] = p
	f.changeHashes[key] = true
}

func (m *marksMerger) mergeChangeFor(path string, p PositionEntry) {
	m.fileFor(path).mergeChange(p, m.changelistSize, m.hash)
}

// promoteCursorMark sets numbered mark '0' to the given position,
// rotating the existing numbered marks down (spec §4.8 step 11).
func (m *marksMerger) promoteCursorMark(e MarkEntry) {
	m.numbered = append([]MarkEntry{e}, m.numbered...)
	if len(m.numbered) > numberedMarkCount {
		m.numbered = m.numbered[:numberedMarkCount]
	}
}

// orderedFiles returns the per-file records sorted by greatest
// contained timestamp descending, truncated to the top n (spec §4.4
// "file ordering for emission"). n <= 0 means unlimited.
func (m *marksMerger) orderedFiles(n int) []*fileMarks {
	out := make([]*fileMarks, 0, len(m.files))
	for _, f := range m.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].latestTimestamp() > out[j].latestTimestamp() })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
