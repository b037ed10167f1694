package shada

import "sort"

// MemEditor is a minimal in-memory Editor, used by this package's own
// tests and suitable as a starting point for a host that doesn't
// already have a richer session model to adapt.
type MemEditor struct {
	History       [numHistoryKinds][]HistoryEntry
	Globals       map[string][]byte
	GlobalIsBlob  map[string]bool
	GlobalMarksM  map[byte]MarkEntry
	Buffers       map[string]*memBuffer
	BufferOrder   []string
	Jumps         []JumpEntry
	RegistersM    map[byte]RegisterEntry
	Search        *SearchEntry
	Substitute    *SearchEntry
	Replacement   *StringEntry
	RemovablePref []string
}

type memBuffer struct {
	named   map[byte]MarkEntry
	changes []PositionEntry
}

// NewMemEditor returns an empty MemEditor ready for use.
func NewMemEditor() *MemEditor {
	return &MemEditor{
		Globals:      make(map[string][]byte),
		GlobalIsBlob: make(map[string]bool),
		GlobalMarksM: make(map[byte]MarkEntry),
		Buffers:      make(map[string]*memBuffer),
		RegistersM:   make(map[byte]RegisterEntry),
	}
}

func (e *MemEditor) OpenBuffer(path string) {
	if _, ok := e.Buffers[path]; !ok {
		e.Buffers[path] = &memBuffer{named: make(map[byte]MarkEntry)}
		e.BufferOrder = append(e.BufferOrder, path)
	}
}

type sliceHistoryCursor struct {
	entries []HistoryEntry
	pos     int
}

func (c *sliceHistoryCursor) Next() (HistoryEntry, bool) {
	if c.pos >= len(c.entries) {
		return HistoryEntry{}, false
	}
	e := c.entries[c.pos]
	c.pos++
	return e, true
}

func (e *MemEditor) HistoryCursor(kind HistoryKind) HistoryCursor {
	cp := make([]HistoryEntry, len(e.History[kind]))
	copy(cp, e.History[kind])
	return &sliceHistoryCursor{entries: cp}
}

type sliceVarCursor struct {
	names  []string
	pos    int
	values map[string][]byte
	isBlob map[string]bool
}

func (c *sliceVarCursor) Next() (string, []byte, bool, bool) {
	if c.pos >= len(c.names) {
		return "", nil, false, false
	}
	name := c.names[c.pos]
	c.pos++
	return name, c.values[name], c.isBlob[name], true
}

func (e *MemEditor) GlobalVars() VarCursor {
	names := make([]string, 0, len(e.Globals))
	for n := range e.Globals {
		names = append(names, n)
	}
	sort.Strings(names)
	return &sliceVarCursor{names: names, values: e.Globals, isBlob: e.GlobalIsBlob}
}

func (e *MemEditor) GlobalMarks() map[byte]MarkEntry { return e.GlobalMarksM }

func (e *MemEditor) LocalMarks(path string) (map[byte]MarkEntry, []PositionEntry, bool) {
	b, ok := e.Buffers[path]
	if !ok {
		return nil, nil, false
	}
	return b.named, b.changes, true
}

func (e *MemEditor) OpenBuffers() []string { return e.BufferOrder }

func (e *MemEditor) JumpList() []JumpEntry { return e.Jumps }

func (e *MemEditor) Registers() map[byte]RegisterEntry { return e.RegistersM }

func (e *MemEditor) SearchPattern() (SearchEntry, bool) {
	if e.Search == nil {
		return SearchEntry{}, false
	}
	return *e.Search, true
}

func (e *MemEditor) SubstitutePattern() (SearchEntry, bool) {
	if e.Substitute == nil {
		return SearchEntry{}, false
	}
	return *e.Substitute, true
}

func (e *MemEditor) ReplacementString() (StringEntry, bool) {
	if e.Replacement == nil {
		return StringEntry{}, false
	}
	return *e.Replacement, true
}

func (e *MemEditor) SetRegister(name byte, r RegisterEntry) { e.RegistersM[name] = r }

func (e *MemEditor) SetGlobalMark(name byte, m MarkEntry) { e.GlobalMarksM[name] = m }

func (e *MemEditor) SetLocalMark(path string, name byte, m MarkEntry) bool {
	b, ok := e.Buffers[path]
	if !ok {
		return false
	}
	b.named[name] = m
	return true
}

func (e *MemEditor) InsertJump(jumps []JumpEntry) { e.Jumps = jumps }

func (e *MemEditor) InsertChange(path string, changes []PositionEntry) bool {
	b, ok := e.Buffers[path]
	if !ok {
		return false
	}
	b.changes = changes
	return true
}

func (e *MemEditor) SetSearchPattern(s SearchEntry)     { e.Search = &s }
func (e *MemEditor) SetSubstitutePattern(s SearchEntry) { e.Substitute = &s }
func (e *MemEditor) SetReplacementString(s StringEntry) { e.Replacement = &s }

func (e *MemEditor) SetGlobalVar(name string, value []byte, isBlob bool) {
	e.Globals[name] = value
	e.GlobalIsBlob[name] = isBlob
}

func (e *MemEditor) InsertHistory(kind HistoryKind, entries []HistoryEntry) {
	e.History[kind] = entries
}

func (e *MemEditor) MarkRemovable(path string) bool {
	for _, prefix := range e.RemovablePref {
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
