package shada

// Editor is the abstract producer/consumer surface a host application
// implements so this package never has to know the shape of its
// in-memory session state (spec §6). Write uses the iterate-* methods
// to snapshot live state into the merger; Read uses the set-*/insert-*
// methods to push merged state back in.
//
// Every iterator is pull-style: the merger drains entries on its own
// schedule (interleaved with file records, oldest-to-newest) rather
// than being pushed a completed slice, so a host with a very long
// history never has to materialize it up front.
type Editor interface {
	// HistoryCursor returns a cursor over the live, in-memory history
	// ring for the given kind, oldest entry first.
	HistoryCursor(kind HistoryKind) HistoryCursor

	// GlobalVars returns a cursor over variables eligible for
	// persistence (the host has already applied its own flavour
	// predicate — function values and the like are never returned
	// here).
	GlobalVars() VarCursor

	// GlobalMarks returns the editor's current named (A-Z) and
	// numbered (0-9) global marks, keyed by mark letter/digit.
	GlobalMarks() map[byte]MarkEntry

	// LocalMarks returns the named marks and change list currently
	// held for the open buffer at path, or ok=false if no such buffer
	// is open.
	LocalMarks(path string) (marks map[byte]MarkEntry, changes []PositionEntry, ok bool)

	// OpenBuffers lists the paths of all open buffers, in the order
	// they should appear in an emitted BufferList.
	OpenBuffers() []string

	// JumpList returns the editor's current jump list, oldest first.
	JumpList() []JumpEntry

	// Registers returns the editor's current register contents, keyed
	// by register name.
	Registers() map[byte]RegisterEntry

	// SearchPattern/SubstitutePattern/ReplacementString return the
	// editor's current slots, with ok=false if unset.
	SearchPattern() (SearchEntry, bool)
	SubstitutePattern() (SearchEntry, bool)
	ReplacementString() (StringEntry, bool)

	// SetRegister, SetGlobalMark, SetLocalMark, InsertJump, InsertChange,
	// SetSearchPattern, SetSubstitutePattern, SetReplacementString, and
	// SetGlobalVar push merged, newest-known state back into the editor
	// during Read. SetLocalMark and InsertChange report whether the
	// editor accepted the value (each is a no-op, returning false, when
	// no buffer is open for the path); the others return nothing.
	SetRegister(name byte, r RegisterEntry)
	SetGlobalMark(name byte, m MarkEntry)
	SetLocalMark(path string, name byte, m MarkEntry) bool

	// InsertJump replaces the editor's jump list outright with jumps,
	// the result of merging the file's jump records into whatever the
	// editor held (bounded, deduplicated, ascending by timestamp) —
	// used once per Read call, not once per record.
	InsertJump(jumps []JumpEntry)

	// InsertChange replaces the change list for the open buffer at
	// path outright with changes, the same kind of fully-merged result
	// as InsertJump. Reports false if no such buffer is open.
	InsertChange(path string, changes []PositionEntry) bool

	SetSearchPattern(s SearchEntry)
	SetSubstitutePattern(s SearchEntry)
	SetReplacementString(s StringEntry)
	SetGlobalVar(name string, value []byte, isBlob bool)

	// InsertHistory replaces the live history ring for kind outright
	// with entries (oldest first), the result of merging the file's
	// history records into whatever the editor held through the same
	// bounded, deduplicating, newest-wins ring the write path uses —
	// used once per Read call, not once per record.
	InsertHistory(kind HistoryKind, entries []HistoryEntry)

	// MarkRemovable reports whether path sits under a user-configured
	// removable-media prefix; removable buffers are excluded from
	// mark/buffer emission on write (spec §4.8 step 4).
	MarkRemovable(path string) bool
}

// HistoryCursor drains one history ring oldest-to-newest. Next returns
// ok=false once exhausted.
type HistoryCursor interface {
	Next() (entry HistoryEntry, ok bool)
}

// VarCursor drains the editor's eligible global variables.
type VarCursor interface {
	Next() (name string, value []byte, isBlob bool, ok bool)
}

// HistoryEntry is one line of history together with its provenance
// timestamp; Sep/HasSep apply only to HistSearch entries.
type HistoryEntry struct {
	Text      string
	Sep       byte
	HasSep    bool
	Timestamp uint64
}

// MarkEntry is a (file, line, col) position with a provenance
// timestamp, shared by global/local marks.
type MarkEntry struct {
	File      string
	Line      uint64
	Col       uint64
	Timestamp uint64
}

// PositionEntry is a bare (line, col) position with a timestamp, used
// for change-list entries where the file is implicit.
type PositionEntry struct {
	Line      uint64
	Col       uint64
	Timestamp uint64
}

// JumpEntry is one jump-list slot.
type JumpEntry struct {
	File      string
	Line      uint64
	Col       uint64
	Timestamp uint64
}

// RegisterEntry is one register's saved contents.
type RegisterEntry struct {
	Contents   []string
	MotionType uint64
	BlockWidth uint64
	IsUnnamed  bool
	Timestamp  uint64
}

// SearchEntry is one search- or substitute-pattern slot.
type SearchEntry struct {
	Pattern          string
	Magic            bool
	SmartCase        bool
	HasLineOffset    bool
	PlaceCursorAtEnd bool
	Offset           int64
	IsLastUsed       bool
	Highlighted      bool
	SearchBackward   bool
	Timestamp        uint64
}

// StringEntry is a single timestamped string value (the replacement
// string slot).
type StringEntry struct {
	Value     string
	Timestamp uint64
}
