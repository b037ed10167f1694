package shada

import "testing"

// emptyCursor is a HistoryCursor with nothing in it, for tests that
// don't need to exercise the editor-merge side of HMLL.
type emptyCursor struct{}

func (emptyCursor) Next() (HistoryEntry, bool) { return HistoryEntry{}, false }

// TestHMLLBound covers testable property 7: after N+k insertions with
// strictly ascending timestamps into a ring of size N, exactly N
// entries remain and they are the newest N.
func TestHMLLBound(t *testing.T) {
	const n = 3
	h := newHMLL(HistCmd, n, emptyCursor{})
	for i := 0; i < n+2; i++ {
		h.insertFile(HistoryEntry{Text: string(rune('a' + i)), Timestamp: uint64(i)})
	}
	entries := h.entries()
	if len(entries) != n {
		t.Fatalf("len(entries) = %d, want %d", len(entries), n)
	}
	wantFirstTS := uint64(2) // entries 0 and 1 should have been evicted
	if entries[0].Timestamp != wantFirstTS {
		t.Errorf("oldest remaining timestamp = %d, want %d", entries[0].Timestamp, wantFirstTS)
	}
	if entries[len(entries)-1].Timestamp != uint64(n+1) {
		t.Errorf("newest remaining timestamp = %d, want %d", entries[len(entries)-1].Timestamp, n+1)
	}
}

// TestHMLLNewestWinsOnDuplicateString covers testable property 5: two
// entries with the same string, different timestamps, merge to a
// single entry carrying the greater timestamp.
func TestHMLLNewestWinsOnDuplicateString(t *testing.T) {
	h := newHMLL(HistCmd, 10, emptyCursor{})
	h.insertFile(HistoryEntry{Text: "same", Timestamp: 1000})
	h.insertFile(HistoryEntry{Text: "same", Timestamp: 2000})
	entries := h.entries()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Timestamp != 2000 {
		t.Errorf("timestamp = %d, want 2000", entries[0].Timestamp)
	}
}

// fixedCursor replays a fixed slice of entries, used to drive HMLL's
// editor-merge side deterministically.
type fixedCursor struct {
	entries []HistoryEntry
	pos     int
}

func (c *fixedCursor) Next() (HistoryEntry, bool) {
	if c.pos >= len(c.entries) {
		return HistoryEntry{}, false
	}
	e := c.entries[c.pos]
	c.pos++
	return e, true
}

// TestHMLLTieBreakPrefersEditor covers testable property 6: on an
// exact timestamp tie between a file entry and an editor entry for the
// same string, the editor's contribution is kept.
func TestHMLLTieBreakPrefersEditor(t *testing.T) {
	cursor := &fixedCursor{entries: []HistoryEntry{{Text: "same", Timestamp: 1000}}}
	h := newHMLL(HistCmd, 10, cursor)
	h.insertFile(HistoryEntry{Text: "same", Timestamp: 1000})
	h.finish()

	entries := h.entries()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	idx, ok := h.byText["same"]
	if !ok {
		t.Fatal("entry for \"same\" missing from byText index")
	}
	if h.nodes[idx].fromFile {
		t.Errorf("surviving entry is marked fromFile=true, want the editor's (fromFile=false)")
	}
}

// TestHMLLMergeWithEditorScenarioS1 reproduces spec §8 scenario S1: a
// file's two history entries and an editor-contributed entry,
// interleaved by timestamp, merge into the documented oldest-to-newest
// order.
func TestHMLLMergeWithEditorScenarioS1(t *testing.T) {
	cursor := &fixedCursor{entries: []HistoryEntry{{Text: "one-and-half", Timestamp: 1500}}}
	h := newHMLL(HistCmd, 3, cursor)
	h.insertFile(HistoryEntry{Text: "one", Timestamp: 1000})
	h.insertFile(HistoryEntry{Text: "two", Timestamp: 2000})
	h.finish()

	entries := h.entries()
	want := []string{"one", "one-and-half", "two"}
	if len(entries) != len(want) {
		t.Fatalf("len(entries) = %d, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if entries[i].Text != w {
			t.Errorf("entries[%d].Text = %q, want %q", i, entries[i].Text, w)
		}
	}
}
