package shada

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// writeTestRecord appends one record to buf using the real framing
// encoder, the same helper Write itself uses.
func writeTestRecord(t *testing.T, buf *bytes.Buffer, typ RecordType, ts uint64, payload []byte) {
	t.Helper()
	hdr := writeRecordHeader(nil, uint64(typ), ts, len(payload))
	buf.Write(hdr)
	buf.Write(payload)
}

func writeShadaFile(t *testing.T, path string, records []byte) {
	t.Helper()
	if err := os.WriteFile(path, records, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

// TestReadMergesHistoryScenarioS1 drives Read end-to-end (not just the
// internal hmll type) through spec §8 scenario S1: a file's two history
// entries merge with one editor-contributed entry into a single
// bounded, timestamp-ordered ring instead of being appended on top of
// whatever the editor already held.
func TestReadMergesHistoryScenarioS1(t *testing.T) {
	var buf bytes.Buffer
	one, err := (&HistoryEntryPayload{Kind: HistCmd, Text: "one"}).encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	two, err := (&HistoryEntryPayload{Kind: HistCmd, Text: "two"}).encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	writeTestRecord(t, &buf, RecTypeHistoryEntry, 1000, one)
	writeTestRecord(t, &buf, RecTypeHistoryEntry, 2000, two)

	dir := t.TempDir()
	path := filepath.Join(dir, "shada")
	writeShadaFile(t, path, buf.Bytes())

	ed := NewMemEditor()
	ed.History[HistCmd] = []HistoryEntry{{Text: "one-and-half", Timestamp: 1500}}

	cfg := DefaultConfig()
	cfg.HistoryLen[HistCmd] = 3
	if _, err := Read(path, ed, ReadOptions{Config: cfg}); err != nil {
		t.Fatalf("Read: %v", err)
	}

	got := ed.History[HistCmd]
	want := []string{"one", "one-and-half", "two"}
	if len(got) != len(want) {
		t.Fatalf("len(history) = %d, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Text != w {
			t.Errorf("history[%d].Text = %q, want %q", i, got[i].Text, w)
		}
	}
}

// TestReadMergesJumpListBoundAndDedup covers the bounded, deduplicated
// merge for the jump list: a file entry that duplicates an existing
// editor jump (same file and position) must not create a second slot
// (the entry already in the list is kept as it is), and the list must
// respect the configured cap.
func TestReadMergesJumpListBoundAndDedup(t *testing.T) {
	var buf bytes.Buffer
	dup := &MarkPayload{File: "/a", Line: 1, Col: 0}
	dupPayload, err := dup.encode(false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	fresh := &MarkPayload{File: "/b", Line: 2, Col: 0}
	freshPayload, err := fresh.encode(false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	writeTestRecord(t, &buf, RecTypeJump, 3000, dupPayload)
	writeTestRecord(t, &buf, RecTypeJump, 4000, freshPayload)

	dir := t.TempDir()
	path := filepath.Join(dir, "shada")
	writeShadaFile(t, path, buf.Bytes())

	ed := NewMemEditor()
	ed.Jumps = []JumpEntry{{File: "/a", Line: 1, Col: 0, Timestamp: 1000}}

	cfg := DefaultConfig()
	cfg.JumplistSize = 100
	if _, err := Read(path, ed, ReadOptions{Config: cfg}); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(ed.Jumps) != 2 {
		t.Fatalf("len(Jumps) = %d, want 2: %+v", len(ed.Jumps), ed.Jumps)
	}
	if ed.Jumps[0].File != "/a" || ed.Jumps[0].Timestamp != 1000 {
		t.Errorf("Jumps[0] = %+v, want the editor's entry (timestamp 1000) kept for the deduplicated /a entry", ed.Jumps[0])
	}
	if ed.Jumps[1].File != "/b" {
		t.Errorf("Jumps[1].File = %q, want /b", ed.Jumps[1].File)
	}
}

// TestReadMergesChangeListPerFile covers the per-file change-list
// merge: a change record for a path with no open buffer must be
// reported via v:oldfiles rather than silently applied, and one for an
// open buffer must merge with (not append blindly past) the buffer's
// existing changes.
func TestReadMergesChangeListPerFile(t *testing.T) {
	var buf bytes.Buffer
	openChange := &MarkPayload{File: "/open", Line: 5, Col: 0}
	openPayload, err := openChange.encode(false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	closedChange := &MarkPayload{File: "/closed", Line: 9, Col: 0}
	closedPayload, err := closedChange.encode(false)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	writeTestRecord(t, &buf, RecTypeChange, 2000, openPayload)
	writeTestRecord(t, &buf, RecTypeChange, 2500, closedPayload)

	dir := t.TempDir()
	path := filepath.Join(dir, "shada")
	writeShadaFile(t, path, buf.Bytes())

	ed := NewMemEditor()
	ed.OpenBuffer("/open")

	cfg := DefaultConfig()
	cfg.ChangelistSize = 100
	result, err := Read(path, ed, ReadOptions{Config: cfg})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	_, changes, ok := ed.LocalMarks("/open")
	if !ok {
		t.Fatal("expected /open to remain a known buffer")
	}
	if len(changes) != 1 || changes[0].Line != 5 {
		t.Errorf("changes = %+v, want one entry at line 5", changes)
	}
	if len(result.OldFiles) != 1 || result.OldFiles[0] != "/closed" {
		t.Errorf("OldFiles = %v, want [/closed]", result.OldFiles)
	}
}
