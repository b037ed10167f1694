package shada

import "testing"

// TestNumberedMarkRotation covers testable property 8 / scenario S4:
// inserting a new numbered mark with the greatest timestamp shifts
// every existing slot down one and evicts the oldest.
func TestNumberedMarkRotation(t *testing.T) {
	m := newMarksMerger(DefaultJumplistSize, DefaultChangelistSize)
	for i := 0; i < numberedMarkCount; i++ {
		m.mergeNumbered(MarkEntry{File: "/f", Timestamp: uint64(100 - i*10)})
	}
	if len(m.numbered) != numberedMarkCount {
		t.Fatalf("len(numbered) = %d, want %d", len(m.numbered), numberedMarkCount)
	}

	m.mergeNumbered(MarkEntry{File: "/g", Timestamp: 200})

	if len(m.numbered) != numberedMarkCount {
		t.Fatalf("len(numbered) after insert = %d, want %d (oldest evicted)", len(m.numbered), numberedMarkCount)
	}
	if m.numbered[0].Timestamp != 200 || m.numbered[0].File != "/g" {
		t.Errorf("numbered[0] = %+v, want the newly inserted mark", m.numbered[0])
	}
	if m.numbered[1].Timestamp != 100 {
		t.Errorf("numbered[1].Timestamp = %d, want 100 (previous '0' shifted to '1')", m.numbered[1].Timestamp)
	}
	// The previous '9' (timestamp 10) must have been evicted.
	for _, e := range m.numbered {
		if e.Timestamp == 10 {
			t.Errorf("evicted mark (timestamp 10) still present in numbered marks")
		}
	}
}

// TestNumberedMarkExactDuplicateDiscarded checks that an exact repeat
// (same timestamp, file, position) does not grow the slice.
func TestNumberedMarkExactDuplicateDiscarded(t *testing.T) {
	m := newMarksMerger(DefaultJumplistSize, DefaultChangelistSize)
	e := MarkEntry{File: "/f", Line: 3, Col: 0, Timestamp: 100}
	m.mergeNumbered(e)
	m.mergeNumbered(e)
	if len(m.numbered) != 1 {
		t.Errorf("len(numbered) = %d, want 1 after inserting an exact duplicate", len(m.numbered))
	}
}

// TestGlobalMarkPrecedenceScenarioS3 reproduces spec §8 scenario S3:
// a newer editor mark beats an older file mark.
func TestGlobalMarkPrecedenceScenarioS3(t *testing.T) {
	m := newMarksMerger(DefaultJumplistSize, DefaultChangelistSize)
	m.mergeGlobal('A', MarkEntry{File: "/f", Line: 3, Col: 0, Timestamp: 100})
	m.mergeGlobal('A', MarkEntry{File: "/g", Line: 7, Col: 4, Timestamp: 50})

	got := m.global['A']
	if got.File != "/f" {
		t.Errorf("global mark A = %+v, want the editor's (/f) to win over the older file entry", got)
	}
}

// TestJumpDedupSameFileAndPosition covers testable property 9:
// inserting a duplicate (file, line, col) leaves the jump list
// unchanged.
func TestJumpDedupSameFileAndPosition(t *testing.T) {
	m := newMarksMerger(10, DefaultChangelistSize)
	m.mergeJump(JumpEntry{File: "/f", Line: 5, Col: 2, Timestamp: 10})
	m.mergeJump(JumpEntry{File: "/f", Line: 5, Col: 2, Timestamp: 20})
	if len(m.jumps) != 1 {
		t.Fatalf("len(jumps) = %d, want 1", len(m.jumps))
	}
	if m.jumps[0].Timestamp != 10 {
		t.Errorf("surviving timestamp = %d, want 10 (first insertion wins on dedup)", m.jumps[0].Timestamp)
	}
}

// TestJumpListBoundedEvictsOldest checks the jump list's overflow
// rule: once full, a newer entry evicts the oldest.
func TestJumpListBoundedEvictsOldest(t *testing.T) {
	m := newMarksMerger(3, DefaultChangelistSize)
	for i := 0; i < 3; i++ {
		m.mergeJump(JumpEntry{File: "/f", Line: uint64(i + 1), Timestamp: uint64(i * 10)})
	}
	m.mergeJump(JumpEntry{File: "/f", Line: 99, Timestamp: 100})

	if len(m.jumps) != 3 {
		t.Fatalf("len(jumps) = %d, want 3", len(m.jumps))
	}
	if m.jumps[len(m.jumps)-1].Line != 99 {
		t.Errorf("newest jump Line = %d, want 99", m.jumps[len(m.jumps)-1].Line)
	}
	for _, j := range m.jumps {
		if j.Timestamp == 0 {
			t.Errorf("oldest jump (timestamp 0) should have been evicted")
		}
	}
}

// TestLocalMarkAdditionalPassthrough checks that a local mark name
// outside 'a'-'z' is preserved in the additional list rather than
// dropped.
func TestLocalMarkAdditionalPassthrough(t *testing.T) {
	m := newMarksMerger(DefaultJumplistSize, DefaultChangelistSize)
	m.mergeLocal("/f", '1', MarkEntry{File: "/f", Line: 1, Timestamp: 5})
	f := m.fileFor("/f")
	if len(f.additional) != 1 {
		t.Fatalf("len(additional) = %d, want 1", len(f.additional))
	}
	if f.additional[0].name != '1' {
		t.Errorf("additional[0].name = %q, want '1'", f.additional[0].name)
	}
}

// TestOrderedFilesSortsByRecencyDescending checks the per-file
// emission ordering rule of spec §4.4.
func TestOrderedFilesSortsByRecencyDescending(t *testing.T) {
	m := newMarksMerger(DefaultJumplistSize, DefaultChangelistSize)
	m.mergeLocal("/old", 'a', MarkEntry{Timestamp: 10})
	m.mergeLocal("/new", 'a', MarkEntry{Timestamp: 99})
	m.mergeLocal("/mid", 'a', MarkEntry{Timestamp: 50})

	ordered := m.orderedFiles(0)
	if len(ordered) != 3 {
		t.Fatalf("len(ordered) = %d, want 3", len(ordered))
	}
	want := []string{"/new", "/mid", "/old"}
	for i, w := range want {
		if ordered[i].path != w {
			t.Errorf("ordered[%d].path = %q, want %q", i, ordered[i].path, w)
		}
	}
}
