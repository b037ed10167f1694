package shada

import "testing"

// TestRegisterIndexBijection spot-checks registerIndex across the
// letter, digit, and special-name ranges and confirms unrecognized
// names return -1 (the merger's cue to pass the record through
// unmerged rather than drop it).
func TestRegisterIndexBijection(t *testing.T) {
	if registerIndex('a') != 0 {
		t.Errorf("registerIndex('a') = %d, want 0", registerIndex('a'))
	}
	if registerIndex('z') != 25 {
		t.Errorf("registerIndex('z') = %d, want 25", registerIndex('z'))
	}
	if registerIndex('A') != registerIndex('a') {
		t.Errorf("registerIndex('A') = %d, want same slot as 'a' (%d)", registerIndex('A'), registerIndex('a'))
	}
	if registerIndex('0') != 26 {
		t.Errorf("registerIndex('0') = %d, want 26", registerIndex('0'))
	}
	if registerIndex('"') < 0 {
		t.Errorf("registerIndex('\"') = -1, want a valid slot")
	}
	if registerIndex('!') != -1 {
		t.Errorf("registerIndex('!') = %d, want -1 (not a saved register)", registerIndex('!'))
	}
}

// TestRegisterCapScenarioS2 reproduces spec §8 scenario S2: a register
// whose content exceeds max_reg_lines is skipped entirely rather than
// truncated.
func TestRegisterCapScenarioS2(t *testing.T) {
	m := newRegistersMerger(2)
	err := m.merge('a', RegisterEntry{Contents: []string{"x", "y", "z"}, Timestamp: 5})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if m.used[registerIndex('a')] {
		t.Error("register 'a' was installed despite exceeding max_reg_lines")
	}
}

// TestRegisterNewestWins checks ordinary newest-timestamp-wins
// precedence for registers.
func TestRegisterNewestWins(t *testing.T) {
	m := newRegistersMerger(0)
	if err := m.merge('a', RegisterEntry{Contents: []string{"old"}, Timestamp: 10}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := m.merge('a', RegisterEntry{Contents: []string{"new"}, Timestamp: 20}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	got := m.entries()['a']
	if got.Contents[0] != "new" {
		t.Errorf("register 'a' contents = %v, want [new]", got.Contents)
	}
}

// TestRegisterInvalidNameIsMalformed checks that a name outside the
// bijection's range is reported so the caller can treat the record as
// malformed (rather than silently swallowing it here).
func TestRegisterInvalidNameIsMalformed(t *testing.T) {
	m := newRegistersMerger(0)
	err := m.merge('!', RegisterEntry{Contents: []string{"x"}})
	if err == nil {
		t.Fatal("merge with invalid register name: want error, got nil")
	}
}
